package chartbridge

import (
	"encoding/json"

	"github.com/dgnsrekt/kline_agent/internal/engine"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

// jsPreamble resolves the embedding page's chart handle. The pro wrapper
// exposes itself as window.klinechartspro; bare klinecharts pages usually
// park the instance on window.chart.
const jsPreamble = `
var host = window.klinechartspro || null;
var chart = null;
if (host && typeof host.getWidget === "function") { try { chart = host.getWidget(); } catch(_) {} }
if (!chart && host && host.chart && typeof host.chart.createOverlay === "function") { chart = host.chart; }
if (!chart && window.chart && typeof window.chart.createOverlay === "function") { chart = window.chart; }
if (!chart) {
  return JSON.stringify({ok:false,error_code:"` + engine.CodeAPIUnavailable + `",error_message:"chart api not found on page"});
}`

// jsOverlaySnapshot maps a live overlay instance to the snapshot shape the
// Go side decodes. Points keep their transient x/y so callers can observe
// screen placement; persistence strips them later.
const jsOverlaySnapshot = `
function _snapshot(o) {
  if (!o) return null;
  var points = [];
  var src = o.points || [];
  for (var i = 0; i < src.length; i++) {
    var p = src[i] || {};
    var out = {};
    if (typeof p.timestamp === "number") out.timestamp = p.timestamp;
    if (typeof p.dataIndex === "number") out.dataIndex = p.dataIndex;
    if (typeof p.value === "number") out.value = p.value;
    if (typeof p.x === "number") out.x = p.x;
    if (typeof p.y === "number") out.y = p.y;
    points.push(out);
  }
  return {
    id: String(o.id || ""),
    groupId: String(o.groupId || ""),
    name: String(o.name || ""),
    points: points,
    lock: Boolean(o.lock),
    visible: o.visible !== false,
    mode: String(o.mode || "normal"),
    extendData: o.extendData === undefined ? null : o.extendData,
    styles: o.styles === undefined ? null : o.styles
  };
}
`

func jsCreateOverlay(req overlay.CreateRequest) string {
	return buildIIFE(jsPreamble + `
var created = chart.createOverlay(` + jsJSON(req) + `);
var ids = [];
if (Array.isArray(created)) {
  for (var i = 0; i < created.length; i++) { if (created[i]) ids.push(String(created[i])); }
} else if (created) {
  ids.push(String(created));
}
if (ids.length === 0) {
  return JSON.stringify({ok:false,error_code:"` + engine.CodeEvalFailure + `",error_message:"createOverlay returned no id"});
}
return JSON.stringify({ok:true,data:{ids:ids}});`)
}

func jsRemoveOverlay(sel engine.Selector) string {
	filter := map[string]string{}
	if sel.ID != "" {
		filter["id"] = sel.ID
	}
	if sel.GroupID != "" {
		filter["groupId"] = sel.GroupID
	}
	return buildIIFE(jsPreamble + `
chart.removeOverlay(` + jsJSON(filter) + `);
return JSON.stringify({ok:true});`)
}

func jsOverrideOverlay(ov engine.Override) string {
	return buildIIFE(jsPreamble + `
chart.overrideOverlay(` + jsJSON(ov) + `);
return JSON.stringify({ok:true});`)
}

func jsGetOverlayByID(id string) string {
	return buildIIFE(jsPreamble + jsOverlaySnapshot + `
var o = typeof chart.getOverlayById === "function" ? chart.getOverlayById(` + jsString(id) + `) : null;
return JSON.stringify({ok:true,data:{overlay:_snapshot(o)}});`)
}

func jsGetSymbol() string {
	return buildIIFE(jsPreamble + `
var ticker = "";
if (host && typeof host.getSymbol === "function") {
  var sym = host.getSymbol();
  ticker = sym && sym.ticker ? String(sym.ticker) : String(sym || "");
}
return JSON.stringify({ok:true,data:{ticker:ticker}});`)
}

func jsSetSymbol(ticker string) string {
	return buildIIFE(jsPreamble + `
if (!host || typeof host.setSymbol !== "function") {
  return JSON.stringify({ok:false,error_code:"` + engine.CodeAPIUnavailable + `",error_message:"setSymbol not exposed on page"});
}
host.setSymbol({ticker:` + jsString(ticker) + `});
return JSON.stringify({ok:true,data:{ticker:` + jsString(ticker) + `}});`)
}

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func buildIIFE(body string) string {
	return `(function(){
try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + engine.CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}
