// Package chartbridge drives a browser-hosted chart page over the Chrome
// DevTools Protocol. It implements the engine interface by evaluating small
// JS snippets against the page's chart handle.
package chartbridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/kline_agent/internal/engine"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

// transientHints are substrings in error causes that indicate a transient
// failure worth retrying (e.g. broken connection, closed session).
var transientHints = []string{
	"context canceled",
	"target closed",
	"session closed",
	"websocket",
	"connection reset",
	"broken pipe",
	"eof",
	"connection refused",
	"connection closed",
}

// Bridge is a CDP-backed engine bound to a single chart page. The page is
// resolved by URL substring; when several match, the first page target
// wins.
type Bridge struct {
	cdpURL      string
	tabFilter   string
	evalTimeout time.Duration

	mu        sync.Mutex
	cdp       *rawCDP
	targetID  string
	sessionID string
}

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// pageOverlay is the wire shape of an overlay snapshot coming back from the
// page. ExtendData and Styles arrive as arbitrary JSON; "null" means unset.
type pageOverlay struct {
	ID         string              `json:"id"`
	GroupID    string              `json:"groupId"`
	Name       string              `json:"name"`
	Points     []overlay.LivePoint `json:"points"`
	Lock       bool                `json:"lock"`
	Visible    bool                `json:"visible"`
	Mode       string              `json:"mode"`
	ExtendData json.RawMessage     `json:"extendData"`
	Styles     json.RawMessage     `json:"styles"`
}

func New(cdpURL, tabFilter string, evalTimeout time.Duration) *Bridge {
	if evalTimeout <= 0 {
		evalTimeout = 10 * time.Second
	}
	return &Bridge{
		cdpURL:      cdpURL,
		tabFilter:   strings.ToLower(strings.TrimSpace(tabFilter)),
		evalTimeout: evalTimeout,
	}
}

// Connect dials the browser endpoint and resolves the chart page target.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectLocked(ctx)
}

func (b *Bridge) connectLocked(ctx context.Context) error {
	if b.cdpURL == "" {
		return engine.NewError(engine.CodeCDPUnavailable, "missing CDP URL", nil)
	}

	slog.Info("chartbridge connect start", "cdp_url", b.cdpURL)
	b.cleanupLocked()

	b.cdp = newRawCDP(b.cdpURL)
	if err := b.cdp.connect(ctx); err != nil {
		b.cdp = nil
		return engine.NewError(engine.CodeCDPUnavailable, "connect to CDP failed", err)
	}

	if err := b.resolveTargetLocked(ctx); err != nil {
		b.cleanupLocked()
		return err
	}

	slog.Info("chartbridge connect ok", "cdp_url", b.cdpURL, "target_id", b.targetID)
	return nil
}

// Close detaches from the chart page without closing it.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanupLocked()
	return nil
}

func (b *Bridge) cleanupLocked() {
	if b.cdp != nil {
		if b.sessionID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = b.cdp.detachFromTarget(ctx, b.sessionID)
			cancel()
		}
		b.cdp.close()
		b.cdp = nil
	}
	b.targetID = ""
	b.sessionID = ""
}

func (b *Bridge) resolveTargetLocked(ctx context.Context) error {
	targets, err := b.cdp.listTargets(ctx)
	if err != nil {
		return engine.NewError(engine.CodeCDPUnavailable, "failed to list targets", err)
	}

	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if b.tabFilter != "" && !strings.Contains(strings.ToLower(t.URL), b.tabFilter) {
			continue
		}
		b.targetID = string(t.TargetID)
		b.sessionID = ""
		slog.Debug("chartbridge chart page resolved", "target_id", b.targetID, "url", t.URL)
		return nil
	}
	return engine.NewError(engine.CodeCDPUnavailable, "no chart page matched filter: "+b.tabFilter, nil)
}

// CreateOverlay implements engine.Engine.
func (b *Bridge) CreateOverlay(ctx context.Context, req overlay.CreateRequest) ([]string, error) {
	if req.Name == "" {
		return nil, engine.NewError(engine.CodeValidation, "overlay name is required", nil)
	}
	var out struct {
		IDs []string `json:"ids"`
	}
	if err := b.eval(ctx, jsCreateOverlay(req), &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// RemoveOverlay implements engine.Engine.
func (b *Bridge) RemoveOverlay(ctx context.Context, sel engine.Selector) error {
	if sel.ID == "" && sel.GroupID == "" {
		return engine.NewError(engine.CodeValidation, "removal selector is empty", nil)
	}
	return b.eval(ctx, jsRemoveOverlay(sel), nil)
}

// OverrideOverlay implements engine.Engine.
func (b *Bridge) OverrideOverlay(ctx context.Context, ov engine.Override) error {
	if ov.ID == "" {
		return engine.NewError(engine.CodeValidation, "overlay id is required", nil)
	}
	return b.eval(ctx, jsOverrideOverlay(ov), nil)
}

// GetOverlayByID implements engine.Engine. Returns (nil, nil) when the page
// no longer knows the id.
func (b *Bridge) GetOverlayByID(ctx context.Context, id string) (*overlay.Overlay, error) {
	var out struct {
		Overlay *pageOverlay `json:"overlay"`
	}
	if err := b.eval(ctx, jsGetOverlayByID(id), &out); err != nil {
		return nil, err
	}
	if out.Overlay == nil {
		return nil, nil
	}
	return out.Overlay.toOverlay(), nil
}

// ChartSymbol reads the ticker currently displayed on the page.
func (b *Bridge) ChartSymbol(ctx context.Context) (string, error) {
	var out struct {
		Ticker string `json:"ticker"`
	}
	if err := b.eval(ctx, jsGetSymbol(), &out); err != nil {
		return "", err
	}
	return out.Ticker, nil
}

// SetChartSymbol switches the page to a new ticker.
func (b *Bridge) SetChartSymbol(ctx context.Context, ticker string) error {
	if ticker == "" {
		return engine.NewError(engine.CodeValidation, "ticker is required", nil)
	}
	return b.eval(ctx, jsSetSymbol(ticker), nil)
}

func (b *Bridge) eval(ctx context.Context, js string, out any) error {
	err := b.evalOnce(ctx, js, out)
	if err == nil || !shouldRetry(err) {
		return err
	}

	slog.Warn("chartbridge eval retry after transient failure", "error", err)
	b.mu.Lock()
	recErr := b.connectLocked(ctx)
	b.mu.Unlock()
	if recErr != nil {
		slog.Error("chartbridge reconnect failed during retry", "error", recErr)
		return recErr
	}
	return b.evalOnce(ctx, js, out)
}

func (b *Bridge) evalOnce(ctx context.Context, js string, out any) error {
	b.mu.Lock()
	cdp := b.cdp
	targetID := b.targetID
	b.mu.Unlock()
	if cdp == nil || targetID == "" {
		return engine.NewError(engine.CodeCDPUnavailable, "CDP client not connected", nil)
	}

	sessionID, err := b.ensureSession(ctx, cdp, targetID)
	if err != nil {
		return err
	}

	evalCtx, cancel := context.WithTimeout(ctx, b.evalTimeout)
	defer cancel()

	raw, err := cdp.evaluate(evalCtx, sessionID, js)
	if err != nil {
		slog.Warn("chartbridge eval failed", "target_id", targetID, "error", err)
		// Reset session so a fresh attach happens on retry.
		b.mu.Lock()
		b.sessionID = ""
		b.mu.Unlock()

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(evalCtx.Err(), context.DeadlineExceeded) {
			return engine.NewError(engine.CodeEvalTimeout, "evaluation timed out", err)
		}
		return engine.NewError(engine.CodeEvalFailure, "evaluation failed", err)
	}

	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return engine.NewError(engine.CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = engine.CodeEvalFailure
		}
		return engine.NewError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return engine.NewError(engine.CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

// ensureSession returns a CDP session for the chart target, attaching if
// needed.
func (b *Bridge) ensureSession(ctx context.Context, cdp *rawCDP, targetID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sessionID != "" {
		return b.sessionID, nil
	}
	sid, err := cdp.attachToTarget(ctx, targetID)
	if err != nil {
		return "", engine.NewError(engine.CodeCDPUnavailable, "attach to target failed", err)
	}
	b.sessionID = sid
	slog.Debug("chartbridge session attached", "target_id", targetID, "session_id", sid)
	return sid, nil
}

func shouldRetry(err error) bool {
	var coded *engine.CodedError
	if !errors.As(err, &coded) {
		return false
	}

	switch coded.Code {
	case engine.CodeCDPUnavailable:
		return true
	case engine.CodeEvalFailure:
		if coded.Cause == nil {
			return false
		}
		cause := strings.ToLower(coded.Cause.Error())
		for _, hint := range transientHints {
			if strings.Contains(cause, hint) {
				return true
			}
		}
	}
	return false
}

func (p *pageOverlay) toOverlay() *overlay.Overlay {
	o := &overlay.Overlay{
		ID:      p.ID,
		GroupID: p.GroupID,
		Name:    p.Name,
		Points:  p.Points,
		Lock:    p.Lock,
		Visible: p.Visible,
		Mode:    overlay.Mode(p.Mode),
	}
	if len(p.ExtendData) > 0 && string(p.ExtendData) != "null" {
		o.ExtendData = p.ExtendData
	}
	if len(p.Styles) > 0 && string(p.Styles) != "null" {
		o.Styles = p.Styles
	}
	return o
}
