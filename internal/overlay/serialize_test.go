package overlay

import (
	"encoding/json"
	"reflect"
	"testing"
)

func i64(v int64) *int64     { return &v }
func iptr(v int) *int        { return &v }
func f64(v float64) *float64 { return &v }

func TestSerializeDiscardsTransientPointFields(t *testing.T) {
	live := Overlay{
		ID:      "o1",
		GroupID: GroupDrawingTools,
		Name:    "segment",
		Points: []LivePoint{
			{Point: Point{Timestamp: i64(1700000000000), Value: f64(101.5)}, X: 412.3, Y: 88.1},
			{Point: Point{DataIndex: iptr(42)}, X: 510.0, Y: 92.4},
		},
		Visible: true,
		Mode:    ModeWeakMagnet,
	}

	rec := Serialize(live)

	if len(rec.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(rec.Points))
	}
	data, err := json.Marshal(rec.Points[0])
	if err != nil {
		t.Fatalf("marshal point: %v", err)
	}
	want := `{"timestamp":1700000000000,"value":101.5}`
	if string(data) != want {
		t.Fatalf("point json = %s, want %s", data, want)
	}
	if rec.Points[1].Timestamp != nil || rec.Points[1].Value != nil {
		t.Fatalf("partially populated point gained fields: %+v", rec.Points[1])
	}
	if *rec.Points[1].DataIndex != 42 {
		t.Fatalf("dataIndex = %d, want 42", *rec.Points[1].DataIndex)
	}
}

func TestSerializeDoesNotShareMemory(t *testing.T) {
	val := f64(100)
	live := Overlay{
		ID:         "o1",
		Points:     []LivePoint{{Point: Point{Value: val}}},
		ExtendData: json.RawMessage(`{"label":"x"}`),
	}

	rec := Serialize(live)

	*val = 999
	live.ExtendData[2] = 'X'
	if *rec.Points[0].Value != 100 {
		t.Fatalf("serialized point shares value pointer with live overlay")
	}
	if string(rec.ExtendData) != `{"label":"x"}` {
		t.Fatalf("serialized extendData shares backing array: %s", rec.ExtendData)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		rec  Serialized
	}{
		{
			name: "single value point",
			rec: Serialized{
				ID: "o1", GroupID: GroupDrawingTools, Name: "horizontalStraightLine",
				Points: []Point{{Value: f64(100)}},
				Lock:   false, Visible: true, Mode: "normal",
			},
		},
		{
			name: "empty points",
			rec: Serialized{
				ID: "o2", GroupID: GroupDrawingTools, Name: "simpleTag",
				Points: []Point{}, Visible: true, Mode: "strong_magnet",
			},
		},
		{
			name: "all coordinates plus payloads",
			rec: Serialized{
				ID: "o3", GroupID: "custom_group", Name: "fibonacciCircle",
				Points: []Point{
					{Timestamp: i64(1690000000000), DataIndex: iptr(7), Value: f64(42.25)},
					{Timestamp: i64(1690001000000)},
				},
				Lock: true, Visible: false, Mode: "weak_magnet",
				ExtendData: json.RawMessage(`{"note":"fib"}`),
				Styles:     json.RawMessage(`{"line":{"color":"#ff0000"}}`),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := Deserialize(tc.rec)
			back := Serialize(liveFromRequest(req))
			if !reflect.DeepEqual(back, tc.rec) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, tc.rec)
			}
		})
	}
}

func TestDeserializePassesUnknownModeThrough(t *testing.T) {
	rec := Serialized{ID: "o1", Name: "segment", Mode: "turbo_magnet", Points: []Point{}}
	req := Deserialize(rec)
	if req.Mode != Mode("turbo_magnet") {
		t.Fatalf("mode = %q, want unvalidated pass-through", req.Mode)
	}
}

func TestSerializedJSONShape(t *testing.T) {
	rec := Serialized{
		ID: "o1", GroupID: GroupDrawingTools, Name: "horizontalStraightLine",
		Points: []Point{{Value: f64(100)}}, Visible: true, Mode: "normal",
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":"o1","groupId":"drawing_tools","name":"horizontalStraightLine",` +
		`"points":[{"value":100}],"lock":false,"visible":true,"mode":"normal"}`
	if string(data) != want {
		t.Fatalf("json = %s\nwant %s", data, want)
	}

	var back Serialized
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(back, rec) {
		t.Fatalf("json round trip mismatch: %+v", back)
	}
}

// liveFromRequest mirrors what an engine does when it instantiates a
// creation request, without attaching transient fields.
func liveFromRequest(req CreateRequest) Overlay {
	points := make([]LivePoint, len(req.Points))
	for i, p := range req.Points {
		points[i] = LivePoint{Point: p}
	}
	return Overlay{
		ID: req.ID, GroupID: req.GroupID, Name: req.Name, Points: points,
		Lock: req.Lock, Visible: req.Visible, Mode: req.Mode,
		ExtendData: req.ExtendData, Styles: req.Styles,
	}
}
