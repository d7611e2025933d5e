// Package overlay defines the overlay data model shared by the engine
// bridge, the persistence layer, and the lifecycle coordinator, plus the
// pure serialize/deserialize pair used by the storage format.
package overlay

import "encoding/json"

// Mode controls point snapping while an overlay is edited interactively.
type Mode string

const (
	ModeNormal       Mode = "normal"
	ModeWeakMagnet   Mode = "weak_magnet"
	ModeStrongMagnet Mode = "strong_magnet"
)

// GroupDrawingTools is the logical tool-group tag the drawing toolbar uses.
const GroupDrawingTools = "drawing_tools"

// Point is a storage-safe anchor point. Which fields are populated depends
// on the overlay type and on whether the point was anchored inside or
// outside the current data view.
type Point struct {
	Timestamp *int64   `json:"timestamp,omitempty"`
	DataIndex *int     `json:"dataIndex,omitempty"`
	Value     *float64 `json:"value,omitempty"`
}

// LivePoint is an engine-owned anchor point. X and Y are transient screen
// coordinates the engine attaches during rendering; they are never
// persisted.
type LivePoint struct {
	Point
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
}

// Overlay is a snapshot of a live, engine-owned overlay instance.
type Overlay struct {
	ID         string          `json:"id"`
	GroupID    string          `json:"groupId"`
	Name       string          `json:"name"`
	Points     []LivePoint     `json:"points"`
	Lock       bool            `json:"lock"`
	Visible    bool            `json:"visible"`
	Mode       Mode            `json:"mode"`
	ExtendData json.RawMessage `json:"extendData,omitempty"`
	Styles     json.RawMessage `json:"styles,omitempty"`
}

// Serialized is the storage-safe record written to the local store and
// exchanged with cloud providers. It must round-trip through JSON without
// loss; mode is kept as a plain string so unknown values survive untouched.
type Serialized struct {
	ID         string          `json:"id"`
	GroupID    string          `json:"groupId"`
	Name       string          `json:"name"`
	Points     []Point         `json:"points"`
	Lock       bool            `json:"lock"`
	Visible    bool            `json:"visible"`
	Mode       string          `json:"mode"`
	ExtendData json.RawMessage `json:"extendData,omitempty"`
	Styles     json.RawMessage `json:"styles,omitempty"`
}

// CreateRequest asks the engine to create an overlay. The engine assigns
// the instance id; ID here is only a hint engines are free to ignore.
type CreateRequest struct {
	ID         string          `json:"id,omitempty"`
	GroupID    string          `json:"groupId"`
	Name       string          `json:"name"`
	Points     []Point         `json:"points"`
	Lock       bool            `json:"lock"`
	Visible    bool            `json:"visible"`
	Mode       Mode            `json:"mode"`
	ExtendData json.RawMessage `json:"extendData,omitempty"`
	Styles     json.RawMessage `json:"styles,omitempty"`
}
