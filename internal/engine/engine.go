// Package engine defines the narrow interface through which the rest of the
// system talks to a charting engine, and a simulated in-memory
// implementation for tests and headless runs.
package engine

import (
	"context"

	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

// Selector targets overlays for removal. ID wins when both are set; an
// empty selector matches nothing.
type Selector struct {
	ID      string `json:"id,omitempty"`
	GroupID string `json:"groupId,omitempty"`
}

// Override carries a partial property update for a single overlay. Nil
// fields are left untouched.
type Override struct {
	ID      string           `json:"id"`
	Lock    *bool            `json:"lock,omitempty"`
	Visible *bool            `json:"visible,omitempty"`
	Mode    *overlay.Mode    `json:"mode,omitempty"`
	Points  []overlay.Point  `json:"points,omitempty"`
}

// Engine is the charting engine collaborator. Implementations own the
// overlay instances; callers only ever hold ids and snapshots.
type Engine interface {
	// CreateOverlay instantiates an overlay and returns the engine-assigned
	// id(s). Some overlay types expand to multiple instances.
	CreateOverlay(ctx context.Context, req overlay.CreateRequest) ([]string, error)

	// RemoveOverlay removes every overlay matching the selector.
	RemoveOverlay(ctx context.Context, sel Selector) error

	// OverrideOverlay applies a partial property update to a live overlay.
	OverrideOverlay(ctx context.Context, ov Override) error

	// GetOverlayByID returns a snapshot of a live overlay, or (nil, nil)
	// when the engine no longer knows the id.
	GetOverlayByID(ctx context.Context, id string) (*overlay.Overlay, error)
}
