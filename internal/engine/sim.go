package engine

import (
	"context"
	"sync"

	"github.com/dgnsrekt/kline_agent/internal/overlay"
	"github.com/google/uuid"
)

// Sim is an in-memory Engine. It backs tests and the daemon's headless
// mode, where no browser-hosted chart is attached.
type Sim struct {
	mu       sync.Mutex
	overlays map[string]*overlay.Overlay
}

// NewSim creates an empty simulated engine.
func NewSim() *Sim {
	return &Sim{overlays: make(map[string]*overlay.Overlay)}
}

func (s *Sim) CreateOverlay(_ context.Context, req overlay.CreateRequest) ([]string, error) {
	if req.Name == "" {
		return nil, NewError(CodeValidation, "overlay name is required", nil)
	}

	id := uuid.NewString()
	points := make([]overlay.LivePoint, len(req.Points))
	for i, p := range req.Points {
		points[i] = overlay.LivePoint{Point: p}
	}
	mode := req.Mode
	if mode == "" {
		mode = overlay.ModeNormal
	}

	s.mu.Lock()
	s.overlays[id] = &overlay.Overlay{
		ID:         id,
		GroupID:    req.GroupID,
		Name:       req.Name,
		Points:     points,
		Lock:       req.Lock,
		Visible:    req.Visible,
		Mode:       mode,
		ExtendData: req.ExtendData,
		Styles:     req.Styles,
	}
	s.mu.Unlock()

	return []string{id}, nil
}

func (s *Sim) RemoveOverlay(_ context.Context, sel Selector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sel.ID != "" {
		delete(s.overlays, sel.ID)
		return nil
	}
	if sel.GroupID != "" {
		for id, o := range s.overlays {
			if o.GroupID == sel.GroupID {
				delete(s.overlays, id)
			}
		}
	}
	return nil
}

func (s *Sim) OverrideOverlay(_ context.Context, ov Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.overlays[ov.ID]
	if !ok {
		return NewError(CodeOverlayNotFound, "overlay not found: "+ov.ID, nil)
	}
	if ov.Lock != nil {
		o.Lock = *ov.Lock
	}
	if ov.Visible != nil {
		o.Visible = *ov.Visible
	}
	if ov.Mode != nil {
		o.Mode = *ov.Mode
	}
	if ov.Points != nil {
		points := make([]overlay.LivePoint, len(ov.Points))
		for i, p := range ov.Points {
			points[i] = overlay.LivePoint{Point: p}
		}
		o.Points = points
	}
	return nil
}

func (s *Sim) GetOverlayByID(_ context.Context, id string) (*overlay.Overlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.overlays[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	cp.Points = append([]overlay.LivePoint(nil), o.Points...)
	return &cp, nil
}

// Count returns the number of live overlays.
func (s *Sim) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.overlays)
}
