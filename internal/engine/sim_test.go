package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

func f64(v float64) *float64 { return &v }

func TestSimCreateAndGet(t *testing.T) {
	s := NewSim()
	ids, err := s.CreateOverlay(context.Background(), overlay.CreateRequest{
		GroupID: overlay.GroupDrawingTools,
		Name:    "horizontalStraightLine",
		Points:  []overlay.Point{{Value: f64(100)}},
		Visible: true,
	})
	if err != nil {
		t.Fatalf("CreateOverlay() error = %v", err)
	}
	if len(ids) != 1 || ids[0] == "" {
		t.Fatalf("ids = %v, want one non-empty id", ids)
	}

	o, err := s.GetOverlayByID(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("GetOverlayByID() error = %v", err)
	}
	if o == nil {
		t.Fatal("overlay not found after create")
	}
	if o.Name != "horizontalStraightLine" || o.Mode != overlay.ModeNormal {
		t.Fatalf("overlay = %+v", o)
	}
}

func TestSimGetUnknownIDReturnsNil(t *testing.T) {
	s := NewSim()
	o, err := s.GetOverlayByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetOverlayByID() error = %v", err)
	}
	if o != nil {
		t.Fatalf("overlay = %+v, want nil", o)
	}
}

func TestSimCreateRequiresName(t *testing.T) {
	s := NewSim()
	_, err := s.CreateOverlay(context.Background(), overlay.CreateRequest{})
	var coded *CodedError
	if !errors.As(err, &coded) || coded.Code != CodeValidation {
		t.Fatalf("error = %v, want VALIDATION", err)
	}
}

func TestSimRemoveByGroup(t *testing.T) {
	s := NewSim()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.CreateOverlay(ctx, overlay.CreateRequest{GroupID: "g1", Name: "segment"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	keep, err := s.CreateOverlay(ctx, overlay.CreateRequest{GroupID: "g2", Name: "segment"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.RemoveOverlay(ctx, Selector{GroupID: "g1"}); err != nil {
		t.Fatalf("RemoveOverlay() error = %v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("count = %d, want 1", s.Count())
	}
	o, _ := s.GetOverlayByID(ctx, keep[0])
	if o == nil {
		t.Fatal("overlay in other group was removed")
	}
}

func TestSimOverride(t *testing.T) {
	s := NewSim()
	ctx := context.Background()
	ids, err := s.CreateOverlay(ctx, overlay.CreateRequest{Name: "segment", Visible: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	lock := true
	visible := false
	mode := overlay.ModeStrongMagnet
	err = s.OverrideOverlay(ctx, Override{ID: ids[0], Lock: &lock, Visible: &visible, Mode: &mode})
	if err != nil {
		t.Fatalf("OverrideOverlay() error = %v", err)
	}

	o, _ := s.GetOverlayByID(ctx, ids[0])
	if !o.Lock || o.Visible || o.Mode != overlay.ModeStrongMagnet {
		t.Fatalf("override not applied: %+v", o)
	}

	err = s.OverrideOverlay(ctx, Override{ID: "missing", Lock: &lock})
	var coded *CodedError
	if !errors.As(err, &coded) || coded.Code != CodeOverlayNotFound {
		t.Fatalf("error = %v, want OVERLAY_NOT_FOUND", err)
	}
}

func TestSimSnapshotIsACopy(t *testing.T) {
	s := NewSim()
	ctx := context.Background()
	ids, _ := s.CreateOverlay(ctx, overlay.CreateRequest{Name: "segment", Points: []overlay.Point{{Value: f64(1)}}})

	snap, _ := s.GetOverlayByID(ctx, ids[0])
	snap.Lock = true
	snap.Points[0].Value = f64(999)

	again, _ := s.GetOverlayByID(ctx, ids[0])
	if again.Lock {
		t.Fatal("mutating a snapshot leaked into the engine")
	}
	if *again.Points[0].Value != 1 {
		t.Fatal("mutating snapshot points leaked into the engine")
	}
}
