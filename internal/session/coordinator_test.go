package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/kline_agent/internal/engine"
	"github.com/dgnsrekt/kline_agent/internal/localstore"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
	"github.com/dgnsrekt/kline_agent/internal/overlaystore"
	"github.com/dgnsrekt/kline_agent/internal/relay"
)

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

func lineRequest(name string, ts int64, value float64) overlay.CreateRequest {
	return overlay.CreateRequest{
		Name:   name,
		Points: []overlay.Point{{Timestamp: i64(ts), Value: f64(value)}},
	}
}

// newTestCoordinator wires a Sim engine and a file-backed store. The long
// auto-save interval keeps the ticker out of the way unless a test wants it.
func newTestCoordinator(t *testing.T, symbol string, autoSave time.Duration) (*Coordinator, *engine.Sim, *overlaystore.Storage, localstore.Store) {
	t.Helper()
	store, err := localstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	sim := engine.NewSim()
	storage := overlaystore.NewStorage(store, symbol, nil)
	coord := New(sim, storage, nil, Config{Symbol: symbol, AutoSave: autoSave})
	return coord, sim, storage, store
}

func mustStart(t *testing.T, c *Coordinator) {
	t.Helper()
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(c.Stop)
}

func TestStartRestoresPersistedOverlays(t *testing.T) {
	store, err := localstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	overlaystore.SaveLocal(store, "AAPL", []overlay.Serialized{
		{Name: "horizontalStraightLine", Mode: "normal", Points: []overlay.Point{{Value: f64(190.5)}}},
		{Name: "segment", Mode: "weak_magnet", Points: []overlay.Point{
			{Timestamp: i64(1700000000000), Value: f64(180)},
			{Timestamp: i64(1700000600000), Value: f64(185)},
		}},
	})

	sim := engine.NewSim()
	storage := overlaystore.NewStorage(store, "AAPL", nil)
	coord := New(sim, storage, nil, Config{Symbol: "AAPL", AutoSave: time.Hour})
	mustStart(t, coord)

	if got := sim.Count(); got != 2 {
		t.Fatalf("engine overlays = %d, want 2", got)
	}
	tracked := coord.Tracked()
	if len(tracked) != 2 {
		t.Fatalf("tracked = %d, want 2", len(tracked))
	}
	if tracked[0].Name != "horizontalStraightLine" || tracked[1].Name != "segment" {
		t.Fatalf("restore order wrong: %q, %q", tracked[0].Name, tracked[1].Name)
	}
	if tracked[1].Mode != overlay.Mode("weak_magnet") {
		t.Fatalf("mode = %q, want weak_magnet", tracked[1].Mode)
	}
}

func TestCreateTracksWithoutImmediateSave(t *testing.T) {
	ctx := context.Background()
	coord, _, storage, _ := newTestCoordinator(t, "AAPL", time.Hour)
	mustStart(t, coord)

	created, err := coord.Create(ctx, lineRequest("rayLine", 1700000000000, 42))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 || created[0].ID == "" {
		t.Fatalf("created = %+v", created)
	}
	if created[0].GroupID != overlay.GroupDrawingTools {
		t.Fatalf("group = %q, want %q", created[0].GroupID, overlay.GroupDrawingTools)
	}

	// No tick has fired and nothing was removed, so storage stays empty.
	if got := storage.Load(); len(got) != 0 {
		t.Fatalf("storage after create = %d records, want 0", len(got))
	}

	coord.Flush(ctx)
	if got := storage.Load(); len(got) != 1 || got[0].Name != "rayLine" {
		t.Fatalf("storage after flush = %+v", got)
	}
}

func TestRemovePersistsImmediately(t *testing.T) {
	ctx := context.Background()
	coord, sim, storage, _ := newTestCoordinator(t, "AAPL", time.Hour)
	mustStart(t, coord)

	a, err := coord.Create(ctx, lineRequest("segment", 1700000000000, 10))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := coord.Create(ctx, lineRequest("fibonacciLine", 1700000300000, 20)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	coord.Flush(ctx)

	if err := coord.Remove(ctx, a[0].ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	// Persisted without waiting for the timer.
	got := storage.Load()
	if len(got) != 1 || got[0].Name != "fibonacciLine" {
		t.Fatalf("storage after remove = %+v", got)
	}
	if sim.Count() != 1 {
		t.Fatalf("engine overlays = %d, want 1", sim.Count())
	}
}

func TestRemoveUnknownID(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t, "AAPL", time.Hour)
	mustStart(t, coord)

	err := coord.Remove(context.Background(), "nope")
	var coded *engine.CodedError
	if !errors.As(err, &coded) || coded.Code != engine.CodeOverlayNotFound {
		t.Fatalf("err = %v, want %s", err, engine.CodeOverlayNotFound)
	}
}

func TestRemoveGroupPersistsImmediately(t *testing.T) {
	ctx := context.Background()
	coord, sim, storage, _ := newTestCoordinator(t, "AAPL", time.Hour)
	mustStart(t, coord)

	if _, err := coord.Create(ctx, lineRequest("segment", 1, 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := coord.Create(ctx, lineRequest("rayLine", 2, 2)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ids, err := coord.RemoveGroup(ctx, overlay.GroupDrawingTools)
	if err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("removed ids = %v, want 2", ids)
	}
	if sim.Count() != 0 {
		t.Fatalf("engine overlays = %d, want 0", sim.Count())
	}
	if got := storage.Load(); len(got) != 0 {
		t.Fatalf("storage after group removal = %+v", got)
	}
}

func TestSymbolSwitchKeepsOldRecords(t *testing.T) {
	ctx := context.Background()
	coord, sim, storage, store := newTestCoordinator(t, "AAPL", time.Hour)
	mustStart(t, coord)

	if _, err := coord.Create(ctx, lineRequest("segment", 1700000000000, 180)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := coord.Create(ctx, lineRequest("priceLine", 1700000300000, 185)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := coord.SetSymbol(ctx, "GOOGL"); err != nil {
		t.Fatalf("SetSymbol: %v", err)
	}

	if storage.Symbol() != "GOOGL" {
		t.Fatalf("symbol = %q, want GOOGL", storage.Symbol())
	}
	if got := coord.Tracked(); len(got) != 0 {
		t.Fatalf("tracked after switch = %d, want 0", len(got))
	}
	if sim.Count() != 0 {
		t.Fatalf("engine overlays after switch = %d, want 0", sim.Count())
	}
	if got := overlaystore.LoadLocal(store, "AAPL"); len(got) != 2 {
		t.Fatalf("AAPL records after switch = %d, want 2", len(got))
	}
	if got := storage.Load(); len(got) != 0 {
		t.Fatalf("GOOGL records = %d, want 0", len(got))
	}

	// Switching back restores the flushed set.
	if err := coord.SetSymbol(ctx, "AAPL"); err != nil {
		t.Fatalf("SetSymbol back: %v", err)
	}
	if got := coord.Tracked(); len(got) != 2 {
		t.Fatalf("tracked after switch back = %d, want 2", len(got))
	}
	if sim.Count() != 2 {
		t.Fatalf("engine overlays after switch back = %d, want 2", sim.Count())
	}
}

func TestSetSymbolSameIsNoop(t *testing.T) {
	ctx := context.Background()
	coord, _, storage, _ := newTestCoordinator(t, "AAPL", time.Hour)
	mustStart(t, coord)

	if _, err := coord.Create(ctx, lineRequest("segment", 1, 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := coord.SetSymbol(ctx, "AAPL"); err != nil {
		t.Fatalf("SetSymbol: %v", err)
	}
	// No flush happened, so no-op switches leave storage untouched.
	if got := storage.Load(); len(got) != 0 {
		t.Fatalf("storage = %d records, want 0", len(got))
	}
	if got := coord.Tracked(); len(got) != 1 {
		t.Fatalf("tracked = %d, want 1", len(got))
	}
}

func TestSetSymbolEmptyRejected(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t, "AAPL", time.Hour)
	mustStart(t, coord)

	err := coord.SetSymbol(context.Background(), "")
	var coded *engine.CodedError
	if !errors.As(err, &coded) || coded.Code != engine.CodeValidation {
		t.Fatalf("err = %v, want %s", err, engine.CodeValidation)
	}
}

func TestPersistDropsEngineRemovedOverlays(t *testing.T) {
	ctx := context.Background()
	coord, sim, storage, _ := newTestCoordinator(t, "AAPL", time.Hour)
	mustStart(t, coord)

	created, err := coord.Create(ctx, lineRequest("segment", 1, 1))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	coord.Flush(ctx)

	// Removed behind the coordinator's back, e.g. by a user action the
	// bridge never reported.
	if err := sim.RemoveOverlay(ctx, engine.Selector{ID: created[0].ID}); err != nil {
		t.Fatalf("RemoveOverlay: %v", err)
	}

	coord.Flush(ctx)
	if got := storage.Load(); len(got) != 0 {
		t.Fatalf("storage = %+v, want empty", got)
	}
	if got := coord.Tracked(); len(got) != 0 {
		t.Fatalf("tracked = %d, want 0", len(got))
	}
}

func TestRepeatedFlushWritesIdenticalBytes(t *testing.T) {
	ctx := context.Background()
	coord, _, _, store := newTestCoordinator(t, "AAPL", time.Hour)
	mustStart(t, coord)

	if _, err := coord.Create(ctx, lineRequest("segment", 1700000000000, 10)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := coord.Create(ctx, lineRequest("rayLine", 1700000300000, 20)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	coord.Flush(ctx)
	first, err := store.Get(overlaystore.Key("AAPL"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	coord.Flush(ctx)
	second, err := store.Get(overlaystore.Key("AAPL"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("repeated flush changed bytes:\n%s\nvs\n%s", first, second)
	}
}

func TestAutoSaveTicker(t *testing.T) {
	ctx := context.Background()
	coord, _, storage, _ := newTestCoordinator(t, "AAPL", 20*time.Millisecond)
	mustStart(t, coord)

	if _, err := coord.Create(ctx, lineRequest("segment", 1, 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if got := storage.Load(); len(got) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("auto-save never persisted the overlay")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStopIsIdempotentAndSkipsFinalSave(t *testing.T) {
	ctx := context.Background()
	coord, _, storage, _ := newTestCoordinator(t, "AAPL", time.Hour)
	mustStart(t, coord)

	if _, err := coord.Create(ctx, lineRequest("segment", 1, 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	coord.Stop()
	coord.Stop()

	// Edits made after the last tick are not persisted at shutdown.
	if got := storage.Load(); len(got) != 0 {
		t.Fatalf("storage after stop = %d records, want 0", len(got))
	}
}

func TestEventsPublished(t *testing.T) {
	ctx := context.Background()
	store, err := localstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	broker := relay.NewBroker()
	subID, events := broker.Subscribe()
	defer broker.Unsubscribe(subID)

	storage := overlaystore.NewStorage(store, "AAPL", nil)
	coord := New(engine.NewSim(), storage, broker, Config{Symbol: "AAPL", AutoSave: time.Hour})
	mustStart(t, coord)

	if _, err := coord.Create(ctx, lineRequest("segment", 1, 1)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := coord.SetSymbol(ctx, "GOOGL"); err != nil {
		t.Fatalf("SetSymbol: %v", err)
	}

	wantKinds := []string{relay.KindOverlayCreated, relay.KindSymbolChanged}
	for _, want := range wantKinds {
		select {
		case ev := <-events:
			if ev.Kind != want {
				t.Fatalf("event kind = %q, want %q", ev.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q event", want)
		}
	}
}
