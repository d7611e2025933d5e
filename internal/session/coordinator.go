// Package session owns the overlay lifecycle for the currently displayed
// symbol: it tracks live overlay instances, persists them on a timer,
// flushes immediately on removal, and swaps the persisted set when the
// instrument changes.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/kline_agent/internal/engine"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
	"github.com/dgnsrekt/kline_agent/internal/overlaystore"
	"github.com/dgnsrekt/kline_agent/internal/relay"
)

// DefaultAutoSave matches the interval the reference UI persists on.
const DefaultAutoSave = 2 * time.Second

// Config holds coordinator construction options.
type Config struct {
	Symbol   string
	GroupID  string        // tool-group tag applied to toolbar drawings
	AutoSave time.Duration // 0 means DefaultAutoSave
}

// Info is a snapshot of coordinator state for the API layer.
type Info struct {
	Symbol       string `json:"symbol"`
	GroupID      string `json:"group_id"`
	TrackedCount int    `json:"tracked_count"`
	AutoSaveMS   int64  `json:"auto_save_ms"`
}

// Coordinator bridges overlay events to the storage facade. All state is
// guarded by one mutex; the ticker goroutine and HTTP handlers serialize
// through it, so an immediate flush always lands before the next tick's
// persist.
type Coordinator struct {
	eng      engine.Engine
	storage  *overlaystore.Storage
	broker   *relay.Broker // may be nil
	groupID  string
	interval time.Duration

	mu      sync.Mutex
	tracked map[string]overlay.Overlay
	order   []string // insertion order, preserved in persisted records

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a coordinator. Start must be called before use.
func New(eng engine.Engine, storage *overlaystore.Storage, broker *relay.Broker, cfg Config) *Coordinator {
	interval := cfg.AutoSave
	if interval <= 0 {
		interval = DefaultAutoSave
	}
	groupID := cfg.GroupID
	if groupID == "" {
		groupID = overlay.GroupDrawingTools
	}
	return &Coordinator{
		eng:      eng,
		storage:  storage,
		broker:   broker,
		groupID:  groupID,
		interval: interval,
		tracked:  make(map[string]overlay.Overlay),
		done:     make(chan struct{}),
	}
}

// Start loads the persisted records for the bound symbol, recreates them in
// the engine, and starts the auto-save timer.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	c.loadLocked(ctx)
	count := len(c.tracked)
	c.mu.Unlock()

	slog.Info("overlay session started",
		"symbol", c.storage.Symbol(), "restored", count, "auto_save", c.interval)

	c.wg.Add(1)
	go c.autoSaveLoop()
	return nil
}

// Stop cancels the auto-save timer. Deliberately no final save: edits made
// within the last interval before teardown are lost, matching the reference
// behavior. Call Flush first when that matters. Safe to call more than
// once.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		slog.Info("overlay session stopped", "symbol", c.storage.Symbol())
	})
}

// Info returns a state snapshot.
func (c *Coordinator) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{
		Symbol:       c.storage.Symbol(),
		GroupID:      c.groupID,
		TrackedCount: len(c.tracked),
		AutoSaveMS:   c.interval.Milliseconds(),
	}
}

// Tracked returns copies of the tracked overlay snapshots in insertion
// order.
func (c *Coordinator) Tracked() []overlay.Overlay {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]overlay.Overlay, 0, len(c.order))
	for _, id := range c.order {
		if o, ok := c.tracked[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Create asks the engine to instantiate the request and tracks every id
// the engine returns. No immediate persist: the next auto-save tick covers
// it.
func (c *Coordinator) Create(ctx context.Context, req overlay.CreateRequest) ([]overlay.Overlay, error) {
	if req.GroupID == "" {
		req.GroupID = c.groupID
	}
	ids, err := c.eng.CreateOverlay(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	created := make([]overlay.Overlay, 0, len(ids))
	for _, id := range ids {
		live, getErr := c.eng.GetOverlayByID(ctx, id)
		if getErr != nil || live == nil {
			slog.Warn("created overlay not retrievable, skipping track", "id", id, "error", getErr)
			continue
		}
		c.trackLocked(*live)
		created = append(created, *live)
	}
	c.mu.Unlock()

	for _, o := range created {
		c.broker.Publish(relay.JSONEvent(relay.KindOverlayCreated, map[string]string{
			"id": o.ID, "name": o.Name, "group_id": o.GroupID, "symbol": c.storage.Symbol(),
		}))
	}
	return created, nil
}

// Track adds already-created engine overlays (e.g. drawn directly on the
// chart surface) to the tracked set.
func (c *Coordinator) Track(ctx context.Context, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		live, err := c.eng.GetOverlayByID(ctx, id)
		if err != nil || live == nil {
			continue
		}
		c.trackLocked(*live)
	}
}

// Remove deletes one tracked overlay from the engine and persists the
// updated set immediately; deletions must stick even if the tab closes
// before the next tick.
func (c *Coordinator) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	if _, ok := c.tracked[id]; !ok {
		c.mu.Unlock()
		return engine.NewError(engine.CodeOverlayNotFound, "overlay not tracked: "+id, nil)
	}
	if err := c.eng.RemoveOverlay(ctx, engine.Selector{ID: id}); err != nil {
		c.mu.Unlock()
		return err
	}
	c.untrackLocked(id)
	c.persistLocked(ctx)
	c.mu.Unlock()

	c.publishRemoved([]string{id})
	return nil
}

// RemoveGroup deletes every tracked overlay in the group and persists
// immediately. Returns the removed ids.
func (c *Coordinator) RemoveGroup(ctx context.Context, groupID string) ([]string, error) {
	c.mu.Lock()
	var ids []string
	for _, id := range c.order {
		if o, ok := c.tracked[id]; ok && o.GroupID == groupID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		c.mu.Unlock()
		return []string{}, nil
	}
	if err := c.eng.RemoveOverlay(ctx, engine.Selector{GroupID: groupID}); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	for _, id := range ids {
		c.untrackLocked(id)
	}
	c.persistLocked(ctx)
	c.mu.Unlock()

	c.publishRemoved(ids)
	return ids, nil
}

// Override delegates a partial property update straight to the engine. The
// tracked snapshot is refreshed by the next persist, not here.
func (c *Coordinator) Override(ctx context.Context, ov engine.Override) error {
	return c.eng.OverrideOverlay(ctx, ov)
}

// SetSymbol switches the active instrument: flush the current set for the
// old symbol, remove its overlays from the engine, rebind storage, then
// load and recreate the new symbol's set. A no-op when the symbol is
// unchanged.
func (c *Coordinator) SetSymbol(ctx context.Context, symbol string) error {
	if symbol == "" {
		return engine.NewError(engine.CodeValidation, "symbol is required", nil)
	}

	c.mu.Lock()
	old := c.storage.Symbol()
	if symbol == old {
		c.mu.Unlock()
		return nil
	}

	// Flush the old symbol before anything is torn down, so its records
	// survive the switch untouched.
	c.persistLocked(ctx)

	for _, id := range c.order {
		if err := c.eng.RemoveOverlay(ctx, engine.Selector{ID: id}); err != nil {
			slog.Warn("overlay removal during symbol switch failed", "id", id, "error", err)
		}
	}
	c.tracked = make(map[string]overlay.Overlay)
	c.order = nil

	c.storage.SetSymbol(symbol)
	c.loadLocked(ctx)
	count := len(c.tracked)
	c.mu.Unlock()

	slog.Info("overlay session switched symbol", "from", old, "to", symbol, "restored", count)
	c.broker.Publish(relay.JSONEvent(relay.KindSymbolChanged, map[string]any{
		"from": old, "to": symbol, "restored": count,
	}))
	return nil
}

// Flush refreshes every tracked snapshot from the engine and persists the
// full set now.
func (c *Coordinator) Flush(ctx context.Context) {
	c.mu.Lock()
	c.persistLocked(ctx)
	c.mu.Unlock()
}

func (c *Coordinator) autoSaveLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			n := len(c.tracked)
			if n > 0 {
				c.persistLocked(context.Background())
			}
			symbol := c.storage.Symbol()
			c.mu.Unlock()

			if n > 0 {
				c.broker.Publish(relay.JSONEvent(relay.KindAutoSave, map[string]any{
					"symbol": symbol, "count": n,
				}))
			}
		}
	}
}

// loadLocked runs the mount sequence for the currently bound symbol:
// load records, recreate each in the engine, track the resulting ids.
func (c *Coordinator) loadLocked(ctx context.Context) {
	for _, rec := range c.storage.Load() {
		req := overlay.Deserialize(rec)
		ids, err := c.eng.CreateOverlay(ctx, req)
		if err != nil {
			slog.Warn("persisted overlay could not be recreated",
				"name", rec.Name, "id", rec.ID, "error", err)
			continue
		}
		for _, id := range ids {
			live, getErr := c.eng.GetOverlayByID(ctx, id)
			if getErr != nil || live == nil {
				continue
			}
			c.trackLocked(*live)
		}
	}
}

// persistLocked re-reads every tracked overlay from the engine (interactive
// edits happen outside this process's view), drops ids the engine no longer
// knows, and saves the serialized set. The tracked set must stay a subset
// of live engine ids; stale entries are never persisted.
func (c *Coordinator) persistLocked(ctx context.Context) {
	records := make([]overlay.Serialized, 0, len(c.order))
	kept := c.order[:0]
	for _, id := range c.order {
		live, err := c.eng.GetOverlayByID(ctx, id)
		if err != nil {
			// Transient engine failure: keep the last-known snapshot rather
			// than silently dropping the overlay from storage.
			slog.Warn("overlay refresh failed, persisting last snapshot", "id", id, "error", err)
			if o, ok := c.tracked[id]; ok {
				records = append(records, overlay.Serialize(o))
				kept = append(kept, id)
			}
			continue
		}
		if live == nil {
			delete(c.tracked, id)
			continue
		}
		c.tracked[id] = *live
		records = append(records, overlay.Serialize(*live))
		kept = append(kept, id)
	}
	c.order = kept
	c.storage.Save(records)
}

func (c *Coordinator) trackLocked(o overlay.Overlay) {
	if _, ok := c.tracked[o.ID]; !ok {
		c.order = append(c.order, o.ID)
	}
	c.tracked[o.ID] = o
}

func (c *Coordinator) untrackLocked(id string) {
	if _, ok := c.tracked[id]; !ok {
		return
	}
	delete(c.tracked, id)
	for i, tracked := range c.order {
		if tracked == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Coordinator) publishRemoved(ids []string) {
	for _, id := range ids {
		c.broker.Publish(relay.JSONEvent(relay.KindOverlayRemoved, map[string]string{
			"id": id, "symbol": c.storage.Symbol(),
		}))
	}
}
