// Package overlaystore implements the symbol-scoped overlay persistence
// layer: the storage key format, best-effort local save/load/clear, the
// cloud sync contract, and the Storage facade that ties them together.
package overlaystore

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/dgnsrekt/kline_agent/internal/localstore"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

// keyPrefix must not change: existing deployments already hold records
// under these keys.
const keyPrefix = "klinecharts-pro-overlays"

// Key formats the storage key for a symbol, e.g.
// "klinecharts-pro-overlays-AAPL".
func Key(symbol string) string {
	return keyPrefix + "-" + symbol
}

// SaveLocal persists records for a symbol. Persistence is best-effort:
// encode or store failures are logged and swallowed, never surfaced to the
// caller. A nil records slice is stored as an empty array.
func SaveLocal(store localstore.Store, symbol string, records []overlay.Serialized) {
	if records == nil {
		records = []overlay.Serialized{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		slog.Warn("overlay save skipped, encode failed", "symbol", symbol, "error", err)
		return
	}
	if err := store.Set(Key(symbol), data); err != nil {
		slog.Warn("overlay save failed", "symbol", symbol, "error", err)
	}
}

// LoadLocal reads the records for a symbol. An absent key, a store
// failure, and corrupt stored JSON all yield an empty slice; LoadLocal
// never fails.
func LoadLocal(store localstore.Store, symbol string) []overlay.Serialized {
	data, err := store.Get(Key(symbol))
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			slog.Warn("overlay load failed", "symbol", symbol, "error", err)
		}
		return []overlay.Serialized{}
	}

	var records []overlay.Serialized
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Warn("overlay load discarded corrupt data", "symbol", symbol, "error", err)
		return []overlay.Serialized{}
	}
	if records == nil {
		records = []overlay.Serialized{}
	}
	return records
}

// ClearLocal removes the records for a symbol. Failures are logged, not
// returned.
func ClearLocal(store localstore.Store, symbol string) {
	if err := store.Delete(Key(symbol)); err != nil {
		slog.Warn("overlay clear failed", "symbol", symbol, "error", err)
	}
}
