package overlaystore

import (
	"context"
	"sync"

	"github.com/dgnsrekt/kline_agent/internal/localstore"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

// CloudProvider is the optional remote side of overlay persistence. The
// embedding application supplies one; the core calls each method at most
// once per explicit sync request and propagates errors unchanged. No retry
// or backoff policy is imposed here.
type CloudProvider interface {
	Upload(ctx context.Context, symbol string, records []overlay.Serialized) error
	Download(ctx context.Context, symbol string) ([]overlay.Serialized, error)
}

// Storage scopes overlay persistence to one symbol at a time. Local
// operations are synchronous and best-effort; cloud sync is explicit and
// may fail. Storage never touches the charting engine.
type Storage struct {
	store localstore.Store
	cloud CloudProvider // nil when the application supplies none

	mu     sync.Mutex
	symbol string
}

// NewStorage binds a storage facade to an initial symbol. cloud may be nil.
func NewStorage(store localstore.Store, symbol string, cloud CloudProvider) *Storage {
	return &Storage{store: store, cloud: cloud, symbol: symbol}
}

// SetSymbol rescopes all subsequent local operations. It does not save,
// load, or clear anything by itself.
func (s *Storage) SetSymbol(symbol string) {
	s.mu.Lock()
	s.symbol = symbol
	s.mu.Unlock()
}

// Symbol returns the currently bound symbol.
func (s *Storage) Symbol() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.symbol
}

// Save persists records under the current symbol, best-effort.
func (s *Storage) Save(records []overlay.Serialized) {
	SaveLocal(s.store, s.Symbol(), records)
}

// Load reads the records stored under the current symbol.
func (s *Storage) Load() []overlay.Serialized {
	return LoadLocal(s.store, s.Symbol())
}

// Clear removes the records stored under the current symbol.
func (s *Storage) Clear() {
	ClearLocal(s.store, s.Symbol())
}

// SyncToCloud uploads the current local records. A no-op when no provider
// is bound. Provider errors are returned unchanged.
func (s *Storage) SyncToCloud(ctx context.Context) error {
	if s.cloud == nil {
		return nil
	}
	symbol := s.Symbol()
	return s.cloud.Upload(ctx, symbol, LoadLocal(s.store, symbol))
}

// SyncFromCloud downloads records, saves them locally, and returns them.
// Returns an empty slice when no provider is bound.
func (s *Storage) SyncFromCloud(ctx context.Context) ([]overlay.Serialized, error) {
	if s.cloud == nil {
		return []overlay.Serialized{}, nil
	}
	symbol := s.Symbol()
	records, err := s.cloud.Download(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []overlay.Serialized{}
	}
	SaveLocal(s.store, symbol, records)
	return records, nil
}
