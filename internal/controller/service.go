// Package controller validates API input and dispatches to the session
// coordinator and the storage facade.
package controller

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/kline_agent/internal/engine"
	"github.com/dgnsrekt/kline_agent/internal/localstore"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
	"github.com/dgnsrekt/kline_agent/internal/overlaystore"
	"github.com/dgnsrekt/kline_agent/internal/session"
)

// chartSymbolSetter is implemented by engines that can switch the
// instrument shown on an attached chart page.
type chartSymbolSetter interface {
	SetChartSymbol(ctx context.Context, ticker string) error
}

// Service wraps overlay persistence operations.
type Service struct {
	eng     engine.Engine
	coord   *session.Coordinator
	storage *overlaystore.Storage
	store   localstore.Store
}

func NewService(eng engine.Engine, coord *session.Coordinator, storage *overlaystore.Storage, store localstore.Store) *Service {
	return &Service{eng: eng, coord: coord, storage: storage, store: store}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &engine.CodedError{Code: engine.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

// SessionInfo reports the active symbol and tracked overlay count.
func (s *Service) SessionInfo(context.Context) session.Info {
	return s.coord.Info()
}

// SwitchSymbol rebinds the session to a new instrument. When the engine
// drives a live chart page, the page is switched first; a page that refuses
// the switch does not block local persistence from rescoping.
func (s *Service) SwitchSymbol(ctx context.Context, symbol string) (session.Info, error) {
	if err := s.requireNonEmpty(symbol, "symbol"); err != nil {
		return session.Info{}, err
	}
	symbol = strings.TrimSpace(symbol)

	if setter, ok := s.eng.(chartSymbolSetter); ok {
		if err := setter.SetChartSymbol(ctx, symbol); err != nil {
			slog.Warn("chart page symbol switch failed", "symbol", symbol, "error", err)
		}
	}
	if err := s.coord.SetSymbol(ctx, symbol); err != nil {
		return session.Info{}, err
	}
	return s.coord.Info(), nil
}

// ListOverlays returns the tracked overlay snapshots.
func (s *Service) ListOverlays(context.Context) []overlay.Overlay {
	return s.coord.Tracked()
}

// CreateOverlay instantiates and tracks a new overlay.
func (s *Service) CreateOverlay(ctx context.Context, req overlay.CreateRequest) ([]overlay.Overlay, error) {
	if err := s.requireNonEmpty(req.Name, "name"); err != nil {
		return nil, err
	}
	return s.coord.Create(ctx, req)
}

// RemoveOverlay removes one tracked overlay by id.
func (s *Service) RemoveOverlay(ctx context.Context, id string) error {
	if err := s.requireNonEmpty(id, "id"); err != nil {
		return err
	}
	return s.coord.Remove(ctx, strings.TrimSpace(id))
}

// RemoveGroup removes every tracked overlay in a tool group.
func (s *Service) RemoveGroup(ctx context.Context, groupID string) ([]string, error) {
	if err := s.requireNonEmpty(groupID, "group_id"); err != nil {
		return nil, err
	}
	return s.coord.RemoveGroup(ctx, strings.TrimSpace(groupID))
}

// OverrideOverlay applies a partial property update to a tracked overlay.
func (s *Service) OverrideOverlay(ctx context.Context, ov engine.Override) error {
	if err := s.requireNonEmpty(ov.ID, "id"); err != nil {
		return err
	}
	return s.coord.Override(ctx, ov)
}

// Flush persists the tracked set now and reports the resulting state.
func (s *Service) Flush(ctx context.Context) session.Info {
	s.coord.Flush(ctx)
	return s.coord.Info()
}

// Catalog lists the known overlay types by tool group.
func (s *Service) Catalog(context.Context) []overlay.Group {
	return overlay.Groups
}

// StoredRecords reads the persisted records for any symbol, not just the
// active one.
func (s *Service) StoredRecords(_ context.Context, symbol string) ([]overlay.Serialized, error) {
	if err := s.requireNonEmpty(symbol, "symbol"); err != nil {
		return nil, err
	}
	return overlaystore.LoadLocal(s.store, strings.TrimSpace(symbol)), nil
}

// ClearStored deletes the persisted records for any symbol.
func (s *Service) ClearStored(_ context.Context, symbol string) error {
	if err := s.requireNonEmpty(symbol, "symbol"); err != nil {
		return err
	}
	overlaystore.ClearLocal(s.store, strings.TrimSpace(symbol))
	return nil
}

// SyncToCloud uploads the active symbol's records to the cloud provider.
// Provider failures come back as CLOUD_UNAVAILABLE so the API maps them to
// a gateway error instead of a generic 500.
func (s *Service) SyncToCloud(ctx context.Context) error {
	// Persist first so the upload reflects the live set, not the last tick.
	s.coord.Flush(ctx)
	if err := s.storage.SyncToCloud(ctx); err != nil {
		return engine.NewError(engine.CodeCloudUnavailable, "cloud upload failed", err)
	}
	return nil
}

// SyncFromCloud downloads the active symbol's records, saves them locally,
// and returns them. The live chart is not touched; switch symbols or
// restart the session to materialize the downloaded set.
func (s *Service) SyncFromCloud(ctx context.Context) ([]overlay.Serialized, error) {
	records, err := s.storage.SyncFromCloud(ctx)
	if err != nil {
		return nil, engine.NewError(engine.CodeCloudUnavailable, "cloud download failed", err)
	}
	return records, nil
}
