// Package api exposes the overlay persistence service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/kline_agent/internal/engine"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
	"github.com/dgnsrekt/kline_agent/internal/relay"
	"github.com/dgnsrekt/kline_agent/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	SessionInfo(ctx context.Context) session.Info
	SwitchSymbol(ctx context.Context, symbol string) (session.Info, error)
	ListOverlays(ctx context.Context) []overlay.Overlay
	CreateOverlay(ctx context.Context, req overlay.CreateRequest) ([]overlay.Overlay, error)
	RemoveOverlay(ctx context.Context, id string) error
	RemoveGroup(ctx context.Context, groupID string) ([]string, error)
	OverrideOverlay(ctx context.Context, ov engine.Override) error
	Flush(ctx context.Context) session.Info
	Catalog(ctx context.Context) []overlay.Group
	StoredRecords(ctx context.Context, symbol string) ([]overlay.Serialized, error)
	ClearStored(ctx context.Context, symbol string) error
	SyncToCloud(ctx context.Context) error
	SyncFromCloud(ctx context.Context) ([]overlay.Serialized, error)
}

// NewServer builds the HTTP handler. broker may be nil, in which case the
// SSE stream is not mounted.
func NewServer(svc Service, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Overlay Persistence API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	if broker != nil {
		router.Get("/api/v1/events", relay.SSEHandler(broker))
	}

	registerSessionHandlers(api, svc)
	registerOverlayHandlers(api, svc)
	registerStorageHandlers(api, svc)
	registerSyncHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *engine.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case engine.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case engine.CodeOverlayNotFound:
			return huma.Error404NotFound(coded.Message)
		case engine.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case engine.CodeAPIUnavailable, engine.CodeCDPUnavailable, engine.CodeCloudUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
