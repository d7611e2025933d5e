package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/kline_agent/internal/session"
)

func registerSessionHandlers(api huma.API, svc Service) {
	type sessionOutput struct {
		Body session.Info
	}
	huma.Register(api, huma.Operation{OperationID: "get-session", Method: http.MethodGet, Path: "/api/v1/session", Summary: "Get the active symbol and tracked overlay count", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*sessionOutput, error) {
			return &sessionOutput{Body: svc.SessionInfo(ctx)}, nil
		})

	type switchSymbolInput struct {
		Body struct {
			Symbol string `json:"symbol" required:"true" doc:"Ticker to switch the session to, e.g. AAPL or BTC/USDT"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "switch-symbol", Method: http.MethodPut, Path: "/api/v1/session/symbol", Summary: "Switch the active symbol, flushing the old symbol's overlays first", Tags: []string{"Session"}},
		func(ctx context.Context, input *switchSymbolInput) (*sessionOutput, error) {
			info, err := svc.SwitchSymbol(ctx, input.Body.Symbol)
			if err != nil {
				return nil, mapErr(err)
			}
			return &sessionOutput{Body: info}, nil
		})

	type healthOutput struct {
		Body struct {
			Status  string       `json:"status"`
			Session session.Info `json:"session"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/v1/health", Summary: "Service health", Tags: []string{"Session"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Session = svc.SessionInfo(ctx)
			return out, nil
		})
}
