package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

func registerStorageHandlers(api huma.API, svc Service) {
	type symbolInput struct {
		Symbol string `path:"symbol" doc:"Symbol the records are stored under; URL-encode tickers containing slashes"`
	}
	type recordsOutput struct {
		Body struct {
			Symbol  string               `json:"symbol"`
			Records []overlay.Serialized `json:"records"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "get-stored-overlays", Method: http.MethodGet, Path: "/api/v1/storage/{symbol}", Summary: "Read the persisted overlay records for a symbol", Tags: []string{"Storage"}},
		func(ctx context.Context, input *symbolInput) (*recordsOutput, error) {
			records, err := svc.StoredRecords(ctx, input.Symbol)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &recordsOutput{}
			out.Body.Symbol = input.Symbol
			out.Body.Records = records
			return out, nil
		})

	type clearOutput struct {
		Body struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "clear-stored-overlays", Method: http.MethodDelete, Path: "/api/v1/storage/{symbol}", Summary: "Delete the persisted overlay records for a symbol", Tags: []string{"Storage"}},
		func(ctx context.Context, input *symbolInput) (*clearOutput, error) {
			if err := svc.ClearStored(ctx, input.Symbol); err != nil {
				return nil, mapErr(err)
			}
			out := &clearOutput{}
			out.Body.Symbol = input.Symbol
			out.Body.Status = "cleared"
			return out, nil
		})
}
