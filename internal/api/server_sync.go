package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

func registerSyncHandlers(api huma.API, svc Service) {
	type pushOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "sync-push", Method: http.MethodPost, Path: "/api/v1/sync/push", Summary: "Upload the active symbol's overlay records to the cloud provider", Tags: []string{"Sync"}},
		func(ctx context.Context, input *struct{}) (*pushOutput, error) {
			if err := svc.SyncToCloud(ctx); err != nil {
				return nil, mapErr(err)
			}
			out := &pushOutput{}
			out.Body.Status = "pushed"
			return out, nil
		})

	type pullOutput struct {
		Body struct {
			Records []overlay.Serialized `json:"records"`
			Status  string               `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "sync-pull", Method: http.MethodPost, Path: "/api/v1/sync/pull", Summary: "Download the active symbol's overlay records and save them locally", Tags: []string{"Sync"}},
		func(ctx context.Context, input *struct{}) (*pullOutput, error) {
			records, err := svc.SyncFromCloud(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &pullOutput{}
			out.Body.Records = records
			out.Body.Status = "pulled"
			return out, nil
		})
}
