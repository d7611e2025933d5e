package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/kline_agent/internal/engine"
	"github.com/dgnsrekt/kline_agent/internal/overlay"
	"github.com/dgnsrekt/kline_agent/internal/session"
)

func registerOverlayHandlers(api huma.API, svc Service) {
	type catalogOutput struct {
		Body struct {
			Groups []overlay.Group `json:"groups"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "overlay-catalog", Method: http.MethodGet, Path: "/api/v1/overlays/catalog", Summary: "List known overlay types grouped by palette category", Tags: []string{"Overlays"}},
		func(ctx context.Context, input *struct{}) (*catalogOutput, error) {
			out := &catalogOutput{}
			out.Body.Groups = svc.Catalog(ctx)
			return out, nil
		})

	type overlayListOutput struct {
		Body struct {
			Overlays []overlay.Overlay `json:"overlays"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-overlays", Method: http.MethodGet, Path: "/api/v1/overlays", Summary: "List the tracked overlays on the active symbol", Tags: []string{"Overlays"}},
		func(ctx context.Context, input *struct{}) (*overlayListOutput, error) {
			out := &overlayListOutput{}
			out.Body.Overlays = svc.ListOverlays(ctx)
			return out, nil
		})

	type createOverlayInput struct {
		Body struct {
			ID         string          `json:"id,omitempty" doc:"Requested id; the engine may assign a different one"`
			GroupID    string          `json:"groupId,omitempty"`
			Name       string          `json:"name" required:"true" doc:"Overlay type name, e.g. segment or fibonacciLine"`
			Points     []overlay.Point `json:"points,omitempty"`
			Lock       bool            `json:"lock,omitempty"`
			Visible    *bool           `json:"visible,omitempty" doc:"Defaults to true"`
			Mode       overlay.Mode    `json:"mode,omitempty"`
			ExtendData json.RawMessage `json:"extendData,omitempty"`
			Styles     json.RawMessage `json:"styles,omitempty"`
		}
	}
	type createOverlayOutput struct {
		Body struct {
			Overlays []overlay.Overlay `json:"overlays"`
			Status   string            `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "create-overlay", Method: http.MethodPost, Path: "/api/v1/overlays", Summary: "Create and track an overlay", Tags: []string{"Overlays"}},
		func(ctx context.Context, input *createOverlayInput) (*createOverlayOutput, error) {
			visible := true
			if input.Body.Visible != nil {
				visible = *input.Body.Visible
			}
			req := overlay.CreateRequest{
				ID:         input.Body.ID,
				GroupID:    input.Body.GroupID,
				Name:       input.Body.Name,
				Points:     input.Body.Points,
				Lock:       input.Body.Lock,
				Visible:    visible,
				Mode:       input.Body.Mode,
				ExtendData: input.Body.ExtendData,
				Styles:     input.Body.Styles,
			}
			created, err := svc.CreateOverlay(ctx, req)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &createOverlayOutput{}
			out.Body.Overlays = created
			out.Body.Status = "created"
			return out, nil
		})

	type overlayIDInput struct {
		ID string `path:"id"`
	}
	type removeOutput struct {
		Body struct {
			Removed []string `json:"removed"`
			Status  string   `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "remove-overlay", Method: http.MethodDelete, Path: "/api/v1/overlays/{id}", Summary: "Remove a tracked overlay and persist the updated set immediately", Tags: []string{"Overlays"}},
		func(ctx context.Context, input *overlayIDInput) (*removeOutput, error) {
			if err := svc.RemoveOverlay(ctx, input.ID); err != nil {
				return nil, mapErr(err)
			}
			out := &removeOutput{}
			out.Body.Removed = []string{input.ID}
			out.Body.Status = "removed"
			return out, nil
		})

	type groupIDInput struct {
		GroupID string `path:"group_id"`
	}
	huma.Register(api, huma.Operation{OperationID: "remove-overlay-group", Method: http.MethodDelete, Path: "/api/v1/overlays/group/{group_id}", Summary: "Remove every tracked overlay in a tool group", Tags: []string{"Overlays"}},
		func(ctx context.Context, input *groupIDInput) (*removeOutput, error) {
			ids, err := svc.RemoveGroup(ctx, input.GroupID)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &removeOutput{}
			out.Body.Removed = ids
			out.Body.Status = "removed"
			return out, nil
		})

	type overrideInput struct {
		ID   string `path:"id"`
		Body struct {
			Lock    *bool           `json:"lock,omitempty"`
			Visible *bool           `json:"visible,omitempty"`
			Mode    *overlay.Mode   `json:"mode,omitempty"`
			Points  []overlay.Point `json:"points,omitempty"`
		}
	}
	type statusOutput struct {
		Body struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "override-overlay", Method: http.MethodPatch, Path: "/api/v1/overlays/{id}", Summary: "Apply a partial property update to a tracked overlay", Tags: []string{"Overlays"}},
		func(ctx context.Context, input *overrideInput) (*statusOutput, error) {
			ov := engine.Override{
				ID:      input.ID,
				Lock:    input.Body.Lock,
				Visible: input.Body.Visible,
				Mode:    input.Body.Mode,
				Points:  input.Body.Points,
			}
			if err := svc.OverrideOverlay(ctx, ov); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.ID = input.ID
			out.Body.Status = "overridden"
			return out, nil
		})

	type flushOutput struct {
		Body session.Info
	}
	huma.Register(api, huma.Operation{OperationID: "flush-overlays", Method: http.MethodPost, Path: "/api/v1/overlays/flush", Summary: "Persist the tracked overlay set now", Tags: []string{"Overlays"}},
		func(ctx context.Context, input *struct{}) (*flushOutput, error) {
			return &flushOutput{Body: svc.Flush(ctx)}, nil
		})
}
