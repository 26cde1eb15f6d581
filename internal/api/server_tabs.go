package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/tabcycle/internal/controller"
	"github.com/dgnsrekt/tabcycle/internal/cycle"
	"github.com/dgnsrekt/tabcycle/internal/recency"
	"github.com/dgnsrekt/tabcycle/internal/types"
)

type tabIDInput struct {
	TabID int64 `path:"tab_id" doc:"Browser tab id"`
}

func registerTabHandlers(api huma.API, svc Service) {
	type listTabsOutput struct {
		Body struct {
			Tabs []controller.TabView `json:"tabs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List recently activated tabs, most recent first", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*listTabsOutput, error) {
			tabs, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listTabsOutput{}
			out.Body.Tabs = tabs
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-tabs", Method: http.MethodDelete, Path: "/api/v1/tabs", Summary: "Clear the recency history", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			if err := svc.ClearTabs(ctx); err != nil {
				return nil, mapErr(err)
			}
			return newStatus("cleared"), nil
		})

	huma.Register(api, huma.Operation{OperationID: "activate-tab", Method: http.MethodPost, Path: "/api/v1/tabs/{tab_id}/activate", Summary: "Activate a tracked tab and focus its window", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *tabIDInput) (*statusOutput, error) {
			if err := svc.OpenTab(ctx, input.TabID); err != nil {
				return nil, mapErr(err)
			}
			return newStatus("activated"), nil
		})
}

func registerSettingsHandlers(api huma.API, svc Service) {
	type settingsOutput struct {
		Body recency.Settings
	}
	huma.Register(api, huma.Operation{OperationID: "get-settings", Method: http.MethodGet, Path: "/api/v1/settings", Summary: "Get tracking and cycling settings", Tags: []string{"Settings"}},
		func(ctx context.Context, input *struct{}) (*settingsOutput, error) {
			s, err := svc.GetSettings(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &settingsOutput{Body: s}, nil
		})

	type updateSettingsInput struct {
		Body struct {
			MaxTrackedTabs *int `json:"maxTrackedTabs,omitempty" doc:"List cap, 5 to 50"`
			TabCycleLimit  *int `json:"tabCycleLimit,omitempty" doc:"Cycle window size, greater than 0. Saving resets the cursor to 1."`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "update-settings", Method: http.MethodPut, Path: "/api/v1/settings", Summary: "Update tracking and cycling settings", Tags: []string{"Settings"}},
		func(ctx context.Context, input *updateSettingsInput) (*settingsOutput, error) {
			s, err := svc.UpdateSettings(ctx, controller.SettingsUpdate{
				MaxTrackedTabs: input.Body.MaxTrackedTabs,
				TabCycleLimit:  input.Body.TabCycleLimit,
			})
			if err != nil {
				return nil, mapErr(err)
			}
			return &settingsOutput{Body: s}, nil
		})
}

func registerCommandHandlers(api huma.API, svc Service) {
	type commandInput struct {
		Command string `path:"command" example:"cycle-clicked-tabs"`
	}
	type commandOutput struct {
		Body cycle.Result
	}
	huma.Register(api, huma.Operation{OperationID: "run-command", Method: http.MethodPost, Path: "/api/v1/commands/{command}", Summary: "Trigger a named command", Tags: []string{"Commands"}},
		func(ctx context.Context, input *commandInput) (*commandOutput, error) {
			res, err := svc.RunCommand(ctx, input.Command)
			if err != nil {
				return nil, mapErr(err)
			}
			return &commandOutput{Body: res}, nil
		})
}

func registerEventHandlers(api huma.API, svc Service) {
	type eventInput struct {
		Kind string `path:"kind" enum:"activated,updated,removed"`
		Body struct {
			TabID      int64            `json:"tab_id" minimum:"1"`
			ChangeInfo types.ChangeInfo `json:"change_info,omitempty"`
			Tab        struct {
				Title string `json:"title,omitempty"`
				URL   string `json:"url,omitempty"`
			} `json:"tab,omitempty" doc:"Tab snapshot after the change, used by updated events"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "ingest-event", Method: http.MethodPost, Path: "/api/v1/events/{kind}", Summary: "Report a tab lifecycle event from an external source", Tags: []string{"Events"}},
		func(ctx context.Context, input *eventInput) (*statusOutput, error) {
			err := svc.IngestEvent(ctx, types.TabEvent{
				Kind:   types.EventKind(input.Kind),
				TabID:  input.Body.TabID,
				Change: input.Body.ChangeInfo,
				Tab:    types.Tab{ID: input.Body.TabID, Title: input.Body.Tab.Title, URL: input.Body.Tab.URL},
			})
			if err != nil {
				return nil, mapErr(err)
			}
			return newStatus("accepted"), nil
		})
}
