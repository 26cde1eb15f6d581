package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/tabcycle/internal/controller"
	"github.com/dgnsrekt/tabcycle/internal/cycle"
	"github.com/dgnsrekt/tabcycle/internal/recency"
	"github.com/dgnsrekt/tabcycle/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	ListTabs(ctx context.Context) ([]controller.TabView, error)
	ClearTabs(ctx context.Context) error
	OpenTab(ctx context.Context, tabID int64) error
	GetSettings(ctx context.Context) (recency.Settings, error)
	UpdateSettings(ctx context.Context, upd controller.SettingsUpdate) (recency.Settings, error)
	RunCommand(ctx context.Context, name string) (cycle.Result, error)
	IngestEvent(ctx context.Context, evt types.TabEvent) error
}

type serverOptions struct {
	stream  http.Handler
	metrics http.Handler
}

type ServerOption func(*serverOptions)

// WithStream mounts the Server-Sent Events handler at /api/v1/stream.
func WithStream(h http.Handler) ServerOption { return func(o *serverOptions) { o.stream = h } }

// WithMetrics mounts a Prometheus handler at /metrics.
func WithMetrics(h http.Handler) ServerOption { return func(o *serverOptions) { o.metrics = h } }

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func newStatus(status string) *statusOutput {
	out := &statusOutput{}
	out.Body.Status = status
	return out
}

func NewServer(svc Service, opts ...ServerOption) http.Handler {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Tab Cycle API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/stream", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(streamDocsHTML)); err != nil {
			slog.Debug("stream docs response write failed", "error", err)
		}
	})
	if o.stream != nil {
		router.Handle("/api/v1/stream", o.stream)
	}
	if o.metrics != nil {
		router.Handle("/metrics", o.metrics)
	}

	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			return newStatus("ok"), nil
		})

	registerTabHandlers(api, svc)
	registerSettingsHandlers(api, svc)
	registerCommandHandlers(api, svc)
	registerEventHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *types.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case types.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case types.CodeTabNotFound, types.CodeWindowNotFound:
			return huma.Error404NotFound(coded.Message)
		case types.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
