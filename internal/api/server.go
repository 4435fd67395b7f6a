// Package api serves the counters over HTTP.
package api

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/logging"
	"LogFlowSketcher/internal/model"
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters is the part of the engine the API needs.
type Counters interface {
	Submit(ctx context.Context, entry *model.LogEntry) error
	Task(name string) (model.Task, error)
	Tasks() []model.Task
}

// Handler holds the dependencies for the API handlers.
type Handler struct {
	counters       Counters
	querier        model.Querier
	requiredFields []string
	defaultK       int
	submitTimeout  time.Duration
}

// NewHandler creates the API handlers. querier may be nil when no history
// store is configured.
func NewHandler(cfg *config.Config, counters Counters, querier model.Querier) *Handler {
	return &Handler{
		counters:       counters,
		querier:        querier,
		requiredFields: cfg.Ingest.RequiredFields,
		defaultK:       cfg.API.DefaultK,
		submitTimeout:  submitTimeout,
	}
}

// NewRouter registers every route. gatherer serves /metrics.
func NewRouter(h *Handler, accessLog *logging.AccessLog, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()

	route := func(method, path string, fn http.HandlerFunc) {
		r.HandleFunc(path, MetricHandler(path, accessLog, fn)).Methods(method)
	}

	route(http.MethodPost, "/log", h.ingestLog)
	route(http.MethodGet, "/analytics/top-{name}", h.analyticsTop)
	route(http.MethodGet, "/algorithms/space-saving", h.algorithmInfo)

	route(http.MethodGet, "/api/v1/counters", h.listCounters)
	route(http.MethodGet, "/api/v1/counters/{name}/top", h.counterTop)
	route(http.MethodGet, "/api/v1/counters/{name}/items/{item}", h.counterItem)
	route(http.MethodPost, "/api/v1/counters/{name}/reset", h.resetCounter)
	route(http.MethodGet, "/api/v1/history/{name}", h.history)

	route(http.MethodGet, "/healthz", h.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}
