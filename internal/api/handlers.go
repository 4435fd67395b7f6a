package api

import (
	"LogFlowSketcher/internal/engine/manager"
	"LogFlowSketcher/internal/model"
	"LogFlowSketcher/internal/prom"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const maxEntryBytes = 1 << 20

// submitTimeout bounds how long POST /log waits for room in a full queue.
const submitTimeout = 2 * time.Second

// AnalyticsResponse is the response of the /analytics/top-{name} routes.
// Data holds [item, count] pairs.
type AnalyticsResponse struct {
	Data         [][2]any `json:"data"`
	Algorithm    string   `json:"algorithm"`
	Capacity     int      `json:"capacity"`
	CurrentItems int      `json:"current_items"`
	Minimum      uint64   `json:"minimum"`
}

// CounterSummary describes the state of one counter.
type CounterSummary struct {
	Name      string `json:"name"`
	Capacity  int    `json:"capacity"`
	Size      int    `json:"size"`
	Minimum   uint64 `json:"minimum"`
	Observed  uint64 `json:"observed"`
	Evictions uint64 `json:"evictions"`
}

// TopResponse lists the top records of a counter.
type TopResponse struct {
	Counter string         `json:"counter"`
	K       int            `json:"k"`
	Records []model.Record `json:"records"`
	Minimum uint64         `json:"minimum"`
}

// ItemResponse is the point estimate of a single item.
type ItemResponse struct {
	Item       string `json:"item"`
	Tracked    bool   `json:"tracked"`
	Count      uint64 `json:"count"`
	Error      uint64 `json:"error"`
	Guaranteed uint64 `json:"guaranteed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// parseK reads the k query parameter, falling back to the default.
func (h *Handler) parseK(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("k")
	if raw == "" {
		return h.defaultK, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("k must be an integer, got '%s'", raw)
	}
	return k, nil
}

// lookup resolves the {name} route variable, writing a 404 if it is unknown.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (model.Task, bool) {
	name := mux.Vars(r)["name"]
	task, err := h.counters.Task(name)
	if err != nil {
		if errors.Is(err, manager.ErrUnknownCounter) {
			writeError(w, http.StatusNotFound, "unknown counter '%s'", name)
		} else {
			writeError(w, http.StatusInternalServerError, "%v", err)
		}
		return nil, false
	}
	return task, true
}

// ingestLog accepts a single JSON log entry for counting.
func (h *Handler) ingestLog(w http.ResponseWriter, r *http.Request) {
	prom.EntriesReceived.WithLabelValues("http").Inc()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEntryBytes))
	if err != nil {
		prom.EntriesRejected.WithLabelValues("http", "read").Inc()
		writeError(w, http.StatusBadRequest, "failed to read request body: %v", err)
		return
	}

	entry, err := model.NewLogEntry(body, "http", h.requiredFields)
	if err != nil {
		prom.EntriesRejected.WithLabelValues("http", "invalid").Inc()
		writeError(w, http.StatusUnprocessableEntity, "%v", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.submitTimeout)
	defer cancel()
	if err := h.counters.Submit(ctx, entry); err != nil {
		prom.EntriesRejected.WithLabelValues("http", "submit").Inc()
		writeError(w, http.StatusServiceUnavailable, "failed to submit entry: %v", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "success",
		"message": "Log processed by streaming algorithm",
	})
}

func (h *Handler) analyticsTop(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}
	k, err := h.parseK(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	records := task.TopK(k)
	data := make([][2]any, len(records))
	for i, rec := range records {
		data[i] = [2]any{rec.Item, rec.Count}
	}
	m := task.Metrics()
	writeJSON(w, http.StatusOK, AnalyticsResponse{
		Data:         data,
		Algorithm:    "Space-Saving Counter",
		Capacity:     m.Capacity,
		CurrentItems: m.Size,
		Minimum:      m.Minimum,
	})
}

func (h *Handler) listCounters(w http.ResponseWriter, _ *http.Request) {
	tasks := h.counters.Tasks()
	summaries := make([]CounterSummary, len(tasks))
	for i, t := range tasks {
		m := t.Metrics()
		summaries[i] = CounterSummary{
			Name:      t.Name(),
			Capacity:  m.Capacity,
			Size:      m.Size,
			Minimum:   m.Minimum,
			Observed:  m.Observed,
			Evictions: m.Evictions,
		}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) counterTop(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}
	k, err := h.parseK(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, TopResponse{
		Counter: task.Name(),
		K:       k,
		Records: task.TopK(k),
		Minimum: task.Metrics().Minimum,
	})
}

func (h *Handler) counterItem(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}
	item := mux.Vars(r)["item"]
	rec, tracked := task.Estimate(item)
	writeJSON(w, http.StatusOK, ItemResponse{
		Item:       item,
		Tracked:    tracked,
		Count:      rec.Count,
		Error:      rec.Error,
		Guaranteed: rec.Count - rec.Error,
	})
}

func (h *Handler) resetCounter(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}
	task.Reset()
	log.Info().Str("counter", task.Name()).Msg("counter reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "counter": task.Name()})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	task, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if h.querier == nil {
		writeError(w, http.StatusNotImplemented, "no history store is configured")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer, got '%s'", raw)
			return
		}
	}
	var end time.Time
	if raw := r.URL.Query().Get("end"); raw != "" {
		var err error
		if end, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, http.StatusBadRequest, "end must be an RFC 3339 timestamp: %v", err)
			return
		}
	}

	records, err := h.querier.QueryHeavyHitters(r.Context(), task.Name(), end, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query history: %v", err)
		return
	}
	if records == nil {
		records = []model.HistoryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) algorithmInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"algorithm": "Space-Saving",
		"purpose":   "Find frequent items in data streams with limited memory",
		"use_cases": []string{
			"Real-time API monitoring",
			"Network traffic analysis",
			"Error rate detection",
			"Trend identification in high-volume data",
		},
		"trade_offs": map[string]string{
			"advantage":  "Constant memory usage, real-time processing",
			"limitation": "Approximate counts, not exact frequencies",
		},
		"guarantees": map[string]string{
			"overestimation": "count - error <= true frequency <= count for every tracked item",
			"minimum":        "any item with true frequency above the minimum count is tracked",
		},
	})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
