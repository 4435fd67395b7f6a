package api

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/engine/impl/sketch"
	"LogFlowSketcher/internal/engine/manager"
	"LogFlowSketcher/internal/model"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// fakeCounters counts submitted entries synchronously.
type fakeCounters struct {
	tasks     []model.Task
	submitErr error
	full      bool // Submit blocks like a full queue
}

func (f *fakeCounters) Submit(ctx context.Context, entry *model.LogEntry) error {
	if f.full {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.submitErr != nil {
		return f.submitErr
	}
	for _, t := range f.tasks {
		t.ProcessEntry(entry)
	}
	return nil
}

func (f *fakeCounters) Task(name string) (model.Task, error) {
	for _, t := range f.tasks {
		if t.Name() == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: '%s'", manager.ErrUnknownCounter, name)
}

func (f *fakeCounters) Tasks() []model.Task {
	return f.tasks
}

type fakeQuerier struct {
	records []model.HistoryRecord
	gotTask string
	gotEnd  time.Time
	gotN    int
}

func (q *fakeQuerier) QueryHeavyHitters(_ context.Context, taskName string, end time.Time, limit int) ([]model.HistoryRecord, error) {
	q.gotTask, q.gotEnd, q.gotN = taskName, end, limit
	return q.records, nil
}

type HandlerSuite struct {
	suite.Suite
	cfg      *config.Config
	counters *fakeCounters
	querier  *fakeQuerier
	router   http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.cfg = config.Default()
	s.counters = &fakeCounters{}
	for _, c := range s.cfg.Aggregator.Counters {
		task, err := sketch.New(c)
		s.Require().NoError(err)
		s.counters.tasks = append(s.counters.tasks, task)
	}
	s.querier = &fakeQuerier{}
	s.router = NewRouter(NewHandler(s.cfg, s.counters, s.querier), nil, prometheus.NewRegistry())
}

func (s *HandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) postLog(endpoint string, status int) {
	rec := s.do(http.MethodPost, "/log", fmt.Sprintf(`{"message":"m","endpoint":%q,"status_code":%d}`, endpoint, status))
	s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (s *HandlerSuite) TestIngestAndAnalytics() {
	for range 3 {
		s.postLog("/api/users", 200)
	}
	s.postLog("/api/orders", 500)
	s.postLog("/api/orders", 503)
	s.postLog("/api/pay", 500)

	rec := s.do(http.MethodGet, "/analytics/top-endpoints?k=2", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{
		"data": [["/api/users", 3], ["/api/orders", 2]],
		"algorithm": "Space-Saving Counter",
		"capacity": 50,
		"current_items": 3,
		"minimum": 1
	}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/analytics/top-errors", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	resp := decode[AnalyticsResponse](s.T(), rec)
	s.Equal(20, resp.Capacity)
	s.Equal(2, resp.CurrentItems)
	s.Require().Len(resp.Data, 2)
	s.Equal("500", resp.Data[0][0])
}

func (s *HandlerSuite) TestIngestRejectsInvalidEntries() {
	rec := s.do(http.MethodPost, "/log", `{"message":"m"`)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, "/log", `{"message":"m","endpoint":"/a"}`)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Contains(rec.Body.String(), "status_code")

	s.counters.submitErr = manager.ErrStopped
	rec = s.do(http.MethodPost, "/log", `{"message":"m","endpoint":"/a","status_code":200}`)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *HandlerSuite) TestIngestFullQueueTimesOut() {
	h := NewHandler(s.cfg, s.counters, s.querier)
	h.submitTimeout = 20 * time.Millisecond
	s.router = NewRouter(h, nil, prometheus.NewRegistry())
	s.counters.full = true

	start := time.Now()
	rec := s.do(http.MethodPost, "/log", `{"message":"m","endpoint":"/a","status_code":200}`)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Contains(rec.Body.String(), "deadline exceeded")
	s.Less(time.Since(start), time.Second)
}

func (s *HandlerSuite) TestKParameter() {
	s.postLog("/a", 200)

	rec := s.do(http.MethodGet, "/analytics/top-endpoints?k=abc", "")
	s.Equal(http.StatusBadRequest, rec.Code)

	for _, k := range []string{"0", "-3"} {
		rec = s.do(http.MethodGet, "/analytics/top-endpoints?k="+k, "")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Empty(decode[AnalyticsResponse](s.T(), rec).Data)
		s.Contains(rec.Body.String(), `"data":[]`)
	}

	rec = s.do(http.MethodGet, "/analytics/top-endpoints?k=100", "")
	s.Len(decode[AnalyticsResponse](s.T(), rec).Data, 1)
}

func (s *HandlerSuite) TestUnknownCounter() {
	for _, target := range []string{
		"/analytics/top-nope",
		"/api/v1/counters/nope/top",
		"/api/v1/counters/nope/items/x",
		"/api/v1/history/nope",
	} {
		s.Equal(http.StatusNotFound, s.do(http.MethodGet, target, "").Code, target)
	}
	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/api/v1/counters/nope/reset", "").Code)
}

func (s *HandlerSuite) TestCountersAPI() {
	s.postLog("/a", 200)
	s.postLog("/a", 200)
	s.postLog("/b", 404)

	rec := s.do(http.MethodGet, "/api/v1/counters", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	summaries := decode[[]CounterSummary](s.T(), rec)
	s.Require().Len(summaries, 2)
	s.Equal(CounterSummary{Name: "endpoints", Capacity: 50, Size: 2, Minimum: 1, Observed: 3}, summaries[0])

	rec = s.do(http.MethodGet, "/api/v1/counters/endpoints/top?k=1", "")
	top := decode[TopResponse](s.T(), rec)
	s.Equal([]model.Record{{Item: "/a", Count: 2}}, top.Records)

	rec = s.do(http.MethodGet, "/api/v1/counters/errors/items/404", "")
	s.Equal(ItemResponse{Item: "404", Tracked: true, Count: 1, Guaranteed: 1}, decode[ItemResponse](s.T(), rec))

	rec = s.do(http.MethodGet, "/api/v1/counters/errors/items/418", "")
	s.False(decode[ItemResponse](s.T(), rec).Tracked)

	rec = s.do(http.MethodPost, "/api/v1/counters/endpoints/reset", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/counters/endpoints/top", "")
	s.Empty(decode[TopResponse](s.T(), rec).Records)
}

func (s *HandlerSuite) TestHistory() {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.querier.records = []model.HistoryRecord{{Timestamp: ts, Record: model.Record{Item: "/a", Count: 7}}}

	rec := s.do(http.MethodGet, "/api/v1/history/endpoints?limit=5&end=2025-03-02T00:00:00Z", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[{"timestamp":"2025-03-01T12:00:00Z","item":"/a","count":7,"error":0}]`, rec.Body.String())
	s.Equal("endpoints", s.querier.gotTask)
	s.Equal(5, s.querier.gotN)
	s.Equal(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), s.querier.gotEnd.UTC())

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/history/endpoints?limit=0", "").Code)
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/history/endpoints?end=yesterday", "").Code)

	s.querier.records = nil
	rec = s.do(http.MethodGet, "/api/v1/history/endpoints", "")
	s.Equal("[]", rec.Body.String())
	s.Equal(100, s.querier.gotN)
}

func (s *HandlerSuite) TestHistoryWithoutStore() {
	router := NewRouter(NewHandler(s.cfg, s.counters, nil), nil, prometheus.NewRegistry())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history/endpoints", nil))
	s.Equal(http.StatusNotImplemented, rec.Code)
}

func (s *HandlerSuite) TestStaticRoutes() {
	rec := s.do(http.MethodGet, "/algorithms/space-saving", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"algorithm":"Space-Saving"`)

	rec = s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, rec.Code)

	s.Equal(http.StatusMethodNotAllowed, s.do(http.MethodGet, "/log", "").Code)
}
