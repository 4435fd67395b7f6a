package manager

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/engine/impl/sketch"
	"LogFlowSketcher/internal/model"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Ingest.NumWorkers = 2
	cfg.Ingest.SizeOfEntryChannel = 16
	cfg.Aggregator.Writers = []config.WriterDef{
		{Type: "text", Enabled: true, SnapshotInterval: "1h", TopK: 5, Text: config.TextConfig{RootPath: filepath.Join(t.TempDir(), "text")}},
		{Type: "sqlite", Enabled: true, SnapshotInterval: "1h", TopK: 5, SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "snap.db")}},
	}
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func logEntry(endpoint string, status int) *model.LogEntry {
	return &model.LogEntry{
		Raw:        fmt.Appendf(nil, `{"message":"m","endpoint":%q,"status_code":%d}`, endpoint, status),
		Source:     "test",
		ReceivedAt: time.Now(),
	}
}

func TestManagerCountsAndSnapshotsOnStop(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	m.Start()

	ctx := context.Background()
	for range 5 {
		require.NoError(t, m.Submit(ctx, logEntry("/api/users", 200)))
	}
	for range 3 {
		require.NoError(t, m.Submit(ctx, logEntry("/api/orders", 500)))
	}
	require.NoError(t, m.Submit(ctx, logEntry("/api/pay", 404)))
	m.Stop()

	endpoints, err := m.Task("endpoints")
	require.NoError(t, err)
	assert.Equal(t, []model.Record{
		{Item: "/api/users", Count: 5},
		{Item: "/api/orders", Count: 3},
	}, endpoints.TopK(2))

	errorCodes, err := m.Task("errors")
	require.NoError(t, err)
	assert.Equal(t, []model.Record{{Item: "500", Count: 3}, {Item: "404", Count: 1}}, errorCodes.TopK(10))

	// final snapshot of the text writer
	matches, err := filepath.Glob(filepath.Join(cfg.Aggregator.Writers[0].Text.RootPath, "*", "endpoints", "topk.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "/api/users 5 0")

	require.ErrorIs(t, m.Submit(ctx, logEntry("/late", 200)), ErrStopped)
	m.Stop()
}

func TestManagerLookup(t *testing.T) {
	m, err := NewManager(testConfig(t))
	require.NoError(t, err)
	defer m.Stop()

	_, err = m.Task("nope")
	assert.ErrorIs(t, err, ErrUnknownCounter)

	names := make([]string, 0)
	for _, task := range m.Tasks() {
		names = append(names, task.Name())
	}
	assert.Equal(t, []string{"endpoints", "errors"}, names)

	assert.NotNil(t, m.Querier(), "the sqlite writer serves history")
}

func TestManagerSnapshotRoundKeepsEveryCounterHistory(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg)
	require.NoError(t, err)
	m.Start()

	ctx := context.Background()
	require.NoError(t, m.Submit(ctx, logEntry("/api/users", 200)))
	require.NoError(t, m.Submit(ctx, logEntry("/api/pay", 404)))
	m.Stop()

	store, err := sketch.NewSQLiteWriter(cfg.Aggregator.Writers[1].SQLite.Path, time.Hour, 5)
	require.NoError(t, err)
	defer store.Close()

	endpoints, err := store.QueryHeavyHitters(ctx, "endpoints", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, endpoints, 2)
	assert.ElementsMatch(t, []string{"/api/users", "/api/pay"}, []string{endpoints[0].Item, endpoints[1].Item})

	errorCodes, err := store.QueryHeavyHitters(ctx, "errors", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, errorCodes, 1)
	assert.Equal(t, "404", errorCodes[0].Item)
}

func TestManagerQuerierNilWithoutHistoryWriter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Aggregator.Writers = cfg.Aggregator.Writers[:1]
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Stop()

	assert.Nil(t, m.Querier())
}

func TestSubmitHonoursContext(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.SizeOfEntryChannel = 1
	m, err := NewManager(cfg)
	require.NoError(t, err)

	// workers are not running, so the queue fills up
	require.NoError(t, m.Submit(context.Background(), logEntry("/a", 200)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Submit(ctx, logEntry("/b", 200)), context.DeadlineExceeded)

	m.Start()
	m.Stop()
}

func TestManagerDedupe(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.DedupeKeyPath = "request_id"
	cfg.Ingest.DedupeCacheBytes = 1 << 16
	m, err := NewManager(cfg)
	require.NoError(t, err)
	m.Start()

	ctx := context.Background()
	submit := func(raw string) {
		require.NoError(t, m.Submit(ctx, &model.LogEntry{Raw: []byte(raw)}))
	}
	submit(`{"request_id":"r1","endpoint":"/a","status_code":200}`)
	submit(`{"request_id":"r1","endpoint":"/a","status_code":200}`) // redelivery
	submit(`{"request_id":"r2","endpoint":"/a","status_code":200}`)
	submit(`{"endpoint":"/a","status_code":200}`) // no key, never deduplicated
	submit(`{"endpoint":"/a","status_code":200}`)
	m.Stop()

	endpoints, err := m.Task("endpoints")
	require.NoError(t, err)
	r, ok := endpoints.Estimate("/a")
	require.True(t, ok)
	assert.Equal(t, uint64(4), r.Count)
}

func TestNewManagerFailsOnUnknownType(t *testing.T) {
	cfg := testConfig(t)
	cfg.Aggregator.Types = []string{"countmin"}
	_, err := NewManager(cfg)
	assert.ErrorContains(t, err, "unknown aggregator type")
}

func TestNewManagerWithAlerter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alerter = config.AlerterConfig{
		Enabled:       true,
		CheckInterval: "1h",
		Notifier:      "log",
		Rules:         []config.AlerterRule{{Name: "r", TaskName: "errors", Metric: "item_count", Operator: ">", Threshold: 10}},
	}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	require.NotNil(t, m.alerter)
	m.Start()

	ok := m.UpdateAlertRules([]config.AlerterRule{
		{Name: "r2", TaskName: "endpoints", Metric: "size", Operator: ">", Threshold: 1},
		{Name: "gone", TaskName: "latency", Metric: "size", Operator: ">", Threshold: 1},
	})
	require.True(t, ok)
	rules := m.alerter.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "r2", rules[0].Name)

	m.Stop()
}

func TestUpdateAlertRulesWithoutAlerter(t *testing.T) {
	m, err := NewManager(testConfig(t))
	require.NoError(t, err)
	defer m.Stop()
	assert.False(t, m.UpdateAlertRules(nil))
}
