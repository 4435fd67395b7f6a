package sketch

import (
	"LogFlowSketcher/internal/model"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *model.Snapshot {
	return &model.Snapshot{
		ID:        "3f1c2a1e-0000-4000-8000-000000000001",
		TaskName:  "endpoints",
		Timestamp: time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC),
		Capacity:  3,
		Size:      3,
		Minimum:   1,
		Observed:  9,
		Evictions: 2,
		Records: []model.Record{
			{Item: "/api/users", Count: 5},
			{Item: "/api/orders", Count: 3, Error: 1},
			{Item: "/api/pay", Count: 1},
		},
	}
}

func TestTextWriter(t *testing.T) {
	root := t.TempDir()
	w := NewTextWriter(root, time.Minute, 10)
	require.NoError(t, w.Write(context.Background(), testSnapshot()))

	dir := filepath.Join(root, "2025-03-01_12-30-00", "endpoints")
	topk, err := os.ReadFile(filepath.Join(dir, "topk.txt"))
	require.NoError(t, err)
	assert.Equal(t, "/api/users 5 0\n/api/orders 3 1\n/api/pay 1 0\n", string(topk))

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var got model.Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, uint64(9), got.Observed)
	assert.Equal(t, "endpoints", got.TaskName)
	assert.Len(t, got.Records, 3)

	assert.Equal(t, time.Minute, w.GetInterval())
	assert.NoError(t, w.Close())
}
