package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const watchedConfig = `
aggregator:
  counters: [{name: errors, capacity: 5, key_path: status_code}]
alerter:
  enabled: true
  rules: [{name: burst, task_name: errors, operator: ">", threshold: %s}]
`

func writeWatched(t *testing.T, path, threshold string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, fmt.Appendf(nil, watchedConfig, threshold), 0o644))
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeWatched(t, path, "10")

	var threshold atomic.Value
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config) {
		threshold.Store(cfg.Alerter.Rules[0].Threshold)
	})
	require.NoError(t, err)
	defer w.Close()

	writeWatched(t, path, "42")
	require.Eventually(t, func() bool {
		v, _ := threshold.Load().(float64)
		return v == 42
	}, 2*time.Second, 10*time.Millisecond)

	// an invalid file keeps the last good configuration
	require.NoError(t, os.WriteFile(path, []byte("aggregator: {counters: []}"), 0o644))
	require.Never(t, func() bool {
		v, _ := threshold.Load().(float64)
		return v != 42
	}, 200*time.Millisecond, 20*time.Millisecond)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeWatched(t, path, "10")

	var calls atomic.Int32
	w, err := NewWatcher(path, 20*time.Millisecond, func(*Config) { calls.Add(1) })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o644))
	require.Never(t, func() bool { return calls.Load() > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}
