package sketch

import (
	"LogFlowSketcher/internal/model"
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const snapshotDirLayout = "2006-01-02_15-04-05"

// TextWriter writes each snapshot to a directory named after its timestamp:
// topk.txt holds one "item count error" line per record, summary.json the
// whole snapshot.
type TextWriter struct {
	rootPath string
	interval time.Duration
	topK     int
}

// NewTextWriter creates a new text writer for counter snapshots.
func NewTextWriter(rootPath string, interval time.Duration, topK int) model.Writer {
	return &TextWriter{rootPath: rootPath, interval: interval, topK: topK}
}

func (w *TextWriter) GetInterval() time.Duration {
	return w.interval
}

func (w *TextWriter) TopK() int {
	return w.topK
}

func (w *TextWriter) Close() error {
	return nil
}

func (w *TextWriter) Write(_ context.Context, snapshot *model.Snapshot) error {
	taskDir := filepath.Join(w.rootPath, snapshot.Timestamp.Format(snapshotDirLayout), snapshot.TaskName)
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	filePath := filepath.Join(taskDir, "topk.txt")
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file '%s': %w", filePath, err)
	}
	defer file.Close()

	bw := bufio.NewWriter(file)
	for _, r := range snapshot.Records {
		if _, err := fmt.Fprintf(bw, "%s %d %d\n", r.Item, r.Count, r.Error); err != nil {
			return fmt.Errorf("failed to write record to file: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot file '%s': %w", filePath, err)
	}

	summary, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(taskDir, "summary.json"), summary, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot summary: %w", err)
	}

	log.Debug().Int("records", len(snapshot.Records)).Str("dir", taskDir).Msg("wrote snapshot")
	return nil
}
