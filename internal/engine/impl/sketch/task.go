package sketch

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/engine/impl/sketch/statistic"
	"LogFlowSketcher/internal/factory"
	"LogFlowSketcher/internal/model"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// --- Factory Registration ---

func init() {
	factory.RegisterAggregator("spacesaving", func(cfg *config.Config) (*factory.TaskGroup, error) {
		aggCfg := cfg.Aggregator

		// Create all enabled writers for this aggregator group
		writers := make([]model.Writer, 0, len(aggCfg.Writers))
		for _, writerDef := range aggCfg.Writers {
			if !writerDef.Enabled {
				continue
			}

			writer, err := NewWriter(writerDef)
			if err != nil {
				log.Warn().Err(err).Str("type", writerDef.Type).Msg("failed to create writer, skipping")
				continue
			}
			log.Info().Str("type", writerDef.Type).Dur("interval", writer.GetInterval()).Msg("writer created")
			writers = append(writers, writer)
		}

		// Create all tasks for this aggregator group
		tasks := make([]model.Task, len(aggCfg.Counters))
		for i, counterCfg := range aggCfg.Counters {
			task, err := New(counterCfg)
			if err != nil {
				for _, w := range writers {
					w.Close()
				}
				return nil, err
			}
			tasks[i] = task
		}

		return &factory.TaskGroup{Tasks: tasks, Writers: writers}, nil
	})
}

// NewWriter creates the writer described by def.
func NewWriter(def config.WriterDef) (model.Writer, error) {
	interval, err := time.ParseDuration(def.SnapshotInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot_interval: %w", err)
	}

	switch def.Type {
	case "text":
		return NewTextWriter(def.Text.RootPath, interval, def.TopK), nil
	case "clickhouse":
		return NewClickHouseWriter(def.ClickHouse, interval, def.TopK)
	case "sqlite":
		w, err := NewSQLiteWriter(def.SQLite.Path, interval, def.TopK)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "redis":
		w, err := NewRedisWriter(def.Redis, interval, def.TopK)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unknown writer type '%s'", def.Type)
	}
}

// --- Task Implementation ---

// Task counts the items of one configured counter with a Space-Saving sketch.
type Task struct {
	name      string
	keyPath   string
	extractor *Extractor
	sketch    *statistic.SpaceSaving[string]
}

// New creates a new counter task based on the provided configuration.
func New(cfg config.CounterDef) (*Task, error) {
	sketch, err := statistic.NewSpaceSaving[string](cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("counter '%s': %w", cfg.Name, err)
	}

	log.Info().
		Str("task", cfg.Name).
		Int("capacity", cfg.Capacity).
		Str("key_path", cfg.KeyPath).
		Int("filters", len(cfg.Filters)).
		Msg("creating Space-Saving counter")

	return &Task{
		name:      cfg.Name,
		keyPath:   cfg.KeyPath,
		extractor: NewExtractor(cfg.KeyPath, cfg.Filters),
		sketch:    sketch,
	}, nil
}

// Name returns the name of the task.
func (t *Task) Name() string {
	return t.name
}

// ProcessEntry observes the entry's item key, if it has one.
func (t *Task) ProcessEntry(entry *model.LogEntry) {
	item, ok := t.extractor.Extract(entry.Raw)
	if !ok {
		return
	}
	t.sketch.Observe(item)
}

func (t *Task) TopK(k int) []model.Record {
	return toRecords(t.sketch.TopK(k))
}

func (t *Task) Estimate(item string) (model.Record, bool) {
	r, ok := t.sketch.Estimate(item)
	return model.Record{Item: r.Item, Count: r.Count, Error: r.Error}, ok
}

// Metrics returns the occupancy of the underlying sketch.
func (t *Task) Metrics() statistic.Metrics {
	return t.sketch.Metrics()
}

// Snapshot copies the top k records together with the sketch metrics.
func (t *Task) Snapshot(k int) *model.Snapshot {
	m := t.sketch.Metrics()
	return &model.Snapshot{
		TaskName:  t.name,
		Timestamp: time.Now().UTC(),
		Capacity:  m.Capacity,
		Size:      m.Size,
		Minimum:   m.Minimum,
		Observed:  m.Observed,
		Evictions: m.Evictions,
		Records:   t.TopK(k),
	}
}

// Reset clears every counter of the task.
func (t *Task) Reset() {
	t.sketch.Reset()
}

// AlerterMsg evaluates the rules that target this task and returns a
// Markdown section per triggered rule, or "" if none triggered.
func (t *Task) AlerterMsg(rules []config.AlerterRule) string {
	m := t.sketch.Metrics()

	var triggeredMessages []string
	for _, rule := range rules {
		if rule.TaskName != t.name {
			continue
		}

		var hitters []string
		switch rule.Metric {
		case "item_count":
			for _, r := range t.sketch.TopK(m.Capacity) {
				if check(float64(r.Count), rule.Threshold, rule.Operator) {
					hitters = append(hitters, fmt.Sprintf("| `%s` | %d (±%d) |", r.Item, r.Count, r.Error))
				}
			}
		case "minimum":
			if check(float64(m.Minimum), rule.Threshold, rule.Operator) {
				hitters = append(hitters, fmt.Sprintf("| minimum | %d |", m.Minimum))
			}
		case "size":
			if check(float64(m.Size), rule.Threshold, rule.Operator) {
				hitters = append(hitters, fmt.Sprintf("| size | %d / %d |", m.Size, m.Capacity))
			}
		case "evictions":
			if check(float64(m.Evictions), rule.Threshold, rule.Operator) {
				hitters = append(hitters, fmt.Sprintf("| evictions | %d |", m.Evictions))
			}
		default:
			log.Warn().Str("rule", rule.Name).Str("metric", rule.Metric).Msg("unknown metric in alerter rule")
		}

		if len(hitters) > 0 {
			msg := fmt.Sprintf("### Alert: %s\n\n"+
				"- **Counter:** `%s` (key `%s`)\n"+
				"- **Metric:** `%s`\n"+
				"- **Condition:** `%s %.2f`\n\n"+
				"**Triggering Items:**\n\n"+
				"| Item | Value |\n"+
				"|------|-------|\n"+
				"%s\n",
				rule.Name, rule.TaskName, t.keyPath, rule.Metric, rule.Operator, rule.Threshold, strings.Join(hitters, "\n"))
			triggeredMessages = append(triggeredMessages, msg)
		}
	}

	return strings.Join(triggeredMessages, "\n---\n\n")
}

func toRecords(hh []statistic.HeavyRecord[string]) []model.Record {
	records := make([]model.Record, len(hh))
	for i, r := range hh {
		records[i] = model.Record{Item: r.Item, Count: r.Count, Error: r.Error}
	}
	return records
}
