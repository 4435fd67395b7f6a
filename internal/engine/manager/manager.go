package manager

import (
	"LogFlowSketcher/internal/alerter"
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/engine/dedupe"
	_ "LogFlowSketcher/internal/engine/impl/sketch" // Registers the spacesaving aggregator
	"LogFlowSketcher/internal/factory"
	"LogFlowSketcher/internal/model"
	"LogFlowSketcher/internal/notification"
	"LogFlowSketcher/internal/prom"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

var (
	// ErrStopped is returned by Submit once the manager is shutting down.
	ErrStopped = errors.New("manager stopped")
	// ErrUnknownCounter is returned when looking up a counter that does not exist.
	ErrUnknownCounter = errors.New("unknown counter")
)

// Manager orchestrates a set of counting tasks and their writers.
type Manager struct {
	taskGroups []factory.TaskGroup
	tasks      map[string]model.Task
	order      []model.Task
	alerter    *alerter.Alerter

	dedupe        *dedupe.Lookup
	dedupeKeyPath string

	// Worker pool for concurrent entry processing
	entryChannel chan *model.LogEntry
	numWorkers   int
	workerWg     sync.WaitGroup

	// stopMu guards closing entryChannel against concurrent Submit calls
	stopMu  sync.RWMutex
	stopped bool

	done          chan struct{}
	snapshotterWg sync.WaitGroup
}

// NewManager creates a new Manager.
func NewManager(cfg *config.Config) (*Manager, error) {
	taskGroups, err := factory.Create(cfg)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		taskGroups:    taskGroups,
		tasks:         make(map[string]model.Task),
		done:          make(chan struct{}),
		entryChannel:  make(chan *model.LogEntry, cfg.Ingest.SizeOfEntryChannel),
		numWorkers:    max(cfg.Ingest.NumWorkers, 1),
		dedupeKeyPath: cfg.Ingest.DedupeKeyPath,
	}
	for _, group := range taskGroups {
		for _, t := range group.Tasks {
			m.tasks[t.Name()] = t
			m.order = append(m.order, t)
		}
	}

	if cfg.Ingest.DedupeKeyPath != "" && cfg.Ingest.DedupeCacheBytes > 0 {
		m.dedupe = dedupe.New(cfg.Ingest.DedupeCacheBytes)
		log.Info().Str("key_path", cfg.Ingest.DedupeKeyPath).Int("slots", m.dedupe.Slots()).Msg("redelivery dedupe enabled")
	}

	if cfg.Alerter.Enabled {
		notifier, err := notification.New(cfg)
		if err != nil {
			m.closeWriters()
			return nil, fmt.Errorf("failed to create notifier: %w", err)
		}
		m.alerter, err = alerter.NewAlerter(&cfg.Alerter, m.order, notifier)
		if err != nil {
			m.closeWriters()
			return nil, fmt.Errorf("failed to create alerter: %w", err)
		}
		log.Info().Str("notifier", cfg.Alerter.Notifier).Msg("alerter enabled")
	}

	return m, nil
}

// Start begins the manager's workers, snapshotters and alerter.
func (m *Manager) Start() {
	for _, group := range m.taskGroups {
		for _, writer := range group.Writers {
			m.snapshotterWg.Add(1)
			go m.runSnapshotter(writer, group.Tasks)
			log.Info().
				Str("writer", writerName(writer)).
				Dur("interval", writer.GetInterval()).
				Int("tasks", len(group.Tasks)).
				Msg("started snapshotter")
		}
	}

	if m.alerter != nil {
		m.alerter.Start()
	}

	m.workerWg.Add(m.numWorkers)
	for range m.numWorkers {
		go m.worker()
	}
	log.Info().Int("workers", m.numWorkers).Msg("manager started")
}

// Submit enqueues an entry for counting. It blocks while the queue is full
// until ctx is done.
func (m *Manager) Submit(ctx context.Context, entry *model.LogEntry) error {
	m.stopMu.RLock()
	defer m.stopMu.RUnlock()
	if m.stopped {
		return ErrStopped
	}

	select {
	case m.entryChannel <- entry:
		prom.EntryQueueLength.Set(float64(len(m.entryChannel)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Task returns the counter with the given name.
func (m *Manager) Task(name string) (model.Task, error) {
	t, ok := m.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownCounter, name)
	}
	return t, nil
}

// Tasks returns every counter in configuration order.
func (m *Manager) Tasks() []model.Task {
	return m.order
}

// UpdateAlertRules swaps the alerter's rules. Rules naming a counter that is
// not running are dropped. It returns false when no alerter is enabled.
func (m *Manager) UpdateAlertRules(rules []config.AlerterRule) bool {
	if m.alerter == nil {
		return false
	}
	kept := make([]config.AlerterRule, 0, len(rules))
	for _, r := range rules {
		if _, ok := m.tasks[r.TaskName]; !ok {
			log.Warn().Str("rule", r.Name).Str("task", r.TaskName).Msg("ignoring alert rule for unknown counter")
			continue
		}
		kept = append(kept, r)
	}
	m.alerter.SetRules(kept)
	return true
}

// Querier returns the first enabled writer that can read its snapshots back,
// or nil if there is none.
func (m *Manager) Querier() model.Querier {
	for _, group := range m.taskGroups {
		for _, w := range group.Writers {
			if q, ok := w.(model.Querier); ok {
				return q
			}
		}
	}
	return nil
}

// runSnapshotter runs a dedicated snapshot loop for a single writer and its associated tasks.
func (m *Manager) runSnapshotter(writer model.Writer, tasks []model.Task) {
	defer m.snapshotterWg.Done()
	interval := writer.GetInterval()
	if interval <= 0 {
		log.Warn().Dur("interval", interval).Msg("invalid interval for writer, snapshotter will not run")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.takeSnapshotForWriter(context.Background(), writer, tasks)
		case <-m.done:
			m.takeSnapshotForWriter(context.Background(), writer, tasks)
			return
		}
	}
}

// takeSnapshotForWriter writes one snapshot of every task. All snapshots of
// a round share the same ID.
func (m *Manager) takeSnapshotForWriter(ctx context.Context, writer model.Writer, tasks []model.Task) {
	name := writerName(writer)
	roundID := uuid.NewString()
	start := time.Now()

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Go(func() {
			snapshot := task.Snapshot(writer.TopK())
			snapshot.ID = roundID
			if err := writer.Write(ctx, snapshot); err != nil {
				prom.SnapshotWrites.WithLabelValues(name, "error").Inc()
				log.Error().Err(err).Str("task", task.Name()).Str("writer", name).Msg("error writing snapshot")
				return
			}
			prom.SnapshotWrites.WithLabelValues(name, "ok").Inc()
		})
	}
	wg.Wait()

	prom.SnapshotDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	log.Debug().Str("writer", name).Str("snapshot_id", roundID).Int("tasks", len(tasks)).Msg("completed snapshot")
}

// Stop gracefully shuts down the manager: buffered entries are counted, each
// writer takes a final snapshot and is closed.
func (m *Manager) Stop() {
	m.stopMu.Lock()
	if m.stopped {
		m.stopMu.Unlock()
		return
	}
	m.stopped = true
	close(m.entryChannel)
	m.stopMu.Unlock()

	log.Info().Msg("manager stopping, waiting for workers to finish")
	m.workerWg.Wait()

	close(m.done)
	m.snapshotterWg.Wait()

	if m.alerter != nil {
		m.alerter.Stop()
	}

	m.closeWriters()
	log.Info().Msg("manager stopped")
}

func (m *Manager) closeWriters() {
	for _, group := range m.taskGroups {
		for _, w := range group.Writers {
			if err := w.Close(); err != nil {
				log.Warn().Err(err).Str("writer", writerName(w)).Msg("failed to close writer")
			}
		}
	}
}

func (m *Manager) worker() {
	defer m.workerWg.Done()
	for entry := range m.entryChannel {
		if m.isDuplicate(entry) {
			prom.EntriesDuplicate.Inc()
			continue
		}
		// Fan out the entry to every task
		for _, task := range m.order {
			task.ProcessEntry(entry)
		}
		prom.EntriesProcessed.Inc()
	}
}

func (m *Manager) isDuplicate(entry *model.LogEntry) bool {
	if m.dedupe == nil {
		return false
	}
	key := gjson.GetBytes(entry.Raw, m.dedupeKeyPath)
	if !key.Exists() || key.Raw == "" {
		return false
	}
	return m.dedupe.CheckAndSet([]byte(key.Raw))
}

func writerName(w model.Writer) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", w), "*")
}
