package alerter

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/model"
	"LogFlowSketcher/internal/prom"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Alerter periodically evaluates the counters against the configured rules
// and sends one consolidated notification when any rule triggers.
type Alerter struct {
	tasks         []model.Task
	rulesMu       sync.RWMutex
	rules         []config.AlerterRule
	notifier      model.Notifier
	checkInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg *config.AlerterConfig, tasks []model.Task, notifier model.Notifier) (*Alerter, error) {
	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval for alerter: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("alerter check_interval must be positive, got %s", interval)
	}
	if notifier == nil {
		return nil, fmt.Errorf("alerter requires a notifier")
	}

	return &Alerter{
		tasks:         tasks,
		rules:         cfg.Rules,
		notifier:      notifier,
		checkInterval: interval,
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the periodic evaluation of alert rules in the background.
func (a *Alerter) Start() {
	log.Info().Dur("interval", a.checkInterval).Int("rules", len(a.Rules())).Msg("alerter started")

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ticker := time.NewTicker(a.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				a.Evaluate(context.Background())
			case <-a.stopChan:
				return
			}
		}
	}()
}

// Stop ends the evaluation loop and runs one final evaluation.
func (a *Alerter) Stop() {
	a.stopOnce.Do(func() {
		log.Info().Msg("stopping alerter")
		close(a.stopChan)
		a.wg.Wait()
		a.Evaluate(context.Background())
	})
}

// Rules returns the rules currently evaluated.
func (a *Alerter) Rules() []config.AlerterRule {
	a.rulesMu.RLock()
	defer a.rulesMu.RUnlock()
	return a.rules
}

// SetRules replaces the rules used from the next evaluation on.
func (a *Alerter) SetRules(rules []config.AlerterRule) {
	a.rulesMu.Lock()
	a.rules = rules
	a.rulesMu.Unlock()
	log.Info().Int("rules", len(rules)).Msg("alerter rules updated")
}

// Evaluate checks every task against its rules and notifies if any triggered.
// It returns the number of triggered task messages.
func (a *Alerter) Evaluate(ctx context.Context) int {
	var wg sync.WaitGroup
	results := make([]string, len(a.tasks))
	rules := a.Rules()

	for i, task := range a.tasks {
		var relevantRules []config.AlerterRule
		for _, rule := range rules {
			if rule.TaskName == task.Name() {
				relevantRules = append(relevantRules, rule)
			}
		}
		if len(relevantRules) == 0 {
			continue
		}

		wg.Go(func() {
			results[i] = task.AlerterMsg(relevantRules)
		})
	}
	wg.Wait()

	// Sections follow task order.
	var allMessages []string
	for _, msg := range results {
		if msg != "" {
			allMessages = append(allMessages, msg)
		}
	}
	if len(allMessages) == 0 {
		return 0
	}

	log.Info().Int("triggered", len(allMessages)).Msg("alerter evaluation completed")

	body := "# LogFlow Sketcher Alert Summary\n\n" +
		"The following alerts were triggered during the last check:\n\n---\n\n" +
		strings.Join(allMessages, "\n---\n\n")
	subject := fmt.Sprintf("LogFlow Sketcher Alert Summary (%d Triggered)", len(allMessages))

	if err := a.notifier.Send(ctx, subject, body); err != nil {
		prom.AlertsSent.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("failed to send consolidated alert notification")
	} else {
		prom.AlertsSent.WithLabelValues("ok").Inc()
		log.Info().Msg("consolidated alert notification sent")
	}
	return len(allMessages)
}
