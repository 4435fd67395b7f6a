package factory

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/model"
	"fmt"

	"github.com/rs/zerolog/log"
)

// TaskGroup is a logical grouping of tasks and their associated writers.
type TaskGroup struct {
	Tasks   []model.Task
	Writers []model.Writer
}

// TaskFactory defines a function that creates a group of tasks and their writers.
type TaskFactory func(cfg *config.Config) (*TaskGroup, error)

// registry holds the mapping of aggregator types to their factory functions.
var registry = make(map[string]TaskFactory)

// RegisterAggregator registers a new aggregator type with its factory function.
func RegisterAggregator(name string, factory TaskFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("aggregator type '%s' already registered", name))
	}
	registry[name] = factory
}

// Create creates a list of TaskGroups based on the provided config.
// Task names must be unique across all groups.
func Create(cfg *config.Config) ([]TaskGroup, error) {
	var taskGroups []TaskGroup
	names := make(map[string]bool)

	for _, aggType := range cfg.Aggregator.Types {
		log.Info().Str("type", aggType).Msg("creating tasks and writers for aggregator")

		factory, ok := registry[aggType]
		if !ok {
			closeGroups(taskGroups)
			return nil, fmt.Errorf("unknown aggregator type: '%s'", aggType)
		}

		group, err := factory(cfg)
		if err != nil {
			closeGroups(taskGroups)
			return nil, fmt.Errorf("error creating aggregator type '%s': %w", aggType, err)
		}
		taskGroups = append(taskGroups, *group)

		for _, t := range group.Tasks {
			if names[t.Name()] {
				closeGroups(taskGroups)
				return nil, fmt.Errorf("duplicate task name '%s'", t.Name())
			}
			names[t.Name()] = true
		}
	}

	return taskGroups, nil
}

func closeGroups(groups []TaskGroup) {
	for _, g := range groups {
		for _, w := range g.Writers {
			if err := w.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close writer")
			}
		}
	}
}
