package prom

import (
	"LogFlowSketcher/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// TaskSource lists the counters to export.
type TaskSource interface {
	Tasks() []model.Task
}

// Collector exports the occupancy of every counter at scrape time.
type Collector struct {
	source TaskSource

	capacity  *prometheus.Desc
	size      *prometheus.Desc
	minimum   *prometheus.Desc
	observed  *prometheus.Desc
	evictions *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source TaskSource) *Collector {
	labels := []string{"counter"}
	return &Collector{
		source:    source,
		capacity:  prometheus.NewDesc("logflow_counter_capacity", "Maximum number of items a counter tracks", labels, nil),
		size:      prometheus.NewDesc("logflow_counter_items", "Number of items currently tracked", labels, nil),
		minimum:   prometheus.NewDesc("logflow_counter_minimum", "Smallest tracked count, 0 while empty", labels, nil),
		observed:  prometheus.NewDesc("logflow_counter_observed_total", "Items observed since the last reset", labels, nil),
		evictions: prometheus.NewDesc("logflow_counter_evictions_total", "Items replaced since the last reset", labels, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.size
	ch <- c.minimum
	ch <- c.observed
	ch <- c.evictions
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, t := range c.source.Tasks() {
		m := t.Metrics()
		name := t.Name()
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(m.Capacity), name)
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(m.Size), name)
		ch <- prometheus.MustNewConstMetric(c.minimum, prometheus.GaugeValue, float64(m.Minimum), name)
		ch <- prometheus.MustNewConstMetric(c.observed, prometheus.CounterValue, float64(m.Observed), name)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(m.Evictions), name)
	}
}
