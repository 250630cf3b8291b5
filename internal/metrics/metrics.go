// metrics.go - In-process metrics for the mint: counters, gauges and latency histograms.
package metrics

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter   MetricType = "counter"
	Gauge     MetricType = "gauge"
	Histogram MetricType = "histogram"
)

// histogramWindow is how many recent observations a histogram keeps.
const histogramWindow = 1000

// Metric is the latest observation of one name/label combination.
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Collector manages metrics collection. It implements ecash.Recorder.
type Collector struct {
	mu         sync.RWMutex
	metrics    map[string]*Metric
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		metrics:    make(map[string]*Metric),
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

// IncrementCounter adds one to a counter.
func (c *Collector) IncrementCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

// AddCounter adds delta to a counter.
func (c *Collector) AddCounter(name string, delta int64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := makeKey(name, labels)
	c.counters[key] += delta
	c.updateMetric(key, name, Counter, float64(c.counters[key]), labels)
}

// SetGauge sets a gauge metric value
func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := makeKey(name, labels)
	c.gauges[key] = value
	c.updateMetric(key, name, Gauge, value, labels)
}

// RecordHistogram records a value in a histogram
func (c *Collector) RecordHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := makeKey(name, labels)
	values := append(c.histograms[key], value)
	if len(values) > histogramWindow {
		values = values[len(values)-histogramWindow:]
	}
	c.histograms[key] = values
	c.updateMetric(key, name, Histogram, value, labels)
}

// Counter returns the current value of a counter.
func (c *Collector) Counter(name string, labels map[string]string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[makeKey(name, labels)]
}

// GetMetric retrieves a metric by name and labels
func (c *Collector) GetMetric(name string, labels map[string]string) *Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.metrics[makeKey(name, labels)]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// Summary returns counters, gauges and histogram statistics keyed by metric key.
func (c *Collector) Summary() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counters := make(map[string]int64, len(c.counters))
	for key, v := range c.counters {
		counters[key] = v
	}
	gauges := make(map[string]float64, len(c.gauges))
	for key, v := range c.gauges {
		gauges[key] = v
	}
	histograms := make(map[string]map[string]float64, len(c.histograms))
	for key, values := range c.histograms {
		if len(values) == 0 {
			continue
		}
		h := map[string]float64{
			"count": float64(len(values)),
			"min":   values[0],
			"max":   values[0],
		}
		var sum float64
		for _, v := range values {
			if v < h["min"] {
				h["min"] = v
			}
			if v > h["max"] {
				h["max"] = v
			}
			sum += v
		}
		h["sum"] = sum
		h["avg"] = sum / h["count"]
		histograms[key] = h
	}
	return map[string]interface{}{
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}

// Reset resets all metrics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = make(map[string]*Metric)
	c.counters = make(map[string]int64)
	c.gauges = make(map[string]float64)
	c.histograms = make(map[string][]float64)
}

// makeKey renders name{k1=v1,k2=v2} with labels in sorted order.
func makeKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func (c *Collector) updateMetric(key, name string, t MetricType, value float64, labels map[string]string) {
	c.metrics[key] = &Metric{
		Name:      name,
		Type:      t,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	}
}

// Metric names
const (
	MetricNotesSpent    = "notes_spent"
	MetricValueSpent    = "value_spent"
	MetricRejections    = "note_rejections"
	MetricOutputsIssued = "outputs_issued"
	MetricIssueLatency  = "issue_seconds"
	MetricSwaps         = "swaps"
	MetricSwapLatency   = "swap_seconds"
	MetricRequests      = "http_requests"
	MetricUptime        = "uptime_seconds"
)

// RecordSpend counts one spent note of the given denomination.
func (c *Collector) RecordSpend(denomination uint64) {
	c.IncrementCounter(MetricNotesSpent, map[string]string{"denomination": strconv.FormatUint(denomination, 10)})
	c.AddCounter(MetricValueSpent, int64(denomination), nil)
}

func (c *Collector) RecordRejection(reason string) {
	c.IncrementCounter(MetricRejections, map[string]string{"reason": reason})
}

func (c *Collector) RecordIssue(outputs int, elapsed time.Duration) {
	c.AddCounter(MetricOutputsIssued, int64(outputs), nil)
	c.RecordHistogram(MetricIssueLatency, elapsed.Seconds(), nil)
}

func (c *Collector) RecordSwap(inputs, outputs int, elapsed time.Duration) {
	c.IncrementCounter(MetricSwaps, nil)
	c.AddCounter(MetricOutputsIssued, int64(outputs), nil)
	c.RecordHistogram(MetricSwapLatency, elapsed.Seconds(), nil)
}

// RecordRequest counts an API request by route and status code.
func (c *Collector) RecordRequest(route string, status int) {
	c.IncrementCounter(MetricRequests, map[string]string{"route": route, "status": strconv.Itoa(status)})
}
