package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeKeyIsOrderIndependent(t *testing.T) {
	a := makeKey("m", map[string]string{"x": "1", "y": "2"})
	b := makeKey("m", map[string]string{"y": "2", "x": "1"})
	assert.Equal(t, a, b)
	assert.Equal(t, "m{x=1,y=2}", a)
	assert.Equal(t, "m", makeKey("m", nil))
}

func TestRecorderEvents(t *testing.T) {
	c := NewCollector()
	c.RecordSpend(4)
	c.RecordSpend(4)
	c.RecordSpend(1)
	c.RecordRejection("double_spend")
	c.RecordIssue(3, 10*time.Millisecond)
	c.RecordSwap(2, 2, 30*time.Millisecond)
	c.RecordRequest("/v1/swap", 200)

	assert.Equal(t, int64(2), c.Counter(MetricNotesSpent, map[string]string{"denomination": "4"}))
	assert.Equal(t, int64(9), c.Counter(MetricValueSpent, nil))
	assert.Equal(t, int64(1), c.Counter(MetricRejections, map[string]string{"reason": "double_spend"}))
	assert.Equal(t, int64(5), c.Counter(MetricOutputsIssued, nil))
	assert.Equal(t, int64(1), c.Counter(MetricRequests, map[string]string{"status": "200", "route": "/v1/swap"}))

	m := c.GetMetric(MetricSwaps, nil)
	require.NotNil(t, m)
	assert.Equal(t, Counter, m.Type)
	assert.Equal(t, 1.0, m.Value)
}

func TestHistogramSummary(t *testing.T) {
	c := NewCollector()
	for i := 1; i <= histogramWindow+10; i++ {
		c.RecordHistogram("latency", float64(i), nil)
	}
	c.SetGauge("size", 7, nil)

	s := c.Summary()
	h := s["histograms"].(map[string]map[string]float64)["latency"]
	assert.Equal(t, float64(histogramWindow), h["count"])
	assert.Equal(t, 11.0, h["min"])
	assert.Equal(t, float64(histogramWindow+10), h["max"])
	assert.Equal(t, 7.0, s["gauges"].(map[string]float64)["size"])

	c.Reset()
	assert.Nil(t, c.GetMetric("size", nil))
}
