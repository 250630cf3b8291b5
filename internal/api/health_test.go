package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerReportsEachRun(t *testing.T) {
	hc := NewHealthChecker(Version, "00aa")
	var failure error
	hc.RegisterComponent("ledger", func() error { return failure })
	hc.RegisterComponent("cache", nil)

	report := hc.CheckHealth()
	assert.Equal(t, Healthy, report.OverallStatus)
	assert.Equal(t, "00aa", report.KeysetID)
	require.Len(t, report.Components, 2)
	assert.Equal(t, "cache", report.Components[0].Name)
	assert.Equal(t, Healthy, report.Components[0].Status)

	failure = errors.New("disk full")
	report = hc.CheckHealth()
	assert.Equal(t, Unhealthy, report.OverallStatus)
	assert.Equal(t, "disk full", report.Components[1].Message)
	assert.Equal(t, "error", CreateHealthResponse(report).Status)

	failure = nil
	report = hc.CheckHealth()
	assert.Equal(t, Healthy, report.OverallStatus)
	assert.Equal(t, "OK", report.Components[1].Message)
	assert.Equal(t, "success", CreateHealthResponse(report).Status)
}
