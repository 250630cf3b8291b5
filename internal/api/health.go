// health.go - Liveness report for /health.
package api

import (
	"sort"
	"sync"
	"time"
)

// HealthStatus is the outcome of one check.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Unhealthy HealthStatus = "unhealthy"
)

// ComponentHealth is the last result of a named check.
type ComponentHealth struct {
	Name      string        `json:"name"`
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message"`
	LastCheck time.Time     `json:"last_check"`
	Latency   time.Duration `json:"latency,omitempty"`
}

// SystemHealth is the mint's status: unhealthy as soon as one check fails.
type SystemHealth struct {
	OverallStatus HealthStatus      `json:"overall_status"`
	Timestamp     time.Time         `json:"timestamp"`
	Components    []ComponentHealth `json:"components"`
	Uptime        time.Duration     `json:"uptime"`
	Version       string            `json:"version"`
	KeysetID      string            `json:"keyset_id,omitempty"`
}

// HealthChecker runs registered checks on demand. Checks run serially under
// one lock, so a slow ledger ping delays concurrent /health calls.
type HealthChecker struct {
	mu       sync.Mutex
	checks   map[string]func() error
	started  time.Time
	version  string
	keysetID string
}

func NewHealthChecker(version, keysetID string) *HealthChecker {
	return &HealthChecker{
		checks:   make(map[string]func() error),
		started:  time.Now(),
		version:  version,
		keysetID: keysetID,
	}
}

// RegisterComponent adds or replaces the check run under name.
// A nil check always reports healthy.
func (hc *HealthChecker) RegisterComponent(name string, check func() error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// CheckHealth runs every check. Components are reported in name order.
func (hc *HealthChecker) CheckHealth() *SystemHealth {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &SystemHealth{
		OverallStatus: Healthy,
		Components:    make([]ComponentHealth, 0, len(names)),
		Uptime:        time.Since(hc.started),
		Version:       hc.version,
		KeysetID:      hc.keysetID,
	}
	for _, name := range names {
		c := runCheck(name, hc.checks[name])
		if c.Status == Unhealthy {
			report.OverallStatus = Unhealthy
		}
		report.Components = append(report.Components, c)
	}
	report.Timestamp = time.Now()
	return report
}

func runCheck(name string, check func() error) ComponentHealth {
	c := ComponentHealth{Name: name, Status: Healthy, Message: "OK"}
	start := time.Now()
	if check != nil {
		if err := check(); err != nil {
			c.Status = Unhealthy
			c.Message = err.Error()
		}
	}
	c.LastCheck = time.Now()
	c.Latency = c.LastCheck.Sub(start)
	return c
}

// HealthCheckResponse is the /health body.
type HealthCheckResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Data    *SystemHealth `json:"data,omitempty"`
}

func CreateHealthResponse(health *SystemHealth) *HealthCheckResponse {
	resp := &HealthCheckResponse{Status: "success", Message: "Mint is healthy", Data: health}
	if health.OverallStatus == Unhealthy {
		resp.Status = "error"
		resp.Message = "Mint is unhealthy"
	}
	return resp
}
