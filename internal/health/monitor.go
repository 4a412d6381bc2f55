// Package health tracks dependency reachability and publishes it through the
// standard gRPC health service and an HTTP endpoint.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported to gRPC health clients besides "".
const ServiceName = "cart.CartService"

type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Check struct {
	Name   string
	Pinger Pinger
}

type Monitor struct {
	checks   []Check
	server   *health.Server
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	mu      sync.RWMutex
	results map[string]error
	checked bool
}

func NewMonitor(interval time.Duration, log *zap.Logger, checks ...Check) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	m := &Monitor{
		checks:   checks,
		server:   health.NewServer(),
		interval: interval,
		timeout:  interval / 2,
		log:      log.Named("health"),
		results:  make(map[string]error, len(checks)),
	}
	m.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return m
}

func (m *Monitor) Server() *health.Server {
	return m.server
}

// Run checks dependencies every interval until ctx is cancelled, then marks
// the service as not serving.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.CheckNow(ctx)
	for {
		select {
		case <-ctx.Done():
			m.server.Shutdown()
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow pings every dependency once and updates the published status.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	results := make(map[string]error, len(m.checks))
	healthy := true
	for _, c := range m.checks {
		pctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.Pinger.Ping(pctx)
		cancel()

		results[c.Name] = err
		if err != nil {
			healthy = false
		}
	}

	m.mu.Lock()
	for name, err := range results {
		// log transitions only
		if prev, seen := m.results[name]; !seen || (prev == nil) != (err == nil) {
			if err != nil {
				m.log.Warn("dependency unhealthy", zap.String("check", name), zap.Error(err))
			} else {
				m.log.Info("dependency healthy", zap.String("check", name))
			}
		}
	}
	m.results = results
	m.checked = true
	m.mu.Unlock()

	if healthy {
		m.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		m.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return healthy
}

func (m *Monitor) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	m.server.SetServingStatus("", status)
	m.server.SetServingStatus(ServiceName, status)
}

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServeHTTP reports the last check results: 200 when every dependency
// answered, 503 otherwise.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	resp := response{Status: "ok", Checks: make(map[string]string, len(m.results))}
	healthy := m.checked
	for name, err := range m.results {
		if err != nil {
			resp.Checks[name] = err.Error()
			healthy = false
			continue
		}
		resp.Checks[name] = "ok"
	}
	m.mu.RUnlock()

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		resp.Status = "unavailable"
	}
	writeJSON(w, status, resp)
}
