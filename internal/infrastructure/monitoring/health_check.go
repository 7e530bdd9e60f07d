package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dealerhub/pkg/circuitbreaker"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type HealthChecker struct {
	checks []HealthCheck
	mu     sync.RWMutex
}

type HealthCheck struct {
	Name    string
	Check   func(ctx context.Context) error
	Timeout time.Duration
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

func (h *HealthChecker) AddCheck(name string, check func(ctx context.Context) error, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.checks = append(h.checks, HealthCheck{
		Name:    name,
		Check:   check,
		Timeout: timeout,
	})
}

// AddPingCheck registers a dependency that answers a ping, such as the
// Redis client or the repository factory.
func (h *HealthChecker) AddPingCheck(name string, ping func(ctx context.Context) error, timeout time.Duration) {
	h.AddCheck(name, ping, timeout)
}

// AddBreakerCheck reports unready while the breaker is open, so load
// balancers drain an instance that cannot reach the backend.
func (h *HealthChecker) AddBreakerCheck(breaker *circuitbreaker.Breaker) {
	h.AddCheck("circuit:"+breaker.Name(), func(ctx context.Context) error {
		if state := breaker.State(); state == circuitbreaker.StateOpen {
			return fmt.Errorf("circuit %s", state)
		}
		return nil
	}, time.Second)
}

// CheckAll runs every check concurrently, each under its own timeout.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthStatus {
	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string, len(checks)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, check := range checks {
		wg.Add(1)
		go func(check HealthCheck) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
			defer cancel()
			err := check.Check(checkCtx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status.Status = StatusUnhealthy
				status.Checks[check.Name] = err.Error()
				return
			}
			status.Checks[check.Name] = StatusHealthy
		}(check)
	}
	wg.Wait()

	return status
}

func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == StatusHealthy
}
