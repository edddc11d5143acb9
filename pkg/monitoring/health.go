package monitoring

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

// HealthStatus is the body served on /health.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp int64                  `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const checkTimeout = 5 * time.Second

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthCheck performs one dependency check.
type HealthCheck func() CheckResult

// Pinger is anything with a context-aware liveness ping (kafka producer,
// vector store, MCP transport).
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	service string
	version string

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

func NewHealthChecker(service, version string) *HealthChecker {
	return &HealthChecker{
		service: service,
		version: version,
		checks:  make(map[string]HealthCheck),
	}
}

func (hc *HealthChecker) AddCheck(name string, check HealthCheck) {
	hc.mu.Lock()
	hc.checks[name] = check
	hc.mu.Unlock()
}

// Names lists registered checks in sorted order.
func (hc *HealthChecker) Names() []string {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth runs every check. Any unhealthy (or unknown) result makes the
// whole service unhealthy; degraded results only degrade it.
func (hc *HealthChecker) CheckHealth() HealthStatus {
	hc.mu.RLock()
	checks := make(map[string]HealthCheck, len(hc.checks))
	for name, check := range hc.checks {
		checks[name] = check
	}
	hc.mu.RUnlock()

	status := HealthStatus{
		Service:   hc.service,
		Version:   hc.version,
		Timestamp: time.Now().Unix(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}

	anyUnhealthy := false
	anyDegraded := false
	for name, check := range checks {
		result := check()
		status.Checks[name] = result
		switch result.Status {
		case StatusHealthy:
		case StatusDegraded:
			anyDegraded = true
		default:
			anyUnhealthy = true
		}
	}

	switch {
	case anyUnhealthy:
		status.Status = StatusUnhealthy
	case anyDegraded:
		status.Status = StatusDegraded
	default:
		status.Status = StatusHealthy
	}
	return status
}

func (hc *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		health := hc.CheckHealth()
		statusCode := http.StatusOK
		if health.Status == StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, health)
	}
}

func DatabaseHealthCheck(db *sql.DB) HealthCheck {
	if db == nil {
		return nilCheck("Database connection is nil")
	}
	return pingCheck("Database", StatusUnhealthy, db.PingContext)
}

// PingHealthCheck pings an optional dependency. Failures report degraded
// because the service keeps answering without it.
func PingHealthCheck(name string, p Pinger) HealthCheck {
	if p == nil {
		return nilCheck(name + " client is nil")
	}
	return pingCheck(name, StatusDegraded, p.Ping)
}

func RedisHealthCheck(client goredis.UniversalClient) HealthCheck {
	if client == nil {
		return nilCheck("Redis client is nil")
	}
	return pingCheck("Redis", StatusDegraded, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

func HTTPServiceHealthCheck(serviceName, url string) HealthCheck {
	client := &http.Client{Timeout: checkTimeout}
	return func() CheckResult {
		start := time.Now()
		resp, err := client.Get(url)
		duration := time.Since(start)
		if err != nil {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("%s service unreachable: %v", serviceName, err),
				Latency: duration.String(),
			}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("%s service returned %d", serviceName, resp.StatusCode),
				Latency: duration.String(),
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%s service responding", serviceName),
			Latency: duration.String(),
		}
	}
}

func ConfigurationHealthCheck(configs map[string]string) HealthCheck {
	return func() CheckResult {
		var missing []string
		for key, value := range configs {
			if value == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return CheckResult{
				Status:  StatusUnhealthy,
				Message: fmt.Sprintf("Missing required configuration: %v", missing),
			}
		}
		return CheckResult{Status: StatusHealthy, Message: "All required configuration present"}
	}
}

func pingCheck(name, failStatus string, ping func(context.Context) error) HealthCheck {
	return func() CheckResult {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		err := ping(ctx)
		duration := time.Since(start)
		if err != nil {
			return CheckResult{
				Status:  failStatus,
				Message: fmt.Sprintf("%s ping failed: %v", name, err),
				Latency: duration.String(),
			}
		}
		return CheckResult{
			Status:  StatusHealthy,
			Message: name + " connection healthy",
			Latency: duration.String(),
		}
	}
}

func nilCheck(message string) HealthCheck {
	return func() CheckResult {
		return CheckResult{Status: StatusUnhealthy, Message: message}
	}
}
