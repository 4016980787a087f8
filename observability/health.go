package observability

import "context"

// HealthStatus is the state reported by /health.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusDown     HealthStatus = "down"
)

// severity orders statuses so the worst component wins.
func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusDown:
		return 2
	case HealthStatusDegraded:
		return 1
	}
	return 0
}

// Health is the report of one component, such as the recipe registry or
// the job scheduler.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth is the aggregate report. Its status is the worst status of
// its components, or up when there are none.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// HealthChecker reports the health of one component.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// HealthFunc adapts a function to HealthChecker.
type HealthFunc func(ctx context.Context) Health

// CheckHealth calls f.
func (f HealthFunc) CheckHealth(ctx context.Context) Health { return f(ctx) }

// Check runs every checker in order and aggregates the result.
func Check(ctx context.Context, service, version string, checkers ...HealthChecker) *ServiceHealth {
	sh := &ServiceHealth{Service: service, Version: version, Status: HealthStatusUp}
	for _, c := range checkers {
		h := c.CheckHealth(ctx)
		sh.Components = append(sh.Components, h)
		if h.Status.severity() > sh.Status.severity() {
			sh.Status = h.Status
		}
	}
	return sh
}
