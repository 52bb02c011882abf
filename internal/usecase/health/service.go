// Package health aggregates liveness checks for the health endpoint.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// Pinger checks one component's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service coordinates health checks across the configured backends.
type Service struct {
	pingers map[string]Pinger
}

// New creates a health service. Keys name the components in the report.
func New(pingers map[string]Pinger) *Service {
	return &Service{pingers: pingers}
}

// Check pings every component and reports the aggregate.
func (s *Service) Check(ctx context.Context) (Status, map[string]bool) {
	checks := make(map[string]bool, len(s.pingers))
	status := Healthy
	for name, p := range s.pingers {
		ok := p.Ping(ctx) == nil
		checks[name] = ok
		if !ok {
			status = Degraded
		}
	}
	return status, checks
}
