// Package status reports per-backend connectivity and document counts.
// One backend being down degrades its own entry, never the whole report.
package status

import (
	"context"

	"github.com/kailas-cloud/chunkquery/internal/domain"
)

// Checker is a backend that can describe its own health.
type Checker interface {
	Backend() domain.Backend
	Status(ctx context.Context) domain.BackendStatus
}

// Report aggregates the per-backend checks.
type Report struct {
	Status   domain.StatusLevel              `json:"status"`
	Backends map[string]domain.BackendStatus `json:"vector_stores"`
}

// Service coordinates backend status checks.
type Service struct {
	checkers []Checker
}

// New creates a status service over the configured backends.
func New(checkers []Checker) *Service {
	return &Service{checkers: checkers}
}

// Check probes every backend. The overall status is "error" only when at
// least one backend check failed outright; warnings (missing schema) keep
// the overall status "ok".
func (s *Service) Check(ctx context.Context) Report {
	report := Report{
		Status:   domain.StatusOK,
		Backends: make(map[string]domain.BackendStatus, len(s.checkers)),
	}

	for _, c := range s.checkers {
		st := c.Status(ctx)
		report.Backends[c.Backend().ID] = st
		if st.Status == domain.StatusError {
			report.Status = domain.StatusError
		}
	}

	return report
}
