package search

import (
	"context"

	"github.com/kailas-cloud/chunkquery/internal/domain"
	"github.com/kailas-cloud/chunkquery/internal/domain/filter"
)

// Adapter is the backend capability the orchestrator dispatches to. Each
// adapter embeds the query itself and returns raw scored records.
type Adapter interface {
	Backend() domain.Backend
	Search(ctx context.Context, query string, k int, f filter.Filter) ([]domain.Record, error)
}
