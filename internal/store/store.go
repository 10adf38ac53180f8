// Package store persists verification run history so results can be
// listed and re-exported after the fact.
package store

import (
	"context"
	"time"

	"github.com/desguapro/stock-cli/internal/sched"
	"github.com/desguapro/stock-cli/pkg/pricing"
)

// Run is one persisted verification run.
type Run struct {
	ID         string           `json:"id"`
	SourceFile string           `json:"source_file"`
	Cancelled  bool             `json:"cancelled"`
	Counters   sched.Counters   `json:"counters"`
	Elapsed    time.Duration    `json:"elapsed"`
	Results    []pricing.Result `json:"results,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Limit  int
	Offset int
}

// Store defines the persistence interface for run history.
type Store interface {
	SaveRun(ctx context.Context, sourceFile string, summary sched.Summary, results []pricing.Result) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
