// Package state persists analysis runs in SQLite so results can be listed,
// replayed and queried for cross-run lineage.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

// Errors returned by the store.
var (
	ErrNotOpen     = errors.New("database not opened")
	ErrRunNotFound = errors.New("run not found")
)

// Run is one persisted analysis.
type Run struct {
	ID             string    `json:"id" yaml:"id"`
	Source         string    `json:"source" yaml:"source"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	StatementCount int       `json:"statement_count" yaml:"statement_count"`
	EdgeCount      int       `json:"edge_count" yaml:"edge_count"`
	RowCount       int       `json:"row_count" yaml:"row_count"`
}

// Stats summarizes everything in the store.
type Stats struct {
	Runs             int            `json:"runs" yaml:"runs"`
	Statements       int            `json:"statements" yaml:"statements"`
	Edges            int            `json:"edges" yaml:"edges"`
	TraceabilityRows int            `json:"traceability_rows" yaml:"traceability_rows"`
	ByCategory       map[string]int `json:"by_category" yaml:"by_category"`
}

// Store is the persistence surface used by the CLI and the HTTP server.
type Store interface {
	SaveRun(ctx context.Context, source, sqlText string, result *sqltrace.Result) (*Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	LoadResult(ctx context.Context, id string) (*sqltrace.Result, error)
	LineageEdges(ctx context.Context) ([]sqltrace.Edge, error)
	DeleteRun(ctx context.Context, id string) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
