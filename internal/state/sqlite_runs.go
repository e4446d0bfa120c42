package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/sqltrace/pkg/sqltrace"
)

const runColumns = `id, source, created_at, statement_count, edge_count, row_count`

// SaveRun persists an analysis result with its statements, lineage edges
// and traceability rows in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, source, sqlText string, result *sqltrace.Result) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if result == nil {
		return nil, errors.New("cannot save a nil result")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	run := &Run{
		ID:             generateID(),
		Source:         source,
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
		StatementCount: len(result.StatementSummary),
		EdgeCount:      len(result.Lineage.Edges),
		RowCount:       len(result.Traceability),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`, sql_text, result_json) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.CreatedAt.UnixMilli(),
		run.StatementCount, run.EdgeCount, run.RowCount,
		sqlText, string(payload),
	); err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	for i, rec := range result.StatementSummary {
		if err := insertStatement(ctx, tx, run.ID, i, rec); err != nil {
			return nil, err
		}
	}

	for i, e := range result.Lineage.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lineage_edges (run_id, position, source_table, target_table, relation) VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, e.From, e.To, e.Relation,
		); err != nil {
			return nil, fmt.Errorf("failed to insert lineage edge %d: %w", i, err)
		}
	}

	for i, r := range result.Traceability {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO traceability_rows (run_id, position,
				source_schema, source_table, source_field,
				destination_schema, destination_table, destination_field,
				logic, filter) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i,
			nullableString(r.SourceSchema), nullableString(r.SourceTable), nullableString(r.SourceField),
			nullableString(r.DestinationSchema), nullableString(r.DestinationTable), nullableString(r.DestinationField),
			r.Logic, nullableString(r.Filter),
		); err != nil {
			return nil, fmt.Errorf("failed to insert traceability row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("saved run",
		slog.String("id", run.ID),
		slog.String("source", run.Source),
		slog.Int("statements", run.StatementCount),
		slog.Int("edges", run.EdgeCount),
	)
	return run, nil
}

func insertStatement(ctx context.Context, tx *sql.Tx, runID string, pos int, rec sqltrace.StatementRecord) error {
	objects, err := json.Marshal(rec.Objects)
	if err != nil {
		return fmt.Errorf("failed to encode objects: %w", err)
	}
	clauses, err := json.Marshal(rec.Clauses)
	if err != nil {
		return fmt.Errorf("failed to encode clauses: %w", err)
	}
	functions, err := json.Marshal(rec.Functions)
	if err != nil {
		return fmt.Errorf("failed to encode functions: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO statements (run_id, position, statement, category, action, objects, clauses, functions)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, pos, rec.Statement, string(rec.Category), rec.Action,
		string(objects), string(clauses), string(functions),
	); err != nil {
		return fmt.Errorf("failed to insert statement %d: %w", pos, err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first.
// A limit <= 0 returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// LoadResult returns the exact result stored with a run.
func (s *SQLiteStore) LoadResult(ctx context.Context, id string) (*sqltrace.Result, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load result: %w", err)
	}

	var result sqltrace.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode result for run %s: %w", id, err)
	}
	return &result, nil
}

// LineageEdges returns every distinct lineage edge across all runs.
func (s *SQLiteStore) LineageEdges(ctx context.Context) ([]sqltrace.Edge, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT source_table, target_table, relation FROM lineage_edges
		 ORDER BY source_table, target_table`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	edges := []sqltrace.Edge{}
	for rows.Next() {
		var e sqltrace.Edge
		if err := rows.Scan(&e.From, &e.To, &e.Relation); err != nil {
			return nil, fmt.Errorf("failed to scan lineage edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query lineage edges: %w", err)
	}
	return edges, nil
}

// DeleteRun removes a run and everything recorded with it.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	if s.db == nil {
		return ErrNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"traceability_rows", "lineage_edges", "statements"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	s.logger.Debug("deleted run", slog.String("id", id))
	return nil
}

// Stats counts what the store holds.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	st := &Stats{ByCategory: make(map[string]int)}
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM runs`, &st.Runs},
		{`SELECT COUNT(*) FROM statements`, &st.Statements},
		{`SELECT COUNT(*) FROM lineage_edges`, &st.Edges},
		{`SELECT COUNT(*) FROM traceability_rows`, &st.TraceabilityRows},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM statements GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		st.ByCategory[category] = n
	}
	return st, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run       Run
		createdAt int64
	)
	if err := row.Scan(&run.ID, &run.Source, &createdAt,
		&run.StatementCount, &run.EdgeCount, &run.RowCount); err != nil {
		return nil, err
	}
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &run, nil
}
