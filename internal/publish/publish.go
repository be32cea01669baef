// Package publish copies catalog tables into an external relational
// database (Postgres or SQLite).
package publish

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/domain"
)

// Source is the catalog store rows are read from. *engine.Catalog
// satisfies it.
type Source interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Publisher writes target tables. All targets of one Publish call are
// written in a single transaction on the external database.
type Publisher interface {
	Publish(ctx context.Context, src Source, targets []config.TargetSpec) ([]domain.TargetResult, error)
	Close() error
}

// Open connects to the target database configured in spec.
func Open(ctx context.Context, spec config.TargetConnSpec, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "publish")

	switch {
	case spec.Postgres != nil && spec.SQLite != nil:
		return nil, domain.ErrConfiguration("config must not set both 'target.postgres' and 'target.sqlite'")
	case spec.Postgres != nil:
		connString, err := spec.Postgres.ConnString()
		if err != nil {
			return nil, err
		}
		return NewPostgres(ctx, connString, logger)
	case spec.SQLite != nil:
		if spec.SQLite.Path == "" {
			return nil, domain.ErrConfiguration("target.sqlite: path is required")
		}
		return NewSQLite(ctx, spec.SQLite.Path, logger)
	default:
		return nil, domain.ErrConfiguration("config must include a target database under 'target.postgres' or 'target.sqlite'")
	}
}

// SourceQuery returns the catalog query feeding a target. A plain
// source_table is read from curated.
func SourceQuery(t config.TargetSpec) (string, error) {
	if q := strings.TrimSpace(t.Query); q != "" {
		return strings.TrimRight(q, "; \t\n"), nil
	}
	if strings.TrimSpace(t.SourceTable) == "" {
		return "", domain.ErrConfiguration("target %q: exactly one of source_table or query is required", t.TargetTable)
	}
	ref, err := domain.ParseTableRef(t.SourceTable)
	if err != nil {
		return "", err
	}
	if !ref.Qualified() {
		ref = domain.CuratedTable(ref.Name)
	}
	return "SELECT * FROM " + ref.SQL(), nil
}

func sourceLabel(t config.TargetSpec) string {
	if t.SourceTable != "" {
		return t.SourceTable
	}
	return "query"
}

// column is one result column with its DuckDB type name.
type column struct {
	Name       string
	SourceType string
}

// sourceRows streams a catalog result set.
type sourceRows struct {
	rows *sql.Rows
	cols []column
	vals []any
	ptrs []any
	err  error
}

func openSource(ctx context.Context, src Source, t config.TargetSpec) (*sourceRows, error) {
	query, err := SourceQuery(t)
	if err != nil {
		return nil, err
	}
	rows, err := src.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sourceLabel(t), err)
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("describe %s: %w", sourceLabel(t), err)
	}
	if len(types) == 0 {
		_ = rows.Close()
		return nil, fmt.Errorf("read %s: result has no columns", sourceLabel(t))
	}

	s := &sourceRows{
		rows: rows,
		cols: make([]column, len(types)),
		vals: make([]any, len(types)),
		ptrs: make([]any, len(types)),
	}
	for i, ct := range types {
		s.cols[i] = column{Name: ct.Name(), SourceType: ct.DatabaseTypeName()}
		s.ptrs[i] = &s.vals[i]
	}
	return s, nil
}

func (s *sourceRows) names() []string {
	out := make([]string, len(s.cols))
	for i, c := range s.cols {
		out[i] = c.Name
	}
	return out
}

// Next scans the next row into the shared value buffer.
func (s *sourceRows) Next() bool {
	if s.err != nil || !s.rows.Next() {
		return false
	}
	if err := s.rows.Scan(s.ptrs...); err != nil {
		s.err = err
		return false
	}
	return true
}

func (s *sourceRows) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.rows.Err()
}

func (s *sourceRows) Close() error { return s.rows.Close() }

// prepareTable applies if_exists before rows are written. exists reports
// whether the target table is already present; drop and create issue DDL.
func prepareTable(mode string, name string, exists bool, drop, create func() error) error {
	switch mode {
	case config.IfExistsReplace, "":
		if exists {
			if err := drop(); err != nil {
				return fmt.Errorf("drop %s: %w", name, err)
			}
		}
	case config.IfExistsAppend:
		if exists {
			return nil
		}
	case config.IfExistsFail:
		if exists {
			return domain.ErrConflict("target table %s already exists", name)
		}
	default:
		return domain.ErrConfiguration("unsupported if_exists %q (expected replace, append or fail)", mode)
	}
	if err := create(); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	return nil
}
