package publish

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/db"
	"duck-pipeline/internal/ddl"
	"duck-pipeline/internal/domain"
)

// maxSQLiteParams bounds placeholders per INSERT; older SQLite builds cap
// host parameters at 999.
const maxSQLiteParams = 999

// maxBatchRows bounds rows per multi-row INSERT.
const maxBatchRows = 500

// SQLitePublisher writes targets into a SQLite file in one transaction.
type SQLitePublisher struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens (or creates) the SQLite file at path for writing.
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLitePublisher, error) {
	handle, err := db.OpenSQLite(ctx, path, db.ModeWrite)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLitePublisher{db: handle, logger: logger}, nil
}

// Close closes the database.
func (p *SQLitePublisher) Close() error { return p.db.Close() }

// Publish writes every target, committing only if all succeed.
func (p *SQLitePublisher) Publish(ctx context.Context, src Source, targets []config.TargetSpec) ([]domain.TargetResult, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	results := make([]domain.TargetResult, 0, len(targets))
	for _, t := range targets {
		n, err := p.publishOne(ctx, tx, src, t)
		if err != nil {
			return nil, fmt.Errorf("publish %s to %s: %w", sourceLabel(t), t.TargetTable, err)
		}
		results = append(results, domain.TargetResult{Source: sourceLabel(t), Target: t.TargetTable, Rows: n})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	for _, r := range results {
		p.logger.Info("published table", "source", r.Source, "target", r.Target, "rows", r.Rows)
	}
	return results, nil
}

func (p *SQLitePublisher) publishOne(ctx context.Context, tx *sql.Tx, src Source, t config.TargetSpec) (int64, error) {
	switch strings.ToLower(t.TargetSchema) {
	case "", "public", "main":
	default:
		return 0, domain.ErrConfiguration("sqlite targets do not support target_schema %q", t.TargetSchema)
	}
	if t.TargetTable == "" {
		return 0, domain.ErrConfiguration("target_table is required")
	}
	table := ddl.QuoteIdentifier(t.TargetTable)

	rows, err := openSource(ctx, src, t)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", t.TargetTable,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("lookup target: %w", err)
	}

	err = prepareTable(t.IfExists, table, count > 0,
		func() error {
			_, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
			return err
		},
		func() error {
			_, err := tx.ExecContext(ctx, sqliteCreateTableSQL(table, rows.cols))
			return err
		},
	)
	if err != nil {
		return 0, err
	}

	return p.insertAll(ctx, tx, table, rows)
}

// insertAll streams rows into table with multi-row INSERTs.
func (p *SQLitePublisher) insertAll(ctx context.Context, tx *sql.Tx, table string, rows *sourceRows) (int64, error) {
	ncols := len(rows.cols)
	batchRows := maxSQLiteParams / ncols
	if batchRows < 1 {
		batchRows = 1
	}
	if batchRows > maxBatchRows {
		batchRows = maxBatchRows
	}

	full, err := tx.PrepareContext(ctx, sqliteInsertSQL(table, rows.names(), batchRows))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = full.Close() }()

	var (
		total int64
		args  = make([]any, 0, batchRows*ncols)
	)
	flush := func(n int) error {
		if n == 0 {
			return nil
		}
		var err error
		if n == batchRows {
			_, err = full.ExecContext(ctx, args...)
		} else {
			_, err = tx.ExecContext(ctx, sqliteInsertSQL(table, rows.names(), n), args...)
		}
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		total += int64(n)
		args = args[:0]
		return nil
	}

	pending := 0
	for rows.Next() {
		for i, v := range rows.vals {
			args = append(args, sqliteValue(rows.cols[i], v))
		}
		pending++
		if pending == batchRows {
			if err := flush(pending); err != nil {
				return 0, err
			}
			pending = 0
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("read source: %w", err)
	}
	if err := flush(pending); err != nil {
		return 0, err
	}
	p.logger.Debug("inserted rows", "target", table, "rows", total, "batch", batchRows)
	return total, nil
}

// sqliteCreateTableSQL renders CREATE TABLE with DuckDB types mapped to
// SQLite affinities.
func sqliteCreateTableSQL(table string, cols []column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = ddl.QuoteIdentifier(c.Name) + " " + columnType(dialectSQLite, c.SourceType)
	}
	return "CREATE TABLE " + table + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
}

// sqliteInsertSQL renders INSERT INTO t (cols) VALUES (?, ...), ... for n rows.
func sqliteInsertSQL(table string, cols []string, n int) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ddl.QuoteIdentifier(c)
	}
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO " + table + " (" + strings.Join(quoted, ", ") + ") VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
	}
	return b.String()
}
