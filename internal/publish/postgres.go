package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/domain"
)

// PostgresPublisher writes targets with COPY inside one transaction.
type PostgresPublisher struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects to Postgres and verifies the connection.
func NewPostgres(ctx context.Context, connString string, logger *slog.Logger) (*PostgresPublisher, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PostgresPublisher{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (p *PostgresPublisher) Close() error {
	p.pool.Close()
	return nil
}

// Publish writes every target, committing only if all succeed.
func (p *PostgresPublisher) Publish(ctx context.Context, src Source, targets []config.TargetSpec) ([]domain.TargetResult, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	results := make([]domain.TargetResult, 0, len(targets))
	for _, t := range targets {
		n, err := p.publishOne(ctx, tx, src, t)
		if err != nil {
			return nil, fmt.Errorf("publish %s to %s.%s: %w", sourceLabel(t), t.TargetSchema, t.TargetTable, pgError(err))
		}
		results = append(results, domain.TargetResult{
			Source: sourceLabel(t),
			Target: t.TargetSchema + "." + t.TargetTable,
			Rows:   n,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	for _, r := range results {
		p.logger.Info("published table", "source", r.Source, "target", r.Target, "rows", r.Rows)
	}
	return results, nil
}

func (p *PostgresPublisher) publishOne(ctx context.Context, tx pgx.Tx, src Source, t config.TargetSpec) (int64, error) {
	schema := t.TargetSchema
	if schema == "" {
		schema = "public"
	}
	ident := pgx.Identifier{schema, t.TargetTable}

	rows, err := openSource(ctx, src, t)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return 0, fmt.Errorf("create schema: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, pgTableExistsSQL, schema, t.TargetTable).Scan(&exists); err != nil {
		return 0, fmt.Errorf("lookup target: %w", err)
	}

	err = prepareTable(t.IfExists, ident.Sanitize(), exists,
		func() error {
			_, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize())
			return err
		},
		func() error {
			_, err := tx.Exec(ctx, pgCreateTableSQL(ident, rows.cols))
			return err
		},
	)
	if err != nil {
		return 0, err
	}

	p.logger.Debug("copying rows", "target", ident.Sanitize(), "columns", len(rows.cols))
	n, err := tx.CopyFrom(ctx, ident, rows.names(), &pgCopySource{rows: rows})
	if err != nil {
		return 0, fmt.Errorf("copy: %w", err)
	}
	return n, nil
}

const pgTableExistsSQL = `SELECT EXISTS (
	SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2
)`

// pgCreateTableSQL renders CREATE TABLE with DuckDB types mapped to Postgres.
func pgCreateTableSQL(ident pgx.Identifier, cols []column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + columnType(dialectPostgres, c.SourceType)
	}
	return "CREATE TABLE " + ident.Sanitize() + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)"
}

// pgCopySource adapts catalog rows to pgx.CopyFromSource.
type pgCopySource struct {
	rows *sourceRows
}

func (s *pgCopySource) Next() bool { return s.rows.Next() }

func (s *pgCopySource) Values() ([]any, error) {
	out := make([]any, len(s.rows.cols))
	for i, v := range s.rows.vals {
		out[i] = pgValue(s.rows.cols[i], v)
	}
	return out, nil
}

func (s *pgCopySource) Err() error { return s.rows.Err() }

// pgError surfaces the server detail of a Postgres error.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s)", err, pgErr.Detail)
	}
	return err
}
