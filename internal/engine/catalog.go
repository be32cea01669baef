// Package engine provides the DuckDB-backed catalog store holding the raw
// and curated namespaces.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"duck-pipeline/internal/ddl"
	"duck-pipeline/internal/domain"
)

// Options tunes the embedded DuckDB instance.
type Options struct {
	Threads     int    // 0 keeps the DuckDB default
	MemoryLimit string // e.g. "4GB"; empty keeps the DuckDB default
}

// TableInfo describes one table or view in a pipeline namespace.
type TableInfo struct {
	Ref  domain.TableRef
	Type string // BASE TABLE or VIEW
}

// Column is one column of a catalog relation, in ordinal order.
type Column struct {
	Name     string
	DataType string
	Nullable bool
}

// Catalog wraps a DuckDB handle. It is opened once per pipeline run and
// shared by the source loader, the transform engine, and the publisher.
type Catalog struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the DuckDB database at path and ensures the raw and
// curated namespaces exist. An empty path opens an in-memory database.
func Open(ctx context.Context, path string, opts Options, logger *slog.Logger) (*Catalog, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb %q: %w", path, err)
	}

	c := New(db, logger)
	if err := c.applyOptions(ctx, opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := c.EnsureNamespaces(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an already-open DuckDB handle.
func New(db *sql.DB, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{db: db, logger: logger}
}

// DB returns the underlying handle.
func (c *Catalog) DB() *sql.DB { return c.db }

// Close closes the underlying handle.
func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) applyOptions(ctx context.Context, opts Options) error {
	if opts.Threads > 0 {
		if _, err := c.db.ExecContext(ctx, fmt.Sprintf("SET threads = %d", opts.Threads)); err != nil {
			return fmt.Errorf("set threads: %w", err)
		}
	}
	if opts.MemoryLimit != "" {
		if _, err := c.db.ExecContext(ctx, "SET memory_limit = "+ddl.QuoteLiteral(opts.MemoryLimit)); err != nil {
			return fmt.Errorf("set memory_limit: %w", err)
		}
	}
	return nil
}

// EnsureNamespaces creates the raw and curated schemas if missing.
func (c *Catalog) EnsureNamespaces(ctx context.Context) error {
	for _, ns := range []domain.Namespace{domain.NamespaceRaw, domain.NamespaceCurated} {
		if err := c.EnsureNamespace(ctx, ns); err != nil {
			return err
		}
	}
	return nil
}

// EnsureNamespace creates a single schema if missing.
func (c *Catalog) EnsureNamespace(ctx context.Context, ns domain.Namespace) error {
	stmt, err := ddl.CreateSchemaIfNotExists(string(ns))
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create schema %s: %w", ns, err)
	}
	return nil
}

// TableExists reports whether a qualified table or view exists. Names compare
// case-insensitively, the same way DuckDB resolves identifiers.
func (c *Catalog) TableExists(ctx context.Context, ref domain.TableRef) (bool, error) {
	if !ref.Qualified() {
		return false, fmt.Errorf("table %q is not namespace-qualified", ref.Name)
	}
	var n int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE lower(table_schema) = lower(?) AND lower(table_name) = lower(?)",
		string(ref.Namespace), ref.Name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", ref, err)
	}
	return n > 0, nil
}

// Exec runs a statement that returns no rows.
func (c *Catalog) Exec(ctx context.Context, query string, args ...any) error {
	c.logger.Debug("exec", "sql", query)
	_, err := c.db.ExecContext(ctx, query, args...)
	return err
}

// Query runs a statement that returns rows. The caller must close them.
func (c *Catalog) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.logger.Debug("query", "sql", query)
	return c.db.QueryContext(ctx, query, args...)
}

// CountRows returns the row count of a qualified table.
func (c *Catalog) CountRows(ctx context.Context, ref domain.TableRef) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, ddl.CountRows(string(ref.Namespace), ref.Name)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows of %s: %w", ref, err)
	}
	return n, nil
}

// ListTables returns every table and view in the raw and curated namespaces,
// ordered by namespace then name.
func (c *Catalog) ListTables(ctx context.Context) ([]TableInfo, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema IN ('raw', 'curated')
		ORDER BY table_schema DESC, table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TableInfo
	for rows.Next() {
		var schema, name, typ string
		if err := rows.Scan(&schema, &name, &typ); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, TableInfo{
			Ref:  domain.TableRef{Namespace: domain.Namespace(schema), Name: name},
			Type: typ,
		})
	}
	return out, rows.Err()
}

// Columns returns the columns of a qualified table in ordinal order.
func (c *Catalog) Columns(ctx context.Context, ref domain.TableRef) ([]Column, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE lower(table_schema) = lower(?) AND lower(table_name) = lower(?)
		ORDER BY ordinal_position`,
		string(ref.Namespace), ref.Name)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", ref, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.Nullable = nullable == "YES"
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, domain.ErrReference(ref)
	}
	return cols, nil
}
