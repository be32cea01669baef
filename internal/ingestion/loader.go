// Package ingestion stages source files into the raw namespace.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/ddl"
	"duck-pipeline/internal/domain"
)

// Catalog is the part of the catalog store the loader writes through.
type Catalog interface {
	EnsureNamespace(ctx context.Context, ns domain.Namespace) error
	Exec(ctx context.Context, query string, args ...any) error
	CountRows(ctx context.Context, ref domain.TableRef) (int64, error)
}

// remotePrefixes are paths DuckDB reads itself; they are not checked on disk.
var remotePrefixes = []string{"s3://", "s3a://", "gs://", "gcs://", "r2://", "az://", "abfss://", "http://", "https://"}

// Loader copies CSV and Parquet files into raw.<table>, replacing any
// previous contents.
type Loader struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewLoader creates a Loader writing into catalog.
func NewLoader(catalog Catalog, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{catalog: catalog, logger: logger.With("component", "ingestion")}
}

// Load stages every source in order and stops at the first failure.
func (l *Loader) Load(ctx context.Context, sources []config.SourceSpec) ([]domain.SourceResult, error) {
	if err := l.catalog.EnsureNamespace(ctx, domain.NamespaceRaw); err != nil {
		return nil, err
	}

	results := make([]domain.SourceResult, 0, len(sources))
	for _, src := range sources {
		res, err := l.LoadOne(ctx, src)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// LoadOne stages a single source.
func (l *Loader) LoadOne(ctx context.Context, src config.SourceSpec) (domain.SourceResult, error) {
	name := src.Name
	if name == "" {
		name = src.Table
	}
	if src.Table == "" {
		return domain.SourceResult{}, domain.ErrConfiguration("source %q: table is required", name)
	}

	query, err := ddl.ReadFileQuery(src.Format)
	if err != nil {
		return domain.SourceResult{}, domain.ErrConfiguration("source %q: unsupported source format %q", name, src.Format)
	}
	if err := checkPath(src.Path); err != nil {
		return domain.SourceResult{}, err
	}

	stmt, err := ddl.CreateOrReplaceTableAs(string(domain.NamespaceRaw), src.Table, query)
	if err != nil {
		return domain.SourceResult{}, domain.ErrConfiguration("source %q: %v", name, err)
	}

	ref := domain.RawTable(src.Table)
	if err := l.catalog.Exec(ctx, stmt, src.Path); err != nil {
		return domain.SourceResult{}, fmt.Errorf("load source %q into %s: %w", name, ref, err)
	}

	rows, err := l.catalog.CountRows(ctx, ref)
	if err != nil {
		return domain.SourceResult{}, err
	}
	l.logger.Info("loaded source", "source", name, "table", ref.String(), "format", src.Format, "rows", rows)

	return domain.SourceResult{Name: name, Table: ref, Rows: rows}, nil
}

// IsRemote reports whether path is read by DuckDB over the network.
func IsRemote(path string) bool {
	lower := strings.ToLower(path)
	for _, p := range remotePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// checkPath verifies a local source file exists. Glob patterns are left to
// DuckDB.
func checkPath(path string) error {
	if path == "" {
		return domain.ErrConfiguration("source path is required")
	}
	if IsRemote(path) || strings.ContainsAny(path, "*?[") {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrNotFound("source file not found: %s", path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}
