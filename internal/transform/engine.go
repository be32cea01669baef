package transform

import (
	"context"
	"log/slog"
	"time"

	"duck-pipeline/internal/domain"
)

// Catalog is the part of the catalog store the engine needs.
// *engine.Catalog satisfies it.
type Catalog interface {
	TableExists(ctx context.Context, ref domain.TableRef) (bool, error)
	Exec(ctx context.Context, query string, args ...any) error
	CountRows(ctx context.Context, ref domain.TableRef) (int64, error)
}

// Engine runs transform descriptors one at a time against a Catalog.
type Engine struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewEngine creates an Engine over the given catalog.
func NewEngine(catalog Catalog, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{catalog: catalog, logger: logger.With("component", "transform")}
}

// Execute validates, resolves and materializes a single descriptor, returning
// the curated table it wrote. index identifies the descriptor in errors.
// Every error is a *domain.StepError.
func (e *Engine) Execute(ctx context.Context, index int, t domain.Transform) (domain.TableRef, error) {
	fail := func(err error) (domain.TableRef, error) {
		return domain.TableRef{}, stepError(index, t, err)
	}

	if err := Validate(t); err != nil {
		return fail(err)
	}
	resolved, err := e.resolve(ctx, t)
	if err != nil {
		return fail(err)
	}
	stmt, err := Statement(resolved)
	if err != nil {
		return fail(err)
	}

	e.logger.Debug("executing transformation", "index", index, "type", t.Kind(), "sql", stmt)
	if err := e.catalog.Exec(ctx, stmt); err != nil {
		return fail(domain.ErrExecution(stmt, err))
	}
	return domain.CuratedTable(t.Output()), nil
}

// Run validates every descriptor before executing any, then executes them in
// order. The first failure stops the run; tables written by earlier steps
// are kept. Results are returned for the steps that completed.
func (e *Engine) Run(ctx context.Context, transforms []domain.Transform) ([]domain.StepResult, error) {
	for i, t := range transforms {
		if err := Validate(t); err != nil {
			return nil, stepError(i, t, err)
		}
	}

	results := make([]domain.StepResult, 0, len(transforms))
	for i, t := range transforms {
		if err := ctx.Err(); err != nil {
			return results, stepError(i, t, err)
		}

		start := time.Now()
		ref, err := e.Execute(ctx, i, t)
		if err != nil {
			e.logger.Error("transformation failed", "index", i, "type", t.Kind(), "output", t.Output(), "error", err)
			return results, err
		}

		rows, err := e.catalog.CountRows(ctx, ref)
		if err != nil {
			e.logger.Warn("count rows failed", "table", ref.String(), "error", err)
		}
		elapsed := time.Since(start)
		e.logger.Info("transformation completed",
			"index", i, "type", t.Kind(), "table", ref.String(), "rows", rows, "duration", elapsed)

		results = append(results, domain.StepResult{
			Index:    i,
			Kind:     t.Kind(),
			Table:    ref,
			Rows:     rows,
			Duration: elapsed,
		})
	}
	return results, nil
}

// resolve returns a copy of t with every plain table reference qualified and
// every reference checked for existence. RawSQL references are opaque; the
// engine itself reports tables they name that do not exist.
func (e *Engine) resolve(ctx context.Context, t domain.Transform) (domain.Transform, error) {
	return mapRefs(t, func(ref domain.TableRef) (domain.TableRef, error) {
		return e.resolveRef(ctx, ref)
	})
}

// resolveRef checks a qualified reference, or searches curated then raw for
// a plain one. A plain reference found in neither is reported as raw.<name>.
func (e *Engine) resolveRef(ctx context.Context, ref domain.TableRef) (domain.TableRef, error) {
	candidates := []domain.TableRef{ref}
	if !ref.Qualified() {
		candidates = []domain.TableRef{domain.CuratedTable(ref.Name), domain.RawTable(ref.Name)}
	}
	for _, c := range candidates {
		ok, err := e.catalog.TableExists(ctx, c)
		if err != nil {
			return domain.TableRef{}, domain.ErrExecution("", err)
		}
		if ok {
			return c, nil
		}
	}
	if !ref.Qualified() {
		ref = domain.RawTable(ref.Name)
	}
	return domain.TableRef{}, domain.ErrReference(ref)
}

func stepError(index int, t domain.Transform, err error) *domain.StepError {
	se := &domain.StepError{Index: index, Err: err}
	if t != nil {
		se.Kind = t.Kind()
		se.OutputTable = t.Output()
	}
	return se
}
