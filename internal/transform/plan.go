package transform

import (
	"context"
	"strings"

	"duck-pipeline/internal/domain"
)

// PlannedStep is the statement a descriptor would run, without running it.
type PlannedStep struct {
	Index     int
	Kind      domain.TransformKind
	Output    domain.TableRef
	Inputs    []domain.TableRef
	Statement string
}

// Plan resolves and renders every descriptor without executing anything.
// Plain references resolve to an earlier step's output first, then to an
// existing curated table, and otherwise to raw; missing tables are not
// errors here because sources may not be staged yet. cat may be nil, in
// which case only earlier outputs are consulted.
func Plan(ctx context.Context, cat Catalog, transforms []domain.Transform) ([]PlannedStep, error) {
	produced := make(map[string]bool)
	out := make([]PlannedStep, 0, len(transforms))

	for i, t := range transforms {
		if err := Validate(t); err != nil {
			return nil, stepError(i, t, err)
		}

		qualify := func(ref domain.TableRef) (domain.TableRef, error) {
			if ref.Qualified() {
				return ref, nil
			}
			curated := domain.CuratedTable(ref.Name)
			if produced[strings.ToLower(ref.Name)] {
				return curated, nil
			}
			if cat != nil {
				ok, err := cat.TableExists(ctx, curated)
				if err != nil {
					return domain.TableRef{}, domain.ErrExecution("", err)
				}
				if ok {
					return curated, nil
				}
			}
			return domain.RawTable(ref.Name), nil
		}

		resolved, err := mapRefs(t, qualify)
		if err != nil {
			return nil, stepError(i, t, err)
		}
		stmt, err := Statement(resolved)
		if err != nil {
			return nil, stepError(i, t, err)
		}

		out = append(out, PlannedStep{
			Index:     i,
			Kind:      t.Kind(),
			Output:    domain.CuratedTable(t.Output()),
			Inputs:    Inputs(resolved),
			Statement: stmt,
		})
		produced[strings.ToLower(t.Output())] = true
	}
	return out, nil
}

// Inputs lists the table references a descriptor reads. RawSQL inputs are
// opaque and reported as none.
func Inputs(t domain.Transform) []domain.TableRef {
	switch t := t.(type) {
	case *domain.Filter:
		return []domain.TableRef{t.Source}
	case *domain.Join:
		return []domain.TableRef{t.Left, t.Right}
	case *domain.Aggregate:
		return []domain.TableRef{t.Source}
	default:
		return nil
	}
}

// mapRefs returns a copy of t with fn applied to each table reference.
func mapRefs(t domain.Transform, fn func(domain.TableRef) (domain.TableRef, error)) (domain.Transform, error) {
	var err error
	switch t := t.(type) {
	case *domain.Filter:
		out := *t
		if out.Source, err = fn(t.Source); err != nil {
			return nil, err
		}
		return &out, nil
	case *domain.Join:
		out := *t
		if out.Left, err = fn(t.Left); err != nil {
			return nil, err
		}
		if out.Right, err = fn(t.Right); err != nil {
			return nil, err
		}
		return &out, nil
	case *domain.Aggregate:
		out := *t
		if out.Source, err = fn(t.Source); err != nil {
			return nil, err
		}
		return &out, nil
	default:
		return t, nil
	}
}
