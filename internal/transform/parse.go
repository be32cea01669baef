// Package transform executes ordered transform descriptors against the
// catalog store, materializing each result as a curated table.
package transform

import (
	"errors"
	"strings"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/domain"
)

// Parse converts one transformations[] record into its typed descriptor and
// validates it. index is the record's position in the list. Errors are
// *domain.StepError values wrapping a *domain.ConfigurationError.
func Parse(index int, spec config.TransformSpec) (domain.Transform, error) {
	kind, err := domain.ParseTransformKind(spec.Type)
	if err != nil {
		return nil, &domain.StepError{Index: index, OutputTable: spec.OutputTable, Err: err}
	}

	t, err := build(kind, spec)
	if err == nil {
		err = Validate(t)
	}
	if err != nil {
		return nil, &domain.StepError{Index: index, Kind: kind, OutputTable: spec.OutputTable, Err: err}
	}
	return t, nil
}

// ParseAll parses every record. All invalid records are reported, joined,
// in list order.
func ParseAll(specs []config.TransformSpec) ([]domain.Transform, error) {
	out := make([]domain.Transform, 0, len(specs))
	var errs []error
	for i, spec := range specs {
		t, err := Parse(i, spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func build(kind domain.TransformKind, spec config.TransformSpec) (domain.Transform, error) {
	output := strings.TrimSpace(spec.OutputTable)

	switch kind {
	case domain.KindFilter:
		src, err := parseRef("source", spec.Source)
		if err != nil {
			return nil, err
		}
		return &domain.Filter{Source: src, Condition: spec.Condition, OutputTable: output}, nil

	case domain.KindJoin:
		left, err := parseRef("left", spec.Left)
		if err != nil {
			return nil, err
		}
		right, err := parseRef("right", spec.Right)
		if err != nil {
			return nil, err
		}
		return &domain.Join{
			Left:        left,
			Right:       right,
			LeftAlias:   strings.TrimSpace(spec.LeftAlias),
			RightAlias:  strings.TrimSpace(spec.RightAlias),
			On:          spec.On,
			JoinType:    spec.JoinType,
			Select:      spec.Select,
			OutputTable: output,
		}, nil

	case domain.KindAggregate:
		src, err := parseRef("source", spec.Source)
		if err != nil {
			return nil, err
		}
		return &domain.Aggregate{
			Source:      src,
			GroupBy:     trimAll(spec.GroupBy),
			Metrics:     trimAll(spec.Metrics),
			Where:       spec.Where,
			OutputTable: output,
		}, nil

	case domain.KindSQL:
		query := spec.SQL
		if strings.TrimSpace(query) == "" {
			query = spec.Query
		}
		return &domain.RawSQL{SQL: query, OutputTable: output}, nil
	}
	return nil, domain.ErrConfiguration("unsupported transformation type %q", spec.Type)
}

// parseRef leaves a missing value as a zero ref so Validate reports the
// field by name.
func parseRef(field, value string) (domain.TableRef, error) {
	if strings.TrimSpace(value) == "" {
		return domain.TableRef{}, nil
	}
	ref, err := domain.ParseTableRef(value)
	if err != nil {
		return domain.TableRef{}, domain.ErrConfiguration("%s: %v", field, err)
	}
	return ref, nil
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
