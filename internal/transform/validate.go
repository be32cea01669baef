package transform

import (
	"strings"

	"duck-pipeline/internal/ddl"
	"duck-pipeline/internal/domain"
)

// joinKeywords maps accepted join_type spellings to their SQL keyword.
var joinKeywords = map[string]string{
	"":            "INNER",
	"inner":       "INNER",
	"left":        "LEFT",
	"left outer":  "LEFT",
	"right":       "RIGHT",
	"right outer": "RIGHT",
	"full":        "FULL",
	"full outer":  "FULL",
	"semi":        "SEMI",
	"anti":        "ANTI",
}

// JoinKeyword returns the SQL keyword for a join_type value. Matching is
// case-insensitive and tolerates repeated whitespace. An empty value means
// an inner join.
func JoinKeyword(joinType string) (string, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(joinType)), " ")
	kw, ok := joinKeywords[normalized]
	if !ok {
		return "", domain.ErrConfiguration(
			"unsupported join_type %q (expected inner, left, right, full, semi or anti)", joinType)
	}
	return kw, nil
}

// Validate checks a descriptor for the fields its type requires and for a
// usable output table. It never touches the catalog. The first problem found
// is returned as a *domain.ConfigurationError.
func Validate(t domain.Transform) error {
	if t == nil {
		return domain.ErrConfiguration("descriptor is nil")
	}

	var err error
	switch t := t.(type) {
	case *domain.Filter:
		err = firstErr(
			requireRef("source", t.Source),
			requireText("condition", t.Condition),
		)
	case *domain.Join:
		err = firstErr(
			requireRef("left", t.Left),
			requireRef("right", t.Right),
			requireText("on", t.On),
			validateAlias("left_alias", t.LeftAlias),
			validateAlias("right_alias", t.RightAlias),
		)
		if err == nil && t.LeftAlias != "" && strings.EqualFold(t.LeftAlias, t.RightAlias) {
			err = domain.ErrConfiguration("left_alias and right_alias must differ, both are %q", t.LeftAlias)
		}
		if err == nil {
			_, err = JoinKeyword(t.JoinType)
		}
	case *domain.Aggregate:
		err = firstErr(
			requireRef("source", t.Source),
			requireList("group_by", t.GroupBy),
			requireList("metrics", t.Metrics),
		)
	case *domain.RawSQL:
		err = requireText("sql", t.SQL)
	default:
		err = domain.ErrConfiguration("unsupported transformation %T", t)
	}
	if err != nil {
		return err
	}
	return validateOutputTable(t.Output())
}

func validateOutputTable(name string) error {
	if name == "" {
		return missingField("output_table")
	}
	if strings.Contains(name, ".") {
		return domain.ErrConfiguration(
			"output_table %q must not be namespace-qualified; outputs are always written to curated", name)
	}
	if err := ddl.ValidateIdentifier(name); err != nil {
		return domain.ErrConfiguration("invalid output_table %q: %v", name, err)
	}
	return nil
}

func validateAlias(field, alias string) error {
	if alias == "" {
		return nil
	}
	if err := ddl.ValidateIdentifier(alias); err != nil {
		return domain.ErrConfiguration("invalid %s %q: %v", field, alias, err)
	}
	return nil
}

func requireRef(field string, ref domain.TableRef) error {
	if ref.Name == "" {
		return missingField(field)
	}
	if ref.Qualified() && !ref.Namespace.Valid() {
		return domain.ErrConfiguration("%s: unknown namespace %q (expected raw or curated)", field, ref.Namespace)
	}
	return nil
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return missingField(field)
	}
	return nil
}

func requireList(field string, values []string) error {
	if len(values) == 0 {
		return domain.ErrConfiguration("%s must contain at least one entry", field)
	}
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			return domain.ErrConfiguration("%s[%d] is empty", field, i)
		}
	}
	return nil
}

func missingField(field string) error {
	return domain.ErrConfiguration("missing required field %q", field)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
