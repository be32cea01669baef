package transform

import (
	"strings"

	"duck-pipeline/internal/ddl"
	"duck-pipeline/internal/domain"
)

// BuildQuery renders the SELECT a descriptor materializes. Table references
// are emitted quoted as given, so callers resolve plain references first.
// SQL fragments (conditions, predicates, metrics) are embedded verbatim.
func BuildQuery(t domain.Transform) (string, error) {
	var b strings.Builder

	switch t := t.(type) {
	case *domain.Filter:
		b.WriteString("SELECT * FROM ")
		b.WriteString(t.Source.SQL())
		b.WriteString(" WHERE ")
		b.WriteString(strings.TrimSpace(t.Condition))

	case *domain.Join:
		kw, err := JoinKeyword(t.JoinType)
		if err != nil {
			return "", err
		}
		sel := strings.TrimSpace(t.Select)
		if sel == "" {
			sel = "*"
		}
		b.WriteString("SELECT ")
		b.WriteString(sel)
		b.WriteString(" FROM ")
		b.WriteString(t.Left.SQL())
		writeAlias(&b, t.LeftAlias)
		b.WriteString(" " + kw + " JOIN ")
		b.WriteString(t.Right.SQL())
		writeAlias(&b, t.RightAlias)
		b.WriteString(" ON ")
		b.WriteString(strings.TrimSpace(t.On))

	case *domain.Aggregate:
		groupBy := strings.Join(t.GroupBy, ", ")
		b.WriteString("SELECT ")
		b.WriteString(groupBy)
		b.WriteString(", ")
		b.WriteString(strings.Join(t.Metrics, ", "))
		b.WriteString(" FROM ")
		b.WriteString(t.Source.SQL())
		if where := strings.TrimSpace(t.Where); where != "" {
			b.WriteString(" WHERE ")
			b.WriteString(where)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(groupBy)

	case *domain.RawSQL:
		b.WriteString(trimStatement(t.SQL))

	default:
		return "", domain.ErrConfiguration("unsupported transformation %T", t)
	}
	return b.String(), nil
}

// Statement wraps a built query in the create-or-replace that binds it to
// curated.<output_table>.
func Statement(t domain.Transform) (string, error) {
	q, err := BuildQuery(t)
	if err != nil {
		return "", err
	}
	return ddl.CreateOrReplaceTableAs(string(domain.NamespaceCurated), t.Output(), q)
}

// trimStatement drops surrounding whitespace and trailing semicolons so the
// statement can be embedded after AS.
func trimStatement(s string) string {
	s = strings.TrimSpace(s)
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	return s
}

func writeAlias(b *strings.Builder, alias string) {
	if alias != "" {
		b.WriteString(" AS ")
		b.WriteString(ddl.QuoteIdentifier(alias))
	}
}
