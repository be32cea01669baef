package domain

import "strings"

// Namespace is one of the two logical schemas of the catalog store.
type Namespace string

// Catalog namespaces.
const (
	NamespaceRaw     Namespace = "raw"
	NamespaceCurated Namespace = "curated"
)

// Valid reports whether n is a known namespace.
func (n Namespace) Valid() bool {
	return n == NamespaceRaw || n == NamespaceCurated
}

// TableRef names a table in the catalog store. An empty Namespace means the
// reference was written unqualified and still needs resolving.
type TableRef struct {
	Namespace Namespace
	Name      string
}

// RawTable returns a reference to raw.<name>.
func RawTable(name string) TableRef { return TableRef{Namespace: NamespaceRaw, Name: name} }

// CuratedTable returns a reference to curated.<name>.
func CuratedTable(name string) TableRef { return TableRef{Namespace: NamespaceCurated, Name: name} }

// IsZero reports whether the reference is unset.
func (r TableRef) IsZero() bool { return r.Namespace == "" && r.Name == "" }

// Qualified reports whether the reference carries a namespace.
func (r TableRef) Qualified() bool { return r.Namespace != "" }

// String renders the reference as written in configuration, e.g. raw.orders.
func (r TableRef) String() string {
	if r.Namespace == "" {
		return r.Name
	}
	return string(r.Namespace) + "." + r.Name
}

// SQL renders the reference with quoted identifiers, e.g. "raw"."orders".
func (r TableRef) SQL() string {
	if r.Namespace == "" {
		return quoteIdent(r.Name)
	}
	return quoteIdent(string(r.Namespace)) + "." + quoteIdent(r.Name)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParseTableRef parses "<table>", "raw.<table>" or "curated.<table>".
// Either part may be double-quoted.
func ParseTableRef(s string) (TableRef, error) {
	parts, err := splitQualifiedName(strings.TrimSpace(s))
	if err != nil {
		return TableRef{}, err
	}
	switch len(parts) {
	case 1:
		return TableRef{Name: parts[0]}, nil
	case 2:
		ns := Namespace(strings.ToLower(parts[0]))
		if !ns.Valid() {
			return TableRef{}, ErrConfiguration("table reference %q: unknown namespace %q (expected raw or curated)", s, parts[0])
		}
		return TableRef{Namespace: ns, Name: parts[1]}, nil
	default:
		return TableRef{}, ErrConfiguration("table reference %q: expected <namespace>.<table>", s)
	}
}

// splitQualifiedName splits a dotted name, honoring double-quoted parts.
func splitQualifiedName(s string) ([]string, error) {
	if s == "" {
		return nil, ErrConfiguration("table reference is empty")
	}
	var (
		parts []string
		cur   strings.Builder
	)
	quoted := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quoted && c == '"':
			if i+1 < len(s) && s[i+1] == '"' {
				cur.WriteByte('"')
				i++
				continue
			}
			quoted = false
		case quoted:
			cur.WriteByte(c)
		case c == '"':
			quoted = true
		case c == '.':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if quoted {
		return nil, ErrConfiguration("table reference %q: unterminated quote", s)
	}
	parts = append(parts, cur.String())
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, ErrConfiguration("table reference %q: empty name part", s)
		}
	}
	return parts, nil
}

// TransformKind is the declared type of a transform descriptor.
type TransformKind string

// Transform kinds as written in the config `type` field.
const (
	KindFilter    TransformKind = "filter"
	KindJoin      TransformKind = "join"
	KindAggregate TransformKind = "aggregate"
	KindSQL       TransformKind = "sql"
)

// Transform is a closed set of descriptor variants: *Filter, *Join,
// *Aggregate and *RawSQL.
type Transform interface {
	Kind() TransformKind
	Output() string
	isTransform()
}

// Filter keeps the rows of Source matching Condition.
type Filter struct {
	Source      TableRef
	Condition   string
	OutputTable string
}

// Join combines Left and Right on the On predicate. An alias, when set,
// replaces the table name in On and Select, which makes self-joins possible.
type Join struct {
	Left        TableRef
	Right       TableRef
	LeftAlias   string
	RightAlias  string
	On          string
	JoinType    string // empty means INNER
	Select      string // empty means *
	OutputTable string
}

// Aggregate groups Source by GroupBy and computes Metrics.
type Aggregate struct {
	Source      TableRef
	GroupBy     []string
	Metrics     []string
	Where       string
	OutputTable string
}

// RawSQL binds the result of an arbitrary query to OutputTable.
type RawSQL struct {
	SQL         string
	OutputTable string
}

func (*Filter) Kind() TransformKind    { return KindFilter }
func (*Join) Kind() TransformKind      { return KindJoin }
func (*Aggregate) Kind() TransformKind { return KindAggregate }
func (*RawSQL) Kind() TransformKind    { return KindSQL }

func (t *Filter) Output() string    { return t.OutputTable }
func (t *Join) Output() string      { return t.OutputTable }
func (t *Aggregate) Output() string { return t.OutputTable }
func (t *RawSQL) Output() string    { return t.OutputTable }

func (*Filter) isTransform()    {}
func (*Join) isTransform()      {}
func (*Aggregate) isTransform() {}
func (*RawSQL) isTransform()    {}

// ParseTransformKind normalizes a config `type` value.
func ParseTransformKind(s string) (TransformKind, error) {
	switch k := TransformKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFilter, KindJoin, KindAggregate, KindSQL:
		return k, nil
	case "":
		return "", ErrConfiguration("type is required")
	default:
		return "", ErrConfiguration("unsupported transformation type %q", s)
	}
}

// String implements fmt.Stringer.
func (k TransformKind) String() string { return string(k) }
