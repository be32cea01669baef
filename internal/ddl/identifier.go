package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// maxIdentifierLen bounds table and schema names written by the pipeline.
const maxIdentifierLen = 128

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedNames cannot be used as a table or schema name; DuckDB resolves
// them to catalog-level objects before user tables.
var reservedNames = map[string]bool{
	"information_schema": true,
	"pg_catalog":         true,
	"main":               true,
	"temp":               true,
	"system":             true,
}

// IdentifierError reports a name that cannot be used as an unquoted table or
// schema identifier.
type IdentifierError struct {
	Name   string
	Reason string
}

func (e *IdentifierError) Error() string {
	if e.Name == "" {
		return e.Reason
	}
	return fmt.Sprintf("%q %s", e.Name, e.Reason)
}

// ValidateIdentifier checks that name is a plain identifier: letters, digits
// and underscores, not starting with a digit, at most 128 bytes, and not a
// reserved catalog name.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return &IdentifierError{Reason: "name is required"}
	case len(name) > maxIdentifierLen:
		return &IdentifierError{Name: name[:16] + "...", Reason: fmt.Sprintf("is longer than %d characters", maxIdentifierLen)}
	case !identifierRe.MatchString(name):
		return &IdentifierError{Name: name, Reason: "may only contain letters, digits and underscores, and must not start with a digit"}
	case reservedNames[strings.ToLower(name)]:
		return &IdentifierError{Name: name, Reason: "is a reserved catalog name"}
	}
	return nil
}

// QuoteIdentifier double-quotes name, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes value, doubling embedded quotes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QualifiedName quotes each part and joins them with dots.
func QualifiedName(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = QuoteIdentifier(p)
	}
	return strings.Join(quoted, ".")
}
