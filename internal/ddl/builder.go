// Package ddl builds DuckDB statements for schemas, table materialization,
// source reads, and secrets.
package ddl

import (
	"fmt"
	"strings"
)

// Supported source file formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// CreateSchemaIfNotExists returns: CREATE SCHEMA IF NOT EXISTS "<name>".
func CreateSchemaIfNotExists(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid schema name: %w", err)
	}
	return "CREATE SCHEMA IF NOT EXISTS " + QuoteIdentifier(name), nil
}

// CreateOrReplaceTableAs returns:
// CREATE OR REPLACE TABLE "<schema>"."<table>" AS <query>.
//
// The table name is quoted, not validated; the query is embedded verbatim.
func CreateOrReplaceTableAs(schema, table, query string) (string, error) {
	if err := ValidateIdentifier(schema); err != nil {
		return "", fmt.Errorf("invalid schema name: %w", err)
	}
	if table == "" {
		return "", fmt.Errorf("table name is required")
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", QualifiedName(schema, table), query), nil
}

// ReadFileQuery returns a SELECT over a DuckDB file reader with the path left
// as a positional parameter:
//
//	SELECT * FROM read_csv_auto(?, header=true)
//	SELECT * FROM read_parquet(?)
func ReadFileQuery(fileFormat string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(fileFormat)) {
	case FormatCSV:
		return "SELECT * FROM read_csv_auto(?, header=true)", nil
	case FormatParquet:
		return "SELECT * FROM read_parquet(?)", nil
	default:
		return "", fmt.Errorf("unsupported file format: %q", fileFormat)
	}
}

// CountRows returns: SELECT COUNT(*) FROM "<schema>"."<table>".
func CountRows(schema, table string) string {
	return "SELECT COUNT(*) FROM " + QualifiedName(schema, table)
}

// CreateS3Secret returns a DuckDB DDL statement to create an S3 secret.
func CreateS3Secret(name, keyID, secret, endpoint, region, urlStyle string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	opts := []string{"TYPE S3"}
	if keyID != "" {
		opts = append(opts, "KEY_ID "+QuoteLiteral(keyID))
	}
	if secret != "" {
		opts = append(opts, "SECRET "+QuoteLiteral(secret))
	}
	if endpoint != "" {
		opts = append(opts, "ENDPOINT "+QuoteLiteral(endpoint))
	}
	if region != "" {
		opts = append(opts, "REGION "+QuoteLiteral(region))
	}
	if urlStyle != "" {
		opts = append(opts, "URL_STYLE "+QuoteLiteral(urlStyle))
	}
	return fmt.Sprintf("CREATE OR REPLACE SECRET %s (\n\t%s\n)",
		QuoteIdentifier(name), strings.Join(opts, ",\n\t")), nil
}
