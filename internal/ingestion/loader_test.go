package ingestion

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/ddl"
	"duck-pipeline/internal/domain"
	"duck-pipeline/internal/engine"
)

func newCatalog(t *testing.T) *engine.Catalog {
	t.Helper()
	cat, err := engine.Open(context.Background(), "", engine.Options{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func writeCSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_CSVAndParquet(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	dir := t.TempDir()

	csvPath := writeCSV(t, dir, "orders.csv", "order_id,customer_id,amount\n1,1,30.5\n2,1,80\n3,2,120\n")

	parquetPath := filepath.Join(dir, "customers.parquet")
	require.NoError(t, cat.Exec(ctx,
		"COPY (SELECT * FROM (VALUES (1, 'ada'), (2, 'grace')) t(customer_id, name)) TO "+ddl.QuoteLiteral(parquetPath)+" (FORMAT parquet)"))

	loader := NewLoader(cat, slog.New(slog.DiscardHandler))
	results, err := loader.Load(ctx, []config.SourceSpec{
		{Name: "orders", Table: "orders", Format: "csv", Path: csvPath},
		{Name: "customers", Table: "customers", Format: "parquet", Path: parquetPath},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, domain.SourceResult{Name: "orders", Table: domain.RawTable("orders"), Rows: 3}, results[0])
	assert.Equal(t, domain.SourceResult{Name: "customers", Table: domain.RawTable("customers"), Rows: 2}, results[1])

	cols, err := cat.Columns(ctx, domain.RawTable("orders"))
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "order_id", cols[0].Name)
	assert.Equal(t, "DOUBLE", cols[2].DataType)
}

func TestLoad_ReplacesPreviousContents(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	dir := t.TempDir()
	loader := NewLoader(cat, nil)

	path := writeCSV(t, dir, "events.csv", "id\n1\n2\n3\n")
	_, err := loader.Load(ctx, []config.SourceSpec{{Table: "events", Format: "csv", Path: path}})
	require.NoError(t, err)

	path = writeCSV(t, dir, "events.csv", "id,kind\n1,a\n")
	results, err := loader.Load(ctx, []config.SourceSpec{{Table: "events", Format: "csv", Path: path}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), results[0].Rows)
	assert.Equal(t, "events", results[0].Name)

	cols, err := cat.Columns(ctx, domain.RawTable("events"))
	require.NoError(t, err)
	assert.Len(t, cols, 2)
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	good := writeCSV(t, dir, "good.csv", "a\n1\n")

	tests := []struct {
		name    string
		src     config.SourceSpec
		errType any
		wantMsg string
	}{
		{
			name:    "missing file",
			src:     config.SourceSpec{Table: "t", Format: "csv", Path: filepath.Join(dir, "missing.csv")},
			errType: new(*domain.NotFoundError),
			wantMsg: "source file not found",
		},
		{
			name:    "unsupported format",
			src:     config.SourceSpec{Name: "x", Table: "t", Format: "xlsx", Path: good},
			errType: new(*domain.ConfigurationError),
			wantMsg: `unsupported source format "xlsx"`,
		},
		{
			name:    "missing table",
			src:     config.SourceSpec{Name: "x", Format: "csv", Path: good},
			errType: new(*domain.ConfigurationError),
			wantMsg: "table is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(newCatalog(t), nil)
			_, err := loader.Load(ctx, []config.SourceSpec{tt.src})
			require.Error(t, err)
			assert.ErrorAs(t, err, tt.errType)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_StopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	cat := newCatalog(t)
	dir := t.TempDir()
	good := writeCSV(t, dir, "good.csv", "a\n1\n")

	results, err := NewLoader(cat, nil).Load(ctx, []config.SourceSpec{
		{Table: "first", Format: "csv", Path: good},
		{Table: "second", Format: "csv", Path: filepath.Join(dir, "nope.csv")},
		{Table: "third", Format: "csv", Path: good},
	})
	require.Error(t, err)
	assert.Len(t, results, 1)

	ok, err := cat.TableExists(ctx, domain.RawTable("third"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("s3://bucket/key.parquet"))
	assert.True(t, IsRemote("HTTPS://example.com/a.csv"))
	assert.True(t, IsRemote("gs://bucket/x.csv"))
	assert.False(t, IsRemote("/tmp/a.csv"))
	assert.False(t, IsRemote("data/s3://odd.csv"))
}

func TestCheckPath_SkipsGlobsAndRemote(t *testing.T) {
	require.NoError(t, checkPath("s3://bucket/missing.parquet"))
	require.NoError(t, checkPath("/no/such/dir/*.csv"))

	var nf *domain.NotFoundError
	require.ErrorAs(t, checkPath("/no/such/file.csv"), &nf)
}
