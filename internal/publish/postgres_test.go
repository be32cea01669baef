package publish

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/domain"
)

func TestPgError(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, pgError(plain))

	err := pgError(&pgconn.PgError{Message: "duplicate key", Detail: "Key (id)=(1) already exists."})
	assert.Contains(t, err.Error(), "Key (id)=(1) already exists.")
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
}

// TestPostgresPublish_Live runs against a real server when
// DUCKPIPE_TEST_POSTGRES_DSN is set.
func TestPostgresPublish_Live(t *testing.T) {
	dsn := os.Getenv("DUCKPIPE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DUCKPIPE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	cat := newSourceCatalog(t)

	pub, err := NewPostgres(ctx, dsn, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	schema := "duckpipe_test"
	t.Cleanup(func() {
		_, _ = pub.pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
	})

	target := config.TargetSpec{SourceTable: "curated.summary", TargetTable: "customer_summary", TargetSchema: schema, IfExists: config.IfExistsReplace}
	results, err := pub.Publish(ctx, cat, []config.TargetSpec{target, target})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[1].Rows)

	var total string
	require.NoError(t, pub.pool.QueryRow(ctx,
		`SELECT SUM(total_amount)::text FROM duckpipe_test.customer_summary`).Scan(&total))
	assert.Equal(t, "180.25", total)

	_, err = pub.Publish(ctx, cat, []config.TargetSpec{{
		SourceTable: "curated.summary", TargetTable: "customer_summary", TargetSchema: schema, IfExists: config.IfExistsFail,
	}})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}
