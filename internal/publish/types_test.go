package publish

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
)

func TestColumnType(t *testing.T) {
	tests := []struct {
		duck     string
		postgres string
		sqlite   string
	}{
		{"BOOLEAN", "BOOLEAN", "INTEGER"},
		{"TINYINT", "SMALLINT", "INTEGER"},
		{"INTEGER", "INTEGER", "INTEGER"},
		{"BIGINT", "BIGINT", "INTEGER"},
		{"UBIGINT", "NUMERIC(38,0)", "INTEGER"},
		{"HUGEINT", "NUMERIC(38,0)", "NUMERIC"},
		{"DOUBLE", "DOUBLE PRECISION", "REAL"},
		{"FLOAT", "REAL", "REAL"},
		{"DECIMAL(18,3)", "NUMERIC(18,3)", "NUMERIC"},
		{"decimal(9, 2)", "NUMERIC(9,2)", "NUMERIC"},
		{"VARCHAR", "TEXT", "TEXT"},
		{"DATE", "DATE", "TEXT"},
		{"TIMESTAMP", "TIMESTAMP", "TEXT"},
		{"TIMESTAMP WITH TIME ZONE", "TIMESTAMPTZ", "TEXT"},
		{"INTERVAL", "INTERVAL", "TEXT"},
		{"UUID", "UUID", "TEXT"},
		{"BLOB", "BYTEA", "BLOB"},
		{"JSON", "JSONB", "TEXT"},
		{"INTEGER[]", "TEXT", "TEXT"},
		{"STRUCT(a INTEGER[])", "TEXT", "TEXT"},
		{"MAP(VARCHAR, INTEGER)", "TEXT", "TEXT"},
	}

	for _, tt := range tests {
		t.Run(tt.duck, func(t *testing.T) {
			assert.Equal(t, tt.postgres, columnType(dialectPostgres, tt.duck))
			assert.Equal(t, tt.sqlite, columnType(dialectSQLite, tt.duck))
		})
	}
}

func TestBaseType(t *testing.T) {
	assert.Equal(t, "DECIMAL", baseType("decimal(18,3)"))
	assert.Equal(t, "LIST", baseType("VARCHAR[]"))
	assert.Equal(t, "STRUCT", baseType("STRUCT(a INTEGER[])"))
	assert.Equal(t, "VARCHAR", baseType(" varchar "))
}

func TestPgValue(t *testing.T) {
	id := uuid.MustParse("0190c8a4-5b6e-7c2d-9e3f-1a2b3c4d5e6f")
	ts := time.Date(2026, 3, 4, 5, 6, 7, 8000, time.UTC)

	tests := []struct {
		name string
		col  column
		in   any
		want any
	}{
		{"nil", column{SourceType: "INTEGER"}, nil, nil},
		{"int32 widened", column{SourceType: "INTEGER"}, int32(7), int64(7)},
		{"uint64 as numeric", column{SourceType: "UBIGINT"}, uint64(9), pgtype.Numeric{Int: big.NewInt(9), Valid: true}},
		{"hugeint", column{SourceType: "HUGEINT"}, big.NewInt(12), pgtype.Numeric{Int: big.NewInt(12), Valid: true}},
		{"decimal", column{SourceType: "DECIMAL(10,2)"}, duckdb.Decimal{Width: 10, Scale: 2, Value: big.NewInt(1250)}, pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true}},
		{"interval", column{SourceType: "INTERVAL"}, duckdb.Interval{Months: 1, Days: 2, Micros: 3}, pgtype.Interval{Months: 1, Days: 2, Microseconds: 3, Valid: true}},
		{"time of day", column{SourceType: "TIME"}, ts, pgtype.Time{Microseconds: 5*3_600_000_000 + 6*60_000_000 + 7*1_000_000 + 8, Valid: true}},
		{"timestamp", column{SourceType: "TIMESTAMP"}, ts, ts},
		{"uuid string", column{SourceType: "UUID"}, id.String(), pgtype.UUID{Bytes: [16]byte(id), Valid: true}},
		{"uuid bytes", column{SourceType: "UUID"}, id[:], pgtype.UUID{Bytes: [16]byte(id), Valid: true}},
		{"uuid array", column{SourceType: "UUID"}, [16]byte(id), pgtype.UUID{Bytes: [16]byte(id), Valid: true}},
		{"json", column{SourceType: "JSON"}, `{"a":1}`, json.RawMessage(`{"a":1}`)},
		{"list", column{SourceType: "INTEGER[]"}, []any{int32(1), int32(2)}, "[1,2]"},
		{"map with non-string keys", column{SourceType: "MAP(INTEGER, VARCHAR)"}, map[any]any{1: "a"}, `{"1":"a"}`},
		{"text", column{SourceType: "VARCHAR"}, "hello", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pgValue(tt.col, tt.in))
		})
	}
}

func TestSQLiteValue(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	tests := []struct {
		name string
		col  column
		in   any
		want any
	}{
		{"int16", column{SourceType: "SMALLINT"}, int16(3), int64(3)},
		{"big uint64", column{SourceType: "UBIGINT"}, uint64(1 << 63), "9223372036854775808"},
		{"small hugeint", column{SourceType: "HUGEINT"}, big.NewInt(5), int64(5)},
		{"decimal", column{SourceType: "DECIMAL(10,2)"}, duckdb.Decimal{Width: 10, Scale: 2, Value: big.NewInt(-5)}, "-0.05"},
		{"date", column{SourceType: "DATE"}, ts, "2026-03-04"},
		{"time", column{SourceType: "TIME"}, ts, "05:06:07"},
		{"timestamp", column{SourceType: "TIMESTAMP"}, ts, "2026-03-04 05:06:07Z"},
		{"struct", column{SourceType: "STRUCT(a INTEGER)"}, map[string]any{"a": int32(1)}, `{"a":1}`},
		{"float32", column{SourceType: "FLOAT"}, float32(1.5), float64(1.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteValue(tt.col, tt.in))
		})
	}
}

func TestFormatDecimal(t *testing.T) {
	assert.Equal(t, "12.50", formatDecimal(big.NewInt(1250), 2))
	assert.Equal(t, "0.005", formatDecimal(big.NewInt(5), 3))
	assert.Equal(t, "-1.5", formatDecimal(big.NewInt(-15), 1))
	assert.Equal(t, "42", formatDecimal(big.NewInt(42), 0))
	assert.Equal(t, "0", formatDecimal(nil, 2))
}

func TestPgCreateTableSQL(t *testing.T) {
	got := pgCreateTableSQL(pgx.Identifier{"reporting", "customer summary"}, []column{
		{Name: "customer_id", SourceType: "INTEGER"},
		{Name: "total", SourceType: "DECIMAL(18,2)"},
		{Name: "name", SourceType: "VARCHAR"},
	})
	assert.Equal(t, "CREATE TABLE \"reporting\".\"customer summary\" (\n\t\"customer_id\" INTEGER,\n\t\"total\" NUMERIC(18,2),\n\t\"name\" TEXT\n)", got)
}
