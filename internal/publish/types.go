package publish

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

var decimalRe = regexp.MustCompile(`^(?:DECIMAL|NUMERIC)\s*\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)

// baseType upper-cases a DuckDB type name and strips parameters, so
// "decimal(18,3)" yields "DECIMAL". Nested types keep their family name.
func baseType(duckType string) string {
	t := strings.ToUpper(strings.TrimSpace(duckType))
	for _, nested := range []string{"STRUCT", "MAP", "UNION"} {
		if strings.HasPrefix(t, nested+"(") {
			return nested
		}
	}
	if strings.HasSuffix(t, "]") {
		return "LIST"
	}
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// columnType maps a DuckDB column type to the target dialect. Unknown and
// nested types become text; their values are written as JSON.
func columnType(d dialect, duckType string) string {
	base := baseType(duckType)
	if d == dialectSQLite {
		switch base {
		case "BOOLEAN", "TINYINT", "SMALLINT", "INTEGER", "BIGINT",
			"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT":
			return "INTEGER"
		case "FLOAT", "DOUBLE", "REAL":
			return "REAL"
		case "DECIMAL", "NUMERIC", "HUGEINT", "UHUGEINT":
			return "NUMERIC"
		case "BLOB":
			return "BLOB"
		default:
			return "TEXT"
		}
	}

	switch base {
	case "BOOLEAN":
		return "BOOLEAN"
	case "TINYINT", "SMALLINT", "UTINYINT":
		return "SMALLINT"
	case "INTEGER", "USMALLINT":
		return "INTEGER"
	case "BIGINT", "UINTEGER":
		return "BIGINT"
	case "HUGEINT", "UBIGINT", "UHUGEINT":
		return "NUMERIC(38,0)"
	case "FLOAT", "REAL":
		return "REAL"
	case "DOUBLE":
		return "DOUBLE PRECISION"
	case "DECIMAL", "NUMERIC":
		if m := decimalRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(duckType))); m != nil {
			return fmt.Sprintf("NUMERIC(%s,%s)", m[1], m[2])
		}
		return "NUMERIC"
	case "DATE":
		return "DATE"
	case "TIME":
		return "TIME"
	case "TIMESTAMP", "TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS", "DATETIME":
		return "TIMESTAMP"
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return "TIMESTAMPTZ"
	case "INTERVAL":
		return "INTERVAL"
	case "UUID":
		return "UUID"
	case "BLOB":
		return "BYTEA"
	case "JSON":
		return "JSONB"
	default:
		return "TEXT"
	}
}

// pgValue converts a scanned DuckDB value into something pgx can encode
// for the column's Postgres type.
func pgValue(col column, v any) any {
	switch x := v.(type) {
	case string:
		switch baseType(col.SourceType) {
		case "UUID":
			if id, err := uuid.Parse(x); err == nil {
				return pgtype.UUID{Bytes: [16]byte(id), Valid: true}
			}
		case "JSON":
			return json.RawMessage(x)
		}
		return x
	case nil, bool, int64, float64:
		return v
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return pgtype.Numeric{Int: new(big.Int).SetUint64(x), Valid: true}
	case float32:
		return float64(x)
	case *big.Int:
		return pgtype.Numeric{Int: x, Valid: true}
	case duckdb.Decimal:
		return pgtype.Numeric{Int: x.Value, Exp: -int32(x.Scale), Valid: true}
	case duckdb.Interval:
		return pgtype.Interval{Months: x.Months, Days: x.Days, Microseconds: x.Micros, Valid: true}
	case time.Time:
		if baseType(col.SourceType) == "TIME" {
			return pgtype.Time{Microseconds: microsOfDay(x), Valid: true}
		}
		return x
	case []byte:
		if baseType(col.SourceType) == "UUID" && len(x) == 16 {
			var id [16]byte
			copy(id[:], x)
			return pgtype.UUID{Bytes: id, Valid: true}
		}
		return x
	}

	if id, ok := asUUID(v); ok {
		return pgtype.UUID{Bytes: id, Valid: true}
	}
	if s, ok := asJSON(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

// sqliteValue converts a scanned DuckDB value into a type go-sqlite3 binds
// natively.
func sqliteValue(col column, v any) any {
	switch x := v.(type) {
	case nil, bool, string, int64, float64:
		return v
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return new(big.Int).SetUint64(x).String()
	case float32:
		return float64(x)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case duckdb.Decimal:
		return formatDecimal(x.Value, x.Scale)
	case duckdb.Interval:
		return fmt.Sprintf("%d months %d days %s", x.Months, x.Days, time.Duration(x.Micros)*time.Microsecond)
	case time.Time:
		switch baseType(col.SourceType) {
		case "DATE":
			return x.Format(time.DateOnly)
		case "TIME":
			return x.Format("15:04:05.999999")
		default:
			return x.Format("2006-01-02 15:04:05.999999Z07:00")
		}
	case []byte:
		if baseType(col.SourceType) == "UUID" && len(x) == 16 {
			id, _ := uuid.FromBytes(x)
			return id.String()
		}
		return x
	}

	if id, ok := asUUID(v); ok {
		return uuid.UUID(id).String()
	}
	if s, ok := asJSON(v); ok {
		return s
	}
	return fmt.Sprint(v)
}

// asUUID recognizes 16-byte array types such as the driver's UUID.
func asUUID(v any) ([16]byte, bool) {
	var out [16]byte
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Array || rv.Len() != 16 || rv.Type().Elem().Kind() != reflect.Uint8 {
		return out, false
	}
	for i := range out {
		out[i] = byte(rv.Index(i).Uint())
	}
	return out, true
}

// asJSON renders lists, structs and maps as JSON text.
func asJSON(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
	default:
		return "", false
	}
	b, err := json.Marshal(jsonSafe(v))
	if err != nil {
		return fmt.Sprint(v), true
	}
	return string(b), true
}

// jsonSafe rewrites maps with non-string keys, which encoding/json rejects.
func jsonSafe(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = jsonSafe(iter.Value().Interface())
		}
		return out
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = jsonSafe(rv.Index(i).Interface())
		}
		return out
	default:
		return v
	}
}

// formatDecimal renders value * 10^-scale without going through float64.
func formatDecimal(value *big.Int, scale uint8) string {
	if value == nil {
		return "0"
	}
	digits := new(big.Int).Abs(value).String()
	sign := ""
	if value.Sign() < 0 {
		sign = "-"
	}
	if scale == 0 {
		return sign + digits
	}
	s := int(scale)
	if len(digits) <= s {
		digits = strings.Repeat("0", s-len(digits)+1) + digits
	}
	return sign + digits[:len(digits)-s] + "." + digits[len(digits)-s:]
}

func microsOfDay(t time.Time) int64 {
	return int64(t.Hour())*3_600_000_000 +
		int64(t.Minute())*60_000_000 +
		int64(t.Second())*1_000_000 +
		int64(t.Nanosecond())/1_000
}
