package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-pipeline/internal/domain"
)

func TestStatement(t *testing.T) {
	tests := []struct {
		name string
		tr   domain.Transform
		want string
	}{
		{
			name: "filter",
			tr:   &domain.Filter{Source: domain.RawTable("orders"), Condition: " amount > 50 ", OutputTable: "high_value_orders"},
			want: `CREATE OR REPLACE TABLE "curated"."high_value_orders" AS SELECT * FROM "raw"."orders" WHERE amount > 50`,
		},
		{
			name: "join defaults to inner and star",
			tr:   &domain.Join{Left: domain.RawTable("orders"), Right: domain.RawTable("customers"), On: "orders.cid = customers.id", OutputTable: "j"},
			want: `CREATE OR REPLACE TABLE "curated"."j" AS SELECT * FROM "raw"."orders" INNER JOIN "raw"."customers" ON orders.cid = customers.id`,
		},
		{
			name: "join with type and select",
			tr: &domain.Join{
				Left: domain.RawTable("orders"), Right: domain.CuratedTable("customers"),
				On: "orders.cid = customers.id", JoinType: "left outer", Select: "orders.id, customers.name", OutputTable: "j",
			},
			want: `CREATE OR REPLACE TABLE "curated"."j" AS SELECT orders.id, customers.name FROM "raw"."orders" LEFT JOIN "curated"."customers" ON orders.cid = customers.id`,
		},
		{
			name: "join with aliases",
			tr: &domain.Join{
				Left: domain.RawTable("employees"), Right: domain.RawTable("employees"), LeftAlias: "e", RightAlias: "m",
				On: "e.manager_id = m.id", Select: "e.name, m.name AS manager", OutputTable: "reports",
			},
			want: `CREATE OR REPLACE TABLE "curated"."reports" AS SELECT e.name, m.name AS manager FROM "raw"."employees" AS "e" INNER JOIN "raw"."employees" AS "m" ON e.manager_id = m.id`,
		},
		{
			name: "aggregate",
			tr: &domain.Aggregate{
				Source:      domain.CuratedTable("customer_orders"),
				GroupBy:     []string{"customer_id", "region"},
				Metrics:     []string{"COUNT(*) AS order_count", "SUM(amount) AS total_amount"},
				OutputTable: "summary",
			},
			want: `CREATE OR REPLACE TABLE "curated"."summary" AS SELECT customer_id, region, COUNT(*) AS order_count, SUM(amount) AS total_amount FROM "curated"."customer_orders" GROUP BY customer_id, region`,
		},
		{
			name: "aggregate with where",
			tr: &domain.Aggregate{
				Source: domain.RawTable("orders"), GroupBy: []string{"k"}, Metrics: []string{"MAX(v)"}, Where: "v > 0", OutputTable: "m",
			},
			want: `CREATE OR REPLACE TABLE "curated"."m" AS SELECT k, MAX(v) FROM "raw"."orders" WHERE v > 0 GROUP BY k`,
		},
		{
			name: "raw sql verbatim without trailing semicolons",
			tr:   &domain.RawSQL{SQL: "  WITH x AS (SELECT 1 AS a) SELECT * FROM x ;; ", OutputTable: "x"},
			want: `CREATE OR REPLACE TABLE "curated"."x" AS WITH x AS (SELECT 1 AS a) SELECT * FROM x`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Statement(tt.tr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildQuery_UnsupportedJoinType(t *testing.T) {
	_, err := BuildQuery(&domain.Join{Left: domain.RawTable("a"), Right: domain.RawTable("b"), On: "true", JoinType: "natural", OutputTable: "x"})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
