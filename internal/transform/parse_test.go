package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duck-pipeline/internal/config"
	"duck-pipeline/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		spec config.TransformSpec
		want domain.Transform
	}{
		{
			name: "filter",
			spec: config.TransformSpec{Type: "filter", Source: "raw.orders", Condition: "amount > 50", OutputTable: "high_value_orders"},
			want: &domain.Filter{Source: domain.RawTable("orders"), Condition: "amount > 50", OutputTable: "high_value_orders"},
		},
		{
			name: "join with plain refs",
			spec: config.TransformSpec{Type: "Join", Left: "orders", Right: "curated.customers", On: "orders.customer_id = customers.id", JoinType: "left", OutputTable: "customer_orders"},
			want: &domain.Join{
				Left:        domain.TableRef{Name: "orders"},
				Right:       domain.CuratedTable("customers"),
				On:          "orders.customer_id = customers.id",
				JoinType:    "left",
				OutputTable: "customer_orders",
			},
		},
		{
			name: "self join with aliases",
			spec: config.TransformSpec{Type: "join", Left: "raw.employees", Right: "raw.employees", LeftAlias: " e ", RightAlias: "m", On: "e.manager_id = m.id", OutputTable: "reports"},
			want: &domain.Join{
				Left:        domain.RawTable("employees"),
				Right:       domain.RawTable("employees"),
				LeftAlias:   "e",
				RightAlias:  "m",
				On:          "e.manager_id = m.id",
				OutputTable: "reports",
			},
		},
		{
			name: "aggregate trims list entries",
			spec: config.TransformSpec{
				Type:        "AGGREGATE",
				Source:      "curated.customer_orders",
				GroupBy:     config.StringList{" customer_id "},
				Metrics:     config.StringList{"COUNT(*) AS order_count"},
				Where:       "amount > 0",
				OutputTable: "summary",
			},
			want: &domain.Aggregate{
				Source:      domain.CuratedTable("customer_orders"),
				GroupBy:     []string{"customer_id"},
				Metrics:     []string{"COUNT(*) AS order_count"},
				Where:       "amount > 0",
				OutputTable: "summary",
			},
		},
		{
			name: "sql",
			spec: config.TransformSpec{Type: "sql", SQL: "SELECT 1", OutputTable: "one"},
			want: &domain.RawSQL{SQL: "SELECT 1", OutputTable: "one"},
		},
		{
			name: "sql via query alias",
			spec: config.TransformSpec{Type: "sql", Query: "SELECT 2", OutputTable: "two"},
			want: &domain.RawSQL{SQL: "SELECT 2", OutputTable: "two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(0, tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		spec     config.TransformSpec
		wantKind domain.TransformKind
		wantMsg  string
	}{
		{name: "missing type", spec: config.TransformSpec{OutputTable: "x"}, wantMsg: "type is required"},
		{name: "unknown type", spec: config.TransformSpec{Type: "pivot", OutputTable: "x"}, wantMsg: `unsupported transformation type "pivot"`},
		{name: "filter without source", spec: config.TransformSpec{Type: "filter", Condition: "true", OutputTable: "x"}, wantKind: domain.KindFilter, wantMsg: `missing required field "source"`},
		{name: "join without on", spec: config.TransformSpec{Type: "join", Left: "raw.a", Right: "raw.b", OutputTable: "x"}, wantKind: domain.KindJoin, wantMsg: `missing required field "on"`},
		{name: "join without right", spec: config.TransformSpec{Type: "join", Left: "raw.a", On: "true", OutputTable: "x"}, wantKind: domain.KindJoin, wantMsg: `missing required field "right"`},
		{name: "invalid alias", spec: config.TransformSpec{Type: "join", Left: "raw.a", Right: "raw.b", LeftAlias: "a-1", On: "true", OutputTable: "x"}, wantKind: domain.KindJoin, wantMsg: `invalid left_alias "a-1"`},
		{name: "same alias twice", spec: config.TransformSpec{Type: "join", Left: "raw.a", Right: "raw.a", LeftAlias: "x", RightAlias: "X", On: "true", OutputTable: "x"}, wantKind: domain.KindJoin, wantMsg: "must differ"},
		{name: "bad namespace", spec: config.TransformSpec{Type: "filter", Source: "staging.a", Condition: "true", OutputTable: "x"}, wantKind: domain.KindFilter, wantMsg: `unknown namespace "staging"`},
		{name: "sql without statement", spec: config.TransformSpec{Type: "sql", OutputTable: "x"}, wantKind: domain.KindSQL, wantMsg: `missing required field "sql"`},
		{name: "aggregate without metrics", spec: config.TransformSpec{Type: "aggregate", Source: "raw.a", GroupBy: config.StringList{"k"}, OutputTable: "x"}, wantKind: domain.KindAggregate, wantMsg: "metrics must contain at least one entry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(4, tt.spec)
			require.Error(t, err)

			var stepErr *domain.StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, 4, stepErr.Index)
			assert.Equal(t, tt.wantKind, stepErr.Kind)

			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, cfgErr.Message, tt.wantMsg)
		})
	}
}

func TestParseAll_ReportsEveryInvalidRecord(t *testing.T) {
	specs := []config.TransformSpec{
		{Type: "filter", Source: "raw.a", Condition: "true", OutputTable: "ok"},
		{Type: "join", Left: "raw.a", Right: "raw.b", OutputTable: "j"},
		{Type: "nope", OutputTable: "n"},
	}

	got, err := ParseAll(specs)
	require.Error(t, err)
	assert.Nil(t, got)

	var indices []int
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var stepErr *domain.StepError
		require.True(t, errors.As(e, &stepErr))
		indices = append(indices, stepErr.Index)
	}
	assert.Equal(t, []int{1, 2}, indices)

	got, err = ParseAll(specs[:1])
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestJoinKeyword(t *testing.T) {
	for in, want := range map[string]string{
		"":             "INNER",
		"INNER":        "INNER",
		"Left Outer":   "LEFT",
		" full  outer": "FULL",
		"anti":         "ANTI",
	} {
		got, err := JoinKeyword(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := JoinKeyword("cross")
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}
