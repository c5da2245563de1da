// internal/segment/compile_test.go
package segment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

var customerAttrs = []Attribute{
	{Name: "email", Type: types.TypeText},
	{Name: "city", Type: types.TypeText},
	{Name: "lifetime_value", Type: types.TypeNumber},
	{Name: "age", Type: types.TypeNumber},
	{Name: "is_active", Type: types.TypeBoolean},
	{Name: "signup_date", Type: types.TypeDatetime},
	{Name: "tags", Type: types.TypeArray},
}

func customersDef(conditions ...types.Condition) types.SegmentDefinition {
	return types.SegmentDefinition{
		Name:         "Test",
		Dataset:      "customers",
		RootOperator: types.OpAnd,
		Conditions:   conditions,
	}
}

func TestCompile_NumberCondition(t *testing.T) {
	def := customersDef(
		types.AttributeCondition{ID: 1, Field: "lifetime_value", Operator: OpGreaterThan, Value: float64(1000)},
	)

	query, diag := Compile(def, Options{Attributes: customerAttrs})
	want := "SELECT * FROM customers\nWHERE lifetime_value > 1000\nLIMIT 100"
	if query != want {
		t.Errorf("Compile() =\n%s\nwant\n%s", query, want)
	}
	if diag.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", diag.Skipped)
	}
}

func TestCompile_EmptyDefinitionFallsBackToTrue(t *testing.T) {
	query, _ := Compile(customersDef(), Options{})
	want := "SELECT * FROM customers\nWHERE 1=1\nLIMIT 100"
	if query != want {
		t.Errorf("Compile() =\n%s\nwant\n%s", query, want)
	}
}

func TestCompile_IncompleteConditionsSkipped(t *testing.T) {
	def := customersDef(
		types.AttributeCondition{ID: 1, Field: "email", Operator: OpEquals},              // no value
		types.AttributeCondition{ID: 2, Field: "", Operator: OpEquals, Value: "x"},      // no field
		types.AttributeCondition{ID: 3, Field: "city", Operator: "", Value: "Hanoi"},    // no operator
		types.AttributeCondition{ID: 4, Field: "age", Operator: OpBetween, Value: 18},   // missing value2
	)

	query, diag := Compile(def, Options{Attributes: customerAttrs})
	if !strings.Contains(query, "WHERE 1=1") {
		t.Errorf("expected 1=1 fallback, got:\n%s", query)
	}
	if diag.Skipped != 4 {
		t.Errorf("Skipped = %d, want 4", diag.Skipped)
	}
}

func TestCompile_OperatorClauses(t *testing.T) {
	tests := []struct {
		name string
		cond types.AttributeCondition
		want string
	}{
		{"equals text", types.AttributeCondition{ID: 1, Field: "city", Operator: OpEquals, Value: "Hanoi"}, "city = 'Hanoi'"},
		{"not equals", types.AttributeCondition{ID: 1, Field: "city", Operator: OpNotEquals, Value: "Hanoi"}, "city != 'Hanoi'"},
		{"contains", types.AttributeCondition{ID: 1, Field: "email", Operator: OpContains, Value: "gmail"}, "email LIKE '%gmail%'"},
		{"not contains", types.AttributeCondition{ID: 1, Field: "email", Operator: OpNotContains, Value: "spam"}, "email NOT LIKE '%spam%'"},
		{"starts with", types.AttributeCondition{ID: 1, Field: "email", Operator: OpStartsWith, Value: "admin"}, "email LIKE 'admin%'"},
		{"ends with", types.AttributeCondition{ID: 1, Field: "email", Operator: OpEndsWith, Value: ".vn"}, "email LIKE '%.vn'"},
		{"is null", types.AttributeCondition{ID: 1, Field: "email", Operator: OpIsNull}, "email IS NULL"},
		{"is not null", types.AttributeCondition{ID: 1, Field: "email", Operator: OpIsNotNull}, "email IS NOT NULL"},
		{"between numbers", types.AttributeCondition{ID: 1, Field: "age", Operator: OpBetween, Value: float64(18), Value2: float64(30)}, "age BETWEEN 18 AND 30"},
		{"boolean literal", types.AttributeCondition{ID: 1, Field: "is_active", Operator: OpEquals, Value: true}, "is_active = TRUE"},
		{"datetime after", types.AttributeCondition{ID: 1, Field: "signup_date", Operator: OpAfter, Value: "2024-01-01"}, "signup_date > '2024-01-01'"},
		{"datetime on", types.AttributeCondition{ID: 1, Field: "signup_date", Operator: OpOn, Value: "2024-01-01"}, "signup_date::date = '2024-01-01'"},
		{"relative days ago", types.AttributeCondition{ID: 1, Field: "signup_date", Operator: OpRelativeDaysAgo, Value: float64(7)}, "signup_date >= NOW() - INTERVAL '7 days'"},
		{"array contains", types.AttributeCondition{ID: 1, Field: "tags", Operator: OpContains, Value: "vip"}, "'vip' = ANY(tags)"},
		{"array contains all", types.AttributeCondition{ID: 1, Field: "tags", Operator: OpContainsAll, Value: "vip, active"}, "tags @> ARRAY['vip', 'active']"},
		{"array is empty", types.AttributeCondition{ID: 1, Field: "tags", Operator: OpIsEmpty}, "(tags IS NULL OR cardinality(tags) = 0)"},
		{"quote escaping", types.AttributeCondition{ID: 1, Field: "city", Operator: OpEquals, Value: "O'Brien"}, "city = 'O''Brien'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, _ := Compile(customersDef(tt.cond), Options{Attributes: customerAttrs})
			if !strings.Contains(query, tt.want) {
				t.Errorf("query missing %q:\n%s", tt.want, query)
			}
		})
	}
}

func TestCompile_RootOperatorJoins(t *testing.T) {
	def := customersDef(
		types.AttributeCondition{ID: 1, Field: "city", Operator: OpEquals, Value: "Hanoi"},
		types.AttributeCondition{ID: 2, Field: "city", Operator: OpEquals, Value: "Saigon"},
	)
	def.RootOperator = types.OpOr

	query, _ := Compile(def, Options{Attributes: customerAttrs})
	want := "WHERE city = 'Hanoi'\n  OR city = 'Saigon'"
	if !strings.Contains(query, want) {
		t.Errorf("query missing OR join:\n%s", query)
	}
}

func TestCompile_SchemaQualification(t *testing.T) {
	def := customersDef()
	def.Schema = "analytics"
	query, _ := Compile(def, Options{})
	if !strings.HasPrefix(query, "SELECT * FROM analytics.customers\n") {
		t.Errorf("expected qualified table:\n%s", query)
	}

	// The default namespace stays unqualified.
	def.Schema = "public"
	query, _ = Compile(def, Options{})
	if !strings.HasPrefix(query, "SELECT * FROM customers\n") {
		t.Errorf("public schema should stay unqualified:\n%s", query)
	}
}

func TestCompile_CustomLimit(t *testing.T) {
	query, _ := Compile(customersDef(), Options{Limit: 10000})
	if !strings.HasSuffix(query, "\nLIMIT 10000") {
		t.Errorf("expected LIMIT 10000:\n%s", query)
	}
}

func TestCompile_SimpleModeElidesEventConditions(t *testing.T) {
	def := customersDef(
		types.EventCondition{ID: 1, EventType: types.EventPerformed, EventName: "Purchase"},
	)

	query, diag := Compile(def, Options{Mode: ModeSimple})
	if strings.Contains(query, "EXISTS") {
		t.Errorf("simple mode emitted an event subquery:\n%s", query)
	}
	if diag.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", diag.Skipped)
	}
}

func TestCompile_EventPerformed(t *testing.T) {
	def := customersDef(
		types.EventCondition{
			ID: 1, EventType: types.EventPerformed, EventName: "Purchase",
			Frequency: types.FreqAtLeast, Count: 3, TimePeriod: types.PeriodDays, TimeValue: 90,
		},
	)

	query, _ := Compile(def, Options{Mode: ModeExtended})
	want := "EXISTS (SELECT 1 FROM events" +
		" WHERE events.customer_id = customers.customer_id" +
		" AND events.event_name = 'Purchase'" +
		" AND events.event_timestamp >= NOW() - INTERVAL '90 days'" +
		" GROUP BY events.customer_id" +
		" HAVING COUNT(*) >= 3)"
	if !strings.Contains(query, want) {
		t.Errorf("query missing event subquery:\n%s\nwant fragment:\n%s", query, want)
	}
}

func TestCompile_EventNotPerformed(t *testing.T) {
	def := customersDef(
		types.EventCondition{
			ID: 1, EventType: types.EventNotPerformed, EventName: "Churn",
			TimePeriod: types.PeriodWeeks, TimeValue: 4,
		},
	)

	query, _ := Compile(def, Options{Mode: ModeExtended})
	if !strings.Contains(query, "NOT EXISTS (SELECT 1 FROM events") {
		t.Errorf("expected NOT EXISTS:\n%s", query)
	}
	if !strings.Contains(query, "INTERVAL '4 weeks'") {
		t.Errorf("expected 4-week window:\n%s", query)
	}
	if strings.Contains(query, "HAVING") {
		t.Errorf("not_performed should not aggregate:\n%s", query)
	}
}

func TestCompile_EventFrequencies(t *testing.T) {
	tests := []struct {
		freq types.Frequency
		want string
	}{
		{types.FreqAtLeast, "HAVING COUNT(*) >= 2"},
		{types.FreqAtMost, "HAVING COUNT(*) <= 2"},
		{types.FreqExactly, "HAVING COUNT(*) = 2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			def := customersDef(types.EventCondition{
				ID: 1, EventType: types.EventPerformed, EventName: "Visit",
				Frequency: tt.freq, Count: 2,
			})
			query, _ := Compile(def, Options{Mode: ModeExtended})
			if !strings.Contains(query, tt.want) {
				t.Errorf("query missing %q:\n%s", tt.want, query)
			}
		})
	}
}

func TestCompile_EventFirstLastTime(t *testing.T) {
	def := customersDef(types.EventCondition{
		ID: 1, EventType: types.EventFirstTime, EventName: "Signup",
		TimePeriod: types.PeriodDays, TimeValue: 7,
	})
	query, _ := Compile(def, Options{Mode: ModeExtended})
	if !strings.Contains(query, "HAVING MIN(events.event_timestamp) >=") {
		t.Errorf("first_time should bound MIN:\n%s", query)
	}

	def = customersDef(types.EventCondition{
		ID: 1, EventType: types.EventLastTime, EventName: "Visit",
		TimePeriod: types.PeriodDays, TimeValue: 7,
	})
	query, _ = Compile(def, Options{Mode: ModeExtended})
	if !strings.Contains(query, "HAVING MAX(events.event_timestamp) >=") {
		t.Errorf("last_time should bound MAX:\n%s", query)
	}
}

func TestCompile_RelatedDataset(t *testing.T) {
	def := customersDef(types.RelatedCondition{
		ID: 1, RelatedDataset: "transactions", Relation: types.RelationWhere,
		Nested: types.ConditionList{
			types.AttributeCondition{ID: 2, Field: "total_amount", Operator: OpGreaterThan, Value: float64(100)},
		},
	})

	query, diag := Compile(def, Options{Mode: ModeExtended, Relations: DefaultRelations})
	want := "EXISTS (SELECT 1 FROM transactions" +
		" WHERE transactions.customer_id = customers.customer_id" +
		" AND transactions.total_amount > 100)"
	if !strings.Contains(query, want) {
		t.Errorf("query missing related subquery:\n%s\nwant fragment:\n%s", query, want)
	}
	if len(diag.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", diag.Warnings)
	}
}

func TestCompile_RelatedHavingMode(t *testing.T) {
	def := customersDef(types.RelatedCondition{
		ID: 1, RelatedDataset: "transactions", Relation: types.RelationHaving,
	})

	query, _ := Compile(def, Options{Mode: ModeExtended})
	if !strings.Contains(query, "GROUP BY transactions.customer_id HAVING COUNT(*) > 0") {
		t.Errorf("having mode missing aggregate:\n%s", query)
	}
}

func TestCompile_UndeclaredRelationWarnsButCompiles(t *testing.T) {
	def := types.SegmentDefinition{
		Dataset:      "stores",
		RootOperator: types.OpAnd,
		Conditions: types.ConditionList{
			types.RelatedCondition{ID: 1, RelatedDataset: "events", Relation: types.RelationWhere},
		},
	}

	query, diag := Compile(def, Options{Mode: ModeExtended, Relations: DefaultRelations})
	if !strings.Contains(query, "EXISTS (SELECT 1 FROM events") {
		t.Errorf("undeclared relation should still compile:\n%s", query)
	}
	if len(diag.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one undeclared-relation warning", diag.Warnings)
	}
}

func TestCompile_Groups(t *testing.T) {
	def := customersDef(
		types.AttributeCondition{ID: 1, Field: "email", Operator: OpIsNotNull},
	)
	def.Groups = []types.ConditionGroup{
		{ID: 2, Operator: types.OpOr, Conditions: types.ConditionList{
			types.AttributeCondition{ID: 3, Field: "city", Operator: OpEquals, Value: "Hanoi"},
			types.AttributeCondition{ID: 4, Field: "city", Operator: OpEquals, Value: "Saigon"},
		}},
		{ID: 5, Operator: types.OpAnd, Conditions: types.ConditionList{}}, // vacuous
	}

	query, _ := Compile(def, Options{Mode: ModeExtended, Attributes: customerAttrs})
	if !strings.Contains(query, "(city = 'Hanoi' OR city = 'Saigon')") {
		t.Errorf("group not parenthesized with its own operator:\n%s", query)
	}
	// The empty group contributes nothing.
	if strings.Contains(query, "()") || strings.Contains(query, "AND \n") {
		t.Errorf("vacuous group leaked into output:\n%s", query)
	}
}

func TestCompile_SingleMemberGroupUnwrapped(t *testing.T) {
	def := customersDef()
	def.Groups = []types.ConditionGroup{
		{ID: 1, Operator: types.OpOr, Conditions: types.ConditionList{
			types.AttributeCondition{ID: 2, Field: "city", Operator: OpEquals, Value: "Hanoi"},
		}},
	}

	query, _ := Compile(def, Options{Mode: ModeExtended, Attributes: customerAttrs})
	if strings.Contains(query, "(city") {
		t.Errorf("single-member group should not be parenthesized:\n%s", query)
	}
	if !strings.Contains(query, "city = 'Hanoi'") {
		t.Errorf("group member missing:\n%s", query)
	}
}

func TestCompile_Inclusions(t *testing.T) {
	def := customersDef()
	def.Inclusions = []types.SegmentRef{{ID: "segment:loyal", Name: "Loyal"}}

	query, _ := Compile(def, Options{Mode: ModeExtended})
	want := "customers.customer_id IN (SELECT member_id FROM segment_memberships WHERE segment_slug = 'segment:loyal')"
	if !strings.Contains(query, want) {
		t.Errorf("query missing inclusion clause:\n%s", query)
	}
}

func TestCompile_ExclusionsAlwaysConjunctive(t *testing.T) {
	def := customersDef(
		types.AttributeCondition{ID: 1, Field: "city", Operator: OpEquals, Value: "Hanoi"},
		types.AttributeCondition{ID: 2, Field: "city", Operator: OpEquals, Value: "Saigon"},
	)
	def.RootOperator = types.OpOr
	def.Exclusions = []types.SegmentRef{{ID: "segment:churned", Name: "Churned"}}

	query, _ := Compile(def, Options{Mode: ModeExtended, Attributes: customerAttrs})
	want := "(city = 'Hanoi'\n  OR city = 'Saigon')\n  AND customers.customer_id NOT IN (SELECT member_id FROM segment_memberships WHERE segment_slug = 'segment:churned')"
	if !strings.Contains(query, want) {
		t.Errorf("exclusion not AND-joined over parenthesized OR body:\n%s", query)
	}
}

func TestForeignKey(t *testing.T) {
	tests := []struct {
		dataset string
		want    string
	}{
		{"customers", "customer_id"},
		{"transactions", "transaction_id"},
		{"product_lines", "product_line_id"},
		{"stores", "store_id"},
	}
	for _, tt := range tests {
		if got := ForeignKey(tt.dataset); got != tt.want {
			t.Errorf("ForeignKey(%q) = %q, want %q", tt.dataset, got, tt.want)
		}
	}
}

// Property-based test: every compiled query has the fixed shape
func TestCompile_PropertyQueryShape(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("query is SELECT/WHERE/LIMIT with a non-empty predicate", prop.ForAll(
		func(nConds int, withValue bool, limit int) bool {
			var conds types.ConditionList
			for i := 0; i < nConds; i++ {
				c := types.AttributeCondition{ID: i + 1, Field: "city", Operator: OpEquals}
				if withValue {
					c.Value = fmt.Sprintf("v%d", i)
				}
				conds = append(conds, c)
			}
			def := customersDef(conds...)

			query, _ := Compile(def, Options{Limit: limit, Attributes: customerAttrs})

			if !strings.HasPrefix(query, "SELECT * FROM customers\nWHERE ") {
				return false
			}
			if !strings.Contains(query, "\nLIMIT ") {
				return false
			}
			// The WHERE clause is never empty.
			return !strings.Contains(query, "WHERE \n")
		},
		gen.IntRange(0, 10),
		gen.Bool(),
		gen.IntRange(-5, 500),
	))

	properties.TestingRun(t)
}
