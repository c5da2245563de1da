// internal/segment/operators.go
package segment

import "github.com/NguyenLeGiangHa/cohort/internal/types"

/*
 * Operator catalog.
 *
 * Static table of valid operators per semantic type, each with a display
 * label and a required arity (0, 1 or 2 values). No computation: the table
 * is the single source of truth for what the builder may select and what
 * the compiler must know how to emit.
 */

// Operator keys. Stable; persisted inside segment definitions.
const (
	OpEquals          = "equals"
	OpNotEquals       = "not_equals"
	OpContains        = "contains"
	OpNotContains     = "not_contains"
	OpStartsWith      = "starts_with"
	OpEndsWith        = "ends_with"
	OpGreaterThan     = "greater_than"
	OpLessThan        = "less_than"
	OpBetween         = "between"
	OpAfter           = "after"
	OpBefore          = "before"
	OpOn              = "on"
	OpNotOn           = "not_on"
	OpRelativeDaysAgo = "relative_days_ago"
	OpContainsAll     = "contains_all"
	OpIsNull          = "is_null"
	OpIsNotNull       = "is_not_null"
	OpIsEmpty         = "is_empty"
	OpIsNotEmpty      = "is_not_empty"
)

// Operator describes one filter operator.
type Operator struct {
	Key   string
	Label string
	Arity int // number of values required: 0, 1 or 2
}

var operatorTable = map[types.SemanticType][]Operator{
	types.TypeText: {
		{OpEquals, "is", 1},
		{OpNotEquals, "is not", 1},
		{OpContains, "contains", 1},
		{OpNotContains, "does not contain", 1},
		{OpStartsWith, "starts with", 1},
		{OpEndsWith, "ends with", 1},
		{OpIsNull, "is blank", 0},
		{OpIsNotNull, "is not blank", 0},
	},
	types.TypeNumber: {
		{OpEquals, "equals", 1},
		{OpNotEquals, "does not equal", 1},
		{OpGreaterThan, "more than", 1},
		{OpLessThan, "less than", 1},
		{OpBetween, "between", 2},
		{OpIsNull, "is blank", 0},
		{OpIsNotNull, "is not blank", 0},
	},
	types.TypeDatetime: {
		{OpAfter, "after", 1},
		{OpBefore, "before", 1},
		{OpOn, "on", 1},
		{OpNotOn, "not on", 1},
		{OpBetween, "between", 2},
		{OpRelativeDaysAgo, "in the last...", 1},
		{OpIsNull, "is blank", 0},
		{OpIsNotNull, "is not blank", 0},
	},
	types.TypeBoolean: {
		{OpEquals, "is", 1},
		{OpNotEquals, "is not", 1},
	},
	types.TypeArray: {
		{OpContains, "contains", 1},
		{OpNotContains, "does not contain", 1},
		{OpContainsAll, "contains all of", 1},
		{OpIsEmpty, "is empty", 0},
		{OpIsNotEmpty, "is not empty", 0},
	},
}

// OperatorsFor returns the ordered operator list for a semantic type.
// Unknown types fall back to the text operators. The returned slice is a
// copy; callers may reorder it freely.
func OperatorsFor(t types.SemanticType) []Operator {
	ops, ok := operatorTable[t]
	if !ok {
		ops = operatorTable[types.TypeText]
	}
	out := make([]Operator, len(ops))
	copy(out, ops)
	return out
}

// DefaultOperatorFor returns the operator preselected when a field of the
// given type is added to a segment.
func DefaultOperatorFor(t types.SemanticType) string {
	switch t {
	case types.TypeDatetime:
		return OpAfter
	case types.TypeArray:
		return OpContains
	default:
		return OpEquals
	}
}

// OperatorArity returns the number of values the operator requires.
// Unknown keys report arity 1, the common case.
func OperatorArity(key string) int {
	switch key {
	case OpIsNull, OpIsNotNull, OpIsEmpty, OpIsNotEmpty:
		return 0
	case OpBetween:
		return 2
	default:
		return 1
	}
}
