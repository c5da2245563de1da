// internal/segment/compile.go
package segment

import (
	"fmt"
	"strings"

	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

/*
 * Predicate compiler.
 *
 * Walks a SegmentDefinition and emits a parameterized filter query for the
 * fixed target dialect (PostgreSQL, the single relational backend).
 *
 * Output shape:
 *   SELECT * FROM <table>
 *   WHERE <clause> [\n  <AND|OR> <clause> ...]
 *   LIMIT <n>
 *
 * Invariants:
 *   - The WHERE clause is never empty: zero usable conditions compile to the
 *     universally-true predicate 1=1.
 *   - Incomplete conditions (missing field, operator, value, event name or
 *     related dataset) are elided, never an error; Diagnostics.Skipped counts
 *     them so callers can surface incompleteness.
 *   - Group results merge into the outer clause list as one parenthesized
 *     unit; separately grouped members never flatten into the outer join.
 *   - Exclusion references are always AND-joined regardless of the root
 *     operator; exclusion semantics are inherently restrictive.
 */

// Mode selects how much of the condition model the compiler honors.
type Mode int

const (
	// ModeSimple emits a flat WHERE over top-level attribute conditions
	// only, mirroring the interactive preview.
	ModeSimple Mode = iota

	// ModeExtended additionally honors event conditions, related-dataset
	// conditions, condition groups, and inclusion/exclusion references.
	ModeExtended
)

// Compiler context constants for the behavioral event store.
const (
	eventsTable     = "events"
	eventsNameCol   = "event_name"
	eventsTimeCol   = "event_timestamp"
	membershipTable = "segment_memberships"
)

// DefaultSchema is the namespace that stays unqualified in emitted queries.
const DefaultSchema = "public"

// Options parameterizes one compile call.
type Options struct {
	Mode Mode

	// Limit is the row-count ceiling appended to the emitted query. The
	// bound differs per call site (interactive preview vs. full size
	// evaluation) and must be chosen by the caller; zero falls back to 100.
	Limit int

	// DefaultSchema overrides the namespace treated as unqualified.
	DefaultSchema string

	// Attributes is the live attribute list of the root dataset; empty
	// degrades to field-name heuristics (all unknown fields become text).
	Attributes []Attribute

	// Relations declares which datasets are reachable from each root
	// dataset. Nil disables the check; an unknown related dataset still
	// compiles best-effort but produces a warning.
	Relations map[string][]string
}

// Diagnostics reports what the compiler elided. The emitted query is always
// valid; incompleteness is visible here and in the preview text itself.
type Diagnostics struct {
	Skipped  int
	Warnings []string
}

func (d *Diagnostics) skip() { d.Skipped++ }
func (d *Diagnostics) warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// DefaultRelations mirrors the declared reachability of the retail schema.
var DefaultRelations = map[string][]string{
	"customers":     {"transactions", "events"},
	"transactions":  {"customers", "stores", "product_lines"},
	"stores":        {"transactions"},
	"product_lines": {"transactions"},
}

// Compile renders the definition as an executable filter query.
func Compile(def types.SegmentDefinition, opts Options) (string, Diagnostics) {
	var diag Diagnostics

	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.DefaultSchema == "" {
		opts.DefaultSchema = DefaultSchema
	}

	table := def.Dataset
	if def.Schema != "" && def.Schema != opts.DefaultSchema {
		table = def.Schema + "." + table
	}

	var clauses []string
	for _, c := range def.Conditions {
		if clause, ok := compileCondition(c, def, table, opts, &diag); ok {
			clauses = append(clauses, clause)
		} else {
			diag.skip()
		}
	}

	if opts.Mode == ModeExtended {
		for _, g := range def.Groups {
			if clause, ok := compileGroup(g, def, table, opts, &diag); ok {
				clauses = append(clauses, clause)
			}
		}
		if clause, ok := compileInclusions(def, table); ok {
			clauses = append(clauses, clause)
		}
	}

	joiner := "\n  " + string(def.RootOperator) + " "
	where := strings.Join(clauses, joiner)

	if opts.Mode == ModeExtended {
		if exc, ok := compileExclusions(def, table); ok {
			switch {
			case where == "":
				where = exc
			case len(clauses) > 1 && def.RootOperator == types.OpOr:
				// Exclusions stay conjunctive even under an OR root.
				where = "(" + where + ")\n  AND " + exc
			default:
				where = where + "\n  AND " + exc
			}
		}
	}

	if where == "" {
		where = "1=1"
	}

	return fmt.Sprintf("SELECT * FROM %s\nWHERE %s\nLIMIT %d", table, where, opts.Limit), diag
}

// compileCondition dispatches on the condition kind, exhaustively. Simple
// mode honors attribute conditions only.
func compileCondition(c types.Condition, def types.SegmentDefinition, table string, opts Options, diag *Diagnostics) (string, bool) {
	switch v := c.(type) {
	case types.AttributeCondition:
		return attributeClause(v, opts.Attributes, diag)
	case types.EventCondition:
		if opts.Mode != ModeExtended {
			return "", false
		}
		return eventClause(v, def.Dataset, table)
	case types.RelatedCondition:
		if opts.Mode != ModeExtended {
			return "", false
		}
		return relatedClause(v, def.Dataset, table, opts, diag)
	default:
		return "", false
	}
}

// attributeClause emits one comparison clause, or reports the condition as
// unusable. Literal formatting follows the field's semantic type.
func attributeClause(c types.AttributeCondition, attrs []Attribute, diag *Diagnostics) (string, bool) {
	if c.Field == "" || c.Operator == "" {
		return "", false
	}

	t := resolveAgainst(attrs, c.Field)
	f := c.Field

	switch c.Operator {
	case OpEquals:
		if !hasValue(c.Value) {
			return "", false
		}
		return fmt.Sprintf("%s = %s", f, literal(c.Value, t)), true
	case OpNotEquals:
		if !hasValue(c.Value) {
			return "", false
		}
		return fmt.Sprintf("%s != %s", f, literal(c.Value, t)), true
	case OpContains:
		if !hasValue(c.Value) {
			return "", false
		}
		if t == types.TypeArray {
			return fmt.Sprintf("%s = ANY(%s)", quote(valueText(c.Value)), f), true
		}
		return fmt.Sprintf("%s LIKE %s", f, likePattern("%", c.Value, "%")), true
	case OpNotContains:
		if !hasValue(c.Value) {
			return "", false
		}
		if t == types.TypeArray {
			return fmt.Sprintf("NOT (%s = ANY(%s))", quote(valueText(c.Value)), f), true
		}
		return fmt.Sprintf("%s NOT LIKE %s", f, likePattern("%", c.Value, "%")), true
	case OpStartsWith:
		if !hasValue(c.Value) {
			return "", false
		}
		return fmt.Sprintf("%s LIKE %s", f, likePattern("", c.Value, "%")), true
	case OpEndsWith:
		if !hasValue(c.Value) {
			return "", false
		}
		return fmt.Sprintf("%s LIKE %s", f, likePattern("%", c.Value, "")), true
	case OpIsNull:
		return f + " IS NULL", true
	case OpIsNotNull:
		return f + " IS NOT NULL", true
	case OpGreaterThan, OpAfter:
		if !hasValue(c.Value) {
			return "", false
		}
		return fmt.Sprintf("%s > %s", f, literal(c.Value, t)), true
	case OpLessThan, OpBefore:
		if !hasValue(c.Value) {
			return "", false
		}
		return fmt.Sprintf("%s < %s", f, literal(c.Value, t)), true
	case OpBetween:
		// Emitted only when both bounds are present.
		if !hasValue(c.Value) || !hasValue(c.Value2) {
			return "", false
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", f, literal(c.Value, t), literal(c.Value2, t)), true
	case OpOn:
		if !hasValue(c.Value) {
			return "", false
		}
		return fmt.Sprintf("%s::date = %s", f, literal(c.Value, types.TypeDatetime)), true
	case OpNotOn:
		if !hasValue(c.Value) {
			return "", false
		}
		return fmt.Sprintf("%s::date != %s", f, literal(c.Value, types.TypeDatetime)), true
	case OpRelativeDaysAgo:
		n, ok := numericText(c.Value)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s >= NOW() - INTERVAL '%s days'", f, n), true
	case OpContainsAll:
		if !hasValue(c.Value) {
			return "", false
		}
		return fmt.Sprintf("%s @> ARRAY[%s]", f, arrayLiteral(c.Value)), true
	case OpIsEmpty:
		return fmt.Sprintf("(%s IS NULL OR cardinality(%s) = 0)", f, f), true
	case OpIsNotEmpty:
		return fmt.Sprintf("cardinality(%s) > 0", f), true
	default:
		diag.warnf("operator %q on %q has no clause rule; condition skipped", c.Operator, c.Field)
		return "", false
	}
}

// eventClause emits a correlated existence sub-predicate against the event
// store, keyed on the root entity's identifier.
func eventClause(c types.EventCondition, dataset, table string) (string, bool) {
	if c.EventName == "" {
		return "", false
	}

	fk := ForeignKey(dataset)
	join := fmt.Sprintf("%s.%s = %s.%s", eventsTable, fk, table, fk)
	name := fmt.Sprintf("%s.%s = %s", eventsTable, eventsNameCol, quote(c.EventName))

	var window string
	if c.TimeValue > 0 {
		window = fmt.Sprintf("NOW() - INTERVAL '%d %s'", c.TimeValue, c.TimePeriod)
	}

	switch c.EventType {
	case types.EventNotPerformed:
		inner := fmt.Sprintf("SELECT 1 FROM %s WHERE %s AND %s", eventsTable, join, name)
		if window != "" {
			inner += fmt.Sprintf(" AND %s.%s >= %s", eventsTable, eventsTimeCol, window)
		}
		return "NOT EXISTS (" + inner + ")", true

	case types.EventFirstTime, types.EventLastTime:
		// Frequency is ignored for first/last; the window bounds the
		// aggregate over the full event history instead.
		agg := "MIN"
		if c.EventType == types.EventLastTime {
			agg = "MAX"
		}
		inner := fmt.Sprintf("SELECT 1 FROM %s WHERE %s AND %s GROUP BY %s.%s",
			eventsTable, join, name, eventsTable, fk)
		if window != "" {
			inner += fmt.Sprintf(" HAVING %s(%s.%s) >= %s", agg, eventsTable, eventsTimeCol, window)
		}
		return "EXISTS (" + inner + ")", true

	default: // performed
		inner := fmt.Sprintf("SELECT 1 FROM %s WHERE %s AND %s", eventsTable, join, name)
		if window != "" {
			inner += fmt.Sprintf(" AND %s.%s >= %s", eventsTable, eventsTimeCol, window)
		}
		inner += fmt.Sprintf(" GROUP BY %s.%s", eventsTable, fk)
		if c.Count > 0 {
			inner += fmt.Sprintf(" HAVING COUNT(*) %s %d", frequencyCmp(c.Frequency), c.Count)
		}
		return "EXISTS (" + inner + ")", true
	}
}

// relatedClause emits a correlated existence sub-predicate joining on the
// foreign-key naming convention. Unknown related datasets still compile
// best-effort; the warning tells the caller the relation is undeclared.
func relatedClause(c types.RelatedCondition, dataset, table string, opts Options, diag *Diagnostics) (string, bool) {
	if c.RelatedDataset == "" {
		return "", false
	}

	if opts.Relations != nil {
		if known, ok := opts.Relations[dataset]; ok && !containsString(known, c.RelatedDataset) {
			diag.warnf("dataset %q has no declared relation to %q", dataset, c.RelatedDataset)
		}
	}

	fk := ForeignKey(dataset)
	rel := c.RelatedDataset
	join := fmt.Sprintf("%s.%s = %s.%s", rel, fk, table, fk)

	var nested []string
	for _, nc := range c.Nested {
		ac, ok := nc.(types.AttributeCondition)
		if !ok {
			// Only attribute conditions nest inside a related clause.
			diag.skip()
			continue
		}
		ac.Field = rel + "." + ac.Field
		if clause, ok := attributeClause(ac, nil, diag); ok {
			nested = append(nested, clause)
		} else {
			diag.skip()
		}
	}

	inner := fmt.Sprintf("SELECT 1 FROM %s WHERE %s", rel, join)
	if len(nested) > 0 {
		inner += " AND " + strings.Join(nested, " AND ")
	}
	if c.Relation == types.RelationHaving {
		inner += fmt.Sprintf(" GROUP BY %s.%s HAVING COUNT(*) > 0", rel, fk)
	}
	return "EXISTS (" + inner + ")", true
}

// compileGroup joins the group's members by the group's own operator and
// parenthesizes the result as one unit for the outer clause list.
func compileGroup(g types.ConditionGroup, def types.SegmentDefinition, table string, opts Options, diag *Diagnostics) (string, bool) {
	var clauses []string
	for _, c := range g.Conditions {
		if clause, ok := compileCondition(c, def, table, opts, diag); ok {
			clauses = append(clauses, clause)
		} else {
			diag.skip()
		}
	}

	switch len(clauses) {
	case 0:
		// Vacuous group: contributes nothing rather than a truth value.
		return "", false
	case 1:
		return clauses[0], true
	default:
		return "(" + strings.Join(clauses, " "+string(g.Operator)+" ") + ")", true
	}
}

// compileInclusions merges all inclusion references into one clause, joined
// by the root operator.
func compileInclusions(def types.SegmentDefinition, table string) (string, bool) {
	if len(def.Inclusions) == 0 {
		return "", false
	}
	fk := ForeignKey(def.Dataset)
	clauses := make([]string, len(def.Inclusions))
	for i, ref := range def.Inclusions {
		clauses[i] = fmt.Sprintf("%s.%s IN (SELECT member_id FROM %s WHERE segment_slug = %s)",
			table, fk, membershipTable, quote(ref.ID))
	}
	if len(clauses) == 1 {
		return clauses[0], true
	}
	return "(" + strings.Join(clauses, " "+string(def.RootOperator)+" ") + ")", true
}

// compileExclusions AND-joins all exclusion references, unconditionally.
func compileExclusions(def types.SegmentDefinition, table string) (string, bool) {
	if len(def.Exclusions) == 0 {
		return "", false
	}
	fk := ForeignKey(def.Dataset)
	clauses := make([]string, len(def.Exclusions))
	for i, ref := range def.Exclusions {
		clauses[i] = fmt.Sprintf("%s.%s NOT IN (SELECT member_id FROM %s WHERE segment_slug = %s)",
			table, fk, membershipTable, quote(ref.ID))
	}
	return strings.Join(clauses, "\n  AND "), true
}

// ForeignKey returns the conventional key column correlating a dataset's
// rows: the singular dataset name plus "_id" (customers -> customer_id,
// product_lines -> product_line_id).
func ForeignKey(dataset string) string {
	return strings.TrimSuffix(dataset, "s") + "_id"
}

// frequencyCmp maps a frequency constraint to its comparison operator.
func frequencyCmp(f types.Frequency) string {
	switch f {
	case types.FreqAtMost:
		return "<="
	case types.FreqExactly:
		return "="
	default:
		return ">="
	}
}

// hasValue reports whether a condition value is usable: non-nil and, for
// strings, non-empty.
func hasValue(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// arrayLiteral renders a comma-separated value as a quoted element list.
func arrayLiteral(v any) string {
	parts := strings.Split(valueText(v), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quote(p))
	}
	return strings.Join(out, ", ")
}

func containsString(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
