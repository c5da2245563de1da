// internal/segment/parse.go
package segment

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

/*
 * Predicate parser.
 *
 * Reconstructs a best-effort condition model from user-edited query text.
 * The grammar is the subset the compiler itself emits, not general SQL:
 * one WHERE clause of statements joined by a single dominant AND/OR, each
 * statement matching one of the fixed comparison patterns.
 *
 * Pattern priority (first match wins):
 *   IS NULL, IS NOT NULL, NOT LIKE, LIKE, BETWEEN..AND.., =, !=, >, <
 * LIKE patterns classify by leading/trailing % into contains, starts_with,
 * ends_with. Statements matching nothing become an attribute condition with
 * field "unparsed_field" and the raw text preserved as the value - edited
 * text is never silently dropped.
 *
 * Known limitations, surfaced via ParseResult rather than guessed around:
 *   - mixed AND/OR expressions collapse onto the dominant joiner
 *   - grouped (parenthesized) structure does not round-trip; groups are
 *     cleared and GroupsDropped is set so the caller can warn
 */

// ParseResult is the reconstructed flat condition model of an edited query.
type ParseResult struct {
	Conditions   types.ConditionList
	RootOperator types.BoolOperator

	// GroupsDropped is set whenever a parse succeeds: grouped structure
	// cannot survive the flat text round-trip, so any caller replacing a
	// model that had groups must surface the loss.
	GroupsDropped bool
}

var (
	whereRe = regexp.MustCompile(`(?is)\bWHERE\b(.*?)(?:\bLIMIT\b|$)`)

	isNullRe    = regexp.MustCompile(`(?i)^(\S+)\s+IS\s+NULL$`)
	isNotNullRe = regexp.MustCompile(`(?i)^(\S+)\s+IS\s+NOT\s+NULL$`)
	notLikeRe   = regexp.MustCompile(`(?i)^(\S+)\s+NOT\s+LIKE\s+'(.*)'$`)
	likeRe      = regexp.MustCompile(`(?i)^(\S+)\s+LIKE\s+'(.*)'$`)
	betweenRe   = regexp.MustCompile(`(?i)^(\S+)\s+BETWEEN\s+(.+?)\s+AND\s+(.+)$`)
	eqRe        = regexp.MustCompile(`^(\S+)\s*=\s*(.+)$`)
	neqRe       = regexp.MustCompile(`^(\S+)\s*!=\s*(.+)$`)
	gtRe        = regexp.MustCompile(`^(\S+)\s*>\s*(.+)$`)
	ltRe        = regexp.MustCompile(`^(\S+)\s*<\s*(.+)$`)

	andJoinRe = regexp.MustCompile(`(?i)\s+AND\s+`)
	orJoinRe  = regexp.MustCompile(`(?i)\s+OR\s+`)

	// betweenGuardRe masks the AND inside BETWEEN ranges so joiner
	// splitting does not cut them in half.
	betweenGuardRe = regexp.MustCompile(`(?i)(BETWEEN\s+\S+\s+)AND(\s+\S+)`)
)

const betweenGuard = "\x00BETWEEN_AND\x00"

// Parse reconstructs a condition model from edited query text.
//
// Fails only when no WHERE clause can be located (types.ErrNoWhereClause);
// the caller must leave its live model untouched in that case. A clause of
// exactly 1=1 parses to zero conditions, which is success.
func Parse(queryText string) (ParseResult, error) {
	m := whereRe.FindStringSubmatch(queryText)
	if m == nil {
		return ParseResult{}, types.ErrNoWhereClause
	}

	clause := strings.TrimSpace(collapseSpace(m[1]))
	res := ParseResult{RootOperator: types.OpAnd, GroupsDropped: true}

	if clause == "" || clause == "1=1" {
		res.Conditions = types.ConditionList{}
		return res, nil
	}

	guarded := betweenGuardRe.ReplaceAllString(clause, "${1}"+betweenGuard+"${2}")

	// Dominant joiner: first of AND/OR found wins; mixed expressions are
	// not disambiguated.
	var statements []string
	switch {
	case andJoinRe.MatchString(guarded):
		statements = andJoinRe.Split(guarded, -1)
	case orJoinRe.MatchString(guarded):
		res.RootOperator = types.OpOr
		statements = orJoinRe.Split(guarded, -1)
	default:
		statements = []string{guarded}
	}

	id := 0
	for _, stmt := range statements {
		stmt = strings.TrimSpace(strings.ReplaceAll(stmt, betweenGuard, "AND"))
		if stmt == "" {
			continue
		}
		id++
		res.Conditions = append(res.Conditions, parseStatement(stmt, id))
	}

	return res, nil
}

// parseStatement matches one statement against the fixed pattern priority.
func parseStatement(stmt string, id int) types.Condition {
	if m := isNullRe.FindStringSubmatch(stmt); m != nil {
		return types.AttributeCondition{ID: id, Field: m[1], Operator: OpIsNull}
	}
	if m := isNotNullRe.FindStringSubmatch(stmt); m != nil {
		return types.AttributeCondition{ID: id, Field: m[1], Operator: OpIsNotNull}
	}
	if m := notLikeRe.FindStringSubmatch(stmt); m != nil {
		op, val := classifyLike(m[2])
		if op == OpContains {
			op = OpNotContains
		}
		return types.AttributeCondition{ID: id, Field: m[1], Operator: op, Value: val}
	}
	if m := likeRe.FindStringSubmatch(stmt); m != nil {
		op, val := classifyLike(m[2])
		return types.AttributeCondition{ID: id, Field: m[1], Operator: op, Value: val}
	}
	if m := betweenRe.FindStringSubmatch(stmt); m != nil {
		return types.AttributeCondition{
			ID:       id,
			Field:    m[1],
			Operator: OpBetween,
			Value:    parseValue(m[2]),
			Value2:   parseValue(m[3]),
		}
	}
	// != before =: "a != b" would otherwise match the = pattern with a
	// trailing ! on the field.
	if m := neqRe.FindStringSubmatch(stmt); m != nil {
		return types.AttributeCondition{ID: id, Field: m[1], Operator: OpNotEquals, Value: parseValue(m[2])}
	}
	if m := eqRe.FindStringSubmatch(stmt); m != nil && !strings.HasSuffix(m[1], "!") {
		return types.AttributeCondition{ID: id, Field: m[1], Operator: OpEquals, Value: parseValue(m[2])}
	}
	// >= and <= have no model operator; the prefix check pushes them to the
	// unparsed fallback instead of mangling the value.
	if m := gtRe.FindStringSubmatch(stmt); m != nil && !strings.HasPrefix(m[2], "=") {
		return types.AttributeCondition{ID: id, Field: m[1], Operator: OpGreaterThan, Value: parseValue(m[2])}
	}
	if m := ltRe.FindStringSubmatch(stmt); m != nil && !strings.HasPrefix(m[2], "=") {
		return types.AttributeCondition{ID: id, Field: m[1], Operator: OpLessThan, Value: parseValue(m[2])}
	}

	// Nothing matched: preserve the raw text instead of dropping it.
	return types.AttributeCondition{
		ID:       id,
		Field:    "unparsed_field",
		Operator: OpEquals,
		Value:    stmt,
	}
}

// classifyLike derives the operator from the % placement of a LIKE pattern.
func classifyLike(pattern string) (string, string) {
	leading := strings.HasPrefix(pattern, "%")
	trailing := strings.HasSuffix(pattern, "%")
	val := strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%")
	switch {
	case leading && trailing:
		return OpContains, val
	case trailing:
		return OpStartsWith, val
	case leading:
		return OpEndsWith, val
	default:
		return OpEquals, val
	}
}

// parseValue unquotes quoted literals and converts bare numerics to float64.
func parseValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && strings.HasPrefix(raw, "'") && strings.HasSuffix(raw, "'") {
		return strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

var spaceRe = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return spaceRe.ReplaceAllString(s, " ")
}
