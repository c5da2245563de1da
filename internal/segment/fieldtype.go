// internal/segment/fieldtype.go
package segment

import (
	"strings"

	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

/*
 * Field type resolution.
 *
 * Maps a field name (and optional native column type) to a semantic type
 * used for operator selection and literal formatting. Pure function, no
 * state, never fails: anything unclassifiable is text.
 *
 * Native types win when the schema source supplies them; the name heuristic
 * is a fallback for schema sources that only return column names. The
 * classification is advisory for operator selection, not a cast.
 */

// Attribute pairs a field name with its resolved semantic type. The compiler
// consults the live attribute list of the selected dataset when available.
type Attribute struct {
	Name string
	Type types.SemanticType
}

// ResolveFieldType classifies a field into a semantic type.
// nativeType, when non-empty, is a database column type (e.g. "timestamp
// without time zone", "numeric(10,2)") and takes precedence over the
// field-name heuristic.
func ResolveFieldType(fieldName, nativeType string) types.SemanticType {
	if nativeType != "" {
		return resolveNative(nativeType)
	}
	return resolveByName(fieldName)
}

// resolveNative classifies by substring match on the database column type.
func resolveNative(nativeType string) types.SemanticType {
	t := strings.ToLower(nativeType)
	switch {
	case containsAny(t, "timestamp", "date", "time"):
		return types.TypeDatetime
	case containsAny(t, "int", "float", "numeric", "decimal", "double"):
		return types.TypeNumber
	case t == "boolean":
		return types.TypeBoolean
	case containsAny(t, "array", "json", "jsonb"):
		return types.TypeArray
	default:
		return types.TypeText
	}
}

// resolveByName classifies by case-insensitive field-name heuristics.
func resolveByName(fieldName string) types.SemanticType {
	f := strings.ToLower(fieldName)
	switch {
	case containsAny(f, "date", "time", "_at"):
		return types.TypeDatetime
	case containsAny(f, "id", "amount", "price", "cost", "quantity", "number"):
		return types.TypeNumber
	case strings.HasPrefix(f, "is_") || strings.HasPrefix(f, "has_"):
		return types.TypeBoolean
	case containsAny(f, "tags", "categories", "array"):
		return types.TypeArray
	default:
		return types.TypeText
	}
}

// resolveAgainst returns the semantic type of field, preferring the live
// attribute list and falling back to the name heuristic. An empty list
// degrades gracefully: every unknown field resolves as the heuristic says.
func resolveAgainst(attrs []Attribute, field string) types.SemanticType {
	for _, a := range attrs {
		if a.Name == field {
			return a.Type
		}
	}
	return resolveByName(field)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
