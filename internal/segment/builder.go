// internal/segment/builder.go
package segment

import (
	"strconv"
	"strings"

	"github.com/NguyenLeGiangHa/cohort/internal/types"
)

/*
 * Segment editing session.
 *
 * Builder owns one draft SegmentDefinition and applies the structural
 * mutations of the condition model: add/update/remove conditions and groups,
 * root and group operator changes, inclusion/exclusion references, and
 * snapshot/restore for discard support.
 *
 * Failure policy: every mutation is total. Mutating an absent id is a no-op,
 * duplicating an inclusion is reported through the boolean return, and no
 * operation panics or errors. Callers needing confirmation check membership
 * before or after.
 *
 * Id assignment invariant: new condition and group ids are max(all existing
 * ids across flat conditions, groups, and group members) + 1, defaulting to 1
 * when none exist. Ids stay pairwise distinct under any add/remove sequence
 * because removals never free ids for reuse below the current maximum.
 */

// Builder is a single-editor draft session over one segment definition.
// Not safe for concurrent use; the surrounding application serializes edits.
type Builder struct {
	def types.SegmentDefinition
}

// Snapshot captures the editable state of a draft for discard/cancel:
// conditions, groups, root operator, name and description.
type Snapshot struct {
	name         string
	description  string
	rootOperator types.BoolOperator
	conditions   types.ConditionList
	groups       []types.ConditionGroup
}

// NewBuilder starts a draft for a fresh segment on the given dataset. The
// draft carries an immutable SegmentID, a slug derived from the name, one
// default attribute condition and one AND group holding a default event
// condition (editor convenience, not a structural requirement).
func NewBuilder(name, dataset string) *Builder {
	b := &Builder{
		def: types.SegmentDefinition{
			SegmentID:    types.NewSegmentID(),
			Slug:         types.DeriveSlug(name),
			Name:         name,
			Dataset:      dataset,
			RootOperator: types.OpAnd,
			Conditions: types.ConditionList{
				types.AttributeCondition{ID: 1, Field: "email", Operator: OpIsNotNull},
			},
			Groups: []types.ConditionGroup{
				{ID: 2, Operator: types.OpAnd, Conditions: types.ConditionList{
					newCondition(types.KindEvent, 3),
				}},
			},
		},
	}
	return b
}

// Edit resumes a draft session over an existing definition.
func Edit(def types.SegmentDefinition) *Builder {
	return &Builder{def: def.Clone()}
}

// Definition returns a deep copy of the current draft.
func (b *Builder) Definition() types.SegmentDefinition {
	return b.def.Clone()
}

// SetName renames the segment and recomputes its slug. The SegmentID is
// untouched: references by slug may dangle after a rename, references by
// SegmentID never do.
func (b *Builder) SetName(name string) {
	b.def.Name = name
	b.def.Slug = types.DeriveSlug(name)
}

// SetDescription sets the optional description.
func (b *Builder) SetDescription(desc string) {
	b.def.Description = desc
}

// SetDataset changes the root dataset being filtered.
func (b *Builder) SetDataset(dataset string) {
	b.def.Dataset = dataset
}

// SetSchema sets the namespace the root dataset lives in.
func (b *Builder) SetSchema(schema string) {
	b.def.Schema = schema
}

// SetRootOperator sets the AND/OR joiner for all top-level conditions.
func (b *Builder) SetRootOperator(op types.BoolOperator) {
	b.def.RootOperator = op
}

// SetEstimatedSize records an advisory membership estimate.
func (b *Builder) SetEstimatedSize(est types.EstimatedSize) {
	b.def.Estimated = est
}

// nextID returns max(all existing ids) + 1, scanning flat conditions, groups
// and every group member so ids stay collision-free after deletions.
func (b *Builder) nextID() int {
	max := 0
	for _, c := range b.def.Conditions {
		if c.ConditionID() > max {
			max = c.ConditionID()
		}
	}
	for _, g := range b.def.Groups {
		if g.ID > max {
			max = g.ID
		}
		for _, c := range g.Conditions {
			if c.ConditionID() > max {
				max = c.ConditionID()
			}
		}
	}
	return max + 1
}

// newCondition builds the default condition for a kind.
func newCondition(kind types.ConditionKind, id int) types.Condition {
	switch kind {
	case types.KindEvent:
		return types.EventCondition{
			ID:         id,
			EventType:  types.EventPerformed,
			Frequency:  types.FreqAtLeast,
			Count:      1,
			TimePeriod: types.PeriodDays,
			TimeValue:  30,
		}
	case types.KindRelated:
		return types.RelatedCondition{
			ID:       id,
			Relation: types.RelationWhere,
		}
	default:
		return types.AttributeCondition{ID: id}
	}
}

// AddCondition appends a default condition of the given kind to the
// top-level list and returns its id.
func (b *Builder) AddCondition(kind types.ConditionKind) int {
	id := b.nextID()
	b.def.Conditions = append(b.def.Conditions, newCondition(kind, id))
	return id
}

// AddConditionGroup appends an empty AND group and returns its id.
func (b *Builder) AddConditionGroup() int {
	id := b.nextID()
	b.def.Groups = append(b.def.Groups, types.ConditionGroup{
		ID:         id,
		Operator:   types.OpAnd,
		Conditions: types.ConditionList{},
	})
	return id
}

// AddConditionToGroup appends a default condition of the given kind to the
// group and returns its id, or 0 when the group does not exist.
func (b *Builder) AddConditionToGroup(groupID int, kind types.ConditionKind) int {
	for i, g := range b.def.Groups {
		if g.ID == groupID {
			id := b.nextID()
			b.def.Groups[i].Conditions = append(g.Conditions, newCondition(kind, id))
			return id
		}
	}
	return 0
}

// UpdateCondition replaces one attribute of the matching top-level condition.
// Field names mirror the definition's JSON keys ("field", "operator",
// "value", "value2", "eventType", ...). No-op if the id is absent or the
// field does not belong to the condition's kind.
func (b *Builder) UpdateCondition(id int, field string, value any) {
	for i, c := range b.def.Conditions {
		if c.ConditionID() == id {
			b.def.Conditions[i] = updateField(c, field, value)
			return
		}
	}
}

// UpdateGroupCondition is UpdateCondition scoped to one group's members.
func (b *Builder) UpdateGroupCondition(groupID, conditionID int, field string, value any) {
	for gi, g := range b.def.Groups {
		if g.ID != groupID {
			continue
		}
		for ci, c := range g.Conditions {
			if c.ConditionID() == conditionID {
				b.def.Groups[gi].Conditions[ci] = updateField(c, field, value)
				return
			}
		}
		return
	}
}

// updateField applies one named-field mutation to a condition, exhaustively
// per kind. Unknown field names leave the condition unchanged.
func updateField(c types.Condition, field string, value any) types.Condition {
	switch v := c.(type) {
	case types.AttributeCondition:
		switch field {
		case "field":
			v.Field = asString(value)
		case "operator":
			v.Operator = asString(value)
		case "value":
			v.Value = value
		case "value2":
			v.Value2 = value
		}
		return v
	case types.EventCondition:
		switch field {
		case "eventType":
			v.EventType = types.EventType(asString(value))
		case "eventName":
			v.EventName = asString(value)
		case "frequency":
			v.Frequency = types.Frequency(asString(value))
		case "count":
			v.Count = asInt(value, v.Count)
		case "timePeriod":
			v.TimePeriod = types.TimePeriod(asString(value))
		case "timeValue":
			v.TimeValue = asInt(value, v.TimeValue)
		}
		return v
	case types.RelatedCondition:
		switch field {
		case "relatedDataset":
			v.RelatedDataset = asString(value)
		case "relation":
			v.Relation = types.RelationMode(asString(value))
		}
		return v
	default:
		return c
	}
}

// RemoveCondition filters out the top-level condition by id; no-op if absent.
func (b *Builder) RemoveCondition(id int) {
	kept := b.def.Conditions[:0]
	for _, c := range b.def.Conditions {
		if c.ConditionID() != id {
			kept = append(kept, c)
		}
	}
	b.def.Conditions = kept
}

// RemoveGroupCondition filters out a group member by id; no-op if absent.
func (b *Builder) RemoveGroupCondition(groupID, conditionID int) {
	for gi, g := range b.def.Groups {
		if g.ID != groupID {
			continue
		}
		kept := g.Conditions[:0]
		for _, c := range g.Conditions {
			if c.ConditionID() != conditionID {
				kept = append(kept, c)
			}
		}
		b.def.Groups[gi].Conditions = kept
		return
	}
}

// RemoveConditionGroup deletes a group and its members; no-op if absent.
func (b *Builder) RemoveConditionGroup(groupID int) {
	kept := b.def.Groups[:0]
	for _, g := range b.def.Groups {
		if g.ID != groupID {
			kept = append(kept, g)
		}
	}
	b.def.Groups = kept
}

// SetGroupOperator sets the AND/OR joiner of one group; no-op if absent.
func (b *Builder) SetGroupOperator(groupID int, op types.BoolOperator) {
	for i, g := range b.def.Groups {
		if g.ID == groupID {
			b.def.Groups[i].Operator = op
			return
		}
	}
}

// IncludeSegment appends an inclusion reference. Returns false when a
// reference with the same id is already present (idempotent, not an error).
func (b *Builder) IncludeSegment(ref types.SegmentRef) bool {
	for _, inc := range b.def.Inclusions {
		if inc.ID == ref.ID {
			return false
		}
	}
	b.def.Inclusions = append(b.def.Inclusions, ref)
	return true
}

// ExcludeSegment appends an exclusion reference; dedupe as IncludeSegment.
func (b *Builder) ExcludeSegment(ref types.SegmentRef) bool {
	for _, exc := range b.def.Exclusions {
		if exc.ID == ref.ID {
			return false
		}
	}
	b.def.Exclusions = append(b.def.Exclusions, ref)
	return true
}

// RemoveInclusion drops an inclusion reference by segment id; no-op if absent.
func (b *Builder) RemoveInclusion(segmentID string) {
	kept := b.def.Inclusions[:0]
	for _, inc := range b.def.Inclusions {
		if inc.ID != segmentID {
			kept = append(kept, inc)
		}
	}
	b.def.Inclusions = kept
}

// RemoveExclusion drops an exclusion reference by segment id; no-op if absent.
func (b *Builder) RemoveExclusion(segmentID string) {
	kept := b.def.Exclusions[:0]
	for _, exc := range b.def.Exclusions {
		if exc.ID != segmentID {
			kept = append(kept, exc)
		}
	}
	b.def.Exclusions = kept
}

// Snapshot deep-copies the editable state for later Restore.
func (b *Builder) Snapshot() Snapshot {
	return Snapshot{
		name:         b.def.Name,
		description:  b.def.Description,
		rootOperator: b.def.RootOperator,
		conditions:   b.def.Conditions.Clone(),
		groups:       cloneGroups(b.def.Groups),
	}
}

// Restore replaces the editable state with a previously captured snapshot.
// The slug is re-derived from the restored name.
func (b *Builder) Restore(s Snapshot) {
	b.def.Name = s.name
	b.def.Slug = types.DeriveSlug(s.name)
	b.def.Description = s.description
	b.def.RootOperator = s.rootOperator
	b.def.Conditions = s.conditions.Clone()
	b.def.Groups = cloneGroups(s.groups)
}

// ReplaceFromParse swaps the draft's top-level conditions and root operator
// for the outcome of a successful parse. Groups are cleared: grouped
// structure cannot round-trip through flat query text, and the parse result
// carries the warning the caller surfaces for that.
func (b *Builder) ReplaceFromParse(res ParseResult) {
	b.def.Conditions = res.Conditions.Clone()
	b.def.RootOperator = res.RootOperator
	b.def.Groups = []types.ConditionGroup{}
}

func cloneGroups(groups []types.ConditionGroup) []types.ConditionGroup {
	if groups == nil {
		return nil
	}
	out := make([]types.ConditionGroup, len(groups))
	for i, g := range groups {
		out[i] = g.Clone()
	}
	return out
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return valueText(v)
}

// asInt coerces count-like values; keeps the current value when v is not a
// usable positive integer.
func asInt(v any, current int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return current
}
