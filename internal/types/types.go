// Package types provides the domain model shared across cohort components.
//
// Zero-dependency design: types.go and errors.go use only encoding/json so the
// model can be embedded anywhere. ID utilities in ids.go import uuid but are
// isolated for selective inclusion.
//
// The condition model is a sealed sum type: AttributeCondition, EventCondition
// and RelatedCondition are the only implementations of Condition, and the
// compiler and parser switch over all three. Adding a kind without updating
// both is a compile error, not a silent omission.
package types

import (
	"encoding/json"
	"fmt"
)

// SemanticType classifies a field for operator selection and value formatting.
type SemanticType string

const (
	TypeText     SemanticType = "text"
	TypeNumber   SemanticType = "number"
	TypeDatetime SemanticType = "datetime"
	TypeBoolean  SemanticType = "boolean"
	TypeArray    SemanticType = "array"
)

// BoolOperator joins conditions at the root or within a group.
type BoolOperator string

const (
	OpAnd BoolOperator = "AND"
	OpOr  BoolOperator = "OR"
)

// ConditionKind discriminates the three condition variants on the wire.
type ConditionKind string

const (
	KindAttribute ConditionKind = "attribute"
	KindEvent     ConditionKind = "event"
	KindRelated   ConditionKind = "related"
)

// EventType describes the behavioral constraint of an EventCondition.
type EventType string

const (
	EventPerformed    EventType = "performed"
	EventNotPerformed EventType = "not_performed"
	EventFirstTime    EventType = "first_time"
	EventLastTime     EventType = "last_time"
)

// Frequency constrains the event count of a performed-style condition.
// Ignored for first_time/last_time.
type Frequency string

const (
	FreqAtLeast Frequency = "at_least"
	FreqAtMost  Frequency = "at_most"
	FreqExactly Frequency = "exactly"
)

// TimePeriod is the unit of an event condition's lookback window.
type TimePeriod string

const (
	PeriodDays   TimePeriod = "days"
	PeriodWeeks  TimePeriod = "weeks"
	PeriodMonths TimePeriod = "months"
)

// RelationMode selects how a related-dataset condition is applied.
type RelationMode string

const (
	RelationWhere  RelationMode = "where"
	RelationHaving RelationMode = "having"
)

// Condition is one filter unit of a segment: an attribute comparison, a
// behavioral event filter, or a cross-dataset relational filter.
//
// Sealed: only the three variants in this package implement it.
type Condition interface {
	// ConditionID returns the id unique within the owning segment.
	ConditionID() int

	// Kind returns the variant discriminator.
	Kind() ConditionKind

	// WithID returns a copy of the condition with the given id.
	WithID(id int) Condition

	sealed()
}

// AttributeCondition compares one field of the root dataset against a value.
// Value and Value2 hold primitives; Value2 is set only for two-value
// operators (between). Zero-arity operators carry neither.
type AttributeCondition struct {
	ID       int    `json:"id"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
	Value2   any    `json:"value2,omitempty"`
}

func (c AttributeCondition) ConditionID() int    { return c.ID }
func (c AttributeCondition) Kind() ConditionKind { return KindAttribute }
func (c AttributeCondition) WithID(id int) Condition {
	c.ID = id
	return c
}
func (AttributeCondition) sealed() {}

// EventCondition filters members by event activity: "did/did not perform
// event E with a frequency constraint within a time window".
type EventCondition struct {
	ID         int        `json:"id"`
	EventType  EventType  `json:"eventType"`
	EventName  string     `json:"eventName"`
	Frequency  Frequency  `json:"frequency"`
	Count      int        `json:"count"`
	TimePeriod TimePeriod `json:"timePeriod"`
	TimeValue  int        `json:"timeValue"`
}

func (c EventCondition) ConditionID() int    { return c.ID }
func (c EventCondition) Kind() ConditionKind { return KindEvent }
func (c EventCondition) WithID(id int) Condition {
	c.ID = id
	return c
}
func (EventCondition) sealed() {}

// RelatedCondition filters by the existence of rows in a dataset reachable
// from the root dataset via a declared relation. Nested conditions are part
// of the model but may be empty.
type RelatedCondition struct {
	ID             int           `json:"id"`
	RelatedDataset string        `json:"relatedDataset"`
	Relation       RelationMode  `json:"relation"`
	Nested         ConditionList `json:"nestedConditions,omitempty"`
}

func (c RelatedCondition) ConditionID() int    { return c.ID }
func (c RelatedCondition) Kind() ConditionKind { return KindRelated }
func (c RelatedCondition) WithID(id int) Condition {
	c.ID = id
	return c
}
func (RelatedCondition) sealed() {}

// ConditionList is an ordered list of conditions with kind-discriminated
// JSON encoding ({"type": "attribute", ...} etc., matching the persisted
// definition format).
type ConditionList []Condition

// Clone returns a deep copy of the list. Condition values are flat apart
// from RelatedCondition.Nested, which is cloned recursively.
func (l ConditionList) Clone() ConditionList {
	if l == nil {
		return nil
	}
	out := make(ConditionList, len(l))
	for i, c := range l {
		if rc, ok := c.(RelatedCondition); ok {
			rc.Nested = rc.Nested.Clone()
			out[i] = rc
			continue
		}
		out[i] = c
	}
	return out
}

// MarshalJSON implements json.Marshaler with a "type" discriminator per entry.
func (l ConditionList) MarshalJSON() ([]byte, error) {
	out := make([]any, len(l))
	for i, c := range l {
		switch v := c.(type) {
		case AttributeCondition:
			out[i] = struct {
				Type ConditionKind `json:"type"`
				AttributeCondition
			}{KindAttribute, v}
		case EventCondition:
			out[i] = struct {
				Type ConditionKind `json:"type"`
				EventCondition
			}{KindEvent, v}
		case RelatedCondition:
			out[i] = struct {
				Type ConditionKind `json:"type"`
				RelatedCondition
			}{KindRelated, v}
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnknownConditionKind, c)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler, dispatching on the "type" field.
func (l *ConditionList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(ConditionList, 0, len(raw))
	for _, entry := range raw {
		var head struct {
			Type ConditionKind `json:"type"`
		}
		if err := json.Unmarshal(entry, &head); err != nil {
			return err
		}

		switch head.Type {
		case KindAttribute:
			var c AttributeCondition
			if err := json.Unmarshal(entry, &c); err != nil {
				return err
			}
			out = append(out, c)
		case KindEvent:
			var c EventCondition
			if err := json.Unmarshal(entry, &c); err != nil {
				return err
			}
			out = append(out, c)
		case KindRelated:
			var c RelatedCondition
			if err := json.Unmarshal(entry, &c); err != nil {
				return err
			}
			out = append(out, c)
		default:
			return fmt.Errorf("%w: %q", ErrUnknownConditionKind, head.Type)
		}
	}

	*l = out
	return nil
}

// ConditionGroup evaluates its members with its own operator, independent of
// the segment's root operator. The member list may be empty; the compiler
// treats an empty group as vacuously true and emits nothing for it.
type ConditionGroup struct {
	ID         int           `json:"id"`
	Operator   BoolOperator  `json:"operator"`
	Conditions ConditionList `json:"conditions"`
}

// Clone returns a deep copy of the group.
func (g ConditionGroup) Clone() ConditionGroup {
	g.Conditions = g.Conditions.Clone()
	return g
}

// SegmentRef references another segment by its slug-derived id, for
// inclusion/exclusion relationships.
type SegmentRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
}

// EstimatedSize is an advisory membership estimate; never authoritative.
type EstimatedSize struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// SegmentDefinition is a named, reusable filter over a dataset.
//
// SegmentID is the immutable identity assigned at creation. Slug is the
// display alias derived from Name (recomputed on rename); inclusion and
// exclusion references use the slug form.
type SegmentDefinition struct {
	SegmentID    SegmentID        `json:"segmentId"`
	Slug         string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Dataset      string           `json:"dataset"`
	Schema       string           `json:"schema,omitempty"`
	RootOperator BoolOperator     `json:"rootOperator"`
	Conditions   ConditionList    `json:"conditions"`
	Groups       []ConditionGroup `json:"conditionGroups"`
	Inclusions   []SegmentRef     `json:"inclusions"`
	Exclusions   []SegmentRef     `json:"exclusions"`
	Estimated    EstimatedSize    `json:"estimatedSize"`
}

// Clone returns a deep copy of the definition, suitable for draft snapshots.
func (d SegmentDefinition) Clone() SegmentDefinition {
	d.Conditions = d.Conditions.Clone()
	if d.Groups != nil {
		groups := make([]ConditionGroup, len(d.Groups))
		for i, g := range d.Groups {
			groups[i] = g.Clone()
		}
		d.Groups = groups
	}
	d.Inclusions = append([]SegmentRef(nil), d.Inclusions...)
	d.Exclusions = append([]SegmentRef(nil), d.Exclusions...)
	return d
}
