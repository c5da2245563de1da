// internal/types/types_test.go
package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestConditionList_JSONRoundTrip(t *testing.T) {
	list := ConditionList{
		AttributeCondition{ID: 1, Field: "email", Operator: "is_not_null"},
		EventCondition{
			ID: 2, EventType: EventPerformed, EventName: "Purchase",
			Frequency: FreqAtLeast, Count: 3, TimePeriod: PeriodDays, TimeValue: 90,
		},
		RelatedCondition{
			ID: 3, RelatedDataset: "transactions", Relation: RelationWhere,
			Nested: ConditionList{
				AttributeCondition{ID: 4, Field: "total", Operator: "greater_than", Value: float64(100)},
			},
		},
	}

	data, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, kind := range []string{`"type":"attribute"`, `"type":"event"`, `"type":"related"`} {
		if !strings.Contains(string(data), kind) {
			t.Errorf("encoded list missing discriminator %s: %s", kind, data)
		}
	}

	var decoded ConditionList
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("len(decoded) = %d, want 3", len(decoded))
	}
	if decoded[0].Kind() != KindAttribute || decoded[1].Kind() != KindEvent || decoded[2].Kind() != KindRelated {
		t.Errorf("decoded kinds = %v %v %v", decoded[0].Kind(), decoded[1].Kind(), decoded[2].Kind())
	}

	rc, ok := decoded[2].(RelatedCondition)
	if !ok {
		t.Fatalf("decoded[2] is %T, want RelatedCondition", decoded[2])
	}
	if len(rc.Nested) != 1 {
		t.Errorf("nested conditions lost: %d", len(rc.Nested))
	}
}

func TestConditionList_UnknownKind(t *testing.T) {
	var list ConditionList
	err := json.Unmarshal([]byte(`[{"type":"mystery","id":1}]`), &list)
	if !errors.Is(err, ErrUnknownConditionKind) {
		t.Errorf("error = %v, want ErrUnknownConditionKind", err)
	}
}

func TestSegmentDefinition_CloneIsDeep(t *testing.T) {
	def := SegmentDefinition{
		SegmentID:    NewSegmentID(),
		Name:         "VIP",
		Dataset:      "customers",
		RootOperator: OpAnd,
		Conditions: ConditionList{
			AttributeCondition{ID: 1, Field: "email", Operator: "is_not_null"},
		},
		Groups: []ConditionGroup{
			{ID: 2, Operator: OpOr, Conditions: ConditionList{
				AttributeCondition{ID: 3, Field: "city", Operator: "equals", Value: "Hanoi"},
			}},
		},
		Inclusions: []SegmentRef{{ID: "segment:loyal", Name: "Loyal"}},
	}

	clone := def.Clone()
	clone.Conditions[0] = AttributeCondition{ID: 1, Field: "changed", Operator: "equals"}
	clone.Groups[0].Conditions[0] = AttributeCondition{ID: 3, Field: "changed", Operator: "equals"}
	clone.Inclusions[0].Name = "changed"

	if def.Conditions[0].(AttributeCondition).Field != "email" {
		t.Error("clone shares top-level conditions with original")
	}
	if def.Groups[0].Conditions[0].(AttributeCondition).Field != "city" {
		t.Error("clone shares group conditions with original")
	}
	if def.Inclusions[0].Name != "Loyal" {
		t.Error("clone shares inclusion refs with original")
	}
}

func TestConditionWithID(t *testing.T) {
	c := AttributeCondition{ID: 1, Field: "email"}
	got := c.WithID(9)
	if got.ConditionID() != 9 {
		t.Errorf("WithID(9).ConditionID() = %d", got.ConditionID())
	}
	if c.ID != 1 {
		t.Error("WithID mutated the receiver")
	}
}
