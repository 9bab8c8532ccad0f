package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestDisplayItem_Validate(t *testing.T) {
	abcd := []string{"A", "B", "C", "D"}
	tests := []struct {
		name    string
		item    DisplayItem
		wantErr bool
	}{
		{"part", NewPartItem(PartBlock{PartNumber: 1}), false},
		{"question", NewQuestionItem(Question{ID: 1, Choices: abcd}), false},
		{"group", NewGroupItem(QuestionGroup{ID: 2, Questions: []Question{{ID: 3, Choices: abcd}}}), false},
		{"no payload", DisplayItem{Type: DisplayItemQuestion}, true},
		{"two payloads", DisplayItem{Type: DisplayItemPart, Part: &PartBlock{}, Question: &Question{}}, true},
		{"tag mismatch", DisplayItem{Type: DisplayItemQuestion, Part: &PartBlock{}}, true},
		{"unknown tag", DisplayItem{Type: "VIDEO", Part: &PartBlock{}}, true},
		{"five choices", NewQuestionItem(Question{ID: 4, Choices: append(abcd, "E")}), true},
		{"five choices in group", NewGroupItem(QuestionGroup{Questions: []Question{{ID: 5, Choices: append(abcd, "E")}}}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDisplayItem)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDisplayItem_Accessors(t *testing.T) {
	group := NewGroupItem(QuestionGroup{
		PartNumber:     3,
		StartTimestamp: ptr(42.5),
		Questions:      []Question{{ID: 1, OrderNumber: 32}, {ID: 2, OrderNumber: 33}},
	})
	assert.Equal(t, 3, group.PartNumber())
	assert.Equal(t, 42.5, group.StartTimestamp())
	assert.Len(t, group.LeafQuestions(), 2)

	part := NewPartItem(PartBlock{PartNumber: 5})
	assert.Equal(t, 5, part.PartNumber())
	assert.Zero(t, part.StartTimestamp(), "missing timestamp reads as 0")
	assert.Empty(t, part.LeafQuestions())

	q := NewQuestionItem(Question{ID: 9, OrderNumber: 101, PartNumber: 5})
	assert.Equal(t, []Question{{ID: 9, OrderNumber: 101, PartNumber: 5}}, q.LeafQuestions())
	assert.Zero(t, DisplayItem{}.PartNumber())
}

func TestAttemptMode_Valid(t *testing.T) {
	assert.True(t, AttemptModePractice.Valid())
	assert.True(t, AttemptModeSimulation.Valid())
	assert.False(t, AttemptMode("EXAM").Valid())
}
