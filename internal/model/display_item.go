package model

import (
	"errors"
	"fmt"
)

// DisplayItemType tags which payload a DisplayItem carries.
type DisplayItemType string

const (
	DisplayItemPart          DisplayItemType = "PART"
	DisplayItemQuestion      DisplayItemType = "QUESTION"
	DisplayItemQuestionGroup DisplayItemType = "QUESTION_GROUP"
)

// MaxChoices is the number of answer choices a TOEIC question can carry.
const MaxChoices = 4

// ErrInvalidDisplayItem is returned when an item's payload does not match its tag.
var ErrInvalidDisplayItem = errors.New("invalid display item")

// PartBlock is the directions block shown at the start of a TOEIC part.
type PartBlock struct {
	PartNumber     int      `json:"part_number"`
	Content        *string  `json:"content,omitempty"`
	StartTimestamp *float64 `json:"start_timestamp,omitempty"`
}

// Question is a single answerable item. Inside a group it is a sub-question.
type Question struct {
	ID             int      `json:"id"`
	OrderNumber    int      `json:"order_number"`
	PartNumber     int      `json:"part_number"`
	Content        *string  `json:"content,omitempty"`
	Choices        []string `json:"choices"`
	ImageURL       *string  `json:"image_url,omitempty"`
	AudioURL       *string  `json:"audio_url,omitempty"`
	StartTimestamp *float64 `json:"start_timestamp,omitempty"`
}

// QuestionGroup is a shared passage or image followed by its sub-questions.
type QuestionGroup struct {
	ID             int        `json:"id"`
	PartNumber     int        `json:"part_number"`
	Content        *string    `json:"content,omitempty"`
	ImageURL       *string    `json:"image_url,omitempty"`
	StartTimestamp *float64   `json:"start_timestamp,omitempty"`
	Questions      []Question `json:"questions"`
}

// DisplayItem is one unit rendered during an attempt. Exactly one of Part,
// Question or Group is set, matching Type.
type DisplayItem struct {
	Type     DisplayItemType `json:"type"`
	Part     *PartBlock      `json:"part,omitempty"`
	Question *Question       `json:"question,omitempty"`
	Group    *QuestionGroup  `json:"question_group,omitempty"`
}

// NewPartItem wraps a directions block.
func NewPartItem(p PartBlock) DisplayItem {
	return DisplayItem{Type: DisplayItemPart, Part: &p}
}

// NewQuestionItem wraps a single question.
func NewQuestionItem(q Question) DisplayItem {
	return DisplayItem{Type: DisplayItemQuestion, Question: &q}
}

// NewGroupItem wraps a question group.
func NewGroupItem(g QuestionGroup) DisplayItem {
	return DisplayItem{Type: DisplayItemQuestionGroup, Group: &g}
}

// Validate checks the tagged-union invariant and the choice limit.
func (d DisplayItem) Validate() error {
	set := 0
	if d.Part != nil {
		set++
	}
	if d.Question != nil {
		set++
	}
	if d.Group != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: %d payloads set for %s", ErrInvalidDisplayItem, set, d.Type)
	}

	switch d.Type {
	case DisplayItemPart:
		if d.Part == nil {
			return fmt.Errorf("%w: PART without part payload", ErrInvalidDisplayItem)
		}
	case DisplayItemQuestion:
		if d.Question == nil {
			return fmt.Errorf("%w: QUESTION without question payload", ErrInvalidDisplayItem)
		}
		if len(d.Question.Choices) > MaxChoices {
			return fmt.Errorf("%w: question %d has %d choices", ErrInvalidDisplayItem, d.Question.ID, len(d.Question.Choices))
		}
	case DisplayItemQuestionGroup:
		if d.Group == nil {
			return fmt.Errorf("%w: QUESTION_GROUP without group payload", ErrInvalidDisplayItem)
		}
		for _, q := range d.Group.Questions {
			if len(q.Choices) > MaxChoices {
				return fmt.Errorf("%w: question %d has %d choices", ErrInvalidDisplayItem, q.ID, len(q.Choices))
			}
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDisplayItem, d.Type)
	}
	return nil
}

// PartNumber returns the TOEIC part (1-7) the item belongs to, or 0 if unset.
func (d DisplayItem) PartNumber() int {
	switch {
	case d.Part != nil:
		return d.Part.PartNumber
	case d.Question != nil:
		return d.Question.PartNumber
	case d.Group != nil:
		return d.Group.PartNumber
	}
	return 0
}

// StartTimestamp returns the media offset in seconds at which the item should
// be shown. Items without one start at 0.
func (d DisplayItem) StartTimestamp() float64 {
	var ts *float64
	switch {
	case d.Part != nil:
		ts = d.Part.StartTimestamp
	case d.Question != nil:
		ts = d.Question.StartTimestamp
	case d.Group != nil:
		ts = d.Group.StartTimestamp
	}
	if ts == nil {
		return 0
	}
	return *ts
}

// LeafQuestions returns the answerable questions inside the item in order.
func (d DisplayItem) LeafQuestions() []Question {
	switch {
	case d.Question != nil:
		return []Question{*d.Question}
	case d.Group != nil:
		return d.Group.Questions
	}
	return nil
}
