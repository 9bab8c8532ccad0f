package repository

import (
	"fmt"

	"github.com/stemsi/toeic-session/internal/model"
)

// ItemRow is one display_items row.
type ItemRow struct {
	ID             int
	Type           model.DisplayItemType
	PartNumber     int
	Content        *string
	ImageURL       *string
	StartTimestamp *float64
}

// QuestionRow is one questions row without its correct answer.
type QuestionRow struct {
	ID             int
	DisplayItemID  int
	OrderNumber    int
	PartNumber     int
	Content        *string
	ImageURL       *string
	AudioURL       *string
	AnswerA        *string
	AnswerB        *string
	AnswerC        *string
	AnswerD        *string
	StartTimestamp *float64
}

func (q QuestionRow) question() model.Question {
	choices := make([]string, 0, model.MaxChoices)
	for _, c := range []*string{q.AnswerA, q.AnswerB, q.AnswerC, q.AnswerD} {
		if c != nil {
			choices = append(choices, *c)
		}
	}
	return model.Question{
		ID:             q.ID,
		OrderNumber:    q.OrderNumber,
		PartNumber:     q.PartNumber,
		Content:        q.Content,
		Choices:        choices,
		ImageURL:       q.ImageURL,
		AudioURL:       q.AudioURL,
		StartTimestamp: q.StartTimestamp,
	}
}

// AssembleDisplayItems joins item rows with their questions. A QUESTION item
// must own exactly one question and a group at least one; questions keep the
// order they were given in.
func AssembleDisplayItems(items []ItemRow, questions []QuestionRow) ([]model.DisplayItem, error) {
	byItem := make(map[int][]model.Question, len(items))
	for _, q := range questions {
		byItem[q.DisplayItemID] = append(byItem[q.DisplayItemID], q.question())
	}

	out := make([]model.DisplayItem, 0, len(items))
	for _, it := range items {
		qs := byItem[it.ID]
		var di model.DisplayItem

		switch it.Type {
		case model.DisplayItemPart:
			di = model.NewPartItem(model.PartBlock{
				PartNumber:     it.PartNumber,
				Content:        it.Content,
				StartTimestamp: it.StartTimestamp,
			})
		case model.DisplayItemQuestion:
			if len(qs) != 1 {
				return nil, fmt.Errorf("display item %d: %w: question item has %d questions", it.ID, model.ErrInvalidDisplayItem, len(qs))
			}
			q := qs[0]
			if q.Content == nil {
				q.Content = it.Content
			}
			if q.ImageURL == nil {
				q.ImageURL = it.ImageURL
			}
			if q.StartTimestamp == nil {
				q.StartTimestamp = it.StartTimestamp
			}
			di = model.NewQuestionItem(q)
		case model.DisplayItemQuestionGroup:
			if len(qs) == 0 {
				return nil, fmt.Errorf("display item %d: %w: empty question group", it.ID, model.ErrInvalidDisplayItem)
			}
			di = model.NewGroupItem(model.QuestionGroup{
				ID:             it.ID,
				PartNumber:     it.PartNumber,
				Content:        it.Content,
				ImageURL:       it.ImageURL,
				StartTimestamp: it.StartTimestamp,
				Questions:      qs,
			})
		default:
			return nil, fmt.Errorf("display item %d: %w: unknown type %q", it.ID, model.ErrInvalidDisplayItem, it.Type)
		}
		out = append(out, di)
	}
	return out, nil
}
