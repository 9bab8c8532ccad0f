package main

import (
	"fmt"

	"github.com/stemsi/toeic-session/internal/engine"
	"github.com/stemsi/toeic-session/internal/model"
	"github.com/stemsi/toeic-session/internal/repository"
)

// groupSize is how many sub-questions share one stimulus in each grouped
// part. Parts not listed are single questions.
var groupSize = map[int]int{3: 3, 4: 3, 6: 4, 7: 3}

// Seconds of audio given to each listening item.
const (
	partIntroSeconds = 30.0
	questionSeconds  = 20.0
)

var answerCycle = []string{"A", "B", "C", "D"}

// buildItems generates a full 200-question test with placeholder content.
// Listening items carry increasing start timestamps; reading items have none.
func buildItems(assetBase string) []repository.SeedItem {
	var (
		items []repository.SeedItem
		clock float64
	)
	stamp := func(part int) *float64 {
		if !engine.IsListeningPart(part) {
			return nil
		}
		t := clock
		return &t
	}

	for _, pr := range engine.PartRanges {
		directions := fmt.Sprintf("Part %d directions.", pr.Part)
		items = append(items, repository.SeedItem{
			Item: model.NewPartItem(model.PartBlock{PartNumber: pr.Part, Content: &directions, StartTimestamp: stamp(pr.Part)}),
		})
		if engine.IsListeningPart(pr.Part) {
			clock += partIntroSeconds
		}

		size := groupSize[pr.Part]
		for order := pr.Low; order <= pr.High; {
			if size == 0 {
				q := seedQuestion(pr.Part, order, assetBase, stamp(pr.Part))
				items = append(items, repository.SeedItem{
					Item:      model.NewQuestionItem(q.Question),
					Questions: []repository.SeedQuestion{q},
				})
				order++
			} else {
				passage := fmt.Sprintf("Questions %d-%d refer to the following.", order, min(order+size-1, pr.High))
				group := model.QuestionGroup{PartNumber: pr.Part, Content: &passage, StartTimestamp: stamp(pr.Part)}
				var qs []repository.SeedQuestion
				for i := 0; i < size && order <= pr.High; i++ {
					q := seedQuestion(pr.Part, order, assetBase, nil)
					qs = append(qs, q)
					group.Questions = append(group.Questions, q.Question)
					order++
				}
				items = append(items, repository.SeedItem{Item: model.NewGroupItem(group), Questions: qs})
			}
			if engine.IsListeningPart(pr.Part) {
				clock += questionSeconds
			}
		}
	}
	return items
}

func seedQuestion(part, order int, assetBase string, start *float64) repository.SeedQuestion {
	choices := []string{"Option A", "Option B", "Option C", "Option D"}
	if part == 2 {
		choices = choices[:3]
	}
	content := fmt.Sprintf("Question %d", order)
	q := model.Question{
		OrderNumber:    order,
		PartNumber:     part,
		Content:        &content,
		Choices:        choices,
		StartTimestamp: start,
	}
	if part == 1 {
		img := fmt.Sprintf("%s/images/q%03d.jpg", assetBase, order)
		q.ImageURL = &img
	}
	return repository.SeedQuestion{
		Question:      q,
		CorrectAnswer: answerCycle[order%len(choices)],
	}
}
