package engine

import "github.com/stemsi/toeic-session/internal/model"

// IndexedItem is a display item with its position in the attempt.
type IndexedItem struct {
	Index int               `json:"index"`
	Item  model.DisplayItem `json:"item"`
}

// VisibleItems returns every item of part, in order. Practice mode shows a
// whole part at once and lets the learner jump between parts freely.
func VisibleItems(items []model.DisplayItem, part int) []IndexedItem {
	out := make([]IndexedItem, 0)
	for i, item := range items {
		if item.PartNumber() == part {
			out = append(out, IndexedItem{Index: i, Item: item})
		}
	}
	return out
}
