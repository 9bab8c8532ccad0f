package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/stemsi/toeic-session/internal/model"
)

// AnswerState is the per-question state kept on the answer sheet.
type AnswerState struct {
	DisplayItemIndex int     `json:"display_item_index"`
	QuestionID       int     `json:"question_id"`
	Answer           *string `json:"answer,omitempty"`
	IsMarked         bool    `json:"is_marked"`
}

// SheetEntry pairs an order-number with its state.
type SheetEntry struct {
	OrderNumber int `json:"order_number"`
	AnswerState
}

// PartSummary is the completion grid of one part.
type PartSummary struct {
	PartRange
	Entries  []SheetEntry `json:"entries"`
	Answered int          `json:"answered"`
	Marked   int          `json:"marked"`
}

// AnswerSheet maps order-numbers to answer state for one attempt.
type AnswerSheet struct {
	mu      sync.RWMutex
	entries map[int]*AnswerState
}

// NewAnswerSheet creates an empty sheet.
func NewAnswerSheet() *AnswerSheet {
	return &AnswerSheet{entries: make(map[int]*AnswerState)}
}

// Initialize builds one entry per leaf question in items. Entries that already
// exist for the same order-number and question keep their answer and mark, so
// a refetch never loses in-progress work. Duplicate order-numbers are rejected
// and leave the sheet untouched.
func (s *AnswerSheet) Initialize(items []model.DisplayItem) error {
	next := make(map[int]*AnswerState)
	for idx, item := range items {
		for _, q := range item.LeafQuestions() {
			if _, dup := next[q.OrderNumber]; dup {
				return fmt.Errorf("duplicate order number %d", q.OrderNumber)
			}
			next[q.OrderNumber] = &AnswerState{DisplayItemIndex: idx, QuestionID: q.ID}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for order, st := range next {
		if prev, ok := s.entries[order]; ok && prev.QuestionID == st.QuestionID {
			st.Answer = prev.Answer
			st.IsMarked = prev.IsMarked
		}
	}
	s.entries = next
	return nil
}

// SelectAnswer sets the answer for orderNumber. It reports false for an
// unknown order-number and changes nothing.
func (s *AnswerSheet) SelectAnswer(orderNumber int, answer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[orderNumber]
	if !ok {
		return false
	}
	a := answer
	st.Answer = &a
	return true
}

// ToggleMark flips the review mark for orderNumber.
func (s *AnswerSheet) ToggleMark(orderNumber int) (marked, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entries[orderNumber]
	if !ok {
		return false, false
	}
	st.IsMarked = !st.IsMarked
	return st.IsMarked, true
}

// Entry returns a copy of the state for orderNumber.
func (s *AnswerSheet) Entry(orderNumber int) (AnswerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.entries[orderNumber]
	if !ok {
		return AnswerState{}, false
	}
	return copyState(st), true
}

// Len returns the number of entries.
func (s *AnswerSheet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ByPartRange returns the entries with low <= order-number <= high in
// ascending order.
func (s *AnswerSheet) ByPartRange(low, high int) []SheetEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SheetEntry, 0)
	for order, st := range s.entries {
		if order >= low && order <= high {
			out = append(out, SheetEntry{OrderNumber: order, AnswerState: copyState(st)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out
}

// Summary returns the grid for every TOEIC part.
func (s *AnswerSheet) Summary() []PartSummary {
	out := make([]PartSummary, 0, len(PartRanges))
	for _, r := range PartRanges {
		out = append(out, s.summarize(r))
	}
	return out
}

// SummaryForPart returns the grid for a single part.
func (s *AnswerSheet) SummaryForPart(part int) (PartSummary, bool) {
	r, ok := RangeForPart(part)
	if !ok {
		return PartSummary{}, false
	}
	return s.summarize(r), true
}

func (s *AnswerSheet) summarize(r PartRange) PartSummary {
	entries := s.ByPartRange(r.Low, r.High)
	sum := PartSummary{PartRange: r, Entries: entries}
	for _, e := range entries {
		if e.Answer != nil {
			sum.Answered++
		}
		if e.IsMarked {
			sum.Marked++
		}
	}
	return sum
}

// ToSubmissionAnswers returns one answer per entry ordered by order-number.
// Unanswered questions carry a nil answer.
func (s *AnswerSheet) ToSubmissionAnswers() []model.SubmissionAnswer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]int, 0, len(s.entries))
	for order := range s.entries {
		orders = append(orders, order)
	}
	sort.Ints(orders)

	out := make([]model.SubmissionAnswer, 0, len(orders))
	for _, order := range orders {
		st := s.entries[order]
		out = append(out, model.SubmissionAnswer{QuestionID: st.QuestionID, Answer: copyAnswer(st.Answer)})
	}
	return out
}

func copyState(st *AnswerState) AnswerState {
	c := *st
	c.Answer = copyAnswer(st.Answer)
	return c
}

func copyAnswer(a *string) *string {
	if a == nil {
		return nil
	}
	v := *a
	return &v
}
