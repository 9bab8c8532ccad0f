package engine

import (
	"sync"
	"time"

	"github.com/stemsi/toeic-session/internal/model"
)

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// send delivers one tick, giving up if the countdown loop is gone.
func (f *fakeTicker) send() bool {
	select {
	case f.ch <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *fakeClock) last() *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}

func ts(v float64) *float64 { return &v }

func partItem(part int, at float64) model.DisplayItem {
	return model.NewPartItem(model.PartBlock{PartNumber: part, StartTimestamp: ts(at)})
}

func questionItem(id, order, part int, at float64) model.DisplayItem {
	return model.NewQuestionItem(model.Question{
		ID:             id,
		OrderNumber:    order,
		PartNumber:     part,
		Choices:        []string{"A", "B", "C", "D"},
		StartTimestamp: ts(at),
	})
}

func groupItem(id, part int, at float64, firstID, firstOrder, n int) model.DisplayItem {
	qs := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, model.Question{
			ID:          firstID + i,
			OrderNumber: firstOrder + i,
			PartNumber:  part,
			Choices:     []string{"A", "B", "C", "D"},
		})
	}
	return model.NewGroupItem(model.QuestionGroup{ID: id, PartNumber: part, StartTimestamp: ts(at), Questions: qs})
}

// fullTestItems builds a 200-question test: one question item per order
// number, with a directions block at the start of every part.
func fullTestItems() []model.DisplayItem {
	var items []model.DisplayItem
	for _, r := range PartRanges {
		items = append(items, partItem(r.Part, float64(r.Low*10)))
		for order := r.Low; order <= r.High; order++ {
			items = append(items, questionItem(1000+order, order, r.Part, float64(order*10+5)))
		}
	}
	return items
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) lastOf(t EventType) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return Event{}, false
}
