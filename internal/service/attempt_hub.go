package service

import (
	"sync"

	"github.com/stemsi/toeic-session/internal/engine"
)

// subscriberBuffer is the per-connection event backlog. Slow readers lose
// events past it; the next tick or state snapshot resynchronises them.
const subscriberBuffer = 64

// attemptHub fans session events out to every connected stream of one
// attempt. Events that a late subscriber must still see are kept and
// replayed on subscribe.
type attemptHub struct {
	mu      sync.Mutex
	subs    map[chan engine.Event]struct{}
	sticky  map[engine.EventType]engine.Event
	closed  bool
	onEvent func(engine.Event)
}

func newAttemptHub(onEvent func(engine.Event)) *attemptHub {
	return &attemptHub{
		subs:    make(map[chan engine.Event]struct{}),
		sticky:  make(map[engine.EventType]engine.Event),
		onEvent: onEvent,
	}
}

func isSticky(t engine.EventType) bool {
	return t == engine.EventPlayMedia || t == engine.EventSubmitted || t == engine.EventExpired
}

// Notify implements engine.Notifier. It never blocks.
func (h *attemptHub) Notify(e engine.Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	if isSticky(e.Type) {
		h.sticky[e.Type] = e
	}
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
	h.mu.Unlock()

	if h.onEvent != nil {
		h.onEvent(e)
	}
}

func (h *attemptHub) subscribe() chan engine.Event {
	ch := make(chan engine.Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	for _, t := range []engine.EventType{engine.EventPlayMedia, engine.EventExpired, engine.EventSubmitted} {
		if e, ok := h.sticky[t]; ok {
			ch <- e
		}
	}
	h.subs[ch] = struct{}{}
	return ch
}

func (h *attemptHub) unsubscribe(ch chan engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *attemptHub) subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// close ends every subscription. Later subscribers get a closed channel.
func (h *attemptHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}
