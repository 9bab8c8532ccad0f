package engine

import (
	"context"
	"errors"
	"sync"
)

// ErrMediaUnavailable is reported when the audio track cannot be played.
var ErrMediaUnavailable = errors.New("media unavailable")

// MediaClock is the audio element pacing a simulation attempt. The engine only
// issues Play and reads playback positions in seconds.
type MediaClock interface {
	Play(ctx context.Context) error
	Positions() <-chan float64
	Close() error
}

// FeedMediaClock is a MediaClock whose positions are reported by a remote
// player, such as the learner's browser over the attempt stream.
type FeedMediaClock struct {
	mu        sync.Mutex
	positions chan float64
	play      func(ctx context.Context) error
	failed    error
	closed    bool
}

// NewFeedMediaClock creates a clock. play asks the remote player to start.
func NewFeedMediaClock(play func(ctx context.Context) error) *FeedMediaClock {
	return &FeedMediaClock{
		positions: make(chan float64, 16),
		play:      play,
	}
}

// Play asks the remote player to start playback.
func (m *FeedMediaClock) Play(ctx context.Context) error {
	m.mu.Lock()
	failed, closed := m.failed, m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if failed != nil {
		return failed
	}
	if m.play == nil {
		return nil
	}
	return m.play(ctx)
}

// Positions streams reported playback positions.
func (m *FeedMediaClock) Positions() <-chan float64 {
	return m.positions
}

// Report publishes a playback position. When the buffer is full the oldest
// reading is dropped; only the latest position matters for catching up.
func (m *FeedMediaClock) Report(position float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for {
		select {
		case m.positions <- position:
			return
		default:
			select {
			case <-m.positions:
			default:
			}
		}
	}
}

// Fail records that the remote player could not load or play the track.
func (m *FeedMediaClock) Fail(err error) {
	if err == nil {
		err = ErrMediaUnavailable
	}
	m.mu.Lock()
	m.failed = err
	m.mu.Unlock()
}

// Close stops the position stream. It is idempotent.
func (m *FeedMediaClock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.positions)
	}
	return nil
}
