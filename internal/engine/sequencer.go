package engine

import "github.com/stemsi/toeic-session/internal/model"

// Section is the phase of a simulation attempt.
type Section string

const (
	SectionListening Section = "LISTENING"
	SectionReading   Section = "READING"
)

// SequencerState is a snapshot of the sequencer.
type SequencerState struct {
	Section         Section `json:"section"`
	CurrentIndex    int     `json:"current_index"`
	DisplayedIndex  int     `json:"displayed_index"`
	ListeningLength int     `json:"listening_length"`
	TotalLength     int     `json:"total_length"`
}

// Advance describes what a media-position update changed.
type Advance struct {
	From         int
	To           int
	Displayed    int
	Transitioned bool
}

// Moved reports whether the update advanced the cursor.
func (a Advance) Moved() bool { return a.To != a.From }

// Sequencer walks the display items of a simulation attempt. The listening
// prefix advances only from the media clock; the reading remainder moves one
// step at a time on request.
//
// While listening, current is the index of the next item waiting for its
// timestamp and displayed trails it by one. Once reading, both are equal.
type Sequencer struct {
	items        []model.DisplayItem
	listeningLen int
	current      int
	displayed    int
	section      Section
}

// NewSequencer partitions items into the leading listening prefix (parts 1-4)
// and the reading remainder.
func NewSequencer(items []model.DisplayItem) *Sequencer {
	n := 0
	for n < len(items) && IsListeningPart(items[n].PartNumber()) {
		n++
	}
	s := &Sequencer{items: items, listeningLen: n, displayed: -1, section: SectionListening}
	if n == 0 {
		s.enterReading()
	}
	return s
}

// enterReading is the single LISTENING -> READING transition.
func (s *Sequencer) enterReading() {
	s.section = SectionReading
	s.current = s.listeningLen
	if s.current < len(s.items) {
		s.displayed = s.current
	}
}

// OnPosition consumes a media-clock reading in seconds. Every pending
// listening item whose start timestamp has elapsed is passed in one call, so a
// seek catches up rather than single-stepping.
func (s *Sequencer) OnPosition(position float64) Advance {
	adv := Advance{From: s.current, To: s.current, Displayed: s.displayed}
	if s.section != SectionListening {
		return adv
	}

	for s.current < s.listeningLen && position >= s.items[s.current].StartTimestamp() {
		s.displayed = s.current
		s.current++
	}
	if s.current >= s.listeningLen {
		s.enterReading()
		adv.Transitioned = true
	}

	adv.To = s.current
	adv.Displayed = s.displayed
	return adv
}

// Next moves one item forward in the reading section. It is a no-op at the
// last item or while listening.
func (s *Sequencer) Next() bool {
	if s.section != SectionReading || s.current+1 >= len(s.items) {
		return false
	}
	s.current++
	s.displayed = s.current
	return true
}

// Previous moves one item back, never before the first reading item.
func (s *Sequencer) Previous() bool {
	if s.section != SectionReading || s.current-1 < s.listeningLen {
		return false
	}
	s.current--
	s.displayed = s.current
	return true
}

// JumpTo sets the cursor to a reading-section index.
func (s *Sequencer) JumpTo(index int) error {
	if s.section == SectionListening {
		return ErrJumpDuringListening
	}
	if index < s.listeningLen || index >= len(s.items) {
		return ErrJumpOutOfRange
	}
	s.current = index
	s.displayed = index
	return nil
}

// Section returns the current phase.
func (s *Sequencer) Section() Section { return s.section }

// CurrentIndex returns the cursor.
func (s *Sequencer) CurrentIndex() int { return s.current }

// ListeningLength returns the size of the listening prefix.
func (s *Sequencer) ListeningLength() int { return s.listeningLen }

// Displayed returns the item on screen, if any.
func (s *Sequencer) Displayed() (int, model.DisplayItem, bool) {
	if s.displayed < 0 || s.displayed >= len(s.items) {
		return -1, model.DisplayItem{}, false
	}
	return s.displayed, s.items[s.displayed], true
}

// State returns a snapshot.
func (s *Sequencer) State() SequencerState {
	return SequencerState{
		Section:         s.section,
		CurrentIndex:    s.current,
		DisplayedIndex:  s.displayed,
		ListeningLength: s.listeningLen,
		TotalLength:     len(s.items),
	}
}
