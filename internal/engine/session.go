package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/model"
)

// ErrSubmitted is returned when the attempt can no longer change.
var ErrSubmitted = errors.New("attempt already submitted")

// ItemFetcher loads the display items of a test.
type ItemFetcher interface {
	FetchDisplayItems(ctx context.Context, testID int) ([]model.DisplayItem, error)
}

// Submitter scores and stores a finished attempt.
type Submitter interface {
	Submit(ctx context.Context, payload model.SubmissionPayload) (*model.AttemptResult, error)
}

// Config describes one attempt.
type Config struct {
	Learner         model.Learner
	TestID          int
	Mode            model.AttemptMode
	DurationMinutes int
}

// Deps are the collaborators a session talks to. Media is required for
// simulation attempts and ignored otherwise.
type Deps struct {
	Fetcher   ItemFetcher
	Submitter Submitter
	Notifier  Notifier
	Clock     Clock
	Media     MediaClock
	Log       zerolog.Logger
}

// State is a snapshot of a session for rendering or reconnecting.
type State struct {
	TestID      int               `json:"test_id"`
	Mode        model.AttemptMode `json:"mode"`
	Countdown   CountdownState    `json:"countdown"`
	Sequencer   *SequencerState   `json:"sequencer,omitempty"`
	CurrentPart int               `json:"current_part,omitempty"`
	ItemCount   int               `json:"item_count"`
	Sheet       []PartSummary     `json:"sheet"`
	Submitting  bool              `json:"submitting"`
	Submitted   bool              `json:"submitted"`
	ResultID    *int              `json:"result_id,omitempty"`
}

// Session drives one timed attempt from start to submission.
type Session struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	startMu sync.Mutex

	mu          sync.Mutex
	items       []model.DisplayItem
	sheet       *AnswerSheet
	countdown   *Countdown
	seq         *Sequencer
	currentPart int
	loaded      bool
	closed      bool
	submitting  bool
	frozen      *int // remaining seconds at the first submission
	result      *model.AttemptResult
}

// NewSession creates a session. Nothing runs until Start.
func NewSession(cfg Config, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Notifier == nil {
		deps.Notifier = NotifierFunc(func(Event) {})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:       cfg,
		deps:      deps,
		log:       deps.Log.With().Int("test_id", cfg.TestID).Str("mode", string(cfg.Mode)).Logger(),
		ctx:       ctx,
		cancel:    cancel,
		sheet:     NewAnswerSheet(),
		countdown: NewCountdown(deps.Clock),
	}
}

// Start fetches the display items, builds the answer sheet, starts the
// countdown and, for simulation attempts, the audio. It runs once; later calls
// return nil. A failed fetch leaves the session unstarted so Start can be retried.
func (s *Session) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if s.cfg.Mode == model.AttemptModeSimulation && s.deps.Media == nil {
		return fmt.Errorf("start attempt: %w: no media clock", ErrMediaUnavailable)
	}

	items, err := s.deps.Fetcher.FetchDisplayItems(ctx, s.cfg.TestID)
	if err != nil {
		s.notify(EventError, ErrorData{Message: "could not load the test"})
		return fmt.Errorf("fetch display items: %w", err)
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return fmt.Errorf("display item %d: %w", i, err)
		}
	}
	if err := s.sheet.Initialize(items); err != nil {
		return fmt.Errorf("initialize answer sheet: %w", err)
	}

	s.mu.Lock()
	s.items = items
	s.loaded = true
	if s.cfg.Mode == model.AttemptModeSimulation {
		s.seq = NewSequencer(items)
	} else {
		s.currentPart = 1
	}
	s.mu.Unlock()

	s.log.Info().
		Int("items", len(items)).
		Int("questions", s.sheet.Len()).
		Int("duration_minutes", s.cfg.DurationMinutes).
		Msg("Attempt started")

	s.countdown.OnTick(s.handleTick)
	s.countdown.Start(s.cfg.DurationMinutes, s.handleExpire)

	if s.cfg.Mode == model.AttemptModeSimulation && !s.Done() {
		go s.followMedia(s.deps.Media)
		if err := s.deps.Media.Play(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Media failed to play, staying on the first item")
			s.notify(EventWarning, WarningData{Code: WarningMediaUnavailable, Message: "the audio could not be played"})
		}
	}
	return nil
}

func (s *Session) followMedia(m MediaClock) {
	positions := m.Positions()
	for {
		select {
		case <-s.ctx.Done():
			return
		case pos, ok := <-positions:
			if !ok {
				return
			}
			s.OnMediaPosition(pos)
		}
	}
}

// OnMediaPosition feeds a playback position to the sequencer.
func (s *Session) OnMediaPosition(position float64) {
	s.mu.Lock()
	if s.seq == nil {
		s.mu.Unlock()
		return
	}
	adv := s.seq.OnPosition(position)
	idx, item, shown := s.seq.Displayed()
	section := s.seq.Section()
	s.mu.Unlock()

	if !adv.Moved() {
		return
	}
	if adv.To-adv.From > 1 {
		s.log.Debug().Int("from", adv.From).Int("to", adv.To).Float64("position", position).Msg("Sequencer caught up")
	}
	if shown {
		s.notify(EventItemChanged, ItemChangedData{Index: idx, Section: section, Item: &item})
	}
}

// ReportMediaFailure records that the audio could not be loaded or played.
// The attempt stays in the listening section at its current item.
func (s *Session) ReportMediaFailure(err error) {
	s.log.Warn().Err(err).Msg("Media failure reported")
	s.notify(EventWarning, WarningData{Code: WarningMediaUnavailable, Message: "the audio could not be played"})
}

func (s *Session) handleTick(remaining int) {
	s.notify(EventTick, TickData{RemainingSeconds: remaining, Critical: remaining < CriticalThresholdSeconds})
}

func (s *Session) handleExpire() {
	s.log.Info().Msg("Time is up, submitting")
	s.notify(EventExpired, nil)
	if _, err := s.Submit(s.ctx); err != nil && !errors.Is(err, ErrSubmitInProgress) {
		s.log.Error().Err(err).Msg("Auto-submit failed")
	}
}

// mutable reports whether the sheet may still change. Caller holds mu.
func (s *Session) mutable() error {
	switch {
	case s.closed:
		return ErrClosed
	case !s.loaded:
		return ErrNotStarted
	case s.result != nil || s.submitting || s.frozen != nil:
		return ErrSubmitted
	}
	return nil
}

// SelectAnswer records an answer. An unknown order-number changes nothing and
// reports false.
func (s *Session) SelectAnswer(orderNumber int, answer string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return false, err
	}
	return s.sheet.SelectAnswer(orderNumber, answer), nil
}

// ToggleMark flips the review mark of a question.
func (s *Session) ToggleMark(orderNumber int) (marked, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return false, false, err
	}
	marked, changed = s.sheet.ToggleMark(orderNumber)
	return marked, changed, nil
}

// RestoreAnswers applies previously saved answers keyed by order-number and
// returns how many matched the sheet.
func (s *Session) RestoreAnswers(answers map[int]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutable(); err != nil {
		return 0, err
	}
	n := 0
	for order, ans := range answers {
		if s.sheet.SelectAnswer(order, ans) {
			n++
		}
	}
	return n, nil
}

// SelectPart switches the visible part of a practice attempt.
func (s *Session) SelectPart(part int) ([]IndexedItem, error) {
	if _, ok := RangeForPart(part); !ok {
		return nil, ErrInvalidPart
	}
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	if s.cfg.Mode != model.AttemptModePractice {
		s.mu.Unlock()
		return nil, ErrNotPractice
	}
	s.currentPart = part
	visible := VisibleItems(s.items, part)
	s.mu.Unlock()

	s.notify(EventPartChanged, PartChangedData{Part: part, Items: visible})
	return visible, nil
}

// Next moves forward one item in the reading section.
func (s *Session) Next() (SequencerState, bool, error) {
	return s.step((*Sequencer).Next)
}

// Previous moves back one item in the reading section.
func (s *Session) Previous() (SequencerState, bool, error) {
	return s.step((*Sequencer).Previous)
}

func (s *Session) step(move func(*Sequencer) bool) (SequencerState, bool, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return SequencerState{}, false, ErrNotStarted
	}
	if s.seq == nil {
		s.mu.Unlock()
		return SequencerState{}, false, ErrNotSimulation
	}
	moved := move(s.seq)
	st := s.seq.State()
	idx, item, shown := s.seq.Displayed()
	s.mu.Unlock()

	if moved && shown {
		s.notify(EventItemChanged, ItemChangedData{Index: idx, Section: st.Section, Item: &item})
	}
	return st, moved, nil
}

// JumpTo navigates to the item containing orderNumber. In practice mode this
// switches to the question's part; in simulation mode it is only allowed in
// the reading section and a refusal is surfaced as a warning.
func (s *Session) JumpTo(orderNumber int) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotStarted
	}
	entry, ok := s.sheet.Entry(orderNumber)
	if !ok {
		s.mu.Unlock()
		return ErrUnknownQuestion
	}

	if s.seq == nil {
		part := s.items[entry.DisplayItemIndex].PartNumber()
		s.mu.Unlock()
		_, err := s.SelectPart(part)
		return err
	}

	err := s.seq.JumpTo(entry.DisplayItemIndex)
	section := s.seq.Section()
	idx, item, shown := s.seq.Displayed()
	s.mu.Unlock()

	if errors.Is(err, ErrJumpDuringListening) {
		s.notify(EventWarning, WarningData{Code: WarningListeningLocked, Message: "you cannot review questions during the listening section"})
		return err
	}
	if err != nil {
		return err
	}
	if shown {
		s.notify(EventItemChanged, ItemChangedData{Index: idx, Section: section, Item: &item})
	}
	return nil
}

// RequestSubmit asks the learner to confirm submission.
func (s *Session) RequestSubmit() error {
	s.mu.Lock()
	var err error
	switch {
	case s.closed:
		err = ErrClosed
	case !s.loaded:
		err = ErrNotStarted
	case s.result != nil:
		err = ErrSubmitted
	case s.submitting:
		err = ErrSubmitInProgress
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	unanswered, marked := 0, 0
	for _, p := range s.sheet.Summary() {
		unanswered += len(p.Entries) - p.Answered
		marked += p.Marked
	}
	msg := "Submit your answers?"
	if unanswered > 0 {
		msg = fmt.Sprintf("You have %d unanswered questions. Submit anyway?", unanswered)
	}
	s.notify(EventConfirmSubmit, ConfirmSubmitData{Message: msg, Unanswered: unanswered, Marked: marked})
	return nil
}

// Submit stops the countdown and hands the answer sheet to the submitter.
// It is safe to race with expiry: while a submission is in flight further
// calls return ErrSubmitInProgress, and after success they return the stored
// result without submitting again. On failure the countdown stays stopped,
// the completion time stays frozen and Submit may be retried.
func (s *Session) Submit(ctx context.Context) (*model.AttemptResult, error) {
	s.mu.Lock()
	switch {
	case !s.loaded:
		s.mu.Unlock()
		return nil, ErrNotStarted
	case s.result != nil:
		r := s.result
		s.mu.Unlock()
		return r, nil
	case s.submitting:
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	case s.closed:
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.submitting = true
	if s.frozen == nil {
		s.countdown.Stop()
		remaining := s.countdown.RemainingSeconds()
		s.frozen = &remaining
	}
	payload := model.SubmissionPayload{
		UserID:                s.cfg.Learner.UserID,
		Email:                 s.cfg.Learner.Email,
		TestID:                s.cfg.TestID,
		Mode:                  s.cfg.Mode,
		CompletionTimeSeconds: s.countdown.TotalSeconds() - *s.frozen,
		Answers:               s.sheet.ToSubmissionAnswers(),
	}
	s.mu.Unlock()

	result, err := s.deps.Submitter.Submit(ctx, payload)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("Submission failed")
		s.notify(EventError, ErrorData{Message: "submission failed, please try again"})
		return nil, fmt.Errorf("submit attempt: %w", err)
	}
	s.result = result
	s.mu.Unlock()

	if s.deps.Media != nil {
		_ = s.deps.Media.Close()
	}

	s.log.Info().
		Int("result_id", result.ID).
		Int("completion_seconds", payload.CompletionTimeSeconds).
		Int("total_score", result.TotalScore).
		Msg("Attempt submitted")
	s.notify(EventSubmitted, SubmittedData{ResultID: result.ID, TestID: s.cfg.TestID})
	return result, nil
}

// Close releases the countdown and media clock. It is idempotent and does not
// submit.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.countdown.Stop()
	if s.deps.Media != nil {
		_ = s.deps.Media.Close()
	}
	s.cancel()
}

// Items returns the display items of the attempt.
func (s *Session) Items() []model.DisplayItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items
}

// Sheet exposes the answer sheet for read-only views.
func (s *Session) Sheet() *AnswerSheet { return s.sheet }

// Result returns the stored result once submitted.
func (s *Session) Result() (*model.AttemptResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.result != nil
}

// Done reports whether the session was submitted or closed.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.result != nil
}

// Config returns the attempt configuration.
func (s *Session) Config() Config { return s.cfg }

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	st := State{
		TestID:      s.cfg.TestID,
		Mode:        s.cfg.Mode,
		CurrentPart: s.currentPart,
		ItemCount:   len(s.items),
		Submitting:  s.submitting,
		Submitted:   s.result != nil,
	}
	if s.seq != nil {
		seq := s.seq.State()
		st.Sequencer = &seq
	}
	if s.result != nil {
		id := s.result.ID
		st.ResultID = &id
	}
	s.mu.Unlock()

	st.Countdown = s.countdown.State()
	st.Sheet = s.sheet.Summary()
	return st
}

func (s *Session) notify(t EventType, data any) {
	s.deps.Notifier.Notify(Event{Type: t, Data: data})
}
