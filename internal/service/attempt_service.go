package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/engine"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/model"
	"github.com/stemsi/toeic-session/internal/validator"
	"golang.org/x/sync/singleflight"
)

// Domain Errors
var (
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrNotAttemptOwner = errors.New("attempt belongs to another learner")
	ErrTooManyAttempts = errors.New("too many live attempts")
	ErrInvalidMode     = errors.New("invalid attempt mode")
	ErrInvalidAnswer   = errors.New("answer must be one of A, B, C or D")
)

const monitorPublishTimeout = 2 * time.Second

// TestCatalog is what an attempt needs to know about its test.
type TestCatalog interface {
	engine.ItemFetcher
	GetTest(ctx context.Context, id int) (*model.Test, error)
}

// AttemptOptions tune the live attempt manager.
type AttemptOptions struct {
	// MaxLive caps attempts that are neither submitted nor closed. Zero means no cap.
	MaxLive int
	// Retention is how long a finished attempt stays readable before it is reaped.
	Retention time.Duration
	// Clock drives every countdown. Defaults to the wall clock.
	Clock engine.Clock
}

// PlayMediaData is sent to the player when a simulation attempt starts its audio.
type PlayMediaData struct {
	AudioURL string `json:"audio_url"`
}

// AttemptView is a snapshot of a live attempt.
type AttemptView struct {
	ID        string            `json:"attempt_id"`
	TestID    int               `json:"test_id"`
	Title     string            `json:"title"`
	Mode      model.AttemptMode `json:"mode"`
	AudioURL  *string           `json:"audio_url,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	State     engine.State      `json:"state"`
}

type liveAttempt struct {
	id        string
	learner   model.Learner
	test      model.Test
	session   *engine.Session
	media     *engine.FeedMediaClock
	hub       *attemptHub
	createdAt time.Time

	mu     sync.Mutex
	doneAt time.Time
}

func (a *liveAttempt) view() *AttemptView {
	return &AttemptView{
		ID:        a.id,
		TestID:    a.test.ID,
		Title:     a.test.Title,
		Mode:      a.session.Config().Mode,
		AudioURL:  a.test.AudioURL,
		StartedAt: a.createdAt,
		State:     a.session.State(),
	}
}

// AttemptService owns every live attempt of this process. Each attempt is an
// engine session driven by REST calls and the attempt stream.
type AttemptService struct {
	tests     TestCatalog
	submitter engine.Submitter
	cache     Cache
	drafts    DraftStore
	opts      AttemptOptions
	now       func() time.Time
	log       zerolog.Logger

	starts singleflight.Group

	mu       sync.Mutex
	attempts map[string]*liveAttempt
	reserved int
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(tests TestCatalog, submitter engine.Submitter, cache Cache, drafts DraftStore, opts AttemptOptions, log zerolog.Logger) *AttemptService {
	if opts.Clock == nil {
		opts.Clock = engine.SystemClock{}
	}
	return &AttemptService{
		tests:     tests,
		submitter: submitter,
		cache:     cache,
		drafts:    drafts,
		opts:      opts,
		now:       time.Now,
		log:       logger.Component(log, "attempt_service"),
		attempts:  make(map[string]*liveAttempt),
	}
}

// Start begins an attempt, or returns the learner's unfinished attempt on the
// same test. Concurrent starts of one test by one learner share a single
// attempt. Autosaved answers are restored onto the new sheet.
func (s *AttemptService) Start(ctx context.Context, learner model.Learner, testID int, mode model.AttemptMode) (*AttemptView, error) {
	if !mode.Valid() {
		return nil, ErrInvalidMode
	}

	key := strconv.Itoa(learner.UserID) + ":" + strconv.Itoa(testID)
	v, err, shared := s.starts.Do(key, func() (any, error) {
		return s.start(ctx, learner, testID, mode)
	})
	if err != nil {
		return nil, err
	}
	a := v.(*liveAttempt)
	if shared {
		s.log.Debug().Str("attempt_id", a.id).Int("user_id", learner.UserID).Msg("Joined concurrent start")
	}
	return a.view(), nil
}

func (s *AttemptService) start(ctx context.Context, learner model.Learner, testID int, mode model.AttemptMode) (*liveAttempt, error) {
	test, err := s.tests.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if a := s.liveForLocked(learner.UserID, testID); a != nil {
		s.mu.Unlock()
		s.log.Info().Str("attempt_id", a.id).Int("user_id", learner.UserID).Msg("Resuming live attempt")
		return a, nil
	}
	if s.opts.MaxLive > 0 && s.liveCountLocked()+s.reserved >= s.opts.MaxLive {
		s.mu.Unlock()
		return nil, ErrTooManyAttempts
	}
	// The slot stays reserved while the session loads its items.
	s.reserved++
	s.mu.Unlock()

	a := &liveAttempt{
		id:        uuid.NewString(),
		learner:   learner,
		test:      *test,
		createdAt: s.now(),
	}
	a.hub = newAttemptHub(func(e engine.Event) { s.onSessionEvent(a, e) })

	deps := engine.Deps{
		Fetcher:   s.tests,
		Submitter: s.submitter,
		Notifier:  a.hub,
		Clock:     s.opts.Clock,
		Log:       s.log.With().Str("attempt_id", a.id).Int("user_id", learner.UserID).Logger(),
	}
	if mode == model.AttemptModeSimulation {
		a.media = engine.NewFeedMediaClock(s.playFunc(a))
		deps.Media = a.media
	}
	a.session = engine.NewSession(engine.Config{
		Learner:         learner,
		TestID:          testID,
		Mode:            mode,
		DurationMinutes: test.DurationMinutes,
	}, deps)

	if err := a.session.Start(ctx); err != nil {
		s.mu.Lock()
		s.reserved--
		s.mu.Unlock()
		a.session.Close()
		a.hub.close()
		return nil, fmt.Errorf("start attempt: %w", err)
	}
	s.restoreDrafts(ctx, a)

	s.mu.Lock()
	s.reserved--
	s.attempts[a.id] = a
	s.mu.Unlock()

	s.publish(ctx, a, model.MonitorAttemptStarted)
	s.log.Info().
		Str("attempt_id", a.id).
		Int("user_id", learner.UserID).
		Int("test_id", testID).
		Str("mode", string(mode)).
		Msg("Attempt registered")
	return a, nil
}

// playFunc asks the learner's player to start the test audio.
func (s *AttemptService) playFunc(a *liveAttempt) func(context.Context) error {
	return func(context.Context) error {
		if a.test.AudioURL == nil || *a.test.AudioURL == "" {
			return engine.ErrMediaUnavailable
		}
		a.hub.Notify(engine.Event{Type: engine.EventPlayMedia, Data: PlayMediaData{AudioURL: *a.test.AudioURL}})
		return nil
	}
}

func (s *AttemptService) restoreDrafts(ctx context.Context, a *liveAttempt) {
	answers, err := s.cache.LoadDraft(ctx, a.learner.UserID, a.test.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.id).Msg("Draft cache read failed, falling back to database")
	}
	if len(answers) == 0 && s.drafts != nil {
		answers, err = s.drafts.ListByUserTest(ctx, a.learner.UserID, a.test.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", a.id).Msg("Failed to load draft answers")
			return
		}
	}
	if len(answers) == 0 {
		return
	}

	n, err := a.session.RestoreAnswers(answers)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.id).Msg("Failed to restore draft answers")
		return
	}
	s.log.Info().Str("attempt_id", a.id).Int("restored", n).Msg("Draft answers restored")
}

func (s *AttemptService) onSessionEvent(a *liveAttempt, e engine.Event) {
	if e.Type != engine.EventExpired {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), monitorPublishTimeout)
		defer cancel()
		s.publish(ctx, a, model.MonitorAttemptExpired)
	}()
}

func (s *AttemptService) publish(ctx context.Context, a *liveAttempt, t model.MonitorEventType) {
	ev := model.MonitorEvent{
		Type:      t,
		TestID:    a.test.ID,
		AttemptID: a.id,
		UserID:    a.learner.UserID,
		Email:     a.learner.Email,
		Mode:      a.session.Config().Mode,
		Timestamp: s.now().Unix(),
	}
	if err := s.cache.PublishMonitor(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.id).Str("event", string(t)).Msg("Failed to publish monitor event")
	}
}

func (s *AttemptService) liveForLocked(userID, testID int) *liveAttempt {
	for _, a := range s.attempts {
		if a.learner.UserID == userID && a.test.ID == testID && !a.session.Done() {
			return a
		}
	}
	return nil
}

func (s *AttemptService) liveCountLocked() int {
	n := 0
	for _, a := range s.attempts {
		if !a.session.Done() {
			n++
		}
	}
	return n
}

// LiveCount returns the number of attempts still in progress.
func (s *AttemptService) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveCountLocked()
}

func (s *AttemptService) lookup(id string, learner model.Learner) (*liveAttempt, error) {
	s.mu.Lock()
	a, ok := s.attempts[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if a.learner.UserID != learner.UserID {
		return nil, ErrNotAttemptOwner
	}
	return a, nil
}

// Get returns a snapshot of the attempt.
func (s *AttemptService) Get(id string, learner model.Learner) (*AttemptView, error) {
	a, err := s.lookup(id, learner)
	if err != nil {
		return nil, err
	}
	return a.view(), nil
}

// Items returns the display items of the attempt.
func (s *AttemptService) Items(id string, learner model.Learner) ([]model.DisplayItem, error) {
	a, err := s.lookup(id, learner)
	if err != nil {
		return nil, err
	}
	return a.session.Items(), nil
}

// Sheet returns the answer sheet grouped by part. A part of 0 returns all
// seven parts.
func (s *AttemptService) Sheet(id string, learner model.Learner, part int) ([]engine.PartSummary, error) {
	a, err := s.lookup(id, learner)
	if err != nil {
		return nil, err
	}
	if part == 0 {
		return a.session.Sheet().Summary(), nil
	}
	summary, ok := a.session.Sheet().SummaryForPart(part)
	if !ok {
		return nil, engine.ErrInvalidPart
	}
	return []engine.PartSummary{summary}, nil
}

// Subscribe attaches an event stream to the attempt. The returned function
// detaches it.
func (s *AttemptService) Subscribe(id string, learner model.Learner) (<-chan engine.Event, func(), error) {
	a, err := s.lookup(id, learner)
	if err != nil {
		return nil, nil, err
	}
	ch := a.hub.subscribe()
	return ch, func() { a.hub.unsubscribe(ch) }, nil
}

// SelectAnswer records an answer and autosaves it when it changed the sheet.
func (s *AttemptService) SelectAnswer(ctx context.Context, id string, learner model.Learner, orderNumber int, answer string) (bool, error) {
	if !validator.IsChoice(answer) {
		return false, ErrInvalidAnswer
	}
	a, err := s.lookup(id, learner)
	if err != nil {
		return false, err
	}
	changed, err := a.session.SelectAnswer(orderNumber, answer)
	if err != nil || !changed {
		return changed, err
	}

	draft := model.DraftAnswer{
		UserID:      learner.UserID,
		TestID:      a.test.ID,
		OrderNumber: orderNumber,
		Answer:      answer,
		SavedAt:     s.now().UnixMilli(),
	}
	if err := s.cache.SaveDraft(ctx, draft); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", id).Int("order", orderNumber).Msg("Failed to autosave answer")
	}
	return true, nil
}

// ToggleMark flips the review mark of a question.
func (s *AttemptService) ToggleMark(id string, learner model.Learner, orderNumber int) (bool, error) {
	a, err := s.lookup(id, learner)
	if err != nil {
		return false, err
	}
	marked, changed, err := a.session.ToggleMark(orderNumber)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, engine.ErrUnknownQuestion
	}
	return marked, nil
}

// SelectPart switches the visible part of a practice attempt.
func (s *AttemptService) SelectPart(id string, learner model.Learner, part int) ([]engine.IndexedItem, error) {
	a, err := s.lookup(id, learner)
	if err != nil {
		return nil, err
	}
	return a.session.SelectPart(part)
}

// Next moves a simulation attempt forward in the reading section.
func (s *AttemptService) Next(id string, learner model.Learner) (engine.SequencerState, error) {
	a, err := s.lookup(id, learner)
	if err != nil {
		return engine.SequencerState{}, err
	}
	st, _, err := a.session.Next()
	return st, err
}

// Previous moves a simulation attempt back in the reading section.
func (s *AttemptService) Previous(id string, learner model.Learner) (engine.SequencerState, error) {
	a, err := s.lookup(id, learner)
	if err != nil {
		return engine.SequencerState{}, err
	}
	st, _, err := a.session.Previous()
	return st, err
}

// JumpTo navigates to the item holding orderNumber.
func (s *AttemptService) JumpTo(id string, learner model.Learner, orderNumber int) error {
	a, err := s.lookup(id, learner)
	if err != nil {
		return err
	}
	return a.session.JumpTo(orderNumber)
}

// ReportPosition feeds the player's playback position to a simulation attempt.
func (s *AttemptService) ReportPosition(id string, learner model.Learner, position float64) error {
	a, err := s.lookup(id, learner)
	if err != nil {
		return err
	}
	if a.media == nil {
		return engine.ErrNotSimulation
	}
	a.media.Report(position)
	return nil
}

// ReportMediaError records that the player could not play the audio.
func (s *AttemptService) ReportMediaError(id string, learner model.Learner, reason string) error {
	a, err := s.lookup(id, learner)
	if err != nil {
		return err
	}
	if a.media == nil {
		return engine.ErrNotSimulation
	}
	cause := engine.ErrMediaUnavailable
	if reason != "" {
		cause = fmt.Errorf("%w: %s", engine.ErrMediaUnavailable, reason)
	}
	a.media.Fail(cause)
	a.session.ReportMediaFailure(cause)
	return nil
}

// RequestSubmit asks the learner to confirm submission.
func (s *AttemptService) RequestSubmit(id string, learner model.Learner) error {
	a, err := s.lookup(id, learner)
	if err != nil {
		return err
	}
	return a.session.RequestSubmit()
}

// Submit submits the attempt. Calling it again after success returns the
// stored result.
func (s *AttemptService) Submit(ctx context.Context, id string, learner model.Learner) (*model.AttemptResult, error) {
	a, err := s.lookup(id, learner)
	if err != nil {
		return nil, err
	}
	return a.session.Submit(ctx)
}

// Abandon closes the attempt without submitting it.
func (s *AttemptService) Abandon(ctx context.Context, id string, learner model.Learner) error {
	a, err := s.lookup(id, learner)
	if err != nil {
		return err
	}
	if _, submitted := a.session.Result(); submitted {
		return engine.ErrSubmitted
	}
	a.session.Close()
	a.hub.close()
	s.publish(ctx, a, model.MonitorAttemptAbandoned)
	s.log.Info().Str("attempt_id", id).Int("user_id", learner.UserID).Msg("Attempt abandoned")
	return nil
}

// RunReaper removes finished attempts every interval until ctx is cancelled.
func (s *AttemptService) RunReaper(ctx context.Context, interval time.Duration) {
	s.log.Info().Dur("interval", interval).Msg("Attempt reaper started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Attempt reaper stopped")
			return
		case <-ticker.C:
			s.Reap()
		}
	}
}

// Reap drops attempts that finished more than Retention ago, and closes
// attempts whose deadline passed Retention ago without a successful
// submission.
func (s *AttemptService) Reap() int {
	now := s.now()

	s.mu.Lock()
	var stale []*liveAttempt
	removed := 0
	for id, a := range s.attempts {
		if a.session.Done() {
			a.mu.Lock()
			if a.doneAt.IsZero() {
				a.doneAt = now
			}
			expired := now.Sub(a.doneAt) >= s.opts.Retention
			a.mu.Unlock()
			if expired {
				delete(s.attempts, id)
				a.hub.close()
				removed++
			}
			continue
		}
		deadline := a.createdAt.Add(time.Duration(a.test.DurationMinutes)*time.Minute + s.opts.Retention)
		if now.After(deadline) {
			stale = append(stale, a)
		}
	}
	s.mu.Unlock()

	for _, a := range stale {
		s.log.Warn().Str("attempt_id", a.id).Msg("Closing attempt that outlived its deadline")
		a.session.Close()
		ctx, cancel := context.WithTimeout(context.Background(), monitorPublishTimeout)
		s.publish(ctx, a, model.MonitorAttemptAbandoned)
		cancel()
	}

	if removed > 0 || len(stale) > 0 {
		s.log.Debug().Int("removed", removed).Int("stale", len(stale)).Msg("Reaped attempts")
	}
	return removed
}

// Shutdown submits every attempt still in progress, then closes all of them.
func (s *AttemptService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	all := make([]*liveAttempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		all = append(all, a)
	}
	s.mu.Unlock()

	submitted := 0
	for _, a := range all {
		if !a.session.Done() {
			if _, err := a.session.Submit(ctx); err != nil {
				s.log.Error().Err(err).Str("attempt_id", a.id).Msg("Failed to submit attempt on shutdown")
			} else {
				submitted++
			}
		}
		a.session.Close()
		a.hub.close()
	}
	s.log.Info().Int("attempts", len(all)).Int("submitted", submitted).Msg("Attempts drained")
}
