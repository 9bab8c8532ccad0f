package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/toeic-session/internal/engine"
	"github.com/stemsi/toeic-session/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockResultStore struct {
	mock.Mock
}

func (m *MockResultStore) Create(ctx context.Context, res *model.AttemptResult, answers []model.GradedAnswer) error {
	args := m.Called(ctx, res, answers)
	return args.Error(0)
}

func (m *MockResultStore) GetByID(ctx context.Context, id int) (*model.AttemptResult, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*model.AttemptResult)
	return r, args.Error(1)
}

func (m *MockResultStore) ListByUser(ctx context.Context, userID, limit, offset int) ([]model.AttemptResult, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	r, _ := args.Get(0).([]model.AttemptResult)
	return r, args.Int(1), args.Error(2)
}

func (m *MockResultStore) ListAnswers(ctx context.Context, resultID int) ([]model.GradedAnswer, error) {
	args := m.Called(ctx, resultID)
	r, _ := args.Get(0).([]model.GradedAnswer)
	return r, args.Error(1)
}

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, payload model.SubmissionPayload) (*model.AttemptResult, error) {
	args := m.Called(ctx, payload)
	r, _ := args.Get(0).(*model.AttemptResult)
	return r, args.Error(1)
}

// memTestStore is an in-memory TestStore.
type memTestStore struct {
	mu        sync.Mutex
	tests     map[int]model.Test
	items     map[int][]model.DisplayItem
	keys      map[int][]model.AnswerKeyEntry
	itemLoads int
	err       error
}

func newMemTestStore() *memTestStore {
	return &memTestStore{
		tests: make(map[int]model.Test),
		items: make(map[int][]model.DisplayItem),
		keys:  make(map[int][]model.AnswerKeyEntry),
	}
}

func (s *memTestStore) add(t model.Test, items []model.DisplayItem, key []model.AnswerKeyEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tests[t.ID] = t
	s.items[t.ID] = items
	s.keys[t.ID] = key
}

func (s *memTestStore) List(context.Context) ([]model.Test, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []model.Test
	for _, t := range s.tests {
		out = append(out, t)
	}
	return out, nil
}

func (s *memTestStore) GetByID(_ context.Context, id int) (*model.Test, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (s *memTestStore) ListDisplayItems(_ context.Context, testID int) ([]model.DisplayItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemLoads++
	if s.err != nil {
		return nil, s.err
	}
	return s.items[testID], nil
}

func (s *memTestStore) AnswerKey(_ context.Context, testID int) ([]model.AnswerKeyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.keys[testID], nil
}

func (s *memTestStore) loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemLoads
}

// memCache is an in-memory Cache that records drafts and monitor events.
type memCache struct {
	mu       sync.Mutex
	items    map[int][]model.DisplayItem
	keys     map[int][]model.AnswerKeyEntry
	drafts   map[[2]int]map[int]string
	queued   []model.DraftAnswer
	events   []model.MonitorEvent
	cleared  int
	draftErr error
}

func newMemCache() *memCache {
	return &memCache{
		items:  make(map[int][]model.DisplayItem),
		keys:   make(map[int][]model.AnswerKeyEntry),
		drafts: make(map[[2]int]map[int]string),
	}
}

func (c *memCache) GetItems(_ context.Context, testID int) ([]model.DisplayItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.items[testID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return items, nil
}

func (c *memCache) SetItems(_ context.Context, testID int, items []model.DisplayItem, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[testID] = items
	return nil
}

func (c *memCache) GetAnswerKey(_ context.Context, testID int) ([]model.AnswerKeyEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.keys[testID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return key, nil
}

func (c *memCache) SetAnswerKey(_ context.Context, testID int, key []model.AnswerKeyEntry, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[testID] = key
	return nil
}

func (c *memCache) InvalidateTest(_ context.Context, testID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, testID)
	delete(c.keys, testID)
	return nil
}

func (c *memCache) SaveDraft(_ context.Context, d model.DraftAnswer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draftErr != nil {
		return c.draftErr
	}
	k := [2]int{d.UserID, d.TestID}
	if c.drafts[k] == nil {
		c.drafts[k] = make(map[int]string)
	}
	c.drafts[k][d.OrderNumber] = d.Answer
	c.queued = append(c.queued, d)
	return nil
}

func (c *memCache) LoadDraft(_ context.Context, userID, testID int) (map[int]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]string)
	for k, v := range c.drafts[[2]int{userID, testID}] {
		out[k] = v
	}
	return out, nil
}

func (c *memCache) ClearDraft(_ context.Context, userID, testID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.drafts, [2]int{userID, testID})
	c.cleared++
	return nil
}

func (c *memCache) PublishMonitor(_ context.Context, ev model.MonitorEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *memCache) monitorTypes() []model.MonitorEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.MonitorEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

// memDraftStore is an in-memory DraftStore.
type memDraftStore struct {
	mu      sync.Mutex
	answers map[[2]int]map[int]string
	deleted int
}

func newMemDraftStore() *memDraftStore {
	return &memDraftStore{answers: make(map[[2]int]map[int]string)}
}

func (s *memDraftStore) ListByUserTest(_ context.Context, userID, testID int) (map[int]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]string)
	for k, v := range s.answers[[2]int{userID, testID}] {
		out[k] = v
	}
	return out, nil
}

func (s *memDraftStore) DeleteByUserTest(_ context.Context, userID, testID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answers, [2]int{userID, testID})
	s.deleted++
	return nil
}

// manualClock hands out tickers that only fire when the test sends on them.
type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

func (c *manualClock) NewTicker(time.Duration) engine.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *manualClock) last() *manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}

func ptr[T any](v T) *T { return &v }

// smallTest is a two-part test: one listening question at 5s and a reading
// group of two questions.
func smallTest() (model.Test, []model.DisplayItem, []model.AnswerKeyEntry) {
	t := model.Test{ID: 10, Title: "Mini TOEIC", DurationMinutes: 30, AudioURL: ptr("https://cdn.example.com/mini.mp3"), QuestionCount: 3}
	choices := []string{"A", "B", "C", "D"}
	items := []model.DisplayItem{
		model.NewPartItem(model.PartBlock{PartNumber: 1, StartTimestamp: ptr(0.0)}),
		model.NewQuestionItem(model.Question{ID: 101, OrderNumber: 1, PartNumber: 1, Choices: choices, StartTimestamp: ptr(5.0)}),
		model.NewPartItem(model.PartBlock{PartNumber: 7}),
		model.NewGroupItem(model.QuestionGroup{ID: 500, PartNumber: 7, Questions: []model.Question{
			{ID: 102, OrderNumber: 147, PartNumber: 7, Choices: choices},
			{ID: 103, OrderNumber: 148, PartNumber: 7, Choices: choices},
		}}),
	}
	key := []model.AnswerKeyEntry{
		{QuestionID: 101, PartNumber: 1, CorrectAnswer: "B"},
		{QuestionID: 102, PartNumber: 7, CorrectAnswer: "C"},
		{QuestionID: 103, PartNumber: 7, CorrectAnswer: "A"},
	}
	return t, items, key
}
