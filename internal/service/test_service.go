package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/model"
)

// Domain Errors
var (
	ErrTestNotFound = errors.New("test not found")
	ErrNoQuestions  = errors.New("test has no questions")
)

// TestService serves test content from Redis with PostgreSQL as the source of
// truth. It is the display-item fetcher of every attempt.
type TestService struct {
	store TestStore
	cache Cache
	ttl   time.Duration
	log   zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(store TestStore, cache Cache, ttl time.Duration, log zerolog.Logger) *TestService {
	return &TestService{
		store: store,
		cache: cache,
		ttl:   ttl,
		log:   logger.Component(log, "test_service"),
	}
}

// List retrieves every test.
func (s *TestService) List(ctx context.Context) ([]model.Test, error) {
	tests, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	if tests == nil {
		tests = []model.Test{}
	}
	return tests, nil
}

// GetTest retrieves a test by ID.
func (s *TestService) GetTest(ctx context.Context, id int) (*model.Test, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return t, nil
}

// FetchDisplayItems returns the ordered display items of a test, from cache
// when possible. A cache miss or a broken cache entry falls back to
// PostgreSQL and repopulates the cache.
func (s *TestService) FetchDisplayItems(ctx context.Context, testID int) ([]model.DisplayItem, error) {
	items, err := s.cache.GetItems(ctx, testID)
	if err == nil && validItems(items) {
		return items, nil
	}
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		s.log.Warn().Err(err).Int("test_id", testID).Msg("Items cache read failed, falling back to database")
	}

	items, err = s.loadItems(ctx, testID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetItems(ctx, testID, items, s.ttl); err != nil {
		s.log.Warn().Err(err).Int("test_id", testID).Msg("Failed to cache display items")
	}
	return items, nil
}

func (s *TestService) loadItems(ctx context.Context, testID int) ([]model.DisplayItem, error) {
	items, err := s.store.ListDisplayItems(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list display items: %w", err)
	}
	questions := 0
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, fmt.Errorf("display item %d: %w", i, err)
		}
		questions += len(items[i].LeafQuestions())
	}
	if questions == 0 {
		return nil, ErrNoQuestions
	}
	return items, nil
}

func validItems(items []model.DisplayItem) bool {
	if len(items) == 0 {
		return false
	}
	for i := range items {
		if items[i].Validate() != nil {
			return false
		}
	}
	return true
}

// GetPayload returns the learner-facing view of a test.
func (s *TestService) GetPayload(ctx context.Context, testID int) (*model.TestPayload, error) {
	t, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	items, err := s.FetchDisplayItems(ctx, testID)
	if err != nil {
		return nil, err
	}
	return &model.TestPayload{
		TestID:       t.ID,
		Title:        t.Title,
		Duration:     t.DurationMinutes,
		AudioURL:     t.AudioURL,
		DisplayItems: items,
	}, nil
}

// AnswerKey returns the grading data of a test, from cache when possible.
func (s *TestService) AnswerKey(ctx context.Context, testID int) ([]model.AnswerKeyEntry, error) {
	key, err := s.cache.GetAnswerKey(ctx, testID)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.log.Warn().Err(err).Int("test_id", testID).Msg("Answer key cache read failed, falling back to database")
	}

	key, err = s.store.AnswerKey(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	if len(key) == 0 {
		return nil, ErrNoQuestions
	}
	if err := s.cache.SetAnswerKey(ctx, testID, key, s.ttl); err != nil {
		s.log.Warn().Err(err).Int("test_id", testID).Msg("Failed to cache answer key")
	}
	return key, nil
}

// WarmCache reloads a test's items and answer key from PostgreSQL into Redis.
func (s *TestService) WarmCache(ctx context.Context, testID int) error {
	if _, err := s.GetTest(ctx, testID); err != nil {
		return err
	}
	items, err := s.loadItems(ctx, testID)
	if err != nil {
		if errors.Is(err, ErrNoQuestions) || errors.Is(err, model.ErrInvalidDisplayItem) {
			// Do not keep serving content the database no longer backs.
			if invErr := s.cache.InvalidateTest(ctx, testID); invErr != nil {
				s.log.Warn().Err(invErr).Int("test_id", testID).Msg("Failed to invalidate cache")
			}
		}
		return err
	}
	key, err := s.store.AnswerKey(ctx, testID)
	if err != nil {
		return fmt.Errorf("load answer key: %w", err)
	}

	if err := s.cache.SetItems(ctx, testID, items, s.ttl); err != nil {
		return fmt.Errorf("cache items: %w", err)
	}
	if err := s.cache.SetAnswerKey(ctx, testID, key, s.ttl); err != nil {
		return fmt.Errorf("cache answer key: %w", err)
	}

	s.log.Debug().
		Int("test_id", testID).
		Int("items", len(items)).
		Int("questions", len(key)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every test into Redis on startup.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	tests, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list tests: %w", err)
	}
	if len(tests) == 0 {
		s.log.Info().Msg("No tests to prewarm")
		return nil
	}

	warmed := 0
	for _, t := range tests {
		if err := s.WarmCache(ctx, t.ID); err != nil {
			s.log.Warn().Err(err).Int("test_id", t.ID).Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(tests)).
		Msg("Prewarming complete")
	return nil
}
