package service

import (
	"context"
	"errors"
	"time"

	"github.com/stemsi/toeic-session/internal/model"
)

// ErrCacheMiss is returned by Cache reads when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// TestStore is the relational source of test content.
type TestStore interface {
	List(ctx context.Context) ([]model.Test, error)
	GetByID(ctx context.Context, id int) (*model.Test, error)
	ListDisplayItems(ctx context.Context, testID int) ([]model.DisplayItem, error)
	AnswerKey(ctx context.Context, testID int) ([]model.AnswerKeyEntry, error)
}

// ResultStore persists scored attempts.
type ResultStore interface {
	Create(ctx context.Context, res *model.AttemptResult, answers []model.GradedAnswer) error
	GetByID(ctx context.Context, id int) (*model.AttemptResult, error)
	ListByUser(ctx context.Context, userID, limit, offset int) ([]model.AttemptResult, int, error)
	ListAnswers(ctx context.Context, resultID int) ([]model.GradedAnswer, error)
}

// DraftStore is the durable copy of autosaved answers.
type DraftStore interface {
	ListByUserTest(ctx context.Context, userID, testID int) (map[int]string, error)
	DeleteByUserTest(ctx context.Context, userID, testID int) error
}

// Cache is the hot state shared by every API process.
type Cache interface {
	GetItems(ctx context.Context, testID int) ([]model.DisplayItem, error)
	SetItems(ctx context.Context, testID int, items []model.DisplayItem, ttl time.Duration) error
	GetAnswerKey(ctx context.Context, testID int) ([]model.AnswerKeyEntry, error)
	SetAnswerKey(ctx context.Context, testID int, key []model.AnswerKeyEntry, ttl time.Duration) error
	InvalidateTest(ctx context.Context, testID int) error

	SaveDraft(ctx context.Context, d model.DraftAnswer) error
	LoadDraft(ctx context.Context, userID, testID int) (map[int]string, error)
	ClearDraft(ctx context.Context, userID, testID int) error

	PublishMonitor(ctx context.Context, ev model.MonitorEvent) error
}
