package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/toeic-session/internal/model"
)

// ErrResultNotFound is returned for a missing result or one owned by someone else.
var ErrResultNotFound = errors.New("result not found")

// ResultDetail is a stored result with its graded answers.
type ResultDetail struct {
	model.AttemptResult
	Answers []model.GradedAnswer `json:"answers"`
}

// ResultService reads stored attempt results.
type ResultService struct {
	results ResultStore
}

// NewResultService creates a new ResultService.
func NewResultService(results ResultStore) *ResultService {
	return &ResultService{results: results}
}

// Get returns a result of the learner with every graded answer.
func (s *ResultService) Get(ctx context.Context, id int, learner model.Learner) (*ResultDetail, error) {
	res, err := s.results.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	if res.UserID != learner.UserID {
		return nil, ErrResultNotFound
	}

	answers, err := s.results.ListAnswers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	if answers == nil {
		answers = []model.GradedAnswer{}
	}
	return &ResultDetail{AttemptResult: *res, Answers: answers}, nil
}

// List returns one page of the learner's results, newest first, and the total count.
func (s *ResultService) List(ctx context.Context, learner model.Learner, page, perPage int) ([]model.AttemptResult, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	results, total, err := s.results.ListByUser(ctx, learner.UserID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	if results == nil {
		results = []model.AttemptResult{}
	}
	return results, total, nil
}
