package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/engine"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/model"
)

// ErrUnknownQuestion is returned when a submission names a question outside
// the test's answer key.
var ErrUnknownQuestion = errors.New("submission references an unknown question")

// AnswerKeySource provides grading data for a test.
type AnswerKeySource interface {
	AnswerKey(ctx context.Context, testID int) ([]model.AnswerKeyEntry, error)
}

// SubmissionService grades finished attempts and stores the result.
type SubmissionService struct {
	keys      AnswerKeySource
	results   ResultStore
	drafts    DraftStore
	cache     Cache
	converter *ScoreConverter
	now       func() time.Time
	log       zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(keys AnswerKeySource, results ResultStore, drafts DraftStore, cache Cache, log zerolog.Logger) *SubmissionService {
	return &SubmissionService{
		keys:      keys,
		results:   results,
		drafts:    drafts,
		cache:     cache,
		converter: NewScoreConverter(),
		now:       time.Now,
		log:       logger.Component(log, "submission_service"),
	}
}

// Submit grades payload against the test's answer key, converts both sections
// to the scaled score and persists the result with every graded answer.
func (s *SubmissionService) Submit(ctx context.Context, payload model.SubmissionPayload) (*model.AttemptResult, error) {
	key, err := s.keys.AnswerKey(ctx, payload.TestID)
	if err != nil {
		return nil, fmt.Errorf("load answer key: %w", err)
	}
	if len(key) == 0 {
		return nil, ErrNoQuestions
	}

	res, graded, err := s.grade(payload, key)
	if err != nil {
		return nil, err
	}

	if err := s.results.Create(ctx, res, graded); err != nil {
		return nil, fmt.Errorf("save result: %w", err)
	}

	s.log.Info().
		Int("result_id", res.ID).
		Int("user_id", res.UserID).
		Int("test_id", res.TestID).
		Int("total_score", res.TotalScore).
		Msg("Submission graded")

	s.afterCommit(ctx, res)
	return res, nil
}

// grade scores a payload without persisting it.
func (s *SubmissionService) grade(payload model.SubmissionPayload, key []model.AnswerKeyEntry) (*model.AttemptResult, []model.GradedAnswer, error) {
	byID := make(map[int]model.AnswerKeyEntry, len(key))
	for _, k := range key {
		byID[k.QuestionID] = k
	}

	given := make(map[int]*string, len(payload.Answers))
	for _, a := range payload.Answers {
		if _, ok := byID[a.QuestionID]; !ok {
			return nil, nil, fmt.Errorf("%w: %d", ErrUnknownQuestion, a.QuestionID)
		}
		given[a.QuestionID] = a.Answer
	}

	var (
		listeningTotal, readingTotal     int
		listeningCorrect, readingCorrect int
		skipped                          int
	)
	graded := make([]model.GradedAnswer, 0, len(key))
	for _, k := range key {
		answer := given[k.QuestionID]
		correct := answer != nil && *answer == k.CorrectAnswer
		if answer == nil {
			skipped++
		}

		if engine.IsListeningPart(k.PartNumber) {
			listeningTotal++
			if correct {
				listeningCorrect++
			}
		} else {
			readingTotal++
			if correct {
				readingCorrect++
			}
		}
		graded = append(graded, model.GradedAnswer{QuestionID: k.QuestionID, Answer: answer, IsCorrect: correct})
	}

	listeningScore, err := s.sectionScore(engine.SectionListening, listeningCorrect, listeningTotal)
	if err != nil {
		return nil, nil, err
	}
	readingScore, err := s.sectionScore(engine.SectionReading, readingCorrect, readingTotal)
	if err != nil {
		return nil, nil, err
	}

	res := &model.AttemptResult{
		TestID:                payload.TestID,
		UserID:                payload.UserID,
		Email:                 payload.Email,
		Mode:                  payload.Mode,
		CompletionTimeSeconds: payload.CompletionTimeSeconds,
		ListeningCorrect:      listeningCorrect,
		ReadingCorrect:        readingCorrect,
		Skipped:               skipped,
		ListeningScore:        listeningScore,
		ReadingScore:          readingScore,
		TotalScore:            listeningScore + readingScore,
		SubmittedAt:           s.now(),
	}
	return res, graded, nil
}

// sectionScore converts a section with no questions to the minimum score.
func (s *SubmissionService) sectionScore(section engine.Section, correct, total int) (int, error) {
	if total == 0 {
		return MinSectionScore, nil
	}
	return s.converter.Convert(section, NormalizeRaw(correct, total))
}

// afterCommit clears the autosaved answers and notifies monitors. Failures are
// logged; the result is already stored.
func (s *SubmissionService) afterCommit(ctx context.Context, res *model.AttemptResult) {
	if err := s.cache.ClearDraft(ctx, res.UserID, res.TestID); err != nil {
		s.log.Warn().Err(err).Int("user_id", res.UserID).Msg("Failed to clear draft hash")
	}
	if s.drafts != nil {
		if err := s.drafts.DeleteByUserTest(ctx, res.UserID, res.TestID); err != nil {
			s.log.Warn().Err(err).Int("user_id", res.UserID).Msg("Failed to delete draft answers")
		}
	}

	id, total := res.ID, res.TotalScore
	ev := model.MonitorEvent{
		Type:       model.MonitorAttemptSubmitted,
		TestID:     res.TestID,
		UserID:     res.UserID,
		Email:      res.Email,
		Mode:       res.Mode,
		ResultID:   &id,
		TotalScore: &total,
		Timestamp:  res.SubmittedAt.Unix(),
	}
	if err := s.cache.PublishMonitor(ctx, ev); err != nil {
		s.log.Warn().Err(err).Int("test_id", res.TestID).Msg("Failed to publish submission")
	}
}
