package service

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/model"
)

// MonitorStore provides aggregates for the live test monitor.
type MonitorStore interface {
	TestStats(ctx context.Context, testID int) (model.TestStats, error)
	DraftCounts(ctx context.Context, testID int) (map[int]int64, error)
}

// AttemptProgress is the live state of one attempt on this process.
type AttemptProgress struct {
	AttemptID        string            `json:"attempt_id"`
	UserID           int               `json:"user_id"`
	Email            string            `json:"email"`
	Mode             model.AttemptMode `json:"mode"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Critical         bool              `json:"critical"`
	Answered         int               `json:"answered"`
	Marked           int               `json:"marked"`
	TotalQuestions   int               `json:"total_questions"`
	Submitted        bool              `json:"submitted"`
}

// MonitorSnapshot is the admin view of a test in progress.
type MonitorSnapshot struct {
	Stats        model.TestStats   `json:"stats"`
	Attempts     []AttemptProgress `json:"attempts"`
	SavedAnswers map[int]int64     `json:"saved_answers"`
	LiveAttempts int               `json:"live_attempts"`
}

// MonitorService builds live monitoring views of a test.
type MonitorService struct {
	store    MonitorStore
	attempts *AttemptService
	log      zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(store MonitorStore, attempts *AttemptService, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		store:    store,
		attempts: attempts,
		log:      logger.Component(log, "monitor_service"),
	}
}

// Snapshot gathers stored results, persisted draft counts and local attempt
// progress. The two queries run concurrently; stats are required, draft
// counts are best-effort.
func (s *MonitorService) Snapshot(ctx context.Context, testID int) (*MonitorSnapshot, error) {
	var (
		stats    model.TestStats
		drafts   map[int]int64
		statsErr error
		draftErr error
		wg       sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		stats, statsErr = s.store.TestStats(ctx, testID)
	}()
	go func() {
		defer wg.Done()
		drafts, draftErr = s.store.DraftCounts(ctx, testID)
	}()
	wg.Wait()

	if statsErr != nil {
		return nil, statsErr
	}
	if draftErr != nil {
		s.log.Warn().Err(draftErr).Int("test_id", testID).Msg("Failed to fetch draft counts")
		drafts = map[int]int64{}
	}

	progress := s.attempts.Progress(testID)
	live := 0
	for _, p := range progress {
		if !p.Submitted {
			live++
		}
	}

	return &MonitorSnapshot{
		Stats:        stats,
		Attempts:     progress,
		SavedAnswers: drafts,
		LiveAttempts: live,
	}, nil
}

// Progress lists the attempts on testID held by this process, oldest first.
func (s *AttemptService) Progress(testID int) []AttemptProgress {
	s.mu.Lock()
	attempts := make([]*liveAttempt, 0)
	for _, a := range s.attempts {
		if a.test.ID == testID {
			attempts = append(attempts, a)
		}
	}
	s.mu.Unlock()

	sort.Slice(attempts, func(i, j int) bool { return attempts[i].createdAt.Before(attempts[j].createdAt) })

	out := make([]AttemptProgress, 0, len(attempts))
	for _, a := range attempts {
		st := a.session.State()
		p := AttemptProgress{
			AttemptID:        a.id,
			UserID:           a.learner.UserID,
			Email:            a.learner.Email,
			Mode:             st.Mode,
			RemainingSeconds: st.Countdown.RemainingSeconds,
			Critical:         st.Countdown.Critical,
			Submitted:        st.Submitted,
		}
		for _, part := range st.Sheet {
			p.Answered += part.Answered
			p.Marked += part.Marked
			p.TotalQuestions += len(part.Entries)
		}
		out = append(out, p)
	}
	return out
}
