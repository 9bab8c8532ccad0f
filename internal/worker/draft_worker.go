package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/config"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/model"
)

// errMalformed marks a queue entry that can never be persisted.
var errMalformed = errors.New("malformed draft payload")

// DraftWriter stores one autosaved answer. It reports false when the draft
// was superseded by a submission or a newer draft.
type DraftWriter interface {
	Upsert(ctx context.Context, d model.DraftAnswer) (bool, error)
}

// DraftWorker consumes persist_draft_answers_queue and UPSERTs answers to PostgreSQL.
type DraftWorker struct {
	drafts     DraftWriter
	rdb        *redis.Client
	queue      string
	retryDelay time.Duration
	log        zerolog.Logger
}

// NewDraftWorker creates a new DraftWorker.
func NewDraftWorker(drafts DraftWriter, rdb *redis.Client, log zerolog.Logger) *DraftWorker {
	return &DraftWorker{
		drafts:     drafts,
		rdb:        rdb,
		queue:      config.WorkerKey.PersistDraftAnswersQueue,
		retryDelay: 5 * time.Second,
		log:        logger.Component(log, "draft_worker"),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *DraftWorker) Start(ctx context.Context) {
	w.log.Info().Str("queue", w.queue).Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *DraftWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or the 1s timeout passes.
	result, err := w.rdb.BLPop(ctx, time.Second, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	err = w.handle(ctx, result[1])
	switch {
	case err == nil:
	case errors.Is(err, errMalformed):
		w.log.Error().Err(err).Str("payload", result[1]).Msg("Dropping malformed draft")
	default:
		w.log.Error().Err(err).Dur("retry_in", w.retryDelay).Msg("Persist error, requeueing")
		w.rdb.RPush(context.Background(), w.queue, result[1])
		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

// handle decodes one queue entry and writes it.
func (w *DraftWorker) handle(ctx context.Context, raw string) error {
	var d model.DraftAnswer
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if d.UserID <= 0 || d.TestID <= 0 || d.OrderNumber <= 0 || d.SavedAt <= 0 {
		return fmt.Errorf("%w: missing fields", errMalformed)
	}
	stored, err := w.drafts.Upsert(ctx, d)
	if err != nil {
		return fmt.Errorf("upsert draft user=%d test=%d order=%d: %w", d.UserID, d.TestID, d.OrderNumber, err)
	}
	if !stored {
		w.log.Debug().
			Int("user_id", d.UserID).
			Int("test_id", d.TestID).
			Int("order", d.OrderNumber).
			Msg("Skipped stale draft")
	}
	return nil
}

// drain persists whatever is left in the queue before shutdown.
func (w *DraftWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			break
		}

		if err := w.handle(ctx, raw); err != nil {
			if errors.Is(err, errMalformed) {
				w.log.Error().Err(err).Msg("Drain dropped malformed draft")
				continue
			}
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, w.queue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining drafts")
	}
}
