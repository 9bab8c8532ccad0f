package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/toeic-session/internal/config"
	"github.com/stemsi/toeic-session/internal/engine"
	"github.com/stemsi/toeic-session/internal/model"
)

// RedisCache implements Cache on Redis.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache creates a new RedisCache.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// GetItems returns the cached display items of a test.
func (c *RedisCache) GetItems(ctx context.Context, testID int) ([]model.DisplayItem, error) {
	data, err := c.rdb.Get(ctx, config.CacheKey.TestItemsKey(testID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get items: %w", err)
	}

	var items []model.DisplayItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	return items, nil
}

// SetItems caches the display items of a test.
func (c *RedisCache) SetItems(ctx context.Context, testID int, items []model.DisplayItem, ttl time.Duration) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	return c.rdb.Set(ctx, config.CacheKey.TestItemsKey(testID), data, ttl).Err()
}

// GetAnswerKey returns the cached answer key. The key hash and the part hash
// are read in one round trip.
func (c *RedisCache) GetAnswerKey(ctx context.Context, testID int) ([]model.AnswerKeyEntry, error) {
	pipe := c.rdb.Pipeline()
	keyCmd := pipe.HGetAll(ctx, config.CacheKey.TestAnswerKey(testID))
	partsCmd := pipe.HGetAll(ctx, config.CacheKey.TestPartsKey(testID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}

	return decodeAnswerKey(keyCmd.Val(), partsCmd.Val())
}

// decodeAnswerKey joins the answer hash with the part hash. An entry without
// a valid part reads as a miss so the key is reloaded from the database.
func decodeAnswerKey(answers, parts map[string]string) ([]model.AnswerKeyEntry, error) {
	if len(answers) == 0 {
		return nil, ErrCacheMiss
	}

	key := make([]model.AnswerKeyEntry, 0, len(answers))
	for qid, correct := range answers {
		id, err := strconv.Atoi(qid)
		if err != nil {
			return nil, fmt.Errorf("answer key field %q: %w", qid, err)
		}
		part, err := strconv.Atoi(parts[qid])
		if err != nil {
			return nil, fmt.Errorf("%w: no part for question %d", ErrCacheMiss, id)
		}
		if _, ok := engine.RangeForPart(part); !ok {
			return nil, fmt.Errorf("%w: part %d for question %d", ErrCacheMiss, part, id)
		}
		key = append(key, model.AnswerKeyEntry{QuestionID: id, PartNumber: part, CorrectAnswer: correct})
	}
	return key, nil
}

// SetAnswerKey replaces the cached answer key atomically.
func (c *RedisCache) SetAnswerKey(ctx context.Context, testID int, key []model.AnswerKeyEntry, ttl time.Duration) error {
	answers := make(map[string]interface{}, len(key))
	parts := make(map[string]interface{}, len(key))
	for _, e := range key {
		id := strconv.Itoa(e.QuestionID)
		answers[id] = e.CorrectAnswer
		parts[id] = e.PartNumber
	}

	keyName := config.CacheKey.TestAnswerKey(testID)
	partsName := config.CacheKey.TestPartsKey(testID)

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, keyName, partsName)
	if len(key) > 0 {
		pipe.HSet(ctx, keyName, answers)
		pipe.HSet(ctx, partsName, parts)
		if ttl > 0 {
			pipe.Expire(ctx, keyName, ttl)
			pipe.Expire(ctx, partsName, ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache answer key: %w", err)
	}
	return nil
}

// InvalidateTest drops every cached entry of a test.
func (c *RedisCache) InvalidateTest(ctx context.Context, testID int) error {
	return c.rdb.Del(ctx,
		config.CacheKey.TestItemsKey(testID),
		config.CacheKey.TestAnswerKey(testID),
		config.CacheKey.TestPartsKey(testID),
	).Err()
}

// SaveDraft writes the answer into the learner's draft hash and queues it for
// the draft worker in one transaction.
func (c *RedisCache) SaveDraft(ctx context.Context, d model.DraftAnswer) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, config.CacheKey.DraftAnswersKey(d.UserID, d.TestID), strconv.Itoa(d.OrderNumber), d.Answer)
	pipe.RPush(ctx, config.WorkerKey.PersistDraftAnswersQueue, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LoadDraft returns the learner's autosaved answers keyed by order-number.
func (c *RedisCache) LoadDraft(ctx context.Context, userID, testID int) (map[int]string, error) {
	raw, err := c.rdb.HGetAll(ctx, config.CacheKey.DraftAnswersKey(userID, testID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}

	out := make(map[int]string, len(raw))
	for k, v := range raw {
		order, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[order] = v
	}
	return out, nil
}

// ClearDraft removes the learner's draft hash.
func (c *RedisCache) ClearDraft(ctx context.Context, userID, testID int) error {
	return c.rdb.Del(ctx, config.CacheKey.DraftAnswersKey(userID, testID)).Err()
}

// PublishMonitor publishes a lifecycle event on the test's monitor channel.
func (c *RedisCache) PublishMonitor(ctx context.Context, ev model.MonitorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal monitor event: %w", err)
	}
	return c.rdb.Publish(ctx, config.CacheKey.TestMonitorChannel(ev.TestID), payload).Err()
}
