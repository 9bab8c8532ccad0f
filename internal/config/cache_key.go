package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// TestItemsKey returns the cache key for a test's display items
func (r *CacheKeyStruct) TestItemsKey(testID int) string {
	return fmt.Sprintf("test:%d:items", testID)
}

// TestAnswerKey returns the cache key for a test's answer key hash
func (r *CacheKeyStruct) TestAnswerKey(testID int) string {
	return fmt.Sprintf("test:%d:key", testID)
}

// TestPartsKey returns the cache key mapping question ids to part numbers
func (r *CacheKeyStruct) TestPartsKey(testID int) string {
	return fmt.Sprintf("test:%d:parts", testID)
}

// DraftAnswersKey returns the cache key for a learner's autosaved answers
func (r *CacheKeyStruct) DraftAnswersKey(userID, testID int) string {
	return fmt.Sprintf("user:%d:test:%d:draft", userID, testID)
}

// TestMonitorChannel returns the Redis PubSub channel name for a test monitor
func (r *CacheKeyStruct) TestMonitorChannel(testID int) string {
	return fmt.Sprintf("test:%d:monitor", testID)
}

// RevokedTokenKey returns the cache key marking a token id as revoked
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("token:%s:revoked", jti)
}

var CacheKey = NewCacheKeyStruct()
