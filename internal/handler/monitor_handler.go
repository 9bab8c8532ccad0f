package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/config"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/response"
	"github.com/stemsi/toeic-session/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second
)

// MonitorHandler streams the live state of a test to admins.
type MonitorHandler struct {
	rdb     *redis.Client
	tests   *service.TestService
	monitor *service.MonitorService
	log     zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, tests *service.TestService, monitor *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:     rdb,
		tests:   tests,
		monitor: monitor,
		log:     logger.Component(log, "monitor_handler"),
	}
}

// MonitorTestSSE godoc
// GET /api/v1/admin/tests/:id/monitor
// Sends a snapshot, forwards attempt lifecycle events from Redis and refreshes
// progress periodically.
func (h *MonitorHandler) MonitorTestSSE(c *gin.Context) {
	testID, ok := parseID(c, "id")
	if !ok {
		return
	}

	test, err := h.tests.GetTest(c.Request.Context(), testID)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	h.sendSnapshot(c, reqCtx, "snapshot", testID, gin.H{
		"id":               test.ID,
		"title":            test.Title,
		"duration_minutes": test.DurationMinutes,
		"question_count":   test.QuestionCount,
	})

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.TestMonitorChannel(testID))
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refreshes until something happened on the test.
	active := false

	h.log.Info().Int("test_id", testID).Msg("Admin attached to test monitor")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Int("test_id", testID).Msg("Admin detached from test monitor")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Events are already JSON; forward them untouched.
			writeSSEData(c, []byte(msg.Payload))
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			h.sendSnapshot(c, reqCtx, "refresh", testID, nil)

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, parent context.Context, kind string, testID int, test gin.H) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	snap, err := h.monitor.Snapshot(ctx, testID)
	if err != nil {
		h.log.Warn().Err(err).Int("test_id", testID).Msg("Failed to build monitor snapshot")
		return
	}

	payload := gin.H{"type": kind, "data": snap}
	if test != nil {
		payload["test"] = test
	}
	c.SSEvent("message", payload)
	c.Writer.Flush()
}

func writeSSEData(c *gin.Context, data []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
