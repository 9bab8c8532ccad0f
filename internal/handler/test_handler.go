package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/response"
	"github.com/stemsi/toeic-session/internal/service"
)

// TestHandler serves test content.
type TestHandler struct {
	tests *service.TestService
	log   zerolog.Logger
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(tests *service.TestService, log zerolog.Logger) *TestHandler {
	return &TestHandler{
		tests: tests,
		log:   logger.Component(log, "test_handler"),
	}
}

func parseID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// ListTests godoc
// GET /api/v1/tests
func (h *TestHandler) ListTests(c *gin.Context) {
	tests, err := h.tests.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list tests")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// GetTest godoc
// GET /api/v1/tests/:id
func (h *TestHandler) GetTest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	test, err := h.tests.GetTest(c.Request.Context(), id)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}
	response.Success(c, http.StatusOK, test)
}

// GetItems godoc
// GET /api/v1/tests/:id/items
// Returns the learner-facing display items (no answer key).
func (h *TestHandler) GetItems(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	payload, err := h.tests.GetPayload(c.Request.Context(), id)
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int("test_id", id).Msg("Failed to load display items")
		}
		response.Fail(c, status, code)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// RefreshCache godoc
// POST /api/v1/admin/tests/:id/refresh-cache
// Reloads a test's items and answer key from the database into Redis.
func (h *TestHandler) RefreshCache(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.tests.WarmCache(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrTestNotFound) || errors.Is(err, service.ErrNoQuestions) {
			status, code := classify(err)
			response.Fail(c, status, code)
			return
		}
		h.log.Error().Err(err).Int("test_id", id).Msg("Failed to refresh cache")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Cache refreshed"})
}
