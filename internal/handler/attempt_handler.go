package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/middleware"
	"github.com/stemsi/toeic-session/internal/model"
	"github.com/stemsi/toeic-session/internal/response"
	"github.com/stemsi/toeic-session/internal/service"
	"github.com/stemsi/toeic-session/internal/validator"
)

// AttemptHandler drives live attempts over REST.
type AttemptHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts *service.AttemptService, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts: attempts,
		log:      logger.Component(log, "attempt_handler"),
	}
}

func (h *AttemptHandler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Attempt request failed")
	}
	response.Fail(c, status, code)
}

func learnerOrFail(c *gin.Context) (model.Learner, bool) {
	learner, ok := middleware.GetLearner(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
	}
	return learner, ok
}

// StartAttempt godoc
// POST /api/v1/attempts
// Starts an attempt, or resumes the learner's unfinished one on the same test.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	learner, ok := learnerOrFail(c)
	if !ok {
		return
	}

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.attempts.Start(c.Request.Context(), learner, req.TestID, req.Mode)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, view)
}

// GetAttempt godoc
// GET /api/v1/attempts/:id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	learner, ok := learnerOrFail(c)
	if !ok {
		return
	}

	view, err := h.attempts.Get(c.Param("id"), learner)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// GetItems godoc
// GET /api/v1/attempts/:id/items
func (h *AttemptHandler) GetItems(c *gin.Context) {
	learner, ok := learnerOrFail(c)
	if !ok {
		return
	}

	items, err := h.attempts.Items(c.Param("id"), learner)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"display_items": items})
}

// GetSheet godoc
// GET /api/v1/attempts/:id/sheet?part=N
// Without part, every TOEIC part is returned.
func (h *AttemptHandler) GetSheet(c *gin.Context) {
	learner, ok := learnerOrFail(c)
	if !ok {
		return
	}

	part := 0
	if raw := c.Query("part"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPart)
			return
		}
		part = p
	}

	sheet, err := h.attempts.Sheet(c.Param("id"), learner, part)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"parts": sheet})
}

// SubmitAttempt godoc
// POST /api/v1/attempts/:id/submit
// Confirmed submission. Repeating it after success returns the stored result.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	learner, ok := learnerOrFail(c)
	if !ok {
		return
	}

	res, err := h.attempts.Submit(c.Request.Context(), c.Param("id"), learner)
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("attempt_id", c.Param("id")).Msg("Submission failed")
			status, code = http.StatusBadGateway, response.ErrSubmissionFailed
		}
		response.Fail(c, status, code)
		return
	}
	response.Success(c, http.StatusOK, res)
}

// AbandonAttempt godoc
// DELETE /api/v1/attempts/:id
// Stops the attempt without submitting it.
func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	learner, ok := learnerOrFail(c)
	if !ok {
		return
	}

	if err := h.attempts.Abandon(c.Request.Context(), c.Param("id"), learner); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Attempt abandoned"})
}
