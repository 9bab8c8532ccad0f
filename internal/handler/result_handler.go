package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/response"
	"github.com/stemsi/toeic-session/internal/service"
	"github.com/stemsi/toeic-session/internal/validator"
)

// ResultHandler serves a learner's stored results.
type ResultHandler struct {
	results *service.ResultService
	log     zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(results *service.ResultService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		results: results,
		log:     logger.Component(log, "result_handler"),
	}
}

type listResultsQuery struct {
	Page    int `form:"page" binding:"min=1"`
	PerPage int `form:"per_page" binding:"min=1,max=100"`
}

// ListResults godoc
// GET /api/v1/results?page=1&per_page=20
func (h *ResultHandler) ListResults(c *gin.Context) {
	learner, ok := learnerOrFail(c)
	if !ok {
		return
	}

	q := listResultsQuery{Page: 1, PerPage: 20}
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	page, perPage := q.Page, q.PerPage

	results, total, err := h.results.List(c.Request.Context(), learner, page, perPage)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", learner.UserID).Msg("Failed to list results")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, response.NewPagination(page, perPage, total))
}

// GetResult godoc
// GET /api/v1/results/:id
func (h *ResultHandler) GetResult(c *gin.Context) {
	learner, ok := learnerOrFail(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res, err := h.results.Get(c.Request.Context(), id, learner)
	if err != nil {
		status, code := classify(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int("result_id", id).Msg("Failed to get result")
		}
		response.Fail(c, status, code)
		return
	}
	response.Success(c, http.StatusOK, res)
}
