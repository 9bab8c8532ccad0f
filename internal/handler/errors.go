package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/toeic-session/internal/engine"
	"github.com/stemsi/toeic-session/internal/response"
	"github.com/stemsi/toeic-session/internal/service"
)

// errorMapping pairs a domain error with its HTTP status and API code.
type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

var domainErrors = []errorMapping{
	{service.ErrAttemptNotFound, http.StatusNotFound, response.ErrAttemptNotFound},
	{service.ErrNotAttemptOwner, http.StatusForbidden, response.ErrNotAttemptOwner},
	{service.ErrTestNotFound, http.StatusNotFound, response.ErrTestNotFound},
	{service.ErrResultNotFound, http.StatusNotFound, response.ErrResultNotFound},
	{service.ErrTooManyAttempts, http.StatusServiceUnavailable, response.ErrTooManyAttempts},
	{service.ErrInvalidMode, http.StatusBadRequest, response.ErrWrongMode},
	{service.ErrInvalidAnswer, http.StatusBadRequest, response.ErrInvalidPayload},
	{service.ErrNoQuestions, http.StatusUnprocessableEntity, response.ErrNoQuestions},
	{service.ErrUnknownQuestion, http.StatusBadRequest, response.ErrInvalidPayload},
	{engine.ErrSubmitInProgress, http.StatusConflict, response.ErrSubmitInProgress},
	{engine.ErrSubmitted, http.StatusConflict, response.ErrAttemptSubmitted},
	{engine.ErrClosed, http.StatusGone, response.ErrAttemptClosed},
	{engine.ErrJumpDuringListening, http.StatusConflict, response.ErrListeningLocked},
	{engine.ErrJumpOutOfRange, http.StatusBadRequest, response.ErrInvalidPayload},
	{engine.ErrNotSimulation, http.StatusConflict, response.ErrWrongMode},
	{engine.ErrNotPractice, http.StatusConflict, response.ErrWrongMode},
	{engine.ErrInvalidPart, http.StatusBadRequest, response.ErrInvalidPart},
	{engine.ErrUnknownQuestion, http.StatusNotFound, response.ErrNotFound},
	{engine.ErrNotStarted, http.StatusConflict, response.ErrTestContentNotReady},
}

// classify maps err to a status and code. Unknown errors are internal.
func classify(err error) (int, response.ErrCode) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}
