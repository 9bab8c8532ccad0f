package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/toeic-session/internal/engine"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/middleware"
	"github.com/stemsi/toeic-session/internal/model"
	"github.com/stemsi/toeic-session/internal/response"
	"github.com/stemsi/toeic-session/internal/service"
	ws "github.com/stemsi/toeic-session/internal/websocket"
)

const (
	outboxSize    = 16
	submitTimeout = 30 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live attempt to the learner's browser and applies the
// actions it sends back.
type WSHandler struct {
	attempts *service.AttemptService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attempts *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attempts: attempts,
		log:      logger.Component(log, "ws_handler"),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/attempts/:id/stream?token=...
// Sends the attempt state, then every session event; reads learner actions.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	learner, ok := middleware.GetLearner(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	attemptID := c.Param("id")

	view, err := h.attempts.Get(attemptID, learner)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}
	events, unsubscribe, err := h.attempts.Subscribe(attemptID, learner)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("user_id", learner.UserID).
		Str("attempt_id", attemptID).
		Logger()
	wsLog.Info().Msg("Learner connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := make(chan ws.Message, outboxSize)
	go func() {
		defer cancel()
		h.writeLoop(ctx, conn, events, out, wsLog)
	}()

	send := func(m ws.Message) {
		select {
		case out <- m:
		case <-ctx.Done():
		}
	}
	send(ws.Message{Event: ws.EventState, Data: view})

	for {
		var env ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		if reply, ok := h.dispatch(ctx, attemptID, learner, env, wsLog); ok {
			send(reply)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// writeLoop is the only writer of conn. It returns when the attempt's event
// stream ends or the connection is done.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan engine.Event, out <-chan ws.Message, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "attempt closed"),
					time.Now().Add(time.Second))
				conn.Close()
				return
			}
			if err := ws.WriteEvent(conn, ws.Event(e.Type), e.Data); err != nil {
				log.Debug().Err(err).Msg("Write failed")
				return
			}
		case m := <-out:
			if err := ws.WriteTyped(conn, m); err != nil {
				log.Debug().Err(err).Msg("Write failed")
				return
			}
		}
	}
}

// dispatch applies one learner action. Most outcomes arrive as session
// events; the returned message, if any, is the direct reply.
func (h *WSHandler) dispatch(ctx context.Context, id string, learner model.Learner, env ws.RequestEnvelope, log zerolog.Logger) (ws.Message, bool) {
	var err error

	switch env.Action {
	case ws.ActionPing:
		return ws.Message{Event: ws.EventPong}, true

	case ws.ActionSelectAnswer:
		var req ws.SelectAnswerRequest
		if err = ws.DecodeData(env, &req); err != nil {
			return errorMessage(response.ErrInvalidPayload, err.Error()), true
		}
		var changed bool
		if changed, err = h.attempts.SelectAnswer(ctx, id, learner, req.Order, req.Answer); err == nil {
			return ws.Message{Event: ws.EventAnswerSaved, Data: ws.AnswerSavedData{Order: req.Order, Answer: req.Answer, Changed: changed}}, true
		}

	case ws.ActionToggleMark:
		var req ws.OrderRequest
		if err = ws.DecodeData(env, &req); err != nil {
			return errorMessage(response.ErrInvalidPayload, err.Error()), true
		}
		var marked bool
		if marked, err = h.attempts.ToggleMark(id, learner, req.Order); err == nil {
			return ws.Message{Event: ws.EventMarked, Data: ws.MarkedData{Order: req.Order, Marked: marked}}, true
		}

	case ws.ActionSelectPart:
		var req ws.SelectPartRequest
		if err = ws.DecodeData(env, &req); err != nil {
			return errorMessage(response.ErrInvalidPayload, err.Error()), true
		}
		_, err = h.attempts.SelectPart(id, learner, req.Part)

	case ws.ActionNext, ws.ActionPrevious:
		var st engine.SequencerState
		if env.Action == ws.ActionNext {
			st, err = h.attempts.Next(id, learner)
		} else {
			st, err = h.attempts.Previous(id, learner)
		}
		if err == nil {
			return ws.Message{Event: ws.EventNavigated, Data: st}, true
		}

	case ws.ActionJump:
		var req ws.OrderRequest
		if err = ws.DecodeData(env, &req); err != nil {
			return errorMessage(response.ErrInvalidPayload, err.Error()), true
		}
		err = h.attempts.JumpTo(id, learner, req.Order)
		if errors.Is(err, engine.ErrJumpDuringListening) {
			// Already surfaced as a warning event.
			return ws.Message{}, false
		}

	case ws.ActionMediaPosition:
		var req ws.MediaPositionRequest
		if err = ws.DecodeData(env, &req); err != nil {
			return errorMessage(response.ErrInvalidPayload, err.Error()), true
		}
		err = h.attempts.ReportPosition(id, learner, req.Position)

	case ws.ActionMediaError:
		// The reason is optional; the failure is reported either way.
		var req ws.MediaErrorRequest
		if len(env.Data) > 0 {
			if derr := ws.DecodeData(env, &req); derr != nil {
				log.Debug().Err(derr).Msg("Ignoring malformed media_error payload")
			}
		}
		err = h.attempts.ReportMediaError(id, learner, req.Reason)

	case ws.ActionRequestSubmit:
		err = h.attempts.RequestSubmit(id, learner)

	case ws.ActionConfirmSubmit:
		submitCtx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		_, err = h.attempts.Submit(submitCtx, id, learner)
		cancel()
		if err != nil && !errors.Is(err, engine.ErrSubmitInProgress) {
			// The session already sent an error event for a failed submission.
			log.Warn().Err(err).Msg("Submit from stream failed")
			if status, _ := classify(err); status == http.StatusInternalServerError {
				return ws.Message{}, false
			}
		}

	default:
		log.Warn().Str("action", string(env.Action)).Msg("Unknown action")
		return errorMessage(response.ErrInvalidPayload, "unknown action: "+string(env.Action)), true
	}

	if err != nil {
		_, code := classify(err)
		return errorMessage(code, response.GetMessage(code)), true
	}
	return ws.Message{}, false
}

func errorMessage(code response.ErrCode, msg string) ws.Message {
	return ws.Message{Event: ws.EventError, Data: ws.ErrorData{Code: string(code), Message: msg}}
}
