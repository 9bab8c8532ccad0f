package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelectAnswer  Action = "select_answer"
	ActionToggleMark    Action = "toggle_mark"
	ActionSelectPart    Action = "select_part"
	ActionNext          Action = "next"
	ActionPrevious      Action = "previous"
	ActionJump          Action = "jump"
	ActionMediaPosition Action = "media_position"
	ActionMediaError    Action = "media_error"
	ActionRequestSubmit Action = "request_submit"
	ActionConfirmSubmit Action = "confirm_submit"
	ActionPing          Action = "ping"
)

// RequestEnvelope is read first; Data is decoded once the action is known.
type RequestEnvelope struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// SelectAnswerRequest records an answer for a question.
type SelectAnswerRequest struct {
	Order  int    `json:"order"`
	Answer string `json:"answer"`
}

// OrderRequest carries a question order-number (toggle_mark, jump).
type OrderRequest struct {
	Order int `json:"order"`
}

// SelectPartRequest switches the visible part of a practice attempt.
type SelectPartRequest struct {
	Part int `json:"part"`
}

// MediaPositionRequest reports the audio playback position in seconds.
type MediaPositionRequest struct {
	Position float64 `json:"position"`
}

// MediaErrorRequest reports that the audio could not be played.
type MediaErrorRequest struct {
	Reason string `json:"reason"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

// Events produced by the stream itself. Session events (tick, item_changed,
// part_changed, confirm_submit, submitted, expired, warning, error,
// play_media) are forwarded under their own names.
const (
	EventState       Event = "state"
	EventError       Event = "error"
	EventPong        Event = "pong"
	EventAnswerSaved Event = "answer_saved"
	EventMarked      Event = "marked"
	EventNavigated   Event = "navigated"
)

// Message is every server → client frame.
type Message struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type AnswerSavedData struct {
	Order   int    `json:"order"`
	Answer  string `json:"answer"`
	Changed bool   `json:"changed"`
}

type MarkedData struct {
	Order  int  `json:"order"`
	Marked bool `json:"marked"`
}
