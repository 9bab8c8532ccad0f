package engine

import "github.com/stemsi/toeic-session/internal/model"

// EventType names an engine notification.
type EventType string

const (
	EventTick          EventType = "tick"
	EventItemChanged   EventType = "item_changed"
	EventPartChanged   EventType = "part_changed"
	EventConfirmSubmit EventType = "confirm_submit"
	EventSubmitted     EventType = "submitted"
	EventExpired       EventType = "expired"
	EventWarning       EventType = "warning"
	EventError         EventType = "error"
	EventPlayMedia     EventType = "play_media"
)

// Warning codes carried by EventWarning.
const (
	WarningListeningLocked  = "listening_locked"
	WarningMediaUnavailable = "media_unavailable"
)

// Event is a notification from a session to whoever renders it.
type Event struct {
	Type EventType `json:"event"`
	Data any       `json:"data,omitempty"`
}

// Notifier receives session events. Notify must not block for long; it is
// called from the countdown and media goroutines.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f.
func (f NotifierFunc) Notify(e Event) { f(e) }

type TickData struct {
	RemainingSeconds int  `json:"remaining_seconds"`
	Critical         bool `json:"critical"`
}

type ItemChangedData struct {
	Index   int                `json:"index"`
	Section Section            `json:"section"`
	Item    *model.DisplayItem `json:"item,omitempty"`
}

type PartChangedData struct {
	Part  int           `json:"part"`
	Items []IndexedItem `json:"items"`
}

type ConfirmSubmitData struct {
	Message    string `json:"message"`
	Unanswered int    `json:"unanswered"`
	Marked     int    `json:"marked"`
}

type SubmittedData struct {
	ResultID int `json:"result_id"`
	TestID   int `json:"test_id"`
}

type WarningData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorData struct {
	Message string `json:"message"`
}
