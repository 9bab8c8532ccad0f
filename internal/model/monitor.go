package model

// MonitorEventType names an attempt lifecycle event published to admins.
type MonitorEventType string

const (
	MonitorAttemptStarted   MonitorEventType = "attempt_started"
	MonitorAttemptSubmitted MonitorEventType = "attempt_submitted"
	MonitorAttemptExpired   MonitorEventType = "attempt_expired"
	MonitorAttemptAbandoned MonitorEventType = "attempt_abandoned"
)

// MonitorEvent is published on a test's monitor channel.
type MonitorEvent struct {
	Type       MonitorEventType `json:"type"`
	TestID     int              `json:"test_id"`
	AttemptID  string           `json:"attempt_id,omitempty"`
	UserID     int              `json:"user_id"`
	Email      string           `json:"email,omitempty"`
	Mode       AttemptMode      `json:"mode,omitempty"`
	ResultID   *int             `json:"result_id,omitempty"`
	TotalScore *int             `json:"total_score,omitempty"`
	Timestamp  int64            `json:"timestamp"`
}

// DraftAnswer is an autosaved answer waiting to be persisted. SavedAt is in
// Unix milliseconds.
type DraftAnswer struct {
	UserID      int    `json:"user_id"`
	TestID      int    `json:"test_id"`
	OrderNumber int    `json:"order_number"`
	Answer      string `json:"answer"`
	SavedAt     int64  `json:"saved_at"`
}

// TestStats aggregates the stored results of a test.
type TestStats struct {
	Submitted    int     `json:"submitted"`
	AverageScore float64 `json:"average_score"`
	BestScore    int     `json:"best_score"`
}
