package model

import "time"

// AttemptMode selects how an attempt is paced.
type AttemptMode string

const (
	AttemptModePractice   AttemptMode = "PRACTICE"
	AttemptModeSimulation AttemptMode = "SIMULATION"
)

// Valid reports whether m is a known mode.
func (m AttemptMode) Valid() bool {
	return m == AttemptModePractice || m == AttemptModeSimulation
}

// SubmissionAnswer is one answer in a submission. A nil Answer means the
// question was skipped, which is graded differently from a wrong answer.
type SubmissionAnswer struct {
	QuestionID int     `json:"question_id"`
	Answer     *string `json:"answer"`
}

// SubmissionPayload is handed to the submission service when an attempt ends.
type SubmissionPayload struct {
	UserID                int                `json:"user_id"`
	Email                 string             `json:"email"`
	TestID                int                `json:"test_id"`
	Mode                  AttemptMode        `json:"mode"`
	CompletionTimeSeconds int                `json:"completion_time_seconds"`
	Answers               []SubmissionAnswer `json:"answers"`
}

// AttemptResult is the scored outcome of a submission.
type AttemptResult struct {
	ID                    int         `json:"id"`
	TestID                int         `json:"test_id"`
	UserID                int         `json:"user_id"`
	Email                 string      `json:"email"`
	Mode                  AttemptMode `json:"mode"`
	CompletionTimeSeconds int         `json:"completion_time_seconds"`
	ListeningCorrect      int         `json:"listening_correct"`
	ReadingCorrect        int         `json:"reading_correct"`
	Skipped               int         `json:"skipped"`
	ListeningScore        int         `json:"listening_score"`
	ReadingScore          int         `json:"reading_score"`
	TotalScore            int         `json:"total_score"`
	SubmittedAt           time.Time   `json:"submitted_at"`
}

// GradedAnswer is a persisted per-question outcome.
type GradedAnswer struct {
	QuestionID int     `json:"question_id"`
	Answer     *string `json:"answer"`
	IsCorrect  bool    `json:"is_correct"`
}

// StartAttemptRequest is the payload for starting an attempt.
type StartAttemptRequest struct {
	TestID int         `json:"test_id" binding:"required,min=1"`
	Mode   AttemptMode `json:"mode" binding:"required,oneof=PRACTICE SIMULATION"`
}

// Learner identifies who is taking an attempt.
type Learner struct {
	UserID int
	Email  string
}
