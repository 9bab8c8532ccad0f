package model

import "time"

// Test is a TOEIC test definition a learner can attempt.
type Test struct {
	ID              int       `json:"id"`
	Title           string    `json:"title"`
	DurationMinutes int       `json:"duration_minutes"`
	AudioURL        *string   `json:"audio_url,omitempty"`
	QuestionCount   int       `json:"question_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// TestPayload is the cached, learner-facing view of a test (no answer key).
type TestPayload struct {
	TestID       int           `json:"test_id"`
	Title        string        `json:"title"`
	Duration     int           `json:"duration_minutes"`
	AudioURL     *string       `json:"audio_url,omitempty"`
	DisplayItems []DisplayItem `json:"display_items"`
}

// AnswerKeyEntry is the grading data for one question.
type AnswerKeyEntry struct {
	QuestionID    int    `json:"question_id"`
	PartNumber    int    `json:"part_number"`
	CorrectAnswer string `json:"correct_answer"`
}
