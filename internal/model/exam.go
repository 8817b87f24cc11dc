package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusRunning   ExamStatus = "RUNNING"
	ExamStatusCompleted ExamStatus = "COMPLETED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// Exam represents an exam entity as seen by the session engine. Question
// authoring lives in an external system; this service only needs the timing
// and entry metadata.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	EntryToken      string     `json:"entry_token,omitempty"`
	QuestionCount   int        `json:"question_count"`
	Status          ExamStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Duration returns the configured exam duration.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// ExamPayload is the Redis-cached payload sent to candidates (no correct answers).
type ExamPayload struct {
	ExamID    uuid.UUID              `json:"exam_id"`
	Title     string                 `json:"title"`
	Duration  int                    `json:"duration_minutes"`
	Questions []QuestionForCandidate `json:"questions"`
}

// QuestionForCandidate is a question without the correct answer.
type QuestionForCandidate struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
	OrderNum     int             `json:"order_num"`
}
