package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is a candidate's recorded response to one question within a session.
type Answer struct {
	SessionToken     uuid.UUID `json:"-"`
	QuestionID       uuid.UUID `json:"question_id"`
	Response         string    `json:"response"`
	Visited          bool      `json:"visited"`
	Flagged          bool      `json:"flagged"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SaveAnswerRequest is the payload for recording a response.
type SaveAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Response   string `json:"response" binding:"max=8192"`
	Flagged    bool   `json:"flagged"`
	TimeSpent  int    `json:"time_spent_seconds" binding:"min=0"`
}
