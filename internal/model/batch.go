package model

import (
	"time"

	"github.com/google/uuid"
)

// BatchStatus enumerates the lifecycle of an admission batch.
type BatchStatus string

const (
	BatchStatusScheduled BatchStatus = "SCHEDULED"
	BatchStatusActive    BatchStatus = "ACTIVE"
	BatchStatusCompleted BatchStatus = "COMPLETED"
	BatchStatusLocked    BatchStatus = "LOCKED"
)

// ExamBatch is a capacity-bounded admission window for one exam. Numbers are
// contiguous starting at 1. At most one batch per exam is ACTIVE at a time.
type ExamBatch struct {
	ExamID    uuid.UUID   `json:"exam_id"`
	Number    int         `json:"number"`
	Capacity  int         `json:"capacity"`
	Size      int         `json:"size"`     // candidates assigned to this batch
	Admitted  int         `json:"admitted"` // live sessions currently holding a slot
	Status    BatchStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// BatchAssignment maps a candidate to their batch for an exam.
type BatchAssignment struct {
	ExamID      uuid.UUID `json:"exam_id"`
	CandidateID int       `json:"candidate_id"`
	BatchNumber int       `json:"batch_number"`
}

// GenerateBatchesRequest is the admin payload for partitioning candidates.
type GenerateBatchesRequest struct {
	CandidateIDs []int `json:"candidate_ids" binding:"required,min=1"`
	MaxCapacity  int   `json:"max_capacity" binding:"required"`
}
