package model

import "time"

// AuditEntry is one append-only record of a state-affecting event.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Actor      Actor     `json:"actor"`
	Action     string    `json:"action"`
	Target     string    `json:"target"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
