package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. ACTIVE is the only
// non-terminal state; a session never re-enters it.
type SessionStatus string

const (
	SessionStatusActive              SessionStatus = "ACTIVE"
	SessionStatusSubmitted           SessionStatus = "SUBMITTED"
	SessionStatusForceSubmitted      SessionStatus = "FORCE_SUBMITTED"
	SessionStatusExpired             SessionStatus = "EXPIRED"
	SessionStatusViolationTerminated SessionStatus = "VIOLATION_TERMINATED"
)

// Terminal reports whether the status is one of the final states.
func (s SessionStatus) Terminal() bool {
	return s != SessionStatusActive
}

// Actor identifies who triggered a state-affecting event.
type Actor string

const (
	ActorCandidate Actor = "candidate"
	ActorSystem    Actor = "system"
	ActorAdmin     Actor = "admin"
)

// Binding captures the client identity of a session at admission time.
// Both fields are hashes; raw addresses and fingerprints are never stored.
type Binding struct {
	AddrHash        string `json:"addr_hash"`
	FingerprintHash string `json:"fingerprint_hash"`
}

// Matches reports whether two bindings refer to the same client. Empty
// fields on either side are ignored so a proxy-stripped header does not
// count as a mismatch on its own.
func (b Binding) Matches(other Binding) bool {
	if b.AddrHash != "" && other.AddrHash != "" && b.AddrHash != other.AddrHash {
		return false
	}
	if b.FingerprintHash != "" && other.FingerprintHash != "" && b.FingerprintHash != other.FingerprintHash {
		return false
	}
	return true
}

// ExamSession represents one candidate's single attempt at one exam.
// ServerEndTime is computed once at admission from the server clock and
// never from client input.
type ExamSession struct {
	Token           uuid.UUID     `json:"token"`
	ExamID          uuid.UUID     `json:"exam_id"`
	CandidateID     int           `json:"candidate_id"`
	BatchNumber     int           `json:"batch_number"`
	Binding         Binding       `json:"-"`
	StartedAt       time.Time     `json:"started_at"`
	ServerEndTime   time.Time     `json:"server_end_time"`
	LastActivityAt  time.Time     `json:"last_activity_at"`
	Status          SessionStatus `json:"status"`
	ViolationCount  int           `json:"violation_count"`
	AnsweredCount   int           `json:"answered_count"`
	FinalScore      *float64      `json:"final_score,omitempty"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
	TerminationNote string        `json:"termination_note,omitempty"`
}

// Remaining returns the time left on the session clock at the given instant,
// floored at zero.
func (s *ExamSession) Remaining(now time.Time) time.Duration {
	if remaining := s.ServerEndTime.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// JoinExamRequest is the payload for a candidate joining an exam.
type JoinExamRequest struct {
	EntryToken  string `json:"entry_token" binding:"required,min=4,max=20"`
	Fingerprint string `json:"fingerprint" binding:"omitempty,max=128"`
}

// SessionCounts aggregates session states for one exam. Counters are
// recomputed from session rows, never maintained as the sole source of truth.
type SessionCounts struct {
	Active     int `json:"active"`
	Submitted  int `json:"submitted"`
	Forced     int `json:"force_submitted"`
	Expired    int `json:"expired"`
	Terminated int `json:"violation_terminated"`
	Violations int `json:"violations"`
}

// Joined returns the total number of sessions ever admitted.
func (c SessionCounts) Joined() int {
	return c.Active + c.Submitted + c.Forced + c.Expired + c.Terminated
}
