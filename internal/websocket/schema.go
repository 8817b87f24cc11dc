package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer    Action = "answer"
	ActionViolation Action = "violation"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest is sent by the client to save a single answer.
type AnswerRequest struct {
	Action    Action `json:"action"`
	QID       string `json:"q_id"`
	Response  string `json:"ans"`
	Visited   bool   `json:"visited"`
	Flagged   bool   `json:"flagged"`
	TimeSpent int    `json:"time_spent"`
}

// ViolationRequest is sent by the client to report an integrity event.
type ViolationRequest struct {
	Action Action `json:"action"`
	Type   string `json:"type"`
}

// SubmitRequest is sent by the client to finish and grade the exam.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSaved      Event = "saved"
	EventGraded     Event = "graded"
	EventWarning    Event = "warning"
	EventTerminated Event = "terminated"
	EventMessage    Event = "message"
	EventPong       Event = "pong"
)

// SavedResponse acknowledges an answer save and carries the server-side
// remaining time so the client clock can resync on every write.
type SavedResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// GradedResponse is sent once the session reaches a terminal state.
type GradedResponse struct {
	Event  Event   `json:"event"`
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

// WarningResponse tells the candidate how many violations remain before
// termination.
type WarningResponse struct {
	Event     Event `json:"event"`
	Count     int   `json:"count"`
	Remaining int   `json:"remaining"`
}

// TerminatedResponse is pushed when the session is ended server-side.
type TerminatedResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// MessageResponse relays a proctor broadcast message.
type MessageResponse struct {
	Event Event  `json:"event"`
	Text  string `json:"text"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}
