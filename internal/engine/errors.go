package engine

import "errors"

// Engine errors. Operations on a terminal session intentionally do not
// surface ErrSessionNotActive to the end user as a failure: handlers map it
// to the recorded final outcome so client retries stay safe.
var (
	ErrSessionNotFound   = errors.New("engine: session not found")
	ErrSessionNotActive  = errors.New("engine: session is no longer active")
	ErrAlreadyActive     = errors.New("engine: a live session already exists for this candidate")
	ErrAlreadyFinalized  = errors.New("engine: the attempt was already finalized")
	ErrBatchNotAdmitting = errors.New("engine: the candidate's batch is not admitting")
	ErrCapacityExceeded  = errors.New("engine: batch capacity exceeded")
	ErrExamNotRunning    = errors.New("engine: exam is not open for sessions")
	ErrDeadlinePassed    = errors.New("engine: the session deadline has passed")
	ErrInvalidViolation  = errors.New("engine: unknown violation type")
)
