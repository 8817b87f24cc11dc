package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrDeviceActive       ErrCode = "DEVICE_ALREADY_ACTIVE"
	ErrLoginInvalidated   ErrCode = "LOGIN_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrSessionNotActive  ErrCode = "SESSION_NOT_ACTIVE"
	ErrSessionFinalized  ErrCode = "SESSION_FINALIZED"
	ErrSessionActive     ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrDeadlinePassed    ErrCode = "DEADLINE_PASSED"
	ErrInvalidViolation  ErrCode = "INVALID_VIOLATION_TYPE"
	ErrExamNotAvailable  ErrCode = "EXAM_NOT_AVAILABLE"
	ErrInvalidEntryToken ErrCode = "INVALID_ENTRY_TOKEN"

	// ─── Batches ───────────────────────────────────────────────────────
	ErrBatchNotAdmitting   ErrCode = "BATCH_NOT_ADMITTING"
	ErrBatchCapacity       ErrCode = "BATCH_CAPACITY_EXCEEDED"
	ErrBatchAlreadyActive  ErrCode = "BATCH_ALREADY_ACTIVE"
	ErrNoBatchesRemaining  ErrCode = "NO_BATCHES_REMAINING"
	ErrBatchNotCompleted   ErrCode = "BATCH_NOT_COMPLETED"
	ErrBatchPlanInProgress ErrCode = "BATCH_PLAN_IN_PROGRESS"
	ErrInvalidCapacity     ErrCode = "INVALID_CAPACITY"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal        ErrCode = "INTERNAL_ERROR"
	ErrServiceStarting ErrCode = "SERVICE_STARTING"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid number/email or password."
	case ErrDeviceActive:
		return "You are already logged in on another device."
	case ErrLoginInvalidated:
		return "Your login has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateAccessOnly:
		return "This resource is restricted to candidates."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Sessions ──────────────────────────────────────────────────────
	case ErrSessionNotActive:
		return "This exam session is no longer active."
	case ErrSessionFinalized:
		return "This exam session has already been finalized."
	case ErrSessionActive:
		return "You already have an active session for this exam."
	case ErrDeadlinePassed:
		return "The exam deadline has passed. Your session was submitted."
	case ErrInvalidViolation:
		return "Unknown violation type."
	case ErrExamNotAvailable:
		return "This exam is not currently available."
	case ErrInvalidEntryToken:
		return "Invalid exam entry token."

	// ─── Batches ───────────────────────────────────────────────────────
	case ErrBatchNotAdmitting:
		return "Your batch is not admitting candidates right now."
	case ErrBatchCapacity:
		return "The batch has reached its capacity."
	case ErrBatchAlreadyActive:
		return "Another batch is already active for this exam."
	case ErrNoBatchesRemaining:
		return "All batches for this exam have run."
	case ErrBatchNotCompleted:
		return "The batch must be completed before this action."
	case ErrBatchPlanInProgress:
		return "The batch plan cannot be regenerated once a batch has started."
	case ErrInvalidCapacity:
		return "Invalid batch capacity."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	case ErrServiceStarting:
		return "The service is starting up. Please retry shortly."
	default:
		return "An unexpected error occurred."
	}
}
