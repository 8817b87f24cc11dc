package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationType is the closed enumeration of integrity events a client or
// the system may report. Violations are event-driven signals only; no
// content analysis happens here.
type ViolationType string

const (
	ViolationTabSwitch           ViolationType = "tab_switch"
	ViolationWindowBlur          ViolationType = "window_blur"
	ViolationCopyPaste           ViolationType = "copy_paste"
	ViolationRightClick          ViolationType = "right_click"
	ViolationDevtoolsOpen        ViolationType = "devtools_open"
	ViolationFullscreenExit      ViolationType = "fullscreen_exit"
	ViolationMultipleTabs        ViolationType = "multiple_tabs"
	ViolationFingerprintMismatch ViolationType = "fingerprint_mismatch"
	ViolationInactivity          ViolationType = "inactivity"
	ViolationConnectionLost      ViolationType = "connection_lost"
	ViolationOther               ViolationType = "other"
)

// Valid reports whether t is a member of the closed enumeration.
func (t ViolationType) Valid() bool {
	switch t {
	case ViolationTabSwitch, ViolationWindowBlur, ViolationCopyPaste,
		ViolationRightClick, ViolationDevtoolsOpen, ViolationFullscreenExit,
		ViolationMultipleTabs, ViolationFingerprintMismatch,
		ViolationInactivity, ViolationConnectionLost, ViolationOther:
		return true
	}
	return false
}

// Severity of a violation, used for reporting only; the escalation policy
// counts events, it does not weigh them.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DefaultSeverity maps each violation type to its reporting severity.
func DefaultSeverity(t ViolationType) Severity {
	switch t {
	case ViolationDevtoolsOpen, ViolationMultipleTabs, ViolationFingerprintMismatch:
		return SeverityHigh
	case ViolationTabSwitch, ViolationFullscreenExit, ViolationCopyPaste:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Violation is one immutable entry in a session's integrity ledger.
type Violation struct {
	ID           int64         `json:"id"`
	SessionToken uuid.UUID     `json:"session_token"`
	Type         ViolationType `json:"type"`
	Severity     Severity      `json:"severity"`
	Actor        Actor         `json:"actor"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// ReportViolationRequest is the candidate payload for reporting an event.
type ReportViolationRequest struct {
	Type string `json:"type" binding:"required,violationtype"`
}
