package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationType is a proctoring tag reported by the client. Unknown tags are accepted.
type ViolationType string

const (
	ViolationNoFace         ViolationType = "no_face"
	ViolationMultipleFaces  ViolationType = "multiple_faces"
	ViolationTabSwitch      ViolationType = "tab_switch"
	ViolationExitFullscreen ViolationType = "exit_fullscreen"
)

// Known reports whether t is one of the tags the client is expected to send.
func (t ViolationType) Known() bool {
	switch t {
	case ViolationNoFace, ViolationMultipleFaces, ViolationTabSwitch, ViolationExitFullscreen:
		return true
	}
	return false
}

// Violation is an append-only proctoring event attached to a session.
type Violation struct {
	ID            uuid.UUID     `json:"id"`
	SessionID     uuid.UUID     `json:"session_id"`
	ViolationType ViolationType `json:"violation_type"`
	Details       string        `json:"details"`
	Timestamp     time.Time     `json:"timestamp"`
}

// RecordViolationRequest is the payload for POST /violations.
type RecordViolationRequest struct {
	SessionID     string `json:"session_id" binding:"required,uuid"`
	ViolationType string `json:"violation_type" binding:"required,max=50"`
	Details       string `json:"details" binding:"omitempty,max=2000"`
}
