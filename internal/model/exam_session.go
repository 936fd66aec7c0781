package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is derived from is_completed; it is never stored.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// Answers maps a question id to the submitted value. Values are stored
// verbatim; grading decides what counts as a valid letter.
type Answers map[string]any

// ExamSession represents a student's exam attempt.
type ExamSession struct {
	ID             uuid.UUID  `json:"id"`
	StudentID      int        `json:"student_id"`
	ExamID         uuid.UUID  `json:"exam_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	Answers        Answers    `json:"answers"`
	IsCompleted    bool       `json:"is_completed"`
	ViolationCount int        `json:"violation_count"`
	AutoSubmitted  bool       `json:"auto_submitted"`
}

func (s *ExamSession) Status() SessionStatus {
	if s.IsCompleted {
		return SessionStatusCompleted
	}
	return SessionStatusInProgress
}

// SubmitExamRequest is the payload for submitting a session.
type SubmitExamRequest struct {
	Answers Answers `json:"answers"`
}
