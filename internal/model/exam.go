package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LobbyStatus describes an exam from the point of view of one student.
type LobbyStatus string

const (
	LobbyStatusUpcoming   LobbyStatus = "UPCOMING"
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusCompleted  LobbyStatus = "COMPLETED"
	LobbyStatusClosed     LobbyStatus = "CLOSED"
)

// Exam represents an exam entity.
type Exam struct {
	ID                 uuid.UUID  `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	DurationMinutes    int        `json:"duration"`
	TotalMarks         int        `json:"total_marks"`
	PassingMarks       int        `json:"passing_marks"`
	NegativeMarking    bool       `json:"negative_marking"`
	NegativeMarksValue float64    `json:"negative_marks_value"`
	RandomizeQuestions bool       `json:"randomize_questions"`
	StartTime          *time.Time `json:"start_time"`
	EndTime            *time.Time `json:"end_time"`
	IsActive           bool       `json:"is_active"`
	CreatedBy          *int       `json:"created_by"`
	QuestionCount      int        `json:"question_count"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// WindowAt reports where t falls relative to the exam's schedule window.
// A missing bound is open on that side.
func (e *Exam) WindowAt(t time.Time) (started, ended bool) {
	started = e.StartTime == nil || !t.Before(*e.StartTime)
	ended = e.EndTime != nil && t.After(*e.EndTime)
	return started, ended
}

// ExamDetail is the admin view of an exam, answers included.
type ExamDetail struct {
	*Exam
	Questions []Question `json:"questions"`
	// QuestionMarksTotal is the sum of question marks; it may differ from TotalMarks.
	QuestionMarksTotal int `json:"question_marks_total"`
}

// StudentExam is one row of a student's exam list.
type StudentExam struct {
	*Exam
	IsAvailable  bool        `json:"is_available"`
	AlreadyTaken bool        `json:"already_taken"`
	Status       LobbyStatus `json:"status"`
}

// CreateExamRequest is the payload for creating a new exam.
// Required numerics are pointers so an explicit zero is distinguishable from a missing field.
type CreateExamRequest struct {
	Title              string     `json:"title" binding:"required,min=1,max=200"`
	Description        string     `json:"description" binding:"omitempty,max=5000"`
	DurationMinutes    *int       `json:"duration" binding:"required,min=1,max=1440"`
	TotalMarks         *int       `json:"total_marks" binding:"required,min=0"`
	PassingMarks       *int       `json:"passing_marks" binding:"required,min=0"`
	NegativeMarking    bool       `json:"negative_marking"`
	NegativeMarksValue *float64   `json:"negative_marks_value" binding:"omitempty,min=0"`
	RandomizeQuestions bool       `json:"randomize_questions"`
	StartTime          *time.Time `json:"start_time"`
	EndTime            *time.Time `json:"end_time"`
	IsActive           *bool      `json:"is_active"`
}

// UpdateExamRequest is a partial update; only fields present in the body change.
type UpdateExamRequest struct {
	Title              *string      `json:"title" binding:"omitempty,min=1,max=200"`
	Description        *string      `json:"description" binding:"omitempty,max=5000"`
	DurationMinutes    *int         `json:"duration" binding:"omitempty,min=1,max=1440"`
	TotalMarks         *int         `json:"total_marks" binding:"omitempty,min=0"`
	PassingMarks       *int         `json:"passing_marks" binding:"omitempty,min=0"`
	NegativeMarking    *bool        `json:"negative_marking"`
	NegativeMarksValue *float64     `json:"negative_marks_value" binding:"omitempty,min=0"`
	RandomizeQuestions *bool        `json:"randomize_questions"`
	StartTime          NullableTime `json:"start_time"`
	EndTime            NullableTime `json:"end_time"`
	IsActive           *bool        `json:"is_active"`
}

// NullableTime tells an absent JSON field apart from an explicit null,
// so a partial update can clear a schedule bound.
type NullableTime struct {
	Set  bool
	Time *time.Time
}

func (n *NullableTime) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	n.Time = &t
	return nil
}

func (n NullableTime) MarshalJSON() ([]byte, error) {
	if n.Time == nil {
		return []byte("null"), nil
	}
	return json.Marshal(n.Time)
}
