package model

import (
	"time"

	"github.com/google/uuid"
)

// Result is the immutable grading record of one completed session.
type Result struct {
	ID             uuid.UUID `json:"id"`
	StudentID      int       `json:"student_id"`
	ExamID         uuid.UUID `json:"exam_id"`
	SessionID      uuid.UUID `json:"session_id"`
	MarksObtained  float64   `json:"marks_obtained"`
	TotalMarks     int       `json:"total_marks"`
	Percentage     float64   `json:"percentage"`
	Passed         bool      `json:"passed"`
	CorrectAnswers int       `json:"correct_answers"`
	WrongAnswers   int       `json:"wrong_answers"`
	Unanswered     int       `json:"unanswered"`
	ViolationCount int       `json:"violation_count"`
	CreatedAt      time.Time `json:"created_at"`

	// Read-model joins; empty on freshly graded results.
	ExamTitle   string `json:"exam_title,omitempty"`
	StudentName string `json:"student_name,omitempty"`
}

// ResultDetail is one result with its exam and student attached.
type ResultDetail struct {
	Result
	Exam    *Exam `json:"exam"`
	Student *User `json:"student"`
}

// Overview is the admin dashboard rollup.
type Overview struct {
	TotalStudents int      `json:"total_students"`
	TotalExams    int      `json:"total_exams"`
	TotalResults  int      `json:"total_results"`
	AvgPercentage float64  `json:"avg_percentage"`
	RecentResults []Result `json:"recent_results"`
}

// ExamAnalytics summarises all attempts at one exam.
type ExamAnalytics struct {
	Exam          *Exam    `json:"exam"`
	TotalAttempts int      `json:"total_attempts"`
	AvgPercentage float64  `json:"avg_percentage"`
	PassRate      float64  `json:"pass_rate"`
	PassedCount   int      `json:"passed_count"`
	FailedCount   int      `json:"failed_count"`
	Results       []Result `json:"results"`
}
