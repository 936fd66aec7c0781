package model

import (
	"time"

	"github.com/google/uuid"
)

// Question represents a single multiple-choice question with four options.
type Question struct {
	ID            uuid.UUID `json:"id"`
	ExamID        uuid.UUID `json:"exam_id"`
	QuestionText  string    `json:"question_text"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	OptionC       string    `json:"option_c"`
	OptionD       string    `json:"option_d"`
	CorrectAnswer string    `json:"correct_answer"`
	Marks         int       `json:"marks"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	OptionA      string    `json:"option_a"`
	OptionB      string    `json:"option_b"`
	OptionC      string    `json:"option_c"`
	OptionD      string    `json:"option_d"`
	Marks        int       `json:"marks"`
}

// ForStudent strips the answer key.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		OptionA:      q.OptionA,
		OptionB:      q.OptionB,
		OptionC:      q.OptionC,
		OptionD:      q.OptionD,
		Marks:        q.Marks,
	}
}

// CreateQuestionRequest is the payload for adding a question to an exam.
// correct_answer is normalized and checked by the catalog service.
type CreateQuestionRequest struct {
	QuestionText  string `json:"question_text" binding:"required,max=5000"`
	OptionA       string `json:"option_a" binding:"required,max=1000"`
	OptionB       string `json:"option_b" binding:"required,max=1000"`
	OptionC       string `json:"option_c" binding:"required,max=1000"`
	OptionD       string `json:"option_d" binding:"required,max=1000"`
	CorrectAnswer string `json:"correct_answer" binding:"required"`
	Marks         *int   `json:"marks" binding:"required,min=1"`
}

// UpdateQuestionRequest is a partial update of a question.
type UpdateQuestionRequest struct {
	QuestionText  *string `json:"question_text" binding:"omitempty,min=1,max=5000"`
	OptionA       *string `json:"option_a" binding:"omitempty,min=1,max=1000"`
	OptionB       *string `json:"option_b" binding:"omitempty,min=1,max=1000"`
	OptionC       *string `json:"option_c" binding:"omitempty,min=1,max=1000"`
	OptionD       *string `json:"option_d" binding:"omitempty,min=1,max=1000"`
	CorrectAnswer *string `json:"correct_answer"`
	Marks         *int    `json:"marks" binding:"omitempty,min=1"`
}
