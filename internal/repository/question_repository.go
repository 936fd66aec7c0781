package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examguard-backend/internal/model"
)

const questionColumns = `id, exam_id, question_text, option_a, option_b, option_c, option_d,
	correct_answer, marks, created_at`

// QuestionRepository handles question data access.
type QuestionRepository struct {
	db DBTX
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(db DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func scanQuestion(row pgx.Row) (*model.Question, error) {
	q := &model.Question{}
	err := row.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
		&q.CorrectAnswer, &q.Marks, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Create inserts a question at the end of its exam's order.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO questions (id, exam_id, question_text, option_a, option_b, option_c, option_d,
			correct_answer, marks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		q.ID, q.ExamID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, q.Marks,
	).Scan(&q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// GetByID retrieves a single question.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := scanQuestion(r.db.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

// ListByExam returns the exam's questions in creation order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE exam_id = $1 ORDER BY seq`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// Update writes every mutable column of q.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	return rowsAffected(r.db.Exec(ctx,
		`UPDATE questions SET question_text = $2, option_a = $3, option_b = $4, option_c = $5,
			option_d = $6, correct_answer = $7, marks = $8
		 WHERE id = $1`,
		q.ID, q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, q.Marks))
}

// Delete removes a question and returns the exam it belonged to.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var examID uuid.UUID
	err := r.db.QueryRow(ctx, `DELETE FROM questions WHERE id = $1 RETURNING exam_id`, id).Scan(&examID)
	if err != nil {
		return uuid.Nil, notFound(err)
	}
	return examID, nil
}
