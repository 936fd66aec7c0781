package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examguard-backend/internal/model"
)

const examColumns = `e.id, e.title, e.description, e.duration_minutes, e.total_marks, e.passing_marks,
	e.negative_marking, e.negative_marks_value, e.randomize_questions, e.start_time, e.end_time,
	e.is_active, e.created_by, e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id)`

// ExamRepository handles exam data access.
type ExamRepository struct {
	db DBTX
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(db DBTX) *ExamRepository {
	return &ExamRepository{db: db}
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.DurationMinutes, &e.TotalMarks, &e.PassingMarks,
		&e.NegativeMarking, &e.NegativeMarksValue, &e.RandomizeQuestions, &e.StartTime, &e.EndTime,
		&e.IsActive, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.QuestionCount,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func collectExams(rows pgx.Rows, err error) ([]model.Exam, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := []model.Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// Create inserts a new exam. ID must be set by the caller.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO exams (id, title, description, duration_minutes, total_marks, passing_marks,
			negative_marking, negative_marks_value, randomize_questions, start_time, end_time,
			is_active, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at, updated_at`,
		e.ID, e.Title, e.Description, e.DurationMinutes, e.TotalMarks, e.PassingMarks,
		e.NegativeMarking, e.NegativeMarksValue, e.RandomizeQuestions, e.StartTime, e.EndTime,
		e.IsActive, e.CreatedBy,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

// GetByID retrieves an exam with its question count.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := scanExam(r.db.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// List returns every exam, newest first.
func (r *ExamRepository) List(ctx context.Context) ([]model.Exam, error) {
	return collectExams(r.db.Query(ctx,
		`SELECT `+examColumns+` FROM exams e ORDER BY e.created_at DESC`))
}

// ListActive returns exams students may see, newest first.
func (r *ExamRepository) ListActive(ctx context.Context) ([]model.Exam, error) {
	return collectExams(r.db.Query(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.is_active ORDER BY e.created_at DESC`))
}

// Update writes every mutable column of e.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	err := r.db.QueryRow(ctx,
		`UPDATE exams SET title = $2, description = $3, duration_minutes = $4, total_marks = $5,
			passing_marks = $6, negative_marking = $7, negative_marks_value = $8,
			randomize_questions = $9, start_time = $10, end_time = $11, is_active = $12,
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		e.ID, e.Title, e.Description, e.DurationMinutes, e.TotalMarks, e.PassingMarks,
		e.NegativeMarking, e.NegativeMarksValue, e.RandomizeQuestions, e.StartTime, e.EndTime, e.IsActive,
	).Scan(&e.UpdatedAt)
	if err != nil {
		return notFound(err)
	}
	return nil
}

// Delete removes an exam; questions, sessions, violations and results cascade.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return rowsAffected(r.db.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id))
}
