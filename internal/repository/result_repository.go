package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examguard-backend/internal/model"
)

const resultSelect = `SELECT r.id, r.student_id, r.exam_id, r.session_id, r.marks_obtained, r.total_marks,
	r.percentage, r.passed, r.correct_answers, r.wrong_answers, r.unanswered, r.violation_count,
	r.created_at, e.title, COALESCE(u.full_name, '')
	FROM results r
	JOIN exams e ON e.id = r.exam_id
	LEFT JOIN users u ON u.id = r.student_id`

// ResultRepository is append-only: results are inserted once by submission and never updated.
type ResultRepository struct {
	db DBTX
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(db DBTX) *ResultRepository {
	return &ResultRepository{db: db}
}

func scanResult(row pgx.Row) (*model.Result, error) {
	res := &model.Result{}
	err := row.Scan(&res.ID, &res.StudentID, &res.ExamID, &res.SessionID, &res.MarksObtained, &res.TotalMarks,
		&res.Percentage, &res.Passed, &res.CorrectAnswers, &res.WrongAnswers, &res.Unanswered, &res.ViolationCount,
		&res.CreatedAt, &res.ExamTitle, &res.StudentName)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func collectResults(rows pgx.Rows, err error) ([]model.Result, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.Result{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, rows.Err()
}

// Create inserts a result. A second result for the same session fails with ErrDuplicate.
func (r *ResultRepository) Create(ctx context.Context, res *model.Result) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO results (id, student_id, exam_id, session_id, marks_obtained, total_marks, percentage,
			passed, correct_answers, wrong_answers, unanswered, violation_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at`,
		res.ID, res.StudentID, res.ExamID, res.SessionID, res.MarksObtained, res.TotalMarks, res.Percentage,
		res.Passed, res.CorrectAnswers, res.WrongAnswers, res.Unanswered, res.ViolationCount,
	).Scan(&res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert result: %w", duplicate(err))
	}
	return nil
}

// GetByID retrieves one result with exam title and student name.
func (r *ResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error) {
	res, err := scanResult(r.db.QueryRow(ctx, resultSelect+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// ListByStudent returns a student's results, newest first.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Result, error) {
	return collectResults(r.db.Query(ctx,
		resultSelect+` WHERE r.student_id = $1 ORDER BY r.created_at DESC`, studentID))
}

// ListByExam returns every result of an exam, newest first.
func (r *ResultRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error) {
	return collectResults(r.db.Query(ctx,
		resultSelect+` WHERE r.exam_id = $1 ORDER BY r.created_at DESC`, examID))
}

// ListAll returns results newest first. limit <= 0 means no limit.
func (r *ResultRepository) ListAll(ctx context.Context, limit int) ([]model.Result, error) {
	if limit > 0 {
		return collectResults(r.db.Query(ctx,
			resultSelect+` ORDER BY r.created_at DESC LIMIT $1`, limit))
	}
	return collectResults(r.db.Query(ctx, resultSelect+` ORDER BY r.created_at DESC`))
}
