package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examguard-backend/internal/model"
)

const sessionColumns = `id, student_id, exam_id, start_time, end_time, answers, is_completed,
	violation_count, auto_submitted`

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	db DBTX
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(db DBTX) *ExamSessionRepository {
	return &ExamSessionRepository{db: db}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.StudentID, &s.ExamID, &s.StartTime, &s.EndTime, &s.Answers,
		&s.IsCompleted, &s.ViolationCount, &s.AutoSubmitted)
	if err != nil {
		return nil, err
	}
	if s.Answers == nil {
		s.Answers = model.Answers{}
	}
	return s, nil
}

// LockStudentExam serializes session creation and completion for one
// (exam, student) pair until the surrounding transaction ends. Must run
// inside a transaction.
func (r *ExamSessionRepository) LockStudentExam(ctx context.Context, examID uuid.UUID, studentID int) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), $2::int)`, examID.String(), studentID)
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// HasCompleted reports whether the student already finished the exam.
func (r *ExamSessionRepository) HasCompleted(ctx context.Context, examID uuid.UUID, studentID int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM exam_sessions WHERE exam_id = $1 AND student_id = $2 AND is_completed
		 )`, examID, studentID,
	).Scan(&exists)
	return exists, err
}

// FindIncomplete returns the student's in-progress session for the exam, or ErrNotFound.
func (r *ExamSessionRepository) FindIncomplete(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s, err := scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2 AND NOT is_completed
		 ORDER BY start_time DESC
		 LIMIT 1`, examID, studentID))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// Create inserts a new in-progress session.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	if s.Answers == nil {
		s.Answers = model.Answers{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO exam_sessions (id, student_id, exam_id, start_time, answers, is_completed, violation_count)
		 VALUES ($1, $2, $3, $4, $5, FALSE, 0)`,
		s.ID, s.StudentID, s.ExamID, s.StartTime, s.Answers)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID retrieves a session without locking it.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, err := scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// GetByIDForUpdate retrieves a session and row-locks it for the rest of the transaction.
func (r *ExamSessionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s, err := scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// Complete moves an in-progress session to completed. It returns
// ErrConflict when the row is already completed.
func (r *ExamSessionRepository) Complete(ctx context.Context, s *model.ExamSession) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE exam_sessions
		 SET answers = $2, end_time = $3, is_completed = TRUE, auto_submitted = $4
		 WHERE id = $1 AND NOT is_completed`,
		s.ID, s.Answers, s.EndTime, s.AutoSubmitted)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// IncrementViolations bumps violation_count in place and returns the new value.
// It returns ErrConflict when the session is already completed.
func (r *ExamSessionRepository) IncrementViolations(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET violation_count = violation_count + 1
		 WHERE id = $1 AND NOT is_completed
		 RETURNING violation_count`, id,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("increment violations: %w", err)
	}
	return count, nil
}

// ListByStudent retrieves all sessions of a student, newest first.
func (r *ExamSessionRepository) ListByStudent(ctx context.Context, studentID int) ([]model.ExamSession, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE student_id = $1
		 ORDER BY start_time DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []model.ExamSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// SessionCounts is a live snapshot of one exam's sessions.
type SessionCounts struct {
	InProgress      int       `json:"in_progress"`
	Completed       int       `json:"completed"`
	AutoSubmitted   int       `json:"auto_submitted"`
	TotalViolations int       `json:"total_violations"`
	TakenAt         time.Time `json:"taken_at"`
}

// CountByExam aggregates the sessions of an exam for the live monitor.
func (r *ExamSessionRepository) CountByExam(ctx context.Context, examID uuid.UUID) (*SessionCounts, error) {
	c := &SessionCounts{}
	err := r.db.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE NOT is_completed),
			COUNT(*) FILTER (WHERE is_completed),
			COUNT(*) FILTER (WHERE auto_submitted),
			COALESCE(SUM(violation_count), 0),
			NOW()
		 FROM exam_sessions
		 WHERE exam_id = $1`, examID,
	).Scan(&c.InProgress, &c.Completed, &c.AutoSubmitted, &c.TotalViolations, &c.TakenAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
