package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
)

// ResultService reads graded results. Results are only written by Submit.
type ResultService struct {
	uow UnitOfWork
}

func NewResultService(uow UnitOfWork) *ResultService {
	return &ResultService{uow: uow}
}

// Get returns any result to an admin and only their own to a student, with
// the exam and the student's account attached.
func (s *ResultService) Get(ctx context.Context, p Principal, id uuid.UUID) (*model.ResultDetail, error) {
	repos := s.uow.Repos()
	res, err := repos.Results.GetByID(ctx, id)
	if err != nil {
		return nil, orNotFound(err, ErrResultNotFound, "get result")
	}
	if !p.IsAdmin() && res.StudentID != p.UserID {
		return nil, ErrNotResultOwner
	}

	exam, err := repos.Exams.GetByID(ctx, res.ExamID)
	if err != nil {
		return nil, orNotFound(err, ErrExamNotFound, "get result exam")
	}
	student, err := repos.Users.GetByID(ctx, res.StudentID)
	if err != nil {
		return nil, orNotFound(err, ErrUserNotFound, "get result student")
	}

	res.ExamTitle = exam.Title
	res.StudentName = student.FullName
	return &model.ResultDetail{Result: *res, Exam: exam, Student: student}, nil
}

// ListForStudent returns a student's results, newest first.
func (s *ResultService) ListForStudent(ctx context.Context, studentID int) ([]model.Result, error) {
	results, err := s.uow.Repos().Results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list student results: %w", err)
	}
	return results, nil
}

// List returns every result to an admin and the caller's own to a student.
func (s *ResultService) List(ctx context.Context, p Principal) ([]model.Result, error) {
	if !p.IsAdmin() {
		return s.ListForStudent(ctx, p.UserID)
	}
	results, err := s.uow.Repos().Results.ListAll(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}

// ListByExam returns every result of one exam.
func (s *ResultService) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error) {
	repos := s.uow.Repos()
	if _, err := repos.Exams.GetByID(ctx, examID); err != nil {
		return nil, orNotFound(err, ErrExamNotFound, "get exam")
	}
	results, err := repos.Results.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	return results, nil
}
