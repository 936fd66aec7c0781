package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
)

// The interfaces below are the slices of the repositories the services use.
// *repository.XRepository satisfies each one.

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int) (*model.User, error)
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	CountByRole(ctx context.Context, role model.Role) (int, error)
}

type ExamRepository interface {
	Create(ctx context.Context, e *model.Exam) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	List(ctx context.Context) ([]model.Exam, error)
	ListActive(ctx context.Context) ([]model.Exam, error)
	Update(ctx context.Context, e *model.Exam) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type QuestionRepository interface {
	Create(ctx context.Context, q *model.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	Update(ctx context.Context, q *model.Question) error
	Delete(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type SessionRepository interface {
	LockStudentExam(ctx context.Context, examID uuid.UUID, studentID int) error
	HasCompleted(ctx context.Context, examID uuid.UUID, studentID int) (bool, error)
	FindIncomplete(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error)
	Create(ctx context.Context, s *model.ExamSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	Complete(ctx context.Context, s *model.ExamSession) error
	IncrementViolations(ctx context.Context, id uuid.UUID) (int, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.ExamSession, error)
	CountByExam(ctx context.Context, examID uuid.UUID) (*repository.SessionCounts, error)
}

type ViolationRepository interface {
	Create(ctx context.Context, v *model.Violation) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Violation, error)
}

type ResultRepository interface {
	Create(ctx context.Context, r *model.Result) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Result, error)
	ListByStudent(ctx context.Context, studentID int) ([]model.Result, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Result, error)
	ListAll(ctx context.Context, limit int) ([]model.Result, error)
}

type AnalyticsRepository interface {
	GetTotals(ctx context.Context) (*repository.Totals, error)
	GetExamStats(ctx context.Context, examID uuid.UUID) (*repository.ExamStats, error)
}

// Repos is one consistent set of repositories, either pool-backed or bound to a transaction.
type Repos struct {
	Users      UserRepository
	Exams      ExamRepository
	Questions  QuestionRepository
	Sessions   SessionRepository
	Violations ViolationRepository
	Results    ResultRepository
	Analytics  AnalyticsRepository
}

// UnitOfWork hands out repositories and opens transaction scopes.
// InTx commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Repos() Repos
	InTx(ctx context.Context, fn func(r Repos) error) error
}

type pgUnitOfWork struct {
	store *repository.Store
}

// NewUnitOfWork adapts a repository.Store to the services.
func NewUnitOfWork(store *repository.Store) UnitOfWork {
	return &pgUnitOfWork{store: store}
}

func (u *pgUnitOfWork) Repos() Repos {
	return reposOf(u.store.Repositories)
}

func (u *pgUnitOfWork) InTx(ctx context.Context, fn func(r Repos) error) error {
	return u.store.InTx(ctx, func(r *repository.Repositories) error {
		return fn(reposOf(r))
	})
}

func reposOf(r *repository.Repositories) Repos {
	return Repos{
		Users:      r.Users,
		Exams:      r.Exams,
		Questions:  r.Questions,
		Sessions:   r.Sessions,
		Violations: r.Violations,
		Results:    r.Results,
		Analytics:  r.Analytics,
	}
}

// Principal is the authenticated caller, resolved by the auth middleware.
type Principal struct {
	UserID int
	Role   model.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}
