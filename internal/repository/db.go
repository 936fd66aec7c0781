package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a lookup or targeted write matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate wraps unique-constraint violations; the constraint name follows the colon.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a guarded update finds the row in an unexpected state.
	ErrConflict = errors.New("conflicting state")
)

const pgUniqueViolation = "23505"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// can run either on the pool or inside a caller's transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles the data-access objects bound to one DBTX.
type Repositories struct {
	Users      *UserRepository
	Exams      *ExamRepository
	Questions  *QuestionRepository
	Sessions   *ExamSessionRepository
	Violations *ViolationRepository
	Results    *ResultRepository
	Analytics  *AnalyticsRepository
}

// NewRepositories binds every repository to db.
func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		Users:      NewUserRepository(db),
		Exams:      NewExamRepository(db),
		Questions:  NewQuestionRepository(db),
		Sessions:   NewExamSessionRepository(db),
		Violations: NewViolationRepository(db),
		Results:    NewResultRepository(db),
		Analytics:  NewAnalyticsRepository(db),
	}
}

// Store owns the pool and opens transaction scopes.
type Store struct {
	pool *pgxpool.Pool
	*Repositories
}

// NewStore returns a Store whose embedded repositories run on the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, Repositories: NewRepositories(pool)}
}

// InTx runs fn with repositories bound to a fresh transaction. The
// transaction commits when fn returns nil and rolls back on error or panic.
func (s *Store) InTx(ctx context.Context, fn func(r *Repositories) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(NewRepositories(tx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping checks database connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// rowsAffected converts a zero-row targeted write into ErrNotFound.
func rowsAffected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
