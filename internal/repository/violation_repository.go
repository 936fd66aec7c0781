package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
)

// ViolationRepository appends and lists proctoring violations. There is no
// update or delete path; rows go away only with their session.
type ViolationRepository struct {
	db DBTX
}

func NewViolationRepository(db DBTX) *ViolationRepository {
	return &ViolationRepository{db: db}
}

func (r *ViolationRepository) Create(ctx context.Context, v *model.Violation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO violations (id, session_id, violation_type, details, timestamp)
		 VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.SessionID, v.ViolationType, v.Details, v.Timestamp)
	if err != nil {
		return fmt.Errorf("insert violation: %w", err)
	}
	return nil
}

// ListBySession returns a session's violations, oldest first.
func (r *ViolationRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Violation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, violation_type, details, timestamp
		 FROM violations
		 WHERE session_id = $1
		 ORDER BY timestamp, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	violations := []model.Violation{}
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.SessionID, &v.ViolationType, &v.Details, &v.Timestamp); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}
