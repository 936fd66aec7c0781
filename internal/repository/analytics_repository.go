package repository

import (
	"context"

	"github.com/google/uuid"
)

// AnalyticsRepository runs read-only rollups over results. Nothing is
// materialized; every call aggregates at query time.
type AnalyticsRepository struct {
	db DBTX
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(db DBTX) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Totals is the system-wide summary behind the admin overview.
type Totals struct {
	Students      int
	Exams         int
	Results       int
	AvgPercentage float64
}

// GetTotals retrieves the high-level counts for the admin overview.
func (r *AnalyticsRepository) GetTotals(ctx context.Context) (*Totals, error) {
	t := &Totals{}
	err := r.db.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'student'),
			(SELECT COUNT(*) FROM exams),
			(SELECT COUNT(*) FROM results),
			(SELECT COALESCE(AVG(percentage), 0) FROM results)`,
	).Scan(&t.Students, &t.Exams, &t.Results, &t.AvgPercentage)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ExamStats aggregates the attempts at one exam.
type ExamStats struct {
	Attempts      int
	Passed        int
	AvgPercentage float64
}

// GetExamStats retrieves attempt and pass counts for an exam.
func (r *AnalyticsRepository) GetExamStats(ctx context.Context, examID uuid.UUID) (*ExamStats, error) {
	s := &ExamStats{}
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE passed), COALESCE(AVG(percentage), 0)
		 FROM results
		 WHERE exam_id = $1`, examID,
	).Scan(&s.Attempts, &s.Passed, &s.AvgPercentage)
	if err != nil {
		return nil, err
	}
	return s, nil
}
