package service

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
)

const recentResultsLimit = 10

// AnalyticsService aggregates results at query time.
type AnalyticsService struct {
	uow UnitOfWork
}

func NewAnalyticsService(uow UnitOfWork) *AnalyticsService {
	return &AnalyticsService{uow: uow}
}

// Overview returns the system-wide counts and the newest results.
func (s *AnalyticsService) Overview(ctx context.Context) (*model.Overview, error) {
	repos := s.uow.Repos()

	totals, err := repos.Analytics.GetTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("get totals: %w", err)
	}
	recent, err := repos.Results.ListAll(ctx, recentResultsLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent results: %w", err)
	}

	return &model.Overview{
		TotalStudents: totals.Students,
		TotalExams:    totals.Exams,
		TotalResults:  totals.Results,
		AvgPercentage: round2(totals.AvgPercentage),
		RecentResults: recent,
	}, nil
}

// ExamAnalytics summarises every attempt at one exam.
func (s *AnalyticsService) ExamAnalytics(ctx context.Context, examID uuid.UUID) (*model.ExamAnalytics, error) {
	repos := s.uow.Repos()

	exam, err := repos.Exams.GetByID(ctx, examID)
	if err != nil {
		return nil, orNotFound(err, ErrExamNotFound, "get exam")
	}
	stats, err := repos.Analytics.GetExamStats(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam stats: %w", err)
	}
	results, err := repos.Results.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}

	return &model.ExamAnalytics{
		Exam:          exam,
		TotalAttempts: stats.Attempts,
		AvgPercentage: round2(stats.AvgPercentage),
		PassRate:      PassRate(stats.Passed, stats.Attempts),
		PassedCount:   stats.Passed,
		FailedCount:   stats.Attempts - stats.Passed,
		Results:       results,
	}, nil
}

// PassRate is passed/total as a percentage rounded to two places; 0 when total is 0.
func PassRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(passed) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
