package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/repository"
)

// Monitor event types.
const (
	EventSessionStarted   = "session_started"
	EventSessionResumed   = "session_resumed"
	EventViolation        = "violation"
	EventSessionSubmitted = "session_submitted"
)

// MonitorEvent is one entry on an exam's live monitor stream.
type MonitorEvent struct {
	Type           string    `json:"type"`
	ExamID         uuid.UUID `json:"exam_id"`
	SessionID      uuid.UUID `json:"session_id"`
	StudentID      int       `json:"student_id"`
	ViolationType  string    `json:"violation_type,omitempty"`
	ViolationCount int       `json:"violation_count"`
	ShouldSubmit   bool      `json:"should_submit,omitempty"`
	AutoSubmitted  bool      `json:"auto_submitted,omitempty"`
	Percentage     *float64  `json:"percentage,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// EventPublisher fans session events out to monitors. Publishing is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, evt MonitorEvent) error
}

// MonitorService publishes session events on Redis Pub/Sub and serves the
// admin SSE stream from the same channel.
type MonitorService struct {
	rdb *redis.Client
	uow UnitOfWork
}

func NewMonitorService(rdb *redis.Client, uow UnitOfWork) *MonitorService {
	return &MonitorService{rdb: rdb, uow: uow}
}

func (s *MonitorService) Publish(ctx context.Context, evt MonitorEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode monitor event: %w", err)
	}
	channel := config.CacheKey.ExamMonitorChannel(evt.ExamID.String())
	if err := s.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish monitor event: %w", err)
	}
	return nil
}

// Subscribe attaches to an exam's channel. The caller must Close the subscription.
func (s *MonitorService) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return s.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}

// Snapshot returns the current session counts of an exam, or ErrExamNotFound.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*repository.SessionCounts, error) {
	repos := s.uow.Repos()
	if _, err := repos.Exams.GetByID(ctx, examID); err != nil {
		return nil, orNotFound(err, ErrExamNotFound, "get exam")
	}
	counts, err := repos.Sessions.CountByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	return counts, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, MonitorEvent) error { return nil }
