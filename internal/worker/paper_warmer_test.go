package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/model"
)

type stubLister struct {
	exams []model.Exam
	err   error
}

func (s *stubLister) ListActive(context.Context) ([]model.Exam, error) {
	return s.exams, s.err
}

type stubLoader struct {
	warmed []uuid.UUID
	fail   map[uuid.UUID]bool
}

func (s *stubLoader) WarmPaper(_ context.Context, id uuid.UUID) error {
	if s.fail[id] {
		return errors.New("redis down")
	}
	s.warmed = append(s.warmed, id)
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }

func TestDueForWarmup(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	horizon := now.Add(15 * time.Minute)

	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  bool
	}{
		{"unscheduled", nil, nil, true},
		{"already open", timePtr(now.Add(-time.Hour)), timePtr(now.Add(time.Hour)), true},
		{"opens within lead", timePtr(now.Add(10 * time.Minute)), nil, true},
		{"opens at horizon", timePtr(horizon), nil, true},
		{"opens later", timePtr(now.Add(2 * time.Hour)), nil, false},
		{"ended", timePtr(now.Add(-2 * time.Hour)), timePtr(now.Add(-time.Minute)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := &model.Exam{StartTime: tt.start, EndTime: tt.end}
			if got := dueForWarmup(exam, now, horizon); got != tt.want {
				t.Errorf("dueForWarmup = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunOnce(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	open := model.Exam{ID: uuid.New()}
	soon := model.Exam{ID: uuid.New(), StartTime: timePtr(now.Add(5 * time.Minute))}
	later := model.Exam{ID: uuid.New(), StartTime: timePtr(now.Add(3 * time.Hour))}
	broken := model.Exam{ID: uuid.New()}

	loader := &stubLoader{fail: map[uuid.UUID]bool{broken.ID: true}}
	w := NewPaperWarmer(&stubLister{exams: []model.Exam{open, soon, later, broken}}, loader, time.Minute, 15*time.Minute, zerolog.Nop())
	w.now = func() time.Time { return now }

	if got := w.RunOnce(context.Background()); got != 2 {
		t.Fatalf("warmed = %d, want 2", got)
	}
	if len(loader.warmed) != 2 || loader.warmed[0] != open.ID || loader.warmed[1] != soon.ID {
		t.Errorf("warmed ids = %v", loader.warmed)
	}
}

func TestRunOnceListError(t *testing.T) {
	loader := &stubLoader{}
	w := NewPaperWarmer(&stubLister{err: errors.New("db down")}, loader, time.Minute, time.Minute, zerolog.Nop())
	if got := w.RunOnce(context.Background()); got != 0 || len(loader.warmed) != 0 {
		t.Errorf("warmed = %d, %v", got, loader.warmed)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loader := &stubLoader{}
	w := NewPaperWarmer(&stubLister{exams: []model.Exam{{ID: uuid.New()}}}, loader, time.Hour, time.Minute, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
