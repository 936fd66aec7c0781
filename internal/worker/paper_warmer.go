package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/model"
)

// ActiveExamLister lists exams that students may currently or soon start.
type ActiveExamLister interface {
	ListActive(ctx context.Context) ([]model.Exam, error)
}

// PaperLoader fills the paper cache of one exam.
type PaperLoader interface {
	WarmPaper(ctx context.Context, examID uuid.UUID) error
}

// PaperWarmer loads question papers into the cache shortly before an exam
// opens, so the first wave of Start calls does not all hit the database.
type PaperWarmer struct {
	exams    ActiveExamLister
	papers   PaperLoader
	interval time.Duration
	lead     time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func NewPaperWarmer(exams ActiveExamLister, papers PaperLoader, interval, lead time.Duration, log zerolog.Logger) *PaperWarmer {
	return &PaperWarmer{
		exams:    exams,
		papers:   papers,
		interval: interval,
		lead:     lead,
		now:      time.Now,
		log:      log.With().Str("component", "paper_warmer").Logger(),
	}
}

// Start warms once immediately and then every interval until ctx is done.
func (w *PaperWarmer) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Dur("lead", w.lead).Msg("PaperWarmer started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			w.log.Info().Msg("PaperWarmer stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce warms every exam that is open now or opens within the lead time.
// It returns the number of exams warmed.
func (w *PaperWarmer) RunOnce(ctx context.Context) int {
	exams, err := w.exams.ListActive(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("List active exams failed")
		}
		return 0
	}

	horizon := w.now().Add(w.lead)
	warmed := 0
	for i := range exams {
		exam := &exams[i]
		if !dueForWarmup(exam, w.now(), horizon) {
			continue
		}
		if err := w.papers.WarmPaper(ctx, exam.ID); err != nil {
			w.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Paper warmup failed")
			continue
		}
		warmed++
	}

	if warmed > 0 {
		w.log.Debug().Int("exams", warmed).Msg("Papers warmed")
	}
	return warmed
}

// dueForWarmup reports whether exam has not ended and opens before horizon.
func dueForWarmup(exam *model.Exam, now, horizon time.Time) bool {
	if exam.EndTime != nil && now.After(*exam.EndTime) {
		return false
	}
	return exam.StartTime == nil || !exam.StartTime.After(horizon)
}
