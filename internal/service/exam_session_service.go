package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/grading"
	"github.com/stemsi/examguard-backend/internal/metrics"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
	"github.com/stemsi/examguard-backend/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const maxViolationTypeLen = 50

// ExamSessionService drives a session through NotStarted → InProgress → Completed.
// Every transition reads and writes the session row inside one transaction;
// nothing is held in memory between requests.
type ExamSessionService struct {
	uow            UnitOfWork
	papers         PaperCache
	events         EventPublisher
	violationLimit int
	log            zerolog.Logger

	now     func() time.Time
	newRand func() *rand.Rand
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	uow UnitOfWork,
	papers PaperCache,
	events EventPublisher,
	violationLimit int,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		uow:            uow,
		papers:         papers,
		events:         events,
		violationLimit: violationLimit,
		log:            log.With().Str("component", "exam_session_service").Logger(),
		now:            time.Now,
		newRand:        newRandomSource,
	}
}

// StartOutcome is what a student receives when starting or resuming an exam.
type StartOutcome struct {
	Session   *model.ExamSession         `json:"session"`
	Exam      *model.Exam                `json:"exam"`
	Questions []model.QuestionForStudent `json:"questions"`
	Resumed   bool                       `json:"resumed"`
}

// ViolationOutcome reports the session's violation count after recording one.
type ViolationOutcome struct {
	Violation      *model.Violation `json:"violation"`
	ViolationCount int              `json:"violation_count"`
	// ShouldSubmit is advisory; the session stays open until the client submits.
	ShouldSubmit bool `json:"should_submit"`
}

func (s *ExamSessionService) clock() time.Time {
	// Postgres keeps microseconds; truncating keeps fresh and reloaded rows identical.
	return s.now().UTC().Truncate(time.Microsecond)
}

// Start opens a session for the student, or returns the open one.
func (s *ExamSessionService) Start(ctx context.Context, studentID int, examID uuid.UUID) (out *StartOutcome, err error) {
	ctx, span := tracing.Start(ctx, "ExamSessionService.Start",
		attribute.String("exam.id", examID.String()),
		attribute.Int("student.id", studentID))
	defer func() { tracing.End(span, err) }()

	out = &StartOutcome{}
	err = s.uow.InTx(ctx, func(r Repos) error {
		exam, err := r.Exams.GetByID(ctx, examID)
		if err != nil {
			return orNotFound(err, ErrExamNotFound, "get exam")
		}
		if err := checkAvailable(exam, s.clock()); err != nil {
			return err
		}

		if err := r.Sessions.LockStudentExam(ctx, examID, studentID); err != nil {
			return err
		}

		taken, err := r.Sessions.HasCompleted(ctx, examID, studentID)
		if err != nil {
			return fmt.Errorf("check completed session: %w", err)
		}
		if taken {
			return ErrAlreadyTaken
		}

		existing, err := r.Sessions.FindIncomplete(ctx, examID, studentID)
		switch {
		case err == nil:
			out.Session = existing
			out.Resumed = true
		case errors.Is(err, repository.ErrNotFound):
			sess := &model.ExamSession{
				ID:        uuid.New(),
				StudentID: studentID,
				ExamID:    examID,
				StartTime: s.clock(),
				Answers:   model.Answers{},
			}
			if err := r.Sessions.Create(ctx, sess); err != nil {
				return err
			}
			out.Session = sess
		default:
			return fmt.Errorf("find open session: %w", err)
		}

		out.Exam = exam
		return nil
	})
	if err != nil {
		return nil, err
	}

	paper, err := s.paper(ctx, examID)
	if err != nil {
		return nil, err
	}
	if out.Exam.RandomizeQuestions {
		paper = ShuffleQuestions(paper, s.newRand())
	}
	out.Questions = paper

	evtType, outcome := EventSessionStarted, "new"
	if out.Resumed {
		evtType, outcome = EventSessionResumed, "resumed"
	}
	metrics.SessionsStarted.WithLabelValues(outcome).Inc()
	s.log.Info().
		Str("session_id", out.Session.ID.String()).
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Bool("resumed", out.Resumed).
		Msg("Exam session started")

	s.publish(ctx, MonitorEvent{
		Type:           evtType,
		ExamID:         examID,
		SessionID:      out.Session.ID,
		StudentID:      studentID,
		ViolationCount: out.Session.ViolationCount,
		Timestamp:      s.clock(),
	})

	return out, nil
}

// checkAvailable enforces is_active and the schedule window.
func checkAvailable(exam *model.Exam, now time.Time) error {
	if !exam.IsActive {
		return ErrExamInactive
	}
	started, ended := exam.WindowAt(now)
	if !started {
		return ErrExamNotStarted
	}
	if ended {
		return ErrExamEnded
	}
	return nil
}

// paper loads the student view of the exam's questions, through the cache.
// The cache version is read before the questions, so a concurrent
// invalidation leaves this Set on a retired version.
func (s *ExamSessionService) paper(ctx context.Context, examID uuid.UUID) ([]model.QuestionForStudent, error) {
	cached, version, ok, err := s.papers.Get(ctx, examID)
	cacheable := err == nil
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Paper cache read failed")
	} else if ok {
		return cached, nil
	}

	questions, err := s.uow.Repos().Questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	paper := make([]model.QuestionForStudent, len(questions))
	for i := range questions {
		paper[i] = questions[i].ForStudent()
	}

	if cacheable {
		if err := s.papers.Set(ctx, examID, version, paper); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Paper cache write failed")
		}
	}
	return paper, nil
}

// WarmPaper loads an exam's paper into the cache if it is not there yet.
func (s *ExamSessionService) WarmPaper(ctx context.Context, examID uuid.UUID) error {
	_, err := s.paper(ctx, examID)
	return err
}

// RecordViolation appends a violation and bumps the session's counter.
func (s *ExamSessionService) RecordViolation(
	ctx context.Context,
	studentID int,
	sessionID uuid.UUID,
	violationType model.ViolationType,
	details string,
) (out *ViolationOutcome, err error) {
	ctx, span := tracing.Start(ctx, "ExamSessionService.RecordViolation",
		attribute.String("session.id", sessionID.String()),
		attribute.String("violation.type", string(violationType)))
	defer func() { tracing.End(span, err) }()

	violationType = model.ViolationType(strings.TrimSpace(string(violationType)))
	if violationType == "" {
		return nil, invalid("violation_type", "violation_type is required")
	}
	if utf8.RuneCountInString(string(violationType)) > maxViolationTypeLen {
		return nil, invalid("violation_type", fmt.Sprintf("violation_type must be at most %d characters", maxViolationTypeLen))
	}

	var examID uuid.UUID
	err = s.uow.InTx(ctx, func(r Repos) error {
		sess, err := r.Sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return orNotFound(err, ErrSessionNotFound, "lock session")
		}
		if sess.StudentID != studentID {
			return ErrNotSessionOwner
		}
		if sess.IsCompleted {
			return ErrSessionCompleted
		}

		v := &model.Violation{
			ID:            uuid.New(),
			SessionID:     sessionID,
			ViolationType: violationType,
			Details:       details,
			Timestamp:     s.clock(),
		}
		if err := r.Violations.Create(ctx, v); err != nil {
			return err
		}

		count, err := r.Sessions.IncrementViolations(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrSessionCompleted
			}
			return err
		}

		examID = sess.ExamID
		out = &ViolationOutcome{
			Violation:      v,
			ViolationCount: count,
			ShouldSubmit:   count >= s.violationLimit,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	label := string(violationType)
	if !violationType.Known() {
		label = "other"
	}
	metrics.ViolationsRecorded.WithLabelValues(label).Inc()

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("student_id", studentID).
		Str("violation_type", string(violationType)).
		Int("violation_count", out.ViolationCount).
		Bool("should_submit", out.ShouldSubmit).
		Msg("Violation recorded")

	s.publish(ctx, MonitorEvent{
		Type:           EventViolation,
		ExamID:         examID,
		SessionID:      sessionID,
		StudentID:      studentID,
		ViolationType:  string(violationType),
		ViolationCount: out.ViolationCount,
		ShouldSubmit:   out.ShouldSubmit,
		Timestamp:      out.Violation.Timestamp,
	})

	return out, nil
}

// Submit completes the session, grades it and stores the result, all in one
// transaction. A second submit fails with ErrAlreadyCompleted.
func (s *ExamSessionService) Submit(ctx context.Context, studentID int, sessionID uuid.UUID, answers model.Answers) (result *model.Result, err error) {
	ctx, span := tracing.Start(ctx, "ExamSessionService.Submit",
		attribute.String("session.id", sessionID.String()),
		attribute.Int("student.id", studentID))
	defer func() { tracing.End(span, err) }()

	if answers == nil {
		answers = model.Answers{}
	}

	var autoSubmitted bool
	err = s.uow.InTx(ctx, func(r Repos) error {
		sess, err := r.Sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return orNotFound(err, ErrSessionNotFound, "lock session")
		}
		if sess.StudentID != studentID {
			return ErrNotSessionOwner
		}
		if sess.IsCompleted {
			return ErrAlreadyCompleted
		}
		// Start reads the completed and the open session under this lock.
		if err := r.Sessions.LockStudentExam(ctx, sess.ExamID, sess.StudentID); err != nil {
			return err
		}

		// Exam and questions are read under the same transaction, so grading
		// sees them as they are at submission time.
		exam, err := r.Exams.GetByID(ctx, sess.ExamID)
		if err != nil {
			return orNotFound(err, ErrExamNotFound, "get exam")
		}
		questions, err := r.Questions.ListByExam(ctx, exam.ID)
		if err != nil {
			return fmt.Errorf("list questions: %w", err)
		}

		end := s.clock()
		sess.Answers = answers
		sess.EndTime = &end
		sess.IsCompleted = true
		sess.AutoSubmitted = sess.ViolationCount >= s.violationLimit
		if err := r.Sessions.Complete(ctx, sess); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyCompleted
			}
			return err
		}

		gradeStart := time.Now()
		outcome := grading.Grade(grading.ConfigFor(exam), questions, answers)
		metrics.GradingDuration.Observe(time.Since(gradeStart).Seconds())

		res := &model.Result{
			ID:             uuid.New(),
			StudentID:      sess.StudentID,
			ExamID:         exam.ID,
			SessionID:      sess.ID,
			MarksObtained:  outcome.MarksObtained,
			TotalMarks:     outcome.TotalMarks,
			Percentage:     outcome.Percentage,
			Passed:         outcome.Passed,
			CorrectAnswers: outcome.Correct,
			WrongAnswers:   outcome.Wrong,
			Unanswered:     outcome.Unanswered,
			ViolationCount: sess.ViolationCount,
			ExamTitle:      exam.Title,
		}
		if err := r.Results.Create(ctx, res); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyCompleted
			}
			return err
		}

		result = res
		autoSubmitted = sess.AutoSubmitted
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSubmission(autoSubmitted, result.Passed)
	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("result_id", result.ID.String()).
		Int("student_id", studentID).
		Float64("marks_obtained", result.MarksObtained).
		Bool("passed", result.Passed).
		Bool("auto_submitted", autoSubmitted).
		Msg("Exam session submitted")

	pct := result.Percentage
	s.publish(ctx, MonitorEvent{
		Type:           EventSessionSubmitted,
		ExamID:         result.ExamID,
		SessionID:      sessionID,
		StudentID:      studentID,
		ViolationCount: result.ViolationCount,
		AutoSubmitted:  autoSubmitted,
		Percentage:     &pct,
		Timestamp:      s.clock(),
	})

	return result, nil
}

// ListViolations returns a session's violations to an admin or to the owning student.
func (s *ExamSessionService) ListViolations(ctx context.Context, p Principal, sessionID uuid.UUID) ([]model.Violation, error) {
	repos := s.uow.Repos()

	sess, err := repos.Sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, orNotFound(err, ErrSessionNotFound, "get session")
	}
	if !p.IsAdmin() && sess.StudentID != p.UserID {
		return nil, ErrNotSessionOwner
	}

	violations, err := repos.Violations.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	return violations, nil
}

// ListStudentExams returns active exams with the student's availability flags.
func (s *ExamSessionService) ListStudentExams(ctx context.Context, studentID int) ([]model.StudentExam, error) {
	repos := s.uow.Repos()

	exams, err := repos.Exams.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active exams: %w", err)
	}
	sessions, err := repos.Sessions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	completed := make(map[uuid.UUID]bool, len(sessions))
	open := make(map[uuid.UUID]bool, len(sessions))
	for i := range sessions {
		if sessions[i].IsCompleted {
			completed[sessions[i].ExamID] = true
		} else {
			open[sessions[i].ExamID] = true
		}
	}

	now := s.clock()
	list := make([]model.StudentExam, 0, len(exams))
	for i := range exams {
		exam := &exams[i]
		started, ended := exam.WindowAt(now)

		entry := model.StudentExam{
			Exam:         exam,
			IsAvailable:  started && !ended,
			AlreadyTaken: completed[exam.ID],
		}
		switch {
		case entry.AlreadyTaken:
			entry.Status = model.LobbyStatusCompleted
		case ended:
			entry.Status = model.LobbyStatusClosed
		case !started:
			entry.Status = model.LobbyStatusUpcoming
		case open[exam.ID]:
			entry.Status = model.LobbyStatusInProgress
		default:
			entry.Status = model.LobbyStatusAvailable
		}
		list = append(list, entry)
	}
	return list, nil
}

func (s *ExamSessionService) publish(ctx context.Context, evt MonitorEvent) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("event", evt.Type).Msg("Monitor publish failed")
	}
}
