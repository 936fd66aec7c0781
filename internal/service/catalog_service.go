package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/grading"
	"github.com/stemsi/examguard-backend/internal/model"
)

// ExamImport is an exam together with its questions, created in one transaction.
type ExamImport struct {
	Exam      model.CreateExamRequest
	Questions []model.CreateQuestionRequest
}

// CatalogService manages exams and their questions.
type CatalogService struct {
	uow    UnitOfWork
	papers PaperCache
	log    zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(uow UnitOfWork, papers PaperCache, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		uow:    uow,
		papers: papers,
		log:    log.With().Str("component", "catalog_service").Logger(),
	}
}

// ListExams returns every exam, newest first.
func (s *CatalogService) ListExams(ctx context.Context) ([]model.Exam, error) {
	exams, err := s.uow.Repos().Exams.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// GetExam returns the admin view of an exam, answer keys included.
func (s *CatalogService) GetExam(ctx context.Context, id uuid.UUID) (*model.ExamDetail, error) {
	repos := s.uow.Repos()

	exam, err := repos.Exams.GetByID(ctx, id)
	if err != nil {
		return nil, orNotFound(err, ErrExamNotFound, "get exam")
	}
	questions, err := repos.Questions.ListByExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	sum, ok := grading.CheckMarks(exam.TotalMarks, questions)
	if !ok {
		s.log.Warn().
			Str("exam_id", id.String()).
			Int("total_marks", exam.TotalMarks).
			Int("question_marks", sum).
			Msg("Question marks exceed exam total_marks")
	}

	return &model.ExamDetail{Exam: exam, Questions: questions, QuestionMarksTotal: sum}, nil
}

// CreateExam validates req and stores a new exam owned by ownerID.
func (s *CatalogService) CreateExam(ctx context.Context, ownerID int, req model.CreateExamRequest) (*model.Exam, error) {
	exam, err := newExam(ownerID, req)
	if err != nil {
		return nil, err
	}
	if err := s.uow.Repos().Exams.Create(ctx, exam); err != nil {
		return nil, err
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Int("owner_id", ownerID).Msg("Exam created")
	return exam, nil
}

func newExam(ownerID int, req model.CreateExamRequest) (*model.Exam, error) {
	title := strings.TrimSpace(req.Title)
	switch {
	case title == "":
		return nil, invalid("title", "title is required")
	case req.DurationMinutes == nil:
		return nil, invalid("duration", "duration is required")
	case *req.DurationMinutes < 1:
		return nil, invalid("duration", "duration must be at least 1 minute")
	case req.TotalMarks == nil:
		return nil, invalid("total_marks", "total_marks is required")
	case *req.TotalMarks < 0:
		return nil, invalid("total_marks", "total_marks must not be negative")
	case req.PassingMarks == nil:
		return nil, invalid("passing_marks", "passing_marks is required")
	case *req.PassingMarks < 0:
		return nil, invalid("passing_marks", "passing_marks must not be negative")
	}

	exam := &model.Exam{
		ID:                 uuid.New(),
		Title:              title,
		Description:        req.Description,
		DurationMinutes:    *req.DurationMinutes,
		TotalMarks:         *req.TotalMarks,
		PassingMarks:       *req.PassingMarks,
		NegativeMarking:    req.NegativeMarking,
		RandomizeQuestions: req.RandomizeQuestions,
		StartTime:          utcPtr(req.StartTime),
		EndTime:            utcPtr(req.EndTime),
		IsActive:           true,
	}
	if ownerID > 0 {
		exam.CreatedBy = &ownerID
	}
	if req.NegativeMarksValue != nil {
		exam.NegativeMarksValue = *req.NegativeMarksValue
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}
	if err := checkExam(exam); err != nil {
		return nil, err
	}
	return exam, nil
}

// checkExam holds the cross-field rules shared by create and update.
func checkExam(e *model.Exam) error {
	if e.NegativeMarksValue < 0 {
		return invalid("negative_marks_value", "negative_marks_value must not be negative")
	}
	if e.StartTime != nil && e.EndTime != nil && !e.EndTime.After(*e.StartTime) {
		return invalid("end_time", "end_time must be after start_time")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// UpdateExam applies the fields present in req.
func (s *CatalogService) UpdateExam(ctx context.Context, id uuid.UUID, req model.UpdateExamRequest) (*model.Exam, error) {
	var exam *model.Exam
	err := s.uow.InTx(ctx, func(r Repos) error {
		var err error
		exam, err = r.Exams.GetByID(ctx, id)
		if err != nil {
			return orNotFound(err, ErrExamNotFound, "get exam")
		}

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return invalid("title", "title must not be empty")
			}
			exam.Title = title
		}
		if req.Description != nil {
			exam.Description = *req.Description
		}
		if req.DurationMinutes != nil {
			if *req.DurationMinutes < 1 {
				return invalid("duration", "duration must be at least 1 minute")
			}
			exam.DurationMinutes = *req.DurationMinutes
		}
		if req.TotalMarks != nil {
			if *req.TotalMarks < 0 {
				return invalid("total_marks", "total_marks must not be negative")
			}
			exam.TotalMarks = *req.TotalMarks
		}
		if req.PassingMarks != nil {
			if *req.PassingMarks < 0 {
				return invalid("passing_marks", "passing_marks must not be negative")
			}
			exam.PassingMarks = *req.PassingMarks
		}
		if req.NegativeMarking != nil {
			exam.NegativeMarking = *req.NegativeMarking
		}
		if req.NegativeMarksValue != nil {
			exam.NegativeMarksValue = *req.NegativeMarksValue
		}
		if req.RandomizeQuestions != nil {
			exam.RandomizeQuestions = *req.RandomizeQuestions
		}
		if req.StartTime.Set {
			exam.StartTime = utcPtr(req.StartTime.Time)
		}
		if req.EndTime.Set {
			exam.EndTime = utcPtr(req.EndTime.Time)
		}
		if req.IsActive != nil {
			exam.IsActive = *req.IsActive
		}

		if err := checkExam(exam); err != nil {
			return err
		}
		return orNotFound(r.Exams.Update(ctx, exam), ErrExamNotFound, "update exam")
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("exam_id", id.String()).Msg("Exam updated")
	return exam, nil
}

// DeleteExam removes an exam and everything attached to it.
func (s *CatalogService) DeleteExam(ctx context.Context, id uuid.UUID) error {
	if err := s.uow.Repos().Exams.Delete(ctx, id); err != nil {
		return orNotFound(err, ErrExamNotFound, "delete exam")
	}
	s.invalidatePaper(ctx, id)

	s.log.Info().Str("exam_id", id.String()).Msg("Exam deleted")
	return nil
}

// AddQuestion appends a question to an exam.
func (s *CatalogService) AddQuestion(ctx context.Context, examID uuid.UUID, req model.CreateQuestionRequest) (*model.Question, error) {
	q, err := newQuestion(examID, req)
	if err != nil {
		return nil, err
	}

	repos := s.uow.Repos()
	if _, err := repos.Exams.GetByID(ctx, examID); err != nil {
		return nil, orNotFound(err, ErrExamNotFound, "get exam")
	}
	if err := repos.Questions.Create(ctx, q); err != nil {
		return nil, err
	}
	s.invalidatePaper(ctx, examID)

	s.log.Info().Str("exam_id", examID.String()).Str("question_id", q.ID.String()).Msg("Question added")
	return q, nil
}

func newQuestion(examID uuid.UUID, req model.CreateQuestionRequest) (*model.Question, error) {
	q := &model.Question{
		ID:           uuid.New(),
		ExamID:       examID,
		QuestionText: strings.TrimSpace(req.QuestionText),
		OptionA:      req.OptionA,
		OptionB:      req.OptionB,
		OptionC:      req.OptionC,
		OptionD:      req.OptionD,
	}
	if q.QuestionText == "" {
		return nil, invalid("question_text", "question_text is required")
	}
	for i, opt := range []string{q.OptionA, q.OptionB, q.OptionC, q.OptionD} {
		if strings.TrimSpace(opt) == "" {
			field := "option_" + string(rune('a'+i))
			return nil, invalid(field, field+" is required")
		}
	}

	letter, ok := grading.ValidLetter(req.CorrectAnswer)
	if !ok {
		return nil, invalid("correct_answer", "correct_answer must be one of A, B, C, D")
	}
	q.CorrectAnswer = letter

	if req.Marks == nil {
		return nil, invalid("marks", "marks is required")
	}
	if *req.Marks < 1 {
		return nil, invalid("marks", "marks must be at least 1")
	}
	q.Marks = *req.Marks
	return q, nil
}

// UpdateQuestion applies the fields present in req.
func (s *CatalogService) UpdateQuestion(ctx context.Context, id uuid.UUID, req model.UpdateQuestionRequest) (*model.Question, error) {
	var q *model.Question
	err := s.uow.InTx(ctx, func(r Repos) error {
		var err error
		q, err = r.Questions.GetByID(ctx, id)
		if err != nil {
			return orNotFound(err, ErrQuestionNotFound, "get question")
		}

		if req.QuestionText != nil {
			text := strings.TrimSpace(*req.QuestionText)
			if text == "" {
				return invalid("question_text", "question_text must not be empty")
			}
			q.QuestionText = text
		}
		for _, f := range []struct {
			field string
			val   *string
			dst   *string
		}{
			{"option_a", req.OptionA, &q.OptionA},
			{"option_b", req.OptionB, &q.OptionB},
			{"option_c", req.OptionC, &q.OptionC},
			{"option_d", req.OptionD, &q.OptionD},
		} {
			if f.val == nil {
				continue
			}
			if strings.TrimSpace(*f.val) == "" {
				return invalid(f.field, f.field+" must not be empty")
			}
			*f.dst = *f.val
		}
		if req.CorrectAnswer != nil {
			letter, ok := grading.ValidLetter(*req.CorrectAnswer)
			if !ok {
				return invalid("correct_answer", "correct_answer must be one of A, B, C, D")
			}
			q.CorrectAnswer = letter
		}
		if req.Marks != nil {
			if *req.Marks < 1 {
				return invalid("marks", "marks must be at least 1")
			}
			q.Marks = *req.Marks
		}

		return orNotFound(r.Questions.Update(ctx, q), ErrQuestionNotFound, "update question")
	})
	if err != nil {
		return nil, err
	}
	s.invalidatePaper(ctx, q.ExamID)

	s.log.Info().Str("question_id", id.String()).Msg("Question updated")
	return q, nil
}

// DeleteQuestion removes a question from its exam.
func (s *CatalogService) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	examID, err := s.uow.Repos().Questions.Delete(ctx, id)
	if err != nil {
		return orNotFound(err, ErrQuestionNotFound, "delete question")
	}
	s.invalidatePaper(ctx, examID)

	s.log.Info().Str("question_id", id.String()).Msg("Question deleted")
	return nil
}

// ImportExam creates an exam and all of its questions atomically.
func (s *CatalogService) ImportExam(ctx context.Context, ownerID int, in ExamImport) (*model.ExamDetail, error) {
	exam, err := newExam(ownerID, in.Exam)
	if err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(in.Questions))
	for i, req := range in.Questions {
		q, err := newQuestion(exam.ID, req)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return nil, invalid(fmt.Sprintf("questions[%d].%s", i, ve.Field), ve.Message)
			}
			return nil, err
		}
		questions = append(questions, *q)
	}

	err = s.uow.InTx(ctx, func(r Repos) error {
		if err := r.Exams.Create(ctx, exam); err != nil {
			return err
		}
		for i := range questions {
			if err := r.Questions.Create(ctx, &questions[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	exam.QuestionCount = len(questions)

	sum, ok := grading.CheckMarks(exam.TotalMarks, questions)
	if !ok {
		s.log.Warn().
			Str("exam_id", exam.ID.String()).
			Int("total_marks", exam.TotalMarks).
			Int("question_marks", sum).
			Msg("Imported question marks exceed exam total_marks")
	}
	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questions)).
		Msg("Exam imported")

	return &model.ExamDetail{Exam: exam, Questions: questions, QuestionMarksTotal: sum}, nil
}

func (s *CatalogService) invalidatePaper(ctx context.Context, examID uuid.UUID) {
	if err := s.papers.Invalidate(ctx, examID); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Paper cache invalidation failed")
	}
}
