package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/model"
)

func intPtr(v int) *int { return &v }

func validExamRequest() model.CreateExamRequest {
	return model.CreateExamRequest{
		Title:           "  Biology  ",
		DurationMinutes: intPtr(45),
		TotalMarks:      intPtr(20),
		PassingMarks:    intPtr(10),
	}
}

func validQuestionRequest(answer string) model.CreateQuestionRequest {
	return model.CreateQuestionRequest{
		QuestionText:  "Which organelle makes ATP?",
		OptionA:       "Nucleus",
		OptionB:       "Mitochondria",
		OptionC:       "Ribosome",
		OptionD:       "Golgi",
		CorrectAnswer: answer,
		Marks:         intPtr(2),
	}
}

func TestCreateExamDefaults(t *testing.T) {
	db := newMemDB()
	svc := NewCatalogService(db, NopPaperCache{}, zerolog.Nop())

	exam, err := svc.CreateExam(context.Background(), 3, validExamRequest())
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	if exam.Title != "Biology" {
		t.Errorf("title = %q, want trimmed", exam.Title)
	}
	if !exam.IsActive {
		t.Error("new exams should be active by default")
	}
	if exam.CreatedBy == nil || *exam.CreatedBy != 3 {
		t.Errorf("created_by = %v, want 3", exam.CreatedBy)
	}
}

func TestCreateExamValidation(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		mut       func(r *model.CreateExamRequest)
		wantField string
	}{
		{"blank title", func(r *model.CreateExamRequest) { r.Title = "   " }, "title"},
		{"missing duration", func(r *model.CreateExamRequest) { r.DurationMinutes = nil }, "duration"},
		{"zero duration", func(r *model.CreateExamRequest) { r.DurationMinutes = intPtr(0) }, "duration"},
		{"missing total", func(r *model.CreateExamRequest) { r.TotalMarks = nil }, "total_marks"},
		{"negative passing", func(r *model.CreateExamRequest) { r.PassingMarks = intPtr(-1) }, "passing_marks"},
		{"negative penalty", func(r *model.CreateExamRequest) {
			v := -0.5
			r.NegativeMarksValue = &v
		}, "negative_marks_value"},
		{"end before start", func(r *model.CreateExamRequest) {
			end := start.Add(-time.Hour)
			r.StartTime, r.EndTime = &start, &end
		}, "end_time"},
		{"end equals start", func(r *model.CreateExamRequest) {
			r.StartTime, r.EndTime = &start, &start
		}, "end_time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewCatalogService(newMemDB(), NopPaperCache{}, zerolog.Nop())
			req := validExamRequest()
			tt.mut(&req)

			_, err := svc.CreateExam(context.Background(), 1, req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestUpdateExamPartial(t *testing.T) {
	db := newMemDB()
	svc := NewCatalogService(db, NopPaperCache{}, zerolog.Nop())
	ctx := context.Background()

	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	req := validExamRequest()
	req.StartTime = &start
	exam, err := svc.CreateExam(ctx, 1, req)
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}

	var upd model.UpdateExamRequest
	if err := json.Unmarshal([]byte(`{"passing_marks": 12, "start_time": null}`), &upd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, err := svc.UpdateExam(ctx, exam.ID, upd)
	if err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}
	if got.PassingMarks != 12 {
		t.Errorf("passing_marks = %d, want 12", got.PassingMarks)
	}
	if got.StartTime != nil {
		t.Errorf("start_time = %v, want cleared", got.StartTime)
	}
	if got.Title != "Biology" || got.TotalMarks != 20 {
		t.Errorf("untouched fields changed: %+v", got)
	}

	if _, err := svc.UpdateExam(ctx, uuid.New(), upd); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("unknown exam err = %v, want ErrExamNotFound", err)
	}
}

func TestUpdateExamRejectsInvertedWindow(t *testing.T) {
	db := newMemDB()
	svc := NewCatalogService(db, NopPaperCache{}, zerolog.Nop())
	ctx := context.Background()
	exam, _ := svc.CreateExam(ctx, 1, validExamRequest())

	var upd model.UpdateExamRequest
	body := `{"start_time": "2026-06-01T10:00:00Z", "end_time": "2026-06-01T09:00:00Z"}`
	if err := json.Unmarshal([]byte(body), &upd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := svc.UpdateExam(ctx, exam.ID, upd); KindOf(err) != KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}

	stored, _ := db.Repos().Exams.GetByID(ctx, exam.ID)
	if stored.StartTime != nil || stored.EndTime != nil {
		t.Fatal("rejected update was persisted")
	}
}

func TestQuestionLifecycleInvalidatesPaper(t *testing.T) {
	db := newMemDB()
	papers := newMemPaperCache()
	svc := NewCatalogService(db, papers, zerolog.Nop())
	ctx := context.Background()

	exam, _ := svc.CreateExam(ctx, 1, validExamRequest())
	q, err := svc.AddQuestion(ctx, exam.ID, validQuestionRequest(" b "))
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if q.CorrectAnswer != "B" {
		t.Errorf("correct_answer = %q, want normalized B", q.CorrectAnswer)
	}

	_ = papers.Set(ctx, exam.ID, 0, []model.QuestionForStudent{q.ForStudent()})
	answer := "C"
	if _, err := svc.UpdateQuestion(ctx, q.ID, model.UpdateQuestionRequest{CorrectAnswer: &answer}); err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	if papers.has(exam.ID) {
		t.Error("update did not invalidate the cached paper")
	}

	_ = papers.Set(ctx, exam.ID, 0, []model.QuestionForStudent{q.ForStudent()})
	if err := svc.DeleteQuestion(ctx, q.ID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if papers.has(exam.ID) {
		t.Error("delete did not invalidate the cached paper")
	}
	if err := svc.DeleteQuestion(ctx, q.ID); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("second delete err = %v, want ErrQuestionNotFound", err)
	}
}

func TestAddQuestionValidation(t *testing.T) {
	db := newMemDB()
	svc := NewCatalogService(db, NopPaperCache{}, zerolog.Nop())
	ctx := context.Background()
	exam, _ := svc.CreateExam(ctx, 1, validExamRequest())

	tests := []struct {
		name      string
		mut       func(r *model.CreateQuestionRequest)
		wantField string
	}{
		{"bad letter", func(r *model.CreateQuestionRequest) { r.CorrectAnswer = "E" }, "correct_answer"},
		{"blank option c", func(r *model.CreateQuestionRequest) { r.OptionC = " " }, "option_c"},
		{"zero marks", func(r *model.CreateQuestionRequest) { r.Marks = intPtr(0) }, "marks"},
		{"blank text", func(r *model.CreateQuestionRequest) { r.QuestionText = "" }, "question_text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validQuestionRequest("A")
			tt.mut(&req)
			_, err := svc.AddQuestion(ctx, exam.ID, req)
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.wantField {
				t.Fatalf("err = %v, want ValidationError on %q", err, tt.wantField)
			}
		})
	}

	if _, err := svc.AddQuestion(ctx, uuid.New(), validQuestionRequest("A")); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("unknown exam err = %v, want ErrExamNotFound", err)
	}
}

func TestImportExam(t *testing.T) {
	db := newMemDB()
	svc := NewCatalogService(db, NopPaperCache{}, zerolog.Nop())
	ctx := context.Background()

	in := ExamImport{
		Exam:      validExamRequest(),
		Questions: []model.CreateQuestionRequest{validQuestionRequest("A"), validQuestionRequest("d")},
	}
	detail, err := svc.ImportExam(ctx, 1, in)
	if err != nil {
		t.Fatalf("ImportExam: %v", err)
	}
	if detail.QuestionCount != 2 || detail.QuestionMarksTotal != 4 {
		t.Errorf("detail = count %d, marks %d", detail.QuestionCount, detail.QuestionMarksTotal)
	}

	got, err := svc.GetExam(ctx, detail.Exam.ID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if len(got.Questions) != 2 || got.Questions[1].CorrectAnswer != "D" {
		t.Errorf("stored questions = %+v", got.Questions)
	}
}

func TestImportExamRejectsBadQuestionAtomically(t *testing.T) {
	db := newMemDB()
	svc := NewCatalogService(db, NopPaperCache{}, zerolog.Nop())
	ctx := context.Background()

	bad := validQuestionRequest("Z")
	in := ExamImport{
		Exam:      validExamRequest(),
		Questions: []model.CreateQuestionRequest{validQuestionRequest("A"), bad},
	}
	_, err := svc.ImportExam(ctx, 1, in)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "questions[1].correct_answer" {
		t.Fatalf("err = %v, want ValidationError on questions[1].correct_answer", err)
	}

	exams, _ := svc.ListExams(ctx)
	if len(exams) != 0 {
		t.Fatalf("exams stored after failed import: %d", len(exams))
	}
}
