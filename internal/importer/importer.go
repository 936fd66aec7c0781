// Package importer reads exam definitions from YAML files.
package importer

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/service"
	"github.com/stemsi/examguard-backend/internal/validator"
	"gopkg.in/yaml.v3"
)

// ExamFile is the on-disk shape of one exam.
type ExamFile struct {
	Title              string         `yaml:"title"`
	Description        string         `yaml:"description"`
	Duration           *int           `yaml:"duration"`
	TotalMarks         *int           `yaml:"total_marks"`
	PassingMarks       *int           `yaml:"passing_marks"`
	NegativeMarking    bool           `yaml:"negative_marking"`
	NegativeMarksValue *float64       `yaml:"negative_marks_value"`
	RandomizeQuestions bool           `yaml:"randomize_questions"`
	StartTime          string         `yaml:"start_time"`
	EndTime            string         `yaml:"end_time"`
	IsActive           *bool          `yaml:"is_active"`
	Questions          []QuestionFile `yaml:"questions"`
}

type QuestionFile struct {
	Question string `yaml:"question"`
	OptionA  string `yaml:"option_a"`
	OptionB  string `yaml:"option_b"`
	OptionC  string `yaml:"option_c"`
	OptionD  string `yaml:"option_d"`
	Answer   string `yaml:"answer"`
	Marks    *int   `yaml:"marks"`
}

// FieldErrors maps a field path to a readable message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "invalid exam file: " + strings.Join(parts, "; ")
}

var ErrEmpty = errors.New("exam file is empty")

// Parse decodes and validates one exam document. Unknown keys are rejected.
func Parse(r io.Reader) (*service.ExamImport, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f ExamFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return f.toImport()
}

func (f *ExamFile) toImport() (*service.ExamImport, error) {
	errs := FieldErrors{}

	start, err := parseTime(f.StartTime)
	if err != nil {
		errs["start_time"] = err.Error()
	}
	end, err := parseTime(f.EndTime)
	if err != nil {
		errs["end_time"] = err.Error()
	}

	in := &service.ExamImport{
		Exam: model.CreateExamRequest{
			Title:              strings.TrimSpace(f.Title),
			Description:        f.Description,
			DurationMinutes:    f.Duration,
			TotalMarks:         f.TotalMarks,
			PassingMarks:       f.PassingMarks,
			NegativeMarking:    f.NegativeMarking,
			NegativeMarksValue: f.NegativeMarksValue,
			RandomizeQuestions: f.RandomizeQuestions,
			StartTime:          start,
			EndTime:            end,
			IsActive:           f.IsActive,
		},
	}
	for field, msg := range validator.Struct(&in.Exam) {
		errs[field] = msg
	}

	if len(f.Questions) == 0 {
		errs["questions"] = "at least one question is required"
	}
	for i, q := range f.Questions {
		req := model.CreateQuestionRequest{
			QuestionText:  strings.TrimSpace(q.Question),
			OptionA:       q.OptionA,
			OptionB:       q.OptionB,
			OptionC:       q.OptionC,
			OptionD:       q.OptionD,
			CorrectAnswer: strings.TrimSpace(q.Answer),
			Marks:         q.Marks,
		}
		for field, msg := range validator.Struct(&req) {
			errs[fmt.Sprintf("questions[%d].%s", i, field)] = msg
		}
		in.Questions = append(in.Questions, req)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return in, nil
}

// parseTime accepts RFC 3339 or "2006-01-02 15:04" in UTC. Empty means unset.
func parseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		return nil, errors.New("must be RFC 3339 or YYYY-MM-DD HH:MM")
	}
	return &t, nil
}
