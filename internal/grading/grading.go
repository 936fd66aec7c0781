// Package grading scores a submitted answer sheet against an exam's questions.
// It performs no I/O; the session engine feeds it rows read inside the
// submitting transaction.
package grading

import (
	"strings"

	"github.com/stemsi/examguard-backend/internal/model"
)

// Config is the slice of exam settings that affects scoring.
type Config struct {
	TotalMarks         int
	PassingMarks       int
	NegativeMarking    bool
	NegativeMarksValue float64
}

// ConfigFor extracts the scoring settings of an exam.
func ConfigFor(e *model.Exam) Config {
	return Config{
		TotalMarks:         e.TotalMarks,
		PassingMarks:       e.PassingMarks,
		NegativeMarking:    e.NegativeMarking,
		NegativeMarksValue: e.NegativeMarksValue,
	}
}

// Outcome is the graded sheet. Correct+Wrong+Unanswered equals the number of questions.
type Outcome struct {
	MarksObtained float64
	TotalMarks    int
	Percentage    float64
	Passed        bool
	Correct       int
	Wrong         int
	Unanswered    int
}

// Grade walks the exam's questions in order and scores each against answers.
// Answers for ids that are not in questions are ignored.
func Grade(cfg Config, questions []model.Question, answers model.Answers) Outcome {
	out := Outcome{TotalMarks: cfg.TotalMarks}
	var running float64

	for i := range questions {
		q := &questions[i]
		letter, answered := normalize(answers[q.ID.String()])

		switch {
		case !answered:
			out.Unanswered++
		case letter == normalizeKey(q.CorrectAnswer):
			out.Correct++
			running += float64(q.Marks)
		default:
			out.Wrong++
			if cfg.NegativeMarking {
				running -= cfg.NegativeMarksValue
			}
		}
	}

	// Negative marking may push the running total below zero; a sheet never scores negative.
	if running < 0 {
		running = 0
	}
	out.MarksObtained = running

	if cfg.TotalMarks > 0 {
		out.Percentage = 100 * running / float64(cfg.TotalMarks)
	}
	out.Passed = running >= float64(cfg.PassingMarks)

	return out
}

// normalize turns a raw JSON answer into an uppercase letter.
// null, missing and blank strings are unanswered. Any other non-string
// value counts as answered but can never match a key.
func normalize(v any) (string, bool) {
	switch a := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.ToUpper(strings.TrimSpace(a))
		return s, s != ""
	default:
		return "", true
	}
}

func normalizeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// MarksSum adds up the marks of questions.
func MarksSum(questions []model.Question) int {
	sum := 0
	for i := range questions {
		sum += questions[i].Marks
	}
	return sum
}

// CheckMarks reports whether totalMarks covers every question's marks.
// The catalog does not enforce this; callers decide what to do with a mismatch.
func CheckMarks(totalMarks int, questions []model.Question) (sum int, ok bool) {
	sum = MarksSum(questions)
	return sum, totalMarks >= sum
}

// ValidLetter reports whether s is an accepted correct_answer after normalization.
func ValidLetter(s string) (string, bool) {
	l := normalizeKey(s)
	switch l {
	case "A", "B", "C", "D":
		return l, true
	}
	return l, false
}
