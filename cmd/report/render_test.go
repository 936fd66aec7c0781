package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/model"
)

func TestRenderExamAnalytics(t *testing.T) {
	color.NoColor = true

	a := &model.ExamAnalytics{
		Exam:          &model.Exam{ID: uuid.New(), Title: "Chemistry Final"},
		TotalAttempts: 2,
		AvgPercentage: 62.5,
		PassRate:      50,
		PassedCount:   1,
		FailedCount:   1,
		Results: []model.Result{
			{StudentName: "Siti Aminah", MarksObtained: 9, TotalMarks: 10, Percentage: 90, Passed: true, CreatedAt: time.Now()},
			{StudentName: "Joko Susilo", MarksObtained: 3.5, TotalMarks: 10, Percentage: 35, ViolationCount: 5, CreatedAt: time.Now()},
		},
	}

	var buf bytes.Buffer
	renderExamAnalytics(&buf, a)
	out := buf.String()

	for _, want := range []string{"Chemistry Final", "62.50", "50.00", "Siti Aminah", "PASS", "FAIL", "3.50/10"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderOverviewEmpty(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	renderOverview(&buf, &model.Overview{}, nil)

	if !strings.Contains(buf.String(), "(none)") {
		t.Errorf("expected empty results marker:\n%s", buf.String())
	}
}
