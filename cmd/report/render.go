package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/stemsi/examguard-backend/internal/model"
)

var (
	title = color.New(color.FgYellow, color.Bold)
	good  = color.New(color.FgGreen)
	bad   = color.New(color.FgRed)
)

func renderOverview(w io.Writer, o *model.Overview, exams []model.Exam) {
	title.Fprintln(w, "\nSystem Overview")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Students", "Exams", "Results", "Avg %"})
	table.Append([]string{
		strconv.Itoa(o.TotalStudents),
		strconv.Itoa(o.TotalExams),
		strconv.Itoa(o.TotalResults),
		fmt.Sprintf("%.2f", o.AvgPercentage),
	})
	table.Render()

	title.Fprintln(w, "\nExams")
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Title", "Questions", "Total", "Pass", "Active"})
	for _, e := range exams {
		table.Append([]string{
			e.ID.String(),
			e.Title,
			strconv.Itoa(e.QuestionCount),
			strconv.Itoa(e.TotalMarks),
			strconv.Itoa(e.PassingMarks),
			strconv.FormatBool(e.IsActive),
		})
	}
	table.Render()

	title.Fprintln(w, "\nRecent Results")
	renderResults(w, o.RecentResults, true)
}

func renderExamAnalytics(w io.Writer, a *model.ExamAnalytics) {
	title.Fprintf(w, "\n%s\n", a.Exam.Title)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Attempts", "Avg %", "Pass Rate %", "Passed", "Failed"})
	table.Append([]string{
		strconv.Itoa(a.TotalAttempts),
		fmt.Sprintf("%.2f", a.AvgPercentage),
		fmt.Sprintf("%.2f", a.PassRate),
		strconv.Itoa(a.PassedCount),
		strconv.Itoa(a.FailedCount),
	})
	table.Render()

	title.Fprintln(w, "\nResults")
	renderResults(w, a.Results, false)
}

func renderResults(w io.Writer, results []model.Result, withExam bool) {
	if len(results) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}

	header := []string{"Student", "Marks", "Percentage", "Status", "Violations", "Submitted"}
	if withExam {
		header = append([]string{"Exam"}, header...)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	for _, r := range results {
		status := good.Sprint("PASS")
		if !r.Passed {
			status = bad.Sprint("FAIL")
		}
		row := []string{
			r.StudentName,
			fmt.Sprintf("%.2f/%d", r.MarksObtained, r.TotalMarks),
			fmt.Sprintf("%.2f", r.Percentage),
			status,
			strconv.Itoa(r.ViolationCount),
			r.CreatedAt.Format("2006-01-02 15:04"),
		}
		if withExam {
			row = append([]string{r.ExamTitle}, row...)
		}
		table.Append(row)
	}
	table.Render()
}
