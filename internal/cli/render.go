package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"sqlquest/internal/grading"
	"sqlquest/internal/lessons"
	"sqlquest/internal/sqlrun"
)

const expectedPreviewRows = 5

var titleStyle = pterm.NewStyle(pterm.FgCyan, pterm.Bold)

func renderResult(out io.Writer, result sqlrun.Result) error {
	if result.IsWrite() {
		fmt.Fprintln(out, pterm.Success.Sprint(result.Message))
		return nil
	}
	if len(result.Rows) == 0 {
		fmt.Fprintln(out, pterm.Info.Sprint("Query returned no rows."))
		return nil
	}

	if err := renderRows(out, result.Rows); err != nil {
		return err
	}

	summary := fmt.Sprintf("%d row(s)", len(result.Rows))
	if len(result.Rows) >= sqlrun.MaxRows {
		summary += fmt.Sprintf(" (limited to %d rows)", sqlrun.MaxRows)
	}
	fmt.Fprintln(out, summary)
	return nil
}

func renderRows(out io.Writer, rows []sqlrun.Row) error {
	header := rows[0].Columns()
	data := make([][]string, 0, len(rows)+1)
	data = append(data, header)
	for _, row := range rows {
		cells := make([]string, 0, len(header))
		for _, column := range header {
			value, _ := row.Get(column)
			cells = append(cells, formatCell(value))
		}
		data = append(data, cells)
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, table)
	return nil
}

func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case []byte:
		return fmt.Sprintf("x'%X'", v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func renderLessonList(out io.Writer, catalog *lessons.Catalog, categories []lessons.Category, completed map[string]bool) error {
	for _, category := range categories {
		items := catalog.LessonsByCategory(category.ID)
		done := 0
		data := [][]string{{"ID", "Title", "Difficulty", "Done"}}
		for _, lesson := range items {
			mark := ""
			if completed[lesson.ID] {
				mark = "✓"
				done++
			}
			data = append(data, []string{lesson.ID, lesson.Title, string(lesson.Difficulty), mark})
		}

		fmt.Fprintf(out, "%s %s (%d/%d)\n", category.Icon, titleStyle.Sprint(category.Title), done, len(items))
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, table)
		fmt.Fprintln(out)
	}
	return nil
}

type lessonView struct {
	Lesson     lessons.Lesson
	Category   lessons.Category
	Completed  bool
	Tables     []sqlrun.TableInfo
	ShowHint   bool
	ShowSchema bool
}

func renderLesson(out io.Writer, view lessonView) error {
	lesson := view.Lesson
	status := ""
	if view.Completed {
		status = " " + pterm.Success.Sprint("completed")
	}

	fmt.Fprintf(out, "%s%s\n", titleStyle.Sprint(lesson.Title), status)
	fmt.Fprintf(out, "%s · %s · %s\n\n", lesson.ID, view.Category.Title, lesson.Difficulty)
	if lesson.Description != "" {
		fmt.Fprintln(out, lesson.Description)
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Task: %s\n", lesson.Task)
	if lesson.ExpectedRowCount != nil {
		fmt.Fprintf(out, "Expected: %d row(s)\n", *lesson.ExpectedRowCount)
	}

	if len(view.Tables) > 0 {
		fmt.Fprintln(out)
		renderTables(out, view.Tables)
	}

	if len(lesson.ExpectedOutput) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Expected output:")
		preview := lesson.ExpectedOutput
		if len(preview) > expectedPreviewRows {
			preview = preview[:expectedPreviewRows]
		}
		if err := renderRows(out, preview); err != nil {
			return err
		}
		if len(lesson.ExpectedOutput) > len(preview) {
			fmt.Fprintf(out, "... %d more row(s)\n", len(lesson.ExpectedOutput)-len(preview))
		}
	}

	if view.ShowHint && lesson.Hint != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, pterm.Info.Sprint("Hint: "+lesson.Hint))
	}
	if view.ShowSchema {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Schema:")
		fmt.Fprintln(out, strings.TrimSpace(lesson.Schema))
	}
	return nil
}

func renderTables(out io.Writer, tables []sqlrun.TableInfo) {
	fmt.Fprintln(out, "Tables:")
	for _, table := range tables {
		columns := make([]string, 0, len(table.Columns))
		for _, column := range table.Columns {
			label := column.Name
			if column.Type != "" {
				label += " " + column.Type
			}
			if column.PK {
				label += " PK"
			}
			columns = append(columns, label)
		}
		fmt.Fprintf(out, "  %s(%s)\n", table.Name, strings.Join(columns, ", "))
	}
}

func renderVerdict(out io.Writer, lesson lessons.Lesson, verdict grading.Verdict, result *sqlrun.Result) {
	if verdict.Correct {
		fmt.Fprintln(out, pterm.Success.Sprint("Correct! Lesson "+lesson.ID+" completed."))
		if lesson.Explanation != "" {
			fmt.Fprintln(out, lesson.Explanation)
		}
		return
	}
	fmt.Fprintln(out, pterm.Warning.Sprint("Not quite: "+verdictReason(lesson, verdict, result)))
}

func verdictReason(lesson lessons.Lesson, verdict grading.Verdict, result *sqlrun.Result) string {
	switch verdict.Reason {
	case grading.ReasonRowCountMismatch:
		got := 0
		if result != nil {
			got = len(result.Rows)
		}
		return fmt.Sprintf("expected %d row(s), got %d", *lesson.ExpectedRowCount, got)
	case grading.ReasonNoRows:
		return "the query returned no rows"
	case grading.ReasonNoExpectation:
		return "the result does not match the expected query"
	default:
		return verdict.Reason
	}
}
