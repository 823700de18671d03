// Package report exports a finished (or partial) attempt as a spreadsheet.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/abhisek/adaptest/internal/scoring"
	"github.com/abhisek/adaptest/internal/session"
)

// Sheet names written by WriteWorkbook.
const (
	SheetResults = "Results"
	SheetAnswers = "Answers"
)

var (
	resultsHeader = []any{"Section", "Title", "Type", "Correct", "Total", "Percentage"}
	answersHeader = []any{"Question", "Section", "Type", "Answer", "Key", "Correct", "Flagged", "Bookmarked", "Note"}
)

// WriteWorkbook writes the section results and per-question answers of the
// completed sections of s to path.
func WriteWorkbook(path string, s *session.Session, scorer scoring.Scorer) error {
	if s.Test == nil {
		return fmt.Errorf("write workbook: %w", session.ErrNoTest)
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", SheetResults)
	if _, err := f.NewSheet(SheetAnswers); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetAnswers, err)
	}

	if err := writeResults(f, s); err != nil {
		return err
	}
	if err := writeAnswers(f, s, scorer); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeResults(f *excelize.File, s *session.Session) error {
	row := 1
	if err := writeRow(f, SheetResults, row, resultsHeader); err != nil {
		return err
	}
	for _, id := range s.SectionOrder {
		sec, ok := s.Test.Section(id)
		if !ok {
			continue
		}
		r := s.SectionResults[id]
		row++
		if err := writeRow(f, SheetResults, row, []any{id, sec.Title, string(sec.Type), r.Correct, r.Total, r.Percentage}); err != nil {
			return err
		}
	}
	overall := s.Overall()
	row++
	return writeRow(f, SheetResults, row, []any{"Overall", s.Test.Title, "", overall.Correct, overall.Total, overall.Percentage})
}

func writeAnswers(f *excelize.File, s *session.Session, scorer scoring.Scorer) error {
	row := 1
	if err := writeRow(f, SheetAnswers, row, answersHeader); err != nil {
		return err
	}
	for _, id := range s.SectionOrder {
		sec, ok := s.Test.Section(id)
		if !ok {
			continue
		}
		for i := range sec.Questions {
			q := &sec.Questions[i]
			a, answered := s.Answers[q.ID]
			answer := ""
			if answered {
				answer = a.String()
			}
			row++
			values := []any{
				q.ID, sec.ID, string(q.Type), answer, q.CorrectAnswer.String(),
				yesNo(answered && scorer.Check(q, a)), yesNo(s.Flags[q.ID]), yesNo(s.Bookmarks[q.ID]), s.Notes[q.ID],
			}
			if err := writeRow(f, SheetAnswers, row, values); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
