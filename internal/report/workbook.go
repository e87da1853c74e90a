// Package report renders read-only views of a ledger snapshot.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"classbook/internal/core"
)

// Sheet names in the exported workbook, in tab order.
const (
	SheetStudents = "Students"
	SheetSessions = "Sessions"
	SheetPayments = "Payments"
)

var (
	studentHeader = []any{"ID", "Name", "Balance", "Classes taken", "Joined", "Notes"}
	sessionHeader = []any{"ID", "Date", "Start", "End", "Attendees", "Completed"}
	paymentHeader = []any{"ID", "Date", "Student ID", "Student", "Amount", "Classes added", "Note"}
)

// WriteWorkbook writes snap as an .xlsx workbook with one sheet per
// collection. Attendee and payer names are resolved against the snapshot's
// students; ids with no matching student are written as-is.
func WriteWorkbook(w io.Writer, snap core.Snapshot) error {
	snap = snap.Normalize()
	names := make(map[string]string, len(snap.Students))
	for _, st := range snap.Students {
		names[st.ID] = st.Name
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetStudents); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, sheet := range []string{SheetSessions, SheetPayments} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}

	students := [][]any{studentHeader}
	for _, st := range snap.Students {
		students = append(students, []any{
			st.ID, st.Name, st.Balance, st.TotalClassesTaken, st.JoinedDate.String(), st.Notes,
		})
	}

	sessions := [][]any{sessionHeader}
	for _, cs := range snap.Sessions {
		attendees := make([]string, 0, len(cs.StudentIDs))
		for _, id := range cs.StudentIDs {
			attendees = append(attendees, displayName(names, id))
		}
		completed := "no"
		if cs.Completed {
			completed = "yes"
		}
		sessions = append(sessions, []any{
			cs.ID, cs.Date.String(), cs.StartTime, cs.EndTime, strings.Join(attendees, ", "), completed,
		})
	}

	payments := [][]any{paymentHeader}
	for _, p := range snap.Payments {
		payments = append(payments, []any{
			p.ID,
			p.Date.Format(core.DateLayout),
			p.StudentID,
			displayName(names, p.StudentID),
			float64(p.Amount.Cents) / 100,
			p.ClassesAdded,
			p.Note,
		})
	}

	for sheet, rows := range map[string][][]any{
		SheetStudents: students,
		SheetSessions: sessions,
		SheetPayments: payments,
	} {
		if err := writeRows(f, sheet, rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func displayName(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return id
}
