// Package export renders thesis overviews as spreadsheet and deadline calendar.
package export

import (
	"bytes"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/thesispool/thesispool/core/thesis"
)

const (
	sheetName  = "Abschlussarbeiten"
	dateLayout = "02.01.2006"
)

var overviewHeader = []string{
	"Matrikelnr", "Name", "Vorname", "Studiengang", "Titel", "Betreuer", "Zweitkorrektor",
	"Beginn", "Abgabe", "Verlängert bis", "Abgegeben am", "Status", "Note", "Genehmigung",
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func approvalLabel(s thesis.ApprovalStatus) string {
	switch s {
	case thesis.ApprovalApproved:
		return "genehmigt"
	case thesis.ApprovalRejected:
		return "abgelehnt"
	}
	return "offen"
}

func overviewRow(th thesis.Thesis) []interface{} {
	var assessor, grade string
	if th.Assessor != nil {
		assessor = th.Assessor.ShortName()
	}
	if g, ok := th.OverallGrade(); ok {
		grade = thesis.FormatGrade(g)
	}
	return []interface{}{
		th.Student.ID,
		th.Student.LastName,
		th.Student.FirstName,
		th.Program,
		th.Title,
		th.Supervisor.ShortName(),
		assessor,
		formatDate(th.BeginDate),
		formatDate(th.DueDate),
		formatDate(th.ProlongationDate.Time),
		formatDate(th.HandedInDate.Time),
		th.Status.Label(),
		grade,
		approvalLabel(th.ApprovalStatus),
	}
}

// Overview renders the theses as an xlsx workbook, one row per thesis.
func Overview(theses []thesis.Thesis) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, errors.Wrap(err, "creating sheet")
	}
	f.SetActiveSheet(idx)
	if err = f.DeleteSheet("Sheet1"); err != nil {
		return nil, errors.Wrap(err, "deleting default sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating header style")
	}

	if err = f.SetSheetRow(sheetName, "A1", &overviewHeader); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}
	lastCol, err := excelize.ColumnNumberToName(len(overviewHeader))
	if err != nil {
		return nil, errors.Wrap(err, "naming last column")
	}
	if err = f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, errors.Wrap(err, "styling header")
	}
	if err = f.SetColWidth(sheetName, "A", lastCol, 14); err != nil {
		return nil, errors.Wrap(err, "sizing columns")
	}
	if err = f.SetColWidth(sheetName, "E", "E", 48); err != nil {
		return nil, errors.Wrap(err, "sizing title column")
	}

	for i, th := range theses {
		row := overviewRow(th)
		if err = f.SetSheetRow(sheetName, "A"+strconv.Itoa(i+2), &row); err != nil {
			return nil, errors.Wrap(err, "writing row")
		}
	}

	var buf bytes.Buffer
	if err = f.Write(&buf); err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}
