package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/fleetdocs/internal/domain"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetName       = "Upcoming Surveys"
)

var headers = []string{
	"Ship", "Certificate", "Abbreviation", "Next Survey", "Survey Type",
	"Window", "Window Open", "Window Close", "Days Left", "Status",
}

// status fill colours, most urgent first
var statusFills = map[string]string{
	domain.StatusOverdue:  "F8CBAD",
	domain.StatusCritical: "FCE4D6",
	domain.StatusDueSoon:  "FFF2CC",
}

// UpcomingSurveysXLSX renders the worklist as a single-sheet workbook.
func UpcomingSurveysXLSX(list *domain.UpcomingSurveys) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return nil, err
	}
	rowStyles := make(map[string]int, len(statusFills))
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return nil, err
		}
		rowStyles[status] = id
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, err
	}

	var entries []domain.UpcomingSurveyEntry
	if list != nil {
		entries = list.Entries
	}
	for i, e := range entries {
		row := i + 2
		cell := fmt.Sprintf("A%d", row)
		values := []interface{}{
			e.ShipName,
			e.CertificateName,
			e.CertificateAbbr,
			e.NextSurveyDate.String(),
			e.NextSurveyType,
			e.WindowType,
			e.WindowOpen.String(),
			e.WindowClose.String(),
			e.DaysUntilWindowClose,
			e.Status,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, err
		}
		if style, ok := rowStyles[e.Status]; ok {
			if err := f.SetCellStyle(sheetName, cell, fmt.Sprintf("%s%d", lastCol, row), style); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetColWidth(sheetName, "A", "C", 28); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "D", lastCol, 14); err != nil {
		return nil, err
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the download name for a worklist exported on the given day.
func FileName(list *domain.UpcomingSurveys) string {
	if list == nil {
		return "upcoming-surveys.xlsx"
	}
	return fmt.Sprintf("upcoming-surveys-%s.xlsx", list.Today.String())
}
