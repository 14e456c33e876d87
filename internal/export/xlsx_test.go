package export

import (
	"bytes"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/fleetdocs/internal/domain"
)

func day(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestUpcomingSurveysXLSX(t *testing.T) {
	list := &domain.UpcomingSurveys{
		Today: day(2026, 3, 1),
		Entries: []domain.UpcomingSurveyEntry{
			{
				ShipName:             "Ocean Star",
				CertificateName:      "Cargo Ship Safety Construction",
				CertificateAbbr:      "CSSC",
				NextSurveyDate:       day(2026, 3, 10),
				NextSurveyType:       domain.SurveyAnnual,
				WindowType:           "±3M",
				WindowOpen:           day(2025, 12, 10),
				WindowClose:          day(2026, 3, 10),
				DaysUntilWindowClose: 9,
				Status:               domain.StatusDueSoon,
			},
		},
		Total: 1,
		Count: 1,
	}

	data, err := UpcomingSurveysXLSX(list)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{
		"Ocean Star", "Cargo Ship Safety Construction", "CSSC", "2026-03-10", "Annual",
		"±3M", "2025-12-10", "2026-03-10", "9", "Due Soon",
	}, rows[1])
}

func TestUpcomingSurveysXLSX_Empty(t *testing.T) {
	data, err := UpcomingSurveysXLSX(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "upcoming-surveys-2026-03-01.xlsx", FileName(&domain.UpcomingSurveys{Today: day(2026, 3, 1)}))
	assert.Equal(t, "upcoming-surveys.xlsx", FileName(nil))
}
