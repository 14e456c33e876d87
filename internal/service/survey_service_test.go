package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/metrics"
	"github.com/andresuchdata/fleetdocs/internal/storage"
)

func seedFleet(t *testing.T, f *fixture) {
	t.Helper()
	ship := createOceanStar(t, f)
	addFullTerm(t, f, ship.ID)

	_, err := f.certificates(CertificateServiceOptions{}).Create(context.Background(), "acme", ship.ID, CertificateInput{
		Name:       "Interim ISSC",
		TermType:   "Interim",
		IssuedDate: datePtr(2025, time.January, 1),
		ValidDate:  datePtr(2025, time.May, 1),
	})
	require.NoError(t, err)
}

func TestSurveyService_UpcomingUsesTodayAndCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedFleet(t, f)
	f.cache.invalidated = nil

	list, err := f.surveys.Upcoming(ctx, domain.UpcomingSurveyFilter{CompanyID: "acme"})
	require.NoError(t, err)

	assert.Equal(t, date(2025, time.June, 1), list.Today)
	require.Len(t, list.Entries, 2)
	assert.Equal(t, "Interim ISSC", list.Entries[0].CertificateName)
	assert.Equal(t, domain.StatusOverdue, list.Entries[0].Status)
	assert.Equal(t, domain.StatusDueSoon, list.Entries[1].Status)
	assert.Equal(t, 19, list.Entries[1].DaysUntilWindowClose)

	again, err := f.surveys.Upcoming(ctx, domain.UpcomingSurveyFilter{CompanyID: "acme"})
	require.NoError(t, err)
	assert.Same(t, list, again)
	assert.Equal(t, 2, f.cache.gets)
}

func TestSurveyService_CacheFailureFallsThrough(t *testing.T) {
	f := newFixture(t)
	seedFleet(t, f)
	f.cache.failGet = true

	list, err := f.surveys.Upcoming(context.Background(), domain.UpcomingSurveyFilter{CompanyID: "acme", Status: "overdue"})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, 2, list.Total)
}

func TestSurveyService_ExplicitToday(t *testing.T) {
	f := newFixture(t)
	seedFleet(t, f)

	list, err := f.surveys.Upcoming(context.Background(), domain.UpcomingSurveyFilter{
		CompanyID: "acme",
		Today:     date(2025, time.April, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.April, 1), list.Today)
	assert.Equal(t, domain.StatusDueSoon, list.Entries[0].Status)
}

func TestSurveyService_ExportXLSXArchivesCopy(t *testing.T) {
	f := newFixture(t)
	seedFleet(t, f)
	archive := newMemArchive()
	f.surveys.archive = archive

	data, name, err := f.surveys.ExportXLSX(context.Background(), domain.UpcomingSurveyFilter{CompanyID: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "upcoming-surveys-2025-06-01.xlsx", name)
	assert.Equal(t, data, archive.objects[storage.ExportKey("acme", name)])

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(wb.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSurveyService_Digest(t *testing.T) {
	f := newFixture(t)
	seedFleet(t, f)

	d, err := f.surveys.Digest(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, d.Overdue, 1)
	assert.Empty(t, d.Critical)
	assert.Equal(t, 1, d.DueSoon)
	assert.Equal(t, 2, d.Total)
}

func TestSurveyService_UpcomingGaugeOnlyFromDigest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedFleet(t, f)
	m := metrics.New()
	f.surveys.metrics = m

	_, err := f.surveys.Upcoming(ctx, domain.UpcomingSurveyFilter{CompanyID: "acme", Today: date(2024, time.January, 1)})
	require.NoError(t, err)
	_, err = f.surveys.Upcoming(ctx, domain.UpcomingSurveyFilter{CompanyID: "acme"})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(m.Registry(), "fleetdocs_survey_upcoming")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.surveys.Digest(ctx, "acme")
	require.NoError(t, err)

	n, err = testutil.GatherAndCount(m.Registry(), "fleetdocs_survey_upcoming")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSurveyService_UnknownStatusFilter(t *testing.T) {
	f := newFixture(t)

	_, err := f.surveys.Upcoming(context.Background(), domain.UpcomingSurveyFilter{CompanyID: "acme", Status: "urgent"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "status", vErr.Field)

	_, err = f.surveys.Upcoming(context.Background(), domain.UpcomingSurveyFilter{CompanyID: "acme", Status: "due_soon"})
	assert.NoError(t, err)
}
