package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/repository"
	"github.com/andresuchdata/fleetdocs/internal/survey"
)

func createOceanStar(t *testing.T, f *fixture) *domain.Ship {
	t.Helper()
	ship, err := f.fleet.Create(context.Background(), "acme", ShipInput{
		Name:        " Ocean Star ",
		IMONumber:   "9123456",
		LastDocking: datePtr(2023, time.June, 15),
	})
	require.NoError(t, err)
	return ship
}

func addFullTerm(t *testing.T, f *fixture, shipID string) *domain.Certificate {
	t.Helper()
	cert, err := f.certificates(CertificateServiceOptions{}).Create(context.Background(), "acme", shipID, CertificateInput{
		Name:         "Cargo Ship Safety Construction",
		Abbreviation: "CSSC",
		TermType:     "full term",
		IssuedDate:   datePtr(2024, time.March, 20),
		ValidDate:    datePtr(2029, time.March, 20),
	})
	require.NoError(t, err)
	return cert
}

func TestShipService_CreateSchedulesDocking(t *testing.T) {
	f := newFixture(t)

	ship := createOceanStar(t, f)

	assert.Equal(t, "Ocean Star", ship.Name)
	assert.NotEmpty(t, ship.ID)
	require.NotNil(t, ship.NextDocking)
	assert.Equal(t, date(2025, time.December, 15), ship.NextDocking.Date)
	assert.Equal(t, survey.MethodInterval, ship.NextDocking.CalculationMethod)
	assert.Equal(t, []string{"acme"}, f.cache.invalidated)

	stored, err := f.fleet.Get(context.Background(), "acme", ship.ID)
	require.NoError(t, err)
	assert.Equal(t, ship.NextDocking, stored.NextDocking)
}

func TestShipService_CreateValidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.fleet.Create(context.Background(), "acme", ShipInput{Name: "  "})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = f.fleet.Create(context.Background(), "acme", ShipInput{
		Name:        "Ocean Star",
		LastDocking: &civilInvalid,
	})
	var dErr *calendar.InvalidDateError
	assert.ErrorAs(t, err, &dErr)
}

func TestShipService_CompanyScope(t *testing.T) {
	f := newFixture(t)
	ship := createOceanStar(t, f)

	_, err := f.fleet.Get(context.Background(), "other", ship.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, f.fleet.Delete(context.Background(), "other", ship.ID), repository.ErrNotFound)
	require.NoError(t, f.fleet.Delete(context.Background(), "acme", ship.ID))

	ships, err := f.fleet.List(context.Background(), "acme")
	require.NoError(t, err)
	assert.NotNil(t, ships)
	assert.Empty(t, ships)
}

func TestShipService_AnniversaryLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ship := createOceanStar(t, f)
	cert := addFullTerm(t, f, ship.ID)

	// Adding a Full Term certificate derives the anniversary.
	stored, err := f.fleet.Get(ctx, "acme", ship.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Anniversary)
	assert.Equal(t, domain.SourceAuto, stored.Anniversary.Source)
	assert.Equal(t, 20, stored.Anniversary.Day)
	assert.Equal(t, time.March, stored.Anniversary.Month)
	assert.Equal(t, cert.ID, stored.Anniversary.DerivedFrom)
	require.NotNil(t, stored.SpecialSurveyCycle)
	assert.Equal(t, date(2029, time.March, 20), stored.SpecialSurveyCycle.To)
	assert.Equal(t, date(2025, time.June, 20), *cert.NextSurveyDate)

	// Manual override moves the certificate's next survey.
	_, err = f.fleet.SetManualAnniversary(ctx, "acme", ship.ID, 15, time.January)
	require.NoError(t, err)
	got, err := f.certs.GetCertificate(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.April, 15), *got.NextSurveyDate)

	// Recalculation keeps the override.
	result, err := f.fleet.RecalculateAnniversary(ctx, "acme", ship.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, domain.SourceManual, result.Source)
	assert.Equal(t, 15, result.Anniversary.Day)

	// Clearing it goes back to the derived date.
	result, err = f.fleet.ClearAnniversaryOverride(ctx, "acme", ship.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAuto, result.Source)
	got, err = f.certs.GetCertificate(ctx, cert.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.June, 20), *got.NextSurveyDate)
}

func TestShipService_SetManualAnniversaryRejectsBadDay(t *testing.T) {
	f := newFixture(t)
	ship := createOceanStar(t, f)

	_, err := f.fleet.SetManualAnniversary(context.Background(), "acme", ship.ID, 30, time.February)
	var dErr *calendar.InvalidDateError
	assert.ErrorAs(t, err, &dErr)

	_, err = f.fleet.SetManualAnniversary(context.Background(), "acme", ship.ID, 1, 13)
	assert.ErrorAs(t, err, &dErr)
}

func TestShipService_RecalculateWithoutFullTerm(t *testing.T) {
	f := newFixture(t)
	ship := createOceanStar(t, f)

	result, err := f.fleet.RecalculateAnniversary(context.Background(), "acme", ship.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "insufficient data")
}

func TestShipService_SpecialSurveyCyclePullsDockingForward(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ship := createOceanStar(t, f)

	_, err := f.fleet.SetSpecialSurveyCycle(ctx, "acme", ship.ID, date(2025, time.June, 30), date(2021, time.January, 1))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	updated, err := f.fleet.SetSpecialSurveyCycle(ctx, "acme", ship.ID, date(2021, time.January, 1), date(2025, time.June, 30))
	require.NoError(t, err)
	assert.Equal(t, domain.SourceManual, updated.SpecialSurveyCycle.Source)
	require.NotNil(t, updated.NextDocking)
	assert.Equal(t, date(2025, time.June, 30), updated.NextDocking.Date)
	assert.Equal(t, survey.MethodCycleEnd, updated.NextDocking.CalculationMethod)

	// A Full Term certificate does not replace the manual cycle.
	addFullTerm(t, f, ship.ID)
	stored, err := f.fleet.Get(ctx, "acme", ship.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2021, time.January, 1), stored.SpecialSurveyCycle.From)
}

func TestShipService_RecalculateDocking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ship, err := f.fleet.Create(ctx, "acme", ShipInput{Name: "Bay Spirit"})
	require.NoError(t, err)
	assert.Nil(t, ship.NextDocking)

	result, err := f.fleet.RecalculateDocking(ctx, "acme", ship.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)

	_, err = f.fleet.Update(ctx, "acme", ship.ID, ShipInput{
		Name:         "Bay Spirit",
		LastDocking:  datePtr(2022, time.January, 10),
		LastDocking2: datePtr(2023, time.February, 28),
	})
	require.NoError(t, err)

	result, err = f.fleet.RecalculateDocking(ctx, "acme", ship.ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, date(2025, time.August, 28), *result.NextDocking)
	assert.Equal(t, date(2023, time.February, 28), *result.BasedOn)
}

func TestShipService_RecalculateCompany(t *testing.T) {
	f := newFixture(t)
	createOceanStar(t, f)
	_, err := f.fleet.Create(context.Background(), "acme", ShipInput{Name: "Bay Spirit"})
	require.NoError(t, err)

	n, err := f.fleet.RecalculateCompany(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
