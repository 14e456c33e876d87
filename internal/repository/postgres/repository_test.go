package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/repository"
)

func columnNames(list string) []string {
	parts := strings.Split(list, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// shipValues returns one row in shipColumns order; overrides replace values
// by column name.
func shipValues(id, name string, overrides map[string]interface{}) []driver.Value {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := columnNames(shipColumns)
	values := make([]driver.Value, len(cols))
	for i, c := range cols {
		switch c {
		case "id":
			values[i] = id
		case "company_id":
			values[i] = "acme"
		case "name":
			values[i] = name
		case "imo_number", "flag", "class_society", "ship_type",
			"anniversary_derived_from", "special_survey_derived_from",
			"next_docking_method", "drive_folder_id":
			values[i] = ""
		case "next_docking_interval":
			values[i] = int64(0)
		case "created_at", "updated_at":
			values[i] = now
		default:
			values[i] = nil
		}
		if v, ok := overrides[c]; ok {
			values[i] = v
		}
	}
	return values
}

func certificateValues(id, shipID, name string, issued interface{}) []driver.Value {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []driver.Value{
		id, shipID, name, "", "", "", "", "Full Term", "",
		issued, nil, nil, nil, "", "",
		"", "", "", now, now,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type RepositoryTestSuite struct {
	suite.Suite
	mock  sqlmock.Sqlmock
	db    *sql.DB
	ships repository.ShipRepository
	certs repository.CertificateRepository
}

func (s *RepositoryTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	conn := NewWithDB(s.db, "postgres")
	s.ships = NewShipRepository(conn)
	s.certs = NewCertificateRepository(conn)
}

func (s *RepositoryTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *RepositoryTestSuite) TestGetShip_MapsColumns() {
	s.mock.ExpectQuery(`SELECT .* FROM ships WHERE company_id = \$1 AND id = \$2`).
		WithArgs("acme", "s1").
		WillReturnRows(sqlmock.NewRows(columnNames(shipColumns)).AddRow(shipValues("s1", "Ocean Star", map[string]interface{}{
			"anniversary_day":       int64(20),
			"anniversary_month":     int64(12),
			"anniversary_source":    "manual",
			"special_survey_from":   day(2022, 12, 20),
			"special_survey_to":     day(2027, 12, 20),
			"special_survey_source": "auto",
			"last_docking":          day(2024, 2, 1),
			"next_docking":          day(2026, 8, 1),
			"next_docking_method":   "interval",
			"next_docking_interval": int64(30),
			"next_docking_based_on": day(2024, 2, 1),
			"imo_number":            "9876543",
		})...))

	ship, err := s.ships.GetShip(context.Background(), "acme", "s1")
	s.Require().NoError(err)

	s.Equal("Ocean Star", ship.Name)
	s.Equal("9876543", ship.IMONumber)
	s.Require().NotNil(ship.Anniversary)
	s.Equal(20, ship.Anniversary.Day)
	s.Equal(time.December, ship.Anniversary.Month)
	s.True(ship.Anniversary.IsManual())
	s.Require().NotNil(ship.SpecialSurveyCycle)
	s.Equal(civil.Date{Year: 2027, Month: time.December, Day: 20}, ship.SpecialSurveyCycle.To)
	s.Equal(domain.SourceAuto, ship.SpecialSurveyCycle.Source)
	s.Require().NotNil(ship.LastDocking)
	s.Equal("2024-02-01", ship.LastDocking.String())
	s.Nil(ship.LastDocking2)
	s.Require().NotNil(ship.NextDocking)
	s.Equal("interval", ship.NextDocking.CalculationMethod)
	s.Equal(30, ship.NextDocking.IntervalMonths)
}

func (s *RepositoryTestSuite) TestGetShip_NormalisesLegacyCycle() {
	s.mock.ExpectQuery(`SELECT .* FROM ships`).
		WillReturnRows(sqlmock.NewRows(columnNames(shipColumns)).AddRow(shipValues("s1", "Old Timer", map[string]interface{}{
			"special_survey_cycle_months": int64(60),
			"last_special_survey":         day(2021, 8, 31),
		})...))

	ship, err := s.ships.GetShip(context.Background(), "acme", "s1")
	s.Require().NoError(err)
	s.Require().NotNil(ship.SpecialSurveyCycle)
	s.Equal("2021-08-31", ship.SpecialSurveyCycle.From.String())
	s.Equal("2026-08-31", ship.SpecialSurveyCycle.To.String())
	s.Nil(ship.Anniversary)
}

func (s *RepositoryTestSuite) TestGetShip_NotFound() {
	s.mock.ExpectQuery(`SELECT .* FROM ships`).
		WithArgs("acme", "missing").
		WillReturnRows(sqlmock.NewRows(columnNames(shipColumns)))

	_, err := s.ships.GetShip(context.Background(), "acme", "missing")
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *RepositoryTestSuite) TestCreateShip_AssignsID() {
	now := time.Now()
	s.mock.ExpectQuery(`INSERT INTO ships`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	ship := &domain.Ship{CompanyID: "acme", Name: "Ocean Star", Anniversary: domain.ManualAnniversary(20, time.December)}
	err := s.ships.CreateShip(context.Background(), ship)
	s.Require().NoError(err)
	s.NotEmpty(ship.ID)
	s.Equal(now, ship.CreatedAt)
}

func (s *RepositoryTestSuite) TestUpdateShip_NotFound() {
	s.mock.ExpectQuery(`UPDATE ships SET`).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

	err := s.ships.UpdateShip(context.Background(), &domain.Ship{ID: "s1", CompanyID: "acme", Name: "x"})
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *RepositoryTestSuite) TestDeleteShip() {
	s.mock.ExpectExec(`DELETE FROM ships WHERE company_id = \$1 AND id = \$2`).
		WithArgs("acme", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.ships.DeleteShip(context.Background(), "acme", "s1"))

	s.mock.ExpectExec(`DELETE FROM ships`).
		WithArgs("acme", "s2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.ErrorIs(s.ships.DeleteShip(context.Background(), "acme", "s2"), repository.ErrNotFound)
}

func (s *RepositoryTestSuite) TestListFleet_GroupsCertificates() {
	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`SELECT .* FROM ships WHERE company_id = \$1`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(columnNames(shipColumns)).
			AddRow(shipValues("s1", "Bay Spirit", nil)...).
			AddRow(shipValues("s2", "Ocean Star", nil)...))
	s.mock.ExpectQuery(`SELECT .* FROM certificates c JOIN ships s ON s.id = c.ship_id WHERE s.company_id = \$1`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(columnNames(certificateColumns)).
			AddRow(certificateValues("c1", "s2", "IOPP", day(2025, 6, 1))...).
			AddRow(certificateValues("c2", "s2", "MLC", nil)...))
	s.mock.ExpectCommit()

	fleet, err := s.certs.ListFleet(context.Background(), "acme")
	s.Require().NoError(err)
	s.Require().Len(fleet, 2)

	s.Equal("Bay Spirit", fleet[0].Ship.Name)
	s.Empty(fleet[0].Certificates)
	s.Equal("Ocean Star", fleet[1].Ship.Name)
	s.Require().Len(fleet[1].Certificates, 2)
	s.Equal("2025-06-01", fleet[1].Certificates[0].IssuedDate.String())
	s.Nil(fleet[1].Certificates[1].IssuedDate)
}

func (s *RepositoryTestSuite) TestCertificate_CreateAndGet() {
	now := time.Now()
	s.mock.ExpectQuery(`INSERT INTO certificates`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	issued := civil.Date{Year: 2025, Month: time.June, Day: 1}
	cert := &domain.Certificate{ShipID: "s1", Name: "IOPP", IssuedDate: &issued}
	s.Require().NoError(s.certs.CreateCertificate(context.Background(), cert))
	s.NotEmpty(cert.ID)

	s.mock.ExpectQuery(`SELECT .* FROM certificates WHERE id = \$1`).
		WithArgs(cert.ID).
		WillReturnRows(sqlmock.NewRows(columnNames(certificateColumns)).
			AddRow(certificateValues(cert.ID, "s1", "IOPP", day(2025, 6, 1))...))

	got, err := s.certs.GetCertificate(context.Background(), cert.ID)
	s.Require().NoError(err)
	s.Equal(issued, *got.IssuedDate)
	s.True(got.IsFullTerm())
}

func (s *RepositoryTestSuite) TestCertificate_NotFound() {
	s.mock.ExpectQuery(`SELECT .* FROM certificates WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columnNames(certificateColumns)))
	_, err := s.certs.GetCertificate(context.Background(), "missing")
	s.ErrorIs(err, repository.ErrNotFound)

	s.mock.ExpectExec(`DELETE FROM certificates`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.ErrorIs(s.certs.DeleteCertificate(context.Background(), "missing"), repository.ErrNotFound)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
