package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/repository"
	"github.com/andresuchdata/fleetdocs/internal/survey"
)

const shipColumns = `
	id, company_id, name, imo_number, flag, class_society, ship_type,
	anniversary_day, anniversary_month, anniversary_source, anniversary_derived_from,
	special_survey_from, special_survey_to, special_survey_source, special_survey_derived_from,
	special_survey_cycle_months,
	last_docking, last_docking_2,
	next_docking, next_docking_method, next_docking_interval, next_docking_based_on,
	last_special_survey, last_intermediate_survey, keel_laid,
	drive_folder_id, created_at, updated_at`

type shipRow struct {
	ID                       string         `db:"id"`
	CompanyID                string         `db:"company_id"`
	Name                     string         `db:"name"`
	IMONumber                string         `db:"imo_number"`
	Flag                     string         `db:"flag"`
	ClassSociety             string         `db:"class_society"`
	ShipType                 string         `db:"ship_type"`
	AnniversaryDay           sql.NullInt32  `db:"anniversary_day"`
	AnniversaryMonth         sql.NullInt32  `db:"anniversary_month"`
	AnniversarySource        sql.NullString `db:"anniversary_source"`
	AnniversaryDerivedFrom   string         `db:"anniversary_derived_from"`
	SpecialSurveyFrom        sql.NullTime   `db:"special_survey_from"`
	SpecialSurveyTo          sql.NullTime   `db:"special_survey_to"`
	SpecialSurveySource      sql.NullString `db:"special_survey_source"`
	SpecialSurveyDerivedFrom string         `db:"special_survey_derived_from"`
	SpecialSurveyCycleMonths sql.NullInt32  `db:"special_survey_cycle_months"`
	LastDocking              sql.NullTime   `db:"last_docking"`
	LastDocking2             sql.NullTime   `db:"last_docking_2"`
	NextDocking              sql.NullTime   `db:"next_docking"`
	NextDockingMethod        string         `db:"next_docking_method"`
	NextDockingInterval      int            `db:"next_docking_interval"`
	NextDockingBasedOn       sql.NullTime   `db:"next_docking_based_on"`
	LastSpecialSurvey        sql.NullTime   `db:"last_special_survey"`
	LastIntermediateSurvey   sql.NullTime   `db:"last_intermediate_survey"`
	KeelLaid                 sql.NullTime   `db:"keel_laid"`
	DriveFolderID            string         `db:"drive_folder_id"`
	CreatedAt                time.Time      `db:"created_at"`
	UpdatedAt                time.Time      `db:"updated_at"`
}

// toDomain maps a row into the canonical ship shape. Rows that only carry the
// legacy month count get their cycle placed on the last special survey.
func (r shipRow) toDomain() *domain.Ship {
	ship := &domain.Ship{
		ID:                     r.ID,
		CompanyID:              r.CompanyID,
		Name:                   r.Name,
		IMONumber:              r.IMONumber,
		Flag:                   r.Flag,
		ClassSociety:           r.ClassSociety,
		ShipType:               r.ShipType,
		LastDocking:            repository.DateFromNull(r.LastDocking),
		LastDocking2:           repository.DateFromNull(r.LastDocking2),
		LastSpecialSurvey:      repository.DateFromNull(r.LastSpecialSurvey),
		LastIntermediateSurvey: repository.DateFromNull(r.LastIntermediateSurvey),
		KeelLaid:               repository.DateFromNull(r.KeelLaid),
		DriveFolderID:          r.DriveFolderID,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}

	if r.AnniversaryDay.Valid && r.AnniversaryMonth.Valid && r.AnniversarySource.Valid {
		ship.Anniversary = &domain.Anniversary{
			Day:         int(r.AnniversaryDay.Int32),
			Month:       time.Month(r.AnniversaryMonth.Int32),
			Source:      domain.DateSource(r.AnniversarySource.String),
			DerivedFrom: r.AnniversaryDerivedFrom,
		}
	}

	from, to := repository.DateFromNull(r.SpecialSurveyFrom), repository.DateFromNull(r.SpecialSurveyTo)
	switch {
	case from != nil && to != nil:
		source := domain.SourceAuto
		if r.SpecialSurveySource.Valid {
			source = domain.DateSource(r.SpecialSurveySource.String)
		}
		ship.SpecialSurveyCycle = &domain.SpecialSurveyCycle{
			From:        *from,
			To:          *to,
			Source:      source,
			DerivedFrom: r.SpecialSurveyDerivedFrom,
		}
	case r.SpecialSurveyCycleMonths.Valid:
		ship.SpecialSurveyCycle = survey.NormalizeLegacyCycle(int(r.SpecialSurveyCycleMonths.Int32), ship.LastSpecialSurvey)
	}

	if next := repository.DateFromNull(r.NextDocking); next != nil {
		sched := &domain.DockingSchedule{
			Date:              *next,
			CalculationMethod: r.NextDockingMethod,
			IntervalMonths:    r.NextDockingInterval,
		}
		if based := repository.DateFromNull(r.NextDockingBasedOn); based != nil {
			sched.BasedOn = *based
		}
		ship.NextDocking = sched
	}

	return ship
}

// shipArgs returns the writable columns in the order used by insert and
// update statements.
func shipArgs(s *domain.Ship) []interface{} {
	var (
		annDay, annMonth sql.NullInt32
		annSource        sql.NullString
		annDerived       string
	)
	if a := s.Anniversary; a != nil {
		annDay = sql.NullInt32{Int32: int32(a.Day), Valid: true}
		annMonth = sql.NullInt32{Int32: int32(a.Month), Valid: true}
		annSource = sql.NullString{String: string(a.Source), Valid: true}
		annDerived = a.DerivedFrom
	}

	var (
		cycleFrom, cycleTo sql.NullTime
		cycleSource        sql.NullString
		cycleDerived       string
	)
	if c := s.SpecialSurveyCycle; c != nil {
		cycleFrom, cycleTo = repository.NullDate(&c.From), repository.NullDate(&c.To)
		cycleSource = sql.NullString{String: string(c.Source), Valid: true}
		cycleDerived = c.DerivedFrom
	}

	var (
		nextDocking, nextBasedOn sql.NullTime
		nextMethod               string
		nextInterval             int
	)
	if n := s.NextDocking; n != nil {
		nextDocking, nextBasedOn = repository.NullDate(&n.Date), repository.NullDate(&n.BasedOn)
		nextMethod, nextInterval = n.CalculationMethod, n.IntervalMonths
	}

	return []interface{}{
		s.Name, s.IMONumber, s.Flag, s.ClassSociety, s.ShipType,
		annDay, annMonth, annSource, annDerived,
		cycleFrom, cycleTo, cycleSource, cycleDerived,
		repository.NullDate(s.LastDocking), repository.NullDate(s.LastDocking2),
		nextDocking, nextMethod, nextInterval, nextBasedOn,
		repository.NullDate(s.LastSpecialSurvey), repository.NullDate(s.LastIntermediateSurvey),
		repository.NullDate(s.KeelLaid), s.DriveFolderID,
	}
}

type shipRepository struct {
	db *DB
}

func NewShipRepository(db *DB) repository.ShipRepository {
	return &shipRepository{db: db}
}

func (r *shipRepository) ListShips(ctx context.Context, companyID string) ([]*domain.Ship, error) {
	query := `SELECT ` + shipColumns + ` FROM ships WHERE company_id = $1 ORDER BY name`

	var rows []shipRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, companyID); err != nil {
		return nil, fmt.Errorf("failed to list ships: %w", err)
	}

	ships := make([]*domain.Ship, 0, len(rows))
	for _, row := range rows {
		ships = append(ships, row.toDomain())
	}
	return ships, nil
}

func (r *shipRepository) GetShip(ctx context.Context, companyID, id string) (*domain.Ship, error) {
	query := `SELECT ` + shipColumns + ` FROM ships WHERE company_id = $1 AND id = $2`

	var row shipRow
	err := sqlx.GetContext(ctx, r.db, &row, query, companyID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ship: %w", err)
	}
	return row.toDomain(), nil
}

func (r *shipRepository) CreateShip(ctx context.Context, ship *domain.Ship) error {
	if ship.ID == "" {
		ship.ID = uuid.NewString()
	}

	query := `
		INSERT INTO ships (
			id, company_id,
			name, imo_number, flag, class_society, ship_type,
			anniversary_day, anniversary_month, anniversary_source, anniversary_derived_from,
			special_survey_from, special_survey_to, special_survey_source, special_survey_derived_from,
			last_docking, last_docking_2,
			next_docking, next_docking_method, next_docking_interval, next_docking_based_on,
			last_special_survey, last_intermediate_survey, keel_laid, drive_folder_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)
		RETURNING created_at, updated_at
	`

	args := append([]interface{}{ship.ID, ship.CompanyID}, shipArgs(ship)...)
	err := r.db.QueryRowxContext(ctx, query, args...).Scan(&ship.CreatedAt, &ship.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ship: %w", err)
	}
	return nil
}

func (r *shipRepository) UpdateShip(ctx context.Context, ship *domain.Ship) error {
	query := `
		UPDATE ships SET
			name = $3, imo_number = $4, flag = $5, class_society = $6, ship_type = $7,
			anniversary_day = $8, anniversary_month = $9, anniversary_source = $10, anniversary_derived_from = $11,
			special_survey_from = $12, special_survey_to = $13, special_survey_source = $14,
			special_survey_derived_from = $15, special_survey_cycle_months = NULL,
			last_docking = $16, last_docking_2 = $17,
			next_docking = $18, next_docking_method = $19, next_docking_interval = $20, next_docking_based_on = $21,
			last_special_survey = $22, last_intermediate_survey = $23, keel_laid = $24, drive_folder_id = $25,
			updated_at = NOW()
		WHERE id = $1 AND company_id = $2
		RETURNING updated_at
	`

	args := append([]interface{}{ship.ID, ship.CompanyID}, shipArgs(ship)...)
	err := r.db.QueryRowxContext(ctx, query, args...).Scan(&ship.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update ship: %w", err)
	}
	return nil
}

func (r *shipRepository) DeleteShip(ctx context.Context, companyID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM ships WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return fmt.Errorf("failed to delete ship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete ship: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *shipRepository) ListCompanies(ctx context.Context) ([]string, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, r.db, &ids, `SELECT DISTINCT company_id FROM ships ORDER BY company_id`); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return ids, nil
}
