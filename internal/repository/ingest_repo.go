package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/andresuchdata/fleetdocs/internal/domain"
)

// IngestRepository writes imported certificate registers. Rows are keyed by
// natural keys so a re-import updates instead of duplicating.
type IngestRepository struct {
	db *sql.DB
}

func NewIngestRepository(db *sql.DB) *IngestRepository {
	return &IngestRepository{db: db}
}

// UpsertShip inserts or updates a ship keyed by (company_id, name) and
// returns its ID. Manual overrides already stored on the ship are kept.
func (r *IngestRepository) UpsertShip(ctx context.Context, ship *domain.Ship) (string, error) {
	query := `
		INSERT INTO ships (
			id, company_id, name, imo_number, flag, class_society, ship_type,
			special_survey_from, special_survey_to, special_survey_source,
			last_docking, last_docking_2, last_special_survey, last_intermediate_survey,
			keel_laid, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (company_id, name)
		DO UPDATE SET
			imo_number = COALESCE(NULLIF(EXCLUDED.imo_number, ''), ships.imo_number),
			flag = COALESCE(NULLIF(EXCLUDED.flag, ''), ships.flag),
			class_society = COALESCE(NULLIF(EXCLUDED.class_society, ''), ships.class_society),
			ship_type = COALESCE(NULLIF(EXCLUDED.ship_type, ''), ships.ship_type),
			special_survey_from = CASE WHEN ships.special_survey_source = 'manual' THEN ships.special_survey_from
				ELSE COALESCE(EXCLUDED.special_survey_from, ships.special_survey_from) END,
			special_survey_to = CASE WHEN ships.special_survey_source = 'manual' THEN ships.special_survey_to
				ELSE COALESCE(EXCLUDED.special_survey_to, ships.special_survey_to) END,
			special_survey_source = CASE WHEN ships.special_survey_source = 'manual' THEN ships.special_survey_source
				ELSE COALESCE(EXCLUDED.special_survey_source, ships.special_survey_source) END,
			last_docking = COALESCE(EXCLUDED.last_docking, ships.last_docking),
			last_docking_2 = COALESCE(EXCLUDED.last_docking_2, ships.last_docking_2),
			last_special_survey = COALESCE(EXCLUDED.last_special_survey, ships.last_special_survey),
			last_intermediate_survey = COALESCE(EXCLUDED.last_intermediate_survey, ships.last_intermediate_survey),
			keel_laid = COALESCE(EXCLUDED.keel_laid, ships.keel_laid),
			updated_at = NOW()
		RETURNING id
	`

	id := ship.ID
	if id == "" {
		id = uuid.NewString()
	}

	var (
		from, to sql.NullTime
		source   sql.NullString
	)
	if c := ship.SpecialSurveyCycle; c != nil {
		from, to = NullDate(&c.From), NullDate(&c.To)
		source = sql.NullString{String: string(c.Source), Valid: true}
	}

	var out string
	err := r.db.QueryRowContext(ctx, query,
		id,
		ship.CompanyID,
		ship.Name,
		ship.IMONumber,
		ship.Flag,
		ship.ClassSociety,
		ship.ShipType,
		from,
		to,
		source,
		NullDate(ship.LastDocking),
		NullDate(ship.LastDocking2),
		NullDate(ship.LastSpecialSurvey),
		NullDate(ship.LastIntermediateSurvey),
		NullDate(ship.KeelLaid),
	).Scan(&out)
	if err != nil {
		return "", fmt.Errorf("failed to upsert ship: %w", err)
	}
	return out, nil
}

// UpsertCertificate inserts or updates a certificate keyed by
// (ship_id, name, cert_no) and returns its ID.
func (r *IngestRepository) UpsertCertificate(ctx context.Context, cert *domain.Certificate) (string, error) {
	query := `
		INSERT INTO certificates (
			id, ship_id, name, abbreviation, category, cert_no, issued_by, term_type, annotation,
			issued_date, valid_date, last_endorse, next_survey_date, next_survey_type, window_type,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (ship_id, name, cert_no)
		DO UPDATE SET
			abbreviation = EXCLUDED.abbreviation,
			category = EXCLUDED.category,
			issued_by = EXCLUDED.issued_by,
			term_type = EXCLUDED.term_type,
			annotation = EXCLUDED.annotation,
			issued_date = EXCLUDED.issued_date,
			valid_date = EXCLUDED.valid_date,
			last_endorse = EXCLUDED.last_endorse,
			next_survey_date = EXCLUDED.next_survey_date,
			next_survey_type = EXCLUDED.next_survey_type,
			window_type = EXCLUDED.window_type,
			updated_at = NOW()
		RETURNING id
	`

	id := cert.ID
	if id == "" {
		id = uuid.NewString()
	}

	var out string
	err := r.db.QueryRowContext(ctx, query,
		id,
		cert.ShipID,
		cert.Name,
		cert.Abbreviation,
		cert.Category,
		cert.CertNo,
		cert.IssuedBy,
		cert.TermType,
		cert.Annotation,
		NullDate(cert.IssuedDate),
		NullDate(cert.ValidDate),
		NullDate(cert.LastEndorse),
		NullDate(cert.NextSurveyDate),
		cert.NextSurveyType,
		cert.WindowType,
	).Scan(&out)
	if err != nil {
		return "", fmt.Errorf("failed to upsert certificate: %w", err)
	}
	return out, nil
}
