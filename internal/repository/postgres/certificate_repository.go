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
)

const certificateColumns = `
	id, ship_id, name, abbreviation, category, cert_no, issued_by, term_type, annotation,
	issued_date, valid_date, last_endorse, next_survey_date, next_survey_type, window_type,
	file_id, file_name, archive_key, created_at, updated_at`

type certificateRow struct {
	ID             string       `db:"id"`
	ShipID         string       `db:"ship_id"`
	Name           string       `db:"name"`
	Abbreviation   string       `db:"abbreviation"`
	Category       string       `db:"category"`
	CertNo         string       `db:"cert_no"`
	IssuedBy       string       `db:"issued_by"`
	TermType       string       `db:"term_type"`
	Annotation     string       `db:"annotation"`
	IssuedDate     sql.NullTime `db:"issued_date"`
	ValidDate      sql.NullTime `db:"valid_date"`
	LastEndorse    sql.NullTime `db:"last_endorse"`
	NextSurveyDate sql.NullTime `db:"next_survey_date"`
	NextSurveyType string       `db:"next_survey_type"`
	WindowType     string       `db:"window_type"`
	FileID         string       `db:"file_id"`
	FileName       string       `db:"file_name"`
	ArchiveKey     string       `db:"archive_key"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

func (r certificateRow) toDomain() *domain.Certificate {
	return &domain.Certificate{
		ID:             r.ID,
		ShipID:         r.ShipID,
		Name:           r.Name,
		Abbreviation:   r.Abbreviation,
		Category:       r.Category,
		CertNo:         r.CertNo,
		IssuedBy:       r.IssuedBy,
		TermType:       r.TermType,
		Annotation:     r.Annotation,
		IssuedDate:     repository.DateFromNull(r.IssuedDate),
		ValidDate:      repository.DateFromNull(r.ValidDate),
		LastEndorse:    repository.DateFromNull(r.LastEndorse),
		NextSurveyDate: repository.DateFromNull(r.NextSurveyDate),
		NextSurveyType: r.NextSurveyType,
		WindowType:     r.WindowType,
		FileID:         r.FileID,
		FileName:       r.FileName,
		ArchiveKey:     r.ArchiveKey,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func certificateArgs(c *domain.Certificate) []interface{} {
	return []interface{}{
		c.Name, c.Abbreviation, c.Category, c.CertNo, c.IssuedBy, c.TermType, c.Annotation,
		repository.NullDate(c.IssuedDate), repository.NullDate(c.ValidDate),
		repository.NullDate(c.LastEndorse), repository.NullDate(c.NextSurveyDate),
		c.NextSurveyType, c.WindowType, c.FileID, c.FileName, c.ArchiveKey,
	}
}

type certificateRepository struct {
	db *DB
}

func NewCertificateRepository(db *DB) repository.CertificateRepository {
	return &certificateRepository{db: db}
}

func (r *certificateRepository) ListByShip(ctx context.Context, shipID string) ([]*domain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE ship_id = $1 ORDER BY name, id`

	var rows []certificateRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, shipID); err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}

	certs := make([]*domain.Certificate, 0, len(rows))
	for _, row := range rows {
		certs = append(certs, row.toDomain())
	}
	return certs, nil
}

func (r *certificateRepository) GetCertificate(ctx context.Context, id string) (*domain.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`

	var row certificateRow
	err := sqlx.GetContext(ctx, r.db, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return row.toDomain(), nil
}

func (r *certificateRepository) CreateCertificate(ctx context.Context, cert *domain.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}

	query := `
		INSERT INTO certificates (
			id, ship_id,
			name, abbreviation, category, cert_no, issued_by, term_type, annotation,
			issued_date, valid_date, last_endorse, next_survey_date,
			next_survey_type, window_type, file_id, file_name, archive_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`

	args := append([]interface{}{cert.ID, cert.ShipID}, certificateArgs(cert)...)
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&cert.CreatedAt, &cert.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	return nil
}

func (r *certificateRepository) UpdateCertificate(ctx context.Context, cert *domain.Certificate) error {
	query := `
		UPDATE certificates SET
			name = $3, abbreviation = $4, category = $5, cert_no = $6, issued_by = $7,
			term_type = $8, annotation = $9,
			issued_date = $10, valid_date = $11, last_endorse = $12, next_survey_date = $13,
			next_survey_type = $14, window_type = $15, file_id = $16, file_name = $17, archive_key = $18,
			updated_at = NOW()
		WHERE id = $1 AND ship_id = $2
		RETURNING updated_at
	`

	args := append([]interface{}{cert.ID, cert.ShipID}, certificateArgs(cert)...)
	err := r.db.QueryRowxContext(ctx, query, args...).Scan(&cert.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update certificate: %w", err)
	}
	return nil
}

func (r *certificateRepository) DeleteCertificate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM certificates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete certificate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete certificate: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListFleet loads ships and certificates in one read transaction so the
// snapshot is consistent.
func (r *certificateRepository) ListFleet(ctx context.Context, companyID string) ([]domain.ShipCertificates, error) {
	var (
		shipRows []shipRow
		certRows []certificateRow
	)

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		shipQuery := `SELECT ` + shipColumns + ` FROM ships WHERE company_id = $1 ORDER BY name`
		if err := tx.SelectContext(ctx, &shipRows, shipQuery, companyID); err != nil {
			return fmt.Errorf("failed to list fleet ships: %w", err)
		}

		certQuery := `
			SELECT ` + prefixed("c", certificateColumns) + `
			FROM certificates c
			JOIN ships s ON s.id = c.ship_id
			WHERE s.company_id = $1
			ORDER BY c.name, c.id`
		if err := tx.SelectContext(ctx, &certRows, certQuery, companyID); err != nil {
			return fmt.Errorf("failed to list fleet certificates: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	byShip := make(map[string][]*domain.Certificate, len(shipRows))
	for _, row := range certRows {
		byShip[row.ShipID] = append(byShip[row.ShipID], row.toDomain())
	}

	fleet := make([]domain.ShipCertificates, 0, len(shipRows))
	for _, row := range shipRows {
		fleet = append(fleet, domain.ShipCertificates{
			Ship:         row.toDomain(),
			Certificates: byShip[row.ID],
		})
	}
	return fleet, nil
}
