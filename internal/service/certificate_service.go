package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/fleetdocs/internal/cache"
	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/drive"
	"github.com/andresuchdata/fleetdocs/internal/extraction"
	"github.com/andresuchdata/fleetdocs/internal/metrics"
	"github.com/andresuchdata/fleetdocs/internal/repository"
	"github.com/andresuchdata/fleetdocs/internal/storage"
	"github.com/andresuchdata/fleetdocs/internal/survey"
)

// CertificateInput carries the user-editable certificate fields.
type CertificateInput struct {
	Name         string
	Abbreviation string
	Category     string
	CertNo       string
	IssuedBy     string
	TermType     string
	Annotation   string
	IssuedDate   *civil.Date
	ValidDate    *civil.Date
	LastEndorse  *civil.Date
}

// DriveUploader is the part of the Drive client used for certificate scans.
type DriveUploader interface {
	EnsureFolderPath(ctx context.Context, path string) (string, error)
	UploadFile(ctx context.Context, folderID, name, contentType string, r io.Reader) (*drive.File, error)
	DeleteFile(ctx context.Context, fileID string) error
}

type CertificateService struct {
	ships     repository.ShipRepository
	certs     repository.CertificateRepository
	fleet     *ShipService
	calc      *survey.Calculator
	cache     cache.UpcomingSurveyCache
	drive     DriveUploader
	driveRoot string
	archive   storage.ObjectStorage
	extractor extraction.Extractor
	metrics   *metrics.Metrics
}

// CertificateServiceOptions wires the optional file backends. Nil members
// are disabled.
type CertificateServiceOptions struct {
	Drive     DriveUploader
	DriveRoot string
	Archive   storage.ObjectStorage
	Extractor extraction.Extractor
	Cache     cache.UpcomingSurveyCache
	Metrics   *metrics.Metrics
}

func NewCertificateService(ships repository.ShipRepository, certs repository.CertificateRepository, fleet *ShipService, calc *survey.Calculator, opts CertificateServiceOptions) *CertificateService {
	if opts.Cache == nil {
		opts.Cache = cache.NewNoopUpcomingSurveyCache()
	}
	if opts.Extractor == nil {
		opts.Extractor = extraction.NewNoopExtractor()
	}
	return &CertificateService{
		ships:     ships,
		certs:     certs,
		fleet:     fleet,
		calc:      calc,
		cache:     opts.Cache,
		drive:     opts.Drive,
		driveRoot: opts.DriveRoot,
		archive:   opts.Archive,
		extractor: opts.Extractor,
		metrics:   opts.Metrics,
	}
}

func (s *CertificateService) ListByShip(ctx context.Context, companyID, shipID string) ([]*domain.Certificate, error) {
	if _, err := s.ships.GetShip(ctx, companyID, shipID); err != nil {
		return nil, err
	}
	certs, err := s.certs.ListByShip(ctx, shipID)
	if err != nil {
		return nil, err
	}
	if certs == nil {
		certs = make([]*domain.Certificate, 0)
	}
	return certs, nil
}

func (s *CertificateService) Get(ctx context.Context, companyID, id string) (*domain.Certificate, error) {
	cert, _, err := s.load(ctx, companyID, id)
	return cert, err
}

func (s *CertificateService) Create(ctx context.Context, companyID, shipID string, in CertificateInput) (*domain.Certificate, error) {
	if err := validateCertificateInput(in); err != nil {
		return nil, err
	}
	ship, err := s.ships.GetShip(ctx, companyID, shipID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cert := &domain.Certificate{
		ID:        uuid.NewString(),
		ShipID:    ship.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyCertificateInput(cert, in)
	if _, err := applySchedule(s.calc, s.metrics, ship, cert); err != nil {
		return nil, err
	}

	if err := s.certs.CreateCertificate(ctx, cert); err != nil {
		return nil, err
	}
	return s.afterChange(ctx, ship, cert, cert.IsFullTerm())
}

func (s *CertificateService) Update(ctx context.Context, companyID, id string, in CertificateInput) (*domain.Certificate, error) {
	if err := validateCertificateInput(in); err != nil {
		return nil, err
	}
	cert, ship, err := s.load(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	wasFullTerm := cert.IsFullTerm()
	applyCertificateInput(cert, in)
	if _, err := applySchedule(s.calc, s.metrics, ship, cert); err != nil {
		return nil, err
	}
	cert.UpdatedAt = time.Now().UTC()

	if err := s.certs.UpdateCertificate(ctx, cert); err != nil {
		return nil, err
	}
	return s.afterChange(ctx, ship, cert, wasFullTerm || cert.IsFullTerm())
}

func (s *CertificateService) Delete(ctx context.Context, companyID, id string) error {
	cert, ship, err := s.load(ctx, companyID, id)
	if err != nil {
		return err
	}
	if err := s.certs.DeleteCertificate(ctx, id); err != nil {
		return err
	}
	s.removeDriveFile(ctx, cert.FileID)
	_, err = s.afterChange(ctx, ship, cert, cert.IsFullTerm())
	return err
}

// SurveyStatus classifies the certificate's next survey against today.
func (s *CertificateService) SurveyStatus(ctx context.Context, companyID, id string, today civil.Date) (domain.SurveyStatus, error) {
	cert, ship, err := s.load(ctx, companyID, id)
	if err != nil {
		return domain.SurveyStatus{}, err
	}

	status, err := s.calc.SurveyStatus(ship, cert, today)
	if err != nil {
		s.metrics.Calculation("survey", "error")
		return domain.SurveyStatus{}, err
	}
	s.metrics.Calculation("survey", outcome(status.Success))
	return status, nil
}

// UploadFile stores a certificate scan in the ship's Drive folder and in the
// object archive, whichever are configured.
func (s *CertificateService) UploadFile(ctx context.Context, companyID, id string, file domain.UploadedFile) (*domain.Certificate, error) {
	if s.drive == nil && s.archive == nil {
		return nil, ErrUploadDisabled
	}
	if len(file.Data) == 0 {
		return nil, invalid("file", "is empty")
	}
	cert, ship, err := s.load(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	name := path.Base(strings.ReplaceAll(file.Filename, `\`, "/"))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	previousFileID := cert.FileID
	var uploadedID string
	if s.drive != nil {
		folderID := ship.DriveFolderID
		if folderID == "" {
			folderID, err = s.drive.EnsureFolderPath(ctx, path.Join(s.driveRoot, ship.Name))
			if err != nil {
				return nil, fmt.Errorf("failed to resolve drive folder: %w", err)
			}
		}
		uploaded, err := s.drive.UploadFile(ctx, folderID, name, contentType, bytes.NewReader(file.Data))
		if err != nil {
			return nil, err
		}
		uploadedID = uploaded.ID
		cert.FileID = uploaded.ID
	}
	cert.FileName = name

	// The new Drive file is only referenced once the row is updated; until
	// then a failure removes it and leaves the previous scan in place.
	rollback := func() {
		if uploadedID != "" && uploadedID != previousFileID {
			s.removeDriveFile(ctx, uploadedID)
		}
	}

	if s.archive != nil {
		key := storage.CertificateKey(ship.ID, cert.ID, name)
		if err := s.archive.UploadObject(ctx, key, file.Data, contentType); err != nil {
			rollback()
			return nil, fmt.Errorf("failed to archive certificate file: %w", err)
		}
		cert.ArchiveKey = key
	}

	cert.UpdatedAt = time.Now().UTC()
	if err := s.certs.UpdateCertificate(ctx, cert); err != nil {
		rollback()
		return nil, err
	}
	if uploadedID != "" && previousFileID != uploadedID {
		s.removeDriveFile(ctx, previousFileID)
	}

	log.Info().
		Str("certificate_id", cert.ID).
		Str("file", name).
		Bool("drive", cert.FileID != "").
		Bool("archive", cert.ArchiveKey != "").
		Msg("Certificate file stored")

	return cert, nil
}

// UploadAndFill stores a scan like UploadFile and completes the blank
// certificate fields from what the extractor reads on it. Nothing is stored
// when extraction fails.
func (s *CertificateService) UploadAndFill(ctx context.Context, companyID, id string, file domain.UploadedFile) (*domain.Certificate, error) {
	if s.drive == nil && s.archive == nil {
		return nil, ErrUploadDisabled
	}
	result, err := s.Extract(ctx, file)
	if err != nil {
		return nil, err
	}

	cert, err := s.UploadFile(ctx, companyID, id, file)
	if err != nil {
		return nil, err
	}
	ship, err := s.ships.GetShip(ctx, companyID, cert.ShipID)
	if err != nil {
		return nil, err
	}

	wasFullTerm := cert.IsFullTerm()
	result.Apply(cert)
	cert.TermType = domain.NormalizeTermType(cert.TermType)
	if err := validateCertificateInput(certificateInputOf(cert)); err != nil {
		return nil, err
	}
	if _, err := applySchedule(s.calc, s.metrics, ship, cert); err != nil {
		return nil, err
	}
	cert.UpdatedAt = time.Now().UTC()

	if err := s.certs.UpdateCertificate(ctx, cert); err != nil {
		return nil, err
	}
	if len(result.Warnings) > 0 {
		log.Warn().Str("certificate_id", cert.ID).Strs("warnings", result.Warnings).Msg("Extracted fields skipped")
	}
	return s.afterChange(ctx, ship, cert, wasFullTerm || cert.IsFullTerm())
}

// removeDriveFile drops a replaced or orphaned scan. Failures leave a stray
// file in Drive and are only logged.
func (s *CertificateService) removeDriveFile(ctx context.Context, fileID string) {
	if s.drive == nil || fileID == "" {
		return
	}
	if err := s.drive.DeleteFile(ctx, fileID); err != nil {
		log.Warn().Err(err).Str("file_id", fileID).Msg("Failed to delete certificate file from Drive")
	}
}

// Extract reads certificate fields from a scan. Nothing is stored.
func (s *CertificateService) Extract(ctx context.Context, file domain.UploadedFile) (*extraction.Result, error) {
	result, err := s.extractor.Extract(ctx, file)
	if err != nil {
		if !errors.Is(err, extraction.ErrDisabled) {
			log.Error().Err(err).Str("file", file.Filename).Msg("Certificate extraction failed")
		}
		return nil, err
	}
	return result, nil
}

// load fetches a certificate and its ship, enforcing the company scope.
func (s *CertificateService) load(ctx context.Context, companyID, id string) (*domain.Certificate, *domain.Ship, error) {
	cert, err := s.certs.GetCertificate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ship, err := s.ships.GetShip(ctx, companyID, cert.ShipID)
	if err != nil {
		return nil, nil, err
	}
	return cert, ship, nil
}

// afterChange re-derives the ship when a Full Term certificate was touched,
// since it may seed the anniversary, and drops cached worklists.
func (s *CertificateService) afterChange(ctx context.Context, ship *domain.Ship, cert *domain.Certificate, fullTerm bool) (*domain.Certificate, error) {
	if fullTerm && s.fleet != nil {
		if err := s.fleet.RecalculateShip(ctx, ship.CompanyID, ship.ID); err != nil {
			return nil, err
		}
		fresh, err := s.certs.GetCertificate(ctx, cert.ID)
		if err == nil {
			cert = fresh
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	if err := s.cache.InvalidateCompany(ctx, ship.CompanyID); err != nil {
		log.Warn().Err(err).Str("company_id", ship.CompanyID).Msg("upcoming surveys: cache invalidate failed")
	}
	return cert, nil
}

func validateCertificateInput(in CertificateInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "is required")
	}
	for field, d := range map[string]*civil.Date{
		"issued_date":  in.IssuedDate,
		"valid_date":   in.ValidDate,
		"last_endorse": in.LastEndorse,
	} {
		if d == nil {
			continue
		}
		if err := calendar.Validate(*d); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	if in.IssuedDate != nil && in.ValidDate != nil && in.ValidDate.Before(*in.IssuedDate) {
		return invalid("valid_date", "must not be before issued_date")
	}
	return nil
}

func certificateInputOf(cert *domain.Certificate) CertificateInput {
	return CertificateInput{
		Name:         cert.Name,
		Abbreviation: cert.Abbreviation,
		Category:     cert.Category,
		CertNo:       cert.CertNo,
		IssuedBy:     cert.IssuedBy,
		TermType:     cert.TermType,
		Annotation:   cert.Annotation,
		IssuedDate:   cert.IssuedDate,
		ValidDate:    cert.ValidDate,
		LastEndorse:  cert.LastEndorse,
	}
}

func applyCertificateInput(cert *domain.Certificate, in CertificateInput) {
	cert.Name = strings.TrimSpace(in.Name)
	cert.Abbreviation = strings.TrimSpace(in.Abbreviation)
	cert.Category = strings.TrimSpace(in.Category)
	cert.CertNo = strings.TrimSpace(in.CertNo)
	cert.IssuedBy = strings.TrimSpace(in.IssuedBy)
	cert.TermType = domain.NormalizeTermType(in.TermType)
	cert.Annotation = strings.TrimSpace(in.Annotation)
	cert.IssuedDate = in.IssuedDate
	cert.ValidDate = in.ValidDate
	cert.LastEndorse = in.LastEndorse
}
