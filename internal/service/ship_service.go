package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/fleetdocs/internal/cache"
	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/metrics"
	"github.com/andresuchdata/fleetdocs/internal/repository"
	"github.com/andresuchdata/fleetdocs/internal/survey"
)

// ShipInput carries the user-editable ship fields. Derived dates are never
// taken from input.
type ShipInput struct {
	Name                   string
	IMONumber              string
	Flag                   string
	ClassSociety           string
	ShipType               string
	LastDocking            *civil.Date
	LastDocking2           *civil.Date
	LastSpecialSurvey      *civil.Date
	LastIntermediateSurvey *civil.Date
	KeelLaid               *civil.Date
	DriveFolderID          string
}

type ShipService struct {
	ships   repository.ShipRepository
	certs   repository.CertificateRepository
	calc    *survey.Calculator
	cache   cache.UpcomingSurveyCache
	metrics *metrics.Metrics
}

func NewShipService(ships repository.ShipRepository, certs repository.CertificateRepository, calc *survey.Calculator, cacheImpl cache.UpcomingSurveyCache, m *metrics.Metrics) *ShipService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopUpcomingSurveyCache()
	}
	return &ShipService{ships: ships, certs: certs, calc: calc, cache: cacheImpl, metrics: m}
}

func (s *ShipService) List(ctx context.Context, companyID string) ([]*domain.Ship, error) {
	ships, err := s.ships.ListShips(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if ships == nil {
		ships = make([]*domain.Ship, 0)
	}
	return ships, nil
}

func (s *ShipService) Get(ctx context.Context, companyID, id string) (*domain.Ship, error) {
	return s.ships.GetShip(ctx, companyID, id)
}

func (s *ShipService) Create(ctx context.Context, companyID string, in ShipInput) (*domain.Ship, error) {
	if err := validateShipInput(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ship := &domain.Ship{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyShipInput(ship, in)
	if _, err := s.refreshDocking(ship); err != nil {
		return nil, err
	}

	if err := s.ships.CreateShip(ctx, ship); err != nil {
		return nil, err
	}
	s.invalidate(ctx, companyID)
	return ship, nil
}

func (s *ShipService) Update(ctx context.Context, companyID, id string, in ShipInput) (*domain.Ship, error) {
	if err := validateShipInput(in); err != nil {
		return nil, err
	}

	ship, err := s.ships.GetShip(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	applyShipInput(ship, in)
	if _, err := s.refreshDocking(ship); err != nil {
		return nil, err
	}

	if err := s.save(ctx, ship); err != nil {
		return nil, err
	}
	return ship, nil
}

func (s *ShipService) Delete(ctx context.Context, companyID, id string) error {
	if err := s.ships.DeleteShip(ctx, companyID, id); err != nil {
		return err
	}
	s.invalidate(ctx, companyID)
	return nil
}

// RecalculateAnniversary derives the anniversary and special survey cycle
// from the ship's certificates. Insufficient data leaves the ship unchanged.
func (s *ShipService) RecalculateAnniversary(ctx context.Context, companyID, id string) (domain.AnniversaryResult, error) {
	ship, err := s.ships.GetShip(ctx, companyID, id)
	if err != nil {
		return domain.AnniversaryResult{}, err
	}
	result, err := s.recalculate(ctx, ship, false)
	if err != nil {
		return domain.AnniversaryResult{}, err
	}
	return result, nil
}

// SetManualAnniversary stores an anniversary override. It survives every
// later recalculation until cleared.
func (s *ShipService) SetManualAnniversary(ctx context.Context, companyID, id string, day int, month time.Month) (*domain.Ship, error) {
	if month < time.January || month > time.December || day < 1 || day > calendar.DaysInMonth(2000, month) {
		return nil, &calendar.InvalidDateError{
			Input:  fmt.Sprintf("%02d/%02d", day, int(month)),
			Reason: "anniversary is not a day of the year",
		}
	}

	ship, err := s.ships.GetShip(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	ship.Anniversary = domain.ManualAnniversary(day, month)

	if err := s.save(ctx, ship); err != nil {
		return nil, err
	}
	if err := s.refreshCertificates(ctx, ship); err != nil {
		return nil, err
	}
	return ship, nil
}

// ClearAnniversaryOverride drops the manual anniversary and re-derives it.
func (s *ShipService) ClearAnniversaryOverride(ctx context.Context, companyID, id string) (domain.AnniversaryResult, error) {
	ship, err := s.ships.GetShip(ctx, companyID, id)
	if err != nil {
		return domain.AnniversaryResult{}, err
	}
	ship.Anniversary = nil
	return s.recalculate(ctx, ship, true)
}

// SetSpecialSurveyCycle stores a manual special survey cycle and reschedules
// the docking, which may be pulled forward to the cycle end.
func (s *ShipService) SetSpecialSurveyCycle(ctx context.Context, companyID, id string, from, to civil.Date) (*domain.Ship, error) {
	for _, d := range []civil.Date{from, to} {
		if err := calendar.Validate(d); err != nil {
			return nil, err
		}
	}
	if !to.After(from) {
		return nil, invalid("to_date", "must be after from_date")
	}

	ship, err := s.ships.GetShip(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	ship.SpecialSurveyCycle = &domain.SpecialSurveyCycle{From: from, To: to, Source: domain.SourceManual}
	if _, err := s.refreshDocking(ship); err != nil {
		return nil, err
	}

	if err := s.save(ctx, ship); err != nil {
		return nil, err
	}
	if err := s.refreshCertificates(ctx, ship); err != nil {
		return nil, err
	}
	return ship, nil
}

func (s *ShipService) RecalculateDocking(ctx context.Context, companyID, id string) (domain.DockingResult, error) {
	ship, err := s.ships.GetShip(ctx, companyID, id)
	if err != nil {
		return domain.DockingResult{}, err
	}
	result, err := s.refreshDocking(ship)
	if err != nil {
		return domain.DockingResult{}, err
	}
	if err := s.save(ctx, ship); err != nil {
		return domain.DockingResult{}, err
	}
	return result, nil
}

// RecalculateShip refreshes every derived date of a ship: anniversary, cycle,
// docking and the stored next survey of each certificate.
func (s *ShipService) RecalculateShip(ctx context.Context, companyID, id string) error {
	ship, err := s.ships.GetShip(ctx, companyID, id)
	if err != nil {
		return err
	}
	_, err = s.recalculate(ctx, ship, false)
	return err
}

// RecalculateCompany runs RecalculateShip for the whole fleet of a company
// and returns how many ships were refreshed.
func (s *ShipService) RecalculateCompany(ctx context.Context, companyID string) (int, error) {
	ships, err := s.ships.ListShips(ctx, companyID)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, ship := range ships {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.recalculate(ctx, ship, false); err != nil {
			log.Warn().Err(err).Str("ship_id", ship.ID).Str("ship", ship.Name).Msg("Ship recalculation failed")
			continue
		}
		done++
	}
	return done, nil
}

func (s *ShipService) recalculate(ctx context.Context, ship *domain.Ship, force bool) (domain.AnniversaryResult, error) {
	certs, err := s.certs.ListByShip(ctx, ship.ID)
	if err != nil {
		return domain.AnniversaryResult{}, err
	}

	result, err := s.calc.DeriveAnniversary(ship, certs)
	if err != nil {
		s.metrics.Calculation("anniversary", "error")
		return domain.AnniversaryResult{}, err
	}
	s.metrics.Calculation("anniversary", outcome(result.Success))

	if result.Success || force {
		ship.Anniversary = result.Anniversary
		if result.SpecialSurveyCycle != nil {
			ship.SpecialSurveyCycle = result.SpecialSurveyCycle
		}
	}
	if _, err := s.refreshDocking(ship); err != nil {
		return domain.AnniversaryResult{}, err
	}
	if err := s.save(ctx, ship); err != nil {
		return domain.AnniversaryResult{}, err
	}
	if err := s.updateNextSurveys(ctx, ship, certs); err != nil {
		return domain.AnniversaryResult{}, err
	}
	return result, nil
}

func (s *ShipService) refreshDocking(ship *domain.Ship) (domain.DockingResult, error) {
	result, err := s.calc.NextDocking(ship)
	if err != nil {
		s.metrics.Calculation("docking", "error")
		return domain.DockingResult{}, err
	}
	s.metrics.Calculation("docking", outcome(result.Success))
	ship.NextDocking = result.Schedule()
	return result, nil
}

func (s *ShipService) refreshCertificates(ctx context.Context, ship *domain.Ship) error {
	certs, err := s.certs.ListByShip(ctx, ship.ID)
	if err != nil {
		return err
	}
	return s.updateNextSurveys(ctx, ship, certs)
}

// updateNextSurveys stores the computed next survey on every certificate
// whose schedule changed.
func (s *ShipService) updateNextSurveys(ctx context.Context, ship *domain.Ship, certs []*domain.Certificate) error {
	for _, cert := range certs {
		changed, err := applySchedule(s.calc, s.metrics, ship, cert)
		if err != nil {
			return fmt.Errorf("certificate %s: %w", cert.Name, err)
		}
		if !changed {
			continue
		}
		cert.UpdatedAt = time.Now().UTC()
		if err := s.certs.UpdateCertificate(ctx, cert); err != nil {
			return err
		}
	}
	return nil
}

func (s *ShipService) save(ctx context.Context, ship *domain.Ship) error {
	ship.UpdatedAt = time.Now().UTC()
	if err := s.ships.UpdateShip(ctx, ship); err != nil {
		return err
	}
	s.invalidate(ctx, ship.CompanyID)
	return nil
}

func (s *ShipService) invalidate(ctx context.Context, companyID string) {
	if err := s.cache.InvalidateCompany(ctx, companyID); err != nil {
		log.Warn().Err(err).Str("company_id", companyID).Msg("upcoming surveys: cache invalidate failed")
	}
}

// applySchedule writes the next survey of cert onto it and reports whether
// anything changed.
func applySchedule(calc *survey.Calculator, m *metrics.Metrics, ship *domain.Ship, cert *domain.Certificate) (bool, error) {
	sched, err := calc.NextSurvey(ship, cert)
	if err != nil {
		m.Calculation("survey", "error")
		return false, err
	}
	m.Calculation("survey", outcome(sched.OK))

	var (
		next              *civil.Date
		surveyType, label string
	)
	if sched.OK {
		d := sched.NextSurveyDate
		next = &d
		surveyType = sched.NextSurveyType
		label = sched.WindowType
	}

	same := cert.NextSurveyType == surveyType && cert.WindowType == label &&
		((next == nil && cert.NextSurveyDate == nil) ||
			(next != nil && cert.NextSurveyDate != nil && *next == *cert.NextSurveyDate))
	cert.NextSurveyDate = next
	cert.NextSurveyType = surveyType
	cert.WindowType = label
	return !same, nil
}

func validateShipInput(in ShipInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "is required")
	}
	for field, d := range map[string]*civil.Date{
		"last_docking":             in.LastDocking,
		"last_docking_2":           in.LastDocking2,
		"last_special_survey":      in.LastSpecialSurvey,
		"last_intermediate_survey": in.LastIntermediateSurvey,
		"keel_laid":                in.KeelLaid,
	} {
		if d == nil {
			continue
		}
		if err := calendar.Validate(*d); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}

func applyShipInput(ship *domain.Ship, in ShipInput) {
	ship.Name = strings.TrimSpace(in.Name)
	ship.IMONumber = strings.TrimSpace(in.IMONumber)
	ship.Flag = strings.TrimSpace(in.Flag)
	ship.ClassSociety = strings.TrimSpace(in.ClassSociety)
	ship.ShipType = strings.TrimSpace(in.ShipType)
	ship.LastDocking = in.LastDocking
	ship.LastDocking2 = in.LastDocking2
	ship.LastSpecialSurvey = in.LastSpecialSurvey
	ship.LastIntermediateSurvey = in.LastIntermediateSurvey
	ship.KeelLaid = in.KeelLaid
	ship.DriveFolderID = in.DriveFolderID
}
