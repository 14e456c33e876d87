package service

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/fleetdocs/internal/cache"
	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/export"
	"github.com/andresuchdata/fleetdocs/internal/metrics"
	"github.com/andresuchdata/fleetdocs/internal/repository"
	"github.com/andresuchdata/fleetdocs/internal/storage"
	"github.com/andresuchdata/fleetdocs/internal/survey"
)

type SurveyService struct {
	certs   repository.CertificateRepository
	calc    *survey.Calculator
	cache   cache.UpcomingSurveyCache
	archive storage.ObjectStorage
	metrics *metrics.Metrics
	loc     *time.Location
	now     func() time.Time
}

func NewSurveyService(certs repository.CertificateRepository, calc *survey.Calculator, cacheImpl cache.UpcomingSurveyCache, archive storage.ObjectStorage, m *metrics.Metrics, loc *time.Location) *SurveyService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopUpcomingSurveyCache()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SurveyService{
		certs:   certs,
		calc:    calc,
		cache:   cacheImpl,
		archive: archive,
		metrics: m,
		loc:     loc,
		now:     time.Now,
	}
}

// Today is the current calendar day in the configured timezone.
func (s *SurveyService) Today() civil.Date {
	return calendar.Today(s.now(), s.loc)
}

// Upcoming returns the company worklist, most urgent first. A zero
// filter.Today means today.
func (s *SurveyService) Upcoming(ctx context.Context, filter domain.UpcomingSurveyFilter) (*domain.UpcomingSurveys, error) {
	if filter.Status != "" {
		if _, ok := domain.ParseSurveyStatus(filter.Status); !ok {
			return nil, invalid("status", fmt.Sprintf("unknown status %q", filter.Status))
		}
	}
	if filter.Today == (civil.Date{}) {
		filter.Today = s.Today()
	}

	if list, ok, err := s.cache.Get(ctx, filter); err == nil && ok {
		s.metrics.CacheLookup(true)
		return list, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("upcoming surveys: cache get failed")
	}
	s.metrics.CacheLookup(false)

	fleet, err := s.certs.ListFleet(ctx, filter.CompanyID)
	if err != nil {
		return nil, err
	}

	list, err := s.calc.UpcomingSurveys(fleet, filter)
	if err != nil {
		s.metrics.Calculation("upcoming", "error")
		return nil, err
	}
	s.metrics.Calculation("upcoming", "ok")

	if err := s.cache.Set(ctx, filter, list); err != nil {
		log.Warn().Err(err).Msg("upcoming surveys: cache set failed")
	}

	return list, nil
}

// ExportXLSX renders the filtered worklist as a workbook. When an archive is
// configured a copy is kept there; archive failures are logged only.
func (s *SurveyService) ExportXLSX(ctx context.Context, filter domain.UpcomingSurveyFilter) ([]byte, string, error) {
	list, err := s.Upcoming(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	data, err := export.UpcomingSurveysXLSX(list)
	if err != nil {
		return nil, "", err
	}
	name := export.FileName(list)

	if s.archive != nil {
		key := storage.ExportKey(filter.CompanyID, name)
		if err := s.archive.UploadObject(ctx, key, data, export.ContentTypeXLSX); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to archive worklist export")
		}
	}

	return data, name, nil
}

// Digest is the overdue and critical part of a company worklist.
type Digest struct {
	CompanyID string                       `json:"company_id"`
	Today     civil.Date                   `json:"today"`
	Overdue   []domain.UpcomingSurveyEntry `json:"overdue"`
	Critical  []domain.UpcomingSurveyEntry `json:"critical"`
	DueSoon   int                          `json:"due_soon"`
	Total     int                          `json:"total"`
}

// Digest summarises today's worklist of a company and publishes its status
// breakdown as the upcoming-surveys gauge.
func (s *SurveyService) Digest(ctx context.Context, companyID string) (*Digest, error) {
	list, err := s.Upcoming(ctx, domain.UpcomingSurveyFilter{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	s.metrics.SetUpcoming(companyID, list)

	d := &Digest{CompanyID: companyID, Today: list.Today, Total: list.Total}
	for _, e := range list.Entries {
		switch e.Status {
		case domain.StatusOverdue:
			d.Overdue = append(d.Overdue, e)
		case domain.StatusCritical:
			d.Critical = append(d.Critical, e)
		case domain.StatusDueSoon:
			d.DueSoon++
		}
	}
	return d, nil
}
