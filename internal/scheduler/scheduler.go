package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/fleetdocs/internal/metrics"
	"github.com/andresuchdata/fleetdocs/internal/service"
)

const jobDigest = "digest"

type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]string, error)
}

type FleetRecalculator interface {
	RecalculateCompany(ctx context.Context, companyID string) (int, error)
}

type DigestBuilder interface {
	Digest(ctx context.Context, companyID string) (*service.Digest, error)
}

// Scheduler runs the daily fleet digest: every company's ships are
// recalculated, then the overdue and critical surveys are logged.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	companies CompanyLister
	fleet     FleetRecalculator
	surveys   DigestBuilder
	metrics   *metrics.Metrics
	timeout   time.Duration
}

func New(spec string, loc *time.Location, companies CompanyLister, fleet FleetRecalculator, surveys DigestBuilder, m *metrics.Metrics) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		spec:      spec,
		companies: companies,
		fleet:     fleet,
		surveys:   surveys,
		metrics:   m,
		timeout:   10 * time.Minute,
	}
}

// Start registers the digest job and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.runJob(ctx) }); err != nil {
		return fmt.Errorf("add digest job %q: %w", s.spec, err)
	}

	s.cron.Start()
	log.Info().Str("spec", s.spec).Msg("Scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	<-done.Done()
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) runJob(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	digests, err := s.RunDigest(ctx)
	s.metrics.JobRun(jobDigest, err)
	if err != nil {
		log.Error().Err(err).Msg("digest job failed")
		return
	}
	log.Info().
		Int("companies", len(digests)).
		Dur("duration", time.Since(start)).
		Msg("digest job finished")
}

// RunDigest recalculates and digests every company. A failing company is
// logged and skipped; the joined errors are returned after all companies ran.
func (s *Scheduler) RunDigest(ctx context.Context) ([]*service.Digest, error) {
	companies, err := s.companies.ListCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}

	var (
		digests []*service.Digest
		errs    []error
	)
	for _, companyID := range companies {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		ships, err := s.fleet.RecalculateCompany(ctx, companyID)
		if err != nil {
			log.Error().Err(err).Str("company_id", companyID).Msg("fleet recalculation failed")
			errs = append(errs, fmt.Errorf("company %s: %w", companyID, err))
			continue
		}

		d, err := s.surveys.Digest(ctx, companyID)
		if err != nil {
			log.Error().Err(err).Str("company_id", companyID).Msg("survey digest failed")
			errs = append(errs, fmt.Errorf("company %s: %w", companyID, err))
			continue
		}

		logDigest(d, ships)
		digests = append(digests, d)
	}

	return digests, errors.Join(errs...)
}

func logDigest(d *service.Digest, ships int) {
	log.Info().
		Str("company_id", d.CompanyID).
		Str("today", d.Today.String()).
		Int("ships", ships).
		Int("overdue", len(d.Overdue)).
		Int("critical", len(d.Critical)).
		Int("due_soon", d.DueSoon).
		Int("total", d.Total).
		Msg("survey digest")

	for _, e := range d.Overdue {
		log.Warn().
			Str("company_id", d.CompanyID).
			Str("ship", e.ShipName).
			Str("certificate", e.CertificateName).
			Str("next_survey_date", e.NextSurveyDate.String()).
			Int("days", e.DaysUntilWindowClose).
			Msg("survey overdue")
	}
	for _, e := range d.Critical {
		log.Warn().
			Str("company_id", d.CompanyID).
			Str("ship", e.ShipName).
			Str("certificate", e.CertificateName).
			Str("next_survey_date", e.NextSurveyDate.String()).
			Int("days", e.DaysUntilWindowClose).
			Msg("survey critical")
	}
}
