package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/fleetdocs/internal/calendar"
	"github.com/andresuchdata/fleetdocs/internal/config"
	"github.com/andresuchdata/fleetdocs/internal/domain"
	"github.com/andresuchdata/fleetdocs/internal/drive"
	"github.com/andresuchdata/fleetdocs/internal/repository"
	"github.com/andresuchdata/fleetdocs/internal/repository/postgres"
	"github.com/andresuchdata/fleetdocs/internal/scheduler"
	"github.com/andresuchdata/fleetdocs/pkg/logger"
)

func runMigrate(c *cli.Context) error {
	if err := dbFrom(c).EnsureSchema(c.Context); err != nil {
		return err
	}
	logger.Log.Info().Msg("Schema is up to date")
	return nil
}

func runImport(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}

	ingest := drive.NewIngestService(nil, repository.NewIngestRepository(a.db.DB.DB), a.fleet)
	return importFile(c, ingest, c.String("company"), c.String("file"))
}

func importFile(c *cli.Context, ingest *drive.IngestService, companyID, path string) error {
	format := drive.FormatOf(path)
	if format == "" {
		return fmt.Errorf("%s: unsupported register file, expected .csv or .xlsx", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	result, err := ingest.IngestReader(c.Context, companyID, f, format)
	if err != nil {
		return fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}

	fmt.Fprintf(c.App.Writer, "%s: imported %d rows, %d ships, %d certificates\n",
		filepath.Base(path), result.Rows, result.Ships, result.Certificates)
	return nil
}

func runPull(c *cli.Context) error {
	cfg := config.Load()
	driveService, err := drive.NewService(c.Context, cfg.Drive.CredentialsJSON)
	if err != nil {
		return err
	}

	folderID := c.String("folder-id")
	if folderID == "" {
		if c.String("path") == "" {
			return fmt.Errorf("--folder-id or --path is required")
		}
		folderID, err = driveService.FindFolderByPath(c.Context, c.String("path"))
		if err != nil {
			return err
		}
	}

	paths, err := drive.NewDownloader(driveService).DownloadFolderCSV(c.Context, drive.DownloadOptions{
		FolderID:    folderID,
		DownloadDir: c.String("dir"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "downloaded %d registers to %s\n", len(paths), c.String("dir"))

	companyID := c.String("company")
	if companyID == "" {
		return nil
	}

	a, err := newApp(c)
	if err != nil {
		return err
	}
	ingest := drive.NewIngestService(nil, repository.NewIngestRepository(a.db.DB.DB), a.fleet)
	for _, path := range paths {
		if err := importFile(c, ingest, companyID, path); err != nil {
			return err
		}
	}
	return nil
}

func runRecalc(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}

	companies := []string{c.String("company")}
	if companies[0] == "" {
		companies, err = postgres.NewShipRepository(a.db).ListCompanies(c.Context)
		if err != nil {
			return err
		}
	}

	for _, companyID := range companies {
		n, err := a.fleet.RecalculateCompany(c.Context, companyID)
		if err != nil {
			return fmt.Errorf("company %s: %w", companyID, err)
		}
		fmt.Fprintf(c.App.Writer, "%s: recalculated %d ships\n", companyID, n)
	}
	if c.String("company") == "" {
		if err := a.cache.InvalidateAll(c.Context); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to invalidate cached worklists")
		}
	}
	return nil
}

func filterFrom(c *cli.Context) (domain.UpcomingSurveyFilter, error) {
	filter := domain.UpcomingSurveyFilter{
		CompanyID: c.String("company"),
		ShipName:  c.String("ship"),
		Status:    c.String("status"),
	}
	if filter.Status != "" {
		if _, ok := domain.ParseSurveyStatus(filter.Status); !ok {
			return filter, fmt.Errorf("unknown status %q", filter.Status)
		}
	}
	today, err := calendar.ParseOptional(c.String("today"))
	if err != nil {
		return filter, fmt.Errorf("--today: %w", err)
	}
	if today != nil {
		filter.Today = *today
	}
	return filter, nil
}

func runUpcoming(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}
	filter, err := filterFrom(c)
	if err != nil {
		return err
	}

	list, err := a.surveys.Upcoming(c.Context, filter)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	return printUpcoming(c, list)
}

func printUpcoming(c *cli.Context, list *domain.UpcomingSurveys) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SHIP\tCERTIFICATE\tTYPE\tNEXT SURVEY\tWINDOW\tDAYS\tSTATUS")
	for _, e := range list.Entries {
		name := e.CertificateName
		if e.CertificateAbbr != "" {
			name = fmt.Sprintf("%s (%s)", name, e.CertificateAbbr)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ShipName, name, e.NextSurveyType, e.NextSurveyDate, e.WindowType,
			e.DaysUntilWindowClose, e.Status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\n%d of %d surveys as of %s (%d certificates skipped)\n",
		list.Count, list.Total, list.Today, list.Skipped)
	return nil
}

func runExport(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}
	filter, err := filterFrom(c)
	if err != nil {
		return err
	}

	data, name, err := a.surveys.ExportXLSX(c.Context, filter)
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		out = name
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", out)
	return nil
}

func runDigest(c *cli.Context) error {
	a, err := newApp(c)
	if err != nil {
		return err
	}

	ships := postgres.NewShipRepository(a.db)
	digests, err := scheduler.New("@daily", nil, ships, a.fleet, a.surveys, nil).RunDigest(c.Context)
	for _, d := range digests {
		fmt.Fprintf(c.App.Writer, "%s: %d overdue, %d critical, %d due soon of %d\n",
			d.CompanyID, len(d.Overdue), len(d.Critical), d.DueSoon, d.Total)
	}
	return err
}
