package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/fleetdocs/internal/cache"
	"github.com/andresuchdata/fleetdocs/internal/config"
	"github.com/andresuchdata/fleetdocs/internal/repository/postgres"
	"github.com/andresuchdata/fleetdocs/internal/service"
	"github.com/andresuchdata/fleetdocs/internal/survey"
	"github.com/andresuchdata/fleetdocs/pkg/logger"
)

type dbKey struct{}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func newCompanyFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "company",
		Usage:    "Company ID the command operates on",
		Required: true,
		EnvVars:  []string{"FLEET_COMPANY_ID"},
	}
}

func newTodayFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "today",
		Usage: "Reference date (YYYY-MM-DD or DD/MM/YYYY), defaults to today",
	}
}

func initDB(c *cli.Context) error {
	db, err := sql.Open("pgx", c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.Context = context.WithValue(c.Context, dbKey{}, postgres.NewWithDB(db, "pgx"))
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey{}).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) *postgres.DB {
	db, _ := c.Context.Value(dbKey{}).(*postgres.DB)
	return db
}

// app bundles the services a command needs. The CLI runs without archive,
// Drive or metrics. The cache is the server's Redis when CACHE_ENABLED is
// set, so recalculations drop the worklists it serves.
type app struct {
	db      *postgres.DB
	cache   cache.UpcomingSurveyCache
	fleet   *service.ShipService
	surveys *service.SurveyService
}

func newApp(c *cli.Context) (*app, error) {
	db := dbFrom(c)
	if db == nil {
		return nil, fmt.Errorf("database not initialised")
	}

	cfg := config.Load()
	settings, err := cfg.SurveySettings()
	if err != nil {
		return nil, err
	}
	calc, err := survey.NewCalculator(settings)
	if err != nil {
		return nil, err
	}

	upcomingCache, err := cache.NewUpcomingSurveyCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, cached worklists are not invalidated")
		upcomingCache = cache.NewNoopUpcomingSurveyCache()
	}

	ships := postgres.NewShipRepository(db)
	certs := postgres.NewCertificateRepository(db)
	return &app{
		db:      db,
		cache:   upcomingCache,
		fleet:   service.NewShipService(ships, certs, calc, upcomingCache, nil),
		surveys: service.NewSurveyService(certs, calc, nil, nil, nil, cfg.Location()),
	}, nil
}

func main() {
	_ = godotenv.Load()
	logger.Setup(os.Getenv("LOG_LEVEL"), "debug")

	cliApp := &cli.App{
		Name:  "fleetctl",
		Usage: "Maintain the fleet certificate register",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create the ships and certificates tables",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeDB,
				Action: runMigrate,
			},
			{
				Name:  "import",
				Usage: "Import a certificate register (CSV or XLSX)",
				Flags: []cli.Flag{
					newDBURLFlag(),
					newCompanyFlag(),
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Register file to import",
						Required: true,
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runImport,
			},
			{
				Name:  "pull",
				Usage: "Download the registers of a Drive folder as CSV, optionally importing them",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "folder-id", Usage: "Drive folder ID"},
					&cli.StringFlag{Name: "path", Usage: "Drive folder path, e.g. \"Fleet Documents/Registers\""},
					&cli.StringFlag{
						Name:    "dir",
						Usage:   "Local directory for the downloaded registers",
						Value:   "./data/registers",
						EnvVars: []string{"REGISTER_DIR"},
					},
					&cli.StringFlag{Name: "company", Usage: "Import the pulled registers for this company"},
				},
				Before: initDB,
				After:  closeDB,
				Action: runPull,
			},
			{
				Name:  "recalc",
				Usage: "Recalculate anniversary, cycle, docking and next surveys",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:  "company",
						Usage: "Company ID; all companies when empty",
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runRecalc,
			},
			{
				Name:  "upcoming",
				Usage: "Print the upcoming survey worklist",
				Flags: []cli.Flag{
					newDBURLFlag(),
					newCompanyFlag(),
					newTodayFlag(),
					&cli.StringFlag{Name: "ship", Usage: "Filter by ship name (substring)"},
					&cli.StringFlag{Name: "status", Usage: "Filter by status (overdue, critical, due_soon, valid)"},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"},
				},
				Before: initDB,
				After:  closeDB,
				Action: runUpcoming,
			},
			{
				Name:  "export",
				Usage: "Write the upcoming survey worklist to an XLSX file",
				Flags: []cli.Flag{
					newDBURLFlag(),
					newCompanyFlag(),
					newTodayFlag(),
					&cli.StringFlag{Name: "ship", Usage: "Filter by ship name (substring)"},
					&cli.StringFlag{Name: "status", Usage: "Filter by status"},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file; defaults to the generated name in the current directory",
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runExport,
			},
			{
				Name:   "digest",
				Usage:  "Run the daily survey digest once for every company",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeDB,
				Action: runDigest,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("fleetctl failed")
	}
}
