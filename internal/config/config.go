package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresuchdata/fleetdocs/internal/survey"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Survey    SurveyConfig
	Drive     DriveConfig
	Storage   StorageConfig
	GenAI     GenAIConfig
	Scheduler SchedulerConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq keyword connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// URL returns the postgres:// form used by the pgx driver.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	UpcomingTTLSeconds int
}

type SurveyConfig struct {
	MarginMonths          int
	DueSoonDays           int
	CriticalDays          int
	DockingIntervalMonths int
	WindowRules           string
}

type DriveConfig struct {
	CredentialsJSON string
	RootFolder      string
}

type StorageConfig struct {
	Enabled   bool
	Driver    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GenAIConfig struct {
	APIKey string
	Model  string
}

type SchedulerConfig struct {
	Enabled    bool
	DigestSpec string
	Timezone   string
}

type MetricsConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()
		viper.AutomaticEnv()

		instance = fromViper()
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "fleetdocs")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_UPCOMING_TTL_SECONDS", 300)

	viper.SetDefault("SURVEY_MARGIN_MONTHS", survey.DefaultMarginMonths)
	viper.SetDefault("SURVEY_DUE_SOON_DAYS", survey.DefaultDueSoonThresholdDays)
	viper.SetDefault("SURVEY_CRITICAL_DAYS", survey.DefaultCriticalThresholdDays)
	viper.SetDefault("SURVEY_DOCKING_INTERVAL_MONTHS", survey.DefaultDockingIntervalMonths)
	viper.SetDefault("SURVEY_WINDOW_RULES", "")

	viper.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	viper.SetDefault("DRIVE_ROOT_FOLDER", "Fleet Documents")

	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("STORAGE_DRIVER", "minio")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	viper.SetDefault("MINIO_ACCESS_KEY", "")
	viper.SetDefault("MINIO_SECRET_KEY", "")
	viper.SetDefault("MINIO_BUCKET", "fleetdocs-archive")
	viper.SetDefault("MINIO_USE_SSL", true)

	viper.SetDefault("GENAI_API_KEY", "")
	viper.SetDefault("GENAI_MODEL", "gemini-2.5-flash")

	viper.SetDefault("SCHEDULER_ENABLED", false)
	viper.SetDefault("SCHEDULER_DIGEST_SPEC", "0 6 * * *")
	viper.SetDefault("SCHEDULER_TIMEZONE", "UTC")

	viper.SetDefault("METRICS_ENABLED", true)
	viper.SetDefault("LOG_LEVEL", "")
}

func fromViper() *Config {
	mode := viper.GetString("SERVER_MODE")
	level := viper.GetString("LOG_LEVEL")
	if level == "" {
		level = "info"
		if mode == "debug" {
			level = "debug"
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           mode,
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:            viper.GetBool("CACHE_ENABLED"),
			RedisURL:           viper.GetString("REDIS_URL"),
			RedisHost:          viper.GetString("REDIS_HOST"),
			RedisPort:          viper.GetString("REDIS_PORT"),
			RedisPassword:      viper.GetString("REDIS_PASSWORD"),
			RedisDB:            viper.GetInt("REDIS_DB"),
			UpcomingTTLSeconds: viper.GetInt("CACHE_UPCOMING_TTL_SECONDS"),
		},
		Survey: SurveyConfig{
			MarginMonths:          viper.GetInt("SURVEY_MARGIN_MONTHS"),
			DueSoonDays:           viper.GetInt("SURVEY_DUE_SOON_DAYS"),
			CriticalDays:          viper.GetInt("SURVEY_CRITICAL_DAYS"),
			DockingIntervalMonths: viper.GetInt("SURVEY_DOCKING_INTERVAL_MONTHS"),
			WindowRules:           viper.GetString("SURVEY_WINDOW_RULES"),
		},
		Drive: DriveConfig{
			CredentialsJSON: viper.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			RootFolder:      viper.GetString("DRIVE_ROOT_FOLDER"),
		},
		Storage: StorageConfig{
			Enabled:   viper.GetBool("STORAGE_ENABLED"),
			Driver:    viper.GetString("STORAGE_DRIVER"),
			Region:    viper.GetString("STORAGE_REGION"),
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
		},
		GenAI: GenAIConfig{
			APIKey: viper.GetString("GENAI_API_KEY"),
			Model:  viper.GetString("GENAI_MODEL"),
		},
		Scheduler: SchedulerConfig{
			Enabled:    viper.GetBool("SCHEDULER_ENABLED"),
			DigestSpec: viper.GetString("SCHEDULER_DIGEST_SPEC"),
			Timezone:   viper.GetString("SCHEDULER_TIMEZONE"),
		},
		Metrics: MetricsConfig{
			Enabled: viper.GetBool("METRICS_ENABLED"),
		},
		Log: LogConfig{
			Level: level,
		},
	}
}

// SurveySettings converts the survey section into calculator settings.
func (c *Config) SurveySettings() (survey.Settings, error) {
	rules, err := survey.ParseWindowRules(c.Survey.WindowRules)
	if err != nil {
		return survey.Settings{}, fmt.Errorf("SURVEY_WINDOW_RULES: %w", err)
	}

	settings := survey.Settings{
		MarginMonths:          c.Survey.MarginMonths,
		DueSoonThresholdDays:  c.Survey.DueSoonDays,
		CriticalThresholdDays: c.Survey.CriticalDays,
		DockingIntervalMonths: c.Survey.DockingIntervalMonths,
		WindowRules:           rules,
	}
	if err := settings.Validate(); err != nil {
		return survey.Settings{}, err
	}
	return settings, nil
}

// Location resolves the scheduler timezone, which also defines "today" for
// the service layer.
func (c *Config) Location() *time.Location {
	name := strings.TrimSpace(c.Scheduler.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CacheTTL returns the upcoming-survey cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.UpcomingTTLSeconds) * time.Second
}
