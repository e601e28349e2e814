// Package config provides application configuration.
//
// Values are resolved in order: built-in defaults, then an optional YAML file
// named by CONFIG_FILE, then environment variables (a .env file in the working
// directory is loaded first when present).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	App       AppConfig       `yaml:"app"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          string `yaml:"port"`
	ReadTimeout   int    `yaml:"read_timeout"`  // seconds
	WriteTimeout  int    `yaml:"write_timeout"` // seconds
	IdleTimeout   int    `yaml:"idle_timeout"`  // seconds
	SessionSecret string `yaml:"session_secret"`
}

// DatabaseConfig holds PostgreSQL connection settings.
// DSN, when set, takes precedence over the individual fields.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Debug    bool   `yaml:"debug"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev bool `yaml:"dev"`
	// Migrations selects SQL migrations from MigrationsDir instead of AutoMigrate.
	Migrations    bool   `yaml:"migrations"`
	MigrationsDir string `yaml:"migrations_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RedisConfig holds the connection used for batch run locks.
// An empty Addr disables locking.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// SchedulerConfig holds cron specs for the background worker.
type SchedulerConfig struct {
	ReconcileSpec string `yaml:"reconcile_spec"`
	GenerateSpec  string `yaml:"generate_spec"`
	HealthSpec    string `yaml:"health_spec"`
}

// ReconcileConfig holds matcher tolerances.
type ReconcileConfig struct {
	AmountTolerance   float64       `yaml:"amount_tolerance"`
	DateToleranceDays int           `yaml:"date_tolerance_days"`
	MaxPairs          int           `yaml:"max_pairs"`
	Timeout           time.Duration `yaml:"timeout"` // 0 disables
}

// OpenAIConfig holds the extraction model settings.
// An empty APIKey disables extraction.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// ConnString returns the PostgreSQL connection string, preferring an explicit DSN.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Defaults returns the configuration used for local development.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			ReadTimeout:   15,
			WriteTimeout:  15,
			IdleTimeout:   60,
			SessionSecret: "dev-insecure-secret-change-me",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "billflow",
			Password: "billflow",
			DBName:   "billflow",
			SSLMode:  "disable",
		},
		App: AppConfig{
			Dev:           true,
			MigrationsDir: "migrations",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Redis: RedisConfig{
			LockTTL: 10 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			ReconcileSpec: "*/15 * * * *",
			GenerateSpec:  "0 6 * * *",
			HealthSpec:    "30 2 * * *",
		},
		Reconcile: ReconcileConfig{
			AmountTolerance:   0.01,
			DateToleranceDays: 7,
			MaxPairs:          250000,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
	}
}

// Load reads configuration from defaults, CONFIG_FILE and the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	// ${VAR} references are expanded before parsing
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvInt("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvInt("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvInt("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.SessionSecret = getEnv("SESSION_SECRET", c.Server.SessionSecret)

	c.Database.DSN = getEnv("DATABASE_DSN", c.Database.DSN)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.Debug = getEnvBool("DB_DEBUG", c.Database.Debug)

	c.App.Dev = getEnvBool("DEV", c.App.Dev)
	c.App.Migrations = getEnvBool("MIGRATIONS", c.App.Migrations)
	c.App.MigrationsDir = getEnv("MIGRATIONS_DIR", c.App.MigrationsDir)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.Output = getEnv("LOG_OUTPUT", c.Log.Output)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.LockTTL = getEnvDuration("REDIS_LOCK_TTL", c.Redis.LockTTL)

	c.Scheduler.ReconcileSpec = getEnv("RECONCILE_CRON", c.Scheduler.ReconcileSpec)
	c.Scheduler.GenerateSpec = getEnv("GENERATE_CRON", c.Scheduler.GenerateSpec)
	c.Scheduler.HealthSpec = getEnv("HEALTH_CRON", c.Scheduler.HealthSpec)

	c.Reconcile.AmountTolerance = getEnvFloat("RECONCILE_AMOUNT_TOLERANCE", c.Reconcile.AmountTolerance)
	c.Reconcile.DateToleranceDays = getEnvInt("RECONCILE_DATE_TOLERANCE_DAYS", c.Reconcile.DateToleranceDays)
	c.Reconcile.MaxPairs = getEnvInt("RECONCILE_MAX_PAIRS", c.Reconcile.MaxPairs)
	c.Reconcile.Timeout = getEnvDuration("RECONCILE_TIMEOUT", c.Reconcile.Timeout)

	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.Model = getEnv("OPENAI_MODEL", c.OpenAI.Model)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s", "5m").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
