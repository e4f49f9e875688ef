package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/todoapi/internal/logger"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultRedisURL      = "redis://localhost:6379/0"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProd
	defaultAccessTTL     = 15 * time.Minute
	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultCacheTTL      = time.Hour
	defaultSweepInterval = time.Hour
	defaultRetention     = 24 * time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Write logs to the rotated file too if set
	LogFile string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis to cache task lists in
	RedisURL string

	// Secret key
	// Used to sign JWT access tokens, so has to be kept in secret and be long enough
	SecretKey string

	// Token lifetimes
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// How long task lists live in cache
	CacheTTL time.Duration

	// How often stale refresh tokens are deleted and how long they are kept after expiration or revocation
	SweepInterval  time.Duration
	TokenRetention time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		RedisURL:       defaultRedisURL,
		AccessTTL:      defaultAccessTTL,
		RefreshTTL:     defaultRefreshTTL,
		CacheTTL:       defaultCacheTTL,
		SweepInterval:  defaultSweepInterval,
		TokenRetention: defaultRetention,
		Environment:    defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"REDIS_URL":            setString(&c.RedisURL),
		"SECRET_KEY":           setString(&c.SecretKey),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"LOG_FILE":             setString(&c.LogFile),
		"ENVIRONMENT":          setString(&c.Environment),
		"ACCESS_TOKEN_TTL":     setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL":    setDuration(&c.RefreshTTL),
		"CACHE_TTL":            setDuration(&c.CacheTTL),
		"TOKEN_SWEEP_INTERVAL": setDuration(&c.SweepInterval),
		"TOKEN_RETENTION":      setDuration(&c.TokenRetention),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s value. Err: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("todoapi", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis connection url")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Rotated log file, logs go to stderr only if empty")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.DurationVar(&c.CacheTTL, "cache-ttl", c.CacheTTL, "Task list cache lifetime")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "How often stale refresh tokens are deleted")
	fs.DurationVar(&c.TokenRetention, "token-retention", c.TokenRetention, "How long expired or revoked refresh tokens are kept")

	return fs.Parse(args)
}

// Check options the service can't start without
func (c *Config) Validate() error {
	switch {
	case c.SecretKey == "":
		return errors.New("secret key is required, set SECRET_KEY or --secret-key")
	case c.DatabaseDSN == "":
		return errors.New("database is required, set DATABASE_URI or --database")
	case c.AccessTTL <= 0 || c.RefreshTTL <= 0:
		return errors.New("token lifetimes have to be positive")
	case c.CacheTTL <= 0:
		return errors.New("cache ttl has to be positive")
	}
	return nil
}
