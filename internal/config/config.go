package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	// ErrMissingVariable is returned by Validate when a required variable was not set.
	ErrMissingVariable = errors.New("missing required environment variable")
	// ErrInvalidValue is returned by Load when an optional variable cannot be parsed.
	ErrInvalidValue = errors.New("invalid environment value")
)

// Database connection strategies. They are mutually exclusive.
const (
	StrategyConnection = "connection"
	StrategyPool       = "pool"
)

// Required lists the variables the application expects to find in the environment.
var Required = []string{
	"DB_HOST",
	"DB_PORT",
	"DB_USER",
	"DB_PASS",
	"DB_NAME",
	"SERVER_PORT",
	"CLIENT_URL",
	"JWT_AUTH_SECRET",
}

// Config holds everything read from the environment at process start.
// String fields are taken verbatim; an unset variable leaves the field empty.
type Config struct {
	DBHost string
	DBPort string
	DBUser string
	DBPass string
	DBName string

	ServerPort    string
	ClientURL     string
	JWTAuthSecret string

	// --- Optional tuning ---
	DBStrategy          string
	DBMaxOpenConns      int
	DBMaxIdleConns      int
	DBConnMaxLifetime   time.Duration
	DBConnectTimeout    time.Duration
	DBQueryLog          bool
	DBRequireConnection bool

	AppEnv         string
	LogLevel       string
	BodyLimitBytes int64

	// EnvFileLoaded is false when no env file could be read.
	EnvFileLoaded bool

	missing []string
}

// Load reads the given env files (".env" when none are given) into the
// process environment and then builds a Config from it. A missing env file
// is not fatal: the system environment is used as is.
func Load(files ...string) (*Config, error) {
	cfg := &Config{EnvFileLoaded: true}
	if err := godotenv.Load(files...); err != nil {
		cfg.EnvFileLoaded = false
	}

	cfg.DBHost = lookup("DB_HOST", &cfg.missing)
	cfg.DBPort = lookup("DB_PORT", &cfg.missing)
	cfg.DBUser = lookup("DB_USER", &cfg.missing)
	cfg.DBPass = lookup("DB_PASS", &cfg.missing)
	cfg.DBName = lookup("DB_NAME", &cfg.missing)
	cfg.ServerPort = lookup("SERVER_PORT", &cfg.missing)
	cfg.ClientURL = lookup("CLIENT_URL", &cfg.missing)
	cfg.JWTAuthSecret = lookup("JWT_AUTH_SECRET", &cfg.missing)

	cfg.DBStrategy = strings.ToLower(getenv("DB_STRATEGY", StrategyConnection))
	cfg.AppEnv = getenv("APP_ENV", "development")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")

	var err error
	if cfg.DBMaxOpenConns, err = intEnv("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = intEnv("DB_MAX_IDLE_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxLifetime, err = secondsEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DBConnectTimeout, err = secondsEnv("DB_CONNECT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.DBQueryLog, err = boolEnv("DB_QUERY_LOG", false); err != nil {
		return nil, err
	}
	if cfg.DBRequireConnection, err = boolEnv("DB_REQUIRE_CONNECTION", false); err != nil {
		return nil, err
	}
	limit, err := intEnv("BODY_LIMIT_BYTES", 100*1024)
	if err != nil {
		return nil, err
	}
	cfg.BodyLimitBytes = int64(limit)

	return cfg, nil
}

// Missing returns the required variables that were not present in the environment.
func (c *Config) Missing() []string {
	out := make([]string, len(c.missing))
	copy(out, c.missing)
	return out
}

// Validate reports missing required variables. Load never calls it; the
// caller decides whether an incomplete environment is acceptable.
func (c *Config) Validate() error {
	if len(c.missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingVariable, strings.Join(c.missing, ", "))
}

func lookup(key string, missing *[]string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		*missing = append(*missing, key)
	}
	return value
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}

func secondsEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return time.Duration(v) * time.Second, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, raw)
	}
	return v, nil
}
