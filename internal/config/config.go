package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvironment       = "staging"
	defaultPrefix            = "rave"
	defaultRequeryDelay      = 3 * time.Second
	defaultRequeryAttempts   = 5
	defaultVerifyTimeout     = 30 * time.Second
	defaultReconcileInterval = time.Minute
	defaultAppPort           = "8080"
)

type Config struct {
	PublicKey   string
	SecretKey   string
	Environment string
	Logo        string
	Title       string
	Prefix      string
	RedirectURL string

	RequeryDelay    time.Duration
	RequeryAttempts int
	VerifyTimeout   time.Duration

	ReconcileInterval time.Duration

	AppPort string
	AppEnv  string
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PublicKey:         os.Getenv("RAVE_PUBLIC_KEY"),
		SecretKey:         os.Getenv("RAVE_SECRET_KEY"),
		Environment:       getEnv("RAVE_ENVIRONMENT", defaultEnvironment),
		Logo:              os.Getenv("RAVE_LOGO"),
		Title:             os.Getenv("RAVE_TITLE"),
		Prefix:            getEnv("RAVE_PREFIX", defaultPrefix),
		RedirectURL:       os.Getenv("RAVE_REDIRECT_URL"),
		RequeryDelay:      getDuration("RAVE_REQUERY_DELAY", defaultRequeryDelay),
		RequeryAttempts:   getInt("RAVE_REQUERY_ATTEMPTS", defaultRequeryAttempts),
		VerifyTimeout:     getDuration("RAVE_VERIFY_TIMEOUT", defaultVerifyTimeout),
		ReconcileInterval: getDuration("RECONCILE_INTERVAL", defaultReconcileInterval),
		AppPort:           getEnv("APP_PORT", defaultAppPort),
		AppEnv:            os.Getenv("APP_ENV"),
	}

	if cfg.PublicKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("RAVE_PUBLIC_KEY and RAVE_SECRET_KEY must be set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// getDuration accepts Go durations ("3s") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
