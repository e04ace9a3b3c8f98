package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Port          string
	BaseURL       string
	Timeout       time.Duration
	UploadDir     string
	MaxUploadSize int64
	DBPath        string
	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration
	PreviewSize   int
	ViewTTL       time.Duration
	LogLevel      string
	LogFormat     string
}

const (
	DefaultPort          = "8080"
	DefaultBaseURL       = "http://localhost:8000/api/v1"
	DefaultTimeout       = 120 * time.Second
	DefaultUploadDir     = "./uploads"
	DefaultMaxUploadSize = 60 << 20
	DefaultDBPath        = "./paintestimator.db"
	DefaultCacheTTL      = time.Hour
	DefaultPreviewSize   = 320
	DefaultViewTTL       = 2 * time.Hour
)

// Load reads configuration from the environment. A .env file in the working
// directory, when present, is loaded first and never overrides variables
// that are already set.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an environment lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:          orDefault(getenv("PORT"), DefaultPort),
		BaseURL:       orDefault(getenv("ESTIMATOR_BASE_URL"), DefaultBaseURL),
		UploadDir:     orDefault(getenv("UPLOAD_DIR"), DefaultUploadDir),
		DBPath:        orDefault(getenv("DB_PATH"), DefaultDBPath),
		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		LogLevel:      orDefault(getenv("LOG_LEVEL"), "info"),
		LogFormat:     orDefault(getenv("LOG_FORMAT"), "json"),
	}

	var err error
	if cfg.Timeout, err = duration(getenv, "REQUEST_TIMEOUT", DefaultTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = duration(getenv, "CACHE_TTL", DefaultCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.ViewTTL, err = duration(getenv, "VIEW_TTL", DefaultViewTTL); err != nil {
		return Config{}, err
	}

	previewSize, err := integer(getenv, "PREVIEW_SIZE", DefaultPreviewSize)
	if err != nil {
		return Config{}, err
	}
	cfg.PreviewSize = int(previewSize)

	if cfg.MaxUploadSize, err = integer(getenv, "MAX_UPLOAD_SIZE", DefaultMaxUploadSize); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// NewLogger builds the process logger. LOG_FORMAT=console gives
// human-readable output for local runs.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}

	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// duration accepts Go durations ("90s") or a bare number of seconds.
func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			return 0, fmt.Errorf("invalid %s %q", key, v)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}

func integer(getenv func(string) string, key string, def int64) (int64, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}
