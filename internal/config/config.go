package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	APIBaseURL      string
	RequestTimeout  time.Duration
	SubmitSkip      bool
	CameraCommand   string
	CameraDevice    string
	CameraPermSkip  bool
	SpoolDir        string
	NoticeBackend   string
	NoticeKey       string
	NoticeHistory   int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RateLimitPerMin int

	// Warnings lists values that could not be used. Load runs before any logger
	// exists, so callers log these with LogWarnings.
	Warnings []Warning
}

// Warning is one rejected environment value or .env problem.
type Warning struct {
	Key   string
	Value string
	Err   error
}

func (w Warning) String() string {
	if w.Key == "" {
		return w.Err.Error()
	}
	return fmt.Sprintf("%s=%q: %v, using default", w.Key, w.Value, w.Err)
}

// LogWarnings reports every rejected value on l.
func (a App) LogWarnings(l *zap.Logger) {
	for _, w := range a.Warnings {
		l.Warn("config value ignored", zap.String("key", w.Key), zap.String("value", w.Value), zap.Error(w.Err))
	}
}

// Load reads an optional .env file, then returns config populated from environment
// variables with sensible defaults.
func Load() App {
	var e envReader
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		e.warn("", "", fmt.Errorf("parse .env: %w", err))
	}
	cfg := App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8081"),
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:8000"),
		RequestTimeout:  e.getDuration("REQUEST_TIMEOUT", 30*time.Second),
		SubmitSkip:      e.getBool("SUBMIT_SKIP", false),
		CameraCommand:   getEnv("CAMERA_COMMAND", ""),
		CameraDevice:    getEnv("CAMERA_DEVICE", "/dev/video0"),
		CameraPermSkip:  e.getBool("CAMERA_PERMISSION_SKIP", false),
		SpoolDir:        getEnv("SPOOL_DIR", os.TempDir()),
		NoticeBackend:   getEnv("NOTICE_BACKEND", "memory"),
		NoticeKey:       getEnv("NOTICE_KEY", "faceattend:notices"),
		NoticeHistory:   e.getInt("NOTICE_HISTORY", 20),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         e.getInt("REDIS_DB", 0),
		RateLimitPerMin: e.getInt("RATE_LIMIT_PER_MIN", 120),
	}
	cfg.Warnings = e.warnings
	return cfg
}

// Production reports whether APP_ENV selects production behaviour.
func (a App) Production() bool {
	return a.Env == "production" || a.Env == "prod"
}

// NewLogger builds the process logger for this environment.
func (a App) NewLogger() (*zap.Logger, error) {
	if a.Production() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// envReader parses typed values and keeps a warning for each one it rejects.
type envReader struct {
	warnings []Warning
}

func (e *envReader) warn(key, val string, err error) {
	e.warnings = append(e.warnings, Warning{Key: key, Value: val, Err: err})
}

func (e *envReader) getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		e.warn(key, val, err)
		return fallback
	}
	return d
}

func (e *envReader) getBool(key string, fallback bool) bool {
	switch val := os.Getenv(key); val {
	case "":
		return fallback
	case "1", "true", "TRUE":
		return true
	case "0", "false", "FALSE":
		return false
	default:
		e.warn(key, val, errors.New("not a boolean"))
		return fallback
	}
}

func (e *envReader) getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		e.warn(key, val, err)
		return fallback
	}
	return n
}
