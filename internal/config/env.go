package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ReportConfig controls the pipeline itself.
type ReportConfig struct {
	WorkDir           string
	OutputDir         string
	LinesPerIndexPage int
	MaxIndexPasses    int
	KeepWork          bool
	// SniffContent drops files whose bytes contradict their extension.
	SniffContent bool
}

// ConverterConfig controls spreadsheet conversion.
type ConverterConfig struct {
	LibreOffice bool
	Binary      string
	Timeout     time.Duration
	Workers     int
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Port          string
	MaxConcurrent int
	MaxUploadMB   int64
	JobTTL        time.Duration
	JobTimeout    time.Duration
	JobsDir       string
	// Dashboard login; the dashboard is open when WebUser is empty.
	WebUser     string
	WebPassword string
}

// RedisConfig enables the shared status store and run lock when URL is set.
type RedisConfig struct {
	URL     string
	LockTTL time.Duration
}

// StorageConfig enables S3 upload of delivery archives when Bucket is set.
type StorageConfig struct {
	Bucket   string
	Prefix   string
	Region   string
	Attempts uint
}

// WatchConfig controls the inbox watcher.
type WatchConfig struct {
	Inbox  string
	Settle time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging   LoggingConfig
	Axiom     AxiomConfig
	Report    ReportConfig
	Converter ConverterConfig
	Server    ServerConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Watch     WatchConfig
}

// LoadDotEnv loads .env files into the environment. Missing files are not an
// error; variables already set win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/mtreport.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_mtreport",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Report = ReportConfig{
		WorkDir:           getEnv("REPORT_WORK_DIR", filepath.Join(os.TempDir(), "mtreport")),
		OutputDir:         getEnv("REPORT_OUTPUT_DIR", "output"),
		LinesPerIndexPage: parseInt(getEnv("REPORT_INDEX_LINES", "35"), 35),
		MaxIndexPasses:    parseInt(getEnv("REPORT_INDEX_PASSES", "4"), 4),
		KeepWork:          parseBool(getEnv("REPORT_KEEP_WORK", "0")),
		SniffContent:      parseBool(getEnv("REPORT_SNIFF_CONTENT", "true")),
	}

	cfg.Converter = ConverterConfig{
		LibreOffice: parseBool(getEnv("LIBREOFFICE_ENABLED", "true")),
		Binary:      getEnv("LIBREOFFICE_BIN", "libreoffice"),
		Timeout:     parseDuration(getEnv("LIBREOFFICE_TIMEOUT", "180s"), 180*time.Second),
		Workers:     parseInt(getEnv("LIBREOFFICE_WORKERS", "2"), 2),
	}

	cfg.Server = ServerConfig{
		Port:          getEnv("PORT", "8080"),
		MaxConcurrent: parseInt(getEnv("MAX_CONCURRENT_RUNS", "1"), 1),
		MaxUploadMB:   int64(parseInt(getEnv("MAX_UPLOAD_MB", "512"), 512)),
		JobTTL:        parseDuration(getEnv("JOB_TTL", "24h"), 24*time.Hour),
		JobTimeout:    parseDuration(getEnv("JOB_TIMEOUT", "1h"), time.Hour),
		JobsDir:       getEnv("JOBS_DIR", filepath.Join("data", "jobs")),
		WebUser:       getEnv("WEB_USERNAME", ""),
		WebPassword:   getEnv("WEB_PASSWORD", ""),
	}

	cfg.Redis = RedisConfig{
		URL:     getEnv("REDIS_URL", ""),
		LockTTL: parseDuration(getEnv("RUN_LOCK_TTL", "30m"), 30*time.Minute),
	}

	cfg.Storage = StorageConfig{
		Bucket:   getEnv("S3_BUCKET", ""),
		Prefix:   getEnv("S3_PREFIX", "reports/"),
		Region:   getEnv("AWS_REGION", ""),
		Attempts: uint(parseInt(getEnv("S3_UPLOAD_ATTEMPTS", "3"), 3)),
	}

	cfg.Watch = WatchConfig{
		Inbox:  getEnv("WATCH_INBOX", "inbox"),
		Settle: parseDuration(getEnv("WATCH_SETTLE", "2s"), 2*time.Second),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
