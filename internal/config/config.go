package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendBigQuery = "bigquery"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// Config holds every runtime setting. It is built once at startup.
type Config struct {
	ProjectID    string
	Dataset      string
	Location     string
	Bucket       string
	StoreBackend string
	SQLitePath   string

	GeminiAPIKey      string
	GeminiModel       string
	UseVertexAI       bool
	VertexLocation    string
	ClassifyBatchSize int
	ClassifyTimeout   time.Duration
	ClassifyRPS       float64

	JWTSecret string
	Port      string
	LogLevel  string

	NotionToken string
	NotionDBID  string

	// DotEnvLoaded reports whether a .env file was found.
	DotEnvLoaded bool
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil
	cfg, err := FromLookup(os.LookupEnv)
	if cfg != nil {
		cfg.DotEnvLoaded = loaded
	}
	return cfg, err
}

// FromLookup builds a Config from an arbitrary variable source. Missing
// required values and unparsable numbers are collected into one ConfigError.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}

	cfg := &Config{
		ProjectID:    r.str("GCP_PROJECT_ID", ""),
		Dataset:      r.str("BQ_DATASET", "personal_finance"),
		Location:     r.str("BQ_LOCATION", "US"),
		Bucket:       r.str("GCS_BUCKET", "personal-finance-dashboard"),
		StoreBackend: strings.ToLower(r.str("STORE_BACKEND", BackendBigQuery)),
		SQLitePath:   r.str("SQLITE_PATH", "money_mirror.db"),

		GeminiAPIKey:      r.str("GEMINI_API_KEY", ""),
		GeminiModel:       r.str("GEMINI_MODEL", "gemini-2.5-flash"),
		UseVertexAI:       r.boolean("GOOGLE_GENAI_USE_VERTEXAI", false),
		VertexLocation:    r.str("GOOGLE_CLOUD_LOCATION", "us-central1"),
		ClassifyBatchSize: r.integer("CLASSIFY_BATCH_SIZE", 20),
		ClassifyTimeout:   r.duration("CLASSIFY_TIMEOUT", 60*time.Second),
		ClassifyRPS:       r.float("CLASSIFY_RPS", 1),

		JWTSecret: r.str("JWT_SECRET", ""),
		Port:      r.str("PORT", "8080"),
		LogLevel:  r.str("LOG_LEVEL", "info"),

		NotionToken: r.str("NOTION_TOKEN", ""),
		NotionDBID:  r.str("NOTION_DB_ID", ""),
	}

	switch cfg.StoreBackend {
	case BackendBigQuery:
		if cfg.ProjectID == "" {
			r.missing = append(r.missing, "GCP_PROJECT_ID")
		}
	case BackendSQLite, BackendMemory:
	default:
		r.invalid = append(r.invalid, "STORE_BACKEND")
	}
	if cfg.ClassifyBatchSize <= 0 {
		r.invalid = append(r.invalid, "CLASSIFY_BATCH_SIZE")
	}
	if cfg.ClassifyRPS <= 0 {
		r.invalid = append(r.invalid, "CLASSIFY_RPS")
	}

	if len(r.missing) > 0 || len(r.invalid) > 0 {
		return cfg, &domain.ConfigError{Missing: r.missing, Invalid: r.invalid}
	}
	return cfg, nil
}

// RequireClassifier checks the settings needed to call Gemini.
func (c *Config) RequireClassifier() error {
	if c.GeminiAPIKey == "" && !c.UseVertexAI {
		return &domain.ConfigError{Missing: []string{"GEMINI_API_KEY"}}
	}
	return nil
}

// RequireNotion checks the settings needed by the Notion export.
func (c *Config) RequireNotion() error {
	var missing []string
	if c.NotionToken == "" {
		missing = append(missing, "NOTION_TOKEN")
	}
	if c.NotionDBID == "" {
		missing = append(missing, "NOTION_DB_ID")
	}
	if len(missing) > 0 {
		return &domain.ConfigError{Missing: missing}
	}
	return nil
}

// AuthEnabled reports whether request tokens are checked.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

type reader struct {
	lookup  func(string) (string, bool)
	missing []string
	invalid []string
}

func (r *reader) str(key, fallback string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (r *reader) integer(key string, fallback int) int {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.invalid = append(r.invalid, key)
		return fallback
	}
	return n
}

func (r *reader) float(key string, fallback float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.invalid = append(r.invalid, key)
		return fallback
	}
	return f
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.invalid = append(r.invalid, key)
		return fallback
	}
	return d
}

func (r *reader) boolean(key string, fallback bool) bool {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.invalid = append(r.invalid, key)
		return fallback
	}
	return b
}
