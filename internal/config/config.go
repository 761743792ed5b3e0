package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration read from the environment.
type Config struct {
	// Server
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // "json" or "text"
	AppEnv    string `env:"APP_ENV" envDefault:"development"`

	// Uploads
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"uploads"`

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres"` // "postgres" or "memory" (single process, data lost on restart)
	DBURL         string `env:"DB_URL"`

	// Search cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"none"` // "redis", "memory" or "none"
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// Document events
	EventsProvider string `env:"EVENTS_PROVIDER" envDefault:"none"` // "nats" or "none"
	NATSURL        string `env:"NATS_URL"`

	// LLM
	LLMProvider   string `env:"LLM_PROVIDER" envDefault:"openai"` // "openai", "compatible" or "stub"
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	LLMModel      string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	CompatKey     string `env:"COMPAT_API_KEY"`
	CompatBaseURL string `env:"COMPAT_BASE_URL"`
	CompatModel   string `env:"COMPAT_MODEL"`

	// OCR
	VisionAPIKey          string `env:"GOOGLE_VISION_API_KEY"`
	VisionCredentialsFile string `env:"GOOGLE_VISION_CREDENTIALS_FILE"`
	TesseractPath         string `env:"TESSERACT_PATH" envDefault:"tesseract"`
	TesseractLang         string `env:"TESSERACT_LANG" envDefault:"eng"`
	OCRTargetWidth        int    `env:"OCR_TARGET_WIDTH" envDefault:"2000"`
	PDFOCREnabled         bool   `env:"PDF_OCR_ENABLED" envDefault:"false"`
	PdftoppmPath          string `env:"PDFTOPPM_PATH" envDefault:"pdftoppm"`
	PDFOCRDPI             int    `env:"PDF_OCR_DPI" envDefault:"300"`
	PDFOCRMaxPages        int    `env:"PDF_OCR_MAX_PAGES" envDefault:"20"`

	// Listing
	RecentDocumentsLimit int `env:"RECENT_DOCUMENTS_LIMIT" envDefault:"50"`
}

// Production reports whether error details must be hidden from API responses.
func (c Config) Production() bool {
	return c.AppEnv == "production"
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
