package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Save original env and restore after test
	originalEnv := os.Environ()
	defer func() {
		os.Clearenv()
		for _, env := range originalEnv {
			// Parse and restore each env var
			for i, c := range env {
				if c == '=' {
					os.Setenv(env[:i], env[i+1:])
					break
				}
			}
		}
	}()

	// Clear env to test defaults
	os.Clearenv()

	cfg := Load()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port", cfg.Port, 8080},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "json"},
		{"AppEnv", cfg.AppEnv, "development"},
		{"MaxUploadSize", cfg.MaxUploadSize, int64(10485760)},
		{"UploadDir", cfg.UploadDir, "uploads"},
		{"StoreProvider", cfg.StoreProvider, "postgres"},
		{"CacheProvider", cfg.CacheProvider, "none"},
		{"CacheTTL", cfg.CacheTTL, 5 * time.Minute},
		{"EventsProvider", cfg.EventsProvider, "none"},
		{"LLMProvider", cfg.LLMProvider, "openai"},
		{"LLMModel", cfg.LLMModel, "gpt-4o-mini"},
		{"TesseractPath", cfg.TesseractPath, "tesseract"},
		{"TesseractLang", cfg.TesseractLang, "eng"},
		{"OCRTargetWidth", cfg.OCRTargetWidth, 2000},
		{"PDFOCREnabled", cfg.PDFOCREnabled, false},
		{"PDFOCRDPI", cfg.PDFOCRDPI, 300},
		{"PDFOCRMaxPages", cfg.PDFOCRMaxPages, 20},
		{"RecentDocumentsLimit", cfg.RecentDocumentsLimit, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s=%v, got %v", tt.name, tt.expected, tt.got)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("PDF_OCR_ENABLED", "true")
	t.Setenv("PDF_OCR_MAX_PAGES", "5")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("expected cache ttl 30s, got %v", cfg.CacheTTL)
	}
	if !cfg.PDFOCREnabled {
		t.Error("expected PDF OCR fallback to be enabled")
	}
	if cfg.PDFOCRMaxPages != 5 {
		t.Errorf("expected pdf ocr page cap 5, got %d", cfg.PDFOCRMaxPages)
	}
}

func TestLoadProviderOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "compatible")
	t.Setenv("COMPAT_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("STORE_PROVIDER", "memory")

	cfg := Load()

	if cfg.LLMProvider != "compatible" {
		t.Errorf("expected LLM provider 'compatible', got %s", cfg.LLMProvider)
	}
	if cfg.CompatBaseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected compat base url %s", cfg.CompatBaseURL)
	}
	if cfg.StoreProvider != "memory" {
		t.Errorf("expected store provider 'memory', got %s", cfg.StoreProvider)
	}
}

func TestProduction(t *testing.T) {
	if (Config{AppEnv: "production"}).Production() != true {
		t.Error("expected production")
	}
	if (Config{AppEnv: "development"}).Production() {
		t.Error("development must expose error details")
	}
}
