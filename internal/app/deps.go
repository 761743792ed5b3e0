package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"
	"github.com/spf13/afero"

	"doc-extractor/internal/blob"
	"doc-extractor/internal/cache"
	"doc-extractor/internal/chat"
	"doc-extractor/internal/config"
	"doc-extractor/internal/documents"
	"doc-extractor/internal/events"
	"doc-extractor/internal/extract"
	"doc-extractor/internal/index"
	"doc-extractor/internal/llm"
	"doc-extractor/internal/logger"
	"doc-extractor/internal/metrics"
	"doc-extractor/internal/store"
)

// Deps bundles the runtime dependencies of the gateway.
type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	Store     store.Store
	Cache     cache.Cache
	Events    events.Publisher
	LLM       llm.Client
	Index     *index.Engine
	Documents *documents.Service
	Chat      *chat.Service
}

// Close releases connections in reverse construction order.
func (d Deps) Close() error {
	var errs []error
	if d.Events != nil {
		errs = append(errs, d.Events.Close())
	}
	if d.Cache != nil {
		errs = append(errs, d.Cache.Close())
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	return errors.Join(errs...)
}

// LoadConfig reads .env when present, then the environment, and builds the logger.
func LoadConfig() (config.Config, *slog.Logger, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat), nil
}

// Build loads env, config, and shared components.
func Build(ctx context.Context) (Deps, error) {
	cfg, log, err := LoadConfig()
	if err != nil {
		return Deps{}, err
	}
	metrics.Init()

	d := Deps{Config: cfg, Log: log}
	d.Store, err = buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	d.Cache, err = buildCache(cfg, log)
	if err != nil {
		_ = d.Close()
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	d.Events, err = buildEvents(cfg, log)
	if err != nil {
		_ = d.Close()
		return Deps{}, fmt.Errorf("failed to initialize events: %w", err)
	}
	d.LLM, err = BuildLLM(cfg, log)
	if err != nil {
		_ = d.Close()
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	osFs := afero.NewOsFs()
	blobs, err := blob.New(osFs, cfg.UploadDir)
	if err != nil {
		_ = d.Close()
		return Deps{}, fmt.Errorf("failed to initialize upload storage: %w", err)
	}
	pipeline := BuildPipeline(ctx, cfg, osFs, log)

	d.Index = index.NewEngine(d.Store, d.Cache, cfg.CacheTTL, log)
	d.Documents = documents.NewService(blobs, pipeline, d.LLM, d.Store, d.Index, d.Events, log)
	d.Chat = chat.NewService(chat.NewOrchestrator(d.Store, d.LLM, log), d.Store)
	return d, nil
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: postgres, memory)", cfg.StoreProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("using Redis search cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		return c, nil
	case "memory":
		log.Info("using in-process search cache", "ttl", cfg.CacheTTL)
		return cache.NewMemoryCache(), nil
	case "none", "":
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: redis, memory, none)", cfg.CacheProvider)
	}
}

func buildEvents(cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	switch cfg.EventsProvider {
	case "nats":
		if cfg.NATSURL == "" {
			return nil, fmt.Errorf("NATS_URL is required when EVENTS_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("doc-extractor"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("publishing document events to NATS")
		return events.NewNATS(log, nc), nil
	case "none", "":
		return events.NewNoop(), nil
	default:
		return nil, fmt.Errorf("invalid EVENTS_PROVIDER: %s (valid options: nats, none)", cfg.EventsProvider)
	}
}

// BuildLLM resolves LLM_PROVIDER once. A provider without credentials falls
// back to the deterministic stub; an unknown provider is an error.
func BuildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	var (
		completer llm.Completer
		err       error
	)
	switch cfg.LLMProvider {
	case "openai":
		completer, err = llm.NewOpenAICompleter(cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel))
	case "compatible":
		if cfg.CompatBaseURL == "" {
			return nil, fmt.Errorf("COMPAT_BASE_URL is required when LLM_PROVIDER=compatible")
		}
		completer, err = llm.NewCompatCompleter(cfg.CompatKey, cfg.CompatBaseURL, cfg.CompatModel)
	case "stub":
		log.Info("using stub LLM client")
		return llm.NewStubClient(), nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: openai, compatible, stub)", cfg.LLMProvider)
	}
	if errors.Is(err, llm.ErrProviderUnavailable) {
		log.Warn("LLM provider not configured, falling back to stub client", "provider", cfg.LLMProvider, "err", err)
		return llm.NewStubClient(), nil
	}
	if err != nil {
		return nil, err
	}
	log.Info("using LLM client", "provider", completer.Name())
	return llm.NewPromptClient(completer, log), nil
}

// BuildPipeline wires the OCR chain (Google Vision, then Tesseract) into the
// text extraction pipeline. Providers that cannot be configured stay in the
// chain as unavailable so their absence shows up in extraction warnings.
func BuildPipeline(ctx context.Context, cfg config.Config, fsys afero.Fs, log *slog.Logger) *extract.Pipeline {
	runner := extract.ExecRunner{Log: log}

	vision, err := extract.NewVisionProvider(ctx, fsys, extract.VisionConfig{
		APIKey:          cfg.VisionAPIKey,
		CredentialsFile: cfg.VisionCredentialsFile,
	})
	if err != nil {
		log.Warn("google vision unavailable", "err", err)
		vision, _ = extract.NewVisionProvider(ctx, fsys, extract.VisionConfig{})
	}
	tesseract := extract.NewTesseractProvider(extract.TesseractConfig{
		Binary:      cfg.TesseractPath,
		Lang:        cfg.TesseractLang,
		TargetWidth: cfg.OCRTargetWidth,
	}, fsys, runner)

	providers := []extract.OCRProvider{vision, tesseract}
	for _, p := range providers {
		log.Info("ocr provider", "name", p.Name(), "available", p.Available())
	}
	return extract.NewPipeline(pipelineConfig(cfg), fsys, providers, runner, log)
}

func pipelineConfig(cfg config.Config) extract.Config {
	return extract.Config{
		PDFOCREnabled: cfg.PDFOCREnabled,
		Pdftoppm:      cfg.PdftoppmPath,
		DPI:           cfg.PDFOCRDPI,
		MaxPages:      cfg.PDFOCRMaxPages,
	}
}
