package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/identity-scan/internal/config"
	"github.com/kirillkom/identity-scan/internal/core/extraction"
	"github.com/kirillkom/identity-scan/internal/core/ports"
	"github.com/kirillkom/identity-scan/internal/core/usecase"
	"github.com/kirillkom/identity-scan/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/identity-scan/internal/infrastructure/llm/openai"
	"github.com/kirillkom/identity-scan/internal/infrastructure/ocr/tesseract"
	"github.com/kirillkom/identity-scan/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/identity-scan/internal/infrastructure/resilience"
	"github.com/kirillkom/identity-scan/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/identity-scan/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	HTTPMetrics *metrics.HTTPServerMetrics
	ScanMetrics *metrics.ScanMetrics

	Scanner   ports.DocumentScanner
	Extractor ports.TextExtractionService
	Reader    ports.DocumentReader

	closeFn func()
}

// New wires storage, OCR, the configured extractor and the optional scan
// history into the inbound use cases.
func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	scanMetrics := metrics.NewScanMetrics(service, httpMetrics.Registerer())

	var (
		repo ports.ScanRepository
		db   *sql.DB
	)
	if strings.TrimSpace(cfg.PostgresDSN) != "" {
		var err error
		db, err = postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		scanRepo := postgres.NewScanRepository(db)
		if err := scanRepo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		repo = scanRepo
		logger.Info("bootstrap.scan_history.enabled")
	}

	closeAll := func() {
		if db != nil {
			_ = db.Close()
		}
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var generator ports.TextGenerator
	if cfg.ExtractionStrategy == config.StrategyModel {
		generator = NewGenerator(cfg, logger)
	}
	fieldExtractor, err := extraction.New(cfg.ExtractionStrategy, generator, extraction.ModelOptions{
		Timeout: cfg.ModelTimeout(),
		Logger:  logger,
		OnSchemaDrift: func(error) {
			scanMetrics.ObserveSchemaDrift(config.StrategyModel)
		},
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	recognizer := tesseract.New(storage, tesseract.Config{
		Binary:        cfg.TesseractPath,
		Timeout:       cfg.OCRTimeout(),
		MaxImageBytes: cfg.UploadMaxBytes,
	}, logger)

	processUC := usecase.NewProcessDocumentUseCase(recognizer, fieldExtractor, usecase.ProcessOptions{
		Repository: repo,
		Observer:   scanMetrics,
		Language:   cfg.OCRLanguage,
		Logger:     logger,
	})

	var processor ports.DocumentProcessor = processUC
	if cfg.ResilienceEnabled {
		policy := resilience.DefaultPolicy()
		policy.Attempts = cfg.ResilienceRetryMaxAttempts
		policy.Breaker.Enabled = cfg.ResilienceBreakerEnabled
		policy.OnStateChange = scanMetrics.ObserveBreakerState
		processor = usecase.NewResilientProcessor(processUC, policy, logger)
	}

	scanUC := usecase.NewScanDocumentUseCase(storage, processor, usecase.ScanOptions{
		Repository:  repo,
		KeepUploads: cfg.StorageKeepUploads,
		Logger:      logger,
	})
	extractUC := usecase.NewExtractTextUseCase(fieldExtractor, scanMetrics, logger)

	logger.Info("bootstrap.ready",
		"strategy", fieldExtractor.Strategy(),
		"model_provider", cfg.ModelProvider,
		"resilience", cfg.ResilienceEnabled,
		"scan_history", repo != nil,
	)

	return &App{
		Config: cfg,
		Logger: logger,

		HTTPMetrics: httpMetrics,
		ScanMetrics: scanMetrics,

		Scanner:   scanUC,
		Extractor: extractUC,
		Reader:    scanUC,

		closeFn: closeAll,
	}, nil
}

// NewGenerator returns the text generator for the configured model provider.
func NewGenerator(cfg config.Config, logger *slog.Logger) ports.TextGenerator {
	if cfg.ModelProvider == config.ProviderOllama {
		return ollama.NewGenerator(ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, logger))
	}
	return openai.NewGenerator(openai.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: float32(cfg.OpenAITemperature),
		Logger:      logger,
	})
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
