package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/kirillkom/identity-scan/internal/config"
	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/identity-scan/internal/infrastructure/llm/openai"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresPatternStrategyWithoutDatabase(t *testing.T) {
	cfg := config.Defaults()
	cfg.ExtractionStrategy = config.StrategyPattern
	cfg.StoragePath = t.TempDir()

	app, err := New(context.Background(), cfg, "test", discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Extractor.Strategy() != domain.StrategyPattern {
		t.Fatalf("unexpected strategy %q", app.Extractor.Strategy())
	}
	rec, err := app.Extractor.Extract(context.Background(), "Full Name: Jane Doe\nCity: Oslo")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if rec.Get(domain.FieldFullName) != "Jane Doe" || rec.Get(domain.FieldCity) != "Oslo" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := app.Reader.GetByID(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found without scan history, got %v", err)
	}
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	cfg := config.Defaults()
	cfg.ExtractionStrategy = "guess"
	cfg.StoragePath = t.TempDir()

	if _, err := New(context.Background(), cfg, "test", discardLogger()); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestNewGeneratorFollowsProvider(t *testing.T) {
	cfg := config.Defaults()

	cfg.ModelProvider = config.ProviderOllama
	if _, ok := NewGenerator(cfg, discardLogger()).(*ollama.Generator); !ok {
		t.Fatalf("expected ollama generator")
	}

	cfg.ModelProvider = config.ProviderOpenAI
	if _, ok := NewGenerator(cfg, discardLogger()).(*openai.Generator); !ok {
		t.Fatalf("expected openai generator")
	}
}
