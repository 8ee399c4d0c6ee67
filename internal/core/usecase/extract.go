package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/core/ports"
)

// ExtractTextUseCase runs field extraction on text that was recognized
// elsewhere. It skips OCR entirely.
type ExtractTextUseCase struct {
	extractor ports.FieldExtractor
	observer  ports.ScanObserver
	logger    *slog.Logger
}

func NewExtractTextUseCase(extractor ports.FieldExtractor, observer ports.ScanObserver, logger *slog.Logger) *ExtractTextUseCase {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractTextUseCase{extractor: extractor, observer: observer, logger: logger}
}

func (uc *ExtractTextUseCase) Strategy() string {
	return uc.extractor.Strategy()
}

func (uc *ExtractTextUseCase) Extract(ctx context.Context, rawText string) (domain.Record, error) {
	if strings.TrimSpace(rawText) == "" {
		return domain.Record{}, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("text is empty"))
	}

	strategy := uc.extractor.Strategy()
	start := time.Now()
	rec, err := uc.extractor.Extract(ctx, rawText)
	uc.observer.ObserveStage(stageExtract, time.Since(start))
	if err != nil {
		outcome := outcomeError
		if domain.IsKind(err, domain.ErrExternalService) {
			outcome = outcomeModelError
		}
		uc.observer.ObserveScan(strategy, outcome)
		return domain.Record{}, fmt.Errorf("extract fields: %w", err)
	}

	outcome := domain.OutcomeStructured
	if rec.IsFallback() {
		outcome = domain.OutcomeFallback
	}
	uc.observer.ObserveScan(strategy, string(outcome))
	uc.logger.Info("extract.completed", "strategy", strategy, "outcome", outcome, "detected", rec.Detected())
	return rec, nil
}
