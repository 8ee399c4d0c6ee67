package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/core/ports"
)

const (
	stageOCR     = "ocr"
	stageExtract = "extract"

	outcomeOCRError   = "ocr_error"
	outcomeModelError = "model_error"
	outcomeError      = "error"
)

const defaultOCRLanguage = "eng"

type ProcessOptions struct {
	// Repository is optional; without it scan metadata lives only in the result.
	Repository ports.ScanRepository
	Observer   ports.ScanObserver
	Language   string
	Logger     *slog.Logger
}

// ProcessDocumentUseCase runs OCR and then field extraction for one stored
// upload. Both stages block, run sequentially and are never retried here.
type ProcessDocumentUseCase struct {
	recognizer ports.TextRecognizer
	extractor  ports.FieldExtractor
	repo       ports.ScanRepository
	observer   ports.ScanObserver
	language   string
	logger     *slog.Logger
}

func NewProcessDocumentUseCase(
	recognizer ports.TextRecognizer,
	extractor ports.FieldExtractor,
	opts ProcessOptions,
) *ProcessDocumentUseCase {
	language := strings.TrimSpace(opts.Language)
	if language == "" {
		language = defaultOCRLanguage
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &ProcessDocumentUseCase{
		recognizer: recognizer,
		extractor:  extractor,
		repo:       opts.Repository,
		observer:   observer,
		language:   language,
		logger:     logger,
	}
}

func (uc *ProcessDocumentUseCase) Strategy() string {
	return uc.extractor.Strategy()
}

func (uc *ProcessDocumentUseCase) Process(ctx context.Context, doc *domain.Document) (*domain.ScanResult, error) {
	if doc == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "process document", fmt.Errorf("document is nil"))
	}
	strategy := uc.extractor.Strategy()
	doc.Strategy = strategy

	if err := uc.markStatus(ctx, doc, domain.StatusProcessing, ""); err != nil {
		return nil, fmt.Errorf("set status=processing: %w", err)
	}

	text, ocrDuration, err := uc.recognize(ctx, doc)
	if err != nil {
		uc.observer.ObserveScan(strategy, outcomeOCRError)
		return nil, uc.fail(ctx, doc, err)
	}

	rec, extractDuration, err := uc.extract(ctx, text)
	if err != nil {
		outcome := outcomeError
		if domain.IsKind(err, domain.ErrExternalService) {
			outcome = outcomeModelError
		}
		uc.observer.ObserveScan(strategy, outcome)
		return nil, uc.fail(ctx, doc, err)
	}

	result := &domain.ScanResult{
		Document:        doc,
		Record:          rec,
		Strategy:        strategy,
		TextLength:      len(text),
		OCRDuration:     ocrDuration,
		ExtractDuration: extractDuration,
	}
	doc.Outcome = result.Outcome()

	if err := uc.persistOutcome(ctx, doc); err != nil {
		return nil, uc.fail(ctx, doc, err)
	}
	if err := uc.markStatus(ctx, doc, domain.StatusReady, ""); err != nil {
		return nil, fmt.Errorf("set status=ready: %w", err)
	}

	uc.observer.ObserveScan(strategy, string(doc.Outcome))
	uc.logger.Info("scan.completed",
		"document_id", doc.ID,
		"strategy", strategy,
		"outcome", doc.Outcome,
		"detected", rec.Detected(),
		"text_len", len(text),
		"ocr_ms", ocrDuration.Milliseconds(),
		"extract_ms", extractDuration.Milliseconds(),
	)
	return result, nil
}

func (uc *ProcessDocumentUseCase) recognize(ctx context.Context, doc *domain.Document) (string, time.Duration, error) {
	start := time.Now()
	text, err := uc.recognizer.Recognize(ctx, doc.ImageRef(), uc.language)
	elapsed := time.Since(start)
	uc.observer.ObserveStage(stageOCR, elapsed)
	if err != nil {
		uc.logger.Error("scan.ocr.failed", "document_id", doc.ID, "error", err)
		if domain.IsKind(err, domain.ErrOCR) {
			return "", elapsed, fmt.Errorf("recognize text: %w", err)
		}
		return "", elapsed, domain.WrapError(domain.ErrOCR, "recognize text", err)
	}
	return text, elapsed, nil
}

func (uc *ProcessDocumentUseCase) extract(ctx context.Context, text string) (domain.Record, time.Duration, error) {
	start := time.Now()
	rec, err := uc.extractor.Extract(ctx, text)
	elapsed := time.Since(start)
	uc.observer.ObserveStage(stageExtract, elapsed)
	if err != nil {
		uc.logger.Error("scan.extract.failed", "strategy", uc.extractor.Strategy(), "error", err)
		return domain.Record{}, elapsed, fmt.Errorf("extract fields: %w", err)
	}
	return rec, elapsed, nil
}

func (uc *ProcessDocumentUseCase) persistOutcome(ctx context.Context, doc *domain.Document) error {
	if uc.repo == nil {
		return nil
	}
	if err := uc.repo.SaveOutcome(ctx, doc.ID, doc.Outcome); err != nil {
		return fmt.Errorf("save scan outcome: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, doc *domain.Document, status domain.DocumentStatus, errMessage string) error {
	doc.Status = status
	doc.Error = errMessage
	doc.UpdatedAt = time.Now().UTC()
	if uc.repo == nil {
		return nil
	}
	return uc.repo.UpdateStatus(ctx, doc.ID, status, errMessage)
}

// fail records the failed status and returns processErr, annotated when the
// status update itself fails.
func (uc *ProcessDocumentUseCase) fail(ctx context.Context, doc *domain.Document, processErr error) error {
	if failErr := uc.markStatus(ctx, doc, domain.StatusFailed, processErr.Error()); failErr != nil {
		return fmt.Errorf("%w; mark failed status: %v", processErr, failErr)
	}
	return processErr
}

type noopObserver struct{}

func (noopObserver) ObserveStage(string, time.Duration) {}
func (noopObserver) ObserveScan(string, string)         {}
func (noopObserver) ObserveSchemaDrift(string)          {}
