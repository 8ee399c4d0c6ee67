package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

// ObjectStorage stores uploaded document images.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ScanRepository persists scan metadata. It never stores extracted values.
type ScanRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveOutcome(ctx context.Context, id string, outcome domain.ScanOutcome) error
}

// TextRecognizer is the OCR engine boundary: stored image in, raw text out.
type TextRecognizer interface {
	Recognize(ctx context.Context, ref domain.ImageRef, language string) (string, error)
}

// FieldExtractor turns raw OCR text into an extraction record.
type FieldExtractor interface {
	Extract(ctx context.Context, rawText string) (domain.Record, error)
	Strategy() string
}

// TextGenerator is the generative model boundary: one prompt in, one free-form
// reply out.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ScanObserver receives pipeline measurements. Implementations must be safe
// for concurrent use.
type ScanObserver interface {
	ObserveStage(stage string, duration time.Duration)
	ObserveScan(strategy, outcome string)
	ObserveSchemaDrift(strategy string)
}
