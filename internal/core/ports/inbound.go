package ports

import (
	"context"
	"io"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

// DocumentScanner is the inbound contract for upload -> OCR -> extraction.
type DocumentScanner interface {
	Scan(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.ScanResult, error)
}

// TextExtractionService extracts identity fields from already recognized text.
type TextExtractionService interface {
	Extract(ctx context.Context, rawText string) (domain.Record, error)
	Strategy() string
}

// DocumentReader is the inbound read model for scan metadata.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor runs OCR and field extraction for a stored document.
type DocumentProcessor interface {
	Process(ctx context.Context, doc *domain.Document) (*domain.ScanResult, error)
}
