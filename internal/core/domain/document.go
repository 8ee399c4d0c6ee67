package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type ScanOutcome string

const (
	OutcomeStructured ScanOutcome = "structured"
	OutcomeFallback   ScanOutcome = "fallback"
)

const (
	StrategyPattern = "pattern"
	StrategyModel   = "model"
)

// Document is the metadata of one uploaded identity image. Extracted field
// values are never stored on it.
type Document struct {
	ID         string         `json:"id"`
	Filename   string         `json:"filename"`
	MimeType   string         `json:"mime_type"`
	StorageKey string         `json:"storage_key"`
	Strategy   string         `json:"strategy"`
	Status     DocumentStatus `json:"status"`
	Outcome    ScanOutcome    `json:"outcome,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ImageRef points the OCR engine at a stored upload.
type ImageRef struct {
	StorageKey string
	Filename   string
	MimeType   string
}

func (d *Document) ImageRef() ImageRef {
	return ImageRef{
		StorageKey: d.StorageKey,
		Filename:   d.Filename,
		MimeType:   d.MimeType,
	}
}

type ScanResult struct {
	Document        *Document     `json:"document"`
	Record          Record        `json:"record"`
	Strategy        string        `json:"strategy"`
	TextLength      int           `json:"text_length"`
	OCRDuration     time.Duration `json:"-"`
	ExtractDuration time.Duration `json:"-"`
}

func (r *ScanResult) Outcome() ScanOutcome {
	if r.Record.IsFallback() {
		return OutcomeFallback
	}
	return OutcomeStructured
}
