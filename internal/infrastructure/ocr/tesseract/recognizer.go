// Package tesseract recognizes text on stored identity images with the
// tesseract CLI. PDFs are read from their embedded text layer instead.
package tesseract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/core/ports"
)

const (
	defaultBinary   = "tesseract"
	defaultLanguage = "eng"
	defaultTimeout  = 60 * time.Second
)

type Config struct {
	Binary  string
	Timeout time.Duration
	// MaxImageBytes caps how much of a stored upload is read. Zero means no cap.
	MaxImageBytes int64
}

type Recognizer struct {
	storage ports.ObjectStorage
	runner  Runner
	cfg     Config
	logger  *slog.Logger
}

func New(storage ports.ObjectStorage, cfg Config, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return NewWithRunner(storage, execRunner{logger: logger}, cfg, logger)
}

func NewWithRunner(storage ports.ObjectStorage, runner Runner, cfg Config, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Recognizer{storage: storage, runner: runner, cfg: cfg, logger: logger}
}

func (r *Recognizer) Recognize(ctx context.Context, ref domain.ImageRef, language string) (string, error) {
	if strings.TrimSpace(language) == "" {
		language = defaultLanguage
	}

	data, err := r.load(ctx, ref)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", domain.WrapError(domain.ErrOCR, "recognize text", errors.New("image is empty"))
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	format := detectFormat(ref.Filename, ref.MimeType, head)
	if format == formatUnknown {
		return "", domain.WrapError(domain.ErrOCR, "recognize text",
			domain.WrapError(domain.ErrUnsupportedFormat, "detect format", fmt.Errorf("file %q (%s)", ref.Filename, ref.MimeType)))
	}

	ocrCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var text string
	switch format {
	case formatPDF:
		text, err = readPDFText(data)
	default:
		text, err = r.runTesseract(ocrCtx, data, language)
	}
	if err != nil {
		return "", err
	}

	text = normalize(text)
	r.logger.Debug("ocr.recognized", "storage_key", ref.StorageKey, "text_len", len(text))
	return text, nil
}

func (r *Recognizer) load(ctx context.Context, ref domain.ImageRef) ([]byte, error) {
	reader, err := r.storage.Open(ctx, ref.StorageKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrOCR, "open stored image", err)
	}
	defer reader.Close()

	var src io.Reader = reader
	if r.cfg.MaxImageBytes > 0 {
		src = io.LimitReader(reader, r.cfg.MaxImageBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, domain.WrapError(domain.ErrOCR, "read stored image", err)
	}
	if r.cfg.MaxImageBytes > 0 && int64(len(data)) > r.cfg.MaxImageBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read stored image", fmt.Errorf("image exceeds %d bytes", r.cfg.MaxImageBytes))
	}
	return data, nil
}

// runTesseract feeds the image on stdin: tesseract stdin stdout -l <lang>.
func (r *Recognizer) runTesseract(ctx context.Context, data []byte, language string) (string, error) {
	out, errb, err := r.runner.Run(ctx, bytes.NewReader(data), r.cfg.Binary, "stdin", "stdout", "-l", language)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", domain.WrapError(domain.ErrOCR, "run tesseract", errors.Join(ctxErr, err))
		}
		stderr := strings.TrimSpace(truncate(string(errb), 512))
		if stderr != "" {
			return "", domain.WrapError(domain.ErrOCR, "run tesseract", fmt.Errorf("%w: %s", err, stderr))
		}
		return "", domain.WrapError(domain.ErrOCR, "run tesseract", err)
	}
	return string(out), nil
}

func readPDFText(data []byte) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = domain.WrapError(domain.ErrOCR, "read pdf", fmt.Errorf("corrupt pdf: %v", rec))
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", domain.WrapError(domain.ErrOCR, "open pdf", err)
	}
	plain, err := doc.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrOCR, "read pdf text", err)
	}
	raw, err := io.ReadAll(plain)
	if err != nil {
		return "", domain.WrapError(domain.ErrOCR, "read pdf text", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", domain.WrapError(domain.ErrOCR, "read pdf text", errors.New("pdf has no text layer"))
	}
	return string(raw), nil
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}
