package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/core/ports"
)

type ScanOptions struct {
	// Repository is optional. Without it GetByID always reports not found.
	Repository  ports.ScanRepository
	KeepUploads bool
	Logger      *slog.Logger
}

// ScanDocumentUseCase accepts one uploaded image and runs it through the
// configured processor within the same request.
type ScanDocumentUseCase struct {
	storage     ports.ObjectStorage
	processor   ports.DocumentProcessor
	repo        ports.ScanRepository
	keepUploads bool
	logger      *slog.Logger
}

func NewScanDocumentUseCase(
	storage ports.ObjectStorage,
	processor ports.DocumentProcessor,
	opts ScanOptions,
) *ScanDocumentUseCase {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanDocumentUseCase{
		storage:     storage,
		processor:   processor,
		repo:        opts.Repository,
		keepUploads: opts.KeepUploads,
		logger:      logger,
	}
}

func (uc *ScanDocumentUseCase) Scan(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.ScanResult, error) {
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "scan document", errors.New("empty upload"))
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "scan document", errors.New("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if !uc.keepUploads {
		defer uc.discard(storageKey)
	}

	doc := &domain.Document{
		ID:         id,
		Filename:   filename,
		MimeType:   mimeType,
		StorageKey: storageKey,
		Status:     domain.StatusUploaded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if uc.repo != nil {
		if err := uc.repo.Create(ctx, doc); err != nil {
			return nil, fmt.Errorf("create scan metadata: %w", err)
		}
	}

	result, err := uc.processor.Process(ctx, doc)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (uc *ScanDocumentUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get scan", errors.New("id is required"))
	}
	if uc.repo == nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get scan", errors.New("scan metadata is not persisted"))
	}
	return uc.repo.GetByID(ctx, id)
}

// discard removes the stored upload. It runs on a fresh context so a cancelled
// request still cleans up.
func (uc *ScanDocumentUseCase) discard(storageKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.storage.Delete(ctx, storageKey); err != nil {
		uc.logger.Warn("scan.upload.delete_failed", "storage_key", storageKey, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
