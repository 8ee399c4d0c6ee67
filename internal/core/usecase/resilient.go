package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/core/ports"
	"github.com/kirillkom/identity-scan/internal/infrastructure/resilience"
)

const operationProcessDocument = "usecase.process_document"

// ResilientProcessor retries a processor on temporary failures behind a
// circuit breaker. Without it the pipeline never retries.
type ResilientProcessor struct {
	next  ports.DocumentProcessor
	guard *resilience.Guard
}

// NewResilientProcessor installs its own error classification over policy.
func NewResilientProcessor(next ports.DocumentProcessor, policy resilience.Policy, logger *slog.Logger) *ResilientProcessor {
	policy.Classify = classifyProcessError
	return &ResilientProcessor{next: next, guard: resilience.NewGuard(policy, logger)}
}

func (p *ResilientProcessor) Process(ctx context.Context, doc *domain.Document) (*domain.ScanResult, error) {
	result, err := resilience.Call(ctx, p.guard, operationProcessDocument, func(callCtx context.Context) (*domain.ScanResult, error) {
		return p.next.Process(callCtx, doc)
	})
	if resilience.IsCircuitOpen(err) {
		return nil, domain.WrapError(domain.ErrExternalService, "process document", errors.Join(domain.ErrTemporary, err))
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// classifyProcessError retries only failures tagged temporary. OCR failures
// and invalid input do not count against the breaker.
func classifyProcessError(err error) resilience.Verdict {
	switch {
	case errors.Is(err, context.Canceled):
		return resilience.Verdict{}
	case domain.IsKind(err, domain.ErrOCR), domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrUnsupportedFormat):
		return resilience.Verdict{}
	case domain.IsKind(err, domain.ErrTemporary):
		return resilience.Verdict{Retry: true, CountFailure: true}
	default:
		return resilience.Verdict{CountFailure: true}
	}
}
