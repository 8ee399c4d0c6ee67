package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/infrastructure/resilience"
)

type flakyProcessor struct {
	errs  []error
	calls int
}

func (f *flakyProcessor) Process(_ context.Context, doc *domain.Document) (*domain.ScanResult, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	return &domain.ScanResult{Document: doc, Record: structuredRecord()}, nil
}

func newTestProcessor(next *flakyProcessor, breaker bool) *ResilientProcessor {
	return NewResilientProcessor(next, resilience.Policy{
		Attempts: 3,
		Backoff:  resilience.Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2},
		Breaker: resilience.BreakerPolicy{
			Enabled:       breaker,
			MinRequests:   1,
			FailureRatio:  0.5,
			OpenTimeout:   time.Minute,
			HalfOpenCalls: 1,
		},
	}, discardLogger())
}

func TestResilientProcessorRetriesTemporaryFailure(t *testing.T) {
	temp := domain.WrapError(domain.ErrExternalService, "openai chat", domain.ErrTemporary)
	next := &flakyProcessor{errs: []error{temp, temp}}
	p := newTestProcessor(next, false)

	result, err := p.Process(context.Background(), &domain.Document{ID: "doc-1"})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if next.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", next.calls)
	}
	if result.Record.Get(domain.FieldFullName) != "Jane Doe" {
		t.Fatalf("unexpected record: %+v", result.Record)
	}
}

func TestResilientProcessorNeverRetriesOCR(t *testing.T) {
	ocrErr := domain.WrapError(domain.ErrOCR, "recognize text", domain.ErrTemporary)
	next := &flakyProcessor{errs: []error{ocrErr}}
	p := newTestProcessor(next, false)

	_, err := p.Process(context.Background(), &domain.Document{ID: "doc-1"})
	if !domain.IsKind(err, domain.ErrOCR) {
		t.Fatalf("expected ocr error, got %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("expected single attempt, got %d", next.calls)
	}
}

func TestResilientProcessorOpenCircuitIsTemporary(t *testing.T) {
	permanent := domain.WrapError(domain.ErrExternalService, "openai chat", errors.New("invalid api key"))
	next := &flakyProcessor{errs: []error{permanent, permanent}}
	p := newTestProcessor(next, true)

	if _, err := p.Process(context.Background(), &domain.Document{ID: "doc-1"}); !errors.Is(err, permanent) {
		t.Fatalf("expected first failure surfaced, got %v", err)
	}

	_, err := p.Process(context.Background(), &domain.Document{ID: "doc-1"})
	if !domain.IsKind(err, domain.ErrTemporary) || !domain.IsKind(err, domain.ErrExternalService) {
		t.Fatalf("expected temporary external failure while open, got %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("open circuit must not call the processor, got %d calls", next.calls)
	}
}
