package extraction

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/core/ports"
)

type ModelOptions struct {
	// Timeout bounds the model call. Zero leaves only the caller's deadline.
	Timeout time.Duration
	Logger  *slog.Logger
	// OnSchemaDrift is called when a parsable reply violates the reply schema.
	OnSchemaDrift func(err error)
}

// ModelExtractor delegates interpretation of noisy OCR text to a generative
// model and rebuilds a record from its free-form reply.
type ModelExtractor struct {
	generator ports.TextGenerator
	timeout   time.Duration
	logger    *slog.Logger
	onDrift   func(error)
}

func NewModelExtractor(generator ports.TextGenerator, opts ModelOptions) *ModelExtractor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelExtractor{
		generator: generator,
		timeout:   opts.Timeout,
		logger:    logger,
		onDrift:   opts.OnSchemaDrift,
	}
}

func (e *ModelExtractor) Strategy() string {
	return domain.StrategyModel
}

// Extract returns a structured record, or a fallback record holding the
// unwrapped reply when it is not a JSON object. Only a failed model call is an
// error.
func (e *ModelExtractor) Extract(ctx context.Context, rawText string) (domain.Record, error) {
	prompt := BuildPrompt(rawText)

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := e.generator.Generate(callCtx, prompt)
	if err != nil {
		e.logger.Error("extract.model.generate_failed",
			"error", err,
			"text_len", len(rawText),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if domain.IsKind(err, domain.ErrExternalService) {
			return domain.Record{}, err
		}
		return domain.Record{}, domain.WrapError(domain.ErrExternalService, "generate extraction reply", err)
	}

	body := UnwrapFence(reply)
	obj, err := decodeObject(body)
	if err != nil {
		e.logger.Warn("extract.model.fallback",
			"error", err,
			"reply_len", len(reply),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return domain.NewFallbackRecord(body), nil
	}

	if driftErr := validateReply(obj); driftErr != nil {
		e.logger.Warn("extract.model.schema_drift", "error", driftErr)
		if e.onDrift != nil {
			e.onDrift(driftErr)
		}
	}

	rec := recordFromObject(obj)
	e.logger.Info("extract.model.ok",
		"detected", rec.Detected(),
		"reply_len", len(reply),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}
