// Package extraction turns raw OCR text into identity records. Two strategies
// exist and a deployment uses exactly one of them.
package extraction

import (
	"fmt"
	"strings"

	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/core/ports"
)

// New returns the extractor for the configured strategy.
func New(strategy string, generator ports.TextGenerator, opts ModelOptions) (ports.FieldExtractor, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case domain.StrategyPattern:
		return NewPatternExtractor(), nil
	case domain.StrategyModel, "":
		if generator == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "select extractor", fmt.Errorf("model strategy requires a text generator"))
		}
		return NewModelExtractor(generator, opts), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "select extractor", fmt.Errorf("unknown strategy %q", strategy))
	}
}
