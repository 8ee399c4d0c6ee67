package extraction

import (
	"context"
	"regexp"
	"strings"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

var (
	reDateOfBirth = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	reDigits      = regexp.MustCompile(`^\d+$`)
)

type fieldRule struct {
	field domain.FieldName
	line  *regexp.Regexp
	shape *regexp.Regexp
}

// PatternExtractor reads "<Label>: <value>" lines. It only works when OCR
// preserved the literal labels of one specific document layout, so it is a
// best-effort fallback for deployments without a model provider.
type PatternExtractor struct {
	rules []fieldRule
}

func NewPatternExtractor() *PatternExtractor {
	shapes := map[domain.FieldName]*regexp.Regexp{
		domain.FieldDateOfBirth: reDateOfBirth,
		domain.FieldPostalCode:  reDigits,
	}

	fields := domain.Fields()
	rules := make([]fieldRule, 0, len(fields))
	for _, f := range fields {
		rules = append(rules, fieldRule{
			field: f,
			line:  labelLinePattern(f.Label()),
			shape: shapes[f],
		})
	}
	return &PatternExtractor{rules: rules}
}

func labelLinePattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*` + regexp.QuoteMeta(label) + `[ \t]*:(.*)$`)
}

func (e *PatternExtractor) Strategy() string {
	return domain.StrategyPattern
}

// Extract never fails. The first label line whose value has the required
// shape wins; without one the field stays absent.
func (e *PatternExtractor) Extract(_ context.Context, rawText string) (domain.Record, error) {
	rec := domain.NewRecord()
	for _, rule := range e.rules {
		for _, match := range rule.line.FindAllStringSubmatch(rawText, -1) {
			value := strings.TrimSpace(match[1])
			if rule.shape != nil && !rule.shape.MatchString(value) {
				continue
			}
			rec.Set(rule.field, value)
			break
		}
	}
	return rec, nil
}
