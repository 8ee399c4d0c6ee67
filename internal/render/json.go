package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

// JSON writes the lossless record encoding: every field key, the fallback flag
// and the raw reply when degraded.
type JSON struct{}

func (JSON) Name() string        { return FormatJSON }
func (JSON) ContentType() string { return "application/json; charset=utf-8" }

func (JSON) Render(w io.Writer, rec domain.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record json: %w", err)
	}
	return nil
}
