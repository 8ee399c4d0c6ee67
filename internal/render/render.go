// Package render turns an extraction record into a response body. Structured
// and fallback records go through the same Render call.
package render

import (
	"io"
	"mime"
	"strings"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

type Renderer interface {
	Render(w io.Writer, rec domain.Record) error
	ContentType() string
	// Name is the format selector and the file extension for downloads.
	Name() string
}

const (
	FormatHTML = "html"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// ForFormat returns the renderer for an explicit format name. An empty name
// falls back to the Accept header, then HTML.
func ForFormat(format, accept string) (Renderer, bool) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatHTML:
		return NewHTML(), true
	case FormatJSON:
		return JSON{}, true
	case FormatXLSX:
		return XLSX{}, true
	case "":
	default:
		return nil, false
	}
	return fromAccept(accept), true
}

func fromAccept(accept string) Renderer {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case "text/html":
			return NewHTML()
		case "application/json":
			return JSON{}
		case xlsxContentType:
			return XLSX{}
		}
	}
	return NewHTML()
}

// displayValue is the text shown for a field in human-facing formats.
func displayValue(rec domain.Record, f domain.FieldName) string {
	if v := rec.Get(f); v != "" {
		return v
	}
	return "N/A"
}
