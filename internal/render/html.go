package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"display": displayValue,
}).ParseFS(templateFS, "templates/*.html"))

type HTML struct {
	tmpl *template.Template
}

func NewHTML() HTML {
	return HTML{tmpl: pages}
}

func (HTML) Name() string        { return FormatHTML }
func (HTML) ContentType() string { return "text/html; charset=utf-8" }

type resultView struct {
	Record domain.Record
	Fields []domain.FieldName
}

// Render writes the result view: every label with its value or N/A, and the
// raw reply text for fallback records.
func (h HTML) Render(w io.Writer, rec domain.Record) error {
	return h.execute(w, "result.html", resultView{Record: rec, Fields: domain.Fields()})
}

type FormView struct {
	MaxUploadMB int64
	Strategy    string
}

func (h HTML) RenderForm(w io.Writer, view FormView) error {
	return h.execute(w, "form.html", view)
}

type ErrorView struct {
	Status  int
	Title   string
	Message string
}

func (h HTML) RenderError(w io.Writer, view ErrorView) error {
	return h.execute(w, "error.html", view)
}

func (h HTML) execute(w io.Writer, name string, data any) error {
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}
