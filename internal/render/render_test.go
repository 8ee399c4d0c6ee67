package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

func sampleRecord() domain.Record {
	rec := domain.NewRecord()
	rec.Set(domain.FieldFullName, "Jane <Doe>")
	rec.Set(domain.FieldPostalCode, "94107")
	return rec
}

func TestJSONRoundTrips(t *testing.T) {
	for _, rec := range []domain.Record{sampleRecord(), domain.NewFallbackRecord("not json {")} {
		var buf bytes.Buffer
		if err := (JSON{}).Render(&buf, rec); err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		var decoded domain.Record
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("decode rendered json: %v", err)
		}
		if !decoded.Equal(rec) {
			t.Fatalf("round trip mismatch: %+v vs %+v", decoded, rec)
		}
	}
}

func TestHTMLShowsEveryLabel(t *testing.T) {
	var buf bytes.Buffer
	if err := NewHTML().Render(&buf, sampleRecord()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	body := buf.String()
	for _, f := range domain.Fields() {
		if !strings.Contains(body, "<strong>"+f.Label()+":</strong>") {
			t.Fatalf("missing label %q in:\n%s", f.Label(), body)
		}
	}
	if !strings.Contains(body, "Jane &lt;Doe&gt;") {
		t.Fatalf("expected escaped value, got:\n%s", body)
	}
	if !strings.Contains(body, "<strong>City:</strong> N/A") {
		t.Fatalf("expected N/A for absent field, got:\n%s", body)
	}
	if strings.Contains(body, "Unparsed Reply") {
		t.Fatalf("structured record must not show the fallback section")
	}
}

func TestHTMLShowsFallbackText(t *testing.T) {
	var buf bytes.Buffer
	if err := NewHTML().Render(&buf, domain.NewFallbackRecord("Sorry, no details found.")); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(buf.String(), "<pre>Sorry, no details found.</pre>") {
		t.Fatalf("expected raw reply text, got:\n%s", buf.String())
	}
}

func TestHTMLFormAndErrorPages(t *testing.T) {
	var form bytes.Buffer
	if err := NewHTML().RenderForm(&form, FormView{MaxUploadMB: 10, Strategy: "model"}); err != nil {
		t.Fatalf("RenderForm() error = %v", err)
	}
	if !strings.Contains(form.String(), `name="image"`) || !strings.Contains(form.String(), `action="/upload-new"`) {
		t.Fatalf("unexpected form:\n%s", form.String())
	}

	var page bytes.Buffer
	if err := NewHTML().RenderError(&page, ErrorView{Status: 422, Title: "Could not read the image", Message: "ocr failed"}); err != nil {
		t.Fatalf("RenderError() error = %v", err)
	}
	if !strings.Contains(page.String(), "<h1>Could not read the image</h1>") {
		t.Fatalf("unexpected error page:\n%s", page.String())
	}
}

func TestXLSXRows(t *testing.T) {
	var buf bytes.Buffer
	if err := (XLSX{}).Render(&buf, domain.NewFallbackRecord("raw reply")); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open rendered xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) != len(domain.Fields())+2 {
		t.Fatalf("expected header, nine fields and fallback row, got %d rows", len(rows))
	}
	if rows[1][0] != "Full Name" || rows[1][1] != "N/A" {
		t.Fatalf("unexpected first field row %v", rows[1])
	}
	last := rows[len(rows)-1]
	if last[0] != "Unparsed Reply" || last[1] != "raw reply" {
		t.Fatalf("unexpected fallback row %v", last)
	}
}

func TestWriteRowsReportsSheetErrors(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	err := writeRows(f, "Missing", [][]any{{"Field", "Value"}})
	if err == nil || !strings.Contains(err.Error(), "xlsx row 1") {
		t.Fatalf("expected row error, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestXLSXReturnsWriteError(t *testing.T) {
	if err := (XLSX{}).Render(failingWriter{}, sampleRecord()); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestForFormat(t *testing.T) {
	cases := []struct {
		format string
		accept string
		want   string
		ok     bool
	}{
		{format: "json", want: FormatJSON, ok: true},
		{format: "XLSX", want: FormatXLSX, ok: true},
		{format: "", accept: "application/json", want: FormatJSON, ok: true},
		{format: "", accept: "text/html,application/xhtml+xml", want: FormatHTML, ok: true},
		{format: "", accept: "*/*", want: FormatHTML, ok: true},
		{format: "pdf", ok: false},
	}
	for _, tc := range cases {
		r, ok := ForFormat(tc.format, tc.accept)
		if ok != tc.ok {
			t.Fatalf("ForFormat(%q, %q) ok = %v, want %v", tc.format, tc.accept, ok, tc.ok)
		}
		if ok && r.Name() != tc.want {
			t.Fatalf("ForFormat(%q, %q) = %s, want %s", tc.format, tc.accept, r.Name(), tc.want)
		}
	}
}
