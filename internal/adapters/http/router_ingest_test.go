package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/identity-scan/internal/config"
	"github.com/kirillkom/identity-scan/internal/core/domain"
)

type scannerFake struct {
	err error

	filename string
	mimeType string
	body     string
}

func (f *scannerFake) Scan(_ context.Context, filename, mimeType string, body io.Reader) (*domain.ScanResult, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.filename, f.mimeType, f.body = filename, mimeType, string(raw)
	if f.err != nil {
		return nil, f.err
	}

	now := time.Now().UTC()
	rec := domain.NewRecord()
	rec.Set(domain.FieldFullName, "Jane Doe")
	rec.Set(domain.FieldCity, "Oslo")
	return &domain.ScanResult{
		Document: &domain.Document{
			ID:         "scan-1",
			Filename:   filename,
			MimeType:   mimeType,
			StorageKey: "scan-1_" + filename,
			Strategy:   domain.StrategyPattern,
			Status:     domain.StatusReady,
			Outcome:    domain.OutcomeStructured,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		Record:     rec,
		Strategy:   domain.StrategyPattern,
		TextLength: 42,
	}, nil
}

type extractorFake struct {
	err  error
	text string
}

func (f *extractorFake) Extract(_ context.Context, rawText string) (domain.Record, error) {
	f.text = rawText
	if f.err != nil {
		return domain.Record{}, f.err
	}
	rec := domain.NewRecord()
	rec.Set(domain.FieldFullName, "Jane Doe")
	return rec, nil
}

func (f *extractorFake) Strategy() string { return domain.StrategyPattern }

type readerFake struct {
	err error
}

func (f readerFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Filename: "card.png", Status: domain.StatusReady}, nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &scannerFake{}, &extractorFake{}, readerFake{}, WithLogger(discardLogger())).Handler()
}

func multipartBody(t *testing.T, field, filename, contentType, content string, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range extra {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestUploadFormRendersHTML(t *testing.T) {
	handler := newTestHandler(config.Config{UploadMaxBytes: 10 << 20})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.HasPrefix(res.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if !strings.Contains(res.Body.String(), `action="/upload-new"`) {
		t.Fatalf("form must post to /upload-new: %s", res.Body.String())
	}
}

func TestCreateScanSuccess(t *testing.T) {
	scanner := &scannerFake{}
	handler := NewRouter(config.Config{}, scanner, &extractorFake{}, readerFake{}, WithLogger(discardLogger())).Handler()

	body, contentType := multipartBody(t, "image", "card.png", "image/png", "png-bytes", nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/scans", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var resp struct {
		Document domain.Document `json:"document"`
		Record   domain.Record   `json:"record"`
		Strategy string          `json:"strategy"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Document.ID != "scan-1" || resp.Record.Get(domain.FieldFullName) != "Jane Doe" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if scanner.filename != "card.png" || scanner.mimeType != "image/png" || scanner.body != "png-bytes" {
		t.Fatalf("scanner got %q %q %q", scanner.filename, scanner.mimeType, scanner.body)
	}
}

func TestCreateScanMissingMultipartField(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCreateScanRejectsOversizedUpload(t *testing.T) {
	handler := newTestHandler(config.Config{UploadMaxBytes: 16})

	body, contentType := multipartBody(t, "image", "card.png", "image/png", strings.Repeat("x", multipartSlack+1024), nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/scans", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestUploadNewRendersHTMLByDefault(t *testing.T) {
	handler := newTestHandler(config.Config{})

	body, contentType := multipartBody(t, "image", "card.png", "image/png", "png-bytes", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload-new", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	page := res.Body.String()
	if !strings.Contains(page, "Jane Doe") || !strings.Contains(page, "N/A") {
		t.Fatalf("expected values and N/A placeholders in page: %s", page)
	}
}

func TestUploadNewHonoursFormatField(t *testing.T) {
	handler := newTestHandler(config.Config{})

	body, contentType := multipartBody(t, "image", "card.png", "image/png", "png-bytes", map[string]string{"format": "json"})
	req := httptest.NewRequest(http.MethodPost, "/upload-new", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var rec domain.Record
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Get(domain.FieldCity) != "Oslo" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestUploadNewXLSXIsAttachment(t *testing.T) {
	handler := newTestHandler(config.Config{})

	body, contentType := multipartBody(t, "image", "card.png", "image/png", "png-bytes", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload-new?format=xlsx", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "identity.xlsx") {
		t.Fatalf("expected attachment header, got %q", res.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(res.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected zip container body")
	}
}

func TestUploadNewUnknownFormat(t *testing.T) {
	handler := newTestHandler(config.Config{})

	body, contentType := multipartBody(t, "image", "card.png", "image/png", "png-bytes", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload-new?format=pdf", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestExtractTextReturnsRecord(t *testing.T) {
	extractor := &extractorFake{}
	handler := NewRouter(config.Config{}, &scannerFake{}, extractor, readerFake{}, WithLogger(discardLogger())).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader(`{"text":"Full Name: Jane Doe"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if extractor.text != "Full Name: Jane Doe" {
		t.Fatalf("extractor got %q", extractor.text)
	}
	var rec domain.Record
	if err := json.NewDecoder(res.Body).Decode(&rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.Get(domain.FieldFullName) != "Jane Doe" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGetScanByID(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/scans/scan-9", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var doc domain.Document
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.ID != "scan-9" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}
