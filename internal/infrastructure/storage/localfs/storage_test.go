package localfs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

func TestSaveOpenDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "abc_card.png", strings.NewReader("image")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := s.Open(ctx, "abc_card.png")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(raw) != "image" {
		t.Fatalf("unexpected content %q", raw)
	}

	if err := s.Delete(ctx, "abc_card.png"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "abc_card.png")); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err = %v", err)
	}
	if err := s.Delete(ctx, "abc_card.png"); err != nil {
		t.Fatalf("second Delete() must be a no-op, got %v", err)
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	s, _ := New(t.TempDir())
	if _, err := s.Open(context.Background(), "missing.png"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, _ := New(t.TempDir())
	for _, key := range []string{"", "..", "../etc/passwd", `a\b`} {
		if err := s.Save(context.Background(), key, strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected invalid input for key %q, got %v", key, err)
		}
	}
}

func TestSaveOversizedBodyIsInvalidInput(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)
	rec := httptest.NewRecorder()
	body := http.MaxBytesReader(rec, io.NopCloser(strings.NewReader("0123456789")), 4)

	err := s.Save(context.Background(), "big.png", body)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "big.png")); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial file removed")
	}
}
