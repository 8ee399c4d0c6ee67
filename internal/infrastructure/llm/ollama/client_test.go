package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

func TestGeneratorRequestsJSONMode(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":" {\"Full Name\":\"Jane Doe\"} "}`))
	}))
	defer server.Close()

	gen := NewGenerator(New(server.URL+"/", "llama3", nil))
	reply, err := gen.Generate(context.Background(), "prompt text")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != `{"Full Name":"Jane Doe"}` {
		t.Fatalf("unexpected reply %q", reply)
	}
	if payload["model"] != "llama3" || payload["prompt"] != "prompt text" || payload["format"] != "json" || payload["stream"] != false {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestGeneratorIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewGenerator(New(server.URL, "gen", nil)).Generate(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrExternalService) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary external error, got %v", err)
	}
}

func TestGeneratorNotFoundModelIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'x' not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewGenerator(New(server.URL, "x", nil)).Generate(context.Background(), "hello")
	if !domain.IsKind(err, domain.ErrExternalService) {
		t.Fatalf("expected external error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("404 must not be temporary: %v", err)
	}
}

func TestGeneratorHonoursContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewGenerator(New(server.URL, "gen", nil)).Generate(ctx, "hello")
	if !domain.IsKind(err, domain.ErrExternalService) {
		t.Fatalf("expected external error, got %v", err)
	}
	if !strings.Contains(err.Error(), "deadline exceeded") {
		t.Fatalf("expected deadline in error chain, got %v", err)
	}
}
