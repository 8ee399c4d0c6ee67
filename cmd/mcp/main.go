package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/identity-scan/internal/bootstrap"
	"github.com/kirillkom/identity-scan/internal/config"
	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/core/ports"
	"github.com/kirillkom/identity-scan/internal/observability/logging"
)

const (
	serviceName   = "idscan-mcp"
	serverVersion = "1.0.0"
)

func main() {
	// stdout carries the protocol, so logs go to stderr.
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLoggerTo(os.Stderr, serviceName, "info").Error("config.invalid", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName, logger)
	if err != nil {
		logger.Error("bootstrap.failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := newServer(&toolHandlers{scanner: app.Scanner, extractor: app.Extractor, logger: logger})
	logger.Info("mcp.serving", "transport", "stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Error("mcp.serve.failed", "error", err)
	}
}

type toolHandlers struct {
	scanner   ports.DocumentScanner
	extractor ports.TextExtractionService
	logger    *slog.Logger
}

func newServer(h *toolHandlers) *server.MCPServer {
	s := server.NewMCPServer("identity-scan", serverVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("extract_identity_fields",
		mcp.WithDescription("Extract the nine identity-document fields from already recognized text. Returns the JSON record."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw OCR text of an identity document")),
	), h.extractFields)

	s.AddTool(mcp.NewTool("scan_identity_image",
		mcp.WithDescription("Run OCR and field extraction on a local image or PDF. Returns the JSON record."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the image file on the server host")),
	), h.scanImage)

	return s
}

func (h *toolHandlers) extractFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := h.extractor.Extract(ctx, text)
	if err != nil {
		return h.toolError("extract_identity_fields", err), nil
	}
	return recordResult(rec)
}

func (h *toolHandlers) scanImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return h.toolError("scan_identity_image", domain.WrapError(domain.ErrInvalidInput, "open image", err)), nil
	}
	defer f.Close()

	result, err := h.scanner.Scan(ctx, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), f)
	if err != nil {
		return h.toolError("scan_identity_image", err), nil
	}
	return recordResult(result.Record)
}

func (h *toolHandlers) toolError(tool string, err error) *mcp.CallToolResult {
	h.logger.Warn("mcp.tool.failed", "tool", tool, "error", err)
	msg := "internal error"
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrUnsupportedFormat):
		msg = err.Error()
	case domain.IsKind(err, domain.ErrOCR):
		msg = "text recognition failed"
	case domain.IsKind(err, domain.ErrExternalService), errors.Is(err, context.DeadlineExceeded):
		msg = "extraction service unavailable"
	}
	return mcp.NewToolResultError(msg)
}

func recordResult(rec domain.Record) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
