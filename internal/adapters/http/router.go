package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/identity-scan/internal/config"
	"github.com/kirillkom/identity-scan/internal/core/domain"
	"github.com/kirillkom/identity-scan/internal/core/ports"
	"github.com/kirillkom/identity-scan/internal/observability/metrics"
	"github.com/kirillkom/identity-scan/internal/render"
)

const (
	imageFormField = "image"
	// multipartSlack covers boundaries and part headers on top of the file.
	multipartSlack = 64 << 10
)

type errorResponse struct {
	Error string `json:"error"`
}

type Router struct {
	cfg       config.Config
	scanner   ports.DocumentScanner
	extractor ports.TextExtractionService
	reader    ports.DocumentReader
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
	html      render.HTML
}

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(
	cfg config.Config,
	scanner ports.DocumentScanner,
	extractor ports.TextExtractionService,
	reader ports.DocumentReader,
	opts ...Option,
) *Router {
	rt := &Router{
		cfg:       cfg,
		scanner:   scanner,
		extractor: extractor,
		reader:    reader,
		logger:    slog.Default(),
		html:      render.NewHTML(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	var rejected rejectRecorder
	if rt.metrics != nil {
		rejected = rt.metrics
	}

	r := chi.NewRouter()
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware(rt.logger))
	r.Use(jsonRecoverer(rt.logger))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	})

	r.Get("/healthz", rt.healthz)
	r.Get("/openapi.json", rt.openAPI)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rejected))
		r.Use(backpressure(rt.cfg.APIMaxInFlight, rt.cfg.BackpressureWait(), rejected))
		r.Use(bodyLimitMiddleware(rt.bodyLimit()))

		r.Get("/", rt.uploadForm)
		r.Post("/upload-new", rt.uploadAndRender)
		r.Post("/v1/scans", rt.createScan)
		r.Get("/v1/scans/{id}", rt.getScan)
		r.Post("/v1/extract", rt.extractText)
	})

	return r
}

func (rt *Router) bodyLimit() int64 {
	if rt.cfg.UploadMaxBytes <= 0 {
		return 0
	}
	return rt.cfg.UploadMaxBytes + multipartSlack
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadForm(w http.ResponseWriter, _ *http.Request) {
	view := render.FormView{
		MaxUploadMB: rt.cfg.UploadMaxBytes >> 20,
		Strategy:    rt.cfg.ExtractionStrategy,
	}
	if rt.extractor != nil {
		view.Strategy = rt.extractor.Strategy()
	}
	var buf bytes.Buffer
	if err := rt.html.RenderForm(&buf, view); err != nil {
		rt.logger.Error("http.render.failed", "view", "form", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	w.Header().Set("Content-Type", rt.html.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// uploadAndRender is the browser flow: scan the upload and answer with the
// renderer chosen by the format field or the Accept header.
func (rt *Router) uploadAndRender(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile(imageFormField)

	renderer, ok := render.ForFormat(r.FormValue("format"), r.Header.Get("Accept"))
	if !ok {
		rt.writeHTMLError(w, r, http.StatusBadRequest, "unknown format "+strings.TrimSpace(r.FormValue("format")))
		return
	}
	if err != nil {
		rt.writeRenderedError(w, r, renderer, uploadError(err))
		return
	}
	defer file.Close()

	if rt.scanner == nil {
		rt.writeRenderedError(w, r, renderer, domain.WrapError(domain.ErrTemporary, "scan upload", errors.New("scanner is not configured")))
		return
	}
	result, err := rt.scanner.Scan(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		rt.writeRenderedError(w, r, renderer, err)
		return
	}

	var buf bytes.Buffer
	if err := renderer.Render(&buf, result.Record); err != nil {
		rt.logger.Error("http.render.failed", "request_id", requestIDFromContext(r.Context()), "format", renderer.Name(), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	w.Header().Set("Content-Type", renderer.ContentType())
	if renderer.Name() == render.FormatXLSX {
		w.Header().Set("Content-Disposition", `attachment; filename="identity.xlsx"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) createScan(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		rt.writeError(w, r, uploadError(err))
		return
	}
	defer file.Close()

	if rt.scanner == nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrTemporary, "scan upload", errors.New("scanner is not configured")))
		return
	}
	result, err := rt.scanner.Scan(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getScan(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if rt.reader == nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrDocumentNotFound, "get scan", errors.New("scan history is disabled")))
		return
	}
	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) extractText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "decode extract request", errors.New("invalid json")))
		return
	}
	if rt.extractor == nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrTemporary, "extract text", errors.New("extractor is not configured")))
		return
	}
	rec, err := rt.extractor.Extract(r.Context(), req.Text)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("multipart field 'image' is required"))
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := rt.logFailure(r, err)
	writeJSON(w, status, errorResponse{Error: clientMessage(status, err)})
}

func (rt *Router) writeRenderedError(w http.ResponseWriter, r *http.Request, renderer render.Renderer, err error) {
	if renderer.Name() != render.FormatHTML {
		rt.writeError(w, r, err)
		return
	}
	status := rt.logFailure(r, err)
	rt.writeHTMLError(w, r, status, clientMessage(status, err))
}

func (rt *Router) writeHTMLError(w http.ResponseWriter, r *http.Request, status int, message string) {
	var buf bytes.Buffer
	view := render.ErrorView{Status: status, Title: errorTitle(status), Message: message}
	if err := rt.html.RenderError(&buf, view); err != nil {
		rt.logger.Error("http.render.failed", "request_id", requestIDFromContext(r.Context()), "view", "error", "error", err)
		writeJSON(w, status, errorResponse{Error: message})
		return
	}
	w.Header().Set("Content-Type", rt.html.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (rt *Router) logFailure(r *http.Request, err error) int {
	status := mapErrorToHTTPStatus(err)
	attrs := []any{"request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "status", status, "error", err}
	if status >= http.StatusInternalServerError {
		rt.logger.Error("http.request.failed", attrs...)
	} else {
		rt.logger.Warn("http.request.rejected", attrs...)
	}
	return status
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
