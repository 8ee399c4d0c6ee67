package ollama

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a client for a local Ollama server. The HTTP timeout is a
// backstop; callers bound each call with their own context.
func New(baseURL, genModel string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

// Generator implements the text generation boundary on /api/generate in
// JSON mode.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	reply, err := g.client.generateJSON(ctx, prompt)
	if err != nil {
		return "", tagGenerateError("ollama generate", err)
	}
	g.client.logger.Debug("llm.ollama.completed",
		"model", g.client.genModel,
		"duration_ms", time.Since(start).Milliseconds(),
		"reply_len", len(reply),
	)
	return reply, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, reqBody)
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	if response.Error != "" {
		return "", errors.New(response.Error)
	}
	return strings.TrimSpace(response.Response), nil
}
