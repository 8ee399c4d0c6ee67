package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/identity-scan/internal/core/domain"
)

const DefaultModel = openai.GPT4Turbo

// Generator sends one prompt as a single system message to an
// OpenAI-compatible chat completion endpoint.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Logger      *slog.Logger
}

func NewGenerator(cfg Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientCfg.BaseURL = base
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		Temperature: g.temperature,
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrExternalService, "openai chat completion", errors.New("empty choices"))
	}

	g.logger.Debug("llm.openai.completed",
		"model", g.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// parseAPIError keeps the provider status and message and tags the result
// with domain.ErrExternalService, plus domain.ErrTemporary when a retry could
// succeed.
func parseAPIError(err error) error {
	const op = "openai chat completion"

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.WrapError(domain.ErrExternalService, op, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = strings.TrimSpace(string(reqErr.Body))
		}
		statusErr := fmt.Errorf("status %d: %s: %w", reqErr.HTTPStatusCode, detail, err)
		return wrapStatus(op, reqErr.HTTPStatusCode, statusErr)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		statusErr := fmt.Errorf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		return wrapStatus(op, apiErr.HTTPStatusCode, statusErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrExternalService, op, domain.WrapError(domain.ErrTemporary, "network", err))
	}

	return domain.WrapError(domain.ErrExternalService, op, err)
}

func wrapStatus(op string, statusCode int, err error) error {
	if isRetryableHTTPStatus(statusCode) {
		return domain.WrapError(domain.ErrExternalService, op, domain.WrapError(domain.ErrTemporary, "retryable status", err))
	}
	return domain.WrapError(domain.ErrExternalService, op, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// extractDetail reads the "detail" field some compatible providers return.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
