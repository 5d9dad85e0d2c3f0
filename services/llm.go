package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// LanguageModel is the black-box text generator behind the local source and
// the assistant.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ModelResponse is a decoded model reply: either plain text or a single
// structured tool call.
type ModelResponse struct {
	Text     string
	ToolCall *ToolCall
}

// ToolCall is the `{"name": ..., "parameters": {...}}` convention the model
// uses to request a tool.
type ToolCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// IsToolCall reports whether the response requests a tool.
func (r ModelResponse) IsToolCall() bool {
	return r.ToolCall != nil
}

// ParseModelResponse decodes a model reply. The span from the first '{' to
// the last '}' of the trimmed text is tried as a tool call; anything that
// does not decode into a named call is plain text.
func ParseModelResponse(text string) ModelResponse {
	trimmed := strings.TrimSpace(text)
	plain := ModelResponse{Text: trimmed}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return plain
	}

	var call ToolCall
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &call); err != nil {
		return plain
	}
	call.Name = strings.TrimSpace(call.Name)
	if call.Name == "" {
		return plain
	}
	if call.Parameters == nil {
		call.Parameters = map[string]any{}
	}
	return ModelResponse{Text: trimmed, ToolCall: &call}
}

// StringParam returns parameter key as a string, or "" if absent.
func (c *ToolCall) StringParam(key string) string {
	switch v := c.Parameters[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%g", v)
	}
	return ""
}

// FloatParam returns parameter key as a number. Numeric strings are accepted
// because small models often quote numbers.
func (c *ToolCall) FloatParam(key string) (float64, bool) {
	switch v := c.Parameters[key].(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// AnthropicConfig configures AnthropicModel.
type AnthropicConfig struct {
	APIKey     string
	Model      string
	MaxTokens  int64
	Timeout    time.Duration // per attempt
	MaxRetries int
}

// AnthropicModel is a LanguageModel backed by the Anthropic Messages API.
type AnthropicModel struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	retries   int
	logger    *slog.Logger
}

// ErrMissingModelKey is returned when no Anthropic API key is configured.
var ErrMissingModelKey = errors.New("anthropic API key not set")

// NewAnthropicModel creates the client. extra options are passed to the SDK
// (tests point it at a local server with option.WithBaseURL).
func NewAnthropicModel(cfg AnthropicConfig, logger *slog.Logger, extra ...option.RequestOption) (*AnthropicModel, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingModelKey
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	opts := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are ours so they share the caller's deadline.
		option.WithMaxRetries(0),
	}, extra...)
	client := anthropic.NewClient(opts...)
	return &AnthropicModel{
		client:    &client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		retries:   max(cfg.MaxRetries, 0),
		logger:    logger,
	}, nil
}

// Generate sends prompt as a single user message and returns the
// concatenated text blocks of the reply.
func (m *AnthropicModel) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt <= m.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, m.timeout)
		resp, err := m.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(m.model),
			MaxTokens: m.maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		cancel()
		if err == nil {
			var b strings.Builder
			for _, block := range resp.Content {
				if block.Type == "text" {
					b.WriteString(block.Text)
				}
			}
			return b.String(), nil
		}

		lastErr = err
		if ctx.Err() != nil || !isRetriableModelError(err) {
			break
		}
		m.logger.Debug("model call failed, retrying", "attempt", attempt+1, "error", err)
	}
	return "", fmt.Errorf("anthropic messages: %w", lastErr)
}

func isRetriableModelError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429, apiErr.StatusCode == 529, apiErr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	// Transport errors and per-attempt timeouts.
	return true
}
