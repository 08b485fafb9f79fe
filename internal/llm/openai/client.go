package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"underwriting-backend/internal/extract"
	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/shared/telemetry"
)

const (
	maxCompletionTokens = 8192
	// Per-document text cap keeps multi-month statements inside the context window.
	maxDocumentChars = 120_000
)

// Options configures the OpenAI client.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client implements llm.Client using OpenAI Chat Completions.
// Attached PDFs are sent as extracted text.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient constructs a new OpenAI client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("model is required for OpenAI")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{api: openai.NewClientWithConfig(cfg), model: opts.Model}, nil
}

// Complete sends the request as a JSON-mode chat completion.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	messages, err := buildMessages(ctx, req)
	if err != nil {
		return "", err
	}

	chat := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if isReasoningModel(c.model) {
		chat.MaxCompletionTokens = maxCompletionTokens
	} else {
		chat.MaxTokens = maxCompletionTokens
		chat.Temperature = 0
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, chat)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("openai request timeout: %w", err)
		}
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	logUsage(ctx, c.model, resp.Usage, time.Since(start))

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildMessages(ctx context.Context, req llm.Request) ([]openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Parts)+2)
	system := strings.TrimSpace(req.System)
	if system == "" {
		system = "You are a financial document analyst. Respond with a single JSON object."
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})

	for _, part := range req.Parts {
		switch part.Kind {
		case llm.PartDocument:
			text, err := extract.PDFText(ctx, part.Path)
			if err != nil {
				return nil, fmt.Errorf("openai attach %s: %w", part.Label, err)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Document %s:\n%s", part.Label, extract.Truncate(text, maxDocumentChars)),
			})
		default:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("%s:\n%s", part.Label, part.Text),
			})
		}
	}

	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})
	return messages, nil
}

func logUsage(ctx context.Context, model string, usage openai.Usage, elapsed time.Duration) {
	telemetry.Info("llm.response", map[string]any{
		"request_id":        llm.RequestIDFromContext(ctx),
		"provider":          "openai",
		"model":             model,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
		"duration_ms":       elapsed.Milliseconds(),
	})
}

// Reasoning models reject temperature and max_tokens.
func isReasoningModel(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

var _ llm.Client = (*Client)(nil)
