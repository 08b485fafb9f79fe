package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/shared/telemetry"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Options configures the Vertex AI Gemini client.
type Options struct {
	ProjectID       string
	Location        string
	CredentialsFile string
	Model           string
}

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Client on Vertex AI. PDFs are sent inline as blobs.
type Client struct {
	base     *genai.Client
	model    string
	modelFor func(system string) generator
}

// NewClient connects to Vertex AI. Without a credentials file, application default credentials apply.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.ProjectID) == "" {
		return nil, fmt.Errorf("GEMINI_PROJECT_ID is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("model is required for Gemini")
	}
	location := strings.TrimSpace(opts.Location)
	if location == "" {
		location = "us-central1"
	}

	var clientOpts []option.ClientOption
	if path := strings.TrimSpace(opts.CredentialsFile); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read gemini credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, raw, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("parse gemini credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentials(creds))
	}

	base, err := genai.NewClient(ctx, opts.ProjectID, location, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	c := &Client{base: base, model: opts.Model}
	c.modelFor = func(system string) generator {
		m := base.GenerativeModel(c.model)
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
		m.GenerationConfig = genai.GenerationConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0),
		}
		return m
	}
	return c, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// Complete sends documents, context text and prompt as one GenerateContent call.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	parts, err := buildParts(req)
	if err != nil {
		return "", err
	}
	system := strings.TrimSpace(req.System)
	if system == "" {
		system = "You are a financial document analyst. Respond with JSON only."
	}

	start := time.Now()
	resp, err := c.modelFor(system).GenerateContent(ctx, parts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("gemini request timeout: %w", err)
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := responseText(resp)

	fields := map[string]any{
		"request_id":  llm.RequestIDFromContext(ctx),
		"provider":    "gemini",
		"model":       c.model,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if resp != nil && resp.UsageMetadata != nil {
		fields["prompt_tokens"] = resp.UsageMetadata.PromptTokenCount
		fields["completion_tokens"] = resp.UsageMetadata.CandidatesTokenCount
		fields["total_tokens"] = resp.UsageMetadata.TotalTokenCount
	}
	telemetry.Info("llm.response", fields)
	return text, nil
}

func buildParts(req llm.Request) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(req.Parts)+1)
	for _, p := range req.Parts {
		switch p.Kind {
		case llm.PartDocument:
			data, err := os.ReadFile(p.Path)
			if err != nil {
				return nil, fmt.Errorf("gemini attach %s: %w", p.Label, err)
			}
			mime := p.MIMEType
			if mime == "" {
				mime = "application/pdf"
			}
			parts = append(parts, genai.Blob{MIMEType: mime, Data: data})
		default:
			parts = append(parts, genai.Text(fmt.Sprintf("%s:\n%s", p.Label, p.Text)))
		}
	}
	return append(parts, genai.Text(req.Prompt)), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

var _ llm.Client = (*Client)(nil)
