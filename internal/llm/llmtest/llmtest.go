// Package llmtest provides scripted llm.Client implementations for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"underwriting-backend/internal/llm"
)

// Responder produces a reply for one request.
type Responder func(req llm.Request) (string, error)

// Client is a thread-safe scripted client that records every request.
type Client struct {
	mu       sync.Mutex
	respond  Responder
	requests []llm.Request
}

// New returns a client answering with respond.
func New(respond Responder) *Client {
	return &Client{respond: respond}
}

// Complete records req and delegates to the responder.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.requests = append(c.requests, req)
	respond := c.respond
	c.mu.Unlock()
	return respond(req)
}

// Requests returns a copy of the recorded requests.
func (c *Client) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// ByPrompt answers with the first reply whose key is contained in the prompt.
// Unmatched prompts get fallback.
func ByPrompt(replies map[string]string, fallback string) Responder {
	return func(req llm.Request) (string, error) {
		for key, reply := range replies {
			if strings.Contains(req.Prompt, key) {
				return reply, nil
			}
		}
		return fallback, nil
	}
}

// Registry returns a registry whose named providers all resolve to client.
func Registry(client llm.Client, providers ...string) *llm.Registry {
	reg := llm.NewRegistry()
	if len(providers) == 0 {
		providers = []string{"gemini", "openai"}
	}
	for _, p := range providers {
		reg.Register(p, llm.Models{Default: p + "-default", Reasoning: p + "-reasoning"},
			func(ctx context.Context, model string) (llm.Client, error) { return client, nil })
	}
	return reg
}

var _ llm.Client = (*Client)(nil)
