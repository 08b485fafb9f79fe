package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Session is an immutable conversation context. With* methods return a new
// Session and never modify the receiver, so a Session can be shared freely.
type Session struct {
	client Client
	system string
	parts  []Part
}

// NewSession starts an empty session bound to client.
func NewSession(client Client, system string) Session {
	return Session{client: client, system: system}
}

// WithDocument attaches a PDF by path.
func (s Session) WithDocument(path string) Session {
	return s.with(Part{
		Kind:     PartDocument,
		Label:    filepath.Base(path),
		Path:     path,
		MIMEType: "application/pdf",
	})
}

// WithText attaches labelled inline text.
func (s Session) WithText(label, text string) Session {
	return s.with(Part{Kind: PartText, Label: label, Text: text})
}

// WithJSON attaches v encoded as JSON text.
func (s Session) WithJSON(label string, v any) (Session, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return s, fmt.Errorf("encode %s: %w", label, err)
	}
	return s.WithText(label, string(data)), nil
}

// Parts returns a copy of the accumulated context.
func (s Session) Parts() []Part {
	out := make([]Part, len(s.parts))
	copy(out, s.parts)
	return out
}

// Ask sends the session snapshot plus prompt and returns the raw reply.
func (s Session) Ask(ctx context.Context, prompt string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("llm: session has no client")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	return s.client.Complete(ctx, Request{
		System: s.system,
		Parts:  s.Parts(),
		Prompt: prompt,
	})
}

func (s Session) with(p Part) Session {
	parts := make([]Part, len(s.parts), len(s.parts)+1)
	copy(parts, s.parts)
	return Session{client: s.client, system: s.system, parts: append(parts, p)}
}
