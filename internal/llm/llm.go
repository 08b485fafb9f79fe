package llm

import (
	"context"
	"errors"
)

// Tier selects which model of a provider serves a call.
type Tier string

const (
	TierDefault   Tier = "default"
	TierReasoning Tier = "reasoning"
)

// Selection identifies a provider and model tier.
type Selection struct {
	Provider string
	Tier     Tier
}

// PartKind distinguishes attached documents from inline text.
type PartKind string

const (
	PartDocument PartKind = "document"
	PartText     PartKind = "text"
)

// Part is one piece of session context sent ahead of the prompt.
type Part struct {
	Kind     PartKind
	Label    string
	Path     string
	MIMEType string
	Text     string
}

// Request is a complete, self-contained model call.
type Request struct {
	System string
	Parts  []Part
	Prompt string
}

// Client abstracts language-model providers. Implementations are stateless;
// every call carries its full context.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrEmptyPrompt is returned when a session is asked nothing.
var ErrEmptyPrompt = errors.New("llm: empty prompt")
