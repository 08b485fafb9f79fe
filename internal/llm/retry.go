package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"underwriting-backend/internal/shared/telemetry"
)

var retryBaseDelay = 300 * time.Millisecond

type retryingClient struct {
	base     Client
	provider string
	model    string
}

// NewRetrying wraps base with a single delayed retry on transient failures.
func NewRetrying(base Client, provider, model string) Client {
	if base == nil {
		return nil
	}
	return retryingClient{base: base, provider: provider, model: model}
}

func (r retryingClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := r.base.Complete(ctx, req)
	if err == nil || !ShouldRetry(err) || ctx.Err() != nil {
		return resp, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"request_id": RequestIDFromContext(ctx),
		"provider":   r.provider,
		"model":      r.model,
		"attempt":    1,
		"error":      err.Error(),
	})
	select {
	case <-time.After(retryBaseDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return r.base.Complete(ctx, req)
}

// ShouldRetry reports whether err looks like a transient upstream failure.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "status code: 5") || strings.Contains(msg, "http status 5") ||
		strings.Contains(msg, "server_error") || strings.Contains(msg, "status code: 429") {
		return true
	}
	if strings.Contains(msg, "timeout") && (strings.Contains(msg, "openai") || strings.Contains(msg, "gemini") || strings.Contains(msg, "llm") || strings.Contains(msg, "client.timeout")) {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "unexpected eof") {
		return true
	}

	return false
}
