// Package statuswatch follows the /status event stream in a terminal.
package statuswatch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"underwriting-backend/internal/status"
)

// StatusURL builds the stream URL for base, filtered to requestID when set.
func StatusURL(base, requestID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(base), "/") + "/status")
	if err != nil {
		return "", fmt.Errorf("parse server address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("server address must be http or https, got %q", base)
	}
	if requestID != "" {
		q := u.Query()
		q.Set("request_id", requestID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Follow reads events from streamURL into out until ctx ends or the server
// closes the stream. Comment lines and unparseable payloads are skipped.
func Follow(ctx context.Context, client *http.Client, streamURL string, out chan<- status.Event) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connect %s: %w", streamURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect %s: unexpected status %d", streamURL, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var ev status.Event
			if err := json.Unmarshal([]byte(data.String()), &ev); err == nil {
				select {
				case out <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}
