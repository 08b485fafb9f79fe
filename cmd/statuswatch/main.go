package main

// Follow underwriting progress in the terminal:
//   go run ./cmd/statuswatch -addr http://localhost:8080 -request-id <id>

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"underwriting-backend/internal/status"
	"underwriting-backend/internal/statuswatch"
)

func main() {
	addr := flag.String("addr", envOr("STATUSWATCH_ADDR", "http://localhost:8080"), "API server base URL")
	requestID := flag.String("request-id", "", "Only follow this request ID")
	flag.Parse()

	streamURL, err := statuswatch.StatusURL(*addr, *requestID)
	if err != nil {
		exitErr(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan status.Event, 64)
	ended := make(chan error, 1)
	go func() {
		ended <- statuswatch.Follow(ctx, nil, streamURL, events)
	}()

	final, err := tea.NewProgram(statuswatch.New(*requestID, events, ended)).Run()
	if err != nil {
		exitErr(err)
	}
	if m, ok := final.(statuswatch.Model); ok && m.Err() != nil {
		exitErr(m.Err())
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "statuswatch: %v\n", err)
	os.Exit(1)
}
