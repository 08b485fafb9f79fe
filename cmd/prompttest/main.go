package main

// Run the full pipeline against local PDFs without the HTTP server:
//   go run ./cmd/prompttest -files jan.pdf,feb.pdf,return.pdf -provider gemini -debug

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"underwriting-backend/internal/bootstrap"
	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/shared/config"
	"underwriting-backend/internal/status"
	"underwriting-backend/internal/underwriting"
)

func main() {
	cfg := config.Load()

	files := flag.String("files", "", "Comma-separated PDF paths")
	documentType := flag.String("type", "", "Skip classification and treat every file as this type")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider")
	debug := flag.Bool("debug", false, "Include raw model responses")
	outPath := flag.String("out", "", "Path to write the JSON result (optional)")
	reportPath := flag.String("report", "", "Path to write the XLSX report (optional)")
	flag.Parse()

	paths := splitPaths(*files)
	if len(paths) == 0 {
		exitErr("at least one PDF path is required (-files)")
	}
	for _, p := range paths {
		if !strings.EqualFold(filepath.Ext(p), ".pdf") {
			exitErr(fmt.Sprintf("not a PDF: %s", p))
		}
		if _, err := os.Stat(p); err != nil {
			exitErr(fmt.Sprintf("read %s: %v", p, err))
		}
	}

	ctx := context.Background()
	cfg.DatabaseURL = ""
	cfg.ObjectStoreType = "none"
	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		exitErr(fmt.Sprintf("bootstrap: %v", err))
	}
	defer app.Close()

	requestID := uuid.NewString()
	ctx = llm.WithRequestID(ctx, requestID)
	merged, err := app.DocumentsService.MergeByType(ctx, paths, *documentType, llm.Selection{Provider: *provider, Tier: llm.TierDefault})
	if err != nil {
		exitErr(fmt.Sprintf("classify and merge: %v", err))
	}
	for _, u := range merged.Unclassified {
		fmt.Fprintf(os.Stderr, "unclassified %s: %s (%s)\n", u.Path, u.DocumentType, u.Explanation)
	}

	sink := status.Func(func(step string, state status.State, details string) {
		fmt.Fprintf(os.Stderr, "%s %-16s %-10s %s\n", time.Now().Format("15:04:05"), step, state, details)
	})
	ac, err := app.Orchestrator.Run(ctx, requestID, underwriting.Request{
		FilePaths:   paths,
		MergedFiles: merged.Merged,
		Provider:    *provider,
		Debug:       *debug,
	}, sink)
	if err != nil {
		exitErr(fmt.Sprintf("underwrite: %v", err))
	}

	pretty, err := json.MarshalIndent(ac, "", "  ")
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}
	if *reportPath != "" {
		report, err := underwriting.BuildReport(ac)
		if err != nil {
			exitErr(fmt.Sprintf("build report: %v", err))
		}
		if err := os.WriteFile(*reportPath, report, 0o644); err != nil {
			exitErr(fmt.Sprintf("write report: %v", err))
		}
	}

	if _, err := os.Stdout.Write(append(pretty, '\n')); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
}

func splitPaths(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
