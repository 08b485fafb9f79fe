package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/llm/llmtest"
	"underwriting-backend/internal/pdftest"
	"underwriting-backend/internal/shared/config"
	"underwriting-backend/internal/underwriting"
)

func stubFactories(client llm.Client) ClientFactories {
	ctor := func(ctx context.Context, model string) (llm.Client, error) { return client, nil }
	return ClientFactories{"openai": ctor, "gemini": ctor}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		UploadDir:       t.TempDir(),
		LLMProvider:     "openai",
		Providers:       config.DefaultProviderCatalog(),
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		DatabaseURL:     "sqlite://" + filepath.Join(t.TempDir(), "runs.db"),
	}
}

func TestBuildWiresSQLHistoryAndArchive(t *testing.T) {
	cfg := testConfig(t)
	client := llmtest.New(llmtest.ByPrompt(nil, "{}"))
	app, err := BuildWith(context.Background(), cfg, stubFactories(client))
	if err != nil {
		t.Fatalf("BuildWith: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if _, ok := app.Runs.(*underwriting.SQLRunRepo); !ok {
		t.Fatalf("expected SQL run history, got %T", app.Runs)
	}
	if !app.Archive.Enabled() {
		t.Fatalf("archive should be enabled for OBJECT_STORE=local")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("files", "march.pdf")
	_, _ = part.Write(pdftest.Build("March statement"))
	_ = w.WriteField("document_type", "bank_statement")
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Request-Id", "upload-1")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	var uploaded struct {
		MergedFiles   map[string]string `json:"merged_files"`
		OriginalFiles []string          `json:"original_files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil {
		t.Fatalf("unmarshal upload: %v", err)
	}
	merged := uploaded.MergedFiles["bank_statements"]
	if merged == "" {
		t.Fatalf("expected a merged bank statement, got %v", uploaded.MergedFiles)
	}
	if _, err := os.Stat(filepath.Join(cfg.LocalStoreDir, "merged", "upload-1", filepath.Base(merged))); err != nil {
		t.Fatalf("merged file not archived: %v", err)
	}

	body, _ := json.Marshal(map[string]any{"file_paths": uploaded.OriginalFiles, "merged_files": uploaded.MergedFiles})
	req = httptest.NewRequest(http.MethodPost, "/underwrite", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", "run-1")
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("underwrite status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/run-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get run status = %d: %s", rec.Code, rec.Body.String())
	}
	var run underwriting.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("unmarshal run: %v", err)
	}
	if run.Status != underwriting.RunCompleted || run.Provider != "openai" || len(run.Result) == 0 {
		t.Fatalf("unexpected stored run %+v", run)
	}
	for _, name := range []string{"result.json", "report.xlsx"} {
		if _, err := os.Stat(filepath.Join(cfg.LocalStoreDir, "runs", "run-1", name)); err != nil {
			t.Fatalf("%s not archived: %v", name, err)
		}
	}
}

func TestBuildWithoutDatabaseUsesMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseURL = ""
	cfg.ObjectStoreType = "none"

	app, err := BuildWith(context.Background(), cfg, stubFactories(llmtest.New(llmtest.ByPrompt(nil, "{}"))))
	if err != nil {
		t.Fatalf("BuildWith: %v", err)
	}
	if _, ok := app.Runs.(*underwriting.MemoryRunRepo); !ok {
		t.Fatalf("expected memory run history, got %T", app.Runs)
	}
	if app.Archive.Enabled() {
		t.Fatalf("archive should be disabled without an object store")
	}
	if got := app.Models.Providers(); len(got) != 2 || got[0] != "gemini" || got[1] != "openai" {
		t.Fatalf("unexpected providers %v", got)
	}
}

func TestBuildRejectsUnknownDefaultProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseURL = ""
	cfg.LLMProvider = "acme"

	_, err := BuildWith(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "LLM_PROVIDER") {
		t.Fatalf("expected LLM_PROVIDER error, got %v", err)
	}
}

func TestBuildSkipsCatalogProvidersWithoutClient(t *testing.T) {
	catalog, err := config.ParseProviderCatalog([]byte(`
default: openai
providers:
  openai:
    default_model: gpt-4o
  mistral:
    default_model: mistral-large
`))
	if err != nil {
		t.Fatalf("ParseProviderCatalog: %v", err)
	}
	reg, err := buildRegistry(config.Config{LLMProvider: "openai", Providers: catalog}, nil)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}
	if got := reg.Providers(); len(got) != 1 || got[0] != "openai" {
		t.Fatalf("unexpected providers %v", got)
	}
	model, err := reg.Model(llm.Selection{Provider: "openai", Tier: llm.TierReasoning})
	if err != nil || model != "gpt-4o" {
		t.Fatalf("reasoning model should fall back to the default model, got %q, %v", model, err)
	}
}

func TestBuildStoreRequiresBucket(t *testing.T) {
	for _, storeType := range []string{"s3", "gcs"} {
		t.Run(storeType, func(t *testing.T) {
			_, err := buildStore(context.Background(), config.Config{ObjectStoreType: storeType})
			if err == nil {
				t.Fatalf("expected missing bucket error")
			}
		})
	}
}
