package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseProviderCatalog(t *testing.T) {
	catalog, err := ParseProviderCatalog([]byte(`
default: Gemini
providers:
  OpenAI:
    default_model: gpt-4o-mini
  gemini:
    default_model: gemini-1.5-flash
    reasoning_model: gemini-2.5-pro
`))
	if err != nil {
		t.Fatalf("ParseProviderCatalog: %v", err)
	}
	if catalog.Default != "gemini" {
		t.Fatalf("expected default gemini, got %q", catalog.Default)
	}
	openai, ok := catalog.Providers["openai"]
	if !ok {
		t.Fatalf("expected lower-cased openai key, got %v", catalog.Names())
	}
	if openai.ReasoningModel != "gpt-4o-mini" {
		t.Fatalf("expected reasoning model to fall back to default, got %q", openai.ReasoningModel)
	}
	if got := catalog.Names(); len(got) != 2 || got[0] != "gemini" || got[1] != "openai" {
		t.Fatalf("unexpected names: %v", got)
	}
}

func TestParseProviderCatalogRejectsEmpty(t *testing.T) {
	if _, err := ParseProviderCatalog([]byte("providers: {}\n")); err == nil {
		t.Fatalf("expected error for empty catalog")
	}
	if _, err := ParseProviderCatalog([]byte("providers:\n  openai: {}\n")); err == nil {
		t.Fatalf("expected error for missing default_model")
	}
}

func TestDefaultProviderCatalog(t *testing.T) {
	catalog := DefaultProviderCatalog()
	if catalog.Default != "openai" {
		t.Fatalf("expected openai default, got %q", catalog.Default)
	}
	if _, ok := catalog.Providers["gemini"]; !ok {
		t.Fatalf("expected gemini in built-in catalog")
	}
}

func TestLoadReadsEnv(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "providers.yaml")
	if err := os.WriteFile(catalogPath, []byte("default: gemini\nproviders:\n  gemini:\n    default_model: g\n"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	t.Setenv("PROVIDERS_FILE", catalogPath)
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("CONTINUITY_POLICY", "ABORT")
	t.Setenv("STAGE_TIMEOUT_SECONDS", "30")
	t.Setenv("MAX_UPLOAD_MB", "10")
	t.Setenv("OBJECT_STORE", "MinIO")
	t.Setenv("CLASSIFY_CONCURRENCY", "-2")

	cfg := Load()
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected provider from catalog default, got %q", cfg.LLMProvider)
	}
	if cfg.ContinuityPolicy != "abort" {
		t.Fatalf("expected abort policy, got %q", cfg.ContinuityPolicy)
	}
	if cfg.StageTimeout != 30*time.Second {
		t.Fatalf("unexpected stage timeout: %v", cfg.StageTimeout)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("unexpected max upload bytes: %d", cfg.MaxUploadBytes)
	}
	if cfg.ObjectStoreType != "minio" {
		t.Fatalf("unexpected store type: %q", cfg.ObjectStoreType)
	}
	if cfg.ClassifyConcurrency != 4 {
		t.Fatalf("expected invalid concurrency to fall back to 4, got %d", cfg.ClassifyConcurrency)
	}
}

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		line   string
		key    string
		val    string
		wantOK bool
	}{
		{line: "PORT=9090", key: "PORT", val: "9090", wantOK: true},
		{line: "export LLM_PROVIDER=gemini", key: "LLM_PROVIDER", val: "gemini", wantOK: true},
		{line: `OPENAI_API_KEY="sk-test"`, key: "OPENAI_API_KEY", val: "sk-test", wantOK: true},
		{line: "NAME='quoted value'", key: "NAME", val: "quoted value", wantOK: true},
		{line: "# comment", wantOK: false},
		{line: "garbage", wantOK: false},
	}
	for _, tt := range tests {
		key, val, ok := parseEnvLine(tt.line)
		if ok != tt.wantOK {
			t.Fatalf("parseEnvLine(%q) ok=%v, want %v", tt.line, ok, tt.wantOK)
		}
		if ok && (key != tt.key || val != tt.val) {
			t.Fatalf("parseEnvLine(%q) = %q,%q want %q,%q", tt.line, key, val, tt.key, tt.val)
		}
	}
}
