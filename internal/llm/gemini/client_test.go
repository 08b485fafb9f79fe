package gemini

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/vertexai/genai"

	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/pdftest"
)

type fakeModel struct {
	system string
	parts  []genai.Part
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func newFakeClient(m *fakeModel) *Client {
	return &Client{model: "gemini-1.5-pro", modelFor: func(system string) generator {
		m.system = system
		return m
	}}
}

func TestCompleteSendsBlobsAndText(t *testing.T) {
	doc := pdftest.Write(t, t.TempDir(), "merged_tax_1.pdf", "Form 1120")
	model := &fakeModel{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"tax_years":[2023]}`)}}}},
	}}
	client := newFakeClient(model)

	got, err := llm.NewSession(client, "tax analyst").WithDocument(doc).WithText("notes", "n").Ask(context.Background(), "overview")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got != `{"tax_years":[2023]}` {
		t.Fatalf("unexpected reply %q", got)
	}
	if model.system != "tax analyst" {
		t.Fatalf("system instruction not applied: %q", model.system)
	}
	if len(model.parts) != 3 {
		t.Fatalf("expected blob+text+prompt, got %d parts", len(model.parts))
	}
	blob, ok := model.parts[0].(genai.Blob)
	if !ok || blob.MIMEType != "application/pdf" || len(blob.Data) == 0 {
		t.Fatalf("expected pdf blob, got %#v", model.parts[0])
	}
	if txt, ok := model.parts[2].(genai.Text); !ok || string(txt) != "overview" {
		t.Fatalf("prompt not last: %#v", model.parts[2])
	}
}

func TestCompleteWrapsErrors(t *testing.T) {
	client := newFakeClient(&fakeModel{err: context.DeadlineExceeded})
	_, err := client.Complete(context.Background(), llm.Request{Prompt: "x"})
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if !llm.ShouldRetry(err) {
		t.Fatalf("expected timeout to be retryable")
	}
}

func TestResponseTextEmpty(t *testing.T) {
	if got := responseText(nil); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	if _, err := NewClient(context.Background(), Options{Model: "gemini-1.5-pro"}); err == nil {
		t.Fatal("expected missing project error")
	}
}

func TestBuildPartsMissingFile(t *testing.T) {
	_, err := buildParts(llm.Request{Parts: []llm.Part{{Kind: llm.PartDocument, Label: "a.pdf", Path: "/nonexistent/a.pdf"}}})
	if err == nil {
		t.Fatal("expected read error")
	}
}
