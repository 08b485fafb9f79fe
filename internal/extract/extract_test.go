package extract

import (
	"context"
	"strings"
	"testing"

	"underwriting-backend/internal/pdftest"
)

func TestPDFTextReadsPages(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "statement.pdf", "Opening balance 1200", "Closing balance 900")

	text, err := PDFText(context.Background(), path)
	if err != nil {
		t.Fatalf("PDFText: %v", err)
	}
	if !strings.Contains(text, "Opening balance") || !strings.Contains(text, "Closing balance") {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestPDFTextFromBytesRejectsNonPDF(t *testing.T) {
	if _, err := PDFTextFromBytes(context.Background(), []byte("hello")); err == nil {
		t.Fatal("expected error for non-pdf payload")
	}
}

func TestPDFTextMissingFile(t *testing.T) {
	if _, err := PDFText(context.Background(), "/nonexistent/file.pdf"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc\n[truncated]" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("short text changed: %q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Fatalf("zero max should disable truncation: %q", got)
	}
}
