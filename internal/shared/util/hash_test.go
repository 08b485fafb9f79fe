package util

import (
	"errors"
	"strings"
	"testing"
)

func TestSHA256Hex(t *testing.T) {
	got := SHA256Hex([]byte("bank_statements"))
	if got != SHA256Hex([]byte("bank_statements")) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "statement.pdf", want: "statement.pdf"},
		{in: " dir/statement.pdf ", want: "dir_statement.pdf"},
		{in: `c:\tmp\a.pdf`, want: "c_tmp_a.pdf"},
		{in: "../etc/passwd", want: "etc_passwd"},
		{in: "Bank Statement (March).pdf", want: "Bank_Statement_March.pdf"},
		{in: ".hidden.pdf", want: "hidden.pdf"},
		{in: "   ", wantErr: true},
		{in: "../..", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, %v want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	if got := SanitizeError(nil); got != "" {
		t.Fatalf("nil error should sanitize to empty, got %q", got)
	}
	got := SanitizeError(errors.New("line one\nline\ttwo"))
	if got != "line one line two" {
		t.Fatalf("unexpected message %q", got)
	}
	long := SanitizeError(errors.New(strings.Repeat("x", 900)))
	if len(long) != 500 {
		t.Fatalf("expected 500 chars, got %d", len(long))
	}
}
