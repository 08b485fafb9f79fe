package object

import (
	"io"
	"strings"
	"testing"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "runs/req-1/result.json", want: "runs/req-1/result.json"},
		{name: "simple prefix", prefix: "root", key: "runs/a.pdf", want: "root/runs/a.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "runs/a.pdf", want: "root/runs/a.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/runs/a.pdf", want: "root/runs/a.pdf"},
		{name: "empty key", prefix: "root", key: "", want: "root"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ApplyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("ApplyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestCleanKey(t *testing.T) {
	if got, err := CleanKey("/runs//req-1/result.json"); err != nil || got != "runs/req-1/result.json" {
		t.Fatalf("CleanKey = %q, %v", got, err)
	}
	for _, bad := range []string{"", "   ", "../x", "runs/../../x", "/"} {
		if _, err := CleanKey(bad); err == nil {
			t.Fatalf("CleanKey(%q) expected error", bad)
		}
	}
}

func TestCountingReader(t *testing.T) {
	c := &CountingReader{R: strings.NewReader("hello world")}
	if _, err := io.Copy(io.Discard, c); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if c.N != 11 {
		t.Fatalf("expected 11 bytes, got %d", c.N)
	}
}
