package archive

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"underwriting-backend/internal/shared/storage/object/local"
)

func TestNilArchiverIsNoop(t *testing.T) {
	var a *Archiver
	if a.Enabled() {
		t.Fatal("nil archiver should be disabled")
	}
	if err := a.PutBytes(context.Background(), "k", ContentTypeJSON, []byte("{}")); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if New(nil) != nil {
		t.Fatal("New(nil) should return nil")
	}
}

func TestPutFileAndBytesRoundTripThroughLocalStore(t *testing.T) {
	store := local.New(t.TempDir())
	a := New(store)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "merged_bank_1.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	key := MergedKey("req-1", src)
	if key != "merged/req-1/merged_bank_1.pdf" {
		t.Fatalf("unexpected key %s", key)
	}
	if err := a.PutFile(ctx, key, ContentTypePDF, src); err != nil {
		t.Fatalf("put file: %v", err)
	}
	if err := a.PutBytes(ctx, RunKey("req-1", "result.json"), ContentTypeJSON, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("put bytes: %v", err)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, []byte("%PDF-1.4 test")) {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestPutFileMissingSourceFails(t *testing.T) {
	store := local.New(t.TempDir())
	if err := New(store).PutFile(context.Background(), "k", ContentTypePDF, "/does/not/exist.pdf"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
