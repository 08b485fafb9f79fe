// Package archive copies run artifacts to the configured object store.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"underwriting-backend/internal/shared/storage/object"
	"underwriting-backend/internal/shared/telemetry"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeJSON = "application/json"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Archiver writes best-effort copies. A nil Archiver or nil Store is a no-op.
type Archiver struct {
	Store object.Store
}

// New returns nil when store is nil so callers can skip archiving cheaply.
func New(store object.Store) *Archiver {
	if store == nil {
		return nil
	}
	return &Archiver{Store: store}
}

// Enabled reports whether a store is configured.
func (a *Archiver) Enabled() bool {
	return a != nil && a.Store != nil
}

// MergedKey is the key for a merged PDF uploaded under requestID.
func MergedKey(requestID, file string) string {
	return path.Join("merged", requestID, filepath.Base(file))
}

// RunKey is the key for a run artifact such as result.json.
func RunKey(requestID, name string) string {
	return path.Join("runs", requestID, name)
}

// PutFile copies a local file. Failures are logged and returned.
func (a *Archiver) PutFile(ctx context.Context, key, contentType, file string) error {
	if !a.Enabled() {
		return nil
	}
	f, err := os.Open(file)
	if err != nil {
		return a.fail(key, fmt.Errorf("open %s: %w", file, err))
	}
	defer f.Close()
	return a.put(ctx, key, contentType, f)
}

// PutBytes copies an in-memory artifact. Failures are logged and returned.
func (a *Archiver) PutBytes(ctx context.Context, key, contentType string, data []byte) error {
	if !a.Enabled() {
		return nil
	}
	return a.put(ctx, key, contentType, bytes.NewReader(data))
}

func (a *Archiver) put(ctx context.Context, key, contentType string, r io.Reader) error {
	size, err := a.Store.Put(ctx, key, contentType, r)
	if err != nil {
		return a.fail(key, err)
	}
	telemetry.Info("archive.put", map[string]any{"key": key, "bytes": size})
	return nil
}

func (a *Archiver) fail(key string, err error) error {
	telemetry.Warn("archive.failed", map[string]any{"key": key, "error": err.Error()})
	return fmt.Errorf("archive %s: %w", key, err)
}
