package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"underwriting-backend/internal/documents"
	"underwriting-backend/internal/shared/telemetry"
	"underwriting-backend/internal/shared/util"
)

// ErrOutsideDir is returned for paths that do not resolve inside the upload directory.
var ErrOutsideDir = errors.New("path is outside the upload directory")

// Dir is the on-disk upload area.
type Dir struct {
	Root string
}

// IsPDF reports whether name carries a .pdf suffix.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// Save copies an uploaded part to <uuid>_<sanitized name>.
func (d Dir) Save(fh *multipart.FileHeader) (documents.Upload, error) {
	name, err := util.SanitizeFileName(filepath.Base(fh.Filename))
	if err != nil {
		return documents.Upload{}, fmt.Errorf("%w: %s", documents.ErrInvalidInput, fh.Filename)
	}
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return documents.Upload{}, fmt.Errorf("mkdir upload dir: %w", err)
	}

	id := uuid.NewString()
	dst := filepath.Join(d.Root, id+"_"+name)

	src, err := fh.Open()
	if err != nil {
		return documents.Upload{}, fmt.Errorf("open part %s: %w", name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return documents.Upload{}, fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return documents.Upload{}, fmt.Errorf("write %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return documents.Upload{}, fmt.Errorf("close %s: %w", dst, err)
	}
	return documents.Upload{ID: id, Name: name, Path: dst}, nil
}

// Remove deletes paths, logging failures.
func (d Dir) Remove(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			telemetry.Error("uploads.cleanup_failed", map[string]any{"path": p, "error": err.Error()})
			continue
		}
		telemetry.Info("uploads.cleaned", map[string]any{"path": p})
	}
}

// Clear deletes every regular file directly under Root. Per-file failures are
// logged; only an unreadable directory is an error.
func (d Dir) Clear() (int, error) {
	entries, err := os.ReadDir(d.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read upload dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(d.Root, e.Name())
		if err := os.Remove(p); err != nil {
			telemetry.Error("uploads.clear_failed", map[string]any{"path": p, "error": err.Error()})
			continue
		}
		removed++
	}
	return removed, nil
}

// Resolve returns the absolute form of p if it lies inside Root.
func (d Dir) Resolve(p string) (string, error) {
	root, err := filepath.Abs(d.Root)
	if err != nil {
		return "", fmt.Errorf("resolve upload dir: %w", err)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, p)
	}
	if root, err = evalIfExists(root); err != nil {
		return "", err
	}
	if abs, err = evalIfExists(abs); err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDir, p)
	}
	return abs, nil
}

func evalIfExists(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	return "", fmt.Errorf("resolve %s: %w", p, err)
}
