package documents

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Merger concatenates PDFs into new files under Dir.
type Merger struct {
	Dir string
}

// Merge writes the pages of paths, in order, into merged_<prefix>_<uuid>.pdf.
func (m Merger) Merge(paths []string, prefix string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: no input files", ErrMerge)
	}
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir %s: %v", ErrMerge, m.Dir, err)
	}
	out := filepath.Join(m.Dir, fmt.Sprintf("merged_%s_%s.pdf", prefix, uuid.NewString()))

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	var err error
	if len(paths) == 1 {
		// A single input is rewritten rather than merged.
		err = api.OptimizeFile(paths[0], out, conf)
	} else {
		err = api.MergeCreateFile(paths, out, false, conf)
	}
	if err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("%w: %s: %v", ErrMerge, out, err)
	}
	return out, nil
}
