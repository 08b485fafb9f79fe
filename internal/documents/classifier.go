package documents

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"underwriting-backend/internal/llm"
)

//go:embed schemas/classification.json
var classificationSchemaDoc []byte

var classificationSchema = llm.MustCompileSchema("classification", classificationSchemaDoc)

// Classifier asks the model which kind of financial document a PDF is.
type Classifier struct {
	Client llm.Client
}

// Classify runs one single-document session. A reply that fails validation is
// reported as an unknown type rather than an error; only the call itself can fail.
func (c Classifier) Classify(ctx context.Context, path string) (Classification, error) {
	session := llm.NewSession(c.Client, classifierSystem).WithDocument(path)
	raw, err := session.Ask(ctx, classifyPrompt)
	if err != nil {
		return Classification{}, fmt.Errorf("%w: %s: %v", ErrClassification, path, err)
	}

	var out Classification
	if err := classificationSchema.Decode(raw, &out); err != nil {
		if errors.Is(err, llm.ErrInvalidJSON) || errors.Is(err, llm.ErrSchemaMismatch) {
			return Classification{
				DocumentType: "unknown",
				Explanation:  fmt.Sprintf("unparseable classification: %v", err),
			}, nil
		}
		return Classification{}, err
	}
	out.DocumentType = normalizeType(string(out.DocumentType))
	return out, nil
}
