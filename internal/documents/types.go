package documents

import (
	"errors"
	"strings"
)

// DocumentType is a classification label.
type DocumentType string

const (
	BankStatement DocumentType = "bank_statement"
	TaxReturn     DocumentType = "tax_return"
)

// Merged artifact keys.
const (
	KeyBankStatements = "bank_statements"
	KeyTaxReturns     = "tax_returns"
)

var (
	// ErrInvalidInput marks caller mistakes such as a malformed explicit type.
	ErrInvalidInput = errors.New("invalid input")
	// ErrClassification wraps a failed classification call.
	ErrClassification = errors.New("classification failed")
	// ErrMerge wraps a failed PDF merge.
	ErrMerge = errors.New("merge failed")
)

// Classification is the validated reply of the classification capability.
type Classification struct {
	DocumentType    DocumentType `json:"document_type"`
	ConfidenceScore float64      `json:"confidence_score"`
	IndicatorsFound []string     `json:"indicators_found"`
	Explanation     string       `json:"explanation"`
}

// Unclassified is a document left out of every group.
type Unclassified struct {
	Path         string `json:"path"`
	DocumentType string `json:"document_type"`
	Explanation  string `json:"explanation"`
}

// MergeResult maps artifact keys to merged PDF paths.
type MergeResult struct {
	Merged       map[string]string `json:"merged_files"`
	Unclassified []Unclassified    `json:"unclassified"`
}

// KeyFor returns the merged-files key for a document type.
func KeyFor(t DocumentType) string {
	switch normalizeType(string(t)) {
	case BankStatement, DocumentType(KeyBankStatements), "bank":
		return KeyBankStatements
	case TaxReturn, DocumentType(KeyTaxReturns), "tax":
		return KeyTaxReturns
	default:
		return normalizeType(string(t)).String()
	}
}

func (t DocumentType) String() string { return string(t) }

func normalizeType(raw string) DocumentType {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return DocumentType(s)
}

// validExplicitType limits explicit types to characters safe in file names.
func validExplicitType(raw string) bool {
	s := normalizeType(raw)
	if s == "" || len(s) > 64 {
		return false
	}
	for _, ch := range s {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '_':
		default:
			return false
		}
	}
	return true
}

// filePrefix is the short tag used in merged file names.
func filePrefix(key string) string {
	switch key {
	case KeyBankStatements:
		return "bank"
	case KeyTaxReturns:
		return "tax"
	default:
		return key
	}
}

// Upload is a PDF saved to the upload directory.
type Upload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}
