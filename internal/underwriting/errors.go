package underwriting

import (
	"context"
	"errors"
	"fmt"

	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/uploads"
)

var (
	// ErrNoFilePaths is returned when a request names no uploaded files.
	ErrNoFilePaths = errors.New("No file paths provided")
	// ErrInvalidInput covers malformed requests other than missing paths.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotContiguous aborts a bank branch under the abort continuity policy.
	ErrNotContiguous = errors.New("Bank statements are not contiguous")
	// ErrEmptyResponse marks a model call that returned nothing.
	ErrEmptyResponse = errors.New("empty response from model")
)

const (
	codeValidation     = "VALIDATION_ERROR"
	codeConfiguration  = "CONFIGURATION_ERROR"
	codeTimeout        = "LLM_TIMEOUT"
	codeSchemaMismatch = "LLM_SCHEMA_MISMATCH"
	codeUpstream       = "LLM_ERROR"
	codeStorage        = "STORAGE_ERROR"
	codeInternal       = "INTERNAL_ERROR"
)

// StepError is a failed analysis step.
type StepError struct {
	Step string
	Code string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func classifyFailure(err error) string {
	var unknown *llm.UnknownProviderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return codeTimeout
	case errors.Is(err, llm.ErrInvalidJSON), errors.Is(err, llm.ErrSchemaMismatch), errors.Is(err, ErrEmptyResponse):
		return codeSchemaMismatch
	case errors.As(err, &unknown):
		return codeConfiguration
	case errors.Is(err, ErrNoFilePaths), errors.Is(err, ErrInvalidInput), errors.Is(err, uploads.ErrOutsideDir):
		return codeValidation
	default:
		return codeUpstream
	}
}
