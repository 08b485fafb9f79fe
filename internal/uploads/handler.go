package uploads

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"underwriting-backend/internal/archive"
	"underwriting-backend/internal/documents"
	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/shared/metrics"
	"underwriting-backend/internal/shared/server/middleware"
	"underwriting-backend/internal/shared/server/respond"
	"underwriting-backend/internal/shared/telemetry"
	"underwriting-backend/internal/shared/util"
)

// Merger classifies and merges saved uploads; *documents.Service satisfies it.
type Merger interface {
	MergeByType(ctx context.Context, paths []string, explicitType string, sel llm.Selection) (documents.MergeResult, error)
}

// ProviderValidator rejects unknown provider names; *llm.Registry satisfies it.
type ProviderValidator interface {
	Validate(provider string) error
}

// Handler serves /upload and /clear-uploads.
type Handler struct {
	Dir             Dir
	Documents       Merger
	Providers       ProviderValidator
	DefaultProvider string
	MaxBytes        int64
	Archive         *archive.Archiver
}

type uploadSummary struct {
	TotalFiles     int  `json:"total_files"`
	BankStatements bool `json:"bank_statements"`
	TaxReturns     bool `json:"tax_returns"`
}

type uploadResponse struct {
	MergedFiles   map[string]string        `json:"merged_files"`
	Summary       uploadSummary            `json:"summary"`
	OriginalFiles []string                 `json:"original_files"`
	Unclassified  []documents.Unclassified `json:"unclassified"`
}

// RegisterRoutes mounts the upload routes. Extra handlers such as a rate
// limiter run ahead of /upload only.
func (h *Handler) RegisterRoutes(r gin.IRoutes, uploadMiddleware ...gin.HandlerFunc) {
	r.POST("/upload", append(uploadMiddleware, h.Upload)...)
	r.POST("/clear-uploads", h.Clear)
}

// Upload saves PDF parts, then classifies and merges them.
func (h *Handler) Upload(c *gin.Context) {
	if h.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Upload exceeds size limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No files part in the request", nil)
		return
	}
	parts, ok := form.File["files"]
	if !ok {
		if _, asValue := form.Value["files"]; asValue {
			// A part with an empty file name is parsed as a plain field.
			respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No files selected", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No files part in the request", nil)
		return
	}
	if len(parts) == 0 || parts[0].Filename == "" {
		respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No files selected", nil)
		return
	}

	provider := h.DefaultProvider
	if v := strings.TrimSpace(firstValue(form.Value["provider"])); v != "" {
		provider = strings.ToLower(v)
	}
	if err := h.Providers.Validate(provider); err != nil {
		var unknown *llm.UnknownProviderError
		if errors.As(err, &unknown) {
			respond.ErrorWith(c, http.StatusBadRequest, "CONFIGURATION_ERROR", unknown.Error(), nil,
				map[string]any{"valid_providers": unknown.Valid})
			return
		}
		respond.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Error processing upload", util.SanitizeError(err))
		return
	}
	explicitType := strings.TrimSpace(firstValue(form.Value["document_type"]))

	var saved []string
	for _, fh := range parts {
		if fh == nil || !IsPDF(fh.Filename) {
			continue
		}
		up, err := h.Dir.Save(fh)
		if err != nil {
			if errors.Is(err, documents.ErrInvalidInput) {
				telemetry.Warn("uploads.rejected_name", map[string]any{"name": fh.Filename})
				continue
			}
			h.Dir.Remove(saved...)
			respond.Error(c, http.StatusInternalServerError, "STORAGE_ERROR", "Error processing upload", util.SanitizeError(err))
			return
		}
		telemetry.Info("uploads.saved", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"name":       up.Name,
			"path":       up.Path,
		})
		saved = append(saved, up.Path)
	}
	if len(saved) == 0 {
		respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No valid PDF files uploaded", nil)
		return
	}
	metrics.IncUpload(len(saved))
	c.Set(middleware.ProviderKey, provider)
	c.Set(middleware.DocumentCountKey, len(saved))

	requestID := middleware.RequestIDFromContext(c)
	ctx := llm.WithRequestID(c.Request.Context(), requestID)
	result, err := h.Documents.MergeByType(ctx, saved, explicitType, llm.Selection{Provider: provider, Tier: llm.TierDefault})
	if err != nil {
		h.Dir.Remove(saved...)
		if errors.Is(err, documents.ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid document_type", util.SanitizeError(err))
			return
		}
		respond.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Error processing upload", util.SanitizeError(err))
		return
	}

	for _, merged := range result.Merged {
		_ = h.Archive.PutFile(ctx, archive.MergedKey(requestID, merged), archive.ContentTypePDF, merged)
	}

	_, hasBank := result.Merged[documents.KeyBankStatements]
	_, hasTax := result.Merged[documents.KeyTaxReturns]
	unclassified := result.Unclassified
	if unclassified == nil {
		unclassified = []documents.Unclassified{}
	}
	respond.OK(c, uploadResponse{
		MergedFiles: result.Merged,
		Summary: uploadSummary{
			TotalFiles:     len(saved),
			BankStatements: hasBank,
			TaxReturns:     hasTax,
		},
		OriginalFiles: saved,
		Unclassified:  unclassified,
	})
}

// Clear empties the upload directory. It does not coordinate with running
// underwriting requests.
func (h *Handler) Clear(c *gin.Context) {
	removed, err := h.Dir.Clear()
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "STORAGE_ERROR", util.SanitizeError(err), nil)
		return
	}
	telemetry.Info("uploads.cleared", map[string]any{
		"request_id": middleware.RequestIDFromContext(c),
		"removed":    removed,
	})
	respond.OK(c, gin.H{"message": "Uploads cleared successfully"})
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
