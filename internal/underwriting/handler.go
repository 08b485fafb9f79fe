package underwriting

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"underwriting-backend/internal/archive"
	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/shared/server/middleware"
	"underwriting-backend/internal/shared/server/respond"
	"underwriting-backend/internal/shared/util"
	"underwriting-backend/internal/status"
	"underwriting-backend/internal/uploads"
)

// SinkFactory binds status sinks to request IDs; *status.Hub satisfies it.
type SinkFactory interface {
	Sink(requestID string) status.Sink
}

// Handler serves /underwrite and the run history routes.
type Handler struct {
	Orchestrator *Orchestrator
	Status       SinkFactory
	Runs         RunRepo
}

// RegisterRoutes mounts the routes. Extra handlers run ahead of /underwrite only.
func (h *Handler) RegisterRoutes(r gin.IRoutes, underwriteMiddleware ...gin.HandlerFunc) {
	r.POST("/underwrite", append(underwriteMiddleware, h.underwrite)...)
	r.GET("/runs", h.listRuns)
	r.GET("/runs/:id", h.getRun)
	r.GET("/runs/:id/report.xlsx", h.report)
}

func (h *Handler) underwrite(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, codeValidation, "Invalid request body", util.SanitizeError(err))
		return
	}
	requestID := middleware.RequestIDFromContext(c)
	var sink status.Sink = status.NopSink{}
	if h.Status != nil {
		sink = h.Status.Sink(requestID)
	}

	ac, err := h.Orchestrator.Run(c.Request.Context(), requestID, req, sink)
	if err != nil {
		writeRunError(c, err)
		return
	}
	c.Set(middleware.ProviderKey, ac.Provider)
	c.Set(middleware.DocumentCountKey, len(req.FilePaths))
	if ac.Error != "" {
		c.Set(middleware.RunStatusKey, string(RunAborted))
	} else {
		c.Set(middleware.RunStatusKey, string(RunCompleted))
	}
	respond.OK(c, ac)
}

func writeRunError(c *gin.Context, err error) {
	c.Set(middleware.RunStatusKey, string(RunFailed))
	var unknown *llm.UnknownProviderError
	switch {
	case errors.Is(err, ErrNoFilePaths):
		respond.Error(c, http.StatusBadRequest, codeValidation, ErrNoFilePaths.Error(), nil)
	case errors.As(err, &unknown):
		respond.ErrorWith(c, http.StatusBadRequest, codeConfiguration, unknown.Error(), nil,
			map[string]any{"valid_providers": unknown.Valid})
	case errors.Is(err, uploads.ErrOutsideDir):
		respond.Error(c, http.StatusBadRequest, codeValidation, "Merged file path is outside the upload directory", util.SanitizeError(err))
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, codeValidation, util.SanitizeError(err), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, classifyFailure(err), util.SanitizeError(err), nil)
	}
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respond.Error(c, http.StatusBadRequest, codeValidation, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	runs, err := h.Runs.List(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, codeStorage, "Failed to list runs", util.SanitizeError(err))
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	respond.OK(c, gin.H{"runs": runs})
}

func (h *Handler) getRun(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	respond.OK(c, run)
}

func (h *Handler) report(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}
	if len(run.Result) == 0 {
		respond.Error(c, http.StatusNotFound, codeValidation, "Run has no result yet", nil)
		return
	}
	var ac AnalysisContext
	if err := json.Unmarshal(run.Result, &ac); err != nil {
		respond.Error(c, http.StatusInternalServerError, codeInternal, "Stored result is unreadable", util.SanitizeError(err))
		return
	}
	data, err := BuildReport(&ac)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, codeInternal, "Failed to build report", util.SanitizeError(err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="underwriting-%s.xlsx"`, run.RequestID))
	c.Data(http.StatusOK, archive.ContentTypeXLSX, data)
}

func (h *Handler) loadRun(c *gin.Context) (Run, bool) {
	run, err := h.Runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			respond.Error(c, http.StatusNotFound, codeValidation, "Run not found", nil)
			return Run{}, false
		}
		respond.Error(c, http.StatusInternalServerError, codeStorage, "Failed to load run", util.SanitizeError(err))
		return Run{}, false
	}
	return run, true
}
