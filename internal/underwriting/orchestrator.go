package underwriting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"underwriting-backend/internal/archive"
	"underwriting-backend/internal/documents"
	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/shared/metrics"
	"underwriting-backend/internal/shared/telemetry"
	"underwriting-backend/internal/shared/util"
	"underwriting-backend/internal/status"
	"underwriting-backend/internal/uploads"
)

// Orchestrator states, also used as status event steps.
const (
	StateStart          = "start"
	StateLLMSetup       = "llm_setup"
	StateBankAnalysis   = "bank_analysis"
	StateTaxAnalysis    = "tax_analysis"
	StateCreditAnalysis = "credit_analysis"
	StateComplete       = "complete"
	StateError          = "error"
)

// Request is the /underwrite body.
type Request struct {
	FilePaths   []string          `json:"file_paths"`
	MergedFiles map[string]string `json:"merged_files"`
	Provider    string            `json:"provider"`
	Debug       bool              `json:"debug"`
}

// Models resolves and validates providers; *llm.Registry satisfies it.
type Models interface {
	ModelResolver
	Validate(provider string) error
}

// Orchestrator drives one underwriting run through its states.
type Orchestrator struct {
	Models          Models
	Uploads         uploads.Dir
	DefaultProvider string
	Policy          ContinuityPolicy
	StageTimeout    time.Duration
	CreditTimeout   time.Duration
	Runs            RunRepo
	Archive         *archive.Archiver
	Now             func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// Run executes req and returns the finished context. Client mistakes surface
// as ErrNoFilePaths, *llm.UnknownProviderError, ErrInvalidInput or
// uploads.ErrOutsideDir. A non-contiguous abort is not an error; it returns a
// context carrying Error and Details.
func (o *Orchestrator) Run(ctx context.Context, requestID string, req Request, sink status.Sink) (*AnalysisContext, error) {
	if sink == nil {
		sink = status.NopSink{}
	}
	ctx = llm.WithRequestID(ctx, requestID)
	started := o.now()

	sink.Emit(StateStart, status.Processing, "Received underwrite request")
	if len(req.FilePaths) == 0 {
		return nil, o.reject(ctx, sink, StateStart, ErrNoFilePaths)
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = o.DefaultProvider
	}
	sink.Emit(StateLLMSetup, status.Processing, fmt.Sprintf("Initializing %s model", provider))
	if err := o.Models.Validate(provider); err != nil {
		return nil, o.reject(ctx, sink, StateLLMSetup, err)
	}
	bankPath, taxPath, err := o.mergedPaths(req.MergedFiles)
	if err != nil {
		return nil, o.reject(ctx, sink, StateLLMSetup, err)
	}
	client, err := o.Models.Resolve(ctx, llm.Selection{Provider: provider, Tier: llm.TierDefault})
	if err != nil {
		return nil, o.reject(ctx, sink, StateLLMSetup, err)
	}
	sink.Emit(StateLLMSetup, status.Complete, "Model initialized successfully")

	ac := &AnalysisContext{
		RequestID: requestID,
		Provider:  provider,
		DocumentTypes: DocumentTypes{
			BankStatements: bankPath != "",
			TaxReturns:     taxPath != "",
		},
	}
	metrics.IncUnderwriteStarted()
	recorded := o.startRun(ctx, ac, started)
	telemetry.Info("underwrite.start", map[string]any{
		"request_id":        requestID,
		"provider":          provider,
		"bank":              ac.DocumentTypes.BankStatements,
		"tax":               ac.DocumentTypes.TaxReturns,
		"file_count":        len(req.FilePaths),
		"debug":             req.Debug,
		"continuity_policy": string(o.policy()),
	})

	if bankPath != "" {
		sink.Emit(StateBankAnalysis, status.Processing, "Analyzing bank statements")
		session := llm.NewSession(client, extractionSystem).WithDocument(bankPath)
		runner := newBranchRunner(session, o.StageTimeout, sink, req.Debug)
		if err := runBank(ctx, runner, o.policy(), ac); errors.Is(err, ErrNotContiguous) {
			sink.Emit(StateBankAnalysis, status.Error, ErrNotContiguous.Error())
			sink.Emit(StateError, status.Error, ErrNotContiguous.Error())
			o.finish(ctx, ac, RunAborted, ac.Error, started, recorded)
			return ac, nil
		}
		sink.Emit(StateBankAnalysis, status.Complete, branchSummary("Bank statement analysis complete", runner.steps))
	}
	if err := ctx.Err(); err != nil {
		return nil, o.fail(ctx, sink, ac, err, started, recorded)
	}

	if taxPath != "" {
		sink.Emit(StateTaxAnalysis, status.Processing, "Analyzing tax returns")
		session := llm.NewSession(client, extractionSystem).WithDocument(taxPath)
		runner := newBranchRunner(session, o.StageTimeout, sink, req.Debug)
		runTax(ctx, runner, ac)
		sink.Emit(StateTaxAnalysis, status.Complete, "Tax return analysis "+ac.Analysis.TaxReturns.Status)
	}
	if err := ctx.Err(); err != nil {
		return nil, o.fail(ctx, sink, ac, err, started, recorded)
	}

	sink.Emit(StateCreditAnalysis, status.Processing, "Performing credit analysis")
	ac.LoanRecommendations = CreditStage{Models: o.Models, Timeout: o.CreditTimeout}.Run(ctx, provider, ac)
	sink.Emit(StateCreditAnalysis, status.Complete, decisionSummary(ac.LoanRecommendations))

	sink.Emit(StateComplete, status.Success, "All analyses complete")
	o.finish(ctx, ac, RunCompleted, "", started, recorded)
	return ac, nil
}

func (o *Orchestrator) policy() ContinuityPolicy {
	if o.Policy == PolicyAbort {
		return PolicyAbort
	}
	return PolicyContinue
}

// mergedPaths checks that every merged artifact lives inside the upload directory.
func (o *Orchestrator) mergedPaths(merged map[string]string) (bank, tax string, err error) {
	for key, p := range merged {
		if strings.TrimSpace(p) == "" {
			return "", "", fmt.Errorf("%w: merged_files.%s is empty", ErrInvalidInput, key)
		}
		resolved, err := o.Uploads.Resolve(p)
		if err != nil {
			return "", "", err
		}
		switch documents.KeyFor(documents.DocumentType(key)) {
		case documents.KeyBankStatements:
			bank = resolved
		case documents.KeyTaxReturns:
			tax = resolved
		}
	}
	return bank, tax, nil
}

// reject closes the open state with an Error event, then emits the terminal one.
func (o *Orchestrator) reject(ctx context.Context, sink status.Sink, state string, err error) error {
	telemetry.Warn("underwrite.rejected", map[string]any{
		"request_id": llm.RequestIDFromContext(ctx),
		"code":       classifyFailure(err),
		"error":      util.SanitizeError(err),
	})
	sink.Emit(state, status.Error, util.SanitizeError(err))
	sink.Emit(StateError, status.Error, util.SanitizeError(err))
	return err
}

func (o *Orchestrator) fail(ctx context.Context, sink status.Sink, ac *AnalysisContext, err error, started time.Time, recorded bool) error {
	sink.Emit(StateError, status.Error, "Unexpected error: "+util.SanitizeError(err))
	o.finish(context.WithoutCancel(ctx), ac, RunFailed, util.SanitizeError(err), started, recorded)
	return err
}

// startRun reports whether this run owns its request ID's history record and
// archive keys. A reused request ID or a store failure leaves the existing
// record untouched.
func (o *Orchestrator) startRun(ctx context.Context, ac *AnalysisContext, started time.Time) bool {
	if o.Runs == nil {
		return true
	}
	var types []string
	if ac.DocumentTypes.BankStatements {
		types = append(types, documents.KeyBankStatements)
	}
	if ac.DocumentTypes.TaxReturns {
		types = append(types, documents.KeyTaxReturns)
	}
	err := o.Runs.Start(ctx, Run{
		RequestID:     ac.RequestID,
		Provider:      ac.Provider,
		Status:        RunRunning,
		DocumentTypes: types,
		StartedAt:     started,
	})
	if errors.Is(err, ErrRunExists) {
		telemetry.Warn("underwrite.run_duplicate", map[string]any{"request_id": ac.RequestID})
		return false
	}
	if err != nil {
		telemetry.Error("underwrite.run_store_failed", map[string]any{
			"request_id": ac.RequestID,
			"op":         "start",
			"error":      err.Error(),
		})
		return false
	}
	return true
}

// finish records metrics, run history and archive copies. None of it can
// change the response.
func (o *Orchestrator) finish(ctx context.Context, ac *AnalysisContext, runStatus RunStatus, errMsg string, started time.Time, recorded bool) {
	elapsed := metrics.SinceMillis(started)
	metrics.ObserveUnderwriteDurationMs(elapsed)
	if runStatus == RunFailed {
		metrics.IncUnderwriteFailed()
	} else {
		metrics.IncUnderwriteCompleted()
	}

	result, err := json.Marshal(ac)
	if err != nil {
		telemetry.Error("underwrite.marshal_failed", map[string]any{"request_id": ac.RequestID, "error": err.Error()})
	}
	sha := ""
	if len(result) > 0 {
		sha = util.SHA256Hex(result)
	}
	decisions := make([]string, 0, len(ac.LoanRecommendations))
	for _, r := range ac.LoanRecommendations {
		decisions = append(decisions, string(r.ApprovalDecision))
	}

	telemetry.Info("underwrite.complete", map[string]any{
		"request_id":  ac.RequestID,
		"status":      string(runStatus),
		"decisions":   decisions,
		"duration_ms": elapsed,
	})

	if recorded && o.Runs != nil {
		err := o.Runs.Finish(ctx, ac.RequestID, RunOutcome{
			Status:       runStatus,
			Decisions:    decisions,
			Result:       result,
			ResultSHA256: sha,
			Error:        errMsg,
			CompletedAt:  o.now(),
		})
		if err != nil {
			telemetry.Error("underwrite.run_store_failed", map[string]any{
				"request_id": ac.RequestID,
				"op":         "finish",
				"error":      err.Error(),
			})
		}
	}

	if recorded && o.Archive.Enabled() && len(result) > 0 {
		_ = o.Archive.PutBytes(ctx, archive.RunKey(ac.RequestID, "result.json"), archive.ContentTypeJSON, result)
		if report, err := BuildReport(ac); err == nil {
			_ = o.Archive.PutBytes(ctx, archive.RunKey(ac.RequestID, "report.xlsx"), archive.ContentTypeXLSX, report)
		} else {
			telemetry.Warn("underwrite.report_failed", map[string]any{"request_id": ac.RequestID, "error": err.Error()})
		}
	}
}

func branchSummary(prefix string, steps map[string]StepOutcome) string {
	var failed, skipped int
	for _, s := range steps {
		switch s.Status {
		case StepFailed:
			failed++
		case StepSkipped:
			skipped++
		}
	}
	if failed == 0 && skipped == 0 {
		return prefix
	}
	return fmt.Sprintf("%s (%d failed, %d skipped)", prefix, failed, skipped)
}

func decisionSummary(recs []LoanRecommendation) string {
	parts := make([]string, 0, len(recs))
	for _, r := range recs {
		parts = append(parts, r.ProductType+"="+string(r.ApprovalDecision))
	}
	return "Credit analysis complete: " + strings.Join(parts, ", ")
}
