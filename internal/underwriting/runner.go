package underwriting

import (
	"context"
	"errors"
	"strings"
	"time"

	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/shared/metrics"
	"underwriting-backend/internal/shared/telemetry"
	"underwriting-backend/internal/shared/util"
	"underwriting-backend/internal/status"
)

// ContinuityPolicy decides what a non-contiguous statement set does to a run.
type ContinuityPolicy string

const (
	PolicyContinue ContinuityPolicy = "continue"
	PolicyAbort    ContinuityPolicy = "abort"
)

const defaultStageTimeout = 180 * time.Second

var bankDependents = []string{StepDailyBalances, StepNSF, StepClosingBalances, StepMonthlyFinancials}

// branchRunner runs the steps of one document branch against one session.
type branchRunner struct {
	session llm.Session
	timeout time.Duration
	sink    status.Sink
	steps   map[string]StepOutcome
	raw     map[string]string
}

func newBranchRunner(session llm.Session, timeout time.Duration, sink status.Sink, debug bool) *branchRunner {
	if timeout <= 0 {
		timeout = defaultStageTimeout
	}
	if sink == nil {
		sink = status.NopSink{}
	}
	r := &branchRunner{
		session: session,
		timeout: timeout,
		sink:    sink,
		steps:   map[string]StepOutcome{},
	}
	if debug {
		r.raw = map[string]string{}
	}
	return r
}

func (r *branchRunner) ask(ctx context.Context, label, prompt string) (string, error) {
	reply, err := r.session.Ask(ctx, prompt)
	if err != nil {
		return "", err
	}
	if r.raw != nil {
		r.raw[label] = reply
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyResponse
	}
	return reply, nil
}

// exec runs one step and decodes its reply into out. It emits the Processing
// event and, on failure, the Error event; the caller emits Complete.
func (r *branchRunner) exec(ctx context.Context, name, details string, fn stepFunc, input string, schema *llm.Schema, out any) error {
	r.sink.Emit(name, status.Processing, details)

	stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := fn(stepCtx, r.ask, input)
	if err == nil {
		err = schema.Decode(reply, out)
	}
	if err != nil {
		return r.fail(ctx, name, err)
	}
	r.steps[name] = StepOutcome{Status: StepCompleted}
	return nil
}

func (r *branchRunner) run(ctx context.Context, name, details, done string, fn stepFunc, input string, schema *llm.Schema, out any) error {
	if err := r.exec(ctx, name, details, fn, input, schema, out); err != nil {
		return err
	}
	r.sink.Emit(name, status.Complete, done)
	return nil
}

func (r *branchRunner) fail(ctx context.Context, name string, err error) error {
	stepErr := &StepError{Step: name, Code: classifyFailure(err), Err: err}
	msg := util.SanitizeError(err)
	r.steps[name] = StepOutcome{Status: StepFailed, Error: msg, Code: stepErr.Code}
	metrics.IncStepFailure(name)
	telemetry.Warn("underwrite.step_failed", map[string]any{
		"request_id": llm.RequestIDFromContext(ctx),
		"step":       name,
		"code":       stepErr.Code,
		"error":      msg,
	})
	r.sink.Emit(name, status.Error, msg)
	return stepErr
}

func (r *branchRunner) skip(names ...string) {
	for _, name := range names {
		r.steps[name] = StepOutcome{Status: StepSkipped}
	}
}

// runBank executes the bank-statement steps. It returns ErrNotContiguous only
// under PolicyAbort; every other step failure is recorded and absorbed.
func runBank(ctx context.Context, r *branchRunner, policy ContinuityPolicy, ac *AnalysisContext) error {
	bank := &BankAnalysis{Steps: r.steps, RawResponses: r.raw}
	ac.Analysis.BankStatements = bank

	var cont Continuity
	if err := r.exec(ctx, StepContinuity, "Checking statement continuity", continuityStep, noInput, continuitySchema, &cont); err != nil {
		bank.Error = "Statement continuity check failed: " + util.SanitizeError(errors.Unwrap(err))
		r.skip(bankDependents...)
		return nil
	}
	ac.Metrics.StatementContinuity = &cont

	if !cont.Analysis.IsContiguous {
		gap := &ContinuityGap{Explanation: cont.Analysis.Explanation, GapDetails: cont.Analysis.GapDetails}
		if gap.GapDetails == nil {
			gap.GapDetails = []string{}
		}
		bank.Error = ErrNotContiguous.Error()
		bank.Details = gap
		r.skip(bankDependents...)
		telemetry.Warn("underwrite.not_contiguous", map[string]any{
			"request_id":  llm.RequestIDFromContext(ctx),
			"explanation": gap.Explanation,
			"gaps":        len(gap.GapDetails),
			"policy":      string(policy),
		})
		r.sink.Emit(StepContinuity, status.Error, "Statements not contiguous: "+gap.Explanation)
		if policy == PolicyAbort {
			ac.Error = ErrNotContiguous.Error()
			ac.Details = gap
			return ErrNotContiguous
		}
		return nil
	}
	r.sink.Emit(StepContinuity, status.Complete, "Statements are contiguous")

	input, err := jsonString(dailyBalancesInput{ContinuityData: &cont})
	if err != nil {
		_ = r.fail(ctx, StepDailyBalances, err)
	} else {
		var daily DailyBalances
		if r.run(ctx, StepDailyBalances, "Analyzing daily balances", "Daily balance analysis complete",
			dailyBalancesStep, input, dailyBalancesSchema, &daily) == nil {
			ac.Metrics.DailyBalances = &daily
		}
	}

	var nsf NSFInformation
	if r.run(ctx, StepNSF, "Checking for NSF incidents", "NSF analysis complete",
		nsfStep, noInput, nsfSchema, &nsf) == nil {
		ac.Metrics.NSFInformation = &nsf
	}

	var closing ClosingBalances
	if r.run(ctx, StepClosingBalances, "Analyzing monthly closing balances", "Monthly closing balance analysis complete",
		closingBalancesStep, noInput, closingBalancesSchema, &closing) == nil {
		ac.Metrics.ClosingBalances = &closing
	}

	var monthly MonthlyFinancials
	if r.run(ctx, StepMonthlyFinancials, "Analyzing monthly financials", "Monthly financial analysis complete",
		monthlyFinancialsStep, noInput, monthlyFinancialsSchema, &monthly) == nil {
		ac.Metrics.MonthlyFinancials = &monthly
	}
	return nil
}

// runTax executes the tax-return steps. An unreachable model leaves the branch
// pending; a malformed reply marks it failed.
func runTax(ctx context.Context, r *branchRunner, ac *AnalysisContext) {
	tax := &TaxAnalysis{Steps: r.steps, RawResponses: r.raw}
	ac.Analysis.TaxReturns = tax

	var overview TaxOverview
	err := r.run(ctx, StepTaxOverview, "Extracting tax return overview", "Tax return overview complete",
		taxOverviewStep, noInput, taxOverviewSchema, &overview)
	if err == nil {
		tax.Status = "completed"
		tax.Overview = &overview
		return
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Code == codeSchemaMismatch {
		tax.Status = "failed"
		tax.Message = "Tax return analysis returned an unreadable result"
		return
	}
	tax.Status = "pending"
	tax.Message = "Tax return analysis unavailable: " + util.SanitizeError(errors.Unwrap(err))
}
