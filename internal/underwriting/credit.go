package underwriting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/shared/metrics"
	"underwriting-backend/internal/shared/telemetry"
	"underwriting-backend/internal/shared/util"
)

const defaultCreditTimeout = 300 * time.Second

// Decision is the normalized approval outcome of a recommendation.
type Decision string

const (
	DecisionApproved     Decision = "APPROVED"
	DecisionDeclined     Decision = "DECLINED"
	DecisionError        Decision = "ERROR"
	DecisionPending      Decision = "PENDING"
	DecisionManualReview Decision = "MANUAL_REVIEW"
)

// UnmarshalJSON accepts a boolean or any of the usual decision words.
func (d *Decision) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*d = DecisionApproved
		} else {
			*d = DecisionDeclined
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("approval_decision: %w", err)
	}
	*d = NormalizeDecision(s)
	return nil
}

// NormalizeDecision maps free-form decision text onto a Decision.
func NormalizeDecision(s string) Decision {
	switch strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " ")) {
	case "approved", "approve", "yes", "true":
		return DecisionApproved
	case "declined", "decline", "denied", "deny", "rejected", "reject", "no", "false":
		return DecisionDeclined
	case "error":
		return DecisionError
	case "pending":
		return DecisionPending
	default:
		return DecisionManualReview
	}
}

type KeyMetrics struct {
	PaymentCoverageRatio     float64 `json:"payment_coverage_ratio"`
	AverageDailyBalanceTrend string  `json:"average_daily_balance_trend"`
	LowestMonthlyBalance     float64 `json:"lowest_monthly_balance"`
	HighestNSFMonthCount     int     `json:"highest_nsf_month_count"`
}

func defaultKeyMetrics() KeyMetrics {
	return KeyMetrics{AverageDailyBalanceTrend: "N/A"}
}

type ProductDetails struct {
	TermMonths         int    `json:"term_months,omitempty"`
	PaymentFrequency   string `json:"payment_frequency,omitempty"`
	AnnualInterestRate int    `json:"annual_interest_rate,omitempty"`
	MaxTermDays        int    `json:"max_term_days,omitempty"`
	PaymentType        string `json:"payment_type,omitempty"`
	FeeStructure       string `json:"fee_structure,omitempty"`
}

type AnalysisBasedOn struct {
	UsedBankStatements bool `json:"used_bank_statements"`
	UsedTaxReturns     bool `json:"used_tax_returns"`
}

// LoanRecommendation is one product decision.
type LoanRecommendation struct {
	ProductType             string          `json:"product_type"`
	ProductName             string          `json:"product_name"`
	ProductDetails          ProductDetails  `json:"product_details"`
	ApprovalDecision        Decision        `json:"approval_decision"`
	ConfidenceScore         float64         `json:"confidence_score"`
	MaxLoanAmount           float64         `json:"max_loan_amount"`
	MaxMonthlyPaymentAmount float64         `json:"max_monthly_payment_amount"`
	DetailedAnalysis        string          `json:"detailed_analysis"`
	MitigatingFactors       []string        `json:"mitigating_factors"`
	RiskFactors             []string        `json:"risk_factors"`
	ConditionsIfApproved    []string        `json:"conditions_if_approved"`
	KeyMetrics              KeyMetrics      `json:"key_metrics"`
	AnalysisBasedOn         AnalysisBasedOn `json:"analysis_based_on"`
}

// Product is a financing product the credit stage evaluates.
type Product struct {
	Type    string
	Name    string
	Details ProductDetails
	Prompt  string
}

// Products are evaluated in this order.
var Products = []Product{
	{
		Type:    "term_loan",
		Name:    "Term Loan",
		Details: ProductDetails{TermMonths: 12, PaymentFrequency: "monthly", AnnualInterestRate: 19},
		Prompt:  termLoanPrompt,
	},
	{
		Type:    "accounts_payable",
		Name:    "Accounts Payable Financing",
		Details: ProductDetails{MaxTermDays: 90, PaymentType: "bullet", FeeStructure: "transaction_fee"},
		Prompt:  accountsPayablePrompt,
	},
}

func (p Product) fallback(decision Decision, analysis string, risks ...string) LoanRecommendation {
	return LoanRecommendation{
		ProductType:          p.Type,
		ProductName:          p.Name,
		ProductDetails:       p.Details,
		ApprovalDecision:     decision,
		DetailedAnalysis:     analysis,
		MitigatingFactors:    []string{},
		RiskFactors:          risks,
		ConditionsIfApproved: []string{},
		KeyMetrics:           defaultKeyMetrics(),
	}
}

func (p Product) pending() LoanRecommendation {
	return p.fallback(DecisionPending, "Unable to generate analysis at this time. Please try again.", "Analysis temporarily unavailable")
}

func (p Product) parseError() LoanRecommendation {
	return p.fallback(DecisionError, "Failed to parse analysis results", "Analysis parsing error")
}

func (p Product) callError(err error) LoanRecommendation {
	return p.fallback(DecisionError, "An error occurred during analysis: "+util.SanitizeError(err), "Analysis error occurred")
}

type modelRecommendation struct {
	ApprovalDecision        *Decision   `json:"approval_decision"`
	ConfidenceScore         float64     `json:"confidence_score"`
	MaxLoanAmount           float64     `json:"max_loan_amount"`
	MaxMonthlyPaymentAmount float64     `json:"max_monthly_payment_amount"`
	DetailedAnalysis        string      `json:"detailed_analysis"`
	MitigatingFactors       []string    `json:"mitigating_factors"`
	RiskFactors             []string    `json:"risk_factors"`
	ConditionsIfApproved    []string    `json:"conditions_if_approved"`
	KeyMetrics              *KeyMetrics `json:"key_metrics"`
}

// parse reads a reply carrying loan_recommendation, credit_analysis.loan_recommendation,
// or the bare recommendation. A reply without an approval_decision is rejected.
func (p Product) parse(reply string) (LoanRecommendation, error) {
	var envelope struct {
		LoanRecommendation json.RawMessage `json:"loan_recommendation"`
		CreditAnalysis     struct {
			LoanRecommendation json.RawMessage `json:"loan_recommendation"`
		} `json:"credit_analysis"`
	}
	if err := creditSchema.Decode(reply, &envelope); err != nil {
		return LoanRecommendation{}, err
	}
	body := envelope.LoanRecommendation
	if isAbsent(body) {
		body = envelope.CreditAnalysis.LoanRecommendation
	}
	if isAbsent(body) {
		body = []byte(llm.StripFences(reply))
	}
	var m modelRecommendation
	if err := json.Unmarshal(body, &m); err != nil {
		return LoanRecommendation{}, fmt.Errorf("%w: %v", llm.ErrInvalidJSON, err)
	}
	if m.ApprovalDecision == nil || *m.ApprovalDecision == "" {
		return LoanRecommendation{}, fmt.Errorf("%w: approval_decision missing", llm.ErrSchemaMismatch)
	}

	rec := p.fallback(*m.ApprovalDecision, m.DetailedAnalysis)
	rec.ConfidenceScore = m.ConfidenceScore
	rec.MaxLoanAmount = m.MaxLoanAmount
	rec.MaxMonthlyPaymentAmount = m.MaxMonthlyPaymentAmount
	rec.MitigatingFactors = nonNil(m.MitigatingFactors)
	rec.RiskFactors = nonNil(m.RiskFactors)
	rec.ConditionsIfApproved = nonNil(m.ConditionsIfApproved)
	if m.KeyMetrics != nil {
		rec.KeyMetrics = *m.KeyMetrics
	}
	return rec, nil
}

// CreditSummary is the compact digest sent ahead of the full context.
type CreditSummary struct {
	DocumentTypes        DocumentTypes `json:"document_types"`
	AverageDailyBalance  *float64      `json:"average_daily_balance"`
	LowestClosingBalance *float64      `json:"lowest_closing_balance"`
	NSFCount             *int          `json:"nsf_count"`
	AverageRevenue       *float64      `json:"average_revenue"`
	AverageExpenses      *float64      `json:"average_expenses"`
	AverageCashflow      *float64      `json:"average_cashflow"`
}

// Summarize digests the metrics present in ac; missing metrics stay null.
func Summarize(ac *AnalysisContext) CreditSummary {
	s := CreditSummary{DocumentTypes: ac.DocumentTypes}
	m := ac.Metrics
	if m.DailyBalances != nil && len(m.DailyBalances.DailyBalances) > 0 {
		var sum float64
		for _, b := range m.DailyBalances.DailyBalances {
			sum += b.Balance
		}
		avg := round2(sum / float64(len(m.DailyBalances.DailyBalances)))
		s.AverageDailyBalance = &avg
	}
	if m.ClosingBalances != nil && len(m.ClosingBalances.MonthlyClosingBalances) > 0 {
		low := m.ClosingBalances.MonthlyClosingBalances[0].Balance
		for _, b := range m.ClosingBalances.MonthlyClosingBalances[1:] {
			if b.Balance < low {
				low = b.Balance
			}
		}
		s.LowestClosingBalance = &low
	}
	if m.NSFInformation != nil {
		n := m.NSFInformation.IncidentCount
		s.NSFCount = &n
	}
	if m.MonthlyFinancials != nil {
		st := m.MonthlyFinancials.Statistics
		rev, exp, cf := st.Revenue.Average, st.Expenses.Average, st.Cashflow.Average
		s.AverageRevenue, s.AverageExpenses, s.AverageCashflow = &rev, &exp, &cf
	}
	return s
}

// ModelResolver builds clients for a selection; *llm.Registry satisfies it.
type ModelResolver interface {
	Resolve(ctx context.Context, sel llm.Selection) (llm.Client, error)
}

// CreditStage produces one recommendation per product from a fresh
// reasoning-tier session.
type CreditStage struct {
	Models  ModelResolver
	Timeout time.Duration
}

// Run always returns exactly len(Products) records and never fails.
func (s CreditStage) Run(ctx context.Context, provider string, ac *AnalysisContext) (recs []LoanRecommendation) {
	basedOn := AnalysisBasedOn{
		UsedBankStatements: ac.DocumentTypes.BankStatements,
		UsedTaxReturns:     ac.DocumentTypes.TaxReturns,
	}
	defer func() {
		if r := recover(); r != nil {
			recs = allFallback(fmt.Errorf("credit analysis panic: %v", r), basedOn)
		}
		for _, rec := range recs {
			metrics.IncCreditDecision(string(rec.ApprovalDecision))
		}
	}()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultCreditTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := s.Models.Resolve(ctx, llm.Selection{Provider: provider, Tier: llm.TierReasoning})
	if err != nil {
		return allFallback(err, basedOn)
	}
	session, err := llm.NewSession(client, creditSystem).WithJSON("summary", Summarize(ac))
	if err == nil {
		session, err = session.WithJSON("analysis_context", ac)
	}
	if err != nil {
		return allFallback(err, basedOn)
	}

	recs = make([]LoanRecommendation, 0, len(Products))
	for _, p := range Products {
		rec := s.evaluate(ctx, session, p)
		rec.AnalysisBasedOn = basedOn
		recs = append(recs, rec)
	}
	return recs
}

func (s CreditStage) evaluate(ctx context.Context, session llm.Session, p Product) LoanRecommendation {
	reply, err := session.Ask(ctx, p.Prompt)
	if err != nil {
		telemetry.Warn("underwrite.credit.call_failed", map[string]any{
			"request_id": llm.RequestIDFromContext(ctx),
			"product":    p.Type,
			"code":       classifyFailure(err),
			"error":      util.SanitizeError(err),
		})
		return p.callError(err)
	}
	if strings.TrimSpace(reply) == "" {
		telemetry.Warn("underwrite.credit.empty", map[string]any{
			"request_id": llm.RequestIDFromContext(ctx),
			"product":    p.Type,
		})
		return p.pending()
	}
	rec, err := p.parse(reply)
	if err != nil {
		telemetry.Warn("underwrite.credit.parse_failed", map[string]any{
			"request_id": llm.RequestIDFromContext(ctx),
			"product":    p.Type,
			"error":      util.SanitizeError(err),
		})
		return p.parseError()
	}
	return rec
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func allFallback(err error, basedOn AnalysisBasedOn) []LoanRecommendation {
	out := make([]LoanRecommendation, 0, len(Products))
	for _, p := range Products {
		rec := p.callError(err)
		rec.AnalysisBasedOn = basedOn
		out = append(out, rec)
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func round2(v float64) float64 {
	if v < 0 {
		return -float64(int64(-v*100+0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}

func jsonString(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
