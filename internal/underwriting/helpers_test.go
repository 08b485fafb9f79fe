package underwriting

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/llm/llmtest"
	"underwriting-backend/internal/status"
	"underwriting-backend/internal/uploads"
)

// Prompt fragments used to route scripted replies.
const (
	keyClassify   = "Classify the attached document"
	keyContinuity = "Identify every statement period"
	keyDaily      = "Extract the daily balances"
	keyNSF        = "List every NSF"
	keyClosing    = "Report the closing balance"
	keyMonthly    = "Break down revenue and expenses"
	keyTax        = "Summarize the attached business tax returns"
	keyTermLoan   = "qualifies for a term loan"
	keyAP         = "qualifies for accounts payable financing"
)

const (
	continuityOK = `{"statement_periods":[
		{"start_date":"2024-03-01","end_date":"2024-03-31"},
		{"start_date":"2024-01-01","end_date":"2024-01-31"},
		{"start_date":"2024-02-01","end_date":"2024-02-29"}],
		"analysis":{"is_contiguous":true,"gap_details":[],"explanation":"Statements are contiguous"}}`
	continuityGap = `{"statement_periods":[
		{"start_date":"2024-01-01","end_date":"2024-01-31"},
		{"start_date":"2024-03-01","end_date":"2024-03-31"}],
		"analysis":{"is_contiguous":false,"gap_details":["Gap found between 2024-01-31 and 2024-03-01"],"explanation":"February is missing"}}`
	dailyReply   = `{"daily_balances":[{"date":"2024-01-31","balance":1200.5,"is_business_day":true,"balance_type":"direct"}]}`
	nsfReply     = `{"nsf_incidents":[{"date":"2024-01-12","amount":35}],"total_fees":35,"incident_count":1}`
	closingReply = `{"monthly_closing_balances":[
		{"month":"2024-01","closing_date":"2024-01-31","balance":1200.5,"balance_type":"direct","source":"Ending Balance statement","verification":"Matches next month opening balance"},
		{"month":"2024-02","closing_date":"2024-02-29","balance":900,"balance_type":"calculated","source":"Calculated from transactions","verification":"Calculated from all transactions"}],
		"analysis":{"months_covered":2,"direct_balances":1,"calculated_balances":1,"verification_notes":[]}}`
	monthlyReply = `{"monthly_data":{"2024-01":{"expenses":8000,"revenue":10000,"cashflow":2000}},
		"statistics":{"revenue":{"average":10000,"std_deviation":0},"expenses":{"average":8000,"std_deviation":0},"cashflow":{"average":2000,"std_deviation":0}}}`
	taxReply      = `{"tax_years":[2023],"filing_type":"1120-S","gross_receipts":500000,"total_income":480000,"net_income":60000,"total_deductions":420000,"notes":[]}`
	termLoanReply = "```json\n" + `{"loan_recommendation":{"approval_decision":true,"confidence_score":0.82,"max_monthly_payment_amount":1500,"max_loan_amount":16500.25,
		"key_metrics":{"payment_coverage_ratio":1.4,"average_daily_balance_trend":"stable","lowest_monthly_balance":900,"highest_nsf_month_count":1},
		"risk_factors":["One NSF incident"],"mitigating_factors":["Stable balances"],"detailed_analysis":"Source data was provided.","conditions_if_approved":["Monthly statements"]}}` + "\n```"
	apReply = `{"approval_decision":"manual review","confidence_score":0.5,"max_monthly_payment_amount":5000,"max_loan_amount":5000,
		"risk_factors":[],"mitigating_factors":[],"detailed_analysis":"Borderline","conditions_if_approved":[]}`
)

func defaultReplies() map[string]string {
	return map[string]string{
		keyContinuity: continuityOK,
		keyDaily:      dailyReply,
		keyNSF:        nsfReply,
		keyClosing:    closingReply,
		keyMonthly:    monthlyReply,
		keyTax:        taxReply,
		keyTermLoan:   termLoanReply,
		keyAP:         apReply,
	}
}

// scripted answers by prompt fragment; overrides replace or add entries.
func scripted(overrides map[string]string) *llmtest.Client {
	replies := defaultReplies()
	for k, v := range overrides {
		replies[k] = v
	}
	return llmtest.New(llmtest.ByPrompt(replies, ""))
}

type recordedEvent struct {
	step  string
	state status.State
}

type eventLog struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (l *eventLog) Emit(step string, state status.State, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, recordedEvent{step, state})
}

func (l *eventLog) snapshot() []recordedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedEvent(nil), l.events...)
}

func newOrchestrator(t *testing.T, client llm.Client) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	return &Orchestrator{
		Models:          llmtest.Registry(client),
		Uploads:         uploads.Dir{Root: dir},
		DefaultProvider: "openai",
		Policy:          PolicyContinue,
		StageTimeout:    5 * time.Second,
		CreditTimeout:   5 * time.Second,
		Runs:            NewMemoryRunRepo(),
	}, dir
}

func bankRequest(dir string) Request {
	return Request{
		FilePaths:   []string{filepath.Join(dir, "a_bank.pdf")},
		MergedFiles: map[string]string{"bank_statements": filepath.Join(dir, "merged_bank_1.pdf")},
	}
}

func countPrompts(reqs []llm.Request, fragment string) int {
	n := 0
	for _, r := range reqs {
		if strings.Contains(r.Prompt, fragment) {
			n++
		}
	}
	return n
}

func containsAny(s string, fragments ...string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}
