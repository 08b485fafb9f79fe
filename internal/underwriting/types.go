package underwriting

// DocumentTypes records which merged artifacts a run received.
type DocumentTypes struct {
	BankStatements bool `json:"bank_statements"`
	TaxReturns     bool `json:"tax_returns"`
}

type StatementPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type ContinuityAnalysis struct {
	IsContiguous bool     `json:"is_contiguous"`
	GapDetails   []string `json:"gap_details"`
	Explanation  string   `json:"explanation"`
}

// Continuity is the statement_continuity metric.
type Continuity struct {
	StatementPeriods []StatementPeriod  `json:"statement_periods"`
	Analysis         ContinuityAnalysis `json:"analysis"`
}

type DailyBalance struct {
	Date          string  `json:"date"`
	Balance       float64 `json:"balance"`
	IsBusinessDay bool    `json:"is_business_day"`
	BalanceType   string  `json:"balance_type"`
}

// DailyBalances is the daily_balances metric.
type DailyBalances struct {
	DailyBalances []DailyBalance `json:"daily_balances"`
}

type NSFIncident struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// NSFInformation is the nsf_information metric.
type NSFInformation struct {
	NSFIncidents  []NSFIncident `json:"nsf_incidents"`
	TotalFees     float64       `json:"total_fees"`
	IncidentCount int           `json:"incident_count"`
}

type MonthlyClosingBalance struct {
	Month        string  `json:"month"`
	ClosingDate  string  `json:"closing_date"`
	Balance      float64 `json:"balance"`
	BalanceType  string  `json:"balance_type"`
	Source       string  `json:"source"`
	Verification string  `json:"verification"`
}

type ClosingBalanceAnalysis struct {
	MonthsCovered      int      `json:"months_covered"`
	DirectBalances     int      `json:"direct_balances"`
	CalculatedBalances int      `json:"calculated_balances"`
	VerificationNotes  []string `json:"verification_notes"`
}

// ClosingBalances is the closing_balances metric.
type ClosingBalances struct {
	MonthlyClosingBalances []MonthlyClosingBalance `json:"monthly_closing_balances"`
	Analysis               ClosingBalanceAnalysis  `json:"analysis"`
}

type MonthFigures struct {
	Expenses float64 `json:"expenses"`
	Revenue  float64 `json:"revenue"`
	Cashflow float64 `json:"cashflow"`
}

type Stat struct {
	Average      float64 `json:"average"`
	StdDeviation float64 `json:"std_deviation"`
}

type FinancialStatistics struct {
	Revenue  Stat `json:"revenue"`
	Expenses Stat `json:"expenses"`
	Cashflow Stat `json:"cashflow"`
}

// MonthlyFinancials is the monthly_financials metric, keyed by YYYY-MM.
type MonthlyFinancials struct {
	MonthlyData map[string]MonthFigures `json:"monthly_data"`
	Statistics  FinancialStatistics     `json:"statistics"`
}

// TaxOverview is the single tax-return extraction.
type TaxOverview struct {
	TaxYears        []int    `json:"tax_years"`
	FilingType      string   `json:"filing_type"`
	GrossReceipts   float64  `json:"gross_receipts"`
	TotalIncome     float64  `json:"total_income"`
	NetIncome       float64  `json:"net_income"`
	TotalDeductions float64  `json:"total_deductions"`
	Notes           []string `json:"notes"`
}

// Metrics holds one slot per bank-statement step. A nil slot was never produced.
type Metrics struct {
	StatementContinuity *Continuity        `json:"statement_continuity,omitempty"`
	DailyBalances       *DailyBalances     `json:"daily_balances,omitempty"`
	NSFInformation      *NSFInformation    `json:"nsf_information,omitempty"`
	ClosingBalances     *ClosingBalances   `json:"closing_balances,omitempty"`
	MonthlyFinancials   *MonthlyFinancials `json:"monthly_financials,omitempty"`
}

type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepOutcome is recorded for every step a branch schedules.
type StepOutcome struct {
	Status StepStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
	Code   string     `json:"code,omitempty"`
}

// ContinuityGap explains a non-contiguous statement set.
type ContinuityGap struct {
	Explanation string   `json:"explanation"`
	GapDetails  []string `json:"gap_details"`
}

// BankAnalysis is the bank-statement branch record.
type BankAnalysis struct {
	Steps        map[string]StepOutcome `json:"steps"`
	Error        string                 `json:"error,omitempty"`
	Details      *ContinuityGap         `json:"details,omitempty"`
	RawResponses map[string]string      `json:"raw_responses,omitempty"`
}

// TaxAnalysis is the tax-return branch record.
type TaxAnalysis struct {
	Status       string                 `json:"status"`
	Message      string                 `json:"message,omitempty"`
	Overview     *TaxOverview           `json:"overview,omitempty"`
	Steps        map[string]StepOutcome `json:"steps"`
	RawResponses map[string]string      `json:"raw_responses,omitempty"`
}

type Analysis struct {
	BankStatements *BankAnalysis `json:"bank_statements,omitempty"`
	TaxReturns     *TaxAnalysis  `json:"tax_returns,omitempty"`
}

// AnalysisContext is the single result document of an underwriting run.
type AnalysisContext struct {
	RequestID           string               `json:"request_id"`
	Provider            string               `json:"provider"`
	DocumentTypes       DocumentTypes        `json:"document_types"`
	Metrics             Metrics              `json:"metrics"`
	Analysis            Analysis             `json:"analysis"`
	LoanRecommendations []LoanRecommendation `json:"loan_recommendations,omitempty"`
	Error               string               `json:"error,omitempty"`
	Details             *ContinuityGap       `json:"details,omitempty"`
}
