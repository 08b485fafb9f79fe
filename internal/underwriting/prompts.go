package underwriting

import "fmt"

const extractionSystem = `You are a financial document analyst for a commercial lender.
Read the attached documents carefully and answer with a single JSON object only.
All amounts are plain JSON numbers without commas or currency symbols, rounded to 2 decimals.
All dates use YYYY-MM-DD.`

const creditSystem = `You are a conservative commercial loan underwriter.
You receive a summary of extracted metrics followed by the full analysis record.
Answer with a single JSON object only. Numbers are plain JSON numbers without commas.`

const continuityPrompt = `Identify every statement period covered by the attached bank statements.
Check every page; look for "Statement Period", "Statement Dates", monthly headers and date ranges.
Sort the periods by start date and check for gaps between them. A month boundary such as
July 31 to August 1 is not a gap. If you are unsure about a period, include it and say so.

Respond with:
{
  "statement_periods": [{"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"}],
  "analysis": {
    "is_contiguous": true or false,
    "gap_details": ["Gap found between YYYY-MM-DD and YYYY-MM-DD"],
    "explanation": "why the statements are or are not contiguous"
  }
}`

func dailyBalancesPrompt(start, end string) string {
	return fmt.Sprintf(`Extract the daily balances from %s to %s.

Use balance_type "direct" only when the statement states the balance for that day
(beginning balance, ending balance, balance forward, daily balance summary).
Use "calculated" only to fill gaps between direct balances, derived from the transactions.
Prefer direct balances whenever possible.

Respond with:
{
  "daily_balances": [
    {"date": "YYYY-MM-DD", "balance": number, "is_business_day": true or false, "balance_type": "direct" or "calculated"}
  ]
}`, start, end)
}

const nsfPrompt = `List every NSF (non-sufficient funds) fee across the whole date range of the attached
bank statements. Check every month. Overdraft fees that are not NSF fees do not count.

Respond with:
{
  "nsf_incidents": [{"date": "YYYY-MM-DD", "amount": number}],
  "total_fees": number,
  "incident_count": integer
}`

const closingBalancesPrompt = `Report the closing balance of the last day of every month in the attached bank statements.

Use balance_type "direct" when an ending or closing balance is stated for that month. Otherwise
start from the previous month's ending balance, apply every credit and debit in transaction-date
order, and mark the result "calculated". Cross-check each month against the next month's opening
balance and note any discrepancy.

Respond with:
{
  "monthly_closing_balances": [
    {"month": "YYYY-MM", "closing_date": "YYYY-MM-DD", "balance": number,
     "balance_type": "direct" or "calculated", "source": "where the figure came from",
     "verification": "how it was checked"}
  ],
  "analysis": {
    "months_covered": integer,
    "direct_balances": integer,
    "calculated_balances": integer,
    "verification_notes": ["discrepancies or notes"]
  }
}
Sort entries by month.`

const monthlyFinancialsPrompt = `Break down revenue and expenses for every month in the attached bank statements.
Cashflow is revenue minus expenses. Then compute the average and standard deviation of each series.

Respond with:
{
  "monthly_data": {"YYYY-MM": {"expenses": number, "revenue": number, "cashflow": number}},
  "statistics": {
    "revenue": {"average": number, "std_deviation": number},
    "expenses": {"average": number, "std_deviation": number},
    "cashflow": {"average": number, "std_deviation": number}
  }
}`

const taxOverviewPrompt = `Summarize the attached business tax returns.
Report every tax year present, the filing type (for example 1120, 1120-S, 1065, Schedule C),
gross receipts, total income, net income and total deductions for the most recent year, plus
short notes on anything unusual.

Respond with:
{
  "tax_years": [YYYY],
  "filing_type": "form or entity type",
  "gross_receipts": number,
  "total_income": number,
  "net_income": number,
  "total_deductions": number,
  "notes": ["observations"]
}`

const recommendationFormat = `Respond with:
{
  "loan_recommendation": {
    "approval_decision": true or false,
    "confidence_score": number between 0 and 1,
    "max_monthly_payment_amount": number,
    "max_loan_amount": number,
    "key_metrics": {
      "payment_coverage_ratio": number,
      "average_daily_balance_trend": "increasing" or "stable" or "decreasing",
      "lowest_monthly_balance": number,
      "highest_nsf_month_count": integer
    },
    "risk_factors": ["risks found"],
    "mitigating_factors": ["positive factors found"],
    "detailed_analysis": "short analysis; state whether source data was provided to you",
    "conditions_if_approved": ["conditions"]
  }
}`

const termLoanPrompt = `Decide whether the business qualifies for a term loan.

Loan parameters: 12 month term, monthly payments, 19% annual interest, standard amortization.

Evaluate cash flow adequacy for the monthly payment, liquidity reserves in current and historical
balances, daily balance trends and seasonality, NSF and overdraft history, statement continuity,
and revenue against expenses including their variability.

Require net cash flow of at least 1.2 times the monthly payment. When net cash flow falls short
but balances are consistently high, up to 20 percent of the month-end balance may count toward
coverage. Derive the largest monthly payment that meets coverage, then back-calculate the maximum
principal at 19% over 12 months. Decline or shrink the loan when coverage cannot be met.

` + recommendationFormat

const accountsPayablePrompt = `Decide whether the business qualifies for accounts payable financing.

Program: the business receives a limit and finances invoices against it. Each draw is repaid in a
single bullet payment of principal plus a one-time transaction fee within 30, 60 or 90 days.
There is no recurring interest.

Evaluate whether cash flow and reserves can cover lump-sum repayments, daily balance trends and
short-term dips that could coincide with maturity dates, NSF and overdraft history, statement
continuity, and revenue against expenses.

Require (net cash flow over the financing period plus a prudent share of balances, for example 20
percent) to be at least 1.2 times principal plus fees. Propose a limit and maximum draw that meet
this, or recommend a lower limit or denial. Report the largest bullet repayment as
max_monthly_payment_amount and the proposed limit as max_loan_amount.

` + recommendationFormat
