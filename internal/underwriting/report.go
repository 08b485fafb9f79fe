package underwriting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// BuildReport renders an AnalysisContext as an XLSX workbook with one sheet
// per populated section.
func BuildReport(ac *AnalysisContext) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	rows := [][]any{
		{"Request ID", ac.RequestID},
		{"Provider", ac.Provider},
		{"Bank statements", ac.DocumentTypes.BankStatements},
		{"Tax returns", ac.DocumentTypes.TaxReturns},
	}
	if ac.Error != "" {
		rows = append(rows, []any{"Error", ac.Error})
	}
	if err := writeRows(f, summary, []string{"Field", "Value"}, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(summary, "A", "A", 20)
	_ = f.SetColWidth(summary, "B", "B", 40)

	if len(ac.LoanRecommendations) > 0 {
		var recRows [][]any
		for _, r := range ac.LoanRecommendations {
			recRows = append(recRows, []any{
				r.ProductName,
				string(r.ApprovalDecision),
				r.ConfidenceScore,
				r.MaxLoanAmount,
				r.MaxMonthlyPaymentAmount,
				r.KeyMetrics.PaymentCoverageRatio,
				strings.Join(r.RiskFactors, "; "),
				r.DetailedAnalysis,
			})
		}
		if err := addSheet(f, "Recommendations", []string{
			"Product", "Decision", "Confidence", "Max Loan", "Max Payment", "Coverage Ratio", "Risk Factors", "Analysis",
		}, recRows); err != nil {
			return nil, err
		}
		_ = f.SetColWidth("Recommendations", "G", "H", 60)
	}

	m := ac.Metrics
	if m.DailyBalances != nil {
		var out [][]any
		for _, b := range m.DailyBalances.DailyBalances {
			out = append(out, []any{b.Date, b.Balance, b.IsBusinessDay, b.BalanceType})
		}
		if err := addSheet(f, "Daily Balances", []string{"Date", "Balance", "Business Day", "Type"}, out); err != nil {
			return nil, err
		}
	}
	if m.ClosingBalances != nil {
		var out [][]any
		for _, b := range m.ClosingBalances.MonthlyClosingBalances {
			out = append(out, []any{b.Month, b.ClosingDate, b.Balance, b.BalanceType, b.Source})
		}
		if err := addSheet(f, "Closing Balances", []string{"Month", "Closing Date", "Balance", "Type", "Source"}, out); err != nil {
			return nil, err
		}
	}
	if m.MonthlyFinancials != nil {
		months := make([]string, 0, len(m.MonthlyFinancials.MonthlyData))
		for month := range m.MonthlyFinancials.MonthlyData {
			months = append(months, month)
		}
		sort.Strings(months)
		var out [][]any
		for _, month := range months {
			v := m.MonthlyFinancials.MonthlyData[month]
			out = append(out, []any{month, v.Revenue, v.Expenses, v.Cashflow})
		}
		if err := addSheet(f, "Monthly Financials", []string{"Month", "Revenue", "Expenses", "Cashflow"}, out); err != nil {
			return nil, err
		}
	}
	if m.NSFInformation != nil {
		var out [][]any
		for _, n := range m.NSFInformation.NSFIncidents {
			out = append(out, []any{n.Date, n.Amount})
		}
		if err := addSheet(f, "NSF", []string{"Date", "Amount"}, out); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func addSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	return writeRows(f, sheet, headers, rows)
}

func writeRows(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
