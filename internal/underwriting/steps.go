package underwriting

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sort"

	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/shared/telemetry"
)

// Step names double as status event steps and outcome keys.
const (
	StepContinuity        = "continuity"
	StepDailyBalances     = "daily_balances"
	StepNSF               = "nsf"
	StepClosingBalances   = "closing_balances"
	StepMonthlyFinancials = "monthly_financials"
	StepTaxOverview       = "tax_overview"
)

// noInput is passed to steps that only read the session.
const noInput = "None"

const periodsPerChunk = 2

//go:embed schemas/*.json
var schemaFiles embed.FS

func mustSchema(name string) *llm.Schema {
	doc, err := schemaFiles.ReadFile("schemas/" + name + ".json")
	if err != nil {
		panic(err)
	}
	return llm.MustCompileSchema(name, doc)
}

var (
	continuitySchema        = mustSchema("continuity")
	dailyBalancesSchema     = mustSchema("daily_balances")
	nsfSchema               = mustSchema("nsf")
	closingBalancesSchema   = mustSchema("closing_balances")
	monthlyFinancialsSchema = mustSchema("monthly_financials")
	taxOverviewSchema       = mustSchema("tax_overview")
	creditSchema            = mustSchema("credit")
)

// asker sends one prompt against the branch session; label names the raw reply.
type asker func(ctx context.Context, label, prompt string) (string, error)

// stepFunc takes a JSON argument (or noInput) and returns a JSON reply.
type stepFunc func(ctx context.Context, ask asker, input string) (string, error)

func promptStep(name, prompt string) stepFunc {
	return func(ctx context.Context, ask asker, _ string) (string, error) {
		return ask(ctx, name, prompt)
	}
}

var (
	continuityStep        = promptStep(StepContinuity, continuityPrompt)
	nsfStep               = promptStep(StepNSF, nsfPrompt)
	closingBalancesStep   = promptStep(StepClosingBalances, closingBalancesPrompt)
	monthlyFinancialsStep = promptStep(StepMonthlyFinancials, monthlyFinancialsPrompt)
	taxOverviewStep       = promptStep(StepTaxOverview, taxOverviewPrompt)
)

type dailyBalancesInput struct {
	ContinuityData *Continuity `json:"continuity_data"`
}

// dailyBalancesStep asks for balances two statement periods at a time. A chunk
// that fails is logged and skipped; the merged list is sorted by date and
// keeps the first balance seen for each date.
func dailyBalancesStep(ctx context.Context, ask asker, input string) (string, error) {
	var in dailyBalancesInput
	if input != noInput {
		if err := json.Unmarshal([]byte(input), &in); err != nil {
			return "", fmt.Errorf("%w: daily balances input: %v", ErrInvalidInput, err)
		}
	}
	if in.ContinuityData == nil || len(in.ContinuityData.StatementPeriods) == 0 {
		telemetry.Warn("underwrite.daily_balances.no_periods", map[string]any{
			"request_id": llm.RequestIDFromContext(ctx),
		})
		return `{"daily_balances":[]}`, nil
	}

	periods := append([]StatementPeriod(nil), in.ContinuityData.StatementPeriods...)
	sort.SliceStable(periods, func(i, j int) bool { return periods[i].StartDate < periods[j].StartDate })

	var all []DailyBalance
	for i := 0; i < len(periods); i += periodsPerChunk {
		end := i + periodsPerChunk
		if end > len(periods) {
			end = len(periods)
		}
		chunkStart, chunkEnd := periods[i].StartDate, periods[end-1].EndDate
		label := fmt.Sprintf("%s[%s..%s]", StepDailyBalances, chunkStart, chunkEnd)

		reply, err := ask(ctx, label, dailyBalancesPrompt(chunkStart, chunkEnd))
		if err == nil {
			var chunk DailyBalances
			if err = dailyBalancesSchema.Decode(reply, &chunk); err == nil {
				all = append(all, chunk.DailyBalances...)
				continue
			}
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		telemetry.Warn("underwrite.daily_balances.chunk_failed", map[string]any{
			"request_id":  llm.RequestIDFromContext(ctx),
			"chunk_start": chunkStart,
			"chunk_end":   chunkEnd,
			"error":       err.Error(),
		})
	}

	out, err := json.Marshal(DailyBalances{DailyBalances: dedupeByDate(all)})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func dedupeByDate(in []DailyBalance) []DailyBalance {
	sort.SliceStable(in, func(i, j int) bool { return in[i].Date < in[j].Date })
	out := make([]DailyBalance, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, b := range in {
		if _, ok := seen[b.Date]; ok {
			continue
		}
		seen[b.Date] = struct{}{}
		out = append(out, b)
	}
	return out
}
