package documents

const classifierSystem = "You are a document classification expert for commercial lending. Respond with JSON only."

const classifyPrompt = `Classify the attached document as a bank statement or a tax return.

Bank statement indicators: account and routing numbers, dated transaction listings, opening and
closing balances, deposits, withdrawals, transfers, ACH and card activity, bank fees, a statement
period.

Tax return indicators: IRS form numbers (1040, 1120, 1120-S, 1065), tax year references, SSN or
EIN, numbered income and deduction lines, schedules, filing status, preparer and signature blocks.

Check definitive indicators first (IRS form numbers, bank account numbers), then look for several
supporting indicators. More matching indicators means higher confidence.

Respond with exactly this JSON object:
{
  "document_type": "bank_statement" or "tax_return",
  "confidence_score": number between 0 and 1,
  "indicators_found": ["specific indicators seen in the document"],
  "explanation": "one or two sentences"
}`
