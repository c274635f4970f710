// Package statements derives financial statements from replay output: trial
// balance, income statement, balance sheet, and direct cash flow. Every
// builder is a pure function of the transaction log; payloads carry a
// content hash so two independent computations are comparable byte for byte.
package statements

import "github.com/meridian-books/meridian/internal/reports"

// Statement wraps a derived payload together with its integrity hash.
type Statement struct {
	Kind          string         `json:"kind"`
	CompanyID     string         `json:"companyId"`
	Period        reports.Period `json:"period"`
	Fingerprint   string         `json:"fingerprint"`
	IntegrityHash string         `json:"integrityHash"`
	Payload       any            `json:"payload"`
}

// Row is one account line in a trial balance. Amounts are canonical decimal
// strings; floats never enter a statement payload.
type Row struct {
	AccountID string `json:"accountId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Balance   string `json:"balance"`
}

// TrialBalance lists every account with activity plus control totals.
type TrialBalance struct {
	Rows        []Row  `json:"rows"`
	TotalDebit  string `json:"totalDebit"`
	TotalCredit string `json:"totalCredit"`
}

// SectionRow is one account line inside a statement section.
type SectionRow struct {
	AccountID string `json:"accountId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Amount    string `json:"amount"`
}

// Section groups accounts of one classification.
type Section struct {
	Label    string       `json:"label"`
	Accounts []SectionRow `json:"accounts"`
	Total    string       `json:"total"`
}

// IncomeStatement reports revenue and expenses over a period.
type IncomeStatement struct {
	Revenue   Section `json:"revenue"`
	Expenses  Section `json:"expenses"`
	NetIncome string  `json:"netIncome"`
}

// BalanceSheet reports assets, liabilities, and equity as of a date.
type BalanceSheet struct {
	Assets                    Section `json:"assets"`
	Liabilities               Section `json:"liabilities"`
	Equity                    Section `json:"equity"`
	TotalLiabilitiesAndEquity string  `json:"totalLiabilitiesAndEquity"`
}

// Cash flow categories for the direct method.
const (
	CashFlowOperatingReceipts = "OPERATING_RECEIPTS"
	CashFlowOperatingPayments = "OPERATING_PAYMENTS"
	CashFlowInvesting         = "INVESTING"
	CashFlowFinancing         = "FINANCING"
)

// CashFlowLine aggregates cash movement for one category.
type CashFlowLine struct {
	Category string `json:"category"`
	Inflow   string `json:"inflow"`
	Outflow  string `json:"outflow"`
}

// CashFlow is the direct-method cash flow statement.
type CashFlow struct {
	Lines     []CashFlowLine `json:"lines"`
	NetChange string         `json:"netChange"`
}
