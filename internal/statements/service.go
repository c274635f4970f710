package statements

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger"
	"github.com/meridian-books/meridian/internal/replay"
	"github.com/meridian-books/meridian/internal/reports"
)

// Builder derives statements from replay output. Builders never read stored
// balances: every statement is recomputed from the transaction log, then
// cached under a key that embeds the replay fingerprint.
type Builder struct {
	replayer *replay.Engine
	store    ledger.Store
	cache    *Cache
}

// NewBuilder constructs a statement Builder. cache may be nil.
func NewBuilder(replayer *replay.Engine, store ledger.Store, cache *Cache) *Builder {
	return &Builder{replayer: replayer, store: store, cache: cache}
}

// BuildTrialBalance lists every account with activity up to asOf, with
// debit/credit totals that must agree if the ledger is balanced.
func (b *Builder) BuildTrialBalance(ctx context.Context, companyID string, asOf time.Time) (*Statement, error) {
	res, accounts, err := b.snapshot(ctx, companyID, time.Time{}, asOf)
	if err != nil {
		return nil, err
	}
	params := fmt.Sprintf("asOf=%s", asOf.UTC().Format("2006-01-02"))
	return b.cache.fetch(ctx, b.cache.key(reports.KindTrialBalance, companyID, res.Fingerprint, params), func() (*Statement, error) {
		totalDebit := decimal.Zero
		totalCredit := decimal.Zero
		rows := make([]Row, 0, len(res.Balances))
		for accountID, agg := range res.Balances {
			acct := accounts[accountID]
			if acct.AccountID == "" {
				acct.AccountID = accountID
				acct.Code = accountID
				acct.Name = accountID
			}
			rows = append(rows, Row{
				AccountID: acct.AccountID,
				Code:      acct.Code,
				Name:      acct.Name,
				Type:      string(acct.Type),
				Debit:     agg.Debit.String(),
				Credit:    agg.Credit.String(),
				Balance:   naturalBalance(acct.Type, agg).String(),
			})
			totalDebit = totalDebit.Add(agg.Debit)
			totalCredit = totalCredit.Add(agg.Credit)
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].Code != rows[j].Code {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].AccountID < rows[j].AccountID
		})
		payload := TrialBalance{Rows: rows, TotalDebit: totalDebit.String(), TotalCredit: totalCredit.String()}
		return b.seal(reports.KindTrialBalance, companyID, reports.NewPeriod(time.Time{}, asOf), res.Fingerprint, payload)
	})
}

// BuildIncomeStatement reports revenue and expense activity between from and
// to, inclusive.
func (b *Builder) BuildIncomeStatement(ctx context.Context, companyID string, from, to time.Time) (*Statement, error) {
	res, accounts, err := b.snapshot(ctx, companyID, from, to)
	if err != nil {
		return nil, err
	}
	params := fmt.Sprintf("from=%s&to=%s", from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	return b.cache.fetch(ctx, b.cache.key(reports.KindIncomeStatement, companyID, res.Fingerprint, params), func() (*Statement, error) {
		revenue, revenueTotal := section("Revenue", res, accounts, ledger.AccountTypeRevenue)
		expenses, expenseTotal := section("Expenses", res, accounts, ledger.AccountTypeExpense)
		payload := IncomeStatement{
			Revenue:   revenue,
			Expenses:  expenses,
			NetIncome: revenueTotal.Sub(expenseTotal).String(),
		}
		return b.seal(reports.KindIncomeStatement, companyID, reports.NewPeriod(from, to), res.Fingerprint, payload)
	})
}

// BuildBalanceSheet reports assets, liabilities, and equity as of a date.
// Equity includes retained earnings, so the sheet balances whenever the
// underlying ledger does.
func (b *Builder) BuildBalanceSheet(ctx context.Context, companyID string, asOf time.Time) (*Statement, error) {
	res, accounts, err := b.snapshot(ctx, companyID, time.Time{}, asOf)
	if err != nil {
		return nil, err
	}
	params := fmt.Sprintf("asOf=%s", asOf.UTC().Format("2006-01-02"))
	return b.cache.fetch(ctx, b.cache.key(reports.KindBalanceSheet, companyID, res.Fingerprint, params), func() (*Statement, error) {
		assets, _ := section("Assets", res, accounts, ledger.AccountTypeAsset)
		liabilities, liabilityTotal := section("Liabilities", res, accounts, ledger.AccountTypeLiability)
		equity, equityTotal := section("Equity", res, accounts, ledger.AccountTypeEquity)

		// Earnings accumulated over the life of the ledger roll into equity.
		retained := decimal.Zero
		for accountID, agg := range res.Balances {
			switch accounts[accountID].Type {
			case ledger.AccountTypeRevenue:
				retained = retained.Add(agg.Credit.Sub(agg.Debit))
			case ledger.AccountTypeExpense:
				retained = retained.Sub(agg.Debit.Sub(agg.Credit))
			}
		}
		if !retained.IsZero() {
			equity.Accounts = append(equity.Accounts, SectionRow{
				AccountID: "retained-earnings",
				Code:      "RE",
				Name:      "Retained Earnings",
				Amount:    retained.String(),
			})
			equityTotal = equityTotal.Add(retained)
			equity.Total = equityTotal.String()
		}
		payload := BalanceSheet{
			Assets:                    assets,
			Liabilities:               liabilities,
			Equity:                    equity,
			TotalLiabilitiesAndEquity: liabilityTotal.Add(equityTotal).String(),
		}
		return b.seal(reports.KindBalanceSheet, companyID, reports.NewPeriod(time.Time{}, asOf), res.Fingerprint, payload)
	})
}

// BuildCashFlowDirect classifies every cash movement between from and to by
// the counterparty side of its transaction.
func (b *Builder) BuildCashFlowDirect(ctx context.Context, companyID string, from, to time.Time) (*Statement, error) {
	res, accounts, err := b.snapshot(ctx, companyID, from, to)
	if err != nil {
		return nil, err
	}
	params := fmt.Sprintf("from=%s&to=%s", from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	return b.cache.fetch(ctx, b.cache.key(reports.KindCashFlowDirect, companyID, res.Fingerprint, params), func() (*Statement, error) {
		type flow struct{ inflow, outflow decimal.Decimal }
		flows := map[string]*flow{
			CashFlowOperatingReceipts: {},
			CashFlowOperatingPayments: {},
			CashFlowInvesting:         {},
			CashFlowFinancing:         {},
		}
		net := decimal.Zero
		for _, txn := range res.Log {
			for _, line := range txn.Lines {
				if !accounts[line.AccountID].Cash {
					continue
				}
				category := classifyCashLine(txn, line, accounts)
				f := flows[category]
				if line.Side == ledger.SideDebit {
					f.inflow = f.inflow.Add(line.Amount.Amount)
					net = net.Add(line.Amount.Amount)
				} else {
					f.outflow = f.outflow.Add(line.Amount.Amount)
					net = net.Sub(line.Amount.Amount)
				}
			}
		}
		lines := make([]CashFlowLine, 0, len(flows))
		for _, category := range []string{CashFlowOperatingReceipts, CashFlowOperatingPayments, CashFlowInvesting, CashFlowFinancing} {
			f := flows[category]
			lines = append(lines, CashFlowLine{
				Category: category,
				Inflow:   f.inflow.String(),
				Outflow:  f.outflow.String(),
			})
		}
		payload := CashFlow{Lines: lines, NetChange: net.String()}
		return b.seal(reports.KindCashFlowDirect, companyID, reports.NewPeriod(from, to), res.Fingerprint, payload)
	})
}

func (b *Builder) snapshot(ctx context.Context, companyID string, from, to time.Time) (replay.Result, map[string]ledger.Account, error) {
	res, err := b.replayer.Replay(ctx, companyID, replay.Options{From: from, To: to})
	if err != nil {
		return replay.Result{}, nil, err
	}
	list, err := b.store.ListAccounts(ctx, companyID)
	if err != nil {
		return replay.Result{}, nil, err
	}
	accounts := make(map[string]ledger.Account, len(list))
	for _, acct := range list {
		accounts[acct.AccountID] = acct
	}
	return res, accounts, nil
}

func (b *Builder) seal(kind, companyID string, period reports.Period, fingerprint string, payload any) (*Statement, error) {
	hash, err := reports.IntegrityHash(payload)
	if err != nil {
		return nil, err
	}
	return &Statement{
		Kind:          kind,
		CompanyID:     companyID,
		Period:        period,
		Fingerprint:   fingerprint,
		IntegrityHash: hash,
		Payload:       payload,
	}, nil
}

// naturalBalance signs an aggregate by the account's normal side: debit for
// assets and expenses, credit otherwise.
func naturalBalance(typ ledger.AccountType, agg replay.Aggregate) decimal.Decimal {
	switch typ {
	case ledger.AccountTypeAsset, ledger.AccountTypeExpense:
		return agg.Debit.Sub(agg.Credit)
	default:
		return agg.Credit.Sub(agg.Debit)
	}
}

func section(label string, res replay.Result, accounts map[string]ledger.Account, typ ledger.AccountType) (Section, decimal.Decimal) {
	total := decimal.Zero
	var rows []SectionRow
	for accountID, agg := range res.Balances {
		acct, ok := accounts[accountID]
		if !ok || acct.Type != typ {
			continue
		}
		balance := naturalBalance(typ, agg)
		rows = append(rows, SectionRow{
			AccountID: acct.AccountID,
			Code:      acct.Code,
			Name:      acct.Name,
			Amount:    balance.String(),
		})
		total = total.Add(balance)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Code != rows[j].Code {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].AccountID < rows[j].AccountID
	})
	return Section{Label: label, Accounts: rows, Total: total.String()}, total
}

// classifyCashLine picks a cash flow category from the transaction's
// non-cash counter lines. Revenue counterparts are operating receipts,
// expenses operating payments, non-cash assets investing, and liabilities or
// equity financing.
func classifyCashLine(txn ledger.Transaction, cash ledger.Entry, accounts map[string]ledger.Account) string {
	sawAsset := false
	sawFinancing := false
	for _, line := range txn.Lines {
		if line.LineID == cash.LineID {
			continue
		}
		acct := accounts[line.AccountID]
		if acct.Cash {
			continue
		}
		switch acct.Type {
		case ledger.AccountTypeRevenue:
			return CashFlowOperatingReceipts
		case ledger.AccountTypeExpense:
			return CashFlowOperatingPayments
		case ledger.AccountTypeAsset:
			sawAsset = true
		case ledger.AccountTypeLiability, ledger.AccountTypeEquity:
			sawFinancing = true
		}
	}
	if sawAsset {
		return CashFlowInvesting
	}
	if sawFinancing {
		return CashFlowFinancing
	}
	if cash.Side == ledger.SideDebit {
		return CashFlowOperatingReceipts
	}
	return CashFlowOperatingPayments
}
