package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/platform/db"
)

// Store is the append-only persistence boundary for posted transactions.
// Existing records are never updated or deleted; corrections are new
// transactions. Every query is scoped by company id; a missing or
// mismatched company yields empty results, never cross-tenant data.
type Store interface {
	// AppendTransaction atomically commits the header and all lines.
	// Returns ErrAlreadyApplied when the derived transaction id exists.
	AppendTransaction(ctx context.Context, txn Transaction) error
	// GetTransaction loads one committed transaction with its lines.
	GetTransaction(ctx context.Context, companyID, transactionID string) (Transaction, error)
	// ListTransactions returns every committed transaction for the company in
	// canonical order: date, then transaction number, then transaction id.
	ListTransactions(ctx context.Context, companyID string) ([]Transaction, error)
	// ListAccounts returns the company's chart of accounts.
	ListAccounts(ctx context.Context, companyID string) ([]Account, error)
	// SaveAccount registers or updates a chart-of-accounts node.
	SaveAccount(ctx context.Context, account Account) error
}

type pgStore struct {
	db *pgxpool.Pool
}

// NewPGStore returns a Store backed by PostgreSQL.
func NewPGStore(db *pgxpool.Pool) Store {
	return &pgStore{db: db}
}

func (s *pgStore) AppendTransaction(ctx context.Context, txn Transaction) error {
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO ledger_transactions
(company_id, transaction_id, transaction_number, date, type, description, reference_number, created_by, idempotency_key, currency)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			txn.CompanyID, txn.TransactionID, txn.TransactionNumber, txn.Date, txn.Type,
			txn.Description, txn.ReferenceNumber, txn.CreatedBy, txn.IdempotencyKey, txn.Currency)
		if err != nil {
			return fmt.Errorf("ledger: insert transaction: %w", err)
		}
		for _, line := range txn.Lines {
			_, err = tx.Exec(ctx, `INSERT INTO ledger_lines
(company_id, transaction_id, line_id, account_id, side, amount, currency, description)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
				line.CompanyID, line.TransactionID, line.LineID, line.AccountID,
				string(line.Side), line.Amount.Canonical(), line.Amount.Currency, line.Description)
			if err != nil {
				return fmt.Errorf("ledger: insert line: %w", err)
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return ErrAlreadyApplied
	}
	return err
}

func (s *pgStore) GetTransaction(ctx context.Context, companyID, transactionID string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT company_id, transaction_id, transaction_number, date, type, description, reference_number, created_by, idempotency_key, currency
FROM ledger_transactions WHERE company_id=$1 AND transaction_id=$2`, companyID, transactionID)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	lines, err := s.loadLines(ctx, companyID, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	txn.Lines = lines
	return txn, nil
}

func (s *pgStore) ListTransactions(ctx context.Context, companyID string) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `SELECT company_id, transaction_id, transaction_number, date, type, description, reference_number, created_by, idempotency_key, currency
FROM ledger_transactions WHERE company_id=$1 ORDER BY date, transaction_number, transaction_id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list transactions: %w", err)
	}
	defer rows.Close()
	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range txns {
		lines, err := s.loadLines(ctx, companyID, txns[i].TransactionID)
		if err != nil {
			return nil, err
		}
		txns[i].Lines = lines
	}
	return txns, nil
}

func (s *pgStore) ListAccounts(ctx context.Context, companyID string) ([]Account, error) {
	rows, err := s.db.Query(ctx, `SELECT company_id, account_id, code, name, type, jurisdiction, tax_payable, cash
FROM ledger_accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list accounts: %w", err)
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		var accType string
		if err := rows.Scan(&a.CompanyID, &a.AccountID, &a.Code, &a.Name, &accType, &a.Jurisdiction, &a.TaxPayable, &a.Cash); err != nil {
			return nil, err
		}
		a.Type = AccountType(accType)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *pgStore) SaveAccount(ctx context.Context, account Account) error {
	_, err := s.db.Exec(ctx, `INSERT INTO ledger_accounts (company_id, account_id, code, name, type, jurisdiction, tax_payable, cash)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (company_id, account_id) DO UPDATE SET code=$3, name=$4, type=$5, jurisdiction=$6, tax_payable=$7, cash=$8`,
		account.CompanyID, account.AccountID, account.Code, account.Name, string(account.Type), account.Jurisdiction, account.TaxPayable, account.Cash)
	if err != nil {
		return fmt.Errorf("ledger: save account: %w", err)
	}
	return nil
}

func (s *pgStore) loadLines(ctx context.Context, companyID, transactionID string) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT company_id, transaction_id, line_id, account_id, side, amount, currency, description
FROM ledger_lines WHERE company_id=$1 AND transaction_id=$2 ORDER BY line_id`, companyID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ledger: load lines: %w", err)
	}
	defer rows.Close()
	var lines []Entry
	for rows.Next() {
		var line Entry
		var side, amount, cur string
		if err := rows.Scan(&line.CompanyID, &line.TransactionID, &line.LineID, &line.AccountID, &side, &amount, &cur, &line.Description); err != nil {
			return nil, err
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("ledger: stored amount %q: %w", amount, err)
		}
		line.Side = Side(side)
		line.Amount = Money{Amount: value, Currency: cur}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var txn Transaction
	if err := row.Scan(&txn.CompanyID, &txn.TransactionID, &txn.TransactionNumber, &txn.Date, &txn.Type,
		&txn.Description, &txn.ReferenceNumber, &txn.CreatedBy, &txn.IdempotencyKey, &txn.Currency); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
