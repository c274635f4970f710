package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an explicitly constructed, in-process Store. It backs unit
// tests and local development; the production composition root wires the
// PostgreSQL store instead.
type MemoryStore struct {
	mu       sync.RWMutex
	txns     map[string]map[string]Transaction // companyID -> transactionID -> txn
	accounts map[string]map[string]Account     // companyID -> accountID -> account
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txns:     make(map[string]map[string]Transaction),
		accounts: make(map[string]map[string]Account),
	}
}

// AppendTransaction implements Store. The map insert under the write lock is
// the atomic commit point; duplicate ids surface as ErrAlreadyApplied exactly
// like the unique-constraint path in the PostgreSQL store.
func (s *MemoryStore) AppendTransaction(_ context.Context, txn Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.txns[txn.CompanyID]
	if !ok {
		byID = make(map[string]Transaction)
		s.txns[txn.CompanyID] = byID
	}
	if _, exists := byID[txn.TransactionID]; exists {
		return ErrAlreadyApplied
	}
	byID[txn.TransactionID] = cloneTransaction(txn)
	return nil
}

// GetTransaction implements Store.
func (s *MemoryStore) GetTransaction(_ context.Context, companyID, transactionID string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.txns[companyID][transactionID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return cloneTransaction(txn), nil
}

// ListTransactions implements Store, returning canonical order.
func (s *MemoryStore) ListTransactions(_ context.Context, companyID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.txns[companyID]
	out := make([]Transaction, 0, len(byID))
	for _, txn := range byID {
		out = append(out, cloneTransaction(txn))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].TransactionNumber != out[j].TransactionNumber {
			return out[i].TransactionNumber < out[j].TransactionNumber
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	return out, nil
}

// ListAccounts implements Store.
func (s *MemoryStore) ListAccounts(_ context.Context, companyID string) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.accounts[companyID]
	out := make([]Account, 0, len(byID))
	for _, a := range byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// SaveAccount implements Store.
func (s *MemoryStore) SaveAccount(_ context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.accounts[account.CompanyID]
	if !ok {
		byID = make(map[string]Account)
		s.accounts[account.CompanyID] = byID
	}
	byID[account.AccountID] = account
	return nil
}

func cloneTransaction(txn Transaction) Transaction {
	lines := make([]Entry, len(txn.Lines))
	copy(lines, txn.Lines)
	txn.Lines = lines
	return txn
}
