package ledger

import (
	"github.com/meridian-books/meridian/internal/reports"
)

// canonicalLine is the wire form of a line inside canonical records. Field
// order is part of the fingerprint contract and must not change.
type canonicalLine struct {
	LineID      string `json:"lineId"`
	AccountID   string `json:"accountId"`
	Side        string `json:"side"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

// canonicalTransaction is the wire form of a transaction inside canonical
// records. Only semantic content participates; wall-clock insertion time and
// other storage artifacts are deliberately absent.
type canonicalTransaction struct {
	CompanyID         string          `json:"companyId"`
	TransactionID     string          `json:"transactionId"`
	TransactionNumber int64           `json:"transactionNumber"`
	Date              string          `json:"date"`
	Type              string          `json:"type,omitempty"`
	Description       string          `json:"description,omitempty"`
	ReferenceNumber   string          `json:"referenceNumber,omitempty"`
	Currency          string          `json:"currency"`
	Lines             []canonicalLine `json:"lines"`
}

func toCanonical(txn Transaction) canonicalTransaction {
	lines := make([]canonicalLine, len(txn.Lines))
	for i, line := range txn.Lines {
		lines[i] = canonicalLine{
			LineID:      line.LineID,
			AccountID:   line.AccountID,
			Side:        string(line.Side),
			Amount:      line.Amount.Canonical(),
			Currency:    line.Amount.Currency,
			Description: line.Description,
		}
	}
	return canonicalTransaction{
		CompanyID:         txn.CompanyID,
		TransactionID:     txn.TransactionID,
		TransactionNumber: txn.TransactionNumber,
		Date:              txn.Date.Format("2006-01-02"),
		Type:              txn.Type,
		Description:       txn.Description,
		ReferenceNumber:   txn.ReferenceNumber,
		Currency:          txn.Currency,
		Lines:             lines,
	}
}

// CanonicalRecord serializes a transaction to its canonical byte form, the
// unit over which replay fingerprints are computed.
func CanonicalRecord(txn Transaction) ([]byte, error) {
	return reports.CanonicalJSON(toCanonical(txn))
}

// ContentHash summarises a transaction's semantic content. Two submissions
// with the same derived id but different content hashes are a conflict, not
// an idempotent retry.
func ContentHash(txn Transaction) (string, error) {
	return reports.IntegrityHash(toCanonical(txn))
}
