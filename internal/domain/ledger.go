package domain

import (
	"fmt"
)

// TaxPayerInfo is the header block of the ledger: who keeps the book and for
// which period. Empty strings mean "not filled in yet".
type TaxPayerInfo struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	TaxID    string `json:"taxId"`
	Location string `json:"location"`
	Period   string `json:"period"`
}

// Transaction is one sales line of the ledger.
// Date is kept as the locale-formatted string the user sees (dd/mm/yyyy);
// it is never parsed.
type Transaction struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"` // whole currency units, never negative
}

// LedgerDocument is the only persisted aggregate: one per installation.
type LedgerDocument struct {
	Info         TaxPayerInfo  `json:"info"`
	Transactions []Transaction `json:"transactions"`
}

// Clone returns a deep copy that shares no memory with d.
func (d LedgerDocument) Clone() LedgerDocument {
	out := LedgerDocument{Info: d.Info}
	if d.Transactions != nil {
		out.Transactions = make([]Transaction, len(d.Transactions))
		copy(out.Transactions, d.Transactions)
	}
	return out
}

// IndexOf returns the position of the transaction with the given id, or -1.
func (d LedgerDocument) IndexOf(id string) int {
	for i := range d.Transactions {
		if d.Transactions[i].ID == id {
			return i
		}
	}
	return -1
}

// Total sums every transaction amount.
func (d LedgerDocument) Total() int64 {
	var total int64
	for _, tx := range d.Transactions {
		total += tx.Amount
	}
	return total
}

// Normalize repairs a document decoded from storage so that it satisfies the
// ledger invariants: negative amounts are clamped to zero, transactions
// without an id or with a duplicate id get a fresh one.
func (d *LedgerDocument) Normalize(newID func() string) {
	seen := make(map[string]bool, len(d.Transactions))
	for i := range d.Transactions {
		tx := &d.Transactions[i]
		if tx.Amount < 0 {
			tx.Amount = 0
		}
		if tx.ID == "" || seen[tx.ID] {
			tx.ID = newID()
		}
		seen[tx.ID] = true
	}
}

// InfoField names one TaxPayerInfo field.
type InfoField string

const (
	InfoName     InfoField = "name"
	InfoAddress  InfoField = "address"
	InfoTaxID    InfoField = "taxId"
	InfoLocation InfoField = "location"
	InfoPeriod   InfoField = "period"
)

// InfoFields lists the header fields in display and export order.
var InfoFields = []InfoField{InfoName, InfoAddress, InfoTaxID, InfoLocation, InfoPeriod}

// ParseInfoField validates a field key coming from the outside.
func ParseInfoField(s string) (InfoField, error) {
	for _, f := range InfoFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown info field %q", s)
}

// Get returns the value of field f.
func (i TaxPayerInfo) Get(f InfoField) string {
	switch f {
	case InfoName:
		return i.Name
	case InfoAddress:
		return i.Address
	case InfoTaxID:
		return i.TaxID
	case InfoLocation:
		return i.Location
	case InfoPeriod:
		return i.Period
	}
	return ""
}

// Set overwrites field f. Unknown fields are ignored.
func (i *TaxPayerInfo) Set(f InfoField, value string) {
	switch f {
	case InfoName:
		i.Name = value
	case InfoAddress:
		i.Address = value
	case InfoTaxID:
		i.TaxID = value
	case InfoLocation:
		i.Location = value
	case InfoPeriod:
		i.Period = value
	}
}

// TransactionField names an editable Transaction field.
type TransactionField string

const (
	TxDate        TransactionField = "date"
	TxDescription TransactionField = "description"
	TxAmount      TransactionField = "amount"
)

// ParseTransactionField validates a transaction field key.
func ParseTransactionField(s string) (TransactionField, error) {
	switch TransactionField(s) {
	case TxDate, TxDescription, TxAmount:
		return TransactionField(s), nil
	}
	return "", fmt.Errorf("unknown transaction field %q", s)
}
