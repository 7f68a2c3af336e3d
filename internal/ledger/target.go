package ledger

import (
	"fmt"
	"strings"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// TargetKind says what a voice capture writes into.
type TargetKind string

const (
	TargetInfo           TargetKind = "info"
	TargetTransaction    TargetKind = "tx"
	TargetNewTransaction TargetKind = "new"
)

// Target is a capture destination. Busy tracking is per Key, so two fields
// of the same transaction share one slot.
type Target struct {
	Kind    TargetKind              `json:"kind"`
	Info    domain.InfoField        `json:"info,omitempty"`
	TxID    string                  `json:"txId,omitempty"`
	TxField domain.TransactionField `json:"txField,omitempty"`
}

func InfoTarget(f domain.InfoField) Target {
	return Target{Kind: TargetInfo, Info: f}
}

func TransactionTarget(id string, f domain.TransactionField) Target {
	return Target{Kind: TargetTransaction, TxID: id, TxField: f}
}

func NewTransactionTarget() Target {
	return Target{Kind: TargetNewTransaction}
}

// Key identifies the busy slot of t.
func (t Target) Key() string {
	switch t.Kind {
	case TargetInfo:
		return "info:" + string(t.Info)
	case TargetTransaction:
		return "tx:" + t.TxID
	}
	return string(TargetNewTransaction)
}

func (t Target) String() string {
	if t.Kind == TargetTransaction && t.TxField != "" {
		return t.Key() + "/" + string(t.TxField)
	}
	return t.Key()
}

// ParseTarget builds a Target from loosely typed input (HTTP form, CLI).
// field is an info field for "info" and a transaction field for "tx".
func ParseTarget(kind, field, id string) (Target, error) {
	switch TargetKind(strings.TrimSpace(kind)) {
	case TargetInfo:
		f, err := domain.ParseInfoField(field)
		if err != nil {
			return Target{}, fmt.Errorf("ParseTarget: %w", err)
		}
		return InfoTarget(f), nil
	case TargetTransaction:
		if strings.TrimSpace(id) == "" {
			return Target{}, fmt.Errorf("ParseTarget: transaction id is required")
		}
		f, err := domain.ParseTransactionField(field)
		if err != nil {
			return Target{}, fmt.Errorf("ParseTarget: %w", err)
		}
		return TransactionTarget(id, f), nil
	case TargetNewTransaction:
		return NewTransactionTarget(), nil
	}
	return Target{}, fmt.Errorf("ParseTarget: unknown target kind %q", kind)
}
