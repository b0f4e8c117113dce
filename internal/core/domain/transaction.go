package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	TxStatusUnknown TxStatus = iota
	TxStatusPending
	TxStatusConfirmed
)

// TxStatus is the lifecycle state of a transaction. Values are ordered so that
// a later state always compares greater than an earlier one.
type TxStatus int

func (s TxStatus) String() string {
	switch s {
	case TxStatusPending:
		return "pending"
	case TxStatusConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

func (s TxStatus) IsConfirmed() bool {
	return s == TxStatusConfirmed
}

func (s TxStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TxStatus) UnmarshalJSON(buf []byte) error {
	var str string
	if err := json.Unmarshal(buf, &str); err != nil {
		return ErrUnknownTxStatus
	}
	status, err := ParseTxStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ParseTxStatus accepts only the wire values "pending" and "confirmed".
func ParseTxStatus(str string) (TxStatus, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "pending":
		return TxStatusPending, nil
	case "confirmed":
		return TxStatusConfirmed, nil
	default:
		return TxStatusUnknown, ErrUnknownTxStatus
	}
}

// Transaction is the merged view of a transaction paying an address.
// Amount and ObservedAt may be absent (invalid amount, zero timestamp) when
// only partial observations have been merged so far.
type Transaction struct {
	TxID       string              `json:"id"`
	Address    string              `json:"address"`
	Amount     decimal.NullDecimal `json:"amount"`
	Status     TxStatus            `json:"status"`
	ObservedAt int64               `json:"observedAt,omitempty"`
}

// NewConfirmation returns the partial observation carried by a push
// notification: no amount, confirmed status.
func NewConfirmation(address, txid string, observedAt int64) Transaction {
	return Transaction{
		TxID:       txid,
		Address:    address,
		Status:     TxStatusConfirmed,
		ObservedAt: observedAt,
	}
}

func (t Transaction) Validate() error {
	if len(t.TxID) <= 0 {
		return ErrMissingTxID
	}
	if len(t.Address) <= 0 {
		return ErrMissingAddress
	}
	if t.Status == TxStatusUnknown {
		return ErrUnknownTxStatus
	}
	if t.Amount.Valid && t.Amount.Decimal.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) IsConfirmed() bool {
	return t.Status.IsConfirmed()
}

// Merge folds the observation o into t. Merging is field-wise: absent fields
// of o never clear known values of t. Status only moves forward, and
// ObservedAt is taken from o only if o does not report an older status.
// It returns the status t had before the merge and whether it changed.
func (t *Transaction) Merge(o Transaction) (TxStatus, bool) {
	prev := t.Status

	if len(t.TxID) <= 0 {
		t.TxID = o.TxID
	}
	if len(t.Address) <= 0 {
		t.Address = o.Address
	}
	if o.Amount.Valid {
		t.Amount = o.Amount
	}
	if o.ObservedAt > 0 && o.Status >= prev {
		t.ObservedAt = o.ObservedAt
	}
	if o.Status > prev {
		t.Status = o.Status
	}

	return prev, t.Status != prev
}

// StatusChange is emitted every time a merge moves a transaction to a new
// status.
type StatusChange struct {
	Address     string      `json:"address"`
	TxID        string      `json:"id"`
	From        TxStatus    `json:"from"`
	To          TxStatus    `json:"to"`
	Transaction Transaction `json:"transaction"`
}
