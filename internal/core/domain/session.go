package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session binds a document fingerprint to the payment address assigned by the
// registration service for one upload attempt.
type Session struct {
	ID              string
	Fingerprint     string
	Address         string
	RequestedAmount decimal.Decimal
	CreatedAt       int64
	// ConfirmedTxID and ConfirmedAt are set once a confirmed payment to
	// Address has been reconciled.
	ConfirmedTxID string
	ConfirmedAt   int64
}

// NewSession returns a new open session for the given fingerprint and
// assigned address.
func NewSession(
	fingerprint, address string, requestedAmount decimal.Decimal,
) (*Session, error) {
	if len(fingerprint) <= 0 {
		return nil, ErrMissingFingerprint
	}
	if len(address) <= 0 {
		return nil, ErrMissingAddress
	}
	if requestedAmount.IsNegative() {
		return nil, ErrInvalidAmount
	}

	return &Session{
		ID:              uuid.New().String(),
		Fingerprint:     fingerprint,
		Address:         address,
		RequestedAmount: requestedAmount,
		CreatedAt:       time.Now().Unix(),
	}, nil
}

func (s *Session) IsSettled() bool {
	return len(s.ConfirmedTxID) > 0
}

// IsUnlocked returns whether the registered document can be downloaded.
func (s *Session) IsUnlocked() bool {
	return s.IsSettled()
}

// IsPaidBy returns whether tx is a confirmed payment to the session address
// covering the requested amount. A tx with unknown amount is accepted since
// the amount is enforced by the registration service.
func (s *Session) IsPaidBy(tx Transaction) bool {
	if !tx.IsConfirmed() || tx.Address != s.Address {
		return false
	}
	if !tx.Amount.Valid {
		return true
	}
	return tx.Amount.Decimal.GreaterThanOrEqual(s.RequestedAmount)
}

// Settle marks the session as paid by the given transaction.
func (s *Session) Settle(tx Transaction) error {
	if s.IsSettled() {
		return ErrSessionAlreadySettled
	}
	if tx.Address != s.Address {
		return ErrAddressMismatch
	}
	if !tx.IsConfirmed() {
		return ErrTxNotConfirmed
	}
	if !s.IsPaidBy(tx) {
		return ErrAmountTooLow
	}

	s.ConfirmedTxID = tx.TxID
	s.ConfirmedAt = tx.ObservedAt
	if s.ConfirmedAt <= 0 {
		s.ConfirmedAt = time.Now().Unix()
	}
	return nil
}
