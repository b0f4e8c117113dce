package domain

import "errors"

var (
	// ErrUnknownTxStatus is returned for status values other than pending and
	// confirmed.
	ErrUnknownTxStatus = errors.New("unknown transaction status")
	// ErrMissingTxID ...
	ErrMissingTxID = errors.New("missing transaction id")
	// ErrMissingAddress ...
	ErrMissingAddress = errors.New("missing payment address")
	// ErrMissingFingerprint ...
	ErrMissingFingerprint = errors.New("missing document fingerprint")
	// ErrInvalidAmount ...
	ErrInvalidAmount = errors.New("amount must not be negative")
	// ErrSessionNotFound ...
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionAlreadyExists ...
	ErrSessionAlreadyExists = errors.New("session already exists")
	// ErrSessionAlreadySettled is returned when settling a session twice.
	ErrSessionAlreadySettled = errors.New("session already settled")
	// ErrAddressMismatch is returned when settling a session with a tx paying
	// another address.
	ErrAddressMismatch = errors.New("transaction does not pay session address")
	// ErrTxNotConfirmed ...
	ErrTxNotConfirmed = errors.New("transaction not confirmed")
	// ErrAmountTooLow ...
	ErrAmountTooLow = errors.New("transaction amount lower than requested")
)
