package application

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAddress ...
	ErrMissingAddress = errors.New("missing address")
	// ErrMissingTxID ...
	ErrMissingTxID = errors.New("missing transaction id")
	// ErrMissingHandler ...
	ErrMissingHandler = errors.New("missing status change handler")
	// ErrUploadCancelled is returned through the result of an upload job that
	// has been cancelled before the document was registered.
	ErrUploadCancelled = errors.New("upload cancelled")
	// ErrSessionSettled is returned when attempting to pay an already settled
	// session.
	ErrSessionSettled = errors.New("session already settled")
	// ErrAnchorNotFound is returned if a transaction has no OP_RETURN output.
	ErrAnchorNotFound = errors.New("transaction does not anchor any data")
	// ErrAnchorMismatch is returned if the data anchored by a transaction is
	// not the expected document fingerprint.
	ErrAnchorMismatch = errors.New("anchored data does not match fingerprint")
	// ErrServiceUnavailable is returned if the service has been stopped.
	ErrServiceUnavailable = errors.New("service is unavailable, try again later")
)

// RegistrationError is returned when the registration service fails to
// assign a payment address to a document.
type RegistrationError struct {
	Fingerprint string
	Err         error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf(
		"failed to register document %s: %s", e.Fingerprint, e.Err,
	)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// QueryError is returned when a pull query to the ledger service fails.
// Either Address or TxID is set, depending on the kind of query.
type QueryError struct {
	Address string
	TxID    string
	Err     error
}

func (e *QueryError) Error() string {
	if len(e.TxID) > 0 {
		return fmt.Sprintf("failed to query transaction %s: %s", e.TxID, e.Err)
	}
	return fmt.Sprintf(
		"failed to query transactions for address %s: %s", e.Address, e.Err,
	)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
