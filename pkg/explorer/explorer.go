// Package explorer defines the contract of the registration and ledger
// service the notary relies on: address issuance, pull queries by address and
// by transaction id, and payments.
package explorer

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrTransactionNotFound is returned when querying an unknown tx id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidResponse is returned when the service replies with a payload
	// that cannot be decoded.
	ErrInvalidResponse = errors.New("invalid response from ledger service")
)

// Registration is the reply to a document registration.
type Registration struct {
	Address string `json:"address"`
	// Amount is the minimum amount to pay, if the service enforces one.
	Amount decimal.NullDecimal `json:"amount"`
}

// Transaction is an entry of the list of transactions known for an address.
// Status is left as returned by the service, either "pending" or "confirmed".
type Transaction struct {
	TxID       string              `json:"id"`
	Address    string              `json:"address"`
	Amount     decimal.NullDecimal `json:"amount"`
	Status     string              `json:"status"`
	ObservedAt int64               `json:"observedAt"`
}

// Output is a destination output of a transaction.
type Output struct {
	Index   int
	Address string
	Amount  decimal.Decimal
	// Script is the hex encoded output script.
	Script string
	// Data is the hex encoded payload of an OP_RETURN output, empty otherwise.
	Data string
}

func (o Output) IsOpReturn() bool {
	return len(o.Data) > 0
}

// TransactionDetail is the full detail of a single transaction.
type TransactionDetail struct {
	TxID          string
	Confirmations int
	BlockHash     string
	BlockTime     int64
	Outputs       []Output
}

func (t TransactionDetail) Confirmed() bool {
	return t.Confirmations > 0
}

// OpReturnData returns the payload of the first OP_RETURN output.
func (t TransactionDetail) OpReturnData() (string, bool) {
	for _, out := range t.Outputs {
		if out.IsOpReturn() {
			return out.Data, true
		}
	}
	return "", false
}

// AmountForAddress returns the total amount sent to the given address, and
// whether any output pays it.
func (t TransactionDetail) AmountForAddress(address string) (decimal.Decimal, bool) {
	total, found := decimal.Zero, false
	for _, out := range t.Outputs {
		if out.Address == address {
			total = total.Add(out.Amount)
			found = true
		}
	}
	return total, found
}

// Service is the representation of the external registration and ledger
// service.
type Service interface {
	// Register requests a payment address for the given document digest.
	Register(ctx context.Context, fingerprint string) (*Registration, error)
	// GetTransactionsForAddress returns the list of all txs paying the given
	// address. An empty list is a valid result.
	GetTransactionsForAddress(
		ctx context.Context, address string,
	) ([]Transaction, error)
	// GetTransaction returns the detail of the tx identified by its hash.
	GetTransaction(ctx context.Context, txid string) (*TransactionDetail, error)
	// SendPayment initiates a payment of the given amount to the address and
	// returns its tx hash. Its outcome is only observable through the ledger.
	SendPayment(
		ctx context.Context, address string, amount decimal.Decimal,
	) (string, error)
}
