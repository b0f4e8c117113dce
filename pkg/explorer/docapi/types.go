package docapi

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
)

type registrationRequest struct {
	Fingerprint string `json:"fingerprint"`
}

type registrationReply struct {
	envelope
	Address string              `json:"address"`
	Amount  decimal.NullDecimal `json:"amount"`
}

type transactionsReply struct {
	envelope
	Transactions []explorer.Transaction `json:"transactions"`
}

type transactionReply struct {
	envelope
	Transaction *rawTx `json:"transaction"`
}

type paymentRequest struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

type paymentReply struct {
	envelope
	TxID string `json:"txid"`
}

// rawTx is the verbose transaction format returned by the node behind the
// backend.
type rawTx struct {
	TxID          string      `json:"txid"`
	Confirmations int         `json:"confirmations"`
	BlockHash     string      `json:"blockhash"`
	BlockTime     int64       `json:"blocktime"`
	Vout          []rawOutput `json:"vout"`
}

type rawOutput struct {
	Value        decimal.Decimal `json:"value"`
	N            int             `json:"n"`
	ScriptPubKey struct {
		Asm       string   `json:"asm"`
		Hex       string   `json:"hex"`
		Address   string   `json:"address"`
		Addresses []string `json:"addresses"`
	} `json:"scriptPubKey"`
}

func (t rawTx) toDetail() *explorer.TransactionDetail {
	outputs := make([]explorer.Output, 0, len(t.Vout))
	for _, out := range t.Vout {
		outputs = append(outputs, out.toOutput())
	}
	return &explorer.TransactionDetail{
		TxID:          t.TxID,
		Confirmations: t.Confirmations,
		BlockHash:     t.BlockHash,
		BlockTime:     t.BlockTime,
		Outputs:       outputs,
	}
}

func (o rawOutput) toOutput() explorer.Output {
	address := o.ScriptPubKey.Address
	// older nodes only return the list of addresses.
	if len(address) <= 0 && len(o.ScriptPubKey.Addresses) > 0 {
		address = o.ScriptPubKey.Addresses[0]
	}

	var data string
	if fields := strings.Fields(o.ScriptPubKey.Asm); len(fields) > 1 &&
		fields[0] == "OP_RETURN" {
		data = strings.Join(fields[1:], "")
	}

	return explorer.Output{
		Index:   o.N,
		Address: address,
		Amount:  o.Value,
		Script:  o.ScriptPubKey.Hex,
		Data:    data,
	}
}
