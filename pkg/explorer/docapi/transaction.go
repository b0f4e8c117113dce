package docapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
)

func (d *docapi) GetTransactionsForAddress(
	ctx context.Context, address string,
) ([]explorer.Transaction, error) {
	endpoint := fmt.Sprintf(
		"%s/transactions?address=%s", d.apiURL, url.QueryEscape(address),
	)
	resp, err := d.client.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	reply := &transactionsReply{}
	if err := resp.decode(reply); err != nil {
		return nil, err
	}
	if reply.Transactions == nil {
		return []explorer.Transaction{}, nil
	}
	return reply.Transactions, nil
}

func (d *docapi) GetTransaction(
	ctx context.Context, txid string,
) (*explorer.TransactionDetail, error) {
	endpoint := fmt.Sprintf(
		"%s/transaction?id=%s", d.apiURL, url.QueryEscape(txid),
	)
	resp, err := d.client.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusNotFound {
		return nil, explorer.ErrTransactionNotFound
	}

	reply := &transactionReply{}
	if err := resp.decode(reply); err != nil {
		return nil, err
	}
	if reply.Transaction == nil {
		return nil, explorer.ErrTransactionNotFound
	}
	return reply.Transaction.toDetail(), nil
}

func (d *docapi) SendPayment(
	ctx context.Context, address string, amount decimal.Decimal,
) (string, error) {
	endpoint := fmt.Sprintf("%s/payment", d.apiURL)
	resp, err := d.client.do(
		ctx, http.MethodPost, endpoint, paymentRequest{address, amount},
	)
	if err != nil {
		return "", err
	}

	reply := &paymentReply{}
	if err := resp.decode(reply); err != nil {
		return "", err
	}
	return reply.TxID, nil
}
