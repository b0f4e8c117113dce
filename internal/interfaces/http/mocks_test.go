package httpinterface_test

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/tdex-notary/internal/core/ports"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
)

type mockExplorer struct {
	mock.Mock
}

func (m *mockExplorer) Register(
	ctx context.Context, fingerprint string,
) (*explorer.Registration, error) {
	args := m.Called(fingerprint)

	var res *explorer.Registration
	if a := args.Get(0); a != nil {
		res = a.(*explorer.Registration)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetTransactionsForAddress(
	ctx context.Context, address string,
) ([]explorer.Transaction, error) {
	args := m.Called(address)

	var res []explorer.Transaction
	if a := args.Get(0); a != nil {
		res = a.([]explorer.Transaction)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) GetTransaction(
	ctx context.Context, txid string,
) (*explorer.TransactionDetail, error) {
	args := m.Called(txid)

	var res *explorer.TransactionDetail
	if a := args.Get(0); a != nil {
		res = a.(*explorer.TransactionDetail)
	}
	return res, args.Error(1)
}

func (m *mockExplorer) SendPayment(
	ctx context.Context, address string, amount decimal.Decimal,
) (string, error) {
	args := m.Called(address, amount.String())
	return args.String(0), args.Error(1)
}

type mockWebhookService struct {
	mock.Mock
}

func (m *mockWebhookService) AddWebhook(
	ctx context.Context, topic, endpoint, secret string,
) (string, error) {
	args := m.Called(topic, endpoint, secret)
	return args.String(0), args.Error(1)
}

func (m *mockWebhookService) RemoveWebhook(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *mockWebhookService) ListWebhooks(
	ctx context.Context, topic string,
) ([]ports.Subscription, error) {
	args := m.Called(topic)

	var res []ports.Subscription
	if a := args.Get(0); a != nil {
		res = a.([]ports.Subscription)
	}
	return res, args.Error(1)
}

type webhook struct {
	id, topic, endpoint string
	secured             bool
}

func (w webhook) Topic() string    { return w.topic }
func (w webhook) Id() string       { return w.id }
func (w webhook) IsSecured() bool  { return w.secured }
func (w webhook) NotifyAt() string { return w.endpoint }
