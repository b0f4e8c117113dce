package application_test

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
	"github.com/tdex-network/tdex-notary/pkg/pushfeed"
)

// **** Explorer ****

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

	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

// **** Push feed ****

type mockFeed struct {
	lock     sync.Mutex
	handlers []pushfeed.Handler
}

func (m *mockFeed) Subscribe(handler pushfeed.Handler) (pushfeed.Subscription, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.handlers = append(m.handlers, handler)
	return mockSubscription{}, nil
}

func (m *mockFeed) NumSubscriptions() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.handlers)
}

func (m *mockFeed) IsConnected() bool { return true }

func (m *mockFeed) Close() {}

func (m *mockFeed) send(event pushfeed.Event) {
	m.lock.Lock()
	handlers := append([]pushfeed.Handler{}, m.handlers...)
	m.lock.Unlock()
	for _, h := range handlers {
		h(event)
	}
}

type mockSubscription struct{}

func (mockSubscription) ID() string { return "" }
func (mockSubscription) Cancel()    {}

// **** Status change recorder ****

type recorder struct {
	lock    sync.Mutex
	changes []domain.StatusChange
}

func (r *recorder) handle(change domain.StatusChange) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.changes = append(r.changes, change)
}

func (r *recorder) list() []domain.StatusChange {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]domain.StatusChange{}, r.changes...)
}
