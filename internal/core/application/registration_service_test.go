package application_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-notary/internal/core/application"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/tdex-network/tdex-notary/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/tdex-notary/pkg/crawler"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
	"github.com/tdex-network/tdex-notary/pkg/fingerprint"
)

// sha256("abc")
const testDigest = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

type testEnv struct {
	explorerSvc       *mockExplorer
	repo              domain.SessionRepository
	reconciliationSvc application.ReconciliationService
	crawlerSvc        crawler.Service
	svc               application.RegistrationService
}

func newTestEnv(t *testing.T) *testEnv {
	explorerSvc := &mockExplorer{}
	repo := inmemory.NewSessionRepositoryImpl()
	reconciliationSvc := application.NewReconciliationService(explorerSvc)
	crawlerSvc := crawler.NewService(crawler.Opts{Interval: time.Hour})
	svc := application.NewRegistrationService(
		repo, explorerSvc, reconciliationSvc, crawlerSvc,
	)

	err := svc.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		svc.Stop()
		reconciliationSvc.Stop()
	})

	return &testEnv{explorerSvc, repo, reconciliationSvc, crawlerSvc, svc}
}

func (e *testEnv) mockRegistration(address string, amount decimal.Decimal) {
	e.explorerSvc.On("Register", testDigest).Return(&explorer.Registration{
		Address: address,
		Amount:  decimal.NullDecimal{Decimal: amount, Valid: true},
	}, nil)
}

func TestOpenSession(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		env := newTestEnv(t)
		env.mockRegistration(addr1, testAmount)
		env.explorerSvc.On("GetTransactionsForAddress", addr1).
			Return([]explorer.Transaction{}, nil)

		session, err := env.svc.Open(ctx, testDigest)
		require.NoError(t, err)
		require.NotNil(t, session)
		require.NotEmpty(t, session.ID)
		require.Equal(t, testDigest, session.Fingerprint)
		require.Equal(t, addr1, session.Address)
		require.True(t, testAmount.Equal(session.RequestedAmount))
		require.False(t, session.IsUnlocked())

		require.True(t, env.crawlerSvc.IsObserving(addr1))
		require.Equal(t, []string{addr1}, env.reconciliationSvc.Addresses())

		sessions, err := env.svc.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
	})

	t.Run("invalid", func(t *testing.T) {
		env := newTestEnv(t)
		env.explorerSvc.On("Register", testDigest).
			Return(nil, errors.New("service unavailable"))

		session, err := env.svc.Open(ctx, testDigest)
		require.Error(t, err)
		require.Nil(t, session)
		var rerr *application.RegistrationError
		require.True(t, errors.As(err, &rerr))
		require.Equal(t, testDigest, rerr.Fingerprint)
		env.explorerSvc.AssertNumberOfCalls(t, "Register", 1)

		session, err = env.svc.Open(ctx, "not a digest")
		require.ErrorIs(t, err, fingerprint.ErrInvalidDigest)
		require.True(t, errors.As(err, &rerr))
		require.Nil(t, session)
		env.explorerSvc.AssertNumberOfCalls(t, "Register", 1)

		sessions, err := env.svc.ListSessions(ctx)
		require.NoError(t, err)
		require.Empty(t, sessions)
	})
}

func TestSessionSettlement(t *testing.T) {
	env := newTestEnv(t)
	env.mockRegistration(addr1, testAmount)
	env.explorerSvc.On("GetTransactionsForAddress", addr1).
		Return([]explorer.Transaction{pendingTx(tx1, testAmount)}, nil)

	session, err := env.svc.Open(ctx, testDigest)
	require.NoError(t, err)
	require.False(t, session.IsSettled())

	err = env.reconciliationSvc.ConfirmTransaction(addr1, tx1, 1700000000)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, err := env.svc.GetSession(ctx, session.ID)
		return err == nil && s.IsUnlocked()
	}, waitFor, tick)

	settled, err := env.svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, tx1, settled.ConfirmedTxID)
	require.Equal(t, int64(1700000000), settled.ConfirmedAt)
	require.Eventually(t, func() bool {
		return !env.crawlerSvc.IsObserving(addr1)
	}, waitFor, tick)

	_, err = env.svc.Pay(ctx, session.ID)
	require.ErrorIs(t, err, application.ErrSessionSettled)
}

func TestCloseSession(t *testing.T) {
	env := newTestEnv(t)
	env.mockRegistration(addr1, testAmount)
	env.explorerSvc.On("GetTransactionsForAddress", addr1).
		Return([]explorer.Transaction{}, nil)

	s1, err := env.svc.Open(ctx, testDigest)
	require.NoError(t, err)
	s2, err := env.svc.Open(ctx, testDigest)
	require.NoError(t, err)

	// The address is still used by the other session.
	err = env.svc.Close(ctx, s1.ID)
	require.NoError(t, err)
	require.True(t, env.crawlerSvc.IsObserving(addr1))
	require.Equal(t, []string{addr1}, env.reconciliationSvc.Addresses())

	err = env.svc.Close(ctx, s1.ID)
	require.NoError(t, err)

	err = env.svc.Close(ctx, s2.ID)
	require.NoError(t, err)
	require.False(t, env.crawlerSvc.IsObserving(addr1))
	require.Empty(t, env.reconciliationSvc.Addresses())

	_, err = env.svc.GetSession(ctx, s2.ID)
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestResumeSessions(t *testing.T) {
	explorerSvc := &mockExplorer{}
	explorerSvc.On("GetTransactionsForAddress", addr1).
		Return([]explorer.Transaction{
			{TxID: tx1, Status: "confirmed", ObservedAt: 1700000000},
		}, nil)
	explorerSvc.On("GetTransactionsForAddress", addr2).
		Return([]explorer.Transaction{}, nil)

	repo := inmemory.NewSessionRepositoryImpl()
	s1, err := domain.NewSession(testDigest, addr1, testAmount)
	require.NoError(t, err)
	s2, err := domain.NewSession(testDigest, addr2, testAmount)
	require.NoError(t, err)
	require.NoError(t, repo.AddSession(ctx, *s1))
	require.NoError(t, repo.AddSession(ctx, *s2))

	reconciliationSvc := application.NewReconciliationService(explorerSvc)
	defer reconciliationSvc.Stop()
	crawlerSvc := crawler.NewService(crawler.Opts{Interval: time.Hour})
	svc := application.NewRegistrationService(
		repo, explorerSvc, reconciliationSvc, crawlerSvc,
	)

	err = svc.Start(ctx)
	require.NoError(t, err)
	defer svc.Stop()

	require.ElementsMatch(t, []string{addr1, addr2}, reconciliationSvc.Addresses())
	require.True(t, crawlerSvc.IsObserving(addr2))

	require.Eventually(t, func() bool {
		s, err := svc.GetSession(ctx, s1.ID)
		return err == nil && s.IsSettled()
	}, waitFor, tick)
	require.Eventually(t, func() bool {
		return !crawlerSvc.IsObserving(addr1)
	}, waitFor, tick)
}

func TestStopIsFinal(t *testing.T) {
	explorerSvc := &mockExplorer{}
	explorerSvc.On("Register", testDigest).Return(&explorer.Registration{
		Address: addr1,
		Amount:  decimal.NullDecimal{Decimal: testAmount, Valid: true},
	}, nil)

	repo := inmemory.NewSessionRepositoryImpl()
	reconciliationSvc := application.NewReconciliationService(explorerSvc)
	defer reconciliationSvc.Stop()
	crawlerSvc := crawler.NewService(crawler.Opts{Interval: time.Hour})
	svc := application.NewRegistrationService(
		repo, explorerSvc, reconciliationSvc, crawlerSvc,
	)

	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Start(ctx))
	svc.Stop()
	svc.Stop()

	err := svc.Start(ctx)
	require.ErrorIs(t, err, application.ErrServiceUnavailable)

	session, err := svc.Open(ctx, testDigest)
	require.ErrorIs(t, err, application.ErrServiceUnavailable)
	require.Nil(t, session)
	explorerSvc.AssertNotCalled(t, "Register", testDigest)

	sessions, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestStartUpload(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		env := newTestEnv(t)
		env.mockRegistration(addr1, testAmount)
		env.explorerSvc.On("GetTransactionsForAddress", addr1).
			Return([]explorer.Transaction{}, nil)

		job := env.svc.StartUpload(ctx, strings.NewReader("abc"), 3)

		select {
		case res := <-job.Done():
			require.NoError(t, res.Err)
			require.Equal(t, testDigest, res.Fingerprint.String())
			require.NotNil(t, res.Session)
			require.Equal(t, addr1, res.Session.Address)
		case <-time.After(waitFor):
			t.Fatal("upload did not complete")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		env := newTestEnv(t)

		r, w := io.Pipe()
		defer w.Close()

		job := env.svc.StartUpload(ctx, r, -1)
		//nolint
		w.Write([]byte("ab"))
		job.Cancel()
		//nolint
		go w.Write([]byte("c"))

		select {
		case res := <-job.Done():
			require.ErrorIs(t, res.Err, application.ErrUploadCancelled)
			require.Nil(t, res.Session)
		case <-time.After(waitFor):
			t.Fatal("upload did not return")
		}
		w.Close()

		env.explorerSvc.AssertNotCalled(t, "Register", testDigest)
		sessions, err := env.svc.ListSessions(ctx)
		require.NoError(t, err)
		require.Empty(t, sessions)
	})

	t.Run("truncated", func(t *testing.T) {
		env := newTestEnv(t)

		job := env.svc.StartUpload(ctx, strings.NewReader("abc"), 10)
		res := <-job.Done()
		require.ErrorIs(t, res.Err, fingerprint.ErrTruncated)
		env.explorerSvc.AssertNotCalled(t, "Register", testDigest)
	})
}

func TestPay(t *testing.T) {
	env := newTestEnv(t)
	env.mockRegistration(addr1, testAmount)
	env.explorerSvc.On("GetTransactionsForAddress", addr1).
		Return([]explorer.Transaction{}, nil)
	env.explorerSvc.On("SendPayment", addr1, testAmount.String()).
		Return(tx1, nil)

	session, err := env.svc.Open(ctx, testDigest)
	require.NoError(t, err)

	txid, err := env.svc.Pay(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, tx1, txid)

	_, err = env.svc.Pay(ctx, "unknown")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestVerifyAnchor(t *testing.T) {
	env := newTestEnv(t)
	env.explorerSvc.On("GetTransaction", tx1).Return(&explorer.TransactionDetail{
		TxID:          tx1,
		Confirmations: 1,
		Outputs: []explorer.Output{
			{Index: 0, Script: "6a20" + testDigest, Data: testDigest},
		},
	}, nil)
	env.explorerSvc.On("GetTransaction", tx2).Return(&explorer.TransactionDetail{
		TxID:          tx2,
		Confirmations: 1,
		Outputs: []explorer.Output{
			{Index: 0, Address: addr1, Amount: testAmount},
		},
	}, nil)

	err := env.svc.VerifyAnchor(ctx, tx1, testDigest)
	require.NoError(t, err)

	err = env.svc.VerifyAnchor(ctx, tx1, strings.Repeat("0", 64))
	require.ErrorIs(t, err, application.ErrAnchorMismatch)

	err = env.svc.VerifyAnchor(ctx, tx2, testDigest)
	require.ErrorIs(t, err, application.ErrAnchorNotFound)

	err = env.svc.VerifyAnchor(ctx, tx1, "invalid")
	require.ErrorIs(t, err, fingerprint.ErrInvalidDigest)
}
