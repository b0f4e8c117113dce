package httpinterface_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/tdex-notary/internal/core/application"
	"github.com/tdex-network/tdex-notary/internal/core/application/pubsub"
	"github.com/tdex-network/tdex-notary/internal/core/ports"
	"github.com/tdex-network/tdex-notary/internal/infrastructure/storage/db/inmemory"
	httpinterface "github.com/tdex-network/tdex-notary/internal/interfaces/http"
	"github.com/tdex-network/tdex-notary/pkg/crawler"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
)

const (
	// sha256("abc")
	testDigest = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	addr       = "addr1"
	txid       = "tx1"
)

var (
	ctx        = context.Background()
	testAmount = decimal.NewFromInt(10)
)

type testEnv struct {
	explorerSvc       *mockExplorer
	webhookSvc        *mockWebhookService
	reconciliationSvc application.ReconciliationService
	registrationSvc   application.RegistrationService
	server            *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	explorerSvc := &mockExplorer{}
	webhookSvc := &mockWebhookService{}
	reconciliationSvc := application.NewReconciliationService(explorerSvc)
	registrationSvc := application.NewRegistrationService(
		inmemory.NewSessionRepositoryImpl(), explorerSvc, reconciliationSvc,
		crawler.NewService(crawler.Opts{Interval: time.Hour}),
	)
	require.NoError(t, registrationSvc.Start(ctx))

	server := httptest.NewServer(httpinterface.NewRouter(
		registrationSvc, reconciliationSvc, webhookSvc, nil,
	))
	t.Cleanup(func() {
		server.Close()
		registrationSvc.Stop()
		reconciliationSvc.Stop()
	})

	return &testEnv{
		explorerSvc, webhookSvc, reconciliationSvc, registrationSvc, server,
	}
}

func (e *testEnv) do(
	t *testing.T, method, path string, body []byte, contentType string,
) (int, map[string]interface{}) {
	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if len(contentType) > 0 {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp.StatusCode, decoded
}

func (e *testEnv) openSession(t *testing.T) map[string]interface{} {
	e.explorerSvc.On("Register", testDigest).Return(&explorer.Registration{
		Address: addr,
		Amount:  decimal.NullDecimal{Decimal: testAmount, Valid: true},
	}, nil)
	e.explorerSvc.On("GetTransactionsForAddress", addr).
		Return([]explorer.Transaction{}, nil).Once()

	body, contentType := multipartBody(t, "file", "abc")
	status, resp := e.do(t, http.MethodPost, "/v1/documents", body, contentType)
	require.Equal(t, http.StatusOK, status)
	return resp
}

func multipartBody(t *testing.T, field, content string) ([]byte, string) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile(field, "document.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes(), w.FormDataContentType()
}

func TestFingerprint(t *testing.T) {
	env := newTestEnv(t)

	status, resp := env.do(
		t, http.MethodPost, "/v1/fingerprint", []byte("abc"), "",
	)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, testDigest, resp["fingerprint"])
}

func TestDocuments(t *testing.T) {
	t.Run("upload", func(t *testing.T) {
		env := newTestEnv(t)

		resp := env.openSession(t)
		require.NotEmpty(t, resp["id"])
		require.Equal(t, testDigest, resp["fingerprint"])
		require.Equal(t, addr, resp["address"])
		require.Equal(t, "10", resp["requestedAmount"])
		require.Equal(t, false, resp["unlocked"])
	})

	t.Run("missing file", func(t *testing.T) {
		env := newTestEnv(t)

		body, contentType := multipartBody(t, "other", "abc")
		status, resp := env.do(
			t, http.MethodPost, "/v1/documents", body, contentType,
		)
		require.Equal(t, http.StatusBadRequest, status)
		require.Contains(t, resp["error"], "missing form field")
	})

	t.Run("registration failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.explorerSvc.On("Register", testDigest).
			Return(nil, fmt.Errorf("connection refused"))

		body, contentType := multipartBody(t, "file", "abc")
		status, resp := env.do(
			t, http.MethodPost, "/v1/documents", body, contentType,
		)
		require.Equal(t, http.StatusBadGateway, status)
		require.Contains(t, resp["error"], "connection refused")
	})
}

func TestSessions(t *testing.T) {
	env := newTestEnv(t)
	session := env.openSession(t)
	id := session["id"].(string)

	status, resp := env.do(t, http.MethodGet, "/v1/sessions/"+id, nil, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, id, resp["id"])

	status, resp = env.do(t, http.MethodGet, "/v1/sessions", nil, "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["sessions"], 1)

	env.explorerSvc.On("SendPayment", addr, "10").Return("paytx", nil)
	status, resp = env.do(t, http.MethodPost, "/v1/sessions/"+id+"/pay", nil, "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "paytx", resp["txid"])

	status, _ = env.do(t, http.MethodDelete, "/v1/sessions/"+id, nil, "")
	require.Equal(t, http.StatusNoContent, status)
	status, _ = env.do(t, http.MethodDelete, "/v1/sessions/"+id, nil, "")
	require.Equal(t, http.StatusNoContent, status)

	status, resp = env.do(t, http.MethodGet, "/v1/sessions/"+id, nil, "")
	require.Equal(t, http.StatusNotFound, status)
	require.NotEmpty(t, resp["error"])
	require.Empty(t, env.reconciliationSvc.Addresses())
}

func TestTransactions(t *testing.T) {
	t.Run("refresh and snapshot", func(t *testing.T) {
		env := newTestEnv(t)
		env.explorerSvc.On("GetTransactionsForAddress", addr).
			Return([]explorer.Transaction{
				{
					TxID:    txid,
					Address: addr,
					Amount: decimal.NullDecimal{
						Decimal: testAmount, Valid: true,
					},
					Status:     "pending",
					ObservedAt: 100,
				},
			}, nil)

		status, resp := env.do(
			t, http.MethodPost, "/v1/addresses/"+addr+"/refresh", nil, "",
		)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, resp["transactions"], 1)

		status, resp = env.do(
			t, http.MethodGet, "/v1/addresses/"+addr+"/transactions", nil, "",
		)
		require.Equal(t, http.StatusOK, status)
		txs := resp["transactions"].([]interface{})
		require.Len(t, txs, 1)
		tx := txs[0].(map[string]interface{})
		require.Equal(t, txid, tx["id"])
		require.Equal(t, "pending", tx["status"])

		status, resp = env.do(t, http.MethodGet, "/v1/transactions/"+txid, nil, "")
		require.Equal(t, http.StatusOK, status)
		tx = resp["transaction"].(map[string]interface{})
		require.Equal(t, addr, tx["address"])
	})

	t.Run("refresh failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.explorerSvc.On("GetTransactionsForAddress", addr).
			Return(nil, errors.New("timeout"))

		status, resp := env.do(
			t, http.MethodPost, "/v1/addresses/"+addr+"/refresh", nil, "",
		)
		require.Equal(t, http.StatusBadGateway, status)
		require.Contains(t, resp["error"], "timeout")

		status, resp = env.do(
			t, http.MethodGet, "/v1/addresses/"+addr+"/transactions", nil, "",
		)
		require.Equal(t, http.StatusOK, status)
		require.Empty(t, resp["transactions"])
	})

	t.Run("list across addresses", func(t *testing.T) {
		env := newTestEnv(t)
		for i, address := range []string{"addr1", "addr2", "addr3"} {
			err := env.reconciliationSvc.ConfirmTransaction(
				address, fmt.Sprintf("tx%d", i), int64(1700000000+i),
			)
			require.NoError(t, err)
		}

		status, resp := env.do(t, http.MethodGet, "/v1/transactions", nil, "")
		require.Equal(t, http.StatusOK, status)
		require.EqualValues(t, 10, resp["count"])
		require.EqualValues(t, 0, resp["skip"])
		txs := resp["transactions"].([]interface{})
		require.Len(t, txs, 3)
		require.Equal(t, "tx2", txs[0].(map[string]interface{})["id"])
		require.Equal(t, "addr2", txs[0].(map[string]interface{})["address"])

		status, resp = env.do(
			t, http.MethodGet, "/v1/transactions?count=1&skip=1", nil, "",
		)
		require.Equal(t, http.StatusOK, status)
		txs = resp["transactions"].([]interface{})
		require.Len(t, txs, 1)
		require.Equal(t, "tx1", txs[0].(map[string]interface{})["id"])

		status, _ = env.do(
			t, http.MethodGet, "/v1/transactions?count=abc", nil, "",
		)
		require.Equal(t, http.StatusBadRequest, status)
		status, _ = env.do(t, http.MethodGet, "/v1/transactions?skip=-1", nil, "")
		require.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		env := newTestEnv(t)

		status, _ := env.do(t, http.MethodGet, "/v1/transactions/"+txid, nil, "")
		require.Equal(t, http.StatusNotFound, status)

		env.explorerSvc.On("GetTransaction", txid).
			Return(nil, explorer.ErrTransactionNotFound)
		status, _ = env.do(
			t, http.MethodGet, "/v1/transactions/"+txid+"?detail=true", nil, "",
		)
		require.Equal(t, http.StatusNotFound, status)
	})

	t.Run("detail", func(t *testing.T) {
		env := newTestEnv(t)
		env.explorerSvc.On("GetTransaction", txid).
			Return(&explorer.TransactionDetail{
				TxID:          txid,
				Confirmations: 1,
				Outputs: []explorer.Output{
					{Index: 0, Address: addr, Amount: testAmount},
				},
			}, nil)

		status, resp := env.do(
			t, http.MethodGet, "/v1/transactions/"+txid+"?detail=true", nil, "",
		)
		require.Equal(t, http.StatusOK, status)
		detail := resp["detail"].(map[string]interface{})
		require.Equal(t, txid, detail["id"])
		require.Len(t, detail["outputs"], 1)
	})
}

func TestVerifyAnchor(t *testing.T) {
	env := newTestEnv(t)
	env.explorerSvc.On("GetTransaction", "anchortx").
		Return(&explorer.TransactionDetail{
			TxID:          "anchortx",
			Confirmations: 1,
			Outputs:       []explorer.Output{{Index: 0, Data: testDigest}},
		}, nil)
	env.explorerSvc.On("GetTransaction", "plaintx").
		Return(&explorer.TransactionDetail{
			TxID:    "plaintx",
			Outputs: []explorer.Output{{Index: 0, Address: addr, Amount: testAmount}},
		}, nil)

	status, resp := env.do(
		t, http.MethodGet,
		"/v1/transactions/anchortx/anchor?fingerprint="+testDigest, nil, "",
	)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, resp["anchored"])

	status, resp = env.do(
		t, http.MethodGet,
		"/v1/transactions/plaintx/anchor?fingerprint="+testDigest, nil, "",
	)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, resp["anchored"])
	require.NotEmpty(t, resp["reason"])

	status, _ = env.do(
		t, http.MethodGet, "/v1/transactions/anchortx/anchor?fingerprint=xyz",
		nil, "",
	)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestWebhooks(t *testing.T) {
	env := newTestEnv(t)
	env.webhookSvc.On(
		"AddWebhook", pubsub.TopicTransactionConfirmed, "http://localhost/cb", "",
	).Return("hookid", nil)
	env.webhookSvc.On("AddWebhook", "INVALID", "http://localhost/cb", "").
		Return("", pubsub.ErrInvalidTopic)
	env.webhookSvc.On("ListWebhooks", "").Return([]ports.Subscription{
		webhook{"hookid", pubsub.TopicTransactionConfirmed, "http://localhost/cb", false},
	}, nil)
	env.webhookSvc.On("RemoveWebhook", "hookid").Return(nil)

	body := fmt.Sprintf(
		`{"topic":"%s","endpoint":"http://localhost/cb"}`,
		pubsub.TopicTransactionConfirmed,
	)
	status, resp := env.do(
		t, http.MethodPost, "/v1/webhooks", []byte(body), "application/json",
	)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "hookid", resp["id"])

	status, _ = env.do(
		t, http.MethodPost, "/v1/webhooks",
		[]byte(`{"topic":"INVALID","endpoint":"http://localhost/cb"}`),
		"application/json",
	)
	require.Equal(t, http.StatusBadRequest, status)

	status, resp = env.do(t, http.MethodGet, "/v1/webhooks", nil, "")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp["webhooks"], 1)

	status, _ = env.do(t, http.MethodDelete, "/v1/webhooks/hookid", nil, "")
	require.Equal(t, http.StatusNoContent, status)
	env.webhookSvc.AssertExpectations(t)
}

func TestStreamStatusChanges(t *testing.T) {
	env := newTestEnv(t)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") +
		"/v1/addresses/" + addr + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Let the handler subscribe after the upgrade.
	time.Sleep(100 * time.Millisecond)

	err = env.reconciliationSvc.ConfirmTransaction(addr, txid, 100)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var change map[string]interface{}
	require.NoError(t, conn.ReadJSON(&change))
	require.Equal(t, addr, change["address"])
	require.Equal(t, txid, change["id"])
	require.Equal(t, "unknown", change["from"])
	require.Equal(t, "confirmed", change["to"])
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
