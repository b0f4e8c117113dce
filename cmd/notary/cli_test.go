package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// sha256("abc")
const testDigest = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func newFakeDaemon(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		reader, err := r.MultipartReader()
		require.NoError(t, err)
		part, err := reader.NextPart()
		require.NoError(t, err)
		require.Equal(t, "file", part.FormName())
		buf, err := io.ReadAll(part)
		require.NoError(t, err)
		require.Equal(t, r.URL.Query().Get("size"), "3")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "session1", "address": "addr1", "content": string(buf),
		})
	})
	mux.HandleFunc("/v1/sessions/session1", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "session1"})
	})
	mux.HandleFunc("/v1/sessions/unknown", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
	})
	mux.HandleFunc("/v1/addresses/addr1/transactions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"source": "snapshot"})
	})
	mux.HandleFunc("/v1/addresses/addr1/refresh", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		json.NewEncoder(w).Encode(map[string]interface{}{"source": "refresh"})
	})
	mux.HandleFunc("/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"source": "all",
			"count":  r.URL.Query().Get("count"),
			"skip":   r.URL.Query().Get("skip"),
		})
	})
	mux.HandleFunc("/v1/transactions/tx1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"detail": r.URL.Query().Get("detail"),
		})
	})
	mux.HandleFunc("/v1/webhooks", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "http://localhost/cb", req["endpoint"])
		json.NewEncoder(w).Encode(map[string]string{"id": "hook-" + req["topic"]})
	})
	mux.HandleFunc("/v1/addresses/addr1/stream", func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteJSON(map[string]string{"id": "tx1", "to": "confirmed"})
		conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func runCLI(t *testing.T, server *httptest.Server, args ...string) (string, error) {
	app := newApp()
	out := &bytes.Buffer{}
	app.Writer = out
	app.ErrWriter = out

	cmd := append(
		[]string{"notary", "--rpcserver", strings.TrimPrefix(server.URL, "http://")},
		args...,
	)
	err := app.Run(cmd)
	return out.String(), err
}

func writeDocument(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "document.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
	return path
}

func TestFingerprint(t *testing.T) {
	server := newFakeDaemon(t)

	out, err := runCLI(t, server, "fingerprint", writeDocument(t))
	require.NoError(t, err)
	require.Equal(t, testDigest, strings.TrimSpace(out))

	_, err = runCLI(t, server, "fingerprint")
	require.Error(t, err)
	var e *invalidUsageError
	require.ErrorAs(t, err, &e)
}

func TestRegister(t *testing.T) {
	server := newFakeDaemon(t)

	out, err := runCLI(t, server, "register", writeDocument(t))
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "session1", resp["id"])
	require.Equal(t, "abc", resp["content"])
}

func TestSession(t *testing.T) {
	server := newFakeDaemon(t)

	out, err := runCLI(t, server, "session", "session1")
	require.NoError(t, err)
	require.Contains(t, out, "session1")

	out, err = runCLI(t, server, "close", "session1")
	require.NoError(t, err)
	require.Contains(t, out, "session session1 closed")

	_, err = runCLI(t, server, "session", "unknown")
	require.Error(t, err)
	var e *apiError
	require.ErrorAs(t, err, &e)
	require.Equal(t, http.StatusNotFound, e.Status)
	require.Equal(t, "session not found", e.Message)
}

func TestTransactions(t *testing.T) {
	server := newFakeDaemon(t)

	out, err := runCLI(t, server, "transactions", "addr1")
	require.NoError(t, err)
	require.Contains(t, out, "snapshot")

	out, err = runCLI(t, server, "transactions", "--refresh", "addr1")
	require.NoError(t, err)
	require.Contains(t, out, "refresh")

	out, err = runCLI(t, server, "transactions")
	require.NoError(t, err)
	require.Contains(t, out, `"source": "all"`)
	require.Contains(t, out, `"count": "10"`)
	require.Contains(t, out, `"skip": "0"`)

	out, err = runCLI(t, server, "transactions", "--count", "5", "--skip", "20")
	require.NoError(t, err)
	require.Contains(t, out, `"count": "5"`)
	require.Contains(t, out, `"skip": "20"`)

	_, err = runCLI(t, server, "transactions", "--refresh")
	require.Error(t, err)

	out, err = runCLI(t, server, "transaction", "--detail", "tx1")
	require.NoError(t, err)
	require.Contains(t, out, `"detail": "true"`)
}

func TestWebhook(t *testing.T) {
	server := newFakeDaemon(t)

	out, err := runCLI(
		t, server, "addwebhook",
		"--action", "TRANSACTION_CONFIRMED", "--endpoint", "http://localhost/cb",
	)
	require.NoError(t, err)
	require.Contains(t, out, "hook-TRANSACTION_CONFIRMED")
}

func TestWatch(t *testing.T) {
	server := newFakeDaemon(t)

	out, err := runCLI(t, server, "watch", "addr1")
	require.NoError(t, err)
	require.Contains(t, out, `"to": "confirmed"`)
}
