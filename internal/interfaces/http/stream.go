package httpinterface

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are already filtered by the cors middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamStatusChanges upgrades the connection to a websocket and forwards
// every status change of the address, or of any address for "*", until the
// client goes away.
func (h *handler) streamStatusChanges(w http.ResponseWriter, req *http.Request) {
	address := chi.URLParam(req, "address")

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.WithError(err).Debug("http: failed to upgrade stream connection")
		return
	}
	defer conn.Close()

	lock := &sync.Mutex{}
	cancel, err := h.reconciliationSvc.Subscribe(
		address,
		func(change domain.StatusChange) {
			lock.Lock()
			defer lock.Unlock()

			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(change); err != nil {
				log.WithError(err).Debugf(
					"http: failed to forward status change of tx %s", change.TxID,
				)
			}
		},
	)
	if err != nil {
		lock.Lock()
		conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, err.Error()),
		)
		lock.Unlock()
		return
	}
	defer cancel()

	log.Debugf("http: streaming status changes for address %s", address)

	// Incoming messages are ignored, reading only detects the client closing
	// the connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	log.Debugf("http: closed status change stream for address %s", address)
}
