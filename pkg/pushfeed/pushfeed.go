// Package pushfeed maintains a long-lived websocket connection to the push
// source of payment confirmations and fans out the received events to
// registered handlers.
//
// The connection is opened in background when the first handler subscribes
// and torn down when the last one cancels. Failed dials and dropped
// connections are retried transparently; events sent while disconnected are
// lost, so consumers are expected to reconcile through a pull query once the
// OnReconnect hook fires.
package pushfeed

import "time"

const (
	// EventConfirmed is the type of the event notifying a confirmed payment.
	EventConfirmed = "confirmed"
	// legacyEventConfirmed is the name used by older backends.
	legacyEventConfirmed = "payment_confirmed"

	defaultReconnectInterval    = 2 * time.Second
	defaultMaxReconnectInterval = time.Minute
	defaultHandshakeTimeout     = 10 * time.Second
)

// Event is a notification received from the push source.
type Event struct {
	Type       string `json:"event"`
	Address    string `json:"address"`
	TxID       string `json:"id"`
	ObservedAt int64  `json:"observedAt"`
}

// Handler is invoked once per delivered event. Handlers of the same
// subscription are never invoked concurrently, and never block the
// connection read loop.
type Handler func(event Event)

// Subscription is the cancellation handle returned by Subscribe.
type Subscription interface {
	ID() string
	// Cancel stops delivery to the subscription's handler. It is safe to
	// call multiple times.
	Cancel()
}

// Service is the interface for the push feed.
type Service interface {
	// Subscribe registers the handler, starting to connect in background if
	// this is the first active subscription. Connection failures never make
	// Subscribe fail, they are reported to the ErrorHandler instead.
	Subscribe(handler Handler) (Subscription, error)
	// NumSubscriptions returns the number of active subscriptions.
	NumSubscriptions() int
	// IsConnected returns whether the connection is currently open.
	IsConnected() bool
	// Close cancels all subscriptions and tears down the connection. The
	// service cannot be reused afterwards.
	Close()
}
