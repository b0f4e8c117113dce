// Package crawler periodically runs a pull query for every observed item,
// sharing one rate limiter among all of them so that the number of requests
// sent to the remote ledger is bounded regardless of how many items are
// watched.
package crawler

import (
	"context"

	"golang.org/x/time/rate"
)

// Event are emitted through a channel during observation.
type Event interface {
	Type() EventType
}

// Observable represent object that can be periodically observed.
type Observable interface {
	observe(ctx context.Context, rateLimiter *rate.Limiter) (Event, error)
	key() string
}

// Service is the interface for Crawler
type Service interface {
	Start()
	Stop()
	AddObservable(observable Observable)
	RemoveObservable(observable Observable)
	IsObserving(key string) bool
	NumObservables() int
	GetEventChannel() chan Event
}
