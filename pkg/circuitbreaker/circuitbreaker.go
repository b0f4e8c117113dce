package circuitbreaker

import (
	"github.com/sony/gobreaker"

	log "github.com/sirupsen/logrus"
)

var (
	// MaxNumOfFailingRequests is the minimum number of requests in the
	// observation window before the breaker can trip.
	MaxNumOfFailingRequests = 10
	// FailingRatio is the ratio of failing requests that trips the breaker.
	FailingRatio = 0.6
)

// NewCircuitBreaker is a factory function returning a *gobreaker.CircuitBreaker
// that trips once the number of requests has exceeded the tweakable
// MaxNumOfFailingRequests cap and the failing ratio has met FailingRatio.
// State changes are logged.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) > MaxNumOfFailingRequests &&
				ratio >= FailingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Debugf("circuit breaker %s moved from %s to %s", name, from, to)
		},
	})
}
