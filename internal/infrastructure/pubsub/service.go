package pubsub

import (
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/tdex-notary/internal/core/ports"
	"github.com/tdex-network/tdex-notary/pkg/circuitbreaker"
	"golang.org/x/sync/errgroup"
)

const defaultRequestTimeout = 15 * time.Second

type service struct {
	store    *store
	notifier *notifier
	cb       *gobreaker.CircuitBreaker
}

// NewService returns a webhook pubsub service whose subscriptions are stored
// in a badger db in the given directory, or in memory if empty.
func NewService(
	datadir string, logger badger.Logger, requestTimeout time.Duration,
) (ports.PubSub, error) {
	store, err := newStore(datadir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening pubsub db: %w", err)
	}
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return &service{
		store:    store,
		notifier: newNotifier(requestTimeout),
		cb:       circuitbreaker.NewCircuitBreaker("webhook"),
	}, nil
}

func (ws *service) Subscribe(topic, endpoint, secret string) (string, error) {
	sub, err := NewSubscription(topic, endpoint, secret)
	if err != nil {
		return "", err
	}

	if err := ws.store.add(*sub); err != nil {
		return "", err
	}
	return sub.ID, nil
}

func (ws *service) Unsubscribe(_, id string) error {
	sub, err := ws.store.get(id)
	if err != nil {
		return err
	}
	if sub == nil {
		return fmt.Errorf("webhook not found")
	}
	return ws.store.remove(id)
}

func (ws *service) ListSubscriptionsForTopic(topic string) []ports.Subscription {
	return ws.listSubscriptionsForTopic(topic).toPortable()
}

func (ws *service) Publish(topic string, message string) error {
	return ws.publishForTopic(topic, message)
}

func (ws *service) Close() error {
	return ws.store.close()
}

func (ws *service) listSubscriptionsForTopic(topic string) subscriptions {
	subs, _ := ws.store.listForTopic(topic)
	if topic != ports.AnyTopic && topic != ports.UnspecifiedTopic {
		subsForAnyTopic, _ := ws.store.listForTopic(ports.AnyTopic)
		subs = append(subs, subsForAnyTopic...)
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].ID < subs[j].ID
	})
	return subs
}

func (ws *service) publishForTopic(topic, message string) error {
	subs := ws.listSubscriptionsForTopic(topic)

	eg := &errgroup.Group{}
	for i := range subs {
		sub := subs[i]
		eg.Go(func() error {
			// An open breaker skips the endpoints until they recover.
			_, err := ws.cb.Execute(func() (interface{}, error) {
				return nil, ws.notifier.notify(sub, topic, message)
			})
			return err
		})
	}
	return eg.Wait()
}
