package pubsub

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/tdex-network/tdex-notary/internal/core/ports"
)

// Subscription is a webhook endpoint registered for a topic, as stored in
// the db.
type Subscription struct {
	ID        string `json:"id"`
	Topic     string `json:"topic" badgerholdIndex:"Topic"`
	Endpoint  string `json:"endpoint"`
	Secret    string `json:"secret"`
	CreatedAt int64  `json:"createdAt"`
}

type subscriptions []Subscription

func (s subscriptions) toPortable() []ports.Subscription {
	subs := make([]ports.Subscription, 0, len(s))
	for i := range s {
		subs = append(subs, webhook{s[i]})
	}
	return subs
}

func NewSubscription(topic, endpoint, secret string) (*Subscription, error) {
	if len(topic) <= 0 {
		return nil, fmt.Errorf("missing topic")
	}
	u, err := url.ParseRequestURI(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid webhook endpoint, must be a valid http URI")
	}

	return &Subscription{
		ID:        uuid.New().String(),
		Topic:     topic,
		Endpoint:  endpoint,
		Secret:    secret,
		CreatedAt: time.Now().Unix(),
	}, nil
}

func (s Subscription) IsSecured() bool {
	return len(s.Secret) > 0
}

// webhook exposes a stored subscription without leaking its secret.
type webhook struct {
	sub Subscription
}

func (w webhook) Topic() string    { return w.sub.Topic }
func (w webhook) Id() string       { return w.sub.ID }
func (w webhook) NotifyAt() string { return w.sub.Endpoint }
func (w webhook) IsSecured() bool  { return w.sub.IsSecured() }
