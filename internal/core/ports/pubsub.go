package ports

// AnyTopic subscribes a webhook for the status changes of every topic.
const AnyTopic = "*"

// UnspecifiedTopic matches the subscriptions of all topics when listing or
// removing webhooks.
const UnspecifiedTopic = ""

// Subscription is the public info of a registered webhook. The secret never
// leaves the pubsub service.
type Subscription interface {
	Topic() string
	Id() string
	IsSecured() bool
	NotifyAt() string
}

// PubSub defines the methods of a pubsub service whose subscribers are
// notified through HTTP callbacks.
type PubSub interface {
	// Subscribe registers the endpoint for the topic and returns the id of
	// the subscription.
	Subscribe(topic, endpoint, secret string) (string, error)
	// Unsubscribe removes the subscription with the given id.
	Unsubscribe(topic, id string) error
	// ListSubscriptionsForTopic returns the subscriptions notified for the
	// topic, including those registered for AnyTopic.
	ListSubscriptionsForTopic(topic string) []Subscription
	// Publish sends the message to every subscription notified for the topic.
	Publish(topic string, message string) error
	// Close releases the subscription store.
	Close() error
}
