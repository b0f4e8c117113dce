package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-notary/internal/core/application"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/tdex-network/tdex-notary/internal/core/ports"
)

const (
	TopicTransactionPending   = "TRANSACTION_PENDING"
	TopicTransactionConfirmed = "TRANSACTION_CONFIRMED"
)

var (
	// ErrInvalidTopic ...
	ErrInvalidTopic = errors.New("invalid webhook topic")
)

// Service publishes the transaction status changes to the registered
// webhooks.
type Service struct {
	pubsub ports.PubSub
	cancel func()
}

func NewService(pubsub ports.PubSub) *Service {
	return &Service{pubsub: pubsub}
}

func (s *Service) AddWebhook(
	_ context.Context, topic, endpoint, secret string,
) (string, error) {
	if !isValidTopic(topic) {
		return "", ErrInvalidTopic
	}
	return s.pubsub.Subscribe(topic, endpoint, secret)
}

func (s *Service) RemoveWebhook(_ context.Context, id string) error {
	return s.pubsub.Unsubscribe(ports.UnspecifiedTopic, id)
}

func (s *Service) ListWebhooks(
	_ context.Context, topic string,
) ([]ports.Subscription, error) {
	if topic != ports.UnspecifiedTopic && !isValidTopic(topic) {
		return nil, ErrInvalidTopic
	}
	return s.pubsub.ListSubscriptionsForTopic(topic), nil
}

// PublishStatusChange notifies the webhooks registered for the new status
// of the transaction.
func (s *Service) PublishStatusChange(change domain.StatusChange) error {
	topic := topicForStatus(change.To)
	if len(topic) <= 0 {
		return nil
	}

	tx := change.Transaction
	payload := map[string]interface{}{
		"event":   topic,
		"address": change.Address,
		"txid":    change.TxID,
		"from":    change.From.String(),
		"status":  change.To.String(),
	}
	if tx.Amount.Valid {
		payload["amount"] = tx.Amount.Decimal.String()
	}
	if tx.ObservedAt > 0 {
		payload["observed_at"] = tx.ObservedAt
		payload["observed_date"] = time.Unix(tx.ObservedAt, 0).UTC().Format(time.RFC3339)
	}
	message, _ := json.Marshal(payload)

	return s.pubsub.Publish(topic, string(message))
}

// ListenForStatusChanges publishes every status change notified by the
// reconciliation service until Close is called.
func (s *Service) ListenForStatusChanges(
	reconciliationSvc application.ReconciliationService,
) error {
	cancel, err := reconciliationSvc.Subscribe(
		application.AnyAddress,
		func(change domain.StatusChange) {
			if err := s.PublishStatusChange(change); err != nil {
				log.WithError(err).Warnf(
					"failed to publish status change of tx %s", change.TxID,
				)
			}
		},
	)
	if err != nil {
		return err
	}
	s.cancel = cancel
	return nil
}

func (s *Service) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	//nolint
	s.pubsub.Close()
}

func topicForStatus(status domain.TxStatus) string {
	switch status {
	case domain.TxStatusPending:
		return TopicTransactionPending
	case domain.TxStatusConfirmed:
		return TopicTransactionConfirmed
	default:
		return ""
	}
}

func isValidTopic(topic string) bool {
	switch topic {
	case TopicTransactionPending, TopicTransactionConfirmed, ports.AnyTopic:
		return true
	default:
		return false
	}
}
