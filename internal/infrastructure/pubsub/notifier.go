package pubsub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

// maxReplySize bounds the part of a webhook reply kept for error reporting.
const maxReplySize = 512

// notifier delivers the status change payloads to webhook endpoints.
type notifier struct {
	client  *http.Client
	timeout time.Duration
}

func newNotifier(timeout time.Duration) *notifier {
	return &notifier{&http.Client{}, timeout}
}

// notify POSTs the payload to the subscription endpoint. Secured
// subscriptions get a HS256 bearer token signed with their secret. Any reply
// other than 2xx is an error.
func (n *notifier) notify(sub Subscription, topic, payload string) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, sub.Endpoint, strings.NewReader(payload),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notary-Topic", topic)

	if sub.IsSecured() {
		token, err := signToken(sub.Secret)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reply, _ := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
		return fmt.Errorf(
			"webhook %s replied with status %d: %s",
			sub.ID, resp.StatusCode, strings.TrimSpace(string(reply)),
		)
	}
	return nil
}

func signToken(secret string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(5 * time.Minute).Unix(),
		Issuer:    "tdex-notary",
	})
	return token.SignedString([]byte(secret))
}
