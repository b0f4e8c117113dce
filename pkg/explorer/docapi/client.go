package docapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
	"go.uber.org/ratelimit"
)

type client struct {
	http    *http.Client
	limiter ratelimit.Limiter
	cb      *gobreaker.CircuitBreaker
}

type response struct {
	status int
	body   []byte
}

// do performs the request through the rate limiter and the circuit breaker.
// Only transport errors and 5xx replies count as breaker failures, 4xx
// replies are returned to the caller as regular responses.
func (c *client) do(
	ctx context.Context, method, endpoint string, payload interface{},
) (*response, error) {
	c.limiter.Take()

	res, err := c.cb.Execute(func() (interface{}, error) {
		var body io.Reader
		if payload != nil {
			buf, err := json.Marshal(payload)
			if err != nil {
				return nil, err
			}
			body = bytes.NewReader(buf)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		rs, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer rs.Body.Close()

		buf, err := io.ReadAll(rs.Body)
		if err != nil {
			return nil, err
		}

		resp := &response{rs.StatusCode, buf}
		if rs.StatusCode >= http.StatusInternalServerError {
			return nil, resp.err()
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*response), nil
}

// envelope is the common part of every reply of the backend.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (e envelope) failed() bool {
	return e.Status == "error"
}

func (r *response) err() error {
	env := envelope{}
	//nolint
	json.Unmarshal(r.body, &env)

	msg := env.Message
	if len(msg) <= 0 {
		msg = http.StatusText(r.status)
	}
	return fmt.Errorf("%s (status %d)", msg, r.status)
}

// decode unmarshals the reply into out, which must embed envelope, or
// returns an error if the backend reported a failure.
func (r *response) decode(out interface{ failed() bool }) error {
	if r.status != http.StatusOK {
		return r.err()
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("%w: %s", explorer.ErrInvalidResponse, err)
	}
	if out.failed() {
		return r.err()
	}
	return nil
}
