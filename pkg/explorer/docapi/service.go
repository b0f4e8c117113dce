// Package docapi implements explorer.Service on top of the REST API exposed
// by the document registration backend.
package docapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tdex-network/tdex-notary/pkg/circuitbreaker"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
	"go.uber.org/ratelimit"
)

const (
	defaultRequestTimeout    = 15 * time.Second
	defaultRequestsPerSecond = 10
)

// Opts defines the parameters needed for creating a docapi service with
// NewService.
type Opts struct {
	// APIURL is the base url of the REST API, ie. http://localhost:5000/api.
	APIURL            string
	RequestTimeout    time.Duration
	RequestsPerSecond int
	// SkipHealthCheck disables the connectivity check done at creation.
	SkipHealthCheck bool
}

type docapi struct {
	apiURL string
	client *client
}

// NewService returns a new docapi service as an explorer.Service interface.
func NewService(opts Opts) (explorer.Service, error) {
	if _, err := url.ParseRequestURI(opts.APIURL); err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}

	svc := &docapi{
		apiURL: strings.TrimSuffix(opts.APIURL, "/"),
		client: &client{
			http:    &http.Client{Timeout: timeout},
			limiter: ratelimit.New(rps),
			cb:      circuitbreaker.NewCircuitBreaker("docapi"),
		},
	}

	if !opts.SkipHealthCheck {
		if err := svc.healthCheck(); err != nil {
			return nil, fmt.Errorf("health check: %w", err)
		}
	}

	return svc, nil
}

func (d *docapi) healthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	endpoint := fmt.Sprintf("%s/block/count", d.apiURL)
	resp, err := d.client.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return resp.decode(&envelope{})
}
