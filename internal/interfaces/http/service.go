package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-notary/internal/core/application"
	"github.com/tdex-network/tdex-notary/internal/interfaces"
)

const shutdownTimeout = 5 * time.Second

// ServiceOpts holds the services and settings of the HTTP interface.
type ServiceOpts struct {
	Port               int
	CORSAllowedOrigins []string

	RegistrationSvc   application.RegistrationService
	ReconciliationSvc application.ReconciliationService
	WebhookSvc        WebhookService
}

func (o ServiceOpts) validate() error {
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("invalid listening port %d", o.Port)
	}
	if o.RegistrationSvc == nil {
		return fmt.Errorf("missing registration service")
	}
	if o.ReconciliationSvc == nil {
		return fmt.Errorf("missing reconciliation service")
	}
	if o.WebhookSvc == nil {
		return fmt.Errorf("missing webhook service")
	}
	return nil
}

type service struct {
	opts   ServiceOpts
	server *http.Server
}

func NewService(opts ServiceOpts) (interfaces.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid opts: %s", err)
	}
	return &service{opts: opts}, nil
}

func (s *service) Start() error {
	router := NewRouter(
		s.opts.RegistrationSvc, s.opts.ReconciliationSvc, s.opts.WebhookSvc,
		s.opts.CORSAllowedOrigins,
	)
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http interface stopped unexpectedly")
		}
	}()

	log.Infof("http interface listening on port %d", s.opts.Port)
	return nil
}

func (s *service) Stop() {
	if s.server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop http interface")
	}
	log.Debug("disabled http interface")
}

// NewRouter returns the handler serving the notary REST API, the status
// change stream and the prometheus metrics.
func NewRouter(
	registrationSvc application.RegistrationService,
	reconciliationSvc application.ReconciliationService,
	webhookSvc WebhookService,
	allowedOrigins []string,
) http.Handler {
	h := newHandler(registrationSvc, reconciliationSvc, webhookSvc)

	if len(allowedOrigins) <= 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/fingerprint", h.fingerprint)
		r.Post("/documents", h.uploadDocument)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.listSessions)
			r.Get("/{id}", h.getSession)
			r.Delete("/{id}", h.closeSession)
			r.Post("/{id}/pay", h.paySession)
		})

		r.Route("/addresses/{address}", func(r chi.Router) {
			r.Get("/transactions", h.listTransactions)
			r.Post("/refresh", h.refreshAddress)
			r.Get("/stream", h.streamStatusChanges)
		})

		r.Get("/transactions", h.listAllTransactions)
		r.Route("/transactions/{id}", func(r chi.Router) {
			r.Get("/", h.getTransaction)
			r.Get("/anchor", h.verifyAnchor)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", h.listWebhooks)
			r.Post("/", h.addWebhook)
			r.Delete("/{id}", h.removeWebhook)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
