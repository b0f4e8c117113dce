package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v3"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-notary/internal/config"
	"github.com/tdex-network/tdex-notary/internal/core/application"
	webhookservice "github.com/tdex-network/tdex-notary/internal/core/application/pubsub"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/tdex-network/tdex-notary/internal/infrastructure/pubsub"
	dbbadger "github.com/tdex-network/tdex-notary/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/tdex-notary/internal/infrastructure/storage/db/inmemory"
	httpinterface "github.com/tdex-network/tdex-notary/internal/interfaces/http"
	"github.com/tdex-network/tdex-notary/pkg/crawler"
	"github.com/tdex-network/tdex-notary/pkg/explorer/docapi"
	"github.com/tdex-network/tdex-notary/pkg/pushfeed"
	"github.com/tdex-network/tdex-notary/pkg/stats"
)

const (
	maxReconnectInterval  = time.Minute
	webhookRequestTimeout = 10 * time.Second
	resyncTimeout         = 30 * time.Second
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	datadir := config.GetDatadir()
	dbDir := filepath.Join(datadir, config.DbLocation)
	profilerDir := filepath.Join(datadir, config.ProfilerLocation)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.GetBool(config.EnableProfilerKey) {
		interval := time.Duration(config.GetInt(config.StatsIntervalKey)) * time.Second
		stats.EnableMemoryStatistics(ctx, interval, profilerDir)
	}

	// badger only logs at debug level.
	var dbLogger badger.Logger
	if log.GetLevel() >= log.DebugLevel {
		dbLogger = log.StandardLogger()
	}

	sessionRepository, err := newSessionRepository(dbDir, dbLogger)
	if err != nil {
		log.WithError(err).Fatal("failed to open session db")
	}
	defer sessionRepository.Close()

	explorerSvc, err := docapi.NewService(docapi.Opts{
		APIURL:            config.GetString(config.LedgerAPIURLKey),
		RequestTimeout:    config.GetDuration(config.LedgerRequestTimeoutKey),
		RequestsPerSecond: config.GetInt(config.LedgerRateLimitKey),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to ledger service")
	}

	reconciliationSvc := application.NewReconciliationService(explorerSvc)
	defer reconciliationSvc.Stop()

	feed, err := pushfeed.NewService(pushfeed.Opts{
		URL:                  config.GetString(config.PushFeedURLKey),
		Secret:               config.GetString(config.PushFeedSecretKey),
		ReconnectInterval:    config.GetDuration(config.PushFeedReconnectIntervalKey),
		MaxReconnectInterval: maxReconnectInterval,
		OnReconnect: func() {
			resyncCtx, cancel := context.WithTimeout(ctx, resyncTimeout)
			defer cancel()
			if err := reconciliationSvc.RefreshAll(resyncCtx); err != nil {
				log.WithError(err).Warn("failed to resync ledger after reconnection")
			}
		},
		ErrorHandler: func(err error) {
			log.WithError(err).Warn("push feed")
		},
	})
	if err != nil {
		log.WithError(err).Fatal("invalid push feed config")
	}
	defer feed.Close()

	// An unreachable push source doesn't fail the subscription, the feed
	// keeps dialing in background while the crawler reconciles through pull
	// queries.
	confirmations, err := reconciliationSvc.ListenForConfirmations(feed)
	if err != nil {
		log.WithError(err).Fatal("failed to listen for confirmations")
	}
	defer confirmations.Cancel()

	crawlerSvc := crawler.NewService(crawler.Opts{
		Interval:     config.GetDuration(config.RefreshIntervalKey),
		RequestLimit: config.GetInt(config.RefreshLimitKey),
		RequestBurst: config.GetInt(config.RefreshBurstKey),
		ErrorHandler: func(err error) {
			log.WithError(err).Warn("crawler")
		},
	})

	registrationSvc := application.NewRegistrationService(
		sessionRepository, explorerSvc, reconciliationSvc, crawlerSvc,
	)
	if err := registrationSvc.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to resume registration sessions")
	}
	defer registrationSvc.Stop()

	pubsubDir := ""
	if config.GetString(config.DBTypeKey) == config.DBBadger {
		pubsubDir = dbDir
	}
	pubsubSvc, err := pubsub.NewService(pubsubDir, dbLogger, webhookRequestTimeout)
	if err != nil {
		log.WithError(err).Fatal("failed to open webhook db")
	}
	webhookSvc := webhookservice.NewService(pubsubSvc)
	if err := webhookSvc.ListenForStatusChanges(reconciliationSvc); err != nil {
		log.WithError(err).Fatal("failed to listen for status changes")
	}
	defer webhookSvc.Close()

	httpSvc, err := httpinterface.NewService(httpinterface.ServiceOpts{
		Port:               config.GetInt(config.ListeningPortKey),
		CORSAllowedOrigins: config.GetStringSlice(config.CORSAllowedOriginsKey),
		RegistrationSvc:    registrationSvc,
		ReconciliationSvc:  reconciliationSvc,
		WebhookSvc:         webhookSvc,
	})
	if err != nil {
		log.WithError(err).Fatal("invalid http interface config")
	}
	if err := httpSvc.Start(); err != nil {
		log.WithError(err).Fatal("failed to start http interface")
	}
	defer httpSvc.Stop()

	log.Info("notary daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down notary daemon")
}

func newSessionRepository(
	dbDir string, logger badger.Logger,
) (domain.SessionRepository, error) {
	switch config.GetString(config.DBTypeKey) {
	case config.DBInMemory:
		return inmemory.NewSessionRepositoryImpl(), nil
	default:
		db, err := dbbadger.NewDbManager(dbDir, logger)
		if err != nil {
			return nil, err
		}
		return dbbadger.NewSessionRepositoryImpl(db), nil
	}
}
