package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/tdex-network/tdex-notary/pkg/crawler"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
	"github.com/tdex-network/tdex-notary/pkg/fingerprint"
	"github.com/tdex-network/tdex-notary/pkg/stats"
)

// RegistrationService manages the lifecycle of the registration sessions:
// a document fingerprint is bound to a payment address, the address is
// watched until a confirmed payment unlocks the document.
// The service can't be restarted once stopped.
type RegistrationService interface {
	// Start resumes the open sessions and starts watching their addresses.
	// It returns ErrServiceUnavailable if the service has been stopped.
	Start(ctx context.Context) error
	// Stop stops watching all addresses. Sessions are left in the store.
	Stop()
	// Open registers the given fingerprint and opens a session for the
	// assigned address. A failure is returned as *RegistrationError and no
	// retry is attempted. It returns ErrServiceUnavailable if the service has
	// been stopped.
	Open(ctx context.Context, digest string) (*domain.Session, error)
	// Close drops the session. It's safe to close a session multiple times.
	Close(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	// StartUpload fingerprints the document in background and opens a
	// session for it, unless the job is cancelled before.
	StartUpload(ctx context.Context, r io.Reader, size int64) *UploadJob
	// Pay sends the requested amount to the session address and returns the
	// hash of the payment tx.
	Pay(ctx context.Context, sessionID string) (string, error)
	// VerifyAnchor checks that the given tx anchors the document fingerprint
	// in an OP_RETURN output.
	VerifyAnchor(ctx context.Context, txid, digest string) error
}

type registrationService struct {
	sessionRepository    domain.SessionRepository
	explorerSvc          explorer.Service
	reconciliationSvc    ReconciliationService
	crawlerSvc           crawler.Service
	cancelStatusListener func()
	lock                 *sync.Mutex
	started              bool
	stopped              bool
}

func NewRegistrationService(
	sessionRepository domain.SessionRepository,
	explorerSvc explorer.Service,
	reconciliationSvc ReconciliationService,
	crawlerSvc crawler.Service,
) RegistrationService {
	return newRegistrationService(
		sessionRepository, explorerSvc, reconciliationSvc, crawlerSvc,
	)
}

func newRegistrationService(
	sessionRepository domain.SessionRepository,
	explorerSvc explorer.Service,
	reconciliationSvc ReconciliationService,
	crawlerSvc crawler.Service,
) *registrationService {
	return &registrationService{
		sessionRepository: sessionRepository,
		explorerSvc:       explorerSvc,
		reconciliationSvc: reconciliationSvc,
		crawlerSvc:        crawlerSvc,
		lock:              &sync.Mutex{},
	}
}

func (s *registrationService) Start(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.stopped {
		return ErrServiceUnavailable
	}
	if s.started {
		return nil
	}

	cancel, err := s.reconciliationSvc.Subscribe(
		AnyAddress, s.handleStatusChange,
	)
	if err != nil {
		return err
	}

	go s.crawlerSvc.Start()
	go s.handleCrawlerEvents()

	sessions, err := s.sessionRepository.ListSessions(ctx)
	if err != nil {
		cancel()
		s.crawlerSvc.Stop()
		return err
	}

	resumed := 0
	for _, session := range sessions {
		if session.IsSettled() {
			continue
		}
		s.watchAddress(ctx, session.Address)
		resumed++
	}
	stats.OpenSessions.Set(float64(len(sessions)))

	s.cancelStatusListener = cancel
	s.started = true

	if resumed > 0 {
		log.Infof("resumed %d open session(s)", resumed)
	}
	return nil
}

func (s *registrationService) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	if !s.started {
		return
	}
	s.started = false
	s.cancelStatusListener()
	s.crawlerSvc.Stop()
}

func (s *registrationService) isStopped() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stopped
}

func (s *registrationService) Open(
	ctx context.Context, digest string,
) (*domain.Session, error) {
	if s.isStopped() {
		return nil, ErrServiceUnavailable
	}

	fp, err := fingerprint.ParseDigest(digest)
	if err != nil {
		return nil, &RegistrationError{Fingerprint: digest, Err: err}
	}

	registration, err := s.explorerSvc.Register(ctx, fp.String())
	if err != nil {
		return nil, &RegistrationError{Fingerprint: fp.String(), Err: err}
	}

	amount := decimal.Zero
	if registration.Amount.Valid {
		amount = registration.Amount.Decimal
	}
	session, err := domain.NewSession(fp.String(), registration.Address, amount)
	if err != nil {
		return nil, &RegistrationError{Fingerprint: fp.String(), Err: err}
	}

	if err := s.sessionRepository.AddSession(ctx, *session); err != nil {
		return nil, err
	}
	stats.OpenSessions.Inc()

	log.Infof(
		"opened session %s for document %s, payment address %s",
		session.ID, session.Fingerprint, session.Address,
	)

	s.watchAddress(ctx, session.Address)
	return s.GetSession(ctx, session.ID)
}

func (s *registrationService) Close(
	ctx context.Context, sessionID string,
) error {
	session, err := s.sessionRepository.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	if err := s.sessionRepository.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	stats.OpenSessions.Dec()

	others, err := s.sessionRepository.GetSessionsForAddress(
		ctx, session.Address,
	)
	if err != nil {
		return err
	}
	if len(others) <= 0 {
		s.unwatchAddress(session.Address)
		s.reconciliationSvc.Release(session.Address)
	}

	log.Infof("closed session %s", sessionID)
	return nil
}

func (s *registrationService) GetSession(
	ctx context.Context, sessionID string,
) (*domain.Session, error) {
	return s.sessionRepository.GetSession(ctx, sessionID)
}

func (s *registrationService) ListSessions(
	ctx context.Context,
) ([]domain.Session, error) {
	return s.sessionRepository.ListSessions(ctx)
}

func (s *registrationService) StartUpload(
	ctx context.Context, r io.Reader, size int64,
) *UploadJob {
	ctx, cancel := context.WithCancel(ctx)
	job := newUploadJob(cancel)

	go func() {
		defer cancel()

		digest, err := fingerprint.FromSizedReader(ctx, r, size)
		if ctx.Err() != nil {
			job.finish(UploadResult{Err: ErrUploadCancelled})
			return
		}
		if err != nil {
			job.finish(UploadResult{Err: err})
			return
		}

		session, err := s.Open(ctx, digest.String())
		job.finish(UploadResult{Fingerprint: digest, Session: session, Err: err})
	}()

	return job
}

func (s *registrationService) Pay(
	ctx context.Context, sessionID string,
) (string, error) {
	session, err := s.sessionRepository.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session.IsSettled() {
		return "", ErrSessionSettled
	}

	txid, err := s.explorerSvc.SendPayment(
		ctx, session.Address, session.RequestedAmount,
	)
	if err != nil {
		return "", fmt.Errorf(
			"failed to pay session %s: %w", sessionID, err,
		)
	}

	log.Infof(
		"sent payment %s of %s to address %s",
		txid, session.RequestedAmount, session.Address,
	)
	return txid, nil
}

func (s *registrationService) VerifyAnchor(
	ctx context.Context, txid, digest string,
) error {
	fp, err := fingerprint.ParseDigest(digest)
	if err != nil {
		return err
	}

	detail, err := s.reconciliationSvc.GetTransactionDetail(ctx, txid)
	if err != nil {
		return err
	}

	data, ok := detail.OpReturnData()
	if !ok {
		return ErrAnchorNotFound
	}
	if !strings.EqualFold(data, fp.String()) {
		return ErrAnchorMismatch
	}
	return nil
}

// watchAddress seeds the ledger view of the address with a pull query and
// adds it to the periodically refreshed ones. A failing seed is not fatal
// since the crawler retries at every tick.
func (s *registrationService) watchAddress(ctx context.Context, address string) {
	s.reconciliationSvc.Track(address)
	if _, err := s.reconciliationSvc.Refresh(ctx, address); err != nil {
		log.WithError(err).Warn("failed to seed ledger view")
	}
	s.crawlerSvc.AddObservable(
		crawler.NewAddressObservable(address, s.refresh),
	)
	s.checkSettlement(ctx, address)
}

func (s *registrationService) unwatchAddress(address string) {
	s.crawlerSvc.RemoveObservable(crawler.NewAddressObservable(address, nil))
}

func (s *registrationService) refresh(ctx context.Context, address string) error {
	_, err := s.reconciliationSvc.Refresh(ctx, address)
	return err
}

func (s *registrationService) handleStatusChange(change domain.StatusChange) {
	if !change.To.IsConfirmed() {
		return
	}
	s.checkSettlement(context.Background(), change.Address)
}

// checkSettlement settles every open session of the address paid by a
// confirmed tx of its ledger view, and stops watching the address once no
// open session is left.
func (s *registrationService) checkSettlement(
	ctx context.Context, address string,
) {
	sessions, err := s.sessionRepository.GetSessionsForAddress(ctx, address)
	if err != nil {
		log.WithError(err).Warnf("failed to get sessions for address %s", address)
		return
	}
	if len(sessions) <= 0 {
		return
	}

	txs := s.reconciliationSvc.Snapshot(address)
	open := 0
	for _, session := range sessions {
		if session.IsSettled() {
			continue
		}

		tx, ok := findPayment(session, txs)
		if !ok {
			open++
			continue
		}

		if err := s.sessionRepository.UpdateSession(
			ctx, session.ID,
			func(ss *domain.Session) (*domain.Session, error) {
				if err := ss.Settle(tx); err != nil {
					return nil, err
				}
				return ss, nil
			},
		); err != nil {
			if !errors.Is(err, domain.ErrSessionAlreadySettled) {
				log.WithError(err).Warnf("failed to settle session %s", session.ID)
				open++
			}
			continue
		}

		log.Infof(
			"session %s settled by tx %s, document %s unlocked",
			session.ID, tx.TxID, session.Fingerprint,
		)
	}

	if open <= 0 {
		s.unwatchAddress(address)
	}
}

func (s *registrationService) handleCrawlerEvents() {
	for event := range s.crawlerSvc.GetEventChannel() {
		switch e := event.(type) {
		case crawler.CloseEvent:
			return
		case crawler.AddressEvent:
			log.Debugf("refreshed ledger view for address %s", e.Address)
		}
	}
}

func findPayment(
	session domain.Session, txs []domain.Transaction,
) (domain.Transaction, bool) {
	for _, tx := range txs {
		if session.IsPaidBy(tx) {
			return tx, true
		}
	}
	return domain.Transaction{}, false
}
