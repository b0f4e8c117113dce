package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
	"github.com/tdex-network/tdex-notary/pkg/explorer"
	"github.com/tdex-network/tdex-notary/pkg/pushfeed"
	"github.com/tdex-network/tdex-notary/pkg/stats"
	"golang.org/x/sync/errgroup"
)

// AnyAddress can be used to subscribe for the status changes of every
// address.
const AnyAddress = "*"

const (
	// unwatchedTableTTL is how long the ledger view of an address nobody
	// tracks is kept after its last merge.
	unwatchedTableTTL = time.Hour
	pruneInterval     = 10 * time.Minute
)

// ReconciliationService merges the pull query results and the push
// confirmations for every tracked address into one ledger view, and notifies
// subscribers every time a transaction changes status.
type ReconciliationService interface {
	// Refresh runs the pull query for the address and merges the result.
	// On failure, a *QueryError is returned and the ledger view is left
	// untouched.
	Refresh(ctx context.Context, address string) ([]domain.Transaction, error)
	// RefreshAll refreshes every address made tracked with Track.
	RefreshAll(ctx context.Context) error
	// ConfirmTransaction merges a push confirmation.
	ConfirmTransaction(address, txid string, observedAt int64) error
	// Snapshot returns a copy of the ledger view of the address, without
	// any network activity.
	Snapshot(address string) []domain.Transaction
	// Lookup returns the last merged state of the given tx, if known locally.
	Lookup(txid string) (*domain.Transaction, bool)
	// ListTransactions returns the records of every ledger view, most
	// recently observed first. Records with unknown observation time come
	// last.
	ListTransactions(page domain.Page) []domain.Transaction
	// GetTransactionDetail fetches the full detail of a tx from the ledger
	// service and merges its outputs paying tracked addresses.
	GetTransactionDetail(
		ctx context.Context, txid string,
	) (*explorer.TransactionDetail, error)
	// Subscribe registers a handler for the status changes of the address,
	// or of every address if AnyAddress is given. The returned func cancels
	// the subscription.
	Subscribe(address string, handler StatusChangeHandler) (func(), error)
	// Track makes sure the address has a ledger view, even if empty, and
	// keeps it until Release.
	Track(address string)
	// Release drops the ledger view of the address. A pull query in flight
	// for the address is not merged.
	Release(address string)
	// ReleaseIdle drops the ledger views created by pull queries or push
	// confirmations for addresses nobody tracks nor subscribes to, if not
	// updated for at least maxIdle. It returns the released addresses.
	ReleaseIdle(maxIdle time.Duration) []string
	// Addresses returns the list of addresses with a ledger view.
	Addresses() []string
	// ListenForConfirmations feeds the push confirmations of the given feed
	// into the service.
	ListenForConfirmations(feed pushfeed.Service) (pushfeed.Subscription, error)
	// Stop cancels all subscriptions.
	Stop()
}

type reconciliationService struct {
	explorerSvc explorer.Service

	lock   *sync.RWMutex
	tables map[string]*mergeTable
	// index maps a tx id to the last address it has been merged for.
	index map[string]string

	subLock     *sync.RWMutex
	subscribers map[string]map[string]*subscriber

	quit     chan struct{}
	stopOnce *sync.Once
}

func NewReconciliationService(
	explorerSvc explorer.Service,
) ReconciliationService {
	svc := newReconciliationService(explorerSvc)
	go svc.pruneIdleTables()
	return svc
}

func newReconciliationService(
	explorerSvc explorer.Service,
) *reconciliationService {
	return &reconciliationService{
		explorerSvc: explorerSvc,
		lock:        &sync.RWMutex{},
		tables:      make(map[string]*mergeTable),
		index:       make(map[string]string),
		subLock:     &sync.RWMutex{},
		subscribers: make(map[string]map[string]*subscriber),
		quit:        make(chan struct{}),
		stopOnce:    &sync.Once{},
	}
}

func (s *reconciliationService) Refresh(
	ctx context.Context, address string,
) ([]domain.Transaction, error) {
	if len(address) <= 0 {
		return nil, ErrMissingAddress
	}

	prev, tracked := s.getTable(address)

	txs, err := s.explorerSvc.GetTransactionsForAddress(ctx, address)
	if err != nil {
		stats.FailedQueries.Inc()
		return nil, &QueryError{Address: address, Err: err}
	}

	observations := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		o, err := observationFromExplorer(address, tx)
		if err != nil {
			stats.FailedQueries.Inc()
			return nil, &QueryError{Address: address, Err: err}
		}
		observations = append(observations, o)
	}

	table := prev
	if tracked {
		table.lock.Lock()
		if table.released {
			table.lock.Unlock()
			log.Debugf(
				"ledger view of address %s released during refresh, result not merged",
				address,
			)
			return observations, nil
		}
	} else {
		table = s.lockTable(address)
	}
	defer table.lock.Unlock()

	s.mergeLocked(table, observations, stats.SourcePull)
	return table.snapshot(), nil
}

func (s *reconciliationService) RefreshAll(ctx context.Context) error {
	eg := &errgroup.Group{}
	for _, address := range s.watchedAddresses() {
		address := address
		eg.Go(func() error {
			_, err := s.Refresh(ctx, address)
			return err
		})
	}
	return eg.Wait()
}

func (s *reconciliationService) ConfirmTransaction(
	address, txid string, observedAt int64,
) error {
	confirmation := domain.NewConfirmation(address, txid, observedAt)
	if err := confirmation.Validate(); err != nil {
		return err
	}

	table := s.lockTable(address)
	defer table.lock.Unlock()

	s.mergeLocked(table, []domain.Transaction{confirmation}, stats.SourcePush)
	return nil
}

func (s *reconciliationService) Snapshot(address string) []domain.Transaction {
	table, ok := s.getTable(address)
	if !ok {
		return []domain.Transaction{}
	}

	table.lock.Lock()
	defer table.lock.Unlock()
	return table.snapshot()
}

func (s *reconciliationService) Lookup(txid string) (*domain.Transaction, bool) {
	s.lock.RLock()
	address, ok := s.index[txid]
	table := s.tables[address]
	s.lock.RUnlock()

	if !ok || table == nil {
		return nil, false
	}

	table.lock.Lock()
	defer table.lock.Unlock()

	tx, ok := table.get(txid)
	if !ok {
		return nil, false
	}
	return &tx, true
}

func (s *reconciliationService) ListTransactions(
	page domain.Page,
) []domain.Transaction {
	txs := make([]domain.Transaction, 0)
	for _, table := range s.allTables() {
		table.lock.Lock()
		if !table.released {
			txs = append(txs, table.snapshot()...)
		}
		table.lock.Unlock()
	}

	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].ObservedAt != txs[j].ObservedAt {
			return txs[i].ObservedAt > txs[j].ObservedAt
		}
		if txs[i].TxID != txs[j].TxID {
			return txs[i].TxID < txs[j].TxID
		}
		return txs[i].Address < txs[j].Address
	})

	return page.Apply(txs)
}

func (s *reconciliationService) GetTransactionDetail(
	ctx context.Context, txid string,
) (*explorer.TransactionDetail, error) {
	if len(txid) <= 0 {
		return nil, ErrMissingTxID
	}

	detail, err := s.explorerSvc.GetTransaction(ctx, txid)
	if err != nil {
		stats.FailedQueries.Inc()
		return nil, &QueryError{TxID: txid, Err: err}
	}

	status := domain.TxStatusPending
	var observedAt int64
	if detail.Confirmed() {
		status = domain.TxStatusConfirmed
		observedAt = detail.BlockTime
	}

	for _, address := range s.Addresses() {
		amount, ok := detail.AmountForAddress(address)
		if !ok {
			continue
		}
		table, ok := s.getTable(address)
		if !ok {
			continue
		}

		observation := domain.Transaction{
			TxID:       txid,
			Address:    address,
			Amount:     decimalToNull(amount),
			Status:     status,
			ObservedAt: observedAt,
		}
		table.lock.Lock()
		if !table.released {
			s.mergeLocked(
				table, []domain.Transaction{observation}, stats.SourceDetail,
			)
		}
		table.lock.Unlock()
	}

	return detail, nil
}

func (s *reconciliationService) Subscribe(
	address string, handler StatusChangeHandler,
) (func(), error) {
	if len(address) <= 0 {
		return nil, ErrMissingAddress
	}
	if handler == nil {
		return nil, ErrMissingHandler
	}

	sub := newSubscriber(address, handler)

	s.subLock.Lock()
	if _, ok := s.subscribers[address]; !ok {
		s.subscribers[address] = make(map[string]*subscriber)
	}
	s.subscribers[address][sub.id] = sub
	s.subLock.Unlock()

	go sub.start()

	return func() { s.unsubscribe(sub) }, nil
}

func (s *reconciliationService) Track(address string) {
	if len(address) <= 0 {
		return
	}
	table := s.lockTable(address)
	table.watched = true
	table.lock.Unlock()
}

func (s *reconciliationService) Release(address string) {
	table, ok := s.getTable(address)
	if !ok {
		return
	}
	if s.releaseTable(table, nil) {
		log.Debugf("released ledger view for address %s", address)
	}
}

func (s *reconciliationService) ReleaseIdle(maxIdle time.Duration) []string {
	now := time.Now()
	released := make([]string, 0)
	for _, table := range s.allTables() {
		table := table
		isIdle := func() bool {
			return !table.watched &&
				now.Sub(table.updatedAt) >= maxIdle &&
				!s.hasSubscribers(table.address)
		}
		if s.releaseTable(table, isIdle) {
			released = append(released, table.address)
		}
	}
	sort.Strings(released)
	return released
}

func (s *reconciliationService) Addresses() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	addresses := make([]string, 0, len(s.tables))
	for address := range s.tables {
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)
	return addresses
}

func (s *reconciliationService) ListenForConfirmations(
	feed pushfeed.Service,
) (pushfeed.Subscription, error) {
	return feed.Subscribe(func(event pushfeed.Event) {
		if err := s.ConfirmTransaction(
			event.Address, event.TxID, event.ObservedAt,
		); err != nil {
			log.WithError(err).Warnf(
				"skipping confirmation of tx %s for address %s",
				event.TxID, event.Address,
			)
		}
	})
}

func (s *reconciliationService) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })

	s.subLock.Lock()
	defer s.subLock.Unlock()

	for address, subs := range s.subscribers {
		for _, sub := range subs {
			sub.stop()
		}
		delete(s.subscribers, address)
	}
}

// mergeLocked merges the observations into the table and enqueues the
// resulting status changes. The caller must hold the table lock, so that the
// notifications for one address are enqueued in merge order.
func (s *reconciliationService) mergeLocked(
	table *mergeTable, observations []domain.Transaction, source string,
) {
	if len(observations) <= 0 {
		return
	}

	changes := table.merge(observations)
	stats.MergedObservations.WithLabelValues(source).Add(float64(len(observations)))

	s.lock.Lock()
	for _, o := range observations {
		s.index[o.TxID] = table.address
	}
	s.lock.Unlock()

	for _, change := range changes {
		log.Debugf(
			"tx %s for address %s moved from %s to %s",
			change.TxID, change.Address, change.From, change.To,
		)
		stats.StatusChanges.WithLabelValues(change.To.String()).Inc()
		s.notify(change)
	}
}

func (s *reconciliationService) notify(change domain.StatusChange) {
	s.subLock.RLock()
	defer s.subLock.RUnlock()

	for _, sub := range s.subscribers[change.Address] {
		sub.push(change)
	}
	if change.Address == AnyAddress {
		return
	}
	for _, sub := range s.subscribers[AnyAddress] {
		sub.push(change)
	}
}

func (s *reconciliationService) unsubscribe(sub *subscriber) {
	sub.stop()

	s.subLock.Lock()
	defer s.subLock.Unlock()

	subs, ok := s.subscribers[sub.address]
	if !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) <= 0 {
		delete(s.subscribers, sub.address)
	}
}

func (s *reconciliationService) getTable(address string) (*mergeTable, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	table, ok := s.tables[address]
	return table, ok
}

func (s *reconciliationService) getOrCreateTable(address string) *mergeTable {
	if table, ok := s.getTable(address); ok {
		return table
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if table, ok := s.tables[address]; ok {
		return table
	}
	table := newMergeTable(address)
	s.tables[address] = table
	stats.TrackedAddresses.Set(float64(len(s.tables)))
	log.Debugf("tracking ledger view for address %s", address)
	return table
}

// lockTable returns the locked table of the address, creating it if missing.
// The returned table is never a released one.
func (s *reconciliationService) lockTable(address string) *mergeTable {
	for {
		table := s.getOrCreateTable(address)
		table.lock.Lock()
		if !table.released {
			return table
		}
		table.lock.Unlock()
	}
}

// releaseTable drops the table from the engine if canRelease, evaluated
// under the table lock, allows it. It returns whether the table has been
// released by this call.
func (s *reconciliationService) releaseTable(
	table *mergeTable, canRelease func() bool,
) bool {
	table.lock.Lock()
	defer table.lock.Unlock()

	if table.released {
		return false
	}
	if canRelease != nil && !canRelease() {
		return false
	}
	table.released = true

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.tables[table.address] != table {
		return true
	}
	delete(s.tables, table.address)
	for _, txid := range table.txids() {
		if s.index[txid] == table.address {
			delete(s.index, txid)
		}
	}
	stats.TrackedAddresses.Set(float64(len(s.tables)))
	return true
}

func (s *reconciliationService) allTables() []*mergeTable {
	s.lock.RLock()
	defer s.lock.RUnlock()

	tables := make([]*mergeTable, 0, len(s.tables))
	for _, table := range s.tables {
		tables = append(tables, table)
	}
	return tables
}

func (s *reconciliationService) watchedAddresses() []string {
	addresses := make([]string, 0)
	for _, table := range s.allTables() {
		table.lock.Lock()
		if table.watched && !table.released {
			addresses = append(addresses, table.address)
		}
		table.lock.Unlock()
	}
	sort.Strings(addresses)
	return addresses
}

func (s *reconciliationService) hasSubscribers(address string) bool {
	s.subLock.RLock()
	defer s.subLock.RUnlock()
	return len(s.subscribers[address]) > 0
}

func (s *reconciliationService) pruneIdleTables() {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if released := s.ReleaseIdle(unwatchedTableTTL); len(released) > 0 {
				log.Debugf("released idle ledger views for addresses %v", released)
			}
		case <-s.quit:
			return
		}
	}
}

func observationFromExplorer(
	address string, tx explorer.Transaction,
) (domain.Transaction, error) {
	status, err := domain.ParseTxStatus(tx.Status)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf(
			"%w: tx %s has status %q", explorer.ErrInvalidResponse, tx.TxID, tx.Status,
		)
	}

	o := domain.Transaction{
		TxID:       tx.TxID,
		Address:    address,
		Amount:     tx.Amount,
		Status:     status,
		ObservedAt: tx.ObservedAt,
	}
	if err := o.Validate(); err != nil {
		return domain.Transaction{}, fmt.Errorf(
			"%w: %s", explorer.ErrInvalidResponse, err,
		)
	}
	return o, nil
}
