package application

import (
	"sync"
	"time"

	"github.com/tdex-network/tdex-notary/internal/core/domain"
)

// mergeTable is the ledger view of a single address: one record per tx id,
// kept in insertion order. All fields and methods expect the caller to hold
// lock.
type mergeTable struct {
	lock    *sync.Mutex
	address string
	order   []string
	records map[string]*domain.Transaction
	// watched tables are refreshed by RefreshAll and never released for
	// being idle.
	watched bool
	// released is set once the table is dropped from the engine. A released
	// table never accepts merges again.
	released  bool
	updatedAt time.Time
}

func newMergeTable(address string) *mergeTable {
	return &mergeTable{
		lock:      &sync.Mutex{},
		address:   address,
		order:     make([]string, 0),
		records:   make(map[string]*domain.Transaction),
		updatedAt: time.Now(),
	}
}

// merge folds every observation into the table and returns one status change
// for every record whose status moved, in observation order.
func (t *mergeTable) merge(
	observations []domain.Transaction,
) []domain.StatusChange {
	changes := make([]domain.StatusChange, 0)
	t.updatedAt = time.Now()

	for _, o := range observations {
		record, ok := t.records[o.TxID]
		if !ok {
			record = &domain.Transaction{TxID: o.TxID, Address: t.address}
			t.records[o.TxID] = record
			t.order = append(t.order, o.TxID)
		}

		prev, changed := record.Merge(o)
		if !changed {
			continue
		}
		changes = append(changes, domain.StatusChange{
			Address:     t.address,
			TxID:        record.TxID,
			From:        prev,
			To:          record.Status,
			Transaction: *record,
		})
	}

	return changes
}

func (t *mergeTable) snapshot() []domain.Transaction {
	txs := make([]domain.Transaction, 0, len(t.order))
	for _, txid := range t.order {
		txs = append(txs, *t.records[txid])
	}
	return txs
}

func (t *mergeTable) get(txid string) (domain.Transaction, bool) {
	record, ok := t.records[txid]
	if !ok {
		return domain.Transaction{}, false
	}
	return *record, true
}

func (t *mergeTable) txids() []string {
	return append([]string{}, t.order...)
}
