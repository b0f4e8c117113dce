package pubsub

import (
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

// store persists the webhook subscriptions. It's in-memory if no directory
// is given.
type store struct {
	db *badgerhold.Store
}

func newStore(baseDbDir string, logger badger.Logger) (*store, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, "pubsub")
	}

	isInMemory := len(dbDir) <= 0
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)
		go func() {
			for range ticker.C {
				if err := db.Badger().RunValueLogGC(0.5); err != nil &&
					err != badger.ErrNoRewrite {
					if err == badger.ErrRejected {
						ticker.Stop()
						return
					}
					log.Error(err)
				}
			}
		}()
	}

	return &store{db}, nil
}

func (s *store) add(sub Subscription) error {
	if err := s.db.Insert(sub.ID, &sub); err != nil {
		if err == badgerhold.ErrKeyExists {
			return nil
		}
		return err
	}
	return nil
}

func (s *store) get(id string) (*Subscription, error) {
	var sub Subscription
	if err := s.db.Get(id, &sub); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (s *store) remove(id string) error {
	return s.db.Delete(id, Subscription{})
}

func (s *store) listForTopic(topic string) (subscriptions, error) {
	var query *badgerhold.Query
	if len(topic) > 0 {
		query = badgerhold.Where("Topic").Eq(topic)
	}

	var subs subscriptions
	if err := s.db.Find(&subs, query); err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *store) close() error {
	return s.db.Close()
}
