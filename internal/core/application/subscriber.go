package application

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tdex-network/tdex-notary/internal/core/domain"
)

// StatusChangeHandler is invoked once per status change of a transaction.
type StatusChangeHandler func(change domain.StatusChange)

// subscriber queues the status changes for one handler and delivers them in
// order from its own goroutine, so that merges never wait for handlers.
type subscriber struct {
	id      string
	address string
	handler StatusChangeHandler

	lock   *sync.Mutex
	queue  []domain.StatusChange
	wakeup chan struct{}
	quit   chan struct{}
	once   *sync.Once
}

func newSubscriber(address string, handler StatusChangeHandler) *subscriber {
	return &subscriber{
		id:      uuid.New().String(),
		address: address,
		handler: handler,
		lock:    &sync.Mutex{},
		queue:   make([]domain.StatusChange, 0),
		wakeup:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		once:    &sync.Once{},
	}
}

func (s *subscriber) push(change domain.StatusChange) {
	s.lock.Lock()
	s.queue = append(s.queue, change)
	s.lock.Unlock()

	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

func (s *subscriber) start() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.wakeup:
			for _, change := range s.drain() {
				select {
				case <-s.quit:
					return
				default:
				}
				s.handler(change)
			}
		}
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.quit) })
}

func (s *subscriber) drain() []domain.StatusChange {
	s.lock.Lock()
	defer s.lock.Unlock()

	changes := s.queue
	s.queue = make([]domain.StatusChange, 0)
	return changes
}
