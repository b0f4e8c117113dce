package pushfeed

import (
	"sync"

	"github.com/google/uuid"
)

// listener buffers the events for one handler so that a slow handler never
// blocks the connection read loop nor the other handlers.
type listener struct {
	id      string
	handler Handler

	lock   *sync.Mutex
	queue  []Event
	wakeup chan struct{}
	quit   chan struct{}
	once   *sync.Once
}

func newListener(handler Handler) *listener {
	return &listener{
		id:      uuid.New().String(),
		handler: handler,
		lock:    &sync.Mutex{},
		queue:   make([]Event, 0),
		wakeup:  make(chan struct{}, 1),
		quit:    make(chan struct{}),
		once:    &sync.Once{},
	}
}

func (l *listener) push(event Event) {
	l.lock.Lock()
	l.queue = append(l.queue, event)
	l.lock.Unlock()

	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

func (l *listener) start() {
	for {
		select {
		case <-l.quit:
			return
		case <-l.wakeup:
			for _, event := range l.drain() {
				if l.isStopped() {
					return
				}
				l.handler(event)
			}
		}
	}
}

func (l *listener) stop() {
	l.once.Do(func() { close(l.quit) })
}

func (l *listener) isStopped() bool {
	select {
	case <-l.quit:
		return true
	default:
		return false
	}
}

func (l *listener) drain() []Event {
	l.lock.Lock()
	defer l.lock.Unlock()

	events := l.queue
	l.queue = make([]Event, 0)
	return events
}
