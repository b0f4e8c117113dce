package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	New       Status = "NEW"
	Waiting   Status = "WAITING"
	Processed Status = "PROCESSED"
)

type Status string

type observableStatus struct {
	sync.RWMutex
	status Status
}

func newObservableStatus() *observableStatus {
	return &observableStatus{
		status: New,
	}
}

func (o *observableStatus) get() Status {
	o.RLock()
	defer o.RUnlock()
	return o.status
}

func (o *observableStatus) set(status Status) {
	o.Lock()
	defer o.Unlock()
	o.status = status
}

// RefreshFunc runs the pull query for the given address.
type RefreshFunc func(ctx context.Context, address string) error

// AddressObservable periodically refreshes the transactions paying an
// address.
type AddressObservable struct {
	Address string
	Refresh RefreshFunc
}

func NewAddressObservable(address string, refresh RefreshFunc) Observable {
	return &AddressObservable{address, refresh}
}

func (a *AddressObservable) observe(
	ctx context.Context, rateLimiter *rate.Limiter,
) (Event, error) {
	if err := rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	if a.Refresh == nil {
		return nil, fmt.Errorf("missing refresh func for address %s", a.Address)
	}
	if err := a.Refresh(ctx, a.Address); err != nil {
		return nil, err
	}
	return AddressEvent{
		EventType: AddressRefreshed,
		Address:   a.Address,
	}, nil
}

func (a *AddressObservable) key() string {
	return a.Address
}

type observableHandler struct {
	observable       Observable
	ticker           *time.Ticker
	eventChan        chan Event
	errChan          chan error
	ctx              context.Context
	cancel           context.CancelFunc
	done             chan struct{}
	observableStatus *observableStatus
	rateLimiter      *rate.Limiter
}

func newObservableHandler(
	observable Observable,
	interval time.Duration,
	eventChan chan Event,
	errChan chan error,
	rateLimiter *rate.Limiter,
) *observableHandler {
	ctx, cancel := context.WithCancel(context.Background())

	return &observableHandler{
		observable:       observable,
		ticker:           time.NewTicker(interval),
		eventChan:        eventChan,
		errChan:          errChan,
		ctx:              ctx,
		cancel:           cancel,
		done:             make(chan struct{}),
		observableStatus: newObservableStatus(),
		rateLimiter:      rateLimiter,
	}
}

func (oh *observableHandler) start() {
	log.Debugf("start observing address: %s", oh.observable.key())
	defer close(oh.done)

	for {
		select {
		case <-oh.ticker.C:
			if oh.observableStatus.get() != Waiting {
				oh.observe()
			}
		case <-oh.ctx.Done():
			oh.ticker.Stop()
			return
		}
	}
}

func (oh *observableHandler) observe() {
	oh.observableStatus.set(Waiting)
	defer oh.observableStatus.set(Processed)

	event, err := oh.observable.observe(oh.ctx, oh.rateLimiter)
	if err != nil {
		if oh.ctx.Err() != nil {
			return
		}
		select {
		case oh.errChan <- err:
		case <-oh.ctx.Done():
		}
		return
	}

	select {
	case oh.eventChan <- event:
	case <-oh.ctx.Done():
	}
}

// stop interrupts the handler, including any in-flight query, and waits for
// its goroutine to return.
func (oh *observableHandler) stop() {
	log.Debugf("stop observing address: %s", oh.observable.key())
	oh.cancel()
	<-oh.done
}
