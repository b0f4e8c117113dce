package crawler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	eventQueueMaxSize = 100
	errorQueueMaxSize = 10

	defaultInterval = 30 * time.Second
)

type addressCrawler struct {
	interval     time.Duration
	errChan      chan error
	eventChan    chan Event
	observables  map[string]*observableHandler
	errorHandler func(err error)
	rateLimiter  *rate.Limiter
	mutex        *sync.RWMutex
	stopped      bool
}

// Opts defines the parameters needed for creating a crawler service with
// NewService method.
type Opts struct {
	Interval     time.Duration
	ErrorHandler func(err error)
	// RequestLimit is the max number of queries per second shared by all
	// observables, with bursts of at most RequestBurst queries.
	RequestLimit int
	RequestBurst int
}

// NewService returns a crawler that is ready to watch over observables. Use
// Start and Stop methods to manage it.
func NewService(opts Opts) Service {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	limit := rate.Inf
	if opts.RequestLimit > 0 {
		limit = rate.Limit(opts.RequestLimit)
	}
	burst := opts.RequestBurst
	if burst <= 0 {
		burst = 1
	}
	errorHandler := opts.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(error) {}
	}

	return &addressCrawler{
		interval:     interval,
		errChan:      make(chan error, errorQueueMaxSize),
		eventChan:    make(chan Event, eventQueueMaxSize),
		observables:  map[string]*observableHandler{},
		errorHandler: errorHandler,
		rateLimiter:  rate.NewLimiter(limit, burst),
		mutex:        &sync.RWMutex{},
	}
}

// Start dispatches the observation errors to the error handler until the
// crawler is stopped. It's meant to be run in its own goroutine.
func (c *addressCrawler) Start() {
	for err := range c.errChan {
		c.errorHandler(err)
	}
}

// Stop stops all observables, sends a CloseEvent through the event channel
// and makes Start return.
func (c *addressCrawler) Stop() {
	c.mutex.Lock()
	if c.stopped {
		c.mutex.Unlock()
		return
	}
	c.stopped = true
	handlers := c.observables
	c.observables = map[string]*observableHandler{}
	c.mutex.Unlock()

	wg := &sync.WaitGroup{}
	for _, oh := range handlers {
		wg.Add(1)
		go func(oh *observableHandler) {
			defer wg.Done()
			oh.stop()
		}(oh)
	}
	wg.Wait()

	c.eventChan <- CloseEvent{}
	close(c.errChan)
}

// GetEventChannel returns Event channel which can be used to "listen" to
// the outcome of the observations.
func (c *addressCrawler) GetEventChannel() chan Event {
	return c.eventChan
}

// AddObservable adds new Observable to the list of Observables to be "watched
// over" only if the same Observable is not already in the list.
func (c *addressCrawler) AddObservable(observable Observable) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stopped {
		return
	}
	if _, ok := c.observables[observable.key()]; ok {
		return
	}

	oh := newObservableHandler(
		observable, c.interval, c.eventChan, c.errChan, c.rateLimiter,
	)
	c.observables[observable.key()] = oh
	go oh.start()
}

// RemoveObservable stops "watching" given Observable.
func (c *addressCrawler) RemoveObservable(observable Observable) {
	c.mutex.Lock()
	oh, ok := c.observables[observable.key()]
	if ok {
		delete(c.observables, observable.key())
	}
	c.mutex.Unlock()

	if ok {
		oh.stop()
	}
}

// IsObserving returns whether an observable with the given key is watched.
func (c *addressCrawler) IsObserving(key string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, ok := c.observables[key]
	return ok
}

func (c *addressCrawler) NumObservables() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.observables)
}
