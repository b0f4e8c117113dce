package pushfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Opts defines the parameters needed for creating a push feed with
// NewService.
type Opts struct {
	// URL is the ws:// or wss:// endpoint of the push source.
	URL string
	// Secret, if set, is used to sign a HS256 bearer token sent along with
	// the websocket handshake.
	Secret string
	// ReconnectInterval is the initial delay between reconnection attempts,
	// doubled at every failure up to MaxReconnectInterval.
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	// OnReconnect is invoked in its own goroutine every time a dropped
	// connection is re-established, and when the first connection succeeds
	// after failed attempts.
	OnReconnect func()
	// ErrorHandler receives every TransportError.
	ErrorHandler func(err error)
}

type feed struct {
	url                  string
	secret               string
	dialer               *websocket.Dialer
	reconnectInterval    time.Duration
	maxReconnectInterval time.Duration
	onReconnect          func()
	errorHandler         func(err error)

	lock      *sync.Mutex
	listeners map[string]*listener
	link      *link
	closed    bool
}

// NewService returns a push feed ready to accept subscriptions. No connection
// is opened until the first call to Subscribe.
func NewService(opts Opts) (Service, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid push feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid push feed url scheme %q", u.Scheme)
	}

	reconnectInterval := opts.ReconnectInterval
	if reconnectInterval <= 0 {
		reconnectInterval = defaultReconnectInterval
	}
	maxReconnectInterval := opts.MaxReconnectInterval
	if maxReconnectInterval < reconnectInterval {
		maxReconnectInterval = defaultMaxReconnectInterval
		if maxReconnectInterval < reconnectInterval {
			maxReconnectInterval = reconnectInterval
		}
	}
	errorHandler := opts.ErrorHandler
	if errorHandler == nil {
		errorHandler = func(err error) {
			log.WithError(err).Warn("push feed")
		}
	}

	return &feed{
		url:    opts.URL,
		secret: opts.Secret,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		reconnectInterval:    reconnectInterval,
		maxReconnectInterval: maxReconnectInterval,
		onReconnect:          opts.OnReconnect,
		errorHandler:         errorHandler,
		lock:                 &sync.Mutex{},
		listeners:            make(map[string]*listener),
	}, nil
}

func (f *feed) Subscribe(handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, ErrMissingHandler
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return nil, ErrFeedClosed
	}

	l := newListener(handler)
	f.listeners[l.id] = l
	go l.start()

	// The connection is dialed by the listen loop, connection failures are
	// reported to the error handler and retried until the link is closed.
	if f.link == nil {
		f.link = newLink()
		go f.listen(f.link)
	}

	return &subscription{l.id, f}, nil
}

func (f *feed) NumSubscriptions() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.listeners)
}

func (f *feed) IsConnected() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.link != nil && f.link.isConnected()
}

func (f *feed) Close() {
	f.lock.Lock()
	if f.closed {
		f.lock.Unlock()
		return
	}
	f.closed = true
	for id, l := range f.listeners {
		l.stop()
		delete(f.listeners, id)
	}
	lk := f.link
	f.link = nil
	f.lock.Unlock()

	if lk != nil {
		lk.close()
		log.Debugf("push feed disconnected from %s", f.url)
	}
}

func (f *feed) unsubscribe(id string) {
	f.lock.Lock()
	l, ok := f.listeners[id]
	if !ok {
		f.lock.Unlock()
		return
	}
	l.stop()
	delete(f.listeners, id)

	var lk *link
	if len(f.listeners) <= 0 {
		lk = f.link
		f.link = nil
	}
	f.lock.Unlock()

	if lk != nil {
		lk.close()
		log.Debugf("no subscriptions left, push feed disconnected from %s", f.url)
	}
}

func (f *feed) listen(lk *link) {
	defer close(lk.done)

	failures, ok := f.connect(lk, "connect", 0)
	if !ok {
		return
	}
	log.Debugf("push feed connected to %s", f.url)
	if failures > 0 && f.onReconnect != nil {
		go f.onReconnect()
	}

	for {
		_, message, err := lk.getConn().ReadMessage()
		if err != nil {
			if lk.isClosing() {
				return
			}
			lk.setDisconnected()

			f.errorHandler(&TransportError{"read", f.url, err})
			log.Warn("push feed connection dropped unexpectedly. Trying to reconnect...")

			if _, ok := f.connect(lk, "reconnect", f.reconnectInterval); !ok {
				return
			}
			log.Debug("push feed connection re-established")
			if f.onReconnect != nil {
				go f.onReconnect()
			}
			continue
		}

		event, err := parseEvent(message)
		if err != nil {
			log.WithError(err).Debug("skipping push feed message")
			continue
		}
		f.dispatch(event)
	}
}

// connect dials the push source until a connection is established or the
// link is closed. The first attempt is made after delay, the following ones
// back off exponentially. It returns the number of failed attempts and
// whether the link got a connection.
func (f *feed) connect(lk *link, op string, delay time.Duration) (int, bool) {
	failures := 0
	for {
		select {
		case <-lk.ctx.Done():
			return failures, false
		case <-time.After(delay):
		}

		conn, err := f.dial(lk.ctx)
		if err != nil {
			if lk.isClosing() {
				return failures, false
			}
			failures++
			f.errorHandler(&TransportError{op, f.url, err})

			if delay <= 0 {
				delay = f.reconnectInterval
			} else {
				delay *= 2
			}
			if delay > f.maxReconnectInterval {
				delay = f.maxReconnectInterval
			}
			continue
		}

		if !lk.setConn(conn) {
			conn.Close()
			return failures, false
		}
		return failures, true
	}
}

func (f *feed) dispatch(event Event) {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, l := range f.listeners {
		l.push(event)
	}
}

func (f *feed) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if len(f.secret) > 0 {
		now := time.Now()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(time.Minute).Unix(),
		})
		tokenString, err := token.SignedString([]byte(f.secret))
		if err != nil {
			return nil, err
		}
		header.Set("Authorization", fmt.Sprintf("Bearer %s", tokenString))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultHandshakeTimeout)
	defer cancel()

	conn, _, err := f.dialer.DialContext(ctx, f.url, header)
	return conn, err
}

type subscription struct {
	id   string
	feed *feed
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Cancel() {
	s.feed.unsubscribe(s.id)
}

// link wraps the connection currently used by a listen loop. The connection
// is nil until the first dial succeeds, it is replaced on reconnection and
// closed once the link is closed.
type link struct {
	lock      *sync.Mutex
	conn      *websocket.Conn
	connected bool
	once      *sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func newLink() *link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		lock:   &sync.Mutex{},
		once:   &sync.Once{},
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (l *link) getConn() *websocket.Conn {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.conn
}

func (l *link) setConn(conn *websocket.Conn) bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.isClosing() {
		return false
	}
	if l.conn != nil {
		l.conn.Close()
	}
	l.conn = conn
	l.connected = true
	return true
}

func (l *link) setDisconnected() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.connected = false
}

func (l *link) isConnected() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.connected
}

func (l *link) isClosing() bool {
	return l.ctx.Err() != nil
}

// close stops the listen loop, aborting any dial in progress, and waits for
// it to return.
func (l *link) close() {
	l.once.Do(func() {
		l.cancel()

		l.lock.Lock()
		if l.conn != nil {
			//nolint
			l.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			l.conn.Close()
		}
		l.connected = false
		l.lock.Unlock()
	})
	<-l.done
}

type rawEvent struct {
	Event      string `json:"event"`
	Address    string `json:"address"`
	ID         string `json:"id"`
	TxID       string `json:"txid"`
	ObservedAt int64  `json:"observedAt"`
}

func parseEvent(message []byte) (Event, error) {
	raw := rawEvent{}
	if err := json.Unmarshal(message, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %s", ErrMalformedEvent, err)
	}

	eventType := strings.ToLower(raw.Event)
	if eventType == legacyEventConfirmed {
		eventType = EventConfirmed
	}
	if eventType != EventConfirmed {
		return Event{}, fmt.Errorf("%w: unknown event %q", ErrMalformedEvent, raw.Event)
	}

	txid := raw.ID
	if len(txid) <= 0 {
		txid = raw.TxID
	}
	if len(txid) <= 0 || len(raw.Address) <= 0 {
		return Event{}, fmt.Errorf("%w: missing address or tx id", ErrMalformedEvent)
	}

	return Event{
		Type:       eventType,
		Address:    raw.Address,
		TxID:       txid,
		ObservedAt: raw.ObservedAt,
	}, nil
}
