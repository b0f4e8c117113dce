package pushfeed

import (
	"errors"
	"fmt"
)

var (
	// ErrFeedClosed is returned when subscribing to a closed feed.
	ErrFeedClosed = errors.New("push feed is closed")
	// ErrMissingHandler ...
	ErrMissingHandler = errors.New("missing event handler")
	// ErrMalformedEvent is returned for messages that are not valid events.
	ErrMalformedEvent = errors.New("malformed push event")
)

// TransportError is reported when the connection with the push source can't
// be opened or drops unexpectedly.
type TransportError struct {
	// Op is one of connect, read or reconnect.
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("push feed %s %s: %s", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
