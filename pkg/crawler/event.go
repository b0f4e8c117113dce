package crawler

const (
	CloseSignal EventType = iota
	AddressRefreshed
)

type EventType int

func (et EventType) String() string {
	switch et {
	case CloseSignal:
		return "CloseSignal"
	case AddressRefreshed:
		return "AddressRefreshed"
	default:
		return "Unknown"
	}
}

// CloseEvent is the last event sent through the channel once the crawler
// is stopped.
type CloseEvent struct{}

func (c CloseEvent) Type() EventType {
	return CloseSignal
}

// AddressEvent notifies that the pull query for an address succeeded.
type AddressEvent struct {
	EventType EventType
	Address   string
}

func (a AddressEvent) Type() EventType {
	return a.EventType
}
