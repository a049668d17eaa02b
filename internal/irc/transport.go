package irc

// EventKind discriminates transport lifecycle events from parsed messages.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventMessage
)

// Event is one item on a Transport's event stream. Message is set only
// for EventMessage.
type Event struct {
	Kind    EventKind
	Message *Message
}

// Transport is one logical connection to an IRC network. Implementations
// deliver events in the order the server sent them; the stream stays open
// across disconnect/reconnect cycles and is closed only by Close.
type Transport interface {
	// Connect opens the connection and starts delivering events.
	// It does not block waiting for registration; completion is signaled
	// by an EventConnected on the event stream.
	Connect() error
	// Disconnect sends a quit and drops the connection. Disconnecting an
	// already-disconnected transport is a no-op.
	Disconnect()
	// SetNick requests a nickname change (also usable before Connect).
	SetNick(nick string)
	// CurrentNick returns the nickname currently in effect.
	CurrentNick() string
	// Send issues an outbound command.
	Send(cmd Command) error
	// Events returns the inbound event stream.
	Events() <-chan Event
	// Close tears the transport down and closes the event stream.
	Close()
}

// SASLConfig enables SASL authentication on a transport.
type SASLConfig struct {
	Enabled   bool
	Mechanism string // PLAIN, EXTERNAL, SCRAM-SHA-256, SCRAM-SHA-512
	Username  string
	Password  string
}

// TransportConfig carries everything a concrete transport needs to reach
// one network.
type TransportConfig struct {
	Server      string // host:port
	TLS         bool
	Password    string // server password, not SASL
	Nick        string
	User        string
	RealName    string
	QuitMessage string
	Version     string // CTCP VERSION reply
	SASL        SASLConfig
}
