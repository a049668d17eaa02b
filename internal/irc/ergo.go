package irc

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"

	"github.com/chatter-irc/chatter/internal/logger"
)

// ErgoTransport is the ircevent-backed Transport implementation. It owns
// the wire connection and translates raw server lines into parsed Messages;
// all interpretation of those messages belongs to the session layer.
type ErgoTransport struct {
	cfg    TransportConfig
	in     chan Event
	events chan Event
	done   chan struct{}

	mu        sync.Mutex
	conn      *ircevent.Connection
	connected bool
	closed    bool
	nick      string

	sasl *saslNegotiator
}

// NewErgoTransport creates a transport for one network. The event stream
// is buffered; callers must drain it while the transport is connected.
func NewErgoTransport(cfg TransportConfig) *ErgoTransport {
	if cfg.Version == "" {
		cfg.Version = "chatter IRC client"
	}
	t := &ErgoTransport{
		cfg:    cfg,
		in:     make(chan Event, 128),
		events: make(chan Event, 128),
		done:   make(chan struct{}),
		nick:   cfg.Nick,
	}
	if cfg.SASL.Enabled {
		t.sasl = newSASLNegotiator(t, cfg.SASL)
	}
	go t.forward()
	return t
}

// forward is the sole sender on the consumer stream and the only place
// that closes it, so wire callbacks can never race Close into a send on
// a closed channel. Events still in flight when Close runs are dropped.
func (t *ErgoTransport) forward() {
	defer close(t.events)
	for {
		select {
		case ev := <-t.in:
			select {
			case t.events <- ev:
			case <-t.done:
				return
			}
		case <-t.done:
			return
		}
	}
}

func (t *ErgoTransport) emit(ev Event) {
	select {
	case t.in <- ev:
	case <-t.done:
	}
}

// Events returns the inbound event stream.
func (t *ErgoTransport) Events() <-chan Event {
	return t.events
}

// Connect opens a fresh wire connection. Connecting a transport that is
// already connected is a no-op.
func (t *ErgoTransport) Connect() error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}
	conn := &ircevent.Connection{
		Server:        t.cfg.Server,
		Nick:          t.nick,
		User:          t.cfg.User,
		RealName:      t.cfg.RealName,
		UseTLS:        t.cfg.TLS,
		Password:      t.cfg.Password,
		QuitMessage:   t.cfg.QuitMessage,
		ReconnectFreq: 0, // reconnection is driven by the connection manager
	}
	t.conn = conn
	t.mu.Unlock()

	t.setupHandlers(conn)

	if err := conn.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", t.cfg.Server, err)
	}
	go conn.Loop()
	return nil
}

// Disconnect sends a quit and drops the connection.
func (t *ErgoTransport) Disconnect() {
	t.mu.Lock()
	conn := t.conn
	connected := t.connected
	t.mu.Unlock()
	if conn == nil || !connected {
		return
	}
	conn.Quit()
}

// Close tears the transport down and closes the event stream.
func (t *ErgoTransport) Close() {
	t.Disconnect()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.done)
}

// SetNick requests a nickname change, or records the nickname to use on
// the next connect when currently offline.
func (t *ErgoTransport) SetNick(nick string) {
	t.mu.Lock()
	t.nick = nick
	conn := t.conn
	connected := t.connected
	t.mu.Unlock()
	if conn != nil && connected {
		conn.SetNick(nick)
	}
}

// CurrentNick returns the nickname currently in effect.
func (t *ErgoTransport) CurrentNick() string {
	t.mu.Lock()
	conn := t.conn
	connected := t.connected
	nick := t.nick
	t.mu.Unlock()
	if conn != nil && connected {
		return conn.CurrentNick()
	}
	return nick
}

// Send issues an outbound command on the wire.
func (t *ErgoTransport) Send(cmd Command) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.connected
	t.mu.Unlock()
	if conn == nil || !connected {
		return fmt.Errorf("not connected")
	}
	if err := conn.Send(cmd.Verb, cmd.Params...); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd.Verb, err)
	}
	return nil
}

func (t *ErgoTransport) sendRaw(line string) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		conn.SendRaw(line)
	}
}

func (t *ErgoTransport) setupHandlers(conn *ircevent.Connection) {
	conn.AddConnectCallback(func(e ircmsg.Message) {
		t.mu.Lock()
		t.connected = true
		t.mu.Unlock()
		logger.Log.Debug().Str("server", t.cfg.Server).Msg("transport connected")
		if t.sasl != nil {
			t.sasl.begin()
		}
		t.emit(Event{Kind: EventConnected})
	})

	conn.AddDisconnectCallback(func(e ircmsg.Message) {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
		logger.Log.Debug().Str("server", t.cfg.Server).Msg("transport disconnected")
		t.emit(Event{Kind: EventDisconnected})
	})

	conn.AddCallback("PRIVMSG", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		msg := &Message{
			Kind:   Private,
			Sender: e.Nick(),
			Target: e.Params[0],
			Body:   e.Params[1],
		}
		if ctcp, payload, ok := parseCTCP(msg.Body); ok {
			if ctcp == "ACTION" {
				msg.CTCP = CTCPAction
				msg.Body = payload
			} else {
				msg.CTCP = CTCPRequest
				msg.Body = strings.TrimSpace(ctcp + " " + payload)
				t.replyCTCP(e.Nick(), ctcp, payload)
			}
		}
		t.emit(Event{Kind: EventMessage, Message: msg})
	})

	conn.AddCallback("NOTICE", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		body := e.Params[1]
		if ctcp, payload, ok := parseCTCP(body); ok {
			// CTCP reply carried in a NOTICE
			body = strings.TrimSpace(ctcp + " " + payload)
		}
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind:   Notice,
			Sender: e.Nick(),
			Target: e.Params[0],
			Body:   body,
		}})
	})

	conn.AddCallback("JOIN", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind:    Join,
			Sender:  e.Nick(),
			Channel: e.Params[0],
		}})
	})

	conn.AddCallback("PART", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		msg := &Message{Kind: Part, Sender: e.Nick(), Channel: e.Params[0]}
		if len(e.Params) > 1 {
			msg.Reason = e.Params[1]
		}
		t.emit(Event{Kind: EventMessage, Message: msg})
	})

	conn.AddCallback("TOPIC", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind:    Topic,
			Sender:  e.Nick(),
			Channel: e.Params[0],
			Topic:   e.Params[1],
		}})
	})

	conn.AddCallback("NICK", func(e ircmsg.Message) {
		if len(e.Params) < 1 {
			return
		}
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind:    Nick,
			Sender:  e.Nick(),
			NewNick: e.Params[0],
		}})
	})

	conn.AddCallback("QUIT", func(e ircmsg.Message) {
		msg := &Message{Kind: Quit, Sender: e.Nick()}
		if len(e.Params) > 0 {
			msg.Reason = e.Params[0]
		}
		t.emit(Event{Kind: EventMessage, Message: msg})
	})

	conn.AddCallback("INVITE", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind:    Invite,
			Sender:  e.Nick(),
			Target:  e.Params[0],
			Channel: e.Params[1],
		}})
	})

	conn.AddCallback("KICK", func(e ircmsg.Message) {
		if len(e.Params) < 2 {
			return
		}
		msg := &Message{
			Kind:    Kick,
			Sender:  e.Nick(),
			Channel: e.Params[0],
			Target:  e.Params[1],
		}
		if len(e.Params) > 2 {
			msg.Reason = e.Params[2]
		}
		t.emit(Event{Kind: EventMessage, Message: msg})
	})

	conn.AddCallback("MODE", func(e ircmsg.Message) {
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind:   Mode,
			Sender: e.Nick(),
			Params: append([]string(nil), e.Params...),
		}})
	})

	conn.AddCallback("PING", func(e ircmsg.Message) {
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind:   Ping,
			Params: append([]string(nil), e.Params...),
		}})
	})

	conn.AddCallback("PONG", func(e ircmsg.Message) {
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind:   Pong,
			Params: append([]string(nil), e.Params...),
		}})
	})

	conn.AddCallback("ERROR", func(e ircmsg.Message) {
		msg := &Message{Kind: Error}
		if len(e.Params) > 0 {
			msg.Body = e.Params[0]
		}
		t.emit(Event{Kind: EventMessage, Message: msg})
	})

	// Numeric replies all flow through as-is; the session layer dispatches
	// on the code.
	conn.AddCallback("*", func(e ircmsg.Message) {
		code, ok := numericCode(e.Command)
		if !ok {
			return
		}
		t.emit(Event{Kind: EventMessage, Message: &Message{
			Kind:   Numeric,
			Sender: e.Nick(),
			Code:   code,
			Params: append([]string(nil), e.Params...),
		}})
	})

	if t.sasl != nil {
		conn.AddCallback("CAP", func(e ircmsg.Message) { t.sasl.handleCAP(e.Params) })
		conn.AddCallback("AUTHENTICATE", func(e ircmsg.Message) {
			if len(e.Params) > 0 {
				t.sasl.handleAuthenticate(e.Params[0])
			}
		})
		conn.AddCallback("900", func(e ircmsg.Message) { t.sasl.handleResult(RplLoggedIn) })
		conn.AddCallback("901", func(e ircmsg.Message) { t.sasl.handleResult(RplLoggedOut) })
		conn.AddCallback("904", func(e ircmsg.Message) { t.sasl.handleResult(ErrSaslFail) })
	}
}

// numericCode parses a three-digit command into its numeric code.
func numericCode(command string) (int, bool) {
	if len(command) != 3 {
		return 0, false
	}
	code := 0
	for _, r := range command {
		if r < '0' || r > '9' {
			return 0, false
		}
		code = code*10 + int(r-'0')
	}
	return code, true
}

// parseCTCP unwraps a \x01-framed CTCP payload into command and arguments.
func parseCTCP(body string) (command, args string, ok bool) {
	if len(body) < 2 || body[0] != '\x01' || body[len(body)-1] != '\x01' {
		return "", "", false
	}
	payload := body[1 : len(body)-1]
	parts := strings.Fields(payload)
	if len(parts) == 0 {
		return "", "", false
	}
	command = strings.ToUpper(parts[0])
	args = strings.Join(parts[1:], " ")
	return command, args, true
}

// replyCTCP answers the CTCP requests this client supports.
func (t *ErgoTransport) replyCTCP(from, command, args string) {
	var response string
	switch command {
	case "VERSION":
		response = t.cfg.Version
	case "TIME":
		response = time.Now().Format(time.RFC1123Z)
	case "PING":
		if args != "" {
			response = args
		} else {
			response = fmt.Sprintf("%d", time.Now().Unix())
		}
	case "CLIENTINFO":
		response = "ACTION CLIENTINFO PING TIME VERSION"
	default:
		return
	}
	t.sendRaw(fmt.Sprintf("NOTICE %s :\x01%s %s\x01", from, command, response))
	logger.Log.Debug().
		Str("from", from).
		Str("command", command).
		Msg("answered CTCP request")
}
