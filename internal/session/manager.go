package session

import (
	"sync"
	"time"

	"github.com/chatter-irc/chatter/internal/events"
	"github.com/chatter-irc/chatter/internal/irc"
	"github.com/chatter-irc/chatter/internal/logger"
	"github.com/chatter-irc/chatter/internal/storage"
)

// AvailabilityMonitor is the connectivity surface the manager relies on.
// Implemented by netmon.Monitor.
type AvailabilityMonitor interface {
	IsOnline() bool
	AttemptConnection()
	AttemptConnectionLater()
}

// TransportFactory builds one transport per server session.
type TransportFactory func(cfg irc.TransportConfig) irc.Transport

// PendingConnection is a queued connect request awaiting connectivity.
// Compared by value when draining the queue.
type PendingConnection struct {
	Server  *storage.ServerSettings
	Account *storage.AccountSettings
}

// ConnectionManager holds the set of active server sessions, a FIFO
// queue of connection requests made while offline, and the flattened
// channel list exposed to the UI. It is an explicitly constructed
// top-level object with explicit teardown, not a process-wide global.
type ConnectionManager struct {
	bus          *events.EventBus
	monitor      AvailabilityMonitor
	newTransport TransportFactory

	mu                  sync.Mutex
	servers             []*ServerSession
	queue               []PendingConnection
	allChannels         []*ChannelSession
	currentChannelIndex int
	waiting             bool
	ready               bool
}

// NewConnectionManager wires a manager to its availability monitor and
// transport factory.
func NewConnectionManager(bus *events.EventBus, monitor AvailabilityMonitor, factory TransportFactory) *ConnectionManager {
	return &ConnectionManager{
		bus:                 bus,
		monitor:             monitor,
		newTransport:        factory,
		currentChannelIndex: -1,
	}
}

// Connect opens a server session immediately when online, or queues the
// request until connectivity returns. While offline no transport or
// session object is created at all.
func (m *ConnectionManager) Connect(server *storage.ServerSettings, account *storage.AccountSettings) {
	m.monitor.AttemptConnection()

	if !m.monitor.IsOnline() {
		logger.Log.Info().Str("server", server.URL).Msg("offline; queueing connection request")
		m.mu.Lock()
		m.queue = append(m.queue, PendingConnection{Server: server, Account: account})
		m.waiting = true
		m.mu.Unlock()
		return
	}

	transport := m.newTransport(transportConfig(server, account))
	srv := newServerSession(m, server.URL, transport, server, account)

	m.mu.Lock()
	m.servers = append(m.servers, srv)
	m.mu.Unlock()

	logger.Log.Info().Str("server", server.URL).Msg("connecting to server")
	srv.ConnectToServer()
}

func transportConfig(server *storage.ServerSettings, account *storage.AccountSettings) irc.TransportConfig {
	cfg := irc.TransportConfig{
		Server:      server.URL,
		TLS:         server.TLS,
		Password:    server.Password,
		Nick:        account.Nickname,
		User:        account.Username,
		RealName:    account.Realname,
		QuitMessage: account.QuitMessage,
	}
	if server.SASLEnabled {
		cfg.SASL.Enabled = true
		if server.SASLMechanism != nil {
			cfg.SASL.Mechanism = *server.SASLMechanism
		}
		if server.SASLUsername != nil {
			cfg.SASL.Username = *server.SASLUsername
		}
		if server.SASLPassword != nil {
			cfg.SASL.Password = *server.SASLPassword
		}
	}
	return cfg
}

// OnAvailabilityChanged reacts to host connectivity transitions. Wire it
// to the availability monitor's change callback.
func (m *ConnectionManager) OnAvailabilityChanged(online bool) {
	if online {
		// Queued, not yet connected
		m.mu.Lock()
		pending := m.queue
		m.queue = nil
		m.mu.Unlock()

		for _, p := range pending {
			m.Connect(p.Server, p.Account)
		}

		m.mu.Lock()
		m.waiting = false
		servers := append([]*ServerSession(nil), m.servers...)
		m.mu.Unlock()

		// Already connected but lost. The transport treats a reconnect
		// of a live connection as a no-op; this layer always asks.
		for _, srv := range servers {
			logger.Log.Info().Str("server", srv.URL()).Msg("reconnecting to server")
			srv.ConnectToServer()
		}
	} else {
		logger.Log.Info().Msg("network connection lost")

		m.mu.Lock()
		servers := append([]*ServerSession(nil), m.servers...)
		m.mu.Unlock()

		for _, srv := range servers {
			logger.Log.Info().Str("server", srv.URL()).Msg("disconnecting from server")
			srv.DisconnectFromServer()
		}
		m.monitor.AttemptConnectionLater()
	}

	m.bus.Emit(events.Event{
		Type:      events.EventOnlineStateChanged,
		Data:      map[string]interface{}{"online": online},
		Timestamp: time.Now(),
		Source:    events.EventSourceNetwork,
	})
}

// IsOnline returns the monitor's current state.
func (m *ConnectionManager) IsOnline() bool {
	return m.monitor.IsOnline()
}

// IsWaitingForConnection is true iff connect requests are queued
// awaiting connectivity.
func (m *ConnectionManager) IsWaitingForConnection() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

// Servers returns the registered server sessions in connection order.
func (m *ConnectionManager) Servers() []*ServerSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ServerSession(nil), m.servers...)
}

// PendingCount returns the number of queued connection requests.
func (m *ConnectionManager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// RefreshChannelList rebuilds the flattened channel list: every server's
// channels sorted by kind then name, concatenated in server registration
// order. A full rebuild; the old list is swapped out only once the new
// one is complete, so observers never see a torn intermediate state.
func (m *ConnectionManager) RefreshChannelList() {
	m.mu.Lock()
	servers := append([]*ServerSession(nil), m.servers...)
	m.mu.Unlock()

	all := make([]*ChannelSession, 0)
	for _, srv := range servers {
		all = append(all, srv.SortedChannels()...)
	}

	m.mu.Lock()
	m.allChannels = all
	m.mu.Unlock()
}

// Channels returns the flattened, sorted channel list across all servers.
func (m *ConnectionManager) Channels() []*ChannelSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ChannelSession(nil), m.allChannels...)
}

// CurrentChannelIndex returns the selected index into the flattened
// list; -1 means no channel has ever been selected.
func (m *ConnectionManager) CurrentChannelIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentChannelIndex
}

// SetCurrentChannelIndex selects a channel in the flattened list.
func (m *ConnectionManager) SetCurrentChannelIndex(i int) {
	m.mu.Lock()
	m.currentChannelIndex = i
	m.mu.Unlock()
}

// CurrentChannel returns the selected channel, or nil.
func (m *ConnectionManager) CurrentChannel() *ChannelSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentChannelIndex < 0 || m.currentChannelIndex >= len(m.allChannels) {
		return nil
	}
	return m.allChannels[m.currentChannelIndex]
}

// serverConnected fires on each server session's successful connect.
// The first success in the process's lifetime selects channel 0 and
// signals ready-to-display exactly once; reconnections do not re-arm it.
func (m *ConnectionManager) serverConnected() {
	m.mu.Lock()
	first := m.currentChannelIndex == -1 && !m.ready
	if first {
		m.currentChannelIndex = 0
		m.ready = true
	}
	m.mu.Unlock()

	if first {
		logger.Log.Info().Msg("first connection succeeded")
		m.bus.Emit(events.Event{
			Type:      events.EventReadyToDisplay,
			Data:      map[string]interface{}{},
			Timestamp: time.Now(),
			Source:    events.EventSourceSession,
		})
	}
}

// channelRemoved keeps the selection stable when the selected channel
// is parted or closed: the selection moves back by one.
func (m *ConnectionManager) channelRemoved(ch *ChannelSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentChannelIndex >= 0 && m.currentChannelIndex < len(m.allChannels) &&
		m.allChannels[m.currentChannelIndex] == ch {
		m.currentChannelIndex--
	}
}

// Close tears down every server session (sending quit on each) and
// drops queued requests.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	servers := m.servers
	m.servers = nil
	m.queue = nil
	m.waiting = false
	m.mu.Unlock()

	for _, srv := range servers {
		srv.Close()
	}
}
