package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chatter-irc/chatter/internal/events"
	"github.com/chatter-irc/chatter/internal/irc"
	"github.com/chatter-irc/chatter/internal/logger"
	"github.com/chatter-irc/chatter/internal/storage"
	"github.com/chatter-irc/chatter/internal/validation"
)

// ConnState is the transport connection state of a server session.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ServerSession owns one logical connection to an IRC network. It routes
// parsed protocol events to per-channel sessions (creating them on
// demand), interprets numeric replies, and issues outbound commands.
//
// All recoverable conditions are absorbed here: protocol errors become
// log entries in the default channel, routing errors for unknown
// channels are dropped, and nothing propagates as a hard failure.
type ServerSession struct {
	url       string
	password  string
	transport irc.Transport
	bus       *events.EventBus
	account   *storage.AccountSettings
	manager   *ConnectionManager // nil when the session runs standalone

	mu             sync.RWMutex
	state          ConnState
	channels       map[string]*ChannelSession
	defaultChannel string // name key into channels; weak, never a second owner
	autoJoin       []string
	pendingNames   map[string][]string

	runDone chan struct{}
}

func newServerSession(manager *ConnectionManager, url string, transport irc.Transport, server *storage.ServerSettings, account *storage.AccountSettings) *ServerSession {
	if account == nil {
		account = storage.DefaultAccountSettings()
	}
	s := &ServerSession{
		url:          url,
		transport:    transport,
		account:      account,
		manager:      manager,
		channels:     make(map[string]*ChannelSession),
		pendingNames: make(map[string][]string),
		runDone:      make(chan struct{}),
	}
	if manager != nil {
		s.bus = manager.bus
	}
	if server != nil {
		s.password = server.Password
		s.autoJoin = server.AutoJoinChannels()
	}
	go s.run()
	return s
}

// NewServerSession creates a session outside a connection manager,
// primarily for the UI layer's per-server views and for tests.
func NewServerSession(url string, transport irc.Transport, server *storage.ServerSettings, account *storage.AccountSettings) *ServerSession {
	return newServerSession(nil, url, transport, server, account)
}

// URL returns the network URL this session is bound to.
func (s *ServerSession) URL() string { return s.url }

// State returns the current connection state.
func (s *ServerSession) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// run consumes the transport's event stream. It is the only goroutine
// that reacts to inbound protocol events, preserving per-connection
// FIFO processing without further locking around the dispatch itself.
func (s *ServerSession) run() {
	defer close(s.runDone)
	for ev := range s.transport.Events() {
		switch ev.Kind {
		case irc.EventConnected:
			s.onConnected()
		case irc.EventDisconnected:
			s.onDisconnected()
		case irc.EventMessage:
			s.handleMessage(ev.Message)
		}
	}
}

func (s *ServerSession) onConnected() {
	s.mu.Lock()
	s.state = Connected
	autoJoin := append([]string(nil), s.autoJoin...)
	s.mu.Unlock()

	logger.Log.Info().Str("server", s.url).Msg("connected to server")

	for _, channel := range autoJoin {
		s.JoinChannel(channel)
	}

	if s.manager != nil {
		s.manager.serverConnected()
	}
	s.emit(events.EventServerConnected, map[string]interface{}{"server": s.url})
}

func (s *ServerSession) onDisconnected() {
	s.mu.Lock()
	s.state = Disconnected
	s.mu.Unlock()

	logger.Log.Info().Str("server", s.url).Msg("disconnected from server")
	s.emit(events.EventServerDisconnected, map[string]interface{}{"server": s.url})
}

// ConnectToServer begins connecting. It does not block; completion is
// signaled later by the transport's connected event. Asking an
// already-connected transport to connect is a no-op there.
func (s *ServerSession) ConnectToServer() {
	s.mu.Lock()
	if s.state == Disconnected {
		s.state = Connecting
	}
	s.mu.Unlock()

	go func() {
		if err := s.transport.Connect(); err != nil {
			logger.Log.Warn().Err(err).Str("server", s.url).Msg("connection attempt failed")
			s.mu.Lock()
			if s.state == Connecting {
				s.state = Disconnected
			}
			s.mu.Unlock()
		}
	}()
}

// DisconnectFromServer drops the transport connection. Channel state is
// kept; a later reconnect re-joins and re-requests names.
func (s *ServerSession) DisconnectFromServer() {
	s.transport.Disconnect()
}

// Close tears the session down: quit is sent on the wire, the transport
// released, and the event loop drained.
func (s *ServerSession) Close() {
	s.transport.Close()
	<-s.runDone
}

// handleMessage demultiplexes one inbound protocol event.
func (s *ServerSession) handleMessage(msg *irc.Message) {
	switch msg.Kind {
	case irc.Private:
		name := msg.Sender
		if irc.IsChannelName(msg.Target) {
			name = msg.Target
		}
		switch msg.CTCP {
		case irc.CTCPAction:
			s.findOrCreateChannel(name).ReceiveCtcpAction(msg.Sender, msg.Body)
		case irc.CTCPRequest:
			s.findOrCreateChannel(name).ReceiveCtcpRequest(msg.Sender, msg.Body)
		default:
			s.findOrCreateChannel(name).ReceiveMessage(msg.Sender, msg.Body)
		}

	case irc.Join:
		if ch := s.Channel(msg.Channel); ch != nil {
			ch.ReceiveJoined(msg.Sender)
		}

	case irc.Part:
		if ch := s.Channel(msg.Channel); ch != nil {
			ch.ReceiveParted(msg.Sender, msg.Reason)
		}

	case irc.Topic:
		if ch := s.Channel(msg.Channel); ch != nil {
			ch.ReceiveTopic(msg.Topic)
		}

	case irc.Notice:
		// Notices with no channel prefix land in a query keyed by the
		// sender's name, same as private messages.
		name := msg.Sender
		if irc.IsChannelName(msg.Target) {
			name = msg.Target
		}
		s.findOrCreateChannel(name).ReceiveNotice(msg.Sender, msg.Body)

	case irc.Nick, irc.Quit, irc.Invite, irc.Kick, irc.Mode, irc.Ping, irc.Pong, irc.Error:
		// Known but not acted upon here; surrounding layers may handle
		// these in the future.
		logger.Log.Debug().
			Str("server", s.url).
			Str("kind", msg.Kind.String()).
			Msg("message kind not handled by session core")

	case irc.Numeric:
		s.handleNumeric(msg)

	default:
		logger.Log.Debug().Str("server", s.url).Msg("unknown message received")
	}
}

// handleNumeric interprets numeric reply codes.
func (s *ServerSession) handleNumeric(msg *irc.Message) {
	switch msg.Code {
	case irc.RplEndOfNames:
		if len(msg.Params) < 2 {
			return
		}
		channel := msg.Params[1]
		s.mu.Lock()
		names := s.pendingNames[channel]
		delete(s.pendingNames, channel)
		s.mu.Unlock()
		if ch := s.Channel(channel); ch != nil {
			ch.setUsers(names)
		}

	case irc.RplNamReply, irc.RplNamReplyV1:
		if len(msg.Params) < 4 {
			return
		}
		channel := msg.Params[2]
		names := splitNames(msg.Params[3])
		s.mu.Lock()
		s.pendingNames[channel] = append(s.pendingNames[channel], names...)
		s.mu.Unlock()

	case irc.RplMotd:
		if len(msg.Params) < 2 {
			return
		}
		if ch := s.DefaultChannel(); ch != nil {
			ch.ReceiveMotd(msg.Params[1])
		}

	case irc.ErrNicknameInUse:
		// Retry with a trailing underscore. Unbounded: each further
		// collision appends another underscore.
		oldNick := s.transport.CurrentNick()
		newNick := oldNick + "_"
		s.displayError(fmt.Sprintf("The nickname '%s' is already in use. Trying '%s'.", oldNick, newNick))
		s.ChangeNick(newNick)

	case irc.ErrNickCollision:
		s.displayError("Nick name collision!")
	case irc.ErrBanListFull:
		s.displayError("Ban list is full.")
	case irc.ErrBannedFromChan:
		s.displayError("You are banned from this channel.")
	case irc.ErrCannotSendToChan:
		s.displayError("You can't send messages to this channel.")
	case irc.ErrChannelIsFull:
		s.displayError("Channel is full.")
	case irc.ErrChanOpPrivsNeeded:
		s.displayError("Channel operator privileges are needed.")
	case irc.ErrInviteOnlyChan:
		s.displayError("You can only join this channel if you're invited.")
	case irc.ErrNoSuchChannel:
		s.displayError("There is no such channel.")
	case irc.ErrNoSuchNick:
		s.displayError("There is no such nickname.")
	case irc.ErrUnknownCommand:
		s.displayError("Unknown command.")

	default:
		if msg.Code >= 400 {
			s.displayError(fmt.Sprintf("An error occurred, code %d.", msg.Code))
		}
		// Informational numerics are not currently modeled.
	}
}

// splitNames splits a names-reply fragment, stripping mode prefixes.
func splitNames(list string) []string {
	fields := strings.Fields(list)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		for len(f) > 0 && strings.ContainsRune("@+%&~", rune(f[0])) {
			f = f[1:]
		}
		if f != "" {
			names = append(names, f)
		}
	}
	return names
}

// displayError surfaces a protocol error in the default channel. A
// server with no channels has no display surface; the error is dropped.
func (s *ServerSession) displayError(text string) {
	if ch := s.DefaultChannel(); ch != nil {
		ch.AppendError(text)
		return
	}
	logger.Log.Warn().Str("server", s.url).Str("error", text).Msg("no default channel to display error")
}

// Channel returns the session for a channel or query name, or nil.
func (s *ServerSession) Channel(name string) *ChannelSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[name]
}

// DefaultChannel resolves the default channel, the first one created on
// this server. Resolution goes through the channel map, so removal can
// never leave a dangling reference.
func (s *ServerSession) DefaultChannel() *ChannelSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.defaultChannel == "" {
		return nil
	}
	return s.channels[s.defaultChannel]
}

// Channels returns a snapshot of the channel map.
func (s *ServerSession) Channels() map[string]*ChannelSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*ChannelSession, len(s.channels))
	for k, v := range s.channels {
		out[k] = v
	}
	return out
}

// SortedChannels returns the channels ordered for display: kind
// ascending, then name ascending.
func (s *ServerSession) SortedChannels() []*ChannelSession {
	s.mu.RLock()
	out := make([]*ChannelSession, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].kind != out[j].kind {
			return out[i].kind < out[j].kind
		}
		return out[i].name < out[j].name
	})
	return out
}

// findOrCreateChannel materializes a channel session on demand.
func (s *ServerSession) findOrCreateChannel(name string) *ChannelSession {
	if ch := s.Channel(name); ch != nil {
		return ch
	}
	return s.addChannel(name)
}

func (s *ServerSession) addChannel(name string) *ChannelSession {
	s.mu.Lock()
	if ch := s.channels[name]; ch != nil {
		s.mu.Unlock()
		return ch
	}
	ch := newChannelSession(s, name)
	s.channels[name] = ch
	if len(s.channels) == 1 {
		s.defaultChannel = name
	}
	s.mu.Unlock()

	s.notifyChannelsChanged()
	return ch
}

func (s *ServerSession) removeChannel(name string) bool {
	s.mu.RLock()
	ch := s.channels[name]
	s.mu.RUnlock()
	if ch == nil {
		return false
	}

	// Adjust the manager's selection before the channel disappears from
	// the flattened list.
	if s.manager != nil {
		s.manager.channelRemoved(ch)
	}

	s.mu.Lock()
	delete(s.channels, name)
	s.mu.Unlock()

	s.notifyChannelsChanged()
	return true
}

// JoinChannel creates the channel session and sends the join command.
// Joining a channel that already has a session is a no-op.
func (s *ServerSession) JoinChannel(name string) bool {
	if err := validation.ValidateChannelName(name); err != nil {
		logger.Log.Warn().Err(err).Str("channel", name).Msg("refusing to join")
		return false
	}
	if s.Channel(name) != nil {
		return false
	}

	logger.Log.Debug().Str("server", s.url).Str("channel", name).Msg("joining channel")
	s.addChannel(name)
	s.send(irc.JoinCommand(name))
	return true
}

// PartChannel removes the channel session and sends the part command
// with the configured part message.
func (s *ServerSession) PartChannel(name string) bool {
	if !s.removeChannel(name) {
		return false
	}
	logger.Log.Debug().Str("server", s.url).Str("channel", name).Msg("parting channel")
	s.send(irc.PartCommand(name, s.account.PartMessage))
	return true
}

// QueryUser opens a query session for a user. Local bookkeeping only;
// no protocol command is sent.
func (s *ServerSession) QueryUser(name string) bool {
	if s.Channel(name) != nil {
		return false
	}
	logger.Log.Debug().Str("server", s.url).Str("user", name).Msg("querying user")
	s.addChannel(name)
	return true
}

// CloseUser closes a query session. Local bookkeeping only.
func (s *ServerSession) CloseUser(name string) bool {
	logger.Log.Debug().Str("server", s.url).Str("user", name).Msg("closing user")
	return s.removeChannel(name)
}

// ChangeNick requests a nickname change.
func (s *ServerSession) ChangeNick(nick string) {
	logger.Log.Debug().Str("server", s.url).Str("nick", nick).Msg("changing nick")
	s.transport.SetNick(nick)
}

// MsgUser sends a private message to a user or channel.
func (s *ServerSession) MsgUser(name, text string) {
	s.send(irc.MessageCommand(name, text))
}

// KickUser kicks a user from a channel; an empty reason substitutes the
// configured kick message.
func (s *ServerSession) KickUser(user, channel, reason string) {
	if reason == "" {
		reason = s.account.KickMessage
	}
	s.send(irc.KickCommand(channel, user, reason))
}

func (s *ServerSession) send(cmd irc.Command) {
	if err := s.transport.Send(cmd); err != nil {
		logger.Log.Warn().Err(err).Str("server", s.url).Str("verb", cmd.Verb).Msg("failed to send command")
	}
}

func (s *ServerSession) emit(eventType string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(events.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
		Source:    events.EventSourceSession,
	})
}

func (s *ServerSession) notifyChannelsChanged() {
	if s.manager != nil {
		s.manager.RefreshChannelList()
	}
	s.emit(events.EventChannelsChanged, map[string]interface{}{"server": s.url})
}

func (s *ServerSession) notifyMessage(ch *ChannelSession, entry LogEntry) {
	s.emit(events.EventChannelMessage, map[string]interface{}{
		"server":  s.url,
		"channel": ch.name,
		"sender":  entry.Sender,
		"body":    entry.Body,
		"kind":    entry.Kind.String(),
	})
}

func (s *ServerSession) notifyUsers(ch *ChannelSession) {
	s.emit(events.EventChannelUsers, map[string]interface{}{
		"server":  s.url,
		"channel": ch.name,
		"users":   ch.Users(),
	})
}

func (s *ServerSession) notifyTopic(ch *ChannelSession, topic string) {
	s.emit(events.EventChannelTopic, map[string]interface{}{
		"server":  s.url,
		"channel": ch.name,
		"topic":   topic,
	})
}
