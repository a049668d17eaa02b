package session

import (
	"sort"
	"sync"
	"time"

	"github.com/chatter-irc/chatter/internal/irc"
)

// ChannelKind distinguishes multi-user channels from one-to-one queries.
// The ordinal is the primary sort key for display: channels before queries.
type ChannelKind int

const (
	KindChannel ChannelKind = iota
	KindQuery
)

func (k ChannelKind) String() string {
	if k == KindQuery {
		return "query"
	}
	return "channel"
}

// EntryKind classifies channel log entries.
type EntryKind int

const (
	EntryMessage EntryKind = iota
	EntryAction
	EntryRequest
	EntryNotice
	EntryError
	EntryMotd
	EntryJoin
	EntryPart
)

func (k EntryKind) String() string {
	switch k {
	case EntryAction:
		return "action"
	case EntryRequest:
		return "request"
	case EntryNotice:
		return "notice"
	case EntryError:
		return "error"
	case EntryMotd:
		return "motd"
	case EntryJoin:
		return "join"
	case EntryPart:
		return "part"
	default:
		return "message"
	}
}

// LogEntry is one line in a channel's conversation log.
type LogEntry struct {
	Sender string
	Body   string
	Kind   EntryKind
	Time   time.Time
}

// ChannelSession holds the conversational state of one channel or query:
// an append-only message log, the present user set and the topic. All
// operations are pure appends/updates; none can fail.
type ChannelSession struct {
	name   string
	kind   ChannelKind
	server *ServerSession

	mu       sync.RWMutex
	topic    string
	messages []LogEntry
	users    map[string]struct{}
}

func newChannelSession(server *ServerSession, name string) *ChannelSession {
	kind := KindQuery
	if irc.IsChannelName(name) {
		kind = KindChannel
	}
	return &ChannelSession{
		name:   name,
		kind:   kind,
		server: server,
		users:  make(map[string]struct{}),
	}
}

// Name returns the channel or query name.
func (c *ChannelSession) Name() string { return c.name }

// Kind returns whether this is a channel or a query. Immutable after
// creation, derived from the name's prefix.
func (c *ChannelSession) Kind() ChannelKind { return c.kind }

// Topic returns the current channel topic.
func (c *ChannelSession) Topic() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topic
}

// Messages returns a snapshot of the message log.
func (c *ChannelSession) Messages() []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LogEntry, len(c.messages))
	copy(out, c.messages)
	return out
}

// Users returns the present usernames, sorted.
func (c *ChannelSession) Users() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.users))
	for u := range c.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// HasUser reports whether a user is currently present.
func (c *ChannelSession) HasUser(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.users[name]
	return ok
}

func (c *ChannelSession) append(entry LogEntry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	c.mu.Lock()
	c.messages = append(c.messages, entry)
	c.mu.Unlock()

	c.server.notifyMessage(c, entry)
}

// ReceiveMessage appends a plain message from a user.
func (c *ChannelSession) ReceiveMessage(sender, body string) {
	c.append(LogEntry{Sender: sender, Body: body, Kind: EntryMessage})
}

// ReceiveCtcpAction appends a CTCP ACTION ("/me") from a user.
func (c *ChannelSession) ReceiveCtcpAction(sender, body string) {
	c.append(LogEntry{Sender: sender, Body: body, Kind: EntryAction})
}

// ReceiveCtcpRequest appends a non-ACTION CTCP request from a user.
func (c *ChannelSession) ReceiveCtcpRequest(sender, body string) {
	c.append(LogEntry{Sender: sender, Body: body, Kind: EntryRequest})
}

// ReceiveNotice appends a notice from a user or the server.
func (c *ChannelSession) ReceiveNotice(sender, body string) {
	c.append(LogEntry{Sender: sender, Body: body, Kind: EntryNotice})
}

// ReceiveJoined records a user as present and logs the join.
func (c *ChannelSession) ReceiveJoined(user string) {
	c.mu.Lock()
	c.users[user] = struct{}{}
	c.mu.Unlock()

	c.append(LogEntry{Sender: user, Kind: EntryJoin})
	c.server.notifyUsers(c)
}

// ReceiveParted removes a user from the present set and logs the part
// with its stated reason.
func (c *ChannelSession) ReceiveParted(user, reason string) {
	c.mu.Lock()
	delete(c.users, user)
	c.mu.Unlock()

	c.append(LogEntry{Sender: user, Body: reason, Kind: EntryPart})
	c.server.notifyUsers(c)
}

// ReceiveTopic updates the channel topic.
func (c *ChannelSession) ReceiveTopic(topic string) {
	c.mu.Lock()
	c.topic = topic
	c.mu.Unlock()

	c.server.notifyTopic(c, topic)
}

// ReceiveMotd appends one server MOTD line.
func (c *ChannelSession) ReceiveMotd(line string) {
	c.append(LogEntry{Sender: "*", Body: line, Kind: EntryMotd})
}

// AppendError appends an error line surfaced by the server session.
func (c *ChannelSession) AppendError(text string) {
	c.append(LogEntry{Sender: "*", Body: text, Kind: EntryError})
}

// setUsers replaces the present user set with a finalized names list.
func (c *ChannelSession) setUsers(names []string) {
	c.mu.Lock()
	c.users = make(map[string]struct{}, len(names))
	for _, n := range names {
		c.users[n] = struct{}{}
	}
	c.mu.Unlock()

	c.server.notifyUsers(c)
}
