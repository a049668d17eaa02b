package session

import (
	"sync"

	"github.com/chatter-irc/chatter/internal/irc"
)

// fakeTransport records outbound traffic and lets tests inject inbound
// events.
type fakeTransport struct {
	mu              sync.Mutex
	events          chan irc.Event
	sent            []irc.Command
	nick            string
	connectCalls    int
	disconnectCalls int
	closed          bool
}

func newFakeTransport(nick string) *fakeTransport {
	return &fakeTransport{
		events: make(chan irc.Event, 64),
		nick:   nick,
	}
}

func (f *fakeTransport) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
}

func (f *fakeTransport) SetNick(nick string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nick = nick
}

func (f *fakeTransport) CurrentNick() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nick
}

func (f *fakeTransport) Send(cmd irc.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeTransport) Events() <-chan irc.Event { return f.events }

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *fakeTransport) sentCommands() []irc.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]irc.Command(nil), f.sent...)
}

func (f *fakeTransport) sentVerbs() []string {
	verbs := make([]string, 0)
	for _, cmd := range f.sentCommands() {
		verbs = append(verbs, cmd.Verb)
	}
	return verbs
}

func (f *fakeTransport) counts() (connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls, f.disconnectCalls
}

// fakeMonitor is a hand-operated availability monitor.
type fakeMonitor struct {
	mu         sync.Mutex
	online     bool
	attempts   int
	laterCalls int
}

func (f *fakeMonitor) IsOnline() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeMonitor) AttemptConnection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
}

func (f *fakeMonitor) AttemptConnectionLater() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.laterCalls++
}

func (f *fakeMonitor) setOnline(online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = online
}

func (f *fakeMonitor) stats() (attempts, laterCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts, f.laterCalls
}
