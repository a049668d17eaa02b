package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatter-irc/chatter/internal/irc"
	"github.com/chatter-irc/chatter/internal/storage"
)

func newTestSession(t *testing.T) (*ServerSession, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport("bob")
	s := NewServerSession("irc.example.org:6667", ft, &storage.ServerSettings{URL: "irc.example.org:6667"}, storage.DefaultAccountSettings())
	t.Cleanup(s.Close)
	return s, ft
}

func TestChannelMessageRouting(t *testing.T) {
	s, _ := newTestSession(t)

	s.handleMessage(&irc.Message{Kind: irc.Private, Sender: "alice", Target: "#go", Body: "hello"})

	ch := s.Channel("#go")
	require.NotNil(t, ch)
	assert.Equal(t, KindChannel, ch.Kind())
	entries := ch.Messages()
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Sender)
	assert.Equal(t, "hello", entries[0].Body)
	assert.Equal(t, EntryMessage, entries[0].Kind)
}

func TestPrivateMessageOpensQuery(t *testing.T) {
	s, _ := newTestSession(t)

	s.handleMessage(&irc.Message{Kind: irc.Private, Sender: "alice", Target: "bob", Body: "psst"})

	assert.Nil(t, s.Channel("bob"))
	ch := s.Channel("alice")
	require.NotNil(t, ch)
	assert.Equal(t, KindQuery, ch.Kind())
	require.Len(t, ch.Messages(), 1)
	assert.Equal(t, "psst", ch.Messages()[0].Body)
}

func TestCtcpRouting(t *testing.T) {
	s, _ := newTestSession(t)

	s.handleMessage(&irc.Message{Kind: irc.Private, Sender: "alice", Target: "#go", Body: "waves", CTCP: irc.CTCPAction})
	s.handleMessage(&irc.Message{Kind: irc.Private, Sender: "alice", Target: "#go", Body: "VERSION", CTCP: irc.CTCPRequest})

	entries := s.Channel("#go").Messages()
	require.Len(t, entries, 2)
	assert.Equal(t, EntryAction, entries[0].Kind)
	assert.Equal(t, EntryRequest, entries[1].Kind)
}

func TestJoinPartTopicIgnoredForUnknownChannel(t *testing.T) {
	s, _ := newTestSession(t)

	s.handleMessage(&irc.Message{Kind: irc.Join, Sender: "alice", Channel: "#go"})
	s.handleMessage(&irc.Message{Kind: irc.Part, Sender: "alice", Channel: "#go", Reason: "bye"})
	s.handleMessage(&irc.Message{Kind: irc.Topic, Channel: "#go", Topic: "news"})

	assert.Nil(t, s.Channel("#go"), "membership events must not create channels")
}

func TestJoinPartTopicUpdateExistingChannel(t *testing.T) {
	s, _ := newTestSession(t)
	s.JoinChannel("#go")

	s.handleMessage(&irc.Message{Kind: irc.Join, Sender: "alice", Channel: "#go"})
	assert.True(t, s.Channel("#go").HasUser("alice"))

	s.handleMessage(&irc.Message{Kind: irc.Topic, Channel: "#go", Topic: "release day"})
	assert.Equal(t, "release day", s.Channel("#go").Topic())

	s.handleMessage(&irc.Message{Kind: irc.Part, Sender: "alice", Channel: "#go", Reason: "bye"})
	assert.False(t, s.Channel("#go").HasUser("alice"))

	entries := s.Channel("#go").Messages()
	require.Len(t, entries, 2)
	assert.Equal(t, EntryJoin, entries[0].Kind)
	assert.Equal(t, EntryPart, entries[1].Kind)
	assert.Equal(t, "bye", entries[1].Body)
}

func TestNoticeRouting(t *testing.T) {
	s, _ := newTestSession(t)

	s.handleMessage(&irc.Message{Kind: irc.Notice, Sender: "NickServ", Target: "bob", Body: "identify please"})
	s.handleMessage(&irc.Message{Kind: irc.Notice, Sender: "alice", Target: "#go", Body: "heads up"})

	require.NotNil(t, s.Channel("NickServ"))
	require.NotNil(t, s.Channel("#go"))
	assert.Equal(t, EntryNotice, s.Channel("NickServ").Messages()[0].Kind)
	assert.Equal(t, "heads up", s.Channel("#go").Messages()[0].Body)
}

func TestNamesAccumulation(t *testing.T) {
	s, _ := newTestSession(t)
	s.JoinChannel("#go")

	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: irc.RplNamReply, Params: []string{"bob", "=", "#go", "@alice +carol bob"}})
	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: irc.RplNamReply, Params: []string{"bob", "=", "#go", "dave ~erin"}})

	// Nothing visible until the end-of-names terminator.
	assert.Empty(t, s.Channel("#go").Users())

	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: irc.RplEndOfNames, Params: []string{"bob", "#go", "End of /NAMES list."}})

	assert.Equal(t, []string{"alice", "bob", "carol", "dave", "erin"}, s.Channel("#go").Users())

	// The accumulator is consumed: a second terminator wipes the set.
	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: irc.RplEndOfNames, Params: []string{"bob", "#go", "End of /NAMES list."}})
	assert.Empty(t, s.Channel("#go").Users())
}

func TestNamesForUnknownChannelDropped(t *testing.T) {
	s, _ := newTestSession(t)

	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: irc.RplNamReply, Params: []string{"bob", "=", "#go", "alice"}})
	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: irc.RplEndOfNames, Params: []string{"bob", "#go", "End of /NAMES list."}})

	assert.Nil(t, s.Channel("#go"))
}

func TestMotdGoesToDefaultChannel(t *testing.T) {
	s, _ := newTestSession(t)
	s.JoinChannel("#first")
	s.JoinChannel("#second")

	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: irc.RplMotd, Params: []string{"bob", "- welcome to example"}})

	entries := s.Channel("#first").Messages()
	require.Len(t, entries, 1)
	assert.Equal(t, EntryMotd, entries[0].Kind)
	assert.Equal(t, "- welcome to example", entries[0].Body)
	assert.Empty(t, s.Channel("#second").Messages())
}

func TestNicknameInUseRetriesWithUnderscore(t *testing.T) {
	s, ft := newTestSession(t)
	s.JoinChannel("#go")

	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: irc.ErrNicknameInUse, Params: []string{"*", "bob", "Nickname is already in use."}})

	assert.Equal(t, "bob_", ft.CurrentNick())
	entries := s.Channel("#go").Messages()
	require.Len(t, entries, 1)
	assert.Equal(t, EntryError, entries[0].Kind)
	assert.Equal(t, "The nickname 'bob' is already in use. Trying 'bob_'.", entries[0].Body)

	// Each further collision appends another underscore.
	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: irc.ErrNicknameInUse, Params: []string{"*", "bob_", "Nickname is already in use."}})
	assert.Equal(t, "bob__", ft.CurrentNick())
}

func TestErrorNumericTexts(t *testing.T) {
	cases := []struct {
		code int
		text string
	}{
		{irc.ErrNickCollision, "Nick name collision!"},
		{irc.ErrBanListFull, "Ban list is full."},
		{irc.ErrBannedFromChan, "You are banned from this channel."},
		{irc.ErrCannotSendToChan, "You can't send messages to this channel."},
		{irc.ErrChannelIsFull, "Channel is full."},
		{irc.ErrChanOpPrivsNeeded, "Channel operator privileges are needed."},
		{irc.ErrInviteOnlyChan, "You can only join this channel if you're invited."},
		{irc.ErrNoSuchChannel, "There is no such channel."},
		{irc.ErrNoSuchNick, "There is no such nickname."},
		{irc.ErrUnknownCommand, "Unknown command."},
		{451, "An error occurred, code 451."},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%03d", tc.code), func(t *testing.T) {
			s, _ := newTestSession(t)
			s.JoinChannel("#go")

			s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: tc.code})

			entries := s.Channel("#go").Messages()
			require.Len(t, entries, 1)
			assert.Equal(t, EntryError, entries[0].Kind)
			assert.Equal(t, tc.text, entries[0].Body)
		})
	}
}

func TestInformationalNumericsIgnored(t *testing.T) {
	s, _ := newTestSession(t)
	s.JoinChannel("#go")

	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: 1, Params: []string{"bob", "Welcome"}})
	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: 311, Params: []string{"bob", "alice"}})

	assert.Empty(t, s.Channel("#go").Messages())
}

func TestErrorWithoutChannelsDropped(t *testing.T) {
	s, _ := newTestSession(t)

	// Must not panic or create a channel.
	s.handleNumeric(&irc.Message{Kind: irc.Numeric, Code: irc.ErrNoSuchChannel})

	assert.Empty(t, s.Channels())
}

func TestJoinChannel(t *testing.T) {
	s, ft := newTestSession(t)

	require.True(t, s.JoinChannel("#go"))
	require.NotNil(t, s.Channel("#go"))
	sent := ft.sentCommands()
	require.Len(t, sent, 1)
	assert.Equal(t, "JOIN", sent[0].Verb)
	assert.Equal(t, []string{"#go"}, sent[0].Params)

	// Idempotent: the session already exists, nothing sent twice.
	assert.False(t, s.JoinChannel("#go"))
	assert.Len(t, ft.sentCommands(), 1)
}

func TestJoinChannelWithModelessPrefix(t *testing.T) {
	s, _ := newTestSession(t)

	require.True(t, s.JoinChannel("+modeless"))
	ch := s.Channel("+modeless")
	require.NotNil(t, ch)
	assert.Equal(t, KindChannel, ch.Kind())

	// Traffic targeting the channel lands in it, not in a query keyed by
	// the sender.
	s.handleMessage(&irc.Message{Kind: irc.Private, Sender: "alice", Target: "+modeless", Body: "hello"})
	require.Len(t, ch.Messages(), 1)
	assert.Nil(t, s.Channel("alice"))
}

func TestJoinChannelRejectsInvalidName(t *testing.T) {
	s, ft := newTestSession(t)

	assert.False(t, s.JoinChannel("go"))
	assert.False(t, s.JoinChannel("#bad name"))
	assert.Empty(t, ft.sentCommands())
	assert.Empty(t, s.Channels())
}

func TestPartChannel(t *testing.T) {
	s, ft := newTestSession(t)
	s.JoinChannel("#go")

	require.True(t, s.PartChannel("#go"))
	assert.Nil(t, s.Channel("#go"))

	sent := ft.sentCommands()
	require.Len(t, sent, 2)
	assert.Equal(t, "PART", sent[1].Verb)
	assert.Equal(t, []string{"#go", "Leaving this channel."}, sent[1].Params)

	assert.False(t, s.PartChannel("#go"))
}

func TestQueryAndCloseAreLocalOnly(t *testing.T) {
	s, ft := newTestSession(t)

	require.True(t, s.QueryUser("alice"))
	require.NotNil(t, s.Channel("alice"))
	assert.Equal(t, KindQuery, s.Channel("alice").Kind())
	assert.False(t, s.QueryUser("alice"))

	require.True(t, s.CloseUser("alice"))
	assert.Nil(t, s.Channel("alice"))
	assert.False(t, s.CloseUser("alice"))

	assert.Empty(t, ft.sentCommands(), "query/close must not touch the wire")
}

func TestMsgUser(t *testing.T) {
	s, ft := newTestSession(t)

	s.MsgUser("alice", "hello")

	sent := ft.sentCommands()
	require.Len(t, sent, 1)
	assert.Equal(t, "PRIVMSG", sent[0].Verb)
	assert.Equal(t, []string{"alice", "hello"}, sent[0].Params)
}

func TestKickUserDefaultsReason(t *testing.T) {
	s, ft := newTestSession(t)

	s.KickUser("alice", "#go", "")
	s.KickUser("alice", "#go", "flooding")

	sent := ft.sentCommands()
	require.Len(t, sent, 2)
	assert.Equal(t, []string{"#go", "alice", "Kicked."}, sent[0].Params)
	assert.Equal(t, []string{"#go", "alice", "flooding"}, sent[1].Params)
}

func TestNilAccountGetsDefaults(t *testing.T) {
	ft := newFakeTransport("bob")
	s := NewServerSession("irc.example.org:6667", ft, nil, nil)
	t.Cleanup(s.Close)

	s.JoinChannel("#go")
	require.True(t, s.PartChannel("#go"))
	s.KickUser("alice", "#go", "")

	sent := ft.sentCommands()
	require.Len(t, sent, 3)
	assert.Equal(t, []string{"#go", "Leaving this channel."}, sent[1].Params)
	assert.Equal(t, []string{"#go", "alice", "Kicked."}, sent[2].Params)
}

func TestChangeNick(t *testing.T) {
	s, ft := newTestSession(t)

	s.ChangeNick("robert")

	assert.Equal(t, "robert", ft.CurrentNick())
}

func TestSortedChannelsOrder(t *testing.T) {
	s, _ := newTestSession(t)
	s.QueryUser("zed")
	s.JoinChannel("#zulu")
	s.QueryUser("alice")
	s.JoinChannel("#alpha")

	sorted := s.SortedChannels()
	names := make([]string, 0, len(sorted))
	for _, ch := range sorted {
		names = append(names, ch.Name())
	}
	assert.Equal(t, []string{"#alpha", "#zulu", "alice", "zed"}, names)
}

func TestConnectedEventAutoJoins(t *testing.T) {
	ft := newFakeTransport("bob")
	server := &storage.ServerSettings{URL: "irc.example.org:6667", AutoJoin: "#go,#chatter"}
	s := NewServerSession(server.URL, ft, server, storage.DefaultAccountSettings())
	t.Cleanup(s.Close)

	ft.events <- irc.Event{Kind: irc.EventConnected}

	assert.Eventually(t, func() bool {
		return s.State() == Connected && s.Channel("#go") != nil && s.Channel("#chatter") != nil
	}, time.Second, 5*time.Millisecond)

	ft.events <- irc.Event{Kind: irc.EventDisconnected}
	assert.Eventually(t, func() bool {
		return s.State() == Disconnected
	}, time.Second, 5*time.Millisecond)
}

func TestRunLoopDeliversMessages(t *testing.T) {
	s, ft := newTestSession(t)

	ft.events <- irc.Event{Kind: irc.EventMessage, Message: &irc.Message{Kind: irc.Private, Sender: "alice", Target: "#go", Body: "hi"}}

	assert.Eventually(t, func() bool {
		ch := s.Channel("#go")
		return ch != nil && len(ch.Messages()) == 1
	}, time.Second, 5*time.Millisecond)
}
