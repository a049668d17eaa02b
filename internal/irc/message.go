package irc

// MessageKind discriminates parsed inbound protocol messages.
type MessageKind int

const (
	Unknown MessageKind = iota
	Private
	Join
	Part
	Nick
	Quit
	Invite
	Topic
	Notice
	Kick
	Mode
	Ping
	Pong
	Error
	Numeric
)

func (k MessageKind) String() string {
	switch k {
	case Private:
		return "private"
	case Join:
		return "join"
	case Part:
		return "part"
	case Nick:
		return "nick"
	case Quit:
		return "quit"
	case Invite:
		return "invite"
	case Topic:
		return "topic"
	case Notice:
		return "notice"
	case Kick:
		return "kick"
	case Mode:
		return "mode"
	case Ping:
		return "ping"
	case Pong:
		return "pong"
	case Error:
		return "error"
	case Numeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// CTCPKind classifies the CTCP payload of a private message, if any.
type CTCPKind int

const (
	CTCPNone CTCPKind = iota
	CTCPAction
	CTCPRequest
)

// Message is a parsed inbound IRC message as delivered by a Transport.
// Only the fields relevant to the message's Kind are populated.
type Message struct {
	Kind    MessageKind
	Sender  string   // nick of the originating user or server
	Target  string   // Private/Notice/Invite target
	Body    string   // Private/Notice text, CTCP payload, Error text
	Channel string   // Join/Part/Topic/Kick/Invite channel
	Reason  string   // Part/Quit/Kick reason
	Topic   string   // Topic text
	NewNick string   // Nick change
	Code    int      // Numeric reply code
	Params  []string // raw parameter list (Numeric, Mode, Ping, Pong)
	CTCP    CTCPKind // Private sub-kind
}

// IsChannelName reports whether a target name denotes a channel
// rather than a user. The prefix set matches what channel-name
// validation accepts.
func IsChannelName(name string) bool {
	if name == "" {
		return false
	}
	switch name[0] {
	case '#', '&', '+', '!':
		return true
	}
	return false
}
