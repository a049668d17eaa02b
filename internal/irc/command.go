package irc

// Command is an outbound IRC command handed to a Transport.
type Command struct {
	Verb   string
	Params []string
}

// JoinCommand builds a JOIN for the given channel.
func JoinCommand(channel string) Command {
	return Command{Verb: "JOIN", Params: []string{channel}}
}

// PartCommand builds a PART with a part message.
func PartCommand(channel, reason string) Command {
	if reason == "" {
		return Command{Verb: "PART", Params: []string{channel}}
	}
	return Command{Verb: "PART", Params: []string{channel, reason}}
}

// MessageCommand builds a PRIVMSG to a channel or user.
func MessageCommand(target, text string) Command {
	return Command{Verb: "PRIVMSG", Params: []string{target, text}}
}

// NoticeCommand builds a NOTICE to a channel or user.
func NoticeCommand(target, text string) Command {
	return Command{Verb: "NOTICE", Params: []string{target, text}}
}

// KickCommand builds a KICK with a kick message.
func KickCommand(channel, user, reason string) Command {
	return Command{Verb: "KICK", Params: []string{channel, user, reason}}
}

// QuitCommand builds a QUIT with a quit message.
func QuitCommand(reason string) Command {
	return Command{Verb: "QUIT", Params: []string{reason}}
}
