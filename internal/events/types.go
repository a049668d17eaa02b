package events

// Event types shared across the session core and its observers.
const (
	// EventChannelMessage fires for every log entry appended to a channel.
	// Data: server, channel, sender, body, kind.
	EventChannelMessage = "channel.message"

	// EventChannelsChanged fires when a server's channel set changes.
	// Data: server.
	EventChannelsChanged = "channels.changed"

	// EventChannelTopic fires on topic updates. Data: server, channel, topic.
	EventChannelTopic = "channel.topic"

	// EventChannelUsers fires when a channel's user set is republished.
	// Data: server, channel, users.
	EventChannelUsers = "channel.users"

	// EventServerConnected / EventServerDisconnected track transport state.
	// Data: server.
	EventServerConnected    = "server.connected"
	EventServerDisconnected = "server.disconnected"

	// EventOnlineStateChanged fires on host connectivity transitions.
	// Data: online.
	EventOnlineStateChanged = "online.state.changed"

	// EventReadyToDisplay fires exactly once, on the first successful
	// connection, when a channel has been selected for display.
	EventReadyToDisplay = "session.ready"
)
