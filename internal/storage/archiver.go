package storage

import (
	"time"

	"github.com/chatter-irc/chatter/internal/events"
	"github.com/chatter-irc/chatter/internal/logger"
)

// Archiver persists channel log entries flowing over the event bus, so
// the UI layer can page history. The session core itself never touches
// storage; this is the only bridge.
type Archiver struct {
	storage *Storage
}

// NewArchiver creates an archiver writing into the given storage.
func NewArchiver(s *Storage) *Archiver {
	return &Archiver{storage: s}
}

// Attach subscribes the archiver to channel message events.
func (a *Archiver) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventChannelMessage, a)
}

// OnEvent implements events.Subscriber.
func (a *Archiver) OnEvent(event events.Event) {
	if event.Type != events.EventChannelMessage {
		return
	}
	msg := Message{
		Server:    stringField(event, "server"),
		Channel:   stringField(event, "channel"),
		Sender:    stringField(event, "sender"),
		Body:      stringField(event, "body"),
		Kind:      stringField(event, "kind"),
		Timestamp: event.Timestamp,
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := a.storage.WriteMessage(msg); err != nil {
		logger.Log.Error().Err(err).
			Str("channel", msg.Channel).
			Msg("failed to archive message")
	}
}

func stringField(event events.Event, key string) string {
	if v, ok := event.Data[key].(string); ok {
		return v
	}
	return ""
}
