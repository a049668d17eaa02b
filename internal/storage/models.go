package storage

import (
	"strings"
	"time"
)

// ServerSettings is the persisted configuration for one IRC network.
type ServerSettings struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	URL           string    `db:"url" json:"url"` // host:port
	TLS           bool      `db:"tls" json:"tls"`
	Password      string    `db:"password" json:"password"` // empty when kept in the OS keychain
	AutoConnect   bool      `db:"auto_connect" json:"auto_connect"`
	AutoJoin      string    `db:"auto_join" json:"auto_join"` // comma-separated channel names
	SASLEnabled   bool      `db:"sasl_enabled" json:"sasl_enabled"`
	SASLMechanism *string   `db:"sasl_mechanism" json:"sasl_mechanism"`
	SASLUsername  *string   `db:"sasl_username" json:"sasl_username"`
	SASLPassword  *string   `db:"sasl_password" json:"sasl_password"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// AutoJoinChannels returns the auto-join list as an ordered slice.
func (s *ServerSettings) AutoJoinChannels() []string {
	if strings.TrimSpace(s.AutoJoin) == "" {
		return nil
	}
	parts := strings.Split(s.AutoJoin, ",")
	channels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			channels = append(channels, p)
		}
	}
	return channels
}

// AccountSettings is the persisted user identity and canned messages.
type AccountSettings struct {
	ID          int64  `db:"id" json:"id"`
	Nickname    string `db:"nickname" json:"nickname"`
	Username    string `db:"username" json:"username"`
	Realname    string `db:"realname" json:"realname"`
	QuitMessage string `db:"quit_message" json:"quit_message"`
	PartMessage string `db:"part_message" json:"part_message"`
	KickMessage string `db:"kick_message" json:"kick_message"`
}

// DefaultAccountSettings returns the account record used until the user
// configures one.
func DefaultAccountSettings() *AccountSettings {
	return &AccountSettings{
		Nickname:    "chatter-user",
		Username:    "chatter",
		Realname:    "chatter user",
		QuitMessage: "Quit.",
		PartMessage: "Leaving this channel.",
		KickMessage: "Kicked.",
	}
}

// Message is one archived channel log entry.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	Server    string    `db:"server" json:"server"`   // network url
	Channel   string    `db:"channel" json:"channel"` // channel or query name
	Sender    string    `db:"sender" json:"sender"`
	Body      string    `db:"body" json:"body"`
	Kind      string    `db:"kind" json:"kind"` // message, action, notice, error, motd, join, part
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}
