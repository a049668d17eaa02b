package validation

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidateChannelName validates an IRC channel name
func ValidateChannelName(channel string) error {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return fmt.Errorf("channel name is required")
	}
	// IRC channels must start with #, &, +, or !
	if channel[0] != '#' && channel[0] != '&' && channel[0] != '+' && channel[0] != '!' {
		return fmt.Errorf("channel name must start with #, &, +, or !")
	}
	// Channel names have length limits (typically 50 chars, but varies by server)
	if len(channel) > 200 {
		return fmt.Errorf("channel name too long (max 200 characters)")
	}
	if strings.ContainsAny(channel, " \x00\x07\x0A\x0D,") {
		return fmt.Errorf("channel name contains invalid characters")
	}
	return nil
}

// ValidateServerURL validates a host:port server URL
func ValidateServerURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("server url is required")
	}
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		return fmt.Errorf("server url must be host:port: %w", err)
	}
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("server host is required")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

// ValidateNickname validates an IRC nickname
func ValidateNickname(nick string) error {
	nick = strings.TrimSpace(nick)
	if nick == "" {
		return fmt.Errorf("nickname is required")
	}
	if strings.ContainsAny(nick, " \x00\x07\x0A\x0D,#&!") {
		return fmt.Errorf("nickname contains invalid characters")
	}
	return nil
}
