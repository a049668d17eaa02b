package irc

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/chatter-irc/chatter/internal/logger"
)

// saslNegotiator drives CAP negotiation and SASL authentication over a
// transport. Registration proceeds without SASL whenever the server does
// not offer it.
type saslNegotiator struct {
	t   *ErgoTransport
	cfg SASLConfig

	mu            sync.Mutex
	inProgress    bool
	authenticated bool
	capRequested  bool
	capBuffer     strings.Builder
	scram         *scramState
}

func newSASLNegotiator(t *ErgoTransport, cfg SASLConfig) *saslNegotiator {
	return &saslNegotiator{t: t, cfg: cfg}
}

// begin starts capability negotiation; called on connection establishment.
func (s *saslNegotiator) begin() {
	s.mu.Lock()
	s.inProgress = false
	s.authenticated = false
	s.capRequested = false
	s.capBuffer.Reset()
	s.scram = nil
	s.mu.Unlock()
	s.t.sendRaw("CAP LS 302")
}

// handleCAP processes CAP subcommand replies (LS may span several lines).
func (s *saslNegotiator) handleCAP(params []string) {
	if len(params) < 2 {
		return
	}
	switch params[1] {
	case "LS":
		if len(params) < 3 {
			return
		}
		if params[2] == "*" && len(params) > 3 {
			// continuation line
			s.mu.Lock()
			s.capBuffer.WriteString(params[3])
			s.capBuffer.WriteString(" ")
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		s.capBuffer.WriteString(params[2])
		allCaps := s.capBuffer.String()
		s.capBuffer.Reset()
		requested := s.capRequested
		s.mu.Unlock()

		if hasCapability(allCaps, "sasl") && !requested {
			s.mu.Lock()
			s.capRequested = true
			s.mu.Unlock()
			s.t.sendRaw("CAP REQ sasl")
		} else if !hasCapability(allCaps, "sasl") {
			logger.Log.Warn().Str("server", s.t.cfg.Server).Msg("server does not support SASL")
			s.t.sendRaw("CAP END")
		}
	case "ACK":
		if len(params) >= 3 && hasCapability(params[2], "sasl") {
			s.start()
		} else {
			s.t.sendRaw("CAP END")
		}
	case "NAK":
		s.t.sendRaw("CAP END")
	}
}

func (s *saslNegotiator) start() {
	s.mu.Lock()
	if s.inProgress {
		s.mu.Unlock()
		return
	}
	s.inProgress = true
	s.mu.Unlock()

	logger.Log.Debug().
		Str("server", s.t.cfg.Server).
		Str("mechanism", s.cfg.Mechanism).
		Msg("starting SASL authentication")
	s.t.sendRaw(fmt.Sprintf("AUTHENTICATE %s", s.cfg.Mechanism))
}

// handleAuthenticate processes AUTHENTICATE challenges from the server.
func (s *saslNegotiator) handleAuthenticate(challenge string) {
	switch s.cfg.Mechanism {
	case "PLAIN":
		s.handlePlain(challenge)
	case "EXTERNAL":
		s.handleExternal(challenge)
	case "SCRAM-SHA-256", "SCRAM-SHA-512":
		s.handleSCRAM(challenge)
	default:
		s.abort("unsupported mechanism " + s.cfg.Mechanism)
	}
}

func (s *saslNegotiator) handlePlain(challenge string) {
	switch challenge {
	case "+":
		auth := fmt.Sprintf("\x00%s\x00%s", s.cfg.Username, s.cfg.Password)
		encoded := base64.StdEncoding.EncodeToString([]byte(auth))
		s.t.sendRaw(fmt.Sprintf("AUTHENTICATE %s", encoded))
	case "*":
		s.abort("server aborted authentication")
	}
}

func (s *saslNegotiator) handleExternal(challenge string) {
	switch challenge {
	case "+":
		// EXTERNAL authenticates via the TLS client certificate
		s.t.sendRaw("AUTHENTICATE +")
	case "*":
		s.abort("server aborted authentication")
	}
}

// handleResult finalizes negotiation on the SASL result numerics.
func (s *saslNegotiator) handleResult(code int) {
	s.mu.Lock()
	s.inProgress = false
	s.authenticated = code == RplLoggedIn
	s.scram = nil
	s.mu.Unlock()

	if code == RplLoggedIn {
		logger.Log.Debug().Str("server", s.t.cfg.Server).Msg("SASL authentication successful")
	} else {
		logger.Log.Warn().Str("server", s.t.cfg.Server).Int("code", code).Msg("SASL authentication failed")
	}
	s.t.sendRaw("CAP END")
}

func (s *saslNegotiator) abort(reason string) {
	s.mu.Lock()
	s.inProgress = false
	s.scram = nil
	s.mu.Unlock()

	logger.Log.Warn().
		Str("server", s.t.cfg.Server).
		Str("reason", reason).
		Msg("SASL authentication aborted")
	s.t.sendRaw("AUTHENTICATE *")
	s.t.sendRaw("CAP END")
}

// hasCapability checks a CAP list for a capability name. Entries may be
// bare names or name=value pairs.
func hasCapability(capabilities, name string) bool {
	for _, c := range strings.Fields(capabilities) {
		capName := c
		if idx := strings.Index(c, "="); idx != -1 {
			capName = c[:idx]
		}
		if capName == name {
			return true
		}
	}
	return false
}
