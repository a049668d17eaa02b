package irc

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// scramState carries one SCRAM exchange across AUTHENTICATE round trips.
type scramState struct {
	clientNonce string
	serverNonce string
	salt        string
	iterations  int
	serverKey   []byte
}

func (s *saslNegotiator) hashFunc() func() hash.Hash {
	if s.cfg.Mechanism == "SCRAM-SHA-512" {
		return sha512.New
	}
	return sha256.New
}

// handleSCRAM processes one SCRAM-SHA-256/512 challenge.
func (s *saslNegotiator) handleSCRAM(challenge string) {
	s.mu.Lock()
	if s.scram == nil {
		s.scram = &scramState{clientNonce: newNonce()}
	}
	state := s.scram
	s.mu.Unlock()

	switch challenge {
	case "+":
		// client-first-message; no channel binding, no authorization identity
		first := "n,," + scramClientFirstBare(s.cfg.Username, state.clientNonce)
		s.t.sendRaw("AUTHENTICATE " + base64.StdEncoding.EncodeToString([]byte(first)))
	case "*":
		s.abort("server aborted authentication")
	default:
		decoded, err := base64.StdEncoding.DecodeString(challenge)
		if err != nil {
			s.abort("undecodable server challenge")
			return
		}
		serverFirst := string(decoded)
		params := parseScramParams(serverFirst)

		// A server-final-message carries v=; verify it and wait for the
		// result numeric.
		if sig, ok := params["v"]; ok {
			if !s.verifyServerSignature(state, sig) {
				s.abort("server signature mismatch")
				return
			}
			s.t.sendRaw("AUTHENTICATE +")
			return
		}

		serverNonce, ok := params["r"]
		if !ok || !strings.HasPrefix(serverNonce, state.clientNonce) {
			s.abort("invalid server nonce")
			return
		}
		salt, ok := params["s"]
		if !ok {
			s.abort("missing salt")
			return
		}
		iterations, err := strconv.Atoi(params["i"])
		if err != nil || iterations <= 0 {
			s.abort("invalid iteration count")
			return
		}
		saltBytes, err := base64.StdEncoding.DecodeString(salt)
		if err != nil {
			s.abort("invalid salt encoding")
			return
		}
		state.serverNonce = serverNonce
		state.salt = salt
		state.iterations = iterations

		h := s.hashFunc()
		salted := pbkdf2.Key([]byte(s.cfg.Password), saltBytes, iterations, h().Size(), h)
		clientKey := computeHMAC(salted, "Client Key", h)
		storedKey := computeHash(clientKey, h)
		state.serverKey = computeHMAC(salted, "Server Key", h)

		withoutProof := scramClientFinalBare(state.serverNonce)
		authMessage := scramClientFirstBare(s.cfg.Username, state.clientNonce) +
			"," + serverFirst + "," + withoutProof
		clientSignature := computeHMAC(storedKey, authMessage, h)
		proof := xorBytes(clientKey, clientSignature)

		final := withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof)
		s.t.sendRaw("AUTHENTICATE " + base64.StdEncoding.EncodeToString([]byte(final)))
	}
}

func (s *saslNegotiator) verifyServerSignature(state *scramState, signature string) bool {
	if state.serverKey == nil {
		return false
	}
	h := s.hashFunc()
	serverFirst := fmt.Sprintf("r=%s,s=%s,i=%d", state.serverNonce, state.salt, state.iterations)
	authMessage := scramClientFirstBare(s.cfg.Username, state.clientNonce) +
		"," + serverFirst + "," + scramClientFinalBare(state.serverNonce)
	expected := base64.StdEncoding.EncodeToString(computeHMAC(state.serverKey, authMessage, h))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func scramClientFirstBare(username, nonce string) string {
	return fmt.Sprintf("n=%s,r=%s", username, nonce)
}

func scramClientFinalBare(serverNonce string) string {
	gs2 := base64.StdEncoding.EncodeToString([]byte("n,,"))
	return fmt.Sprintf("c=%s,r=%s", gs2, serverNonce)
}

func newNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read only fails when the OS entropy source is broken
		panic(err)
	}
	return fmt.Sprintf("%x", buf)
}

// parseScramParams splits "r=...,s=...,i=..." into a key/value map.
func parseScramParams(message string) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Split(message, ",") {
		if len(part) >= 3 && part[1] == '=' {
			params[part[:1]] = part[2:]
		}
	}
	return params
}

func computeHMAC(key []byte, data string, h func() hash.Hash) []byte {
	mac := hmac.New(h, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func computeHash(data []byte, h func() hash.Hash) []byte {
	hasher := h()
	hasher.Write(data)
	return hasher.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	if len(a) != len(b) {
		return nil
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
