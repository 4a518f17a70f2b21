// Package v1 defines the Hansa strength-meter protocol v1.
//
// It is shared between the server and clients so the wire format has one
// authoritative definition.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is embedded into every envelope.
const Version = "v1"

// Subprotocol is the websocket subprotocol clients must offer.
const Subprotocol = "hansa.strength.v1"

// Type constants (wire-stable).
const (
	// TypeHello opens a session (client -> server).
	TypeHello = "hello"
	// TypeHelloAck returns the session id (server -> client).
	TypeHelloAck = "hello_ack"

	// TypeStrengthCheck asks for a strength report (client -> server).
	TypeStrengthCheck = "strength_check"
	// TypeStrengthResult carries the report (server -> client).
	TypeStrengthResult = "strength_result"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

var allowedTypes = map[string]struct{}{
	TypeHello:          {},
	TypeHelloAck:       {},
	TypeStrengthCheck:  {},
	TypeStrengthResult: {},
	TypeError:          {},
}

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// Validate checks the envelope shape. It does not inspect the payload.
func (e Envelope) Validate() error {
	if e.V != Version {
		return fmt.Errorf("invalid protocol version: got=%q want=%q", e.V, Version)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing type")
	}
	if _, ok := allowedTypes[e.Type]; !ok {
		return fmt.Errorf("unsupported type: %s", e.Type)
	}
	if len(e.Payload) == 0 {
		return errors.New("missing payload")
	}
	return nil
}

// HelloPayload is sent by the client; Client is a free-form label used in logs.
type HelloPayload struct {
	Client string `json:"client,omitempty"`
}

// HelloAckPayload answers TypeHello.
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
}

// StrengthCheckPayload carries the candidate secret. RequestID is echoed back
// so clients can drop stale results while the user keeps typing.
type StrengthCheckPayload struct {
	RequestID string `json:"request_id,omitempty"`
	Secret    string `json:"secret"`
}

// StrengthResultPayload mirrors the HTTP validation response.
type StrengthResultPayload struct {
	RequestID string   `json:"request_id,omitempty"`
	IsValid   bool     `json:"is_valid"`
	Errors    []string `json:"errors"`
}

// ErrorPayload reports a rejected envelope.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}
