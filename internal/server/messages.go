package server

import "encoding/json"

// ClientMessage is the inbound envelope: a type tag routing to a handler,
// and an opaque payload decoded per type.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage is the outbound envelope.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}
