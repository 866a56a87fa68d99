// Package transport speaks the framed websocket protocol the game
// servers use: engine.io v3 framing with JSON event arrays inside.
package transport

import (
	"context"
	"encoding/json"
)

// Message is one inbound event frame: a numeric opcode followed by its
// raw argument list, left undecoded for the session layer.
type Message struct {
	Opcode int
	Args   []json.RawMessage
}

// Transport carries event frames to and from a game server.
type Transport interface {
	// Connect dials the server and completes the protocol handshake.
	Connect(ctx context.Context) error
	// Emit sends one event frame.
	Emit(ctx context.Context, opcode int, args ...interface{}) error
	// Messages streams inbound frames. The channel closes when the
	// connection ends.
	Messages() <-chan Message
	// Close tears the connection down.
	Close(ctx context.Context) error
}
