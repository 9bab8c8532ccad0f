package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// ReadWait is how long a stream may stay silent. Clients ping well inside it.
	ReadWait = 5 * time.Minute
)

// WriteTyped sends a strongly-typed payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteEvent sends an event frame.
func WriteEvent(conn *websocket.Conn, event Event, data any) error {
	return WriteTyped(conn, Message{Event: event, Data: data})
}

// WriteError sends an error frame. The connection stays open.
func WriteError(conn *websocket.Conn, code, msg string) error {
	return WriteEvent(conn, EventError, ErrorData{Code: code, Message: msg})
}

// ReadJSON reads and decodes a message into v with a read deadline.
func ReadJSON(conn *websocket.Conn, v any) error {
	conn.SetReadDeadline(time.Now().Add(ReadWait))
	return conn.ReadJSON(v)
}

// DecodeData unmarshals the action payload of env into v.
func DecodeData(env RequestEnvelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: missing data", env.Action)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: %w", env.Action, err)
	}
	return nil
}
