package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// readWait is the absolute idle limit of a candidate connection. The
	// client pings well inside it.
	readWait = 5 * time.Minute
)

// WriteTyped sends one typed event frame.
func WriteTyped(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

// WriteError sends an ErrorResponse frame.
func WriteError(conn *websocket.Conn, msg string) error {
	return WriteTyped(conn, ErrorResponse{Event: EventError, Error: msg})
}

// ReadJSON decodes the next frame into v, refreshing the read deadline.
func ReadJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetReadDeadline(time.Now().Add(readWait)); err != nil {
		return err
	}
	return conn.ReadJSON(v)
}
