package gateway

import "time"

// ClientConn represents a WebSocket connection wrapper. The production
// implementation wraps a hertz-contrib/websocket connection; tests
// substitute in-memory fakes.
type ClientConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}
