package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

// Identity is the verified user bound to a connection at handshake
// time. It never changes for the lifetime of the connection.
type Identity struct {
	UserID int64
	// Name is used for logging only.
	Name string
}

// transport is the subset of *websocket.Conn the package needs.
type transport interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Conn is one live client connection with its bound identity. Frame
// writes are serialized: the underlying websocket allows only one
// concurrent writer, and a delivery and a sender echo may race here.
type Conn struct {
	ws       transport
	identity Identity

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newConn(ws transport, identity Identity) *Conn {
	return &Conn{
		ws:       ws,
		identity: identity,
	}
}

func (c *Conn) Identity() Identity {
	return c.identity
}

// SendJSON marshals v and writes it as a single text frame.
func (c *Conn) SendJSON(v any) error {
	if c.closed.Load() {
		return errConnClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close closes the transport. Safe to call more than once; closing
// unblocks any in-flight read or write on the connection.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.ws.Close()
}

// IsOpen reports whether the connection has not been closed yet.
func (c *Conn) IsOpen() bool {
	return !c.closed.Load()
}
