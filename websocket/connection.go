// file: websocket/connection.go
package websocket

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ams-relay/logger"
)

// WSConn is the slice of *websocket.Conn the relay needs. Tests substitute a
// fake so connection logic runs without network I/O.
type WSConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	ReadMessage() (int, []byte, error)
	Close() error
	RemoteAddr() net.Addr
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
}

// Role classifies a connection. It starts Unidentified and transitions
// exactly once, on the first inbound message (or identifying headers
// confirmed by it).
type Role int

const (
	RoleUnidentified Role = iota
	RoleDevice
	RoleWebClient
)

func (r Role) String() string {
	switch r {
	case RoleDevice:
		return "device"
	case RoleWebClient:
		return "web"
	default:
		return "unidentified"
	}
}

// Configuration constants.
const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendQueueSize  = 256
)

// Upgrader upgrades HTTP requests to WebSocket connections. Scanners connect
// from lab networks with no Origin header, so all origins are allowed.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection represents one live socket, device or web client.
type Connection struct {
	conn WSConn
	send chan []byte

	mu          sync.Mutex
	role        Role
	deviceID    string
	macAddress  string
	isAlive     bool
	welcomeSent bool
	closed      bool

	// writeMu serializes direct writes (pings from the liveness sweep) with
	// the write pump.
	writeMu sync.Mutex

	closeOnce sync.Once
}

func newConnection(conn WSConn) *Connection {
	return &Connection{
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		role:    RoleUnidentified,
		isAlive: true,
	}
}

// Role returns the connection's current classification.
func (c *Connection) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// DeviceID returns the registered device id, empty for web clients.
func (c *Connection) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

// MACAddress returns the device MAC if one was reported.
func (c *Connection) MACAddress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.macAddress
}

// setIdentity records role and ids; the role transition is terminal.
func (c *Connection) setIdentity(role Role, deviceID, mac string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.role != RoleUnidentified {
		return false
	}
	c.role = role
	c.deviceID = deviceID
	c.macAddress = mac
	return true
}

// markWelcomed flips the welcome guard, reporting whether the welcome still
// needs sending.
func (c *Connection) markWelcomed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.welcomeSent {
		return false
	}
	c.welcomeSent = true
	return true
}

// markAlive is called from the pong handler.
func (c *Connection) markAlive() {
	c.mu.Lock()
	c.isAlive = true
	c.mu.Unlock()
}

// aliveAndReset reports whether the connection answered the previous ping and
// arms the flag for the next sweep cycle.
func (c *Connection) aliveAndReset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	alive := c.isAlive
	c.isAlive = false
	return alive
}

// queue enqueues an outbound frame without blocking; a full queue drops the
// frame for this connection only.
func (c *Connection) queue(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- message:
	default:
		logger.Warn.Printf("[queue] Dropping frame for %v (send queue full)", c.conn.RemoteAddr())
	}
}

// closeSend shuts the send queue exactly once, letting the write pump finish.
func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// write performs a synchronized write with a deadline.
func (c *Connection) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// terminate closes the socket once; safe to call from the sweep and the read
// pump's cleanup concurrently.
func (c *Connection) terminate() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// writePump drains the send queue onto the socket.
func (c *Connection) writePump() {
	defer c.terminate()
	for message := range c.send {
		if err := c.write(websocket.TextMessage, message); err != nil {
			logger.Warn.Printf("[writePump] Error writing to %v: %v", c.conn.RemoteAddr(), err)
			return
		}
	}
	// send channel was closed
	_ = c.write(websocket.CloseMessage, []byte{})
}
