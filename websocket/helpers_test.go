// file: websocket/helpers_test.go
package websocket

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"ams-relay/services"
	"ams-relay/store"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "fake" }
func (a fakeAddr) String() string  { return string(a) }

// fakeConn implements WSConn without network I/O. It records direct writes
// (pings, close frames) and whether Close was called; queued text frames are
// read from the Connection's send channel instead, since the write pump is
// not running in unit tests.
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	pings  int
	closed bool
	addr   fakeAddr
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: fakeAddr(addr)}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch messageType {
	case websocket.PingMessage:
		f.pings++
	case websocket.TextMessage:
		cp := append([]byte(nil), data...)
		f.writes = append(f.writes, cp)
	}
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("fakeConn has no inbound frames")
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) RemoteAddr() net.Addr            { return f.addr }
func (f *fakeConn) SetReadLimit(int64)              {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {
}

func (f *fakeConn) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

// newTestRelay builds a relay over the in-memory store and enrollment
// service.
func newTestRelay() (*Server, *store.MemoryStore, *services.MemoryEnrollmentService) {
	st := store.NewMemoryStore()
	enroller := services.NewMemoryEnrollmentService()
	return NewServer(NewRegistry(), st, enroller), st, enroller
}

// attach registers a fresh unidentified connection with the relay.
func attach(s *Server, addr string) (*Connection, *fakeConn) {
	fc := newFakeConn(addr)
	c := newConnection(fc)
	s.registry.Register(c)
	return c, fc
}

// connectDevice attaches a connection and identifies it with a device hello.
func connectDevice(t *testing.T, s *Server, deviceID string) (*Connection, *fakeConn) {
	t.Helper()
	c, fc := attach(s, deviceID+":1")
	hello := `{"type":"hello","clientType":"device","deviceId":"` + deviceID + `","macAddress":"AA:BB:CC:DD:EE:FF"}`
	s.processMessage(c, []byte(hello), "", "")
	require.Equal(t, RoleDevice, c.Role())
	drain(c)
	return c, fc
}

// connectWebClient attaches a connection and identifies it as a web client.
func connectWebClient(t *testing.T, s *Server, addr string) (*Connection, *fakeConn) {
	t.Helper()
	c, fc := attach(s, addr)
	s.processMessage(c, []byte(`{"type":"subscribe"}`), "", "")
	require.Equal(t, RoleWebClient, c.Role())
	drain(c)
	return c, fc
}

// drain empties a connection's send queue and returns what was pending.
func drain(c *Connection) [][]byte {
	var out [][]byte
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

// framesOfType filters drained frames by their type tag.
func framesOfType(frames [][]byte, kind string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, raw := range frames {
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m["type"] == kind {
			out = append(out, m)
		}
	}
	return out
}
