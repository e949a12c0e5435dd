// file: websocket/handler.go
package websocket

import (
	"net/http"

	"ams-relay/logger"
	"ams-relay/store"
)

// Enroller is the collaborator that attaches enrollment results (fingerprint
// templates, RFID cards) to user profiles. The correlator calls it; the web
// application owns the implementation.
type Enroller interface {
	AttachFingerprint(userID string, fingerprintID int) error
	AttachCard(userID, cardID string) error
}

// Server routes all relay traffic: it owns the registry and fans messages out
// to the dispatcher, broadcaster and correlator.
type Server struct {
	registry *Registry
	store    store.RelayStore
	enroller Enroller
}

// NewServer wires a relay server from its collaborators.
func NewServer(registry *Registry, st store.RelayStore, enroller Enroller) *Server {
	return &Server{
		registry: registry,
		store:    st,
		enroller: enroller,
	}
}

// Registry exposes the connection registry to the control plane.
func (s *Server) Registry() *Registry {
	return s.registry
}

// ServeWs is the WebSocket entry point. It upgrades the request, applies
// best-effort header identification and starts the pumps.
func (s *Server) ServeWs(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			logger.Error.Printf("[ServeWs] Recovered from panic: %v", err)
		}
	}()

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error.Printf("[ServeWs] WebSocket upgrade error: %v", err)
		return
	}

	c := newConnection(wsConn)

	// Headers only tag the connection provisionally; not every proxy between
	// a scanner and the relay preserves them, so trust is deferred to the
	// first protocol message.
	headerDeviceID := r.Header.Get("x-device-id")
	headerMAC := r.Header.Get("x-mac-address")
	logger.Info.Printf("[ServeWs] Connected: remote=%v deviceId=%q mac=%q",
		wsConn.RemoteAddr(), headerDeviceID, headerMAC)

	s.registry.Register(c)

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	go c.writePump()
	go s.readPump(c, headerDeviceID, headerMAC)
}

// readPump consumes inbound frames for one connection until it closes, then
// runs the shared cleanup path.
func (s *Server) readPump(c *Connection, headerDeviceID, headerMAC string) {
	defer s.dropConnection(c, "closed")

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			logger.Warn.Printf("[readPump] Read error from %v: %v", c.conn.RemoteAddr(), err)
			return
		}
		s.processMessage(c, data, headerDeviceID, headerMAC)
	}
}

// processMessage decodes one frame and routes it. Identification happens on
// the first frame; everything after is routed by type.
func (s *Server) processMessage(c *Connection, data []byte, headerDeviceID, headerMAC string) {
	in, err := DecodeMessage(data)
	if err != nil {
		logger.Warn.Printf("[processMessage] Invalid JSON from %v: %v", c.conn.RemoteAddr(), err)
		c.queue(errorFrame("invalid message"))
		return
	}

	if c.Role() == RoleUnidentified {
		if s.identify(c, in, headerDeviceID, headerMAC) {
			// the hello frame is consumed by identification
			return
		}
	}

	switch in.Kind {
	case TypeDeviceCommand:
		s.handleCommandRequest(c, in.Command)
	case TypeAttendance:
		s.handleAttendance(c, in.Attendance)
	case TypeStatus:
		s.handleStatus(c, in.Status)
	case TypeCommandAck:
		s.handleAck(c, in.Ack)
	case TypeCommandResult:
		s.handleCommandResult(c, in.Result)
	case TypeFingerprintRes:
		s.handleFingerprintResult(c, in.Fingerprint)
	case TypeRFIDResult:
		s.handleRFIDResult(c, in.RFID)
	case TypeSessionUpdate:
		s.handleSessionUpdate(c, in.Session)
	case TypeHello:
		// repeated hello after identification
		logger.Debug.Printf("[processMessage] Ignoring repeated hello from %v", c.conn.RemoteAddr())
	default:
		s.handleUnknown(c, in)
	}
}

// identify classifies a connection from its first frame. A device hello
// confirms the Device role (headers notwithstanding); any other first frame
// makes the connection a web client, and that frame is then processed
// normally. Returns true when the frame was consumed.
func (s *Server) identify(c *Connection, in *Inbound, headerDeviceID, headerMAC string) bool {
	if in.Kind == TypeHello && in.Hello.ClientType == "device" {
		deviceID := in.Hello.DeviceID
		if deviceID == "" {
			deviceID = headerDeviceID
		}
		mac := in.Hello.MACAddress
		if mac == "" {
			mac = headerMAC
		}

		if prior := s.registry.Identify(c, RoleDevice, deviceID, mac); prior != nil {
			prior.closeSend()
		}
		logger.Info.Printf("[identify] Device identified: %s (%s)", deviceID, mac)

		if c.markWelcomed() {
			c.queue(welcomeFrame(RoleDevice))
		}

		s.BroadcastEvent(deviceStatusFrame(deviceID, StatusOnline), c)
		if err := s.store.RecordDeviceStatus(deviceID, StatusOnline, "connected"); err != nil {
			logger.Error.Printf("[identify] Could not record online status for %s: %v", deviceID, err)
		}
		s.publishConnectionCounts()
		return true
	}

	// Permissive default: anything else is a web client.
	s.registry.Identify(c, RoleWebClient, "", "")
	logger.Info.Printf("[identify] Web client identified: %v", c.conn.RemoteAddr())
	if c.markWelcomed() {
		c.queue(welcomeFrame(RoleWebClient))
	}
	s.publishConnectionCounts()
	return false
}

// handleCommandRequest relays a device_command, answering the origin with an
// error frame when the target is absent.
func (s *Server) handleCommandRequest(c *Connection, msg *CommandMessage) {
	if msg.DeviceID == "" || msg.Command == "" {
		c.queue(errorFrame("device_command requires deviceId and command"))
		return
	}
	if _, err := s.Dispatch(msg.DeviceID, msg.Command, msg.Params()); err != nil {
		c.queue(errorFrame("Target device not found or not connected."))
	}
}

// handleAttendance persists the capture (best effort) and broadcasts the
// normalized record to web clients, excluding the originating device.
func (s *Server) handleAttendance(c *Connection, msg *AttendanceMessage) {
	if msg.Data == nil {
		c.queue(errorFrame("attendance requires data"))
		return
	}
	record := msg.Data
	stored, err := s.store.RecordAttendance(c.DeviceID(), msg.Data)
	if err != nil {
		// persistence must not block real-time delivery
		logger.Error.Printf("[handleAttendance] Could not store record from %s: %v", c.DeviceID(), err)
	} else {
		logger.Info.Printf("[handleAttendance] Attendance recorded from device %s (method=%s)",
			c.DeviceID(), stored.Method)
	}
	s.BroadcastEvent(attendanceUpdateFrame(record), c)
}

// handleStatus records an explicit device status report and forwards it.
func (s *Server) handleStatus(c *Connection, msg *StatusMessage) {
	status := msg.Data.Status
	if status == "" {
		status = StatusError
	}
	if err := s.store.RecordDeviceStatus(c.DeviceID(), status, msg.Data.Message); err != nil {
		logger.Error.Printf("[handleStatus] Could not record status for %s: %v", c.DeviceID(), err)
	}
	s.BroadcastEvent(deviceStatusFrame(c.DeviceID(), status), c)
}

// handleSessionUpdate forwards session lifecycle changes to web clients.
func (s *Server) handleSessionUpdate(c *Connection, msg *SessionUpdateMessage) {
	s.BroadcastEvent(sessionUpdateFrame(c.DeviceID(), msg.SessionID, msg.Status), c)
}

// handleUnknown is the catch-all for unrecognized type tags.
func (s *Server) handleUnknown(c *Connection, msg *Inbound) {
	logger.Debug.Printf("[handleUnknown] Unhandled message type %q from %v (role=%s)",
		msg.Kind, c.conn.RemoteAddr(), c.Role())
}

// dropConnection is the single cleanup path shared by normal closes and
// heartbeat evictions. Removal is idempotent; the offline broadcast fires at
// most once per connection.
func (s *Server) dropConnection(c *Connection, reason string) {
	c.terminate()
	if !s.registry.Remove(c) {
		return
	}
	c.closeSend()

	logger.Info.Printf("[dropConnection] %s connection %v dropped (%s)", c.Role(), c.conn.RemoteAddr(), reason)

	if c.Role() == RoleDevice && c.DeviceID() != "" {
		s.BroadcastEvent(deviceStatusFrame(c.DeviceID(), StatusOffline), c)
		if err := s.store.RecordDeviceStatus(c.DeviceID(), StatusOffline, reason); err != nil {
			logger.Error.Printf("[dropConnection] Could not record offline status for %s: %v", c.DeviceID(), err)
		}
	}
	s.publishConnectionCounts()
}

func (s *Server) publishConnectionCounts() {
	devices, webClients := s.registry.Counts()
	PublishDeviceConnections(devices)
	PublishWebClientConnections(webClients)
}
