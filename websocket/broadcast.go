// file: websocket/broadcast.go
package websocket

import (
	"ams-relay/logger"
)

// BroadcastEvent fans a serialized event out to every registered web client,
// skipping excluding (usually the originating device, to avoid echo). Device
// connections never receive broadcasts. Delivery is fire and forget: one slow
// or dead web client must not hold up the rest, so each write goes through
// the non-blocking per-connection queue.
func (s *Server) BroadcastEvent(event []byte, excluding *Connection) {
	clients := s.registry.WebClients()
	for _, c := range clients {
		if c == excluding {
			continue
		}
		c.queue(event)
	}
	logger.Debug.Printf("[BroadcastEvent] Queued event for %d web client(s)", len(clients))
}
