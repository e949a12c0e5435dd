// file: websocket/heartbeat.go
package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"ams-relay/logger"
)

// heartbeatInterval is how often the liveness sweep runs. A connection that
// misses one full cycle (no pong between two sweeps) is considered dead.
const heartbeatInterval = 30 * time.Second

// RunLivenessMonitor sweeps the registry on a fixed interval, evicting
// connections that never answered the previous ping and pinging the rest.
// This is the only mechanism that detects silently-dead devices (power loss
// without a close frame). When commandTimeout is non-zero the same ticker
// also expires stale outstanding commands.
func (s *Server) RunLivenessMonitor(interval, commandTimeout time.Duration) {
	if interval <= 0 {
		interval = heartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		s.sweepOnce()
		if commandTimeout > 0 {
			s.expireCommands(commandTimeout)
		}
	}
}

// sweepOnce runs one liveness pass over every registered connection.
func (s *Server) sweepOnce() {
	for _, c := range s.registry.Connections() {
		if !c.aliveAndReset() {
			logger.Warn.Printf("[sweepOnce] Terminating unresponsive connection %v (device=%q)",
				c.conn.RemoteAddr(), c.DeviceID())
			s.dropConnection(c, "heartbeat timeout")
			continue
		}
		if err := c.write(websocket.PingMessage, nil); err != nil {
			logger.Warn.Printf("[sweepOnce] Ping failed for %v: %v", c.conn.RemoteAddr(), err)
		}
	}
}

// expireCommands times out outstanding commands the devices never answered.
func (s *Server) expireCommands(olderThan time.Duration) {
	swept, err := s.store.ExpireStale(olderThan)
	if err != nil {
		logger.Error.Printf("[expireCommands] Sweep failed: %v", err)
		return
	}
	if swept > 0 {
		logger.Info.Printf("[expireCommands] Timed out %d stale command(s)", swept)
	}
}
