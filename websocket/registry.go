// file: websocket/registry.go
package websocket

import (
	"sync"

	"ams-relay/logger"
)

// DeviceInfo is the registry's answer to "what is connected right now".
type DeviceInfo struct {
	DeviceID   string `json:"deviceId"`
	MACAddress string `json:"macAddress"`
	Connected  bool   `json:"connected"`
}

// Registry is the authoritative in-memory set of open connections, with a
// secondary index from deviceId to connection. All mutation goes through one
// mutex so insert/remove/lookup stay atomic with respect to each other. It is
// rebuilt from scratch on restart; every device must re-identify.
type Registry struct {
	mu      sync.Mutex
	conns   map[*Connection]bool
	devices map[string]*Connection
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:   make(map[*Connection]bool),
		devices: make(map[string]*Connection),
	}
}

// Register adds a newly accepted socket in the Unidentified role.
func (r *Registry) Register(c *Connection) {
	r.mu.Lock()
	r.conns[c] = true
	r.mu.Unlock()
}

// Identify transitions a connection's role (terminal) and, for devices,
// indexes it by deviceId. A connection already registered under the same id
// is evicted: a rebooted scanner must be able to reclaim its id without
// waiting for the stale socket to time out. The evicted connection, if any,
// is returned already closed.
func (r *Registry) Identify(c *Connection, role Role, deviceID, mac string) *Connection {
	if !c.setIdentity(role, deviceID, mac) {
		return nil
	}
	if role != RoleDevice || deviceID == "" {
		return nil
	}

	r.mu.Lock()
	prior := r.devices[deviceID]
	if prior == c {
		prior = nil
	}
	r.devices[deviceID] = c
	if prior != nil {
		delete(r.conns, prior)
	}
	r.mu.Unlock()

	if prior != nil {
		logger.Warn.Printf("[Registry] Evicting stale connection for device %s", deviceID)
		prior.terminate()
	}
	return prior
}

// LookupDevice finds the live connection for a device id.
func (r *Registry) LookupDevice(deviceID string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.devices[deviceID]
	return c, ok
}

// WebClients snapshots every connection identified as a web client.
func (r *Registry) WebClients() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Connection
	for c := range r.conns {
		if c.Role() == RoleWebClient {
			out = append(out, c)
		}
	}
	return out
}

// Connections snapshots every registered connection, for the liveness sweep.
func (r *Registry) Connections() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Connection, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Remove drops a connection from both indices. It reports whether the
// connection was still registered, so close and heartbeat eviction can share
// one cleanup path without broadcasting offline twice.
func (r *Registry) Remove(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.conns[c] {
		return false
	}
	delete(r.conns, c)
	if id := c.DeviceID(); id != "" && r.devices[id] == c {
		delete(r.devices, id)
	}
	return true
}

// Counts returns how many devices and web clients are registered.
func (r *Registry) Counts() (devices, webClients int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.conns {
		switch c.Role() {
		case RoleDevice:
			devices++
		case RoleWebClient:
			webClients++
		}
	}
	return devices, webClients
}

// Snapshot lists the connected devices for the control plane.
func (r *Registry) Snapshot() []DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DeviceInfo, 0, len(r.devices))
	for id, c := range r.devices {
		out = append(out, DeviceInfo{
			DeviceID:   id,
			MACAddress: c.MACAddress(),
			Connected:  true,
		})
	}
	return out
}
