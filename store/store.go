// file: store/store.go
package store

import (
	"time"

	"ams-relay/models"
)

// RelayStore is the persistence collaborator the relay talks to. Every method
// covers a single row; the store is expected to make each call atomic on its
// own. Failures here must never block real-time delivery, so callers log and
// carry on.
type RelayStore interface {
	// CreateCommand records a freshly dispatched command as pending.
	CreateCommand(id, deviceID, cmdType string, parameters map[string]interface{}) error

	// MarkSent advances a command to sent. With an empty commandID the most
	// recently created pending command for the device is advanced instead,
	// for firmware that never echoes ids.
	MarkSent(deviceID, commandID string) error

	// ResolveCommand finishes a command as completed or failed and stores the
	// result payload. commandID may be empty; the outstanding-command lookup
	// then falls back to recency. Returns nil (not an error) when no
	// outstanding command matches, since devices emit unsolicited frames.
	ResolveCommand(deviceID, commandID string, success bool, result map[string]interface{}) (*models.DeviceCommand, error)

	// ExpireStale marks pending/sent commands older than the deadline as
	// timed_out and returns how many rows were swept.
	ExpireStale(olderThan time.Duration) (int64, error)

	// RecordAttendance stores a raw attendance payload from a device.
	RecordAttendance(deviceID string, record map[string]interface{}) (*models.AttendanceRecord, error)

	// RecordDeviceStatus appends an online/offline/error transition.
	RecordDeviceStatus(deviceID, status, message string) error
}
