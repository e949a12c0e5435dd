// Package models holds the persisted rows the relay writes through the store.
// file: models/models.go
package models

import (
	"encoding/json"
	"time"
)

// Command statuses. A command is created as pending at dispatch time, advances
// to sent when the device acknowledges it, and ends completed or failed when a
// result arrives. timed_out is only assigned by the optional expiry sweep.
const (
	CommandPending   = "pending"
	CommandSent      = "sent"
	CommandCompleted = "completed"
	CommandFailed    = "failed"
	CommandTimedOut  = "timed_out"
)

// DeviceCommand is the audit row for a command dispatched to a device.
// Parameters and Result are stored JSON-encoded, matching what travels on the
// wire. Rows are never deleted by the relay.
type DeviceCommand struct {
	ID          string `gorm:"primaryKey;size:36"`
	DeviceID    string `gorm:"index;size:64"`
	Type        string `gorm:"size:64"`
	Parameters  string
	Status      string `gorm:"index;size:16"`
	Result      *string
	CreatedAt   time.Time `gorm:"index"`
	SentAt      *time.Time
	CompletedAt *time.Time
}

// ParsedParameters decodes the stored parameter JSON, returning nil when the
// row has none or they do not parse.
func (c *DeviceCommand) ParsedParameters() map[string]interface{} {
	if c.Parameters == "" {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(c.Parameters), &out); err != nil {
		return nil
	}
	return out
}

// AttendanceRecord is one normalized attendance event captured by a device.
type AttendanceRecord struct {
	ID        uint   `gorm:"primaryKey"`
	DeviceID  string `gorm:"index;size:64"`
	Method    string `gorm:"size:16"` // fingerprint | rfid
	StudentID string `gorm:"size:64"`
	SessionID string `gorm:"size:64"`
	Payload   string // raw device payload, JSON-encoded
	CreatedAt time.Time
}

// DeviceStatusLog records online/offline/error transitions for a device.
type DeviceStatusLog struct {
	ID        uint   `gorm:"primaryKey"`
	DeviceID  string `gorm:"index;size:64"`
	Status    string `gorm:"size:16"`
	Message   string
	CreatedAt time.Time
}

// User carries only the credential columns the relay updates when an
// enrollment result comes back. The full user schema is owned elsewhere.
type User struct {
	ID            string `gorm:"primaryKey;size:64"`
	FingerprintID *int
	CardID        *string `gorm:"size:64"`
	UpdatedAt     time.Time
}
