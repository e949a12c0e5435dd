// file: store/memory_store.go
package store

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"ams-relay/models"
)

// MemoryStore keeps the same rows as GormStore in process memory. It backs the
// relay when no DB_DRIVER is configured and doubles as the store in unit
// tests. The audit trail does not survive a restart in this mode.
type MemoryStore struct {
	mu         sync.Mutex
	commands   []*models.DeviceCommand
	attendance []*models.AttendanceRecord
	statusLog  []*models.DeviceStatusLog
	nextID     uint
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// CreateCommand records a freshly dispatched command as pending.
func (s *MemoryStore) CreateCommand(id, deviceID, cmdType string, parameters map[string]interface{}) error {
	params := "{}"
	if parameters != nil {
		raw, err := json.Marshal(parameters)
		if err != nil {
			return err
		}
		params = string(raw)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, &models.DeviceCommand{
		ID:         id,
		DeviceID:   deviceID,
		Type:       cmdType,
		Parameters: params,
		Status:     models.CommandPending,
		CreatedAt:  time.Now(),
	})
	return nil
}

// MarkSent advances the matching outstanding command to sent.
func (s *MemoryStore) MarkSent(deviceID, commandID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := s.outstanding(deviceID, commandID)
	if cmd == nil {
		return nil
	}
	now := time.Now()
	cmd.Status = models.CommandSent
	cmd.SentAt = &now
	return nil
}

// ResolveCommand finishes the matching outstanding command.
func (s *MemoryStore) ResolveCommand(deviceID, commandID string, success bool, result map[string]interface{}) (*models.DeviceCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd := s.outstanding(deviceID, commandID)
	if cmd == nil {
		return nil, nil
	}
	now := time.Now()
	cmd.CompletedAt = &now
	if success {
		cmd.Status = models.CommandCompleted
	} else {
		cmd.Status = models.CommandFailed
	}
	if result != nil {
		if raw, err := json.Marshal(result); err == nil {
			encoded := string(raw)
			cmd.Result = &encoded
		}
	}
	clone := *cmd
	return &clone, nil
}

// outstanding finds by id when given one, else the newest pending/sent row.
// Caller must hold s.mu.
func (s *MemoryStore) outstanding(deviceID, commandID string) *models.DeviceCommand {
	var newest *models.DeviceCommand
	for _, cmd := range s.commands {
		if cmd.DeviceID != deviceID {
			continue
		}
		if cmd.Status != models.CommandPending && cmd.Status != models.CommandSent {
			continue
		}
		if strings.TrimSpace(commandID) != "" {
			if cmd.ID == commandID {
				return cmd
			}
			continue
		}
		// on equal timestamps the later-appended row wins
		if newest == nil || !cmd.CreatedAt.Before(newest.CreatedAt) {
			newest = cmd
		}
	}
	return newest
}

// ExpireStale sweeps outstanding commands past the deadline into timed_out.
func (s *MemoryStore) ExpireStale(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()
	var swept int64
	for _, cmd := range s.commands {
		if cmd.Status != models.CommandPending && cmd.Status != models.CommandSent {
			continue
		}
		if cmd.CreatedAt.Before(cutoff) {
			now := time.Now()
			cmd.Status = models.CommandTimedOut
			cmd.CompletedAt = &now
			swept++
		}
	}
	return swept, nil
}

// RecordAttendance stores the raw attendance payload.
func (s *MemoryStore) RecordAttendance(deviceID string, record map[string]interface{}) (*models.AttendanceRecord, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec := &models.AttendanceRecord{
		ID:        s.nextID,
		DeviceID:  deviceID,
		Method:    stringField(record, "method"),
		StudentID: firstStringField(record, "studentId", "userId"),
		SessionID: stringField(record, "sessionId"),
		Payload:   string(raw),
		CreatedAt: time.Now(),
	}
	s.attendance = append(s.attendance, rec)
	clone := *rec
	return &clone, nil
}

// RecordDeviceStatus appends a status transition row.
func (s *MemoryStore) RecordDeviceStatus(deviceID, status, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.statusLog = append(s.statusLog, &models.DeviceStatusLog{
		ID:        s.nextID,
		DeviceID:  deviceID,
		Status:    status,
		Message:   message,
		CreatedAt: time.Now(),
	})
	return nil
}

// CommandByID is a test helper for inspecting the audit trail.
func (s *MemoryStore) CommandByID(id string) *models.DeviceCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cmd := range s.commands {
		if cmd.ID == id {
			clone := *cmd
			return &clone
		}
	}
	return nil
}

// CommandsForDevice returns the device's rows oldest-first.
func (s *MemoryStore) CommandsForDevice(deviceID string) []*models.DeviceCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DeviceCommand
	for _, cmd := range s.commands {
		if cmd.DeviceID == deviceID {
			clone := *cmd
			out = append(out, &clone)
		}
	}
	return out
}

// StatusLogForDevice returns the recorded status transitions for a device.
func (s *MemoryStore) StatusLogForDevice(deviceID string) []*models.DeviceStatusLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DeviceStatusLog
	for _, entry := range s.statusLog {
		if entry.DeviceID == deviceID {
			clone := *entry
			out = append(out, &clone)
		}
	}
	return out
}

// AttendanceForDevice returns the stored attendance rows for a device.
func (s *MemoryStore) AttendanceForDevice(deviceID string) []*models.AttendanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AttendanceRecord
	for _, rec := range s.attendance {
		if rec.DeviceID == deviceID {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out
}
