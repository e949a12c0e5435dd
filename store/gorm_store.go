// file: store/gorm_store.go
package store

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"ams-relay/logger"
	"ams-relay/models"
)

// GormStore is the production RelayStore backed by gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// CreateCommand records a freshly dispatched command as pending.
func (s *GormStore) CreateCommand(id, deviceID, cmdType string, parameters map[string]interface{}) error {
	params := "{}"
	if parameters != nil {
		raw, err := json.Marshal(parameters)
		if err != nil {
			return err
		}
		params = string(raw)
	}
	cmd := models.DeviceCommand{
		ID:         id,
		DeviceID:   deviceID,
		Type:       cmdType,
		Parameters: params,
		Status:     models.CommandPending,
	}
	return s.db.Create(&cmd).Error
}

// MarkSent advances a command to sent, stamping SentAt.
func (s *GormStore) MarkSent(deviceID, commandID string) error {
	cmd, err := s.outstanding(deviceID, commandID)
	if err != nil || cmd == nil {
		return err
	}
	now := time.Now()
	return s.db.Model(cmd).Updates(map[string]interface{}{
		"status":  models.CommandSent,
		"sent_at": now,
	}).Error
}

// ResolveCommand finishes the matching outstanding command.
func (s *GormStore) ResolveCommand(deviceID, commandID string, success bool, result map[string]interface{}) (*models.DeviceCommand, error) {
	cmd, err := s.outstanding(deviceID, commandID)
	if err != nil || cmd == nil {
		return nil, err
	}

	status := models.CommandCompleted
	if !success {
		status = models.CommandFailed
	}
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": time.Now(),
	}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			logger.Warn.Printf("[GormStore] Could not encode result for command %s: %v", cmd.ID, err)
		} else {
			encoded := string(raw)
			updates["result"] = encoded
			cmd.Result = &encoded
		}
	}
	if err := s.db.Model(cmd).Updates(updates).Error; err != nil {
		return nil, err
	}
	cmd.Status = status
	return cmd, nil
}

// outstanding locates the command a device-side frame refers to. An explicit
// commandID wins; otherwise the newest pending/sent row for the device is
// assumed to be the one, which misattributes results if commands are
// pipelined. Callers must serialize commands per device.
func (s *GormStore) outstanding(deviceID, commandID string) (*models.DeviceCommand, error) {
	var cmd models.DeviceCommand
	q := s.db.Where("device_id = ? AND status IN ?", deviceID,
		[]string{models.CommandPending, models.CommandSent})
	if strings.TrimSpace(commandID) != "" {
		q = q.Where("id = ?", commandID)
	}
	err := q.Order("created_at DESC").First(&cmd).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cmd, nil
}

// ExpireStale sweeps outstanding commands past the deadline into timed_out.
func (s *GormStore) ExpireStale(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	tx := s.db.Model(&models.DeviceCommand{}).
		Where("status IN ? AND created_at < ?",
			[]string{models.CommandPending, models.CommandSent}, cutoff).
		Updates(map[string]interface{}{
			"status":       models.CommandTimedOut,
			"completed_at": time.Now(),
		})
	return tx.RowsAffected, tx.Error
}

// RecordAttendance stores the raw attendance payload plus the normalized
// columns the dashboards filter on.
func (s *GormStore) RecordAttendance(deviceID string, record map[string]interface{}) (*models.AttendanceRecord, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	rec := models.AttendanceRecord{
		DeviceID:  deviceID,
		Method:    stringField(record, "method"),
		StudentID: firstStringField(record, "studentId", "userId"),
		SessionID: stringField(record, "sessionId"),
		Payload:   string(raw),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordDeviceStatus appends a status transition row.
func (s *GormStore) RecordDeviceStatus(deviceID, status, message string) error {
	return s.db.Create(&models.DeviceStatusLog{
		DeviceID: deviceID,
		Status:   status,
		Message:  message,
	}).Error
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func firstStringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v := stringField(m, k); v != "" {
			return v
		}
	}
	return ""
}
