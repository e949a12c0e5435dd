// Package services: domain collaborators the relay calls into.
// file: services/enrollment_service.go
package services

import (
	"errors"
	"sync"

	"gorm.io/gorm"

	"ams-relay/logger"
	"ams-relay/models"
)

// EnrollmentServiceInterface applies successful enrollment results to user
// profiles. The relay only ever calls these two methods; the rest of the user
// lifecycle belongs to the web application.
type EnrollmentServiceInterface interface {
	AttachFingerprint(userID string, fingerprintID int) error
	AttachCard(userID, cardID string) error
}

// EnrollmentService is the gorm-backed implementation.
type EnrollmentService struct {
	db *gorm.DB
}

// NewEnrollmentService creates an EnrollmentService over an open database.
func NewEnrollmentService(db *gorm.DB) *EnrollmentService {
	return &EnrollmentService{db: db}
}

// AttachFingerprint stores the scanner's template id on the user profile.
func (s *EnrollmentService) AttachFingerprint(userID string, fingerprintID int) error {
	if userID == "" {
		return errors.New("userID is required")
	}
	logger.Info.Printf("Attaching fingerprint %d to user %s", fingerprintID, userID)
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("fingerprint_id", fingerprintID).Error
}

// AttachCard stores the scanned RFID card id on the user profile.
func (s *EnrollmentService) AttachCard(userID, cardID string) error {
	if userID == "" || cardID == "" {
		return errors.New("userID and cardID are required")
	}
	logger.Info.Printf("Attaching card %s to user %s", cardID, userID)
	return s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("card_id", cardID).Error
}

// MemoryEnrollmentService keeps enrollments in process memory for runs
// without a database.
type MemoryEnrollmentService struct {
	mu           sync.Mutex
	fingerprints map[string]int
	cards        map[string]string
}

// NewMemoryEnrollmentService returns an empty in-memory enrollment service.
func NewMemoryEnrollmentService() *MemoryEnrollmentService {
	return &MemoryEnrollmentService{
		fingerprints: make(map[string]int),
		cards:        make(map[string]string),
	}
}

// AttachFingerprint records the template id for a user.
func (s *MemoryEnrollmentService) AttachFingerprint(userID string, fingerprintID int) error {
	if userID == "" {
		return errors.New("userID is required")
	}
	s.mu.Lock()
	s.fingerprints[userID] = fingerprintID
	s.mu.Unlock()
	return nil
}

// AttachCard records the card id for a user.
func (s *MemoryEnrollmentService) AttachCard(userID, cardID string) error {
	if userID == "" || cardID == "" {
		return errors.New("userID and cardID are required")
	}
	s.mu.Lock()
	s.cards[userID] = cardID
	s.mu.Unlock()
	return nil
}

// Fingerprint returns the stored template id for a user, if any.
func (s *MemoryEnrollmentService) Fingerprint(userID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.fingerprints[userID]
	return id, ok
}

// Card returns the stored card id for a user, if any.
func (s *MemoryEnrollmentService) Card(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.cards[userID]
	return id, ok
}
