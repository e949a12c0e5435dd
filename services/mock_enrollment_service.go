// file: services/mock_enrollment_service.go
package services

import (
	"github.com/stretchr/testify/mock"
)

// Ensure MockEnrollmentService implements EnrollmentServiceInterface
var _ EnrollmentServiceInterface = (*MockEnrollmentService)(nil)

// MockEnrollmentService is a mock implementation for testing and extends `mock.Mock`
type MockEnrollmentService struct {
	mock.Mock
}

// AttachFingerprint (Mocked)
func (m *MockEnrollmentService) AttachFingerprint(userID string, fingerprintID int) error {
	args := m.Called(userID, fingerprintID)
	return args.Error(0)
}

// AttachCard (Mocked)
func (m *MockEnrollmentService) AttachCard(userID, cardID string) error {
	args := m.Called(userID, cardID)
	return args.Error(0)
}
