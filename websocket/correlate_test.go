// file: websocket/correlate_test.go
package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ams-relay/models"
	"ams-relay/services"
	"ams-relay/store"
)

func TestResultWithoutIDResolvesMostRecentCommand(t *testing.T) {
	s, st, _ := newTestRelay()
	device, _ := connectDevice(t, s, "esp32-r1")

	first, err := s.Dispatch("esp32-r1", "restart", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.Dispatch("esp32-r1", "fingerprint", nil)
	require.NoError(t, err)
	drain(device)

	s.processMessage(device, []byte(`{"type":"command_result","success":false,"data":{"error":"sensor busy"}}`), "", "")

	assert.Equal(t, models.CommandFailed, st.CommandByID(second).Status)
	assert.Equal(t, models.CommandPending, st.CommandByID(first).Status)
}

func TestResultWithIDResolvesExactCommand(t *testing.T) {
	s, st, _ := newTestRelay()
	device, _ := connectDevice(t, s, "esp32-r2")

	first, err := s.Dispatch("esp32-r2", "restart", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.Dispatch("esp32-r2", "fingerprint", nil)
	require.NoError(t, err)
	drain(device)

	s.processMessage(device, []byte(`{"type":"command_result","success":true,"commandId":"`+first+`"}`), "", "")

	assert.Equal(t, models.CommandCompleted, st.CommandByID(first).Status)
	assert.Equal(t, models.CommandPending, st.CommandByID(second).Status)
}

func TestAckAdvancesCommandToSent(t *testing.T) {
	s, st, _ := newTestRelay()
	device, _ := connectDevice(t, s, "esp32-r3")

	commandID, err := s.Dispatch("esp32-r3", "restart", nil)
	require.NoError(t, err)
	drain(device)

	s.processMessage(device, []byte(`{"type":"command_acknowledgment","success":true}`), "", "")
	assert.Equal(t, models.CommandSent, st.CommandByID(commandID).Status)

	// an acknowledged command still resolves on its result
	s.processMessage(device, []byte(`{"type":"command_result","success":true}`), "", "")
	assert.Equal(t, models.CommandCompleted, st.CommandByID(commandID).Status)
}

func TestUnsolicitedResultIsDiscarded(t *testing.T) {
	st := store.NewMemoryStore()
	enroller := new(services.MockEnrollmentService)
	s := NewServer(NewRegistry(), st, enroller)
	device, _ := connectDevice(t, s, "esp32-r4")

	s.processMessage(device, []byte(`{"type":"fingerprint_result","success":true,"fingerprintId":3,"userId":"u-1"}`), "", "")

	assert.Empty(t, st.CommandsForDevice("esp32-r4"))
	enroller.AssertNotCalled(t, "AttachFingerprint")
}

func TestFingerprintResultAttachesTemplateToUser(t *testing.T) {
	st := store.NewMemoryStore()
	enroller := new(services.MockEnrollmentService)
	enroller.On("AttachFingerprint", "u-42", 7).Return(nil)
	s := NewServer(NewRegistry(), st, enroller)
	device, _ := connectDevice(t, s, "esp32-r5")

	commandID, err := s.Dispatch("esp32-r5", "enroll_fingerprint", map[string]interface{}{"userId": "u-42"})
	require.NoError(t, err)
	drain(device)

	// the firmware omits userId; it must come from the stored command
	s.processMessage(device, []byte(`{"type":"fingerprint_result","success":true,"fingerprintId":7,"commandId":"`+commandID+`"}`), "", "")

	assert.Equal(t, models.CommandCompleted, st.CommandByID(commandID).Status)
	enroller.AssertExpectations(t)
}

func TestFailedFingerprintResultSkipsEnrollment(t *testing.T) {
	st := store.NewMemoryStore()
	enroller := new(services.MockEnrollmentService)
	s := NewServer(NewRegistry(), st, enroller)
	device, _ := connectDevice(t, s, "esp32-r6")

	commandID, err := s.Dispatch("esp32-r6", "enroll_fingerprint", map[string]interface{}{"userId": "u-42"})
	require.NoError(t, err)
	drain(device)

	s.processMessage(device, []byte(`{"type":"fingerprint_result","success":false,"commandId":"`+commandID+`"}`), "", "")

	assert.Equal(t, models.CommandFailed, st.CommandByID(commandID).Status)
	enroller.AssertNotCalled(t, "AttachFingerprint")
}

func TestRFIDResultAttachesCard(t *testing.T) {
	st := store.NewMemoryStore()
	enroller := new(services.MockEnrollmentService)
	enroller.On("AttachCard", "u-9", "04:A3:1B:2C").Return(nil)
	s := NewServer(NewRegistry(), st, enroller)
	device, _ := connectDevice(t, s, "esp32-r7")

	commandID, err := s.Dispatch("esp32-r7", "enroll_rfid", nil)
	require.NoError(t, err)
	drain(device)

	s.processMessage(device, []byte(`{"type":"rfid_result","success":true,"cardId":"04:A3:1B:2C","userId":"u-9","commandId":"`+commandID+`"}`), "", "")

	assert.Equal(t, models.CommandCompleted, st.CommandByID(commandID).Status)
	enroller.AssertExpectations(t)
}

func TestResultsNeverCrossDevices(t *testing.T) {
	s, st, _ := newTestRelay()
	deviceA, _ := connectDevice(t, s, "esp32-ra")
	deviceB, _ := connectDevice(t, s, "esp32-rb")

	commandID, err := s.Dispatch("esp32-ra", "restart", nil)
	require.NoError(t, err)
	drain(deviceA)

	// a result from the wrong device must not resolve A's command
	s.processMessage(deviceB, []byte(`{"type":"command_result","success":true}`), "", "")

	assert.Equal(t, models.CommandPending, st.CommandByID(commandID).Status)
}
