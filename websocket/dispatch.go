// file: websocket/dispatch.go
package websocket

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"ams-relay/logger"
)

// ErrDeviceNotConnected is returned when a command targets a device id with
// no live connection. Commands are never queued for later delivery.
var ErrDeviceNotConnected = errors.New("target device not found or not connected")

// Dispatch forwards a command to a specific device and records it as an
// outstanding pending command. It returns the minted command id. Delivery is
// one-way: the caller gets no result here, only the eventual correlation.
//
// The command id is included in the relayed frame as "commandId". Firmware
// that echoes it back gets exact correlation; firmware that doesn't falls
// back to the most-recent-pending heuristic, so callers that care about
// correlation correctness must serialize commands per device.
func (s *Server) Dispatch(deviceID, command string, parameters map[string]interface{}) (string, error) {
	target, ok := s.registry.LookupDevice(deviceID)
	if !ok {
		logger.Warn.Printf("[Dispatch] Device %s not connected; dropping command %s", deviceID, command)
		PublishDispatchFailure(deviceID)
		return "", ErrDeviceNotConnected
	}

	commandID := uuid.NewString()

	frame := map[string]interface{}{
		"command":   command,
		"commandId": commandID,
	}
	for k, v := range parameters {
		if k == "command" || k == "commandId" {
			continue
		}
		frame[k] = v
	}
	out, err := json.Marshal(frame)
	if err != nil {
		return "", err
	}

	target.queue(out)
	logger.Info.Printf("[Dispatch] Forwarded %s to device %s (commandId=%s)", command, deviceID, commandID)

	// Audit row is best effort; store trouble must not undo the delivery.
	if err := s.store.CreateCommand(commandID, deviceID, command, parameters); err != nil {
		logger.Error.Printf("[Dispatch] Could not record command %s for %s: %v", commandID, deviceID, err)
	}
	return commandID, nil
}
