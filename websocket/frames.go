// Outbound frame builders. Each returns marshalled JSON ready for the send
// queue. These maps hold only strings and numbers, so marshalling cannot fail.
// file: websocket/frames.go
package websocket

import (
	"encoding/json"
	"time"
)

func welcomeFrame(role Role) []byte {
	message := "Web client connected to UNILORIN AMS WebSocket server"
	if role == RoleDevice {
		message = "Device connected to UNILORIN AMS WebSocket server"
	}
	out, _ := json.Marshal(map[string]interface{}{
		"type":      TypeWelcome,
		"message":   message,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	return out
}

func errorFrame(message string) []byte {
	out, _ := json.Marshal(map[string]interface{}{
		"type":    TypeError,
		"message": message,
	})
	return out
}

func deviceStatusFrame(deviceID, status string) []byte {
	out, _ := json.Marshal(map[string]interface{}{
		"type":      TypeDeviceStatus,
		"deviceId":  deviceID,
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	return out
}

func sessionUpdateFrame(deviceID, sessionID, status string) []byte {
	out, _ := json.Marshal(map[string]interface{}{
		"type":      TypeSessionUpdate,
		"deviceId":  deviceID,
		"sessionId": sessionID,
		"status":    status,
	})
	return out
}

func attendanceUpdateFrame(record interface{}) []byte {
	out, err := json.Marshal(map[string]interface{}{
		"type":   TypeAttendanceUpdate,
		"record": record,
	})
	if err != nil {
		// record came from a decoded JSON frame, so this should not happen
		return errorFrame("unencodable attendance record")
	}
	return out
}
