// Package websocket implements the device/web relay: identification,
// command dispatch, event broadcast, result correlation and liveness.
// file: websocket/messages.go
package websocket

import "encoding/json"

// Wire frame types. Devices and web clients share one endpoint; the type tag
// is the only thing that distinguishes their traffic.
const (
	TypeHello            = "hello"
	TypeWelcome          = "welcome"
	TypeStatus           = "status"
	TypeDeviceStatus     = "device_status"
	TypeDeviceCommand    = "device_command"
	TypeAttendance       = "attendance"
	TypeAttendanceUpdate = "attendance_update"
	TypeCommandResult    = "command_result"
	TypeCommandAck       = "command_acknowledgment"
	TypeFingerprintRes   = "fingerprint_result"
	TypeRFIDResult       = "rfid_result"
	TypeSessionUpdate    = "session_update"
	TypeError            = "error"
)

// Device status values broadcast to web clients.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusError   = "error"
)

// HelloMessage identifies a device on its first frame.
type HelloMessage struct {
	ClientType string `json:"clientType"`
	DeviceID   string `json:"deviceId"`
	MACAddress string `json:"macAddress"`
}

// StatusMessage is a health/state report from a device.
type StatusMessage struct {
	Data struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

// CommandMessage asks the relay to forward a command to a device. Parameters
// may arrive under either "parameters" or "data"; the firmware and the web
// dashboard never agreed on one key.
type CommandMessage struct {
	DeviceID   string                 `json:"deviceId"`
	Command    string                 `json:"command"`
	Parameters map[string]interface{} `json:"parameters"`
	Data       map[string]interface{} `json:"data"`
}

// Params returns whichever parameter map the sender used.
func (m *CommandMessage) Params() map[string]interface{} {
	if m.Parameters != nil {
		return m.Parameters
	}
	return m.Data
}

// AttendanceMessage carries a raw attendance capture.
type AttendanceMessage struct {
	Data map[string]interface{} `json:"data"`
}

// ResultMessage is the asynchronous outcome of a previously relayed command.
type ResultMessage struct {
	Success   bool                   `json:"success"`
	Command   string                 `json:"command"`
	CommandID string                 `json:"commandId"`
	Data      map[string]interface{} `json:"data"`
}

// AckMessage confirms a device received a command.
type AckMessage struct {
	Success   bool   `json:"success"`
	CommandID string `json:"commandId"`
}

// FingerprintResultMessage reports a fingerprint enrollment outcome.
type FingerprintResultMessage struct {
	Success       bool   `json:"success"`
	FingerprintID int    `json:"fingerprintId"`
	UserID        string `json:"userId"`
	CommandID     string `json:"commandId"`
}

// RFIDResultMessage reports an RFID scan/enrollment outcome.
type RFIDResultMessage struct {
	Success   bool   `json:"success"`
	CardID    string `json:"cardId"`
	UserID    string `json:"userId"`
	CommandID string `json:"commandId"`
}

// SessionUpdateMessage reports attendance-session lifecycle changes.
type SessionUpdateMessage struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// Inbound is the decoded form of one wire frame: a tag plus exactly one
// non-nil payload. Frames with an unrecognized tag keep Kind and Raw only and
// fall through to the catch-all handler.
type Inbound struct {
	Kind        string
	Hello       *HelloMessage
	Status      *StatusMessage
	Command     *CommandMessage
	Attendance  *AttendanceMessage
	Result      *ResultMessage
	Ack         *AckMessage
	Fingerprint *FingerprintResultMessage
	RFID        *RFIDResultMessage
	Session     *SessionUpdateMessage
	Raw         json.RawMessage
}

// DecodeMessage parses a frame once at the boundary. Malformed JSON is the
// only error; an unknown type tag is not.
func DecodeMessage(data []byte) (*Inbound, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	in := &Inbound{Kind: envelope.Type, Raw: data}
	var err error
	switch envelope.Type {
	case TypeHello:
		in.Hello = &HelloMessage{}
		err = json.Unmarshal(data, in.Hello)
	case TypeStatus:
		in.Status = &StatusMessage{}
		err = json.Unmarshal(data, in.Status)
	case TypeDeviceCommand:
		in.Command = &CommandMessage{}
		err = json.Unmarshal(data, in.Command)
	case TypeAttendance:
		in.Attendance = &AttendanceMessage{}
		err = json.Unmarshal(data, in.Attendance)
	case TypeCommandResult:
		in.Result = &ResultMessage{}
		err = json.Unmarshal(data, in.Result)
	case TypeCommandAck:
		in.Ack = &AckMessage{}
		err = json.Unmarshal(data, in.Ack)
	case TypeFingerprintRes:
		in.Fingerprint = &FingerprintResultMessage{}
		err = json.Unmarshal(data, in.Fingerprint)
	case TypeRFIDResult:
		in.RFID = &RFIDResultMessage{}
		err = json.Unmarshal(data, in.RFID)
	case TypeSessionUpdate:
		in.Session = &SessionUpdateMessage{}
		err = json.Unmarshal(data, in.Session)
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}
