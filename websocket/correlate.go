// file: websocket/correlate.go
package websocket

import (
	"strconv"

	"ams-relay/logger"
	"ams-relay/models"
)

// handleAck advances the outstanding command to sent. Firmware acknowledges a
// command the moment it starts executing; the result follows later.
func (s *Server) handleAck(c *Connection, msg *AckMessage) {
	if err := s.store.MarkSent(c.DeviceID(), msg.CommandID); err != nil {
		logger.Error.Printf("[handleAck] Could not mark command sent for %s: %v", c.DeviceID(), err)
	}
}

// handleCommandResult resolves a generic command_result against the
// outstanding command for the device.
func (s *Server) handleCommandResult(c *Connection, msg *ResultMessage) {
	cmd := s.resolve(c, msg.CommandID, msg.Success, msg.Data)
	if cmd == nil {
		return
	}
	logger.Info.Printf("[handleCommandResult] Command %s (%s) on %s resolved: %s",
		cmd.ID, cmd.Type, c.DeviceID(), cmd.Status)
}

// handleFingerprintResult resolves an enrollment result and, on success,
// attaches the returned template id to the user profile.
func (s *Server) handleFingerprintResult(c *Connection, msg *FingerprintResultMessage) {
	result := map[string]interface{}{
		"fingerprintId": strconv.Itoa(msg.FingerprintID),
		"userId":        msg.UserID,
	}
	cmd := s.resolve(c, msg.CommandID, msg.Success, result)
	if cmd == nil {
		return
	}
	if msg.Success {
		userID := msg.UserID
		if userID == "" {
			userID = commandParam(cmd, "userId")
		}
		if userID == "" {
			logger.Warn.Printf("[handleFingerprintResult] Enrollment on %s succeeded but no userId to attach to", c.DeviceID())
			return
		}
		if err := s.enroller.AttachFingerprint(userID, msg.FingerprintID); err != nil {
			logger.Error.Printf("[handleFingerprintResult] Could not attach fingerprint %d to user %s: %v",
				msg.FingerprintID, userID, err)
		}
	}
}

// handleRFIDResult resolves an RFID scan result; the user comes from the
// result frame or, failing that, from the command's own parameters.
func (s *Server) handleRFIDResult(c *Connection, msg *RFIDResultMessage) {
	result := map[string]interface{}{"cardId": msg.CardID}
	if msg.UserID != "" {
		result["userId"] = msg.UserID
	}
	cmd := s.resolve(c, msg.CommandID, msg.Success, result)
	if cmd == nil {
		return
	}
	if msg.Success && msg.CardID != "" {
		userID := msg.UserID
		if userID == "" {
			userID = commandParam(cmd, "userId")
		}
		if userID == "" {
			logger.Warn.Printf("[handleRFIDResult] Scan on %s succeeded but no userId to attach card to", c.DeviceID())
			return
		}
		if err := s.enroller.AttachCard(userID, msg.CardID); err != nil {
			logger.Error.Printf("[handleRFIDResult] Could not attach card %s to user %s: %v", msg.CardID, userID, err)
		}
	}
}

// resolve runs the store correlation and absorbs the no-outstanding-command
// case: devices emit unsolicited frames, so that is logged and discarded, not
// an error.
func (s *Server) resolve(c *Connection, commandID string, success bool, result map[string]interface{}) *models.DeviceCommand {
	cmd, err := s.store.ResolveCommand(c.DeviceID(), commandID, success, result)
	if err != nil {
		logger.Error.Printf("[resolve] Store failure resolving result for %s: %v", c.DeviceID(), err)
		return nil
	}
	if cmd == nil {
		logger.Debug.Printf("[resolve] Unsolicited result from %s discarded (commandId=%q)", c.DeviceID(), commandID)
		return nil
	}
	return cmd
}

// commandParam digs a string parameter out of the stored command row.
func commandParam(cmd *models.DeviceCommand, key string) string {
	params := cmd.ParsedParameters()
	if params == nil {
		return ""
	}
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
