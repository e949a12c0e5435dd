// Package controllers: HTTP control plane for the relay.
// file: controllers/relay_controller.go
package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ams-relay/logger"
	"ams-relay/services"
	"ams-relay/websocket"
)

// RelayController exposes the out-of-band administrative side channel. Every
// command it accepts goes through the same dispatcher as socket-originated
// commands.
type RelayController struct {
	Relay *websocket.Server
}

// NewRelayController binds the controller to a relay server.
func NewRelayController(relay *websocket.Server) *RelayController {
	return &RelayController{Relay: relay}
}

// Health answers the hosting platform's liveness probe.
func (rc *RelayController) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// HealthJSON reports server status plus the current connection counts.
func (rc *RelayController) HealthJSON(c *gin.Context) {
	devices, webClients := rc.Relay.Registry().Counts()
	c.JSON(http.StatusOK, gin.H{
		"message":     "WebSocket server is running!",
		"status":      "ok",
		"timestamp":   time.Now().Format(time.RFC3339),
		"connections": devices + webClients,
	})
}

// DeleteAllFingerprints wipes every enrolled fingerprint on one device.
// 400 when deviceId is missing, 404 when the device is not connected.
func (rc *RelayController) DeleteAllFingerprints(c *gin.Context) {
	deviceID := c.Query("deviceId")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId query parameter is required"})
		return
	}

	commandID, err := rc.Relay.Dispatch(deviceID, "fingerprint", map[string]interface{}{
		"action": "delete_all",
	})
	if err != nil {
		if errors.Is(err, websocket.ErrDeviceNotConnected) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not connected"})
			return
		}
		logger.Error.Printf("DeleteAllFingerprints: dispatch to %s failed: %v", deviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send command"})
		return
	}

	logger.Info.Printf("DeleteAllFingerprints: command sent to device %s", deviceID)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"commandId": commandID,
		"message":   "Delete all fingerprints command sent to device " + deviceID,
	})
}

// deviceCommandRequest is the body of POST /device-command.
type deviceCommandRequest struct {
	DeviceID   string                 `json:"deviceId"`
	Command    string                 `json:"command"`
	Parameters map[string]interface{} `json:"parameters"`
}

// DeviceCommand injects an arbitrary administrative command for a device.
func (rc *RelayController) DeviceCommand(c *gin.Context) {
	var req deviceCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.DeviceID == "" || req.Command == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId and command are required"})
		return
	}

	commandID, err := rc.Relay.Dispatch(req.DeviceID, req.Command, req.Parameters)
	if err != nil {
		if errors.Is(err, websocket.ErrDeviceNotConnected) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not connected"})
			return
		}
		logger.Error.Printf("DeviceCommand: dispatch %s to %s failed: %v", req.Command, req.DeviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send command"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"commandId": commandID,
		"message":   "Command " + req.Command + " sent to device " + req.DeviceID,
	})
}

// ListDevices returns the currently connected devices.
func (rc *RelayController) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"devices": rc.Relay.Registry().Snapshot(),
	})
}

// ProvisionQR serves a PNG QR code used to configure a new scanner.
func (rc *RelayController) ProvisionQR(c *gin.Context) {
	deviceID := c.Query("deviceId")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "deviceId query parameter is required"})
		return
	}

	png, err := services.GenerateProvisionQR(deviceID, 256)
	if err != nil {
		logger.Error.Printf("ProvisionQR: could not generate code for %s: %v", deviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
