// file: services/provision_service.go
package services

import (
	"errors"
	"fmt"
	"os"

	"github.com/skip2/go-qrcode"
)

// GenerateProvisionQR creates a QR code encoding the relay's WebSocket URL
// and the device id, scanned at the flashing station when a new scanner is
// configured.
func GenerateProvisionQR(deviceID string, size int) ([]byte, error) {
	if deviceID == "" {
		return nil, errors.New("deviceID is required")
	}

	websocketURL := os.Getenv("WEBSOCKET_URL")
	if websocketURL == "" {
		websocketURL = "ws://localhost:8080/api/ws" // Default for local testing
	}

	payload := fmt.Sprintf("%s?deviceId=%s", websocketURL, deviceID)
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return png, nil
}
