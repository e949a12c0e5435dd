// file: controllers/relay_controller_test.go
package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ams-relay/services"
	"ams-relay/store"
	"ams-relay/websocket"
)

func setupRouter() (*gin.Engine, *websocket.Server) {
	gin.SetMode(gin.TestMode)
	relay := websocket.NewServer(websocket.NewRegistry(), store.NewMemoryStore(), services.NewMemoryEnrollmentService())
	rc := NewRelayController(relay)

	router := gin.New()
	router.GET("/", rc.Health)
	router.GET("/health", rc.HealthJSON)
	router.GET("/devices", rc.ListDevices)
	router.GET("/provision-qr", rc.ProvisionQR)
	router.GET("/delete-all-fingerprints", rc.DeleteAllFingerprints)
	router.POST("/delete-all-fingerprints", rc.DeleteAllFingerprints)
	router.POST("/device-command", rc.DeviceCommand)
	router.GET("/api/ws", func(c *gin.Context) {
		relay.ServeWs(c.Writer, c.Request)
	})
	return router, relay
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestHealthJSON(t *testing.T) {
	router, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["connections"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestDeleteAllFingerprintsRequiresDeviceID(t *testing.T) {
	router, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/delete-all-fingerprints", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteAllFingerprintsUnknownDevice(t *testing.T) {
	router, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/delete-all-fingerprints?deviceId=esp32-gone", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Device not connected", body["error"])
}

func TestDeleteAllFingerprintsDispatchesToConnectedDevice(t *testing.T) {
	router, _ := setupRouter()
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":       "hello",
		"clientType": "device",
		"deviceId":   "esp32-ctl",
	}))

	// the welcome confirms identification finished server side
	var welcome map[string]interface{}
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "welcome", welcome["type"])

	resp, err := http.Get(srv.URL + "/delete-all-fingerprints?deviceId=esp32-ctl")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["success"])
	require.NotEmpty(t, body["commandId"])

	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "fingerprint", frame["command"])
	assert.Equal(t, "delete_all", frame["action"])
	assert.Equal(t, body["commandId"], frame["commandId"])
}

func TestDeviceCommandValidation(t *testing.T) {
	router, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/device-command", bytes.NewBufferString("not json"))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/device-command", bytes.NewBufferString(`{"deviceId":"esp32-1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeviceCommandUnknownDevice(t *testing.T) {
	router, _ := setupRouter()

	w := httptest.NewRecorder()
	body := `{"deviceId":"esp32-gone","command":"restart"}`
	req, _ := http.NewRequest(http.MethodPost, "/device-command", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListDevicesEmpty(t *testing.T) {
	router, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/devices", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Devices []map[string]interface{} `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Devices)
}

func TestProvisionQR(t *testing.T) {
	router, _ := setupRouter()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/provision-qr", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/provision-qr?deviceId=esp32-1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}
