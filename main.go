// main.go
package main

import (
	"crypto/tls"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ams-relay/controllers"
	"ams-relay/logger"
	"ams-relay/middleware"
	"ams-relay/services"
	"ams-relay/store"
	"ams-relay/websocket"
)

func main() {
	// Load .env when present; deployed environments inject variables directly
	_ = godotenv.Load()

	logger.SetLogLevel(os.Getenv("ENV"))

	// The hosting platform sets PORT; without it there is nothing to bind
	port := os.Getenv("PORT")
	if port == "" {
		log.Fatal("PORT environment variable is not set!")
	}
	logger.Info.Printf("[BOOT] Using PORT: %s", port)

	// Persistence: gorm when a driver is configured, in-memory otherwise
	var (
		relayStore store.RelayStore
		enroller   websocket.Enroller
	)
	db, err := store.Open(os.Getenv("DB_DRIVER"), os.Getenv("DB_DSN"))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if db != nil {
		if err := store.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate relay tables: %v", err)
		}
		relayStore = store.NewGormStore(db)
		enroller = services.NewEnrollmentService(db)
		logger.Info.Println("[BOOT] Using database-backed store")
	} else {
		relayStore = store.NewMemoryStore()
		enroller = services.NewMemoryEnrollmentService()
		logger.Warn.Println("[BOOT] DB_DRIVER not set; command audit trail will not survive restarts")
	}

	if os.Getenv("AWS_REGION") != "" {
		websocket.EnableMetrics()
	}

	relay := websocket.NewServer(websocket.NewRegistry(), relayStore, enroller)

	// Optional per-command deadline; zero keeps commands pending forever
	var commandTimeout time.Duration
	if raw := os.Getenv("COMMAND_TIMEOUT"); raw != "" {
		commandTimeout, err = time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Invalid COMMAND_TIMEOUT %q: %v", raw, err)
		}
	}
	go relay.RunLivenessMonitor(0, commandTimeout)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	if os.Getenv("AWS_XRAY_ENABLED") == "true" {
		router.Use(middleware.Trace("ams-relay"))
	}

	rc := controllers.NewRelayController(relay)
	router.GET("/", rc.Health)
	router.GET("/health", rc.HealthJSON)
	router.GET("/devices", rc.ListDevices)
	router.GET("/provision-qr", rc.ProvisionQR)
	router.GET("/delete-all-fingerprints", rc.DeleteAllFingerprints)
	router.POST("/delete-all-fingerprints", rc.DeleteAllFingerprints)
	router.POST("/device-command", rc.DeviceCommand)

	// Devices and web clients share one socket endpoint
	router.GET("/api/ws", func(c *gin.Context) {
		relay.ServeWs(c.Writer, c.Request)
	})

	certPath := os.Getenv("SSL_CERT_PATH")
	keyPath := os.Getenv("SSL_KEY_PATH")
	if certPath != "" && keyPath != "" {
		if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
			logger.Warn.Printf("SSL certs not found or invalid, falling back to WS: %v", err)
		} else {
			logger.Info.Printf("WebSocket Server (WSS) ready on wss://0.0.0.0:%s/api/ws", port)
			if err := router.RunTLS(":"+port, certPath, keyPath); err != nil {
				log.Fatalf("Failed to run server: %v", err)
			}
			return
		}
	}

	logger.Info.Printf("WebSocket Server (WS) ready on ws://0.0.0.0:%s/api/ws", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
