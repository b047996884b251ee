package main

import (
	"log"
	"os"

	"github.com/tracelens/investigation-engine/internal/api"
	"github.com/tracelens/investigation-engine/internal/db"
)

func main() {
	log.Println("Starting TraceLens Investigation Graph Engine...")

	// ─── Environment Configuration ──────────────────────────────────────
	// Credentials come from environment variables only. Use a .env file
	// for local development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	var dbConn *db.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		conn, err := db.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persisting positions. Error: %v", err)
		} else {
			dbConn = conn
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set; positions and classifications will not be persisted")
	}

	// Setup WebSocket alert hub
	wsHub := api.NewHub()
	go wsHub.Run()

	// Setup the Gin router
	r := api.SetupRouter(dbConn, wsHub)

	port := getEnvOrDefault("PORT", "5440")

	log.Printf("Engine running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
