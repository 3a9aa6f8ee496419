package main

import (
	"log"
	"os"

	"clarvis-be/internal/model"
	"clarvis-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = database.DriverSQLite
	}
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" && driver == database.DriverPostgres {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.Open(database.Options{Driver: driver, DSN: dsn})
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Printf("Running AutoMigrate for %d tables on %s...", len(model.All()), driver)

	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
