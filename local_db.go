package main

import (
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// AnalysisRecord represents the schema of the analysis_records table: one
// row per completed page analysis.
type AnalysisRecord struct {
	ID            uint   `gorm:"primaryKey"`        // Auto-incrementing primary key
	JobID         string `gorm:"size:64;index"`     // Job that produced the analysis (empty for synchronous runs)
	Backend       string `gorm:"size:64;not null"`  // Classification backend used
	Subject       string `gorm:"size:255"`          // Detected subject, if any exercise carried one
	ExerciseCount int    `gorm:"not null"`          // Number of exercises detected
	ResultJSON    string `gorm:"size:1048576"`      // Full AnalysisResult as JSON
	CreatedAt     time.Time
}

// InitializeDB initializes the SQLite database and migrates the schema
func InitializeDB() *gorm.DB {
	// Ensure db directory exists
	dbDir := "db"
	if err := os.MkdirAll(dbDir, os.ModePerm); err != nil {
		log.Fatalf("Failed to create db directory: %v", err)
	}

	dbPath := filepath.Join(dbDir, "analysis_history.db")

	// Connect to SQLite database
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Migrate the schema (create the table if it doesn't exist)
	err = db.AutoMigrate(&AnalysisRecord{})
	if err != nil {
		log.Fatalf("Failed to migrate database schema: %v", err)
	}

	return db
}

// InsertAnalysisRecord inserts a completed analysis into the database
func InsertAnalysisRecord(db *gorm.DB, record AnalysisRecord) error {
	result := db.Create(&record)
	return result.Error
}

// GetRecentAnalyses retrieves the most recent analysis records, newest first
func GetRecentAnalyses(db *gorm.DB, limit int) ([]AnalysisRecord, error) {
	var records []AnalysisRecord
	result := db.Order("created_at DESC").Limit(limit).Find(&records)
	return records, result.Error
}
