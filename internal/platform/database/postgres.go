package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

type Config struct {
	DSN        string
	MaxRetries int
	RetryDelay time.Duration
}

// NewPostgresDB opens the activity database, retrying while the server is still starting.
func NewPostgresDB(cfg Config) (*sql.DB, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 10
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	var db *sql.DB
	var err error

	for i := 1; i <= maxRetries; i++ {
		log.Printf("Connecting to database (Attempt %d/%d)...", i, maxRetries)
		db, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = db.Ping()
		}

		if err == nil {
			log.Println("Database connected successfully!")
			return db, nil
		}

		if db != nil {
			db.Close()
		}
		log.Printf("Database not ready yet. Waiting %s...", delay)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("connect database: %w", err)
}
