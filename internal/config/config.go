package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	CustodyURL       string
	CustodyAuthURL   string
	Campus           string
	CustodyTimeout   time.Duration
	CustodyBatchSize int

	RedisHost   string
	RedisPort   string
	RedisDB     int
	RedisPrefix string

	DatabaseURL string

	OTLPEndpoint string
	OTLPInsecure bool

	TicketPrefix   string
	TicketTotal    int
	TicketPadWidth int

	LockerCount         int
	LockerCapacity      int
	HiddenLockerID      int
	LockerRefresh       time.Duration
	LockerDedupe        time.Duration
	ConfirmRefreshDelay time.Duration
	ReservationTTL      time.Duration
	LookupDebounce      time.Duration
	ActivityLimit       int
}

// LoadEnvFile merges a .env file into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadEnvFile(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("env file %s not loaded, using process environment: %v", path, err)
	}
}

func Load() Config {
	return Config{
		Port: readString("KIOSK_PORT", "8080"),

		CustodyURL:       readString("CUSTODY_API_URL", "https://cdv-custody-api.onrender.com/cdv-custody/api/v1"),
		CustodyAuthURL:   readString("CUSTODY_AUTH_URL", "https://cdv-custody-api.onrender.com/cdv-custody"),
		Campus:           readString("CUSTODY_CAMPUS", "SURCO"),
		CustodyTimeout:   readDurationSeconds("CUSTODY_TIMEOUT_SECONDS", 15),
		CustodyBatchSize: readInt("CUSTODY_BATCH_SIZE", 1),

		RedisHost:   os.Getenv("REDIS_HOST"),
		RedisPort:   readString("REDIS_PORT", "6379"),
		RedisDB:     readInt("REDIS_DB", 0),
		RedisPrefix: readString("REDIS_PREFIX", "custodia:"),

		DatabaseURL: os.Getenv("DB_DSN"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure: readBool("OTEL_EXPORTER_OTLP_INSECURE", false),

		TicketPrefix:   readString("TICKET_PREFIX", "TS"),
		TicketTotal:    readInt("TICKET_TOTAL", 50),
		TicketPadWidth: readInt("TICKET_PAD_WIDTH", 0),

		LockerCount:         readInt("LOCKER_COUNT", 24),
		LockerCapacity:      readInt("LOCKER_CAPACITY", 3),
		HiddenLockerID:      readInt("LOCKER_HIDDEN_ID", 0),
		LockerRefresh:       readDurationSeconds("LOCKER_REFRESH_SECONDS", 30),
		LockerDedupe:        readDurationMillis("LOCKER_DEDUPE_MS", 5000),
		ConfirmRefreshDelay: readDurationMillis("CONFIRM_REFRESH_MS", 1000),
		ReservationTTL:      readDurationSeconds("RESERVATION_TTL_SECONDS", 600),
		LookupDebounce:      readDurationMillis("LOOKUP_DEBOUNCE_MS", 300),
		ActivityLimit:       readInt("ACTIVITY_LIMIT", 500),
	}
}

func readString(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readDurationMillis(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Millisecond
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
