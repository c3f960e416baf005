package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver string // sqlite|postgres
	DBDSN    string

	LockDriver string        // local|redis
	LockTTL    time.Duration // redis lock expiry
	LockWait   time.Duration // how long a start waits for the pair lock

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CompanyID string // default tenant for the CLI
}

// Load reads an optional env file (ENV_FILE, default ".env") into the
// process environment without overriding set variables, then builds the
// config from the environment.
func Load() Config {
	path := envOr("ENV_FILE", ".env")
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[config] %s: %v", path, err)
		}
	} else {
		log.Printf("[config] loaded %s", path)
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		DBDriver:      envOr("DB_DRIVER", "sqlite"),
		DBDSN:         envOr("DB_DSN", ""),
		LockDriver:    strings.ToLower(envOr("LOCK_DRIVER", "local")),
		LockTTL:       envDuration("LOCK_TTL", 10*time.Second),
		LockWait:      envDuration("LOCK_WAIT", 5*time.Second),
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		CompanyID:     os.Getenv("COMPANY_ID"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return n
}
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// bare numbers are milliseconds
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	log.Printf("[config] %s=%q is not a duration, using %s", k, v, def)
	return def
}
