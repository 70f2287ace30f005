package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	ServerPort string
	JWTSecret  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Lock TTLs: a structural move holds its lock briefly, an interactive
	// card-edit lock can live much longer before self-expiring.
	MoveLockTTL    time.Duration
	EditLockTTL    time.Duration
	PresenceWindow time.Duration
	TypingWindow   time.Duration

	// Browser origins allowed to open the websocket. Empty admits any
	// origin, which suits local development.
	WSAllowedOrigins []string
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "taskboard_user"),
		DBPassword: getEnv("DB_PASSWORD", "taskboard_pass"),
		DBName:     getEnv("DB_NAME", "taskboard_db"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		JWTSecret:  getEnv("JWT_SECRET", "supersecretkey"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MoveLockTTL:    getEnvDuration("MOVE_LOCK_TTL", 10*time.Second),
		EditLockTTL:    getEnvDuration("EDIT_LOCK_TTL", 5*time.Minute),
		PresenceWindow: getEnvDuration("PRESENCE_WINDOW", 5*time.Minute),
		TypingWindow:   getEnvDuration("TYPING_WINDOW", 10*time.Second),

		WSAllowedOrigins: getEnvList("WS_ALLOWED_ORIGINS"),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("⚠️  Invalid value for %s, using default %d", key, defaultVal)
	}
	return defaultVal
}

func getEnvList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("⚠️  Invalid value for %s, using default %s", key, defaultVal)
	}
	return defaultVal
}
