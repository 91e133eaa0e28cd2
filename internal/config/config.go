package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   string
	BackendURL             string
	BackendTimeout         time.Duration
	GatePassword           string
	GateMaxAttempts        int
	SessionSecret          string
	SessionTTLMinutes      int
	MaxTerminals           int
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	FinanceCacheTTLSeconds int
	AssetsDir              string
	QrisConfirmEnabled     bool
	LogLevel               string
	LogFormat              string
}

// Load reads the environment, after merging an optional .env file that never
// overrides variables already set.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	qris, _ := strconv.ParseBool(getEnv("QRIS_CONFIRM_ENABLED", "false"))

	return Config{
		Port:                   getEnv("PORT", "8080"),
		BackendURL:             strings.TrimRight(getEnv("BACKEND_URL", "http://127.0.0.1:5000"), "/"),
		BackendTimeout:         time.Duration(positiveInt("BACKEND_TIMEOUT_SECONDS", 10)) * time.Second,
		GatePassword:           strings.TrimSpace(os.Getenv("GATE_PASSWORD")),
		GateMaxAttempts:        positiveInt("GATE_MAX_ATTEMPTS", 5),
		SessionSecret:          strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionTTLMinutes:      positiveInt("SESSION_TTL_MINUTES", 720),
		MaxTerminals:           positiveInt("MAX_TERMINALS", 256),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		FinanceCacheTTLSeconds: positiveInt("FINANCE_CACHE_TTL_SECONDS", 30),
		AssetsDir:              getEnv("ASSETS_DIR", "./ui"),
		QrisConfirmEnabled:     qris,
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "text"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c Config) FinanceCacheTTL() time.Duration {
	return time.Duration(c.FinanceCacheTTLSeconds) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
