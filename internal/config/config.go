package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	DefaultAccountID   string
	ExcludedAccountIDs []string
	LoadTimeout        time.Duration

	// Notification
	SeedNotificationLimit int
	RealtimeMinRetry      time.Duration
	RealtimeMaxRetry      time.Duration
	AlertBufferSize       int

	// Local persistence
	LocalStorePath string

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DefaultAccountID = getEnvString("DEFAULT_ACCOUNT_ID", "hana")
	cfg.ExcludedAccountIDs = getEnvStringSlice("EXCLUDED_ACCOUNT_IDS", []string{"barista-internal"})
	cfg.LoadTimeout = getEnvDuration("LOAD_TIMEOUT", 15*time.Second)
	cfg.SeedNotificationLimit = getEnvInt("SEED_NOTIFICATION_LIMIT", 2)
	cfg.RealtimeMinRetry = getEnvDuration("REALTIME_MIN_RETRY", 10*time.Second)
	cfg.RealtimeMaxRetry = getEnvDuration("REALTIME_MAX_RETRY", time.Minute)
	cfg.AlertBufferSize = getEnvInt("ALERT_BUFFER_SIZE", 16)
	cfg.LocalStorePath = getEnvString("LOCAL_STORE_PATH", "brewlog_local.json")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
