package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Fetch
	FetchConnectTimeout    time.Duration
	FetchReadTimeout       time.Duration
	FetchMaxSize           int64
	AggregateMaxConcurrent int
	SSRFProtection         bool

	// News API
	NewsAPIKey        string
	NewsAPIBaseURL    string
	NewsAPICacheTTL   time.Duration
	NewsAPIRatePerSec float64

	// Redis（空の場合はインメモリキャッシュを使用）
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitFollow  int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがある場合は先に読み込む（設定済みの環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envが存在しない場合のエラーは無視する
	_ = godotenv.Load()

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
	cfg.FetchConnectTimeout = getEnvDuration("FETCH_CONNECT_TIMEOUT", 10*time.Second)
	cfg.FetchReadTimeout = getEnvDuration("FETCH_READ_TIMEOUT", 15*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.AggregateMaxConcurrent = getEnvInt("AGGREGATE_MAX_CONCURRENT", 4)
	cfg.SSRFProtection = getEnvBool("SSRF_PROTECTION", true)
	cfg.NewsAPIKey = getEnvString("NEWSAPI_KEY", "")
	cfg.NewsAPIBaseURL = strings.TrimRight(getEnvString("NEWSAPI_BASE_URL", "https://newsapi.org/v2"), "/")
	cfg.NewsAPICacheTTL = getEnvDuration("NEWSAPI_CACHE_TTL", 10*time.Minute)
	cfg.NewsAPIRatePerSec = getEnvFloat("NEWSAPI_RATE_PER_SEC", 1)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitFollow = getEnvInt("RATE_LIMIT_FOLLOW", 20)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
