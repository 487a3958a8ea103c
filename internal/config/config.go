package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	HTTP struct {
		Host string
		Port string
	}

	S3 struct {
		Region    string
		Bucket    string
		PublicURL string
	}

	// Engine holds the tunables of the discovery/swipe core.
	Engine struct {
		QueueLowWater      int
		QueueBatchSize     int
		HistoryDepth       int
		PrefetchDepth      int
		SwipeDistance      float64
		FlickDistance      float64
		FlickVelocity      float64
		MatchPollAttempts  int
		MatchPollInterval  time.Duration
	}
}

func New() *Config {
	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "development")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "amora_server")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "amora")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// HTTP
	cfg.HTTP.Host = getEnvDefault("HTTP_HOST", "0.0.0.0")
	cfg.HTTP.Port = getEnvDefault("HTTP_PORT", "8080")

	// S3
	cfg.S3.Region = getEnvDefault("AWS_REGION", "sa-east-1")
	cfg.S3.Bucket = getEnvDefault("S3_BUCKET_NAME", "amora-media")
	cfg.S3.PublicURL = getEnvDefault("S3_PUBLIC_URL", "")

	// Engine tunables
	cfg.Engine.QueueLowWater = getEnvInt("QUEUE_LOW_WATER", 3)
	cfg.Engine.QueueBatchSize = getEnvInt("QUEUE_BATCH_SIZE", 10)
	cfg.Engine.HistoryDepth = getEnvInt("QUEUE_HISTORY_DEPTH", 3)
	cfg.Engine.PrefetchDepth = getEnvInt("QUEUE_PREFETCH_DEPTH", 2)
	cfg.Engine.SwipeDistance = getEnvFloat("SWIPE_DISTANCE", 120)
	cfg.Engine.FlickDistance = getEnvFloat("FLICK_DISTANCE", 40)
	cfg.Engine.FlickVelocity = getEnvFloat("FLICK_VELOCITY", 800)
	cfg.Engine.MatchPollAttempts = getEnvInt("MATCH_POLL_ATTEMPTS", 5)
	cfg.Engine.MatchPollInterval = getEnvDuration("MATCH_POLL_INTERVAL", 2*time.Second)

	return cfg
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
