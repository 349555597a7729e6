package config

import "time"

// AppConfig holds runtime configuration for the blog service.
type AppConfig struct {
	Environment     string
	Addr            string
	DatabaseURL     string
	MigrationsDir   string
	SessionSecret   string
	SessionTTL      time.Duration
	SessionSecure   bool
	FeedCacheAddr   string
	FeedCachePass   string
	FeedCacheDB     int
	FeedCacheTTL    time.Duration
	CommentBuffer   int
	ShutdownTimeout time.Duration
}

// LoadAppConfig constructs an AppConfig from environment variables.
func LoadAppConfig() AppConfig {
	return AppConfig{
		Environment:     GetString("APP_ENV", "development"),
		Addr:            GetString("BLOG_ADDR", ":8080"),
		DatabaseURL:     GetString("DATABASE_URL", "postgres://blog:blog@db:5432/blog?sslmode=disable"),
		MigrationsDir:   GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		SessionSecret:   GetString("SESSION_SECRET", "supersecuresecret"),
		SessionTTL:      time.Duration(GetInt("SESSION_TTL_HOURS", 168)) * time.Hour,
		SessionSecure:   GetBool("SESSION_COOKIE_SECURE", false),
		FeedCacheAddr:   GetString("FEED_CACHE_REDIS_ADDR", ""),
		FeedCachePass:   GetString("FEED_CACHE_REDIS_PASSWORD", ""),
		FeedCacheDB:     GetInt("FEED_CACHE_REDIS_DB", 0),
		FeedCacheTTL:    time.Duration(GetInt("FEED_CACHE_TTL_SECONDS", 30)) * time.Second,
		CommentBuffer:   GetInt("WS_COMMENT_BUFFER", 100),
		ShutdownTimeout: time.Duration(GetInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}
