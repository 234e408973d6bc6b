package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	// storage
	StoreBackend string // "file" | "postgres"
	DataDir      string
	DBURL        string

	// tabular resource + audit trail
	SheetPath    string
	SheetSecret  string
	AuditLogPath string
	Weeks        int
	Days         int
	CycleStart   time.Time

	// conversation
	SessionTTL     time.Duration
	AuditInlineMax int

	// locking
	LockBackend   string // "memory" | "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockLease     time.Duration

	// bootstrap admin
	AdminUsername string
	AdminPassword string
	AdminName     string

	// chat transport
	ChatWebhookSecret string

	// admin API
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RateLimitCount  int
	RateLimitWindow time.Duration

	// outbound push
	NotifierURL     string
	NotifierTimeout time.Duration

	// tracing
	OtelEnabled  bool
	OtelEndpoint string

	// export worker
	ExportInterval time.Duration
	ExportAttempts int
	ExportDir      string
	WorkerPort     int
	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
}

func Load() Config {
	// a missing .env is fine, the process environment wins anyway
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")
	dataDir := getEnv("DATA_DIR", "data")

	return Config{
		Env:  env,
		Port: getEnvInt("PORT", 8080),

		StoreBackend: getEnv("STORE_BACKEND", "file"),
		DataDir:      dataDir,
		DBURL:        buildDBURL(),

		SheetPath:    getEnv("SHEET_PATH", filepath.Join(dataDir, "meal_plan.csv")),
		SheetSecret:  getEnv("SHEET_SECRET", "change-me"),
		AuditLogPath: getEnv("AUDIT_LOG_PATH", filepath.Join(dataDir, "change_log.txt")),
		Weeks:        getEnvInt("CYCLE_WEEKS", 4),
		Days:         getEnvInt("CYCLE_DAYS", 5),
		CycleStart:   getEnvDate("CYCLE_START", time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC)),

		SessionTTL:     getEnvDuration("SESSION_TTL", 0),
		AuditInlineMax: getEnvInt("AUDIT_INLINE_MAX", 3000),

		LockBackend:   getEnv("LOCK_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		LockLease:     getEnvDuration("LOCK_LEASE", 30*time.Second),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		AdminName:     getEnv("ADMIN_NAME", "System admin"),

		ChatWebhookSecret: getEnv("CHAT_WEBHOOK_SECRET", ""),

		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		AccessTokenTTL:  time.Duration(getEnvInt("JWT_ACCESS_TTL_MINUTES", 15)) * time.Minute,
		RateLimitCount:  getEnvInt("RATE_LIMIT_COUNT", 60),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		NotifierURL:     getEnv("NOTIFIER_URL", ""),
		NotifierTimeout: getEnvDuration("NOTIFIER_TIMEOUT", 3*time.Second),

		OtelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		ExportInterval: getEnvDuration("EXPORT_INTERVAL", time.Hour),
		ExportAttempts: getEnvInt("EXPORT_ATTEMPTS", 3),
		ExportDir:      getEnv("EXPORT_DIR", filepath.Join(dataDir, "exports")),
		WorkerPort:     getEnvInt("WORKER_PORT", 8081),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Prefix:       getEnv("S3_PREFIX", "exports"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
	}
}

// Validate reports settings the services cannot run with.
func (c Config) Validate() error {
	if c.Weeks < 1 || c.Days < 1 || c.Days > 7 {
		return fmt.Errorf("config: cycle of %d weeks x %d days is invalid", c.Weeks, c.Days)
	}
	// cycle weeks run Saturday to Wednesday
	if wd := c.CycleStart.Weekday(); wd != time.Saturday {
		return fmt.Errorf("config: CYCLE_START %s is a %s, want a Saturday", c.CycleStart.Format(time.DateOnly), wd)
	}
	return nil
}

func (c Config) UsePostgres() bool { return c.StoreBackend == "postgres" }

func (c Config) UseRedisLock() bool { return c.LockBackend == "redis" }

func (c Config) UseS3Export() bool { return c.S3Bucket != "" }

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "mealplanner")
	pass := getEnv("DB_PASSWORD", "mealplanner")
	name := getEnv("DB_NAME", "mealplanner")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s: %v, using %d\n", key, err, fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

// accepts Go durations ("90s", "2h"); 0 disables
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s: %v, using %s\n", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func getEnvDate(key string, fallback time.Time) time.Time {
	if v := os.Getenv(key); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %s: %v\n", key, err)
			return fallback
		}
		return t
	}
	return fallback
}
