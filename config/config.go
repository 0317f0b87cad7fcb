package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	HTTPPort int

	StorageBackend string // postgres | memory

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	RedisURL string

	JWTSecret string

	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3PresignTTL   time.Duration
	BlobCheckOnPut bool

	NotifierBackend    string // telegram | kafka | log
	DriverBotToken     string
	AdminBotToken      string
	AdminIDs           []int64
	KafkaBrokers       []string
	KafkaReminderTopic string

	ReminderWorkers       int
	ReminderQueueSize     int
	ReminderMaxAttempts   int
	ReminderSweepInterval time.Duration

	CapabilityCacheTTL time.Duration
	UploadConcurrency  int
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "taxidocs"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.HTTPPort = cast.ToInt(getOrReturnDefault("HTTP_PORT", 8080))

	cfg.StorageBackend = cast.ToString(getOrReturnDefault("STORAGE_BACKEND", "postgres"))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "taxidocs"))
	cfg.MigrationsPath = cast.ToString(getOrReturnDefault("MIGRATIONS_PATH", "migrations/postgres"))

	cfg.RedisURL = cast.ToString(getOrReturnDefault("REDIS_URL", ""))

	cfg.JWTSecret = cast.ToString(getOrReturnDefault("JWT_SECRET", "dev-secret-change-me"))

	cfg.S3Endpoint = cast.ToString(getOrReturnDefault("S3_ENDPOINT", "http://127.0.0.1:9000"))
	cfg.S3Region = cast.ToString(getOrReturnDefault("S3_REGION", "us-east-1"))
	cfg.S3AccessKey = cast.ToString(getOrReturnDefault("S3_ACCESS_KEY", "minioadmin"))
	cfg.S3SecretKey = cast.ToString(getOrReturnDefault("S3_SECRET_KEY", "minioadmin"))
	cfg.S3Bucket = cast.ToString(getOrReturnDefault("S3_BUCKET", "driver-documents"))
	cfg.S3PresignTTL = cast.ToDuration(getOrReturnDefault("S3_PRESIGN_TTL", "15m"))
	cfg.BlobCheckOnPut = cast.ToBool(getOrReturnDefault("BLOB_CHECK_ON_SUBMIT", true))

	cfg.NotifierBackend = cast.ToString(getOrReturnDefault("NOTIFIER_BACKEND", "log"))
	cfg.DriverBotToken = cast.ToString(getOrReturnDefault("DRIVER_BOT_TOKEN", ""))
	cfg.AdminBotToken = cast.ToString(getOrReturnDefault("ADMIN_BOT_TOKEN", ""))
	cfg.AdminIDs = parseIDs(cast.ToString(getOrReturnDefault("ADMIN_IDS", "")))
	cfg.KafkaBrokers = splitList(cast.ToString(getOrReturnDefault("KAFKA_BROKERS", "localhost:9092")))
	cfg.KafkaReminderTopic = cast.ToString(getOrReturnDefault("KAFKA_REMINDER_TOPIC", "driver-document-reminders"))

	cfg.ReminderWorkers = cast.ToInt(getOrReturnDefault("REMINDER_WORKERS", 4))
	cfg.ReminderQueueSize = cast.ToInt(getOrReturnDefault("REMINDER_QUEUE_SIZE", 256))
	cfg.ReminderMaxAttempts = cast.ToInt(getOrReturnDefault("REMINDER_MAX_ATTEMPTS", 3))
	cfg.ReminderSweepInterval = cast.ToDuration(getOrReturnDefault("REMINDER_SWEEP_INTERVAL", "6h"))

	cfg.CapabilityCacheTTL = cast.ToDuration(getOrReturnDefault("CAPABILITY_CACHE_TTL", "5m"))
	cfg.UploadConcurrency = cast.ToInt(getOrReturnDefault("UPLOAD_CONCURRENCY", 4))

	return cfg
}

// PostgresURL builds the DSN shared by pgxpool and golang-migrate.
func (c Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
	)
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDs(s string) []int64 {
	var ids []int64
	for _, p := range splitList(s) {
		if id, err := cast.ToInt64E(p); err == nil && id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
