package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	LogLevel        string
	DatabaseURL     string

	TenderAPIBaseURL string
	TenderAPITimeout time.Duration
	JWTSecret        string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioBucket     string
	MinioUseSSL     bool

	SQSQueueURL string

	OCRPollInterval    time.Duration
	OCRMaxPollAttempts int
	OCRBatchPause      time.Duration
	VendorFanOut       int
	SessionIdleTTL     time.Duration
	MaxUploadBytes     int64
}

// Load reads configuration from environment variables with sensible defaults.
// A YAML file named by CONFIG_FILE is applied first; real env vars win over it.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadYAMLFile(path); err != nil {
			log.Printf("config file %s ignored: %v", path, err)
		}
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:                env,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        dbURL,
		TenderAPIBaseURL:   strings.TrimRight(getEnv("TENDER_API_BASE_URL", "http://localhost:8000"), "/"),
		TenderAPITimeout:   getDuration("TENDER_API_TIMEOUT", 60*time.Second),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", "exports/"),
		SSEKMSKeyID:        getEnv("SSE_KMS_KEY_ID", ""),
		MinioEndpoint:      getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:        getEnv("MINIO_BUCKET", "tender-exports"),
		MinioUseSSL:        getBool("MINIO_USE_SSL", false),
		SQSQueueURL:        getEnv("TE_SQS_QUEUE_URL", ""),
		OCRPollInterval:    getDuration("OCR_POLL_INTERVAL", 3*time.Second),
		OCRMaxPollAttempts: getInt("OCR_MAX_POLL_ATTEMPTS", 60),
		OCRBatchPause:      getDuration("OCR_BATCH_PAUSE", time.Second),
		VendorFanOut:       getInt("VENDOR_FANOUT", 8),
		SessionIdleTTL:     getDuration("SESSION_IDLE_TTL", 2*time.Hour),
		MaxUploadBytes:     int64(getInt("MAX_UPLOAD_BYTES", 25<<20)),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val < 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}
