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
	Env             string
	CORSAllowOrigin []string

	UploadDir      string
	MaxUploadBytes int64

	LLMProvider           string
	Providers             ProviderCatalog
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAITimeout         time.Duration
	GeminiProjectID       string
	GeminiLocation        string
	GeminiCredentialsFile string

	ContinuityPolicy    string
	StageTimeout        time.Duration
	CreditTimeout       time.Duration
	ClassifyConcurrency int

	DatabaseURL string

	ObjectStoreType    string
	LocalStoreDir      string
	AWSRegion          string
	S3Bucket           string
	S3Prefix           string
	SSEKMSKeyID        string
	S3Endpoint         string
	S3AccessKey        string
	S3SecretKey        string
	S3DisableSSE       bool
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioRegion        string
	MinioUseSSL        bool
	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsFile string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	catalog, err := LoadProviderCatalog(os.Getenv("PROVIDERS_FILE"))
	if err != nil {
		log.Printf("config: provider catalog: %v; using built-in catalog", err)
		catalog = DefaultProviderCatalog()
	}

	provider := strings.ToLower(getEnv("LLM_PROVIDER", catalog.Default))

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             normalizeEnv(getEnv("ENV", "dev")),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:8080")),

		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 50)) << 20,

		LLMProvider:           provider,
		Providers:             catalog,
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		OpenAITimeout:         getEnvSeconds("OPENAI_TIMEOUT_SECONDS", 120*time.Second),
		GeminiProjectID:       getEnv("GEMINI_PROJECT_ID", ""),
		GeminiLocation:        getEnv("GEMINI_LOCATION", "us-central1"),
		GeminiCredentialsFile: getEnv("GEMINI_CREDENTIALS_FILE", ""),

		ContinuityPolicy:    normalizeContinuityPolicy(getEnv("CONTINUITY_POLICY", "continue")),
		StageTimeout:        getEnvSeconds("STAGE_TIMEOUT_SECONDS", 180*time.Second),
		CreditTimeout:       getEnvSeconds("CREDIT_TIMEOUT_SECONDS", 300*time.Second),
		ClassifyConcurrency: getEnvInt("CLASSIFY_CONCURRENCY", 4),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "none")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:        getEnv("SSE_KMS_KEY_ID", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:        getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3DisableSSE:       getEnvBool("S3_DISABLE_SSE", false),
		MinioEndpoint:      getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:     getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:        getEnv("MINIO_BUCKET", ""),
		MinioRegion:        getEnv("MINIO_REGION", ""),
		MinioUseSSL:        getEnvBool("MINIO_USE_SSL", true),
		GCSBucket:          getEnv("GCS_BUCKET", ""),
		GCSPrefix:          getEnv("GCS_PREFIX", ""),
		GCSCredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 0.5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 5),
	}
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("config: ignoring invalid %s=%q", key, raw)
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		log.Printf("config: ignoring invalid %s=%q", key, raw)
		return def
	}
	return v
}

func getEnvSeconds(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("config: ignoring invalid %s=%q", key, raw)
		return def
	}
	return time.Duration(v) * time.Second
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
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
	case "local", "s3", "minio", "gcs":
		return strings.ToLower(strings.TrimSpace(raw))
	default:
		return "none"
	}
}

func normalizeContinuityPolicy(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "abort") {
		return "abort"
	}
	return "continue"
}
