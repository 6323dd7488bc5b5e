package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultBind           = ":8080"
	DefaultBucket         = "belka"
	DefaultMaxUploadBytes = int64(10 * 1024 * 1024)
	DefaultTitleMaxLen    = 30
)

type Config struct {
	Bind  string
	DBDSN string

	// Object storage.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Optional signed-URL cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MaxUploadBytes int64
	TitleMaxLen    int

	APIKeysFile        string
	CORSAllowedOrigins []string
	LogLevel           string
	SwaggerUIPath      string
	OpenAPIPath        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bind:               getenv("BELKA_BIND", DefaultBind),
		MinioEndpoint:      getenv("BELKA_MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:     getenv("BELKA_MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:     getenv("BELKA_MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:        getenv("BELKA_MINIO_BUCKET", DefaultBucket),
		MinioUseSSL:        getBool("BELKA_MINIO_USE_SSL", false),
		RedisAddr:          os.Getenv("BELKA_REDIS_ADDR"),
		RedisPassword:      os.Getenv("BELKA_REDIS_PASSWORD"),
		RedisDB:            getInt("BELKA_REDIS_DB", 0),
		MaxUploadBytes:     getInt64("BELKA_MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		TitleMaxLen:        getInt("BELKA_TITLE_MAX_LEN", DefaultTitleMaxLen),
		APIKeysFile:        getenv("BELKA_API_KEYS_FILE", "api-keys.yaml"),
		CORSAllowedOrigins: splitAndTrim(os.Getenv("BELKA_CORS_ALLOWED_ORIGINS")),
		LogLevel:           os.Getenv("BELKA_LOG_LEVEL"),
		SwaggerUIPath:      "/swagger",
		OpenAPIPath:        "/openapi.yaml",
	}

	cfg.DBDSN = os.Getenv("BELKA_DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("BELKA_DB_DSN is required")
	}
	if cfg.APIKeysFile == "" {
		return nil, fmt.Errorf("BELKA_API_KEYS_FILE is required")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		return v == "1" || v == "true" || v == "yes" || v == "y"
	}
	return def
}

func splitAndTrim(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
