package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Env          string
	Port         string
	DatabaseURL  string
	JWTSecret    string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	// Platform-level embedding credentials, used when a workspace has not
	// configured its own.
	EmbedAPIKey  string
	EmbedBaseURL string
	EmbedModel   string
	EmbedDim     int

	// Base URL of the local embedding runtime sidecar. Empty disables
	// local models.
	LocalEmbedURL string

	ChunkSize    int
	ChunkOverlap int
	EmbedBatch   int
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Env:          getEnv("ENV", "development"),
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "chatlas-docs"),

		EmbedAPIKey:  getEnv("DASHSCOPE_API_KEY", ""),
		EmbedBaseURL: getEnv("EMBED_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
		EmbedModel:   getEnv("EMBED_MODEL", "text-embedding-v3"),
		EmbedDim:     getEnvInt("EMBED_DIM", 512),

		LocalEmbedURL: getEnv("LOCAL_EMBED_URL", ""),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 50),
		EmbedBatch:   getEnvInt("EMBED_BATCH", 10),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
