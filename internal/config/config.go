package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	UploadDir string `envconfig:"UPLOAD_DIR" default:"uploaded_files"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docqa-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`

	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-ada-002"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	GenerationModel     string `envconfig:"GENERATION_MODEL" default:"gpt-4o-mini"`
	GenerationMaxTokens int    `envconfig:"GENERATION_MAX_TOKENS" default:"300"`

	// Vector index: pgvector, qdrant or memory
	IndexBackend   string `envconfig:"INDEX_BACKEND" default:"pgvector"`
	IndexName      string `envconfig:"INDEX_NAME" default:"personal-virtual-assistant"`
	IndexNamespace string `envconfig:"INDEX_NAMESPACE" default:"default"`
	IndexMetric    string `envconfig:"INDEX_METRIC" default:"cosine"`

	QdrantHost   string `envconfig:"QDRANT_HOST"`
	QdrantPort   int    `envconfig:"QDRANT_PORT" default:"6334"`
	QdrantAPIKey string `envconfig:"QDRANT_API_KEY"`
	QdrantUseTLS bool   `envconfig:"QDRANT_USE_TLS" default:"false"`

	ChunkSize           int     `envconfig:"CHUNK_SIZE" default:"300"`
	MaxFiles            int     `envconfig:"MAX_FILES" default:"5"`
	MaxFileSize         int64   `envconfig:"MAX_FILE_SIZE" default:"10485760"`
	TopK                int     `envconfig:"TOP_K" default:"10"`
	SimilarityThreshold float32 `envconfig:"SIMILARITY_THRESHOLD" default:"0.5"`

	EmbedConcurrency int           `envconfig:"EMBED_CONCURRENCY" default:"4"`
	RemoteTimeout    time.Duration `envconfig:"REMOTE_TIMEOUT" default:"30s"`

	TesseractPath string `envconfig:"TESSERACT_PATH" default:"tesseract"`
	TesseractPSM  int    `envconfig:"TESSERACT_PSM" default:"6"`
	TesseractOEM  int    `envconfig:"TESSERACT_OEM" default:"3"`

	ReingestInterval time.Duration `envconfig:"REINGEST_INTERVAL" default:"1m"`

	// Optional static bearer token; empty disables auth
	APIKey string `envconfig:"API_KEY"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCQA", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.IndexBackend {
	case "pgvector", "qdrant", "memory":
	default:
		return nil, fmt.Errorf("failed to process config: unknown INDEX_BACKEND %q", cfg.IndexBackend)
	}
	if cfg.IndexBackend == "qdrant" && cfg.QdrantHost == "" {
		return nil, fmt.Errorf("failed to process config: QDRANT_HOST is required for the qdrant backend")
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
