package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/database"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/extract"
	"github.com/cloo-solutions/docqa/internal/openai"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
)

// app holds the long-lived services shared by serve and ingest.
type app struct {
	cfg *config.Config

	pool     *pgxpool.Pool
	jobRepo  *repository.IngestJobRepository
	ingest   *service.IngestService
	query    *service.QueryService
	files    *service.FileService
	closeFns []func()
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if !cfg.HasOpenAI() && cfg.OpenAIBaseURL == "" {
		return nil, fmt.Errorf("DOCQA_OPENAI_API_KEY is required")
	}

	a := &app{cfg: cfg}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.pool = pool
	a.closeFns = append(a.closeFns, pool.Close)
	log.Println("connected to database")

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	index, err := newIndexStore(ctx, cfg, pool, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	spec := domain.IndexSpec{
		Name:      cfg.IndexName,
		Dimension: cfg.EmbeddingDimensions,
		Metric:    domain.Metric(cfg.IndexMetric),
	}
	if err := index.EnsureIndex(ctx, spec); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ensure index %s: %w", spec.Name, err)
	}
	log.Printf("index %s ready (backend=%s dimension=%d metric=%s)", spec.Name, cfg.IndexBackend, spec.Dimension, spec.Metric)

	llm := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		GenerationModel:     cfg.GenerationModel,
		MaxTokens:           cfg.GenerationMaxTokens,
		Timeout:             cfg.RemoteTimeout,
	})

	extractor := extract.NewDispatcher(extract.Config{
		TesseractPath: cfg.TesseractPath,
		PSM:           cfg.TesseractPSM,
		OEM:           cfg.TesseractOEM,
		Timeout:       cfg.RemoteTimeout,
	})

	documents := repository.NewDocumentRepository(pool)
	a.jobRepo = repository.NewIngestJobRepository(pool)

	a.ingest = service.NewIngestService(
		blobs,
		extractor,
		service.NewBatchEmbedder(llm, cfg.EmbedConcurrency),
		index,
		documents,
		repository.NewTxRunner(pool),
		service.IngestConfig{
			Namespace:   cfg.IndexNamespace,
			ChunkSize:   cfg.ChunkSize,
			MaxFiles:    cfg.MaxFiles,
			MaxFileSize: cfg.MaxFileSize,
		},
	)
	a.query = service.NewQueryService(llm, index, llm, repository.NewQueryLogRepository(pool), service.QueryConfig{
		Namespace: cfg.IndexNamespace,
		TopK:      cfg.TopK,
		Threshold: cfg.SimilarityThreshold,
	})
	a.files = service.NewFileService(blobs, documents)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (service.BlobStore, error) {
	if !cfg.HasS3() {
		store, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare upload dir: %w", err)
		}
		log.Printf("storing uploads in %s", cfg.UploadDir)
		return store, nil
	}

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	return client, nil
}

func newIndexStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, a *app) (service.IndexStore, error) {
	switch cfg.IndexBackend {
	case "qdrant":
		idx, err := storage.NewQdrantIndex(ctx, storage.QdrantConfig{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantAPIKey,
			UseTLS: cfg.QdrantUseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		a.closeFns = append(a.closeFns, func() {
			if err := idx.Close(); err != nil {
				log.Printf("qdrant close: %v", err)
			}
		})
		return idx, nil
	case "memory":
		log.Println("using in-memory index; vectors are lost on restart")
		return storage.NewMemoryIndex(), nil
	default:
		return repository.NewVectorIndexRepository(pool), nil
	}
}
