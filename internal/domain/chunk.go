package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// chunkNamespace seeds the name-based UUIDs used as index record ids.
var chunkNamespace = uuid.MustParse("6f1c3c4e-9a0b-4f5e-8d7a-2b1e0c9d4a11")

// ChunkID returns the index record id of chunk index of fileName.
// The id is stable for the same file and position and distinct across files.
func ChunkID(fileName string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fileName+"#"+strconv.Itoa(index))).String()
}

// TextChunk is one fixed-size window of a document's extracted text.
type TextChunk struct {
	Index      int
	Text       string
	FileName   string
	FilePath   string
	UploadTime time.Time
}

// ChunkMetadata is stored alongside every vector in the index.
type ChunkMetadata struct {
	Text       string    `json:"text"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	UploadTime time.Time `json:"upload_time"`
	ChunkIndex int       `json:"chunk_index"`
}

// IndexRecord is the persisted unit of the vector index.
type IndexRecord struct {
	ID       string
	Vector   []float32
	Metadata ChunkMetadata
}

// NewIndexRecord builds the record for a chunk and its embedding.
func NewIndexRecord(c TextChunk, vector []float32) IndexRecord {
	return IndexRecord{
		ID:     ChunkID(c.FileName, c.Index),
		Vector: vector,
		Metadata: ChunkMetadata{
			Text:       c.Text,
			FileName:   c.FileName,
			FilePath:   c.FilePath,
			UploadTime: c.UploadTime,
			ChunkIndex: c.Index,
		},
	}
}

// QueryMatch is a single similarity search result. Higher scores are more similar.
// Metadata is nil when the query did not ask for it.
type QueryMatch struct {
	ID       string
	Score    float32
	Metadata *ChunkMetadata
}

// Metric is the similarity function of an index
type Metric string

const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dotproduct"
	MetricEuclidean  Metric = "euclidean"
)

// IndexSpec describes the vector index the service writes to.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    Metric
}

// ValidateIndexSpec validates an IndexSpec instance
func ValidateIndexSpec(s IndexSpec) error {
	if s.Name == "" {
		return fmt.Errorf("index Name is required")
	}

	if s.Dimension <= 0 {
		return fmt.Errorf("index Dimension must be positive")
	}

	switch s.Metric {
	case MetricCosine, MetricDotProduct, MetricEuclidean:
	default:
		return fmt.Errorf("index Metric is invalid: %s", s.Metric)
	}

	return nil
}
