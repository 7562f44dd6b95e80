package chromemdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

const compress = false

// Store is the embedded vector index, backed by chromem-go. Persistent
// stores write each collection under the configured path; in-memory
// stores live for one process.
type Store struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	encryptionKey  string
	exportPath     string
}

// New opens (or creates) the store. The collection itself is attached
// by Reset or Open.
func New(cfg *config.StoreConfig, encryptionKey string) (*Store, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, compress)
		if err != nil {
			return nil, fmt.Errorf("open database at %s: %w", cfg.Path, err)
		}
	}

	return &Store{
		db:             db,
		collectionName: cfg.Collection,
		encryptionKey:  encryptionKey,
		exportPath:     filepath.Join(cfg.Path, cfg.Collection+".chromem"),
	}, nil
}

// Reset drops whatever collection a previous run left behind and
// starts a fresh one. Ingest always rebuilds from scratch.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.collectionName); err != nil {
		return fmt.Errorf("drop collection %s: %w", s.collectionName, err)
	}
	buildID, err := helper.GenerateUUID()
	if err != nil {
		return fmt.Errorf("generate build id: %w", err)
	}
	meta := map[string]string{
		"build_id": buildID,
		"built_at": time.Now().UTC().Format(time.RFC3339),
	}
	col, err := s.db.CreateCollection(s.collectionName, meta, nil)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collectionName, err)
	}
	s.collection = col
	log.Debug().Str("collection", s.collectionName).Str("build_id", meta["build_id"]).Msg("Collection rebuilt")
	return nil
}

// Open attaches to the existing collection without rebuilding it. Used
// on the query path.
func (s *Store) Open(ctx context.Context) error {
	col, err := s.db.GetOrCreateCollection(s.collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("open collection %s: %w", s.collectionName, err)
	}
	s.collection = col
	return nil
}

// Add stores embedded chunks. Document IDs encode source, page and
// chunk, so re-adding the same chunk overwrites instead of duplicating.
func (s *Store) Add(ctx context.Context, embeddings []models.ChunkEmbedding) error {
	if s.collection == nil {
		return fmt.Errorf("collection %s not open", s.collectionName)
	}
	if len(embeddings) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(embeddings))
	for _, e := range embeddings {
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s-p%d-c%d", e.Source, e.PageNumber, e.ChunkID),
			Content: e.Content,
			Metadata: map[string]string{
				"source": e.Source,
				"page":   strconv.Itoa(e.PageNumber),
				"chunk":  strconv.Itoa(e.ChunkID),
			},
			Embedding: e.Embedding,
		})
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add %d documents: %w", len(docs), err)
	}
	return nil
}

// Search returns the k nearest chunks for a query embedding. k is
// clamped to the collection size because chromem rejects result counts
// above it; an empty collection yields no hits rather than an error.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.Hit, error) {
	if s.collection == nil {
		return nil, fmt.Errorf("collection %s not open", s.collectionName)
	}
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	hits := make([]models.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, models.Hit{
			Content:    r.Content,
			Source:     r.Metadata["source"],
			PageNumber: metaInt(r.Metadata, "page", r.ID),
			ChunkID:    metaInt(r.Metadata, "chunk", r.ID),
			Similarity: r.Similarity,
		})
	}
	return hits, nil
}

// metaInt reads a numeric metadata field written by Add. A value that
// does not parse is logged and reported as 0.
func metaInt(meta map[string]string, key, id string) int {
	n, err := strconv.Atoi(meta[key])
	if err != nil {
		log.Debug().Str("id", id).Str(key, meta[key]).Msg("Unreadable chunk metadata")
		return 0
	}
	return n
}

// Count reports how many chunks the open collection holds.
func (s *Store) Count() int {
	if s.collection == nil {
		return 0
	}
	return s.collection.Count()
}

// Close is a no-op; chromem persists on every write.
func (s *Store) Close() error {
	return nil
}

// Export writes the collection to an encrypted snapshot file next to
// the database.
func (s *Store) Export() error {
	if s.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if s.collection == nil {
		return fmt.Errorf("collection %s not open", s.collectionName)
	}

	log.Debug().Str("collection", s.collectionName).Str("file", s.exportPath).Msg("Exporting collection")
	if err := s.db.ExportToFile(s.exportPath, compress, s.encryptionKey, s.collectionName); err != nil {
		return fmt.Errorf("export database: %w", err)
	}
	return nil
}

// Import restores a snapshot written by Export and attaches the
// collection. A missing snapshot file is reported as os.ErrNotExist so
// callers can treat a first run differently from a broken one.
func (s *Store) Import() error {
	if s.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if _, err := os.Stat(s.exportPath); err != nil {
		return fmt.Errorf("snapshot %s: %w", s.exportPath, err)
	}
	if err := s.db.ImportFromFile(s.exportPath, s.encryptionKey); err != nil {
		return fmt.Errorf("import database: %w", err)
	}
	return s.Open(context.Background())
}
