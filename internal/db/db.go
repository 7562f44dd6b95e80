package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

const defaultVectorDim = 768

// Row is one stored chunk. Similarity is only populated by Search.
type Row struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID         int64           `bun:"id,pk,autoincrement"`
	Content    string          `bun:"content"`
	Source     string          `bun:"source"`
	PageNumber int             `bun:"page_number"`
	ChunkID    int             `bun:"chunk_id"`
	Embedding  pgvector.Vector `bun:"embedding"`
	Similarity float64         `bun:"similarity,scanonly"`
}

// Store is the Postgres vector backend, for deployments that already
// run Postgres with the pgvector extension.
type Store struct {
	db  *bun.DB
	dim int
}

// Connect opens the database. The connection is lazy; Open pings it.
func Connect(cfg *config.DBConfig) (*Store, error) {
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.URL)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))

	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	dim := cfg.VectorDim
	if dim <= 0 {
		dim = defaultVectorDim
	}
	return &Store{db: db, dim: dim}, nil
}

// Reset drops and recreates the documents table. The vector dimension
// comes from config, so the table is created with raw DDL instead of a
// model tag.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := s.db.NewDropTable().Model((*Row)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("drop documents table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.tableDDL()); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *Store) tableDDL() string {
	return fmt.Sprintf(`CREATE TABLE documents (
		id BIGSERIAL PRIMARY KEY,
		content TEXT NOT NULL,
		source TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		chunk_id INTEGER NOT NULL,
		embedding vector(%d) NOT NULL
	)`, s.dim)
}

// Open verifies the connection for the query path. The table is
// expected to exist from a previous ingest.
func (s *Store) Open(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Add inserts embedded chunks in one bulk insert.
func (s *Store) Add(ctx context.Context, embeddings []models.ChunkEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	rows := make([]Row, 0, len(embeddings))
	for _, e := range embeddings {
		rows = append(rows, Row{
			Content:    e.Content,
			Source:     e.Source,
			PageNumber: e.PageNumber,
			ChunkID:    e.ChunkID,
			Embedding:  pgvector.NewVector(e.Embedding),
		})
	}
	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("insert %d rows: %w", len(rows), err)
	}
	return nil
}

// Search returns the k nearest chunks by cosine distance.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.Hit, error) {
	var rows []Row
	if err := s.searchQuery(pgvector.NewVector(queryEmbedding), k, &rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return hitsFromRows(rows), nil
}

func (s *Store) searchQuery(query pgvector.Vector, k int, rows *[]Row) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(rows).
		Column("content", "source", "page_number", "chunk_id").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", query).
		OrderExpr("embedding <=> ?", query).
		Limit(k)
}

func hitsFromRows(rows []Row) []models.Hit {
	hits := make([]models.Hit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, models.Hit{
			Content:    r.Content,
			Source:     r.Source,
			PageNumber: r.PageNumber,
			ChunkID:    r.ChunkID,
			Similarity: float32(r.Similarity),
		})
	}
	return hits
}

func (s *Store) Close() error {
	return s.db.Close()
}
