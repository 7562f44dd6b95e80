package indexer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/embedding"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/splitter"
)

// Store receives the rebuilt index.
type Store interface {
	Reset(ctx context.Context) error
	Add(ctx context.Context, embeddings []models.ChunkEmbedding) error
}

// Summary reports what one ingest run produced.
type Summary struct {
	Source     string
	Pages      int
	Chunks     int
	Embeddings int
}

// Build runs the ingest pipeline for one file: parse, chunk, embed,
// then swap the stored index. The store is only reset after embedding
// succeeds, so a failed run leaves the previous index in place.
func Build(ctx context.Context, filePath string, split *splitter.Splitter, embedder embeddings.Embedder, store Store) (*Summary, error) {
	if !parser.Exists(filePath) {
		return nil, fmt.Errorf("input file not found: %s", filePath)
	}

	docs, err := parser.ParseFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no readable content in %s", filePath)
	}
	log.Info().Int("pages", len(docs)).Str("file", filePath).Msg("Parsed document")

	chunks, err := split.Split(docs)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks produced from %s", filePath)
	}
	log.Info().Int("chunks", len(chunks)).Msg("Split into chunks")

	embedded, err := embedding.EmbedChunks(ctx, embedder, chunks)
	if err != nil {
		return nil, err
	}
	log.Info().Int("embeddings", len(embedded)).Msg("Embedded chunks")

	if err := store.Reset(ctx); err != nil {
		return nil, err
	}
	if err := store.Add(ctx, embedded); err != nil {
		return nil, err
	}

	return &Summary{
		Source:     filePath,
		Pages:      len(docs),
		Chunks:     len(chunks),
		Embeddings: len(embedded),
	}, nil
}
