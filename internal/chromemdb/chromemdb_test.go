package chromemdb

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(&config.StoreConfig{Collection: "documents", InMemory: true}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func testEmbeddings() []models.ChunkEmbedding {
	return []models.ChunkEmbedding{
		{Content: "alpha", Source: "doc.pdf", PageNumber: 1, ChunkID: 1, Embedding: []float32{1, 0, 0}},
		{Content: "beta", Source: "doc.pdf", PageNumber: 2, ChunkID: 1, Embedding: []float32{0, 1, 0}},
		{Content: "gamma", Source: "doc.pdf", PageNumber: 3, ChunkID: 1, Embedding: []float32{0.6, 0.8, 0}},
	}
}

func TestAddAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := s.Add(ctx, testEmbeddings()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := s.Count(); got != 3 {
		t.Fatalf("Count = %d, want 3", got)
	}

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Content != "alpha" {
		t.Errorf("top hit = %q, want alpha", hits[0].Content)
	}
	if hits[0].Source != "doc.pdf" || hits[0].PageNumber != 1 || hits[0].ChunkID != 1 {
		t.Errorf("top hit metadata = %s p%d c%d", hits[0].Source, hits[0].PageNumber, hits[0].ChunkID)
	}
	if hits[0].Similarity < 0.99 {
		t.Errorf("top hit similarity = %f, want ~1", hits[0].Similarity)
	}
	if hits[1].Content != "gamma" {
		t.Errorf("second hit = %q, want gamma", hits[1].Content)
	}
}

func TestSearchClampsResultCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := s.Add(ctx, testEmbeddings()[:2]); err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search with k above collection size: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("got %d hits, want 2", len(hits))
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty collection: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("got %d hits from an empty collection", len(hits))
	}
}

func TestResetDropsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := s.Add(ctx, testEmbeddings()); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if got := s.Count(); got != 0 {
		t.Errorf("Count after rebuild = %d, want 0", got)
	}
}

func TestAddWithoutCollection(t *testing.T) {
	s := newTestStore(t)
	err := s.Add(context.Background(), testEmbeddings())
	if err == nil {
		t.Fatal("expected an error before Reset/Open")
	}
}

func TestExportImport(t *testing.T) {
	const key = "0123456789abcdef0123456789abcdef"
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(&config.StoreConfig{Collection: "documents", Path: dir, InMemory: true}, key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := s.Add(ctx, testEmbeddings()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Export(); err != nil {
		t.Fatalf("Export: %v", err)
	}

	restored, err := New(&config.StoreConfig{Collection: "documents", Path: dir, InMemory: true}, key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := restored.Import(); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got := restored.Count(); got != 3 {
		t.Errorf("Count after import = %d, want 3", got)
	}
}

func TestExportRequiresKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := s.Export(); err == nil {
		t.Fatal("expected an error without an encryption key")
	}
}

func TestImportMissingSnapshot(t *testing.T) {
	const key = "0123456789abcdef0123456789abcdef"
	s, err := New(&config.StoreConfig{Collection: "documents", Path: t.TempDir(), InMemory: true}, key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Import(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Import with no snapshot = %v, want os.ErrNotExist", err)
	}
}

func TestMetaInt(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	if got := metaInt(map[string]string{"page": "7"}, "page", "doc.pdf-p7-c1"); got != 7 {
		t.Errorf("metaInt = %d, want 7", got)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log for a valid value: %q", buf.String())
	}

	if got := metaInt(map[string]string{"page": "seven"}, "page", "doc.pdf-p7-c1"); got != 0 {
		t.Errorf("metaInt = %d, want 0 for a bad value", got)
	}
	if !strings.Contains(buf.String(), "Unreadable chunk metadata") {
		t.Errorf("expected a debug log for a bad value, got %q", buf.String())
	}
}
