package embedding

import (
	"context"
	"errors"
	"testing"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1}
	}
	return vectors, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0, 1}, nil
}

func TestEmbedChunks(t *testing.T) {
	chunks := []models.Chunk{
		{Content: "first", Source: "doc.pdf", PageNumber: 1, ChunkID: 1},
		{Content: "second", Source: "doc.pdf", PageNumber: 2, ChunkID: 1},
		{Content: "third", Source: "doc.pdf", PageNumber: 2, ChunkID: 2},
	}

	fake := &fakeEmbedder{}
	embedded, err := EmbedChunks(context.Background(), fake, chunks)
	if err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	if len(embedded) != len(chunks) {
		t.Fatalf("got %d embeddings, want %d", len(embedded), len(chunks))
	}
	if fake.calls != 1 {
		t.Errorf("EmbedDocuments called %d times, want 1", fake.calls)
	}
	for i, e := range embedded {
		if e.Content != chunks[i].Content {
			t.Errorf("embedding %d: content = %q, want %q", i, e.Content, chunks[i].Content)
		}
		if e.PageNumber != chunks[i].PageNumber || e.ChunkID != chunks[i].ChunkID {
			t.Errorf("embedding %d: metadata = page %d chunk %d, want page %d chunk %d",
				i, e.PageNumber, e.ChunkID, chunks[i].PageNumber, chunks[i].ChunkID)
		}
		if len(e.Embedding) == 0 {
			t.Errorf("embedding %d: no vector attached", i)
		}
	}
}

func TestEmbedChunksEmpty(t *testing.T) {
	embedded, err := EmbedChunks(context.Background(), &fakeEmbedder{}, nil)
	if err != nil {
		t.Fatalf("EmbedChunks: %v", err)
	}
	if embedded != nil {
		t.Errorf("got %d embeddings for no chunks, want none", len(embedded))
	}
}

func TestEmbedChunksError(t *testing.T) {
	fake := &fakeEmbedder{err: errors.New("model not found")}
	_, err := EmbedChunks(context.Background(), fake, []models.Chunk{{Content: "x"}})
	if err == nil {
		t.Fatal("expected embed error to propagate")
	}
}

func TestNewEmbedderOllama(t *testing.T) {
	embedder, err := NewEmbedder(&config.LLMConfig{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
		Model:    "nomic-embed-text",
	})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	if embedder == nil {
		t.Fatal("got nil embedder")
	}
}

func TestNewEmbedderOpenAIMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewEmbedder(&config.LLMConfig{
		Provider: "openai",
		Model:    "text-embedding-3-small",
	})
	if err == nil {
		t.Fatal("expected an error without an API key")
	}
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	_, err := NewEmbedder(&config.LLMConfig{Provider: "bedrock"})
	if err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}
