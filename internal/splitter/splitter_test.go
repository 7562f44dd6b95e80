package splitter

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"document-qa/internal/models"
)

func TestSplitShortPagesOneChunkEach(t *testing.T) {
	const pages = 132
	docs := make([]models.Document, 0, pages)
	for i := 1; i <= pages; i++ {
		docs = append(docs, models.Document{
			Source:     "manual.pdf",
			PageNumber: i,
			Content:    fmt.Sprintf("Summary of page %d.", i),
		})
	}

	chunks, err := New(1024, 200).Split(docs)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != pages {
		t.Fatalf("got %d chunks, want %d", len(chunks), pages)
	}
	for i, c := range chunks {
		if c.PageNumber != i+1 {
			t.Errorf("chunk %d: page = %d, want %d", i, c.PageNumber, i+1)
		}
		if c.ChunkID != 1 {
			t.Errorf("chunk %d: id = %d, want 1", i, c.ChunkID)
		}
	}
}

func TestSplitLongPage(t *testing.T) {
	content := strings.TrimSpace(strings.Repeat("the quick brown fox jumps over the lazy dog ", 50))
	docs := []models.Document{{Source: "long.txt", PageNumber: 1, Content: content}}

	chunks, err := New(100, 20).Split(docs)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Content); n > 100 {
			t.Errorf("chunk %d: %d runes, want <= 100", i, n)
		}
		if c.PageNumber != 1 {
			t.Errorf("chunk %d: page = %d, want 1", i, c.PageNumber)
		}
		if c.ChunkID != i+1 {
			t.Errorf("chunk %d: id = %d, want %d", i, c.ChunkID, i+1)
		}
	}
}

func TestSplitSkipsEmptyPages(t *testing.T) {
	docs := []models.Document{
		{Source: "doc.pdf", PageNumber: 1, Content: "First page."},
		{Source: "doc.pdf", PageNumber: 2, Content: ""},
		{Source: "doc.pdf", PageNumber: 3, Content: "   \n\t"},
		{Source: "doc.pdf", PageNumber: 4, Content: "Last page."},
	}

	chunks, err := New(1024, 200).Split(docs)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].PageNumber != 1 || chunks[1].PageNumber != 4 {
		t.Errorf("pages = %d, %d, want 1, 4", chunks[0].PageNumber, chunks[1].PageNumber)
	}
	if chunks[0].Source != "doc.pdf" {
		t.Errorf("source = %q, want doc.pdf", chunks[0].Source)
	}
}

func TestSplitNoPages(t *testing.T) {
	chunks, err := New(1024, 200).Split(nil)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("got %d chunks from no pages, want 0", len(chunks))
	}
}
