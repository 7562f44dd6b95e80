package splitter

import (
	"fmt"
	"strings"

	"document-qa/internal/models"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	defaultChunkSize    = 1024
	defaultChunkOverlap = 200
)

// Splitter cuts page text into overlapping chunks. Pages are split
// independently, so a chunk never spans a page boundary.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

func New(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
		chunkOverlap = defaultChunkOverlap
	}
	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// Split turns parsed pages into retrieval chunks. Pages with no text
// produce no chunks; chunk IDs restart at 1 on every page.
func (s *Splitter) Split(docs []models.Document) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}
		parts, err := s.inner.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("split page %d of %s: %w", doc.PageNumber, doc.Source, err)
		}
		for i, part := range parts {
			chunks = append(chunks, models.Chunk{
				Content:    part,
				Source:     doc.Source,
				PageNumber: doc.PageNumber,
				ChunkID:    i + 1,
			})
		}
	}
	return chunks, nil
}
