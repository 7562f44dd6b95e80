package models

// Document is the raw text of one page (or page-equivalent unit such as
// a sheet or markdown section) of a source file.
type Document struct {
	Source     string
	PageNumber int
	Content    string
}

// Chunk represents a bounded span of a Document with metadata
type Chunk struct {
	Content    string
	Source     string
	PageNumber int
	ChunkID    int
}

// ChunkEmbedding pairs a chunk with its embedding vector
type ChunkEmbedding struct {
	Content    string
	Embedding  []float32
	Source     string
	PageNumber int
	ChunkID    int
}

// Hit is a retrieved chunk with its similarity to the query.
type Hit struct {
	Content    string
	Source     string
	PageNumber int
	ChunkID    int
	Similarity float32
}
