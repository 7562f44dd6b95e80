package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

const (
	inferenceTemperature = 0.2
	inferenceMaxTokens   = 700
)

var thinkTags = regexp.MustCompile(models.ThinkTag)

// Store serves similarity search over a built index.
type Store interface {
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.Hit, error)
}

// Answer is the outcome of one query. Found is false when the indexed
// document does not contain the answer; provider failures are returned
// as errors instead, see ProviderError.
type Answer struct {
	Query   string
	Text    string
	Found   bool
	Sources []models.Hit
}

// Engine answers questions against a built index.
type Engine struct {
	store      Store
	embedder   embeddings.Embedder
	model      llms.Model
	topK       int
	snippetLen int
}

func NewEngine(store Store, embedder embeddings.Embedder, model llms.Model, cfg *config.RAGConfig) *Engine {
	return &Engine{
		store:      store,
		embedder:   embedder,
		model:      model,
		topK:       cfg.TopK,
		snippetLen: cfg.SnippetLen,
	}
}

// NewModel builds the inference model for the configured provider.
func NewModel(cfg *config.LLMConfig) (llms.Model, error) {
	switch cfg.Provider {
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init ollama model: %w", err)
		}
		return llm, nil
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai model: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported inference provider: %s", cfg.Provider)
	}
}

// Query embeds the question, retrieves the nearest chunks and asks the
// model to answer from them. When retrieval comes back empty the model
// is not called at all.
func (e *Engine) Query(ctx context.Context, query string) (*Answer, error) {
	queryEmbedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, wrapProvider("embed query", err)
	}

	hits, err := e.store.Search(ctx, queryEmbedding, e.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if len(hits) == 0 {
		return &Answer{Query: query, Text: models.NoAnswerText}, nil
	}

	var contextText strings.Builder
	for _, hit := range hits {
		contextText.WriteString(hit.Content)
		contextText.WriteString("\n\n")
	}

	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: models.RAGSystemPrompt}},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: fmt.Sprintf(models.RAGUserPromptTemplate, contextText.String(), query)}},
		},
	}

	resp, err := e.model.GenerateContent(ctx, messages,
		llms.WithTemperature(inferenceTemperature),
		llms.WithMaxTokens(inferenceMaxTokens),
	)
	if err != nil {
		return nil, wrapProvider("generate answer", err)
	}
	if len(resp.Choices) == 0 {
		return nil, wrapProvider("generate answer", errors.New("empty response"))
	}

	text := stripThinkTags(resp.Choices[0].Content)
	answer := &Answer{Query: query, Text: text, Sources: hits, Found: !isNoAnswer(text)}
	if !answer.Found {
		answer.Text = models.NoAnswerText
	}
	return answer, nil
}

// Render writes the console report for one answer: the question, the
// answer text and one line per source excerpt.
func (e *Engine) Render(w io.Writer, answer *Answer) {
	fmt.Fprintf(w, "Query: %s\n", answer.Query)
	fmt.Fprintf(w, "Assistant: %s\n", answer.Text)
	for _, hit := range answer.Sources {
		fmt.Fprintf(w, "Source: %s p.%d [%.2f] %s\n",
			hit.Source, hit.PageNumber, hit.Similarity, snippet(hit.Content, e.snippetLen))
	}
	fmt.Fprintln(w)
}

// snippet flattens whitespace so an excerpt stays on one line.
func snippet(s string, n int) string {
	return helper.Truncate(strings.Join(strings.Fields(s), " "), n)
}

func stripThinkTags(s string) string {
	return strings.TrimSpace(thinkTags.ReplaceAllString(s, ""))
}

// isNoAnswer reports whether the model declined to answer. Models echo
// the refusal with drifting case and punctuation, so this matches the
// core phrase rather than the exact sentinel.
func isNoAnswer(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return true
	}
	return strings.Contains(t, "answer is not available")
}
