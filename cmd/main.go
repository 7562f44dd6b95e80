package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/indexer"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/rag"
	"document-qa/internal/splitter"
)

const defaultConfigPath = "./configs/config.yaml"

// vectorStore is the full surface both backends provide. The ingest
// and query packages each depend on their own slice of it.
type vectorStore interface {
	Reset(ctx context.Context) error
	Open(ctx context.Context) error
	Add(ctx context.Context, embeddings []models.ChunkEmbedding) error
	Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.Hit, error)
	Close() error
}

// snapshotter is the optional snapshot surface the chromem backend adds
// on top of vectorStore. An in-memory index lives for one process, so
// ingest exports a snapshot and the query paths restore it.
type snapshotter interface {
	Export() error
	Import() error
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document to index")
	query := flag.String("query", "", "Question to answer from the indexed document")
	batchFile := flag.String("batch", "", "Path to a file with one question per line")
	dryRun := flag.Bool("dry-run", false, "Parse and chunk only, do not embed or store")
	flag.Parse()

	// .env is optional; the real environment wins
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded .env")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	applyLogLevel(cfg.LogLevel)

	for _, key := range cfg.MissingKeys() {
		log.Warn().Str("env", key).Msg("API key not set, hosted provider calls will fail until it is exported")
	}

	ctx := context.Background()
	switch {
	case *filePath != "" && *query == "" && *batchFile == "":
		runIngest(ctx, cfg, *filePath, *dryRun)
	case *query != "" && *filePath == "" && *batchFile == "":
		runQuery(ctx, cfg, *query)
	case *batchFile != "" && *filePath == "" && *query == "":
		runBatch(ctx, cfg, *batchFile)
	default:
		log.Fatal().Msg("Provide exactly one of -file, -query or -batch")
	}
}

func applyLogLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("Unknown log level, keeping debug")
		return
	}
	zerolog.SetGlobalLevel(parsed)
}

func runIngest(ctx context.Context, cfg *config.Config, filePath string, dryRun bool) {
	if !parser.Exists(filePath) {
		log.Fatal().Str("file", filePath).Msg("Input file not found")
	}

	split := splitter.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)

	if dryRun {
		docs, err := parser.ParseFile(filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Error parsing document")
		}
		chunks, err := split.Split(docs)
		if err != nil {
			log.Fatal().Err(err).Msg("Error splitting document")
		}
		log.Info().Int("pages", len(docs)).Int("chunks", len(chunks)).Msg("Dry run, nothing stored")
		helper.PrettyPrint(chunks)
		return
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	store := openStore(cfg)
	defer store.Close()

	summary, err := indexer.Build(ctx, filePath, split, embedder, store)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building index")
	}
	log.Info().
		Str("file", summary.Source).
		Int("pages", summary.Pages).
		Int("chunks", summary.Chunks).
		Int("embeddings", summary.Embeddings).
		Msg("Index rebuilt")

	if err := snapshotAfterIngest(cfg, store); err != nil {
		log.Fatal().Err(err).Msg("Error exporting index snapshot")
	}
}

// snapshotAfterIngest persists an in-memory index before the process
// exits. Without an encryption key there is nothing to export to, so
// the run only warns that the index is discarded.
func snapshotAfterIngest(cfg *config.Config, store vectorStore) error {
	if !cfg.Store.InMemory {
		return nil
	}
	snap, ok := store.(snapshotter)
	if !ok {
		return nil
	}
	if cfg.RAG.EncryptionKey == "" {
		log.Warn().Msg("In-memory index is discarded on exit, set rag.encryption_key to snapshot it")
		return nil
	}
	if err := snap.Export(); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	log.Info().Str("dir", cfg.Store.Path).Msg("Index snapshot written")
	return nil
}

// restoreBeforeQuery reloads the snapshot an in-memory ingest run left
// behind. A snapshot that was never written is not an error; the index
// just starts empty.
func restoreBeforeQuery(cfg *config.Config, store vectorStore) error {
	if !cfg.Store.InMemory {
		return nil
	}
	snap, ok := store.(snapshotter)
	if !ok || cfg.RAG.EncryptionKey == "" {
		return nil
	}
	if err := snap.Import(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("dir", cfg.Store.Path).Msg("No index snapshot to restore, the index starts empty")
			return nil
		}
		return fmt.Errorf("import snapshot: %w", err)
	}
	log.Info().Str("dir", cfg.Store.Path).Msg("Index snapshot restored")
	return nil
}

func runQuery(ctx context.Context, cfg *config.Config, query string) {
	store := openStore(cfg)
	defer store.Close()
	if err := restoreBeforeQuery(cfg, store); err != nil {
		log.Fatal().Err(err).Msg("Error importing index snapshot")
	}
	if err := store.Open(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error opening index")
	}

	engine := newEngine(cfg, store)
	answer, err := engine.Query(ctx, query)
	if err != nil {
		reportQueryError(query, err)
		os.Exit(1)
	}
	engine.Render(os.Stdout, answer)
}

func runBatch(ctx context.Context, cfg *config.Config, batchPath string) {
	queries, err := readQueries(batchPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading batch file")
	}
	if len(queries) == 0 {
		log.Fatal().Str("file", batchPath).Msg("Batch file has no questions")
	}

	store := openStore(cfg)
	defer store.Close()
	if err := restoreBeforeQuery(cfg, store); err != nil {
		log.Fatal().Err(err).Msg("Error importing index snapshot")
	}
	if err := store.Open(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error opening index")
	}

	engine := newEngine(cfg, store)
	log.Info().Int("questions", len(queries)).Dur("delay", cfg.RAG.BatchDelay.Std()).Msg("Answering batch")
	engine.Batch(ctx, os.Stdout, queries, cfg.RAG.BatchDelay.Std(), reportQueryError)
}

func newEngine(cfg *config.Config, store rag.Store) *rag.Engine {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	model, err := rag.NewModel(&cfg.InferLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing inference model")
	}
	return rag.NewEngine(store, embedder, model, &cfg.RAG)
}

func openStore(cfg *config.Config) vectorStore {
	switch cfg.Store.Backend {
	case "postgres":
		store, err := db.Connect(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to database")
		}
		return store
	default:
		store, err := chromemdb.New(&cfg.Store, cfg.RAG.EncryptionKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening vector store")
		}
		return store
	}
}

func reportQueryError(query string, err error) {
	evt := log.Error().Err(err).Str("query", query)
	if errors.Is(err, rag.ErrRateLimited) {
		evt.Msg("Provider rate limited the request, wait or check the plan quota")
		return
	}
	evt.Msg("Error answering query")
}

// readQueries loads one question per line, skipping blanks and #
// comments.
func readQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var queries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	return queries, nil
}
