package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docpipe/internal/config"
	"docpipe/internal/embedding"
	"docpipe/internal/helper"
	"docpipe/internal/llmservice"
	"docpipe/internal/loader"
	"docpipe/internal/models"
	"docpipe/internal/pgstore"
	"docpipe/internal/rag"
	"docpipe/internal/splitter"
	"docpipe/internal/vectordb"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	filePath := flag.String("file", "", "Path to a document file to ingest")
	dirPath := flag.String("dir", "", "Path to a directory of documents to ingest")
	query := flag.String("query", "", "Query to be answered")
	flag.Parse()

	ctx := context.Background()

	switch {
	case *filePath != "" || *dirPath != "":
		ingest(ctx, *filePath, *dirPath)
	case *query != "":
		answer(ctx, *query)
	default:
		log.Fatal().Msg("Please provide a document via -file, a directory via -dir, or a question via -query")
	}
}

func ingest(ctx context.Context, filePath, dirPath string) {
	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	docs, err := loadDocuments(cfg, filePath, dirPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading documents")
	}
	if len(docs) == 0 {
		log.Info().Msg("Nothing to ingest")
		return
	}

	split, err := splitter.New(splitter.Options{
		ChunkSize:     cfg.Splitter.ChunkSize,
		ChunkOverlap:  cfg.Splitter.ChunkOverlap,
		BoundaryModel: cfg.Splitter.BoundaryModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error building splitter")
	}
	chunks, err := split.SplitDocuments(docs)
	if err != nil {
		log.Fatal().Err(err).Msg("Error splitting documents")
	}
	log.Info().Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("Split documents")

	embedder, err := embedding.NewOllamaProvider(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	if cfg.Store.Backend == "postgres" {
		storePostgres(ctx, cfg, embedder, chunks)
		return
	}

	if err := helper.CreateFolder(cfg.Store.Directory); err != nil {
		log.Fatal().Err(err).Msg("Error creating store directory")
	}
	collection, err := vectordb.Open(cfg.Store.Collection, cfg.Store.Directory, embedder)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening collection")
	}
	if err := collection.Add(ctx, chunks); err != nil {
		log.Fatal().Err(err).Msg("Error adding chunks to collection")
	}
	log.Info().Int("count", collection.Count()).Msg("Collection updated")
}

func loadDocuments(cfg *config.Config, filePath, dirPath string) ([]models.RawDocument, error) {
	opts := loader.Options{
		Text: loader.TextOptions{Encoding: cfg.Loader.TextEncoding},
		CSV:  loader.CSVOptions{SourceColumn: cfg.Loader.CSVSource},
		JSON: loader.JSONOptions{Query: cfg.Loader.JSONQuery, ContentKey: cfg.Loader.JSONContentKey},
		PDF: loader.PDFOptions{
			Mode:           cfg.Loader.PDFMode,
			PagesDelimiter: cfg.Loader.PDFDelimiter,
			Password:       cfg.Loader.PDFPassword,
			ExtractImages:  cfg.Loader.PDFImages,
			ImageFormat:    cfg.Loader.PDFImageFormat,
		},
		Word:     loader.WordOptions{Mode: cfg.Loader.Mode},
		Excel:    loader.ExcelOptions{Mode: cfg.Loader.Mode},
		Markdown: loader.MarkdownOptions{Mode: cfg.Loader.Mode},
	}
	if cfg.Loader.PDFImages {
		captioner, err := llmservice.NewCaptioner(&cfg.Captioning)
		if err != nil {
			return nil, err
		}
		opts.PDF.Captioner = captioner
	}
	if cfg.Extraction.Endpoint != "" {
		client, err := loader.NewExtractionClient(cfg.Extraction.Endpoint, cfg.Extraction.APIKey)
		if err != nil {
			return nil, err
		}
		opts.Fallback = client
	}
	router := loader.NewRouter(opts)

	if filePath != "" {
		return router.LoadFile(filePath)
	}
	docs, failures, err := router.LoadDir(dirPath)
	if err != nil {
		return nil, err
	}
	for _, failure := range failures {
		log.Warn().Err(failure.Err).Str("file", failure.Path).Msg("File skipped during batch load")
	}
	return docs, nil
}

func storePostgres(ctx context.Context, cfg *config.Config, embedder *embedding.Provider, chunks []models.Chunk) {
	sqldb, err := pgstore.ConnectDB(cfg.Store.PostgresDSN, cfg.Store.PostgresKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	db := pgstore.NewDB(sqldb, cfg.Store.Debug)
	defer db.Close()

	if err := pgstore.InitDB(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating embeddings")
	}
	if err := pgstore.StoreChunks(ctx, db, chunks, vectors); err != nil {
		log.Fatal().Err(err).Msg("Error storing chunks")
	}
	log.Info().Int("chunks", len(chunks)).Msg("Stored chunks in postgres")
}

func answer(ctx context.Context, query string) {
	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	embedder, err := embedding.NewOllamaProvider(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	collection, err := vectordb.Open(cfg.Store.Collection, cfg.Store.Directory, embedder)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening collection")
	}

	pipeline := rag.NewRAG(collection, cfg, 0)
	response, err := pipeline.Answer(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", query)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response)
}
