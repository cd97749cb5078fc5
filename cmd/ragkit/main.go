package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/andar-cloud/ragkit/internal/answer"
	"github.com/andar-cloud/ragkit/internal/config"
	"github.com/andar-cloud/ragkit/internal/corpus"
	"github.com/andar-cloud/ragkit/internal/embedding"
	"github.com/andar-cloud/ragkit/internal/indexer"
	logpkg "github.com/andar-cloud/ragkit/internal/logger"
	"github.com/andar-cloud/ragkit/internal/memory"
	"github.com/andar-cloud/ragkit/internal/metrics"
	"github.com/andar-cloud/ragkit/internal/retriever"
	chiTransport "github.com/andar-cloud/ragkit/internal/transport/chi"
	openaiTransport "github.com/andar-cloud/ragkit/internal/transport/openai"
	"github.com/andar-cloud/ragkit/internal/vectorindex"
	"github.com/andar-cloud/ragkit/internal/vectorindex/redisindex"
	"github.com/andar-cloud/ragkit/internal/vectorindex/sqliteindex"
	"github.com/andar-cloud/ragkit/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragkit API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("corpus_root", cfg.Corpus.Root),
	)

	// Create the vector index for the configured backend
	var index vectorindex.Index
	switch cfg.Index.Backend {
	case "embedded":
		index, err = sqliteindex.New(cfg.Index.Path)
	case "redis":
		var store *redisindex.Store
		store, err = redisindex.New(redisindex.Config{
			Addrs:    cfg.Index.Addrs,
			Password: cfg.Index.Password,
		})
		if err == nil {
			readiness := time.Duration(cfg.Index.ReadinessTimeout) * time.Second
			if err := store.WaitForReady(context.Background(), readiness); err != nil {
				logger.Fatal("Index backend not ready", zap.Error(err))
			}
		}
		index = store
	default:
		logger.Fatal("Unknown index backend", zap.String("backend", cfg.Index.Backend))
	}
	if err != nil {
		logger.Fatal("Failed to create vector index", zap.Error(err))
	}
	defer index.Close()
	logger.Info("Vector index ready", zap.String("backend", cfg.Index.Backend))

	// Register domain metrics explicitly (no init())
	metrics.Register()

	// Embedder is lazy: construction and the dimension probe happen on first use
	embedder := embedding.NewLazy(&embedding.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	splitter, err := corpus.NewSplitter(cfg.Corpus.MaxChars, cfg.Corpus.Overlap)
	if err != nil {
		logger.Fatal("Invalid chunking settings", zap.Error(err))
	}
	loader := corpus.NewLoader(cfg.Corpus.PDFToText, logger)

	builder := indexer.NewBuilder(&indexer.Config{
		Loader:     loader,
		Splitter:   splitter,
		Embedder:   embedder,
		Dims:       embedder,
		Index:      index,
		Collection: cfg.Index.DocsCollection,
		Root:       cfg.Corpus.Root,
		Logger:     logger,
	})

	docs := retriever.New(embedder, index, cfg.Index.DocsCollection)
	memories := memory.NewStore(embedder, index, embedder, cfg.Index.MemoryCollection)

	llm := openaiTransport.NewLLM(&openaiTransport.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxRetries:  cfg.LLM.MaxRetries,
		Logger:      logger,
	})

	assembler := answer.NewAssembler(docs, memories, cfg.LLM.KDocs, cfg.LLM.KMemories)
	answerer := answer.NewAnswerer(assembler, llm, logger)

	server := chiTransport.NewServer(builder, answerer, memories, embedder, logger)
	router := server.Router(cfg.HTTP.RatePerMinute)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
