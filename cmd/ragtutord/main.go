package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ragtutor/internal/chunker"
	"ragtutor/internal/config"
	"ragtutor/internal/embedding"
	"ragtutor/internal/llm"
	"ragtutor/internal/logging"
	"ragtutor/internal/server"
	"ragtutor/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "Path to YAML config file")
	host := flag.String("host", "", "Listen host (overrides config)")
	port := flag.Int("port", 0, "Listen port (overrides config)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if *cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(*cfgPath)
	}
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	var emb embedding.Embedder
	switch cfg.Embedder.Type {
	case "fastembed", "":
		fe := cfg.Embedder.FastEmbed
		if fe == nil {
			fe = &config.FastEmbedConfig{}
		}
		emb, err = embedding.NewFastEmbed(embedding.FastEmbedConfig{
			Model:     fe.Model,
			CacheDir:  fe.CacheDir,
			Dimension: cfg.Embedder.Dimension,
		})
	case "openai":
		oa := cfg.Embedder.OpenAI
		if oa == nil {
			log.Fatalf("openai embedder config missing")
		}
		emb, err = embedding.NewOpenAI(embedding.OpenAIConfig{
			BaseURL:     oa.BaseURL,
			APIKeyEnv:   oa.APIKeyEnv,
			Model:       oa.Model,
			Dimension:   cfg.Embedder.Dimension,
			Timeout:     time.Duration(oa.TimeoutSecs) * time.Second,
			BatchSize:   oa.BatchSize,
			Concurrency: oa.Concurrency,
		})
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}
	if err != nil {
		log.Fatalf("building embedder: %v", err)
	}

	completer := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKeyEnv:   cfg.LLM.APIKeyEnv,
		Model:       cfg.LLM.Model,
		Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})

	svc, err := service.New(emb, completer, chunker.New(cfg.Chunker.Size, *cfg.Chunker.Overlap), service.Config{
		Dimension:  cfg.Embedder.Dimension,
		TopKChunks: cfg.Retrieval.TopKChunks,
		TopKImages: cfg.Retrieval.TopKImages,
		StoreDir:   cfg.Store.Dir,
	}, logger)
	if err != nil {
		log.Fatalf("building service: %v", err)
	}
	defer func() { _ = svc.Close() }()

	if err := svc.LoadIndices(); err != nil {
		log.Fatalf("loading indices: %v", err)
	}

	srv, err := server.New(svc, logger, server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigins:    cfg.Server.CORSOrigins,
		UploadDir:      cfg.Server.UploadDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ModelID:        cfg.LLM.Model,
		APIKeySet:      os.Getenv(cfg.LLM.APIKeyEnv) != "",
	})
	if err != nil {
		log.Fatalf("building server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
