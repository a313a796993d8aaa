package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ragtutor/internal/chunker"
	"ragtutor/internal/config"
	"ragtutor/internal/domain"
	"ragtutor/internal/embedding"
	"ragtutor/internal/extract"
	"ragtutor/internal/llm"
	"ragtutor/internal/logging"
	"ragtutor/internal/service"
	"ragtutor/internal/tui"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "ingest":
		runIngest(os.Args[2:])
	case "ask":
		runAsk(os.Args[2:])
	case "chat":
		runChat(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Usage:
  ragtutor ingest [-config=config.yaml] [-images=image_metadata.json] document.txt
  ragtutor ask    [-config=config.yaml] "question"
  ragtutor chat   [-config=config.yaml]`)
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config file")
	imagesPath := fs.String("images", "", "Path to image metadata JSON")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		os.Exit(1)
	}

	svc, _, logger := assemble(*cfgPath)
	defer func() { _ = logger.Sync() }()
	defer func() { _ = svc.Close() }()

	text, err := extract.File(fs.Arg(0))
	if err != nil {
		log.Fatalf("extracting document: %v", err)
	}

	ctx := context.Background()
	chunks, err := svc.IngestDocument(ctx, text)
	if err != nil {
		log.Fatalf("ingesting document: %v", err)
	}
	fmt.Printf("Indexed %d chunks from %s\n", chunks, fs.Arg(0))

	if *imagesPath != "" {
		descriptors, err := loadImageMetadata(*imagesPath)
		if err != nil {
			log.Fatalf("reading image metadata: %v", err)
		}
		images, err := svc.IngestImages(ctx, descriptors)
		if err != nil {
			log.Fatalf("ingesting images: %v", err)
		}
		fmt.Printf("Indexed %d image descriptors from %s\n", images, *imagesPath)
	}
}

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config file")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		os.Exit(1)
	}

	svc, _, logger := assemble(*cfgPath)
	defer func() { _ = logger.Sync() }()
	defer func() { _ = svc.Close() }()

	if err := svc.LoadIndices(); err != nil {
		log.Fatalf("loading indices: %v", err)
	}

	answer, err := svc.AnswerQuestion(context.Background(), fs.Arg(0))
	if err != nil {
		log.Fatalf("answering question: %v", err)
	}

	fmt.Println(answer.Answer)
	if len(answer.SupportingChunks) > 0 {
		fmt.Println("\nSources:")
		for _, c := range answer.SupportingChunks {
			fmt.Printf("  %s  similarity=%.3f\n", c.ID, c.Similarity)
		}
	}
	if answer.Image != nil {
		fmt.Printf("\nIllustration: %s (%s)\n", answer.Image.Filename, answer.Image.Title)
	}
}

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config file")
	_ = fs.Parse(args)

	svc, _, logger := assemble(*cfgPath)
	defer func() { _ = logger.Sync() }()
	defer func() { _ = svc.Close() }()

	if err := svc.LoadIndices(); err != nil {
		log.Fatalf("loading indices: %v", err)
	}

	if _, err := tea.NewProgram(tui.New(svc), tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}

// assemble builds the orchestrator and its dependencies from config.
func assemble(cfgPath string) (*service.Service, *config.AppConfig, *zap.Logger) {
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}

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
	return svc, cfg, logger
}

// loadImageMetadata accepts either a bare JSON array of descriptors or an
// object with an "images" key.
func loadImageMetadata(path string) ([]domain.ImageDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wrapped struct {
		Images []domain.ImageDescriptor `json:"images"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Images) > 0 {
		return wrapped.Images, nil
	}
	var bare []domain.ImageDescriptor
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}
