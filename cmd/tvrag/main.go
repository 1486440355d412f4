// Command tvrag is the financial research PDF pipeline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/adapters/driven/config/file"
	embeddingopenai "github.com/mnajjaa/tunisie-valeurs-RAG/internal/adapters/driven/embedding/openai"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/adapters/driven/extraction/docparse"
	llmopenai "github.com/mnajjaa/tunisie-valeurs-RAG/internal/adapters/driven/llm/openai"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/adapters/driven/storage/sqlite"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/adapters/driving/cli"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/services"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/splitter"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/watcher"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; environment beats config file for secrets.
	_ = godotenv.Load()

	cfg, err := file.Load(os.Getenv("TVRAG_CONFIG_DIR"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	extractor := docparse.New(docparse.Config{
		BaseURL: cfg.Docparse.BaseURL,
		Timeout: cfg.DocparseTimeout(),
	})

	// The OpenAI-backed capabilities stay nil without an API key:
	// registration, structuring and the read-only commands keep working,
	// while embedding, captioning and answer generation report themselves
	// unavailable when invoked.
	var embedder driven.EmbeddingService
	var completion driven.CompletionService
	var captions driven.CaptionService
	dimensions := cfg.OpenAI.Dimensions
	if cfg.OpenAI.APIKey != "" {
		embedding, err := embeddingopenai.NewEmbeddingService(embeddingopenai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.EmbeddingModel,
			Dimensions: cfg.OpenAI.Dimensions,
		})
		if err != nil {
			return fmt.Errorf("configuring embedding service: %w", err)
		}
		defer embedding.Close()
		embedder = embedding
		dimensions = embedding.Dimensions()

		llm, err := llmopenai.NewLLMService(llmopenai.LLMConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.ChatModel,
		})
		if err != nil {
			return fmt.Errorf("configuring LLM service: %w", err)
		}
		defer llm.Close()
		completion = llm
		captions = llm
	}

	split := splitter.New(
		splitter.WithMaxChars(cfg.Chunking.MaxChars),
		splitter.WithMinFragment(cfg.Chunking.MinFragment),
	)

	register := services.NewRegisterService(store, cfg.DataDir)
	pipeline := services.NewPipeline(store, extractor, captions, embedder, split,
		services.WithBatchSize(cfg.Chunking.BatchSize))
	retrieval := services.NewRetrievalService(store, dimensions)
	ask := services.NewAskService(embedder, retrieval, completion)

	inbox, err := watcher.New(cfg.InboxDir, register, pipeline)
	if err != nil {
		return fmt.Errorf("configuring watcher: %w", err)
	}

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Register: register,
		Pipeline: pipeline,
		Ask:      ask,
		AskTopK:  cfg.Retrieval.TopK,
		Watcher:  inbox,
	})

	return cli.Execute()
}
