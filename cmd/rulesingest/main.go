// Command rulesingest loads the Magic: The Gathering Comprehensive Rules
// into the pgvector search index. It chunks the document by rule number,
// embeds every chunk, and upserts the result, so re-running it after a
// rules update refreshes the index in place.
//
// Usage:
//
//	rulesingest -config config.yaml -source https://media.wizards.com/.../MagicCompRules.txt
//	rulesingest -config config.yaml -source ./MagicCompRules.txt
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tolarian/tutor/internal/config"
	"github.com/tolarian/tutor/internal/rules"
	"github.com/tolarian/tutor/pkg/embeddings"
	oaembed "github.com/tolarian/tutor/pkg/embeddings/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	source := flag.String("source", "", "rules document: an http(s) URL or a local file path")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *source == "" {
		fmt.Fprintln(os.Stderr, "rulesingest: -source is required")
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rulesingest: %v\n", err)
		return 1
	}
	if cfg.Rules.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "rulesingest: rules.postgres_dsn is not configured")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	document, err := loadDocument(ctx, *source)
	if err != nil {
		slog.Error("failed to load rules document", "source", *source, "err", err)
		return 1
	}
	slog.Info("rules document loaded", "source", *source, "bytes", len(document))

	embedder, err := buildEmbedder(cfg.Rules.Embeddings)
	if err != nil {
		slog.Error("failed to build embeddings provider", "err", err)
		return 1
	}

	dims := cfg.Rules.EmbeddingDimensions
	if dims == 0 {
		dims = embedder.Dimensions()
	}
	store, err := rules.NewStore(ctx, cfg.Rules.PostgresDSN, dims)
	if err != nil {
		slog.Error("failed to open rules store", "err", err)
		return 1
	}
	defer store.Close()

	start := time.Now()
	count, err := rules.NewIndex(store, embedder).Ingest(ctx, document)
	if err != nil {
		slog.Error("ingest failed", "err", err)
		return 1
	}

	slog.Info("ingest complete",
		"chunks", count,
		"model", embedder.ModelID(),
		"duration", time.Since(start).Round(time.Second),
	)
	return 0
}

func loadDocument(ctx context.Context, source string) (string, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return rules.Fetch(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", source, err)
	}
	return string(data), nil
}

func buildEmbedder(entry config.ProviderEntry) (embeddings.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	default:
		return nil, fmt.Errorf("unsupported embeddings provider %q", entry.Name)
	}
}
