// Command tutor is the Tolarian Tutor MCP server: Magic: The Gathering
// card, combo, and rules lookup tools served over stdio, with an optional
// Discord front end driving the same tools through an LLM agent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tolarian/tutor/internal/config"
	discordbot "github.com/tolarian/tutor/internal/discord"
	"github.com/tolarian/tutor/internal/health"
	"github.com/tolarian/tutor/internal/mcpserver"
	"github.com/tolarian/tutor/internal/observe"
	"github.com/tolarian/tutor/internal/rules"
	"github.com/tolarian/tutor/internal/scryfall"
	"github.com/tolarian/tutor/internal/spellbook"
	"github.com/tolarian/tutor/internal/tools"
	"github.com/tolarian/tutor/internal/tools/carddb"
	"github.com/tolarian/tutor/internal/tools/combodb"
	"github.com/tolarian/tutor/internal/tools/rulesearch"
	"github.com/tolarian/tutor/pkg/embeddings"
	oaembed "github.com/tolarian/tutor/pkg/embeddings/openai"
	"github.com/tolarian/tutor/pkg/llm/anyllm"
)

const (
	serverName    = "tolarian-tutor"
	serverVersion = "0.1.0"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No config file is fine: everything has a usable default.
			cfg = &config.Config{}
		} else {
			fmt.Fprintf(os.Stderr, "tutor: %v\n", err)
			return 1
		}
	}

	// All logging goes to stderr; stdout belongs to the MCP transport.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("tutor starting",
		"version", serverVersion,
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    serverName,
		ServiceVersion: serverVersion,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// Upstream clients.
	scryfallOpts := []scryfall.Option{scryfall.WithRecorder(metrics)}
	if cfg.Scryfall.BaseURL != "" {
		scryfallOpts = append(scryfallOpts, scryfall.WithBaseURL(cfg.Scryfall.BaseURL))
	}
	if cfg.Scryfall.UserAgent != "" {
		scryfallOpts = append(scryfallOpts, scryfall.WithUserAgent(cfg.Scryfall.UserAgent))
	}
	if cfg.Scryfall.MinInterval > 0 {
		scryfallOpts = append(scryfallOpts, scryfall.WithMinInterval(cfg.Scryfall.MinInterval))
	}
	cards := scryfall.New(scryfallOpts...)

	spellbookOpts := []spellbook.Option{spellbook.WithRecorder(metrics)}
	if cfg.Spellbook.BaseURL != "" {
		spellbookOpts = append(spellbookOpts, spellbook.WithBaseURL(cfg.Spellbook.BaseURL))
	}
	combos := spellbook.New(spellbookOpts...)

	// Rules index (optional).
	var searcher rulesearch.Searcher
	var rulesStore *rules.Store
	if cfg.Rules.PostgresDSN != "" {
		store, index, err := buildRulesIndex(ctx, cfg.Rules)
		if err != nil {
			slog.Error("failed to open rules index", "err", err)
			return 1
		}
		rulesStore = store
		defer rulesStore.Close()
		searcher = index
		if n, err := index.Size(ctx); err == nil {
			slog.Info("rules index connected", "chunks", n)
		}
	} else {
		slog.Info("rules index not configured; mtg_rules_search will degrade gracefully")
	}

	toolSets := [][]tools.Tool{
		carddb.Tools(cards),
		combodb.Tools(combos),
		rulesearch.Tools(searcher, metrics),
	}

	srv, err := mcpserver.New(serverName, serverVersion, metrics, toolSets...)
	if err != nil {
		slog.Error("failed to build MCP server", "err", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The stdio client owns the process lifetime: when it disconnects,
		// take the ops server and the bot down with us.
		defer stop()
		slog.Info("MCP server listening on stdio")
		return srv.Run(gctx, &mcpsdk.StdioTransport{})
	})

	// Ops endpoint: Prometheus metrics plus liveness/readiness probes.
	if addr := cfg.Server.MetricsAddr; addr != "" {
		g.Go(func() error {
			return runOpsServer(gctx, addr, metrics, rulesStore)
		})
	}

	// Discord front end (optional).
	if cfg.Discord.Enabled {
		bot, err := buildDiscordBot(cfg, metrics, toolSets)
		if err != nil {
			slog.Error("failed to create Discord bot", "err", err)
			return 1
		}
		g.Go(func() error {
			return bot.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildRulesIndex opens the pgvector store and the embeddings provider
// behind the rules search tool.
func buildRulesIndex(ctx context.Context, cfg config.RulesConfig) (*rules.Store, *rules.Index, error) {
	embedder, err := buildEmbedder(cfg.Embeddings)
	if err != nil {
		return nil, nil, err
	}

	dims := cfg.EmbeddingDimensions
	if dims == 0 {
		dims = embedder.Dimensions()
	}
	store, err := rules.NewStore(ctx, cfg.PostgresDSN, dims)
	if err != nil {
		return nil, nil, err
	}
	return store, rules.NewIndex(store, embedder), nil
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

// buildDiscordBot wires the LLM agent over the same tool registry the MCP
// server exposes.
func buildDiscordBot(cfg *config.Config, metrics *observe.Metrics, toolSets [][]tools.Tool) (*discordbot.Bot, error) {
	var opts []anyllmlib.Option
	if cfg.LLM.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.LLM.APIKey))
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.LLM.BaseURL))
	}
	provider, err := anyllm.New(cfg.LLM.Provider, cfg.LLM.Model, opts...)
	if err != nil {
		return nil, err
	}

	agent, err := discordbot.NewAgent(provider, metrics, toolSets...)
	if err != nil {
		return nil, err
	}
	slog.Info("discord agent ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	return discordbot.New(discordbot.Config{
		Token:  cfg.Discord.Token,
		Prefix: cfg.Discord.Prefix,
	}, agent)
}

// runOpsServer serves /metrics, /healthz, and /readyz until ctx is cancelled.
func runOpsServer(ctx context.Context, addr string, metrics *observe.Metrics, store *rules.Store) error {
	var checkers []health.Checker
	if store != nil {
		checkers = append(checkers, health.Checker{
			Name: "rules-db",
			Check: func(ctx context.Context) error {
				_, err := store.Count(ctx)
				return err
			},
		})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ops server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops server shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops server: %w", err)
	}
}
