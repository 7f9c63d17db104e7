// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/poiesic/lectio"
	"github.com/poiesic/lectio/config"
	"github.com/poiesic/lectio/corpus"
	"github.com/poiesic/lectio/httpapi"
	"github.com/poiesic/lectio/reembed"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lectio",
		Usage: "Semantic verse retrieval with reranking and entity enrichment",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"LECTIO_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to a BadgerDB directory (overrides the configured store)",
			},
			&cli.StringFlag{
				Name:  "dsn",
				Usage: "Postgres connection string (overrides the configured store)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Retrieve the verses most relevant to a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results (defaults to retrieval.top_k)",
					},
					&cli.IntFlag{
						Name:  "context-radius",
						Usage: "Neighbouring verses to attach on each side (defaults to retrieval.context_radius)",
						Value: -1,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print results as JSON",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the retrieval HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults to server.addr)",
					},
				},
			},
			{
				Name:   "seed",
				Usage:  "Load a verse corpus into the store and embed it",
				Action: seedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Path to a corpus JSON file",
					},
					&cli.BoolFlag{
						Name:  "sample",
						Usage: "Load the built-in sample corpus",
					},
					&cli.BoolFlag{
						Name:  "skip-embed",
						Usage: "Load units without computing embeddings",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Recompute embeddings for every unit in the store",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of units to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N units",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.StringFlag{
						Name:  "model-version",
						Usage: "Model version recorded with each embedding (defaults to ai.embedding_model)",
					},
				},
			},
			{
				Name:   "health",
				Usage:  "Report the state of each retrieval dependency",
				Action: healthCommand,
			},
			{
				Name:   "config",
				Usage:  "Print the effective configuration as TOML",
				Action: configCommand,
			},
		},
	}
}

// loadConfig applies the global store overrides on top of config.Load.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Store = config.StoreConfig{Backend: config.BackendBadger, Path: db}
	}
	if dsn := c.String("dsn"); dsn != "" {
		if c.String("db") != "" {
			return nil, fmt.Errorf("--db and --dsn cannot be used together")
		}
		cfg.Store = config.StoreConfig{Backend: config.BackendPostgres, DSN: dsn}
	}
	return cfg, nil
}

func openEngine(c *cli.Context) (*lectio.Engine, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	engine, err := lectio.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, cfg, nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	topK := cfg.Retrieval.TopK
	if c.Int("top-k") != 0 {
		topK = c.Int("top-k")
	}
	if radius := c.Int("context-radius"); radius >= 0 {
		cfg.Retrieval.ContextRadius = radius
	}

	engine, err := lectio.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	results, err := engine.Retrieve(c.Context, query, topK)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if c.Bool("json") {
		data, err := sonic.Marshal(results)
		if err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. unit %d  relevance=%.3f  cosine=%.3f\n", i+1, r.UnitID, r.RelevanceScore, r.Cosine)
		if len(r.ContextWindow) > 0 {
			fmt.Fprintf(out, "   context: %v\n", r.ContextWindow)
		}
		if len(r.EnrichedMetadata.Entities) > 0 {
			fmt.Fprintf(out, "   entities: %s\n", strings.Join(r.EnrichedMetadata.Entities, ", "))
		}
		if len(r.EnrichedMetadata.CrossLanguageHints) > 0 {
			fmt.Fprintf(out, "   hints: %s\n", strings.Join(r.EnrichedMetadata.CrossLanguageHints, ", "))
		}
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	engine, cfg, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	addr := cfg.Server.Addr
	if c.String("addr") != "" {
		addr = c.String("addr")
	}

	logger := slog.Default()
	router := httpapi.NewRouter(engine,
		httpapi.WithLogger(logger),
		httpapi.WithDefaultTopK(cfg.Retrieval.TopK),
	)
	server := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            addr,
		ReadTimeout:     cfg.Server.ReadTimeout.Duration,
		WriteTimeout:    cfg.Server.WriteTimeout.Duration,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration,
	}, router, logger)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}

func seedCommand(c *cli.Context) error {
	ctx := c.Context

	var (
		data *corpus.Corpus
		err  error
	)
	switch {
	case c.Bool("sample") && c.String("file") != "":
		return fmt.Errorf("--file and --sample cannot be used together")
	case c.Bool("sample"):
		data, err = corpus.Sample()
	case c.String("file") != "":
		data, err = readCorpus(c.String("file"))
	default:
		return fmt.Errorf("one of --file or --sample is required")
	}
	if err != nil {
		return err
	}

	engine, cfg, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.LoadCorpus(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Loaded %d units, %d words, %d entities, %d links\n",
		stats.Units, stats.Words, stats.Entities, stats.Links)

	if c.Bool("skip-embed") {
		return nil
	}

	reembedConfig := reembed.DefaultConfig()
	reembedConfig.ModelVersion = cfg.AI.EmbeddingModel
	reembedConfig.Dimensions = cfg.AI.Dimensions

	reembedder, err := engine.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}
	if _, err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	return nil
}

func readCorpus(path string) (*corpus.Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()
	return corpus.Decode(f)
}

func reembedCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		ModelVersion:   c.String("model-version"),
		Dimensions:     cfg.AI.Dimensions,
	}
	if reembedConfig.ModelVersion == "" {
		reembedConfig.ModelVersion = cfg.AI.EmbeddingModel
	}
	if err := reembedConfig.Validate(); err != nil {
		return err
	}

	engine, err := lectio.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	defer engine.Close()

	reembedder, err := engine.NewReembedder(reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Store: %s\n", describeStore(cfg))
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func healthCommand(c *cli.Context) error {
	engine, _, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	data, err := sonic.Marshal(engine.Health(ctx))
	if err != nil {
		return fmt.Errorf("failed to encode health: %w", err)
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}

func configCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	return cfg.Encode(c.App.Writer)
}

func describeStore(cfg *config.Config) string {
	switch {
	case cfg.Offline():
		return "none"
	case cfg.Store.Backend == config.BackendBadger:
		return "badger " + cfg.Store.Path
	default:
		return "postgres"
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
