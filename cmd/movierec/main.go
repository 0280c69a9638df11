// Package main is the movierec CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/movierec/internal/catalog"
	"github.com/hyperjump/movierec/internal/cli"
	"github.com/hyperjump/movierec/internal/config"
	"github.com/hyperjump/movierec/internal/embedding"
	"github.com/hyperjump/movierec/internal/embedstore"
	"github.com/hyperjump/movierec/internal/generator"
	"github.com/hyperjump/movierec/internal/models"
	"github.com/hyperjump/movierec/internal/recommend"
	"github.com/hyperjump/movierec/internal/server"
	"github.com/hyperjump/movierec/internal/storage"
	"github.com/hyperjump/movierec/internal/watcher"
	"github.com/hyperjump/movierec/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/movierec/config.yaml"
	envConfigPath     = "MOVIEREC_CONFIG"
	defaultInspectN   = 8
)

// configPathDefault returns $MOVIEREC_CONFIG when set, else the installed default.
func configPathDefault() string {
	if p := strings.TrimSpace(os.Getenv(envConfigPath)); p != "" {
		return p
	}
	return defaultConfigPath
}

// loadConfig loads config from path. When path is the installed default and a config.yaml exists
// in the current directory, that file is used instead so commands run from a project dir pick up
// the project's config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "import":
		runImport()
	case "generate":
		runGenerate()
	case "recommend":
		runRecommend()
	case "inspect":
		runInspect()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("movierec version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger and initializes components, exiting on failure.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger, components
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, path := range cfg.Catalog.Files {
		if _, err := components.ImportAndGenerate(ctx, path); err != nil {
			logger.Warn("catalog import failed", zap.String("path", path), zap.Error(err))
		}
	}

	if cfg.Catalog.Watch && len(cfg.Catalog.Files) > 0 {
		w, err := watcher.NewWatcher(cfg.Catalog.Files, func(path string) {
			_, err := components.ImportAndGenerate(ctx, path)
			switch {
			case errors.Is(err, generator.ErrRunInProgress):
				// The rows are imported; the next missing run embeds them.
				logger.Info("catalog reimported while a generation run is active", zap.String("path", path))
			case err != nil:
				logger.Warn("catalog reimport failed", zap.String("path", path), zap.Error(err))
			}
		}, watcher.WithLogger(logger))
		if err != nil {
			logger.Fatal("Failed to create watcher", zap.Error(err))
		}
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(
		components.Recommender,
		components.Generator,
		components.Importer,
		components.Store,
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	generate := fs.Bool("generate", false, "generate missing embeddings after the import")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: movierec import [flags] <catalog.json|csv|xlsx>")
		os.Exit(1)
	}
	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	res, err := components.Importer.ImportFile(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d of %d movies from %s (%d invalid)\n", res.Upserted, res.Read, res.Source, res.Invalid)
	for _, e := range res.Errors {
		fmt.Printf("  %s\n", e)
	}
	if *generate {
		report, err := components.Generator.Run(ctx, generator.ModeMissing)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Generation failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteReport(os.Stdout, report, cli.OutputText)
	}
}

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	missing := fs.Bool("missing", false, "only generate embeddings for movies that have none")
	workers := fs.Int("workers", 0, "concurrent provider calls (default from config)")
	showRandom := fs.Bool("show-random", false, "print a random movie's embedding after the run")
	title := fs.String("title", "", "print this movie's embedding after the run")
	n := fs.Int("n", defaultInspectN, "number of embedding values to print")
	outputFormat := fs.String("output", "text", "output format for the summary: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	opts := []generator.Option{
		generator.WithLogger(logger),
		generator.WithSkipEmpty(cfg.Generation.SkipEmptyOrDefault()),
		generator.WithWorkers(cfg.Generation.Workers),
	}
	if *workers > 0 {
		opts = append(opts, generator.WithWorkers(*workers))
	}
	if format == cli.OutputText {
		opts = append(opts, generator.WithProgress(func(res generator.ItemResult) {
			cli.WriteProgress(os.Stdout, res)
		}))
	}
	gen := generator.New(components.Storage, components.Store, components.Embedders.Batch, opts...)

	mode := generator.ModeAll
	if *missing {
		mode = generator.ModeMissing
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	report, err := gen.Run(ctx, mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generation failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}

	if *showRandom || *title != "" {
		t := inspectTarget{Title: *title, Random: *title == ""}
		if err := printEmbedding(context.Background(), os.Stdout, components, t, *n); err != nil {
			fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
			os.Exit(1)
		}
	}
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. The flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use the local store directly)")
	top := fs.Int("top", 0, "number of recommendations (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: movierec recommend [flags] <description>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var rec *recommend.Recommendation
	if *serverURL != "" {
		rec, err = recommendViaHTTP(*serverURL, query, *top)
	} else {
		_, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		rec, err = components.Recommender.RecommendTopK(context.Background(), query, *top)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendation(os.Stdout, rec, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func recommendViaHTTP(serverURL, query string, topK int) (*recommend.Recommendation, error) {
	body, err := json.Marshal(map[string]interface{}{"query": query, "top_k": topK})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/recommend", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var rec recommend.Recommendation
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &rec, nil
}

// inspectTarget selects the movie whose embedding is printed.
type inspectTarget struct {
	ID     string
	Title  string
	Random bool
}

func (t inspectTarget) resolve(ctx context.Context, s storage.Storage) (*models.Movie, error) {
	switch {
	case t.ID != "":
		return s.GetMovie(ctx, t.ID)
	case t.Title != "":
		return s.FindByTitle(ctx, t.Title)
	case t.Random:
		return s.RandomEmbeddedMovie(ctx)
	default:
		return nil, fmt.Errorf("one of --id, --title or --random is required")
	}
}

func printEmbedding(ctx context.Context, w io.Writer, c *Components, t inspectTarget, n int) error {
	m, err := t.resolve(ctx, c.Storage)
	if err != nil {
		return err
	}
	emb, err := c.Store.Get(ctx, m.ID)
	if err != nil {
		return err
	}
	vec, ok := emb.Vector()
	if !ok {
		return fmt.Errorf("movie %q has no embedding", m.Title)
	}
	cli.WriteEmbedding(w, m.Title, m.ID, vec, n)
	return nil
}

func runInspect() {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	id := fs.String("id", "", "movie id")
	title := fs.String("title", "", "movie title (case-insensitive)")
	random := fs.Bool("random", false, "pick a random movie with an embedding")
	n := fs.Int("n", defaultInspectN, "number of embedding values to print (0 = all)")
	_ = fs.Parse(os.Args[2:])

	_, _, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	t := inspectTarget{ID: *id, Title: *title, Random: *random}
	if err := printEmbedding(context.Background(), os.Stdout, components, t, *n); err != nil {
		fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
		os.Exit(1)
	}
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	Provider      string `json:"provider"`
	Model         string `json:"model,omitempty"`
	Dimensions    int    `json:"dimensions"`
	StorageDriver string `json:"storage_driver"`
	DatabasePath  string `json:"database_path,omitempty"`
	Workers       int    `json:"workers"`
	TopK          int    `json:"top_k"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Movies            int64                 `json:"movies"`
	Embeddings        int64                 `json:"embeddings"`
	MissingEmbeddings int64                 `json:"missing_embeddings"`
	DiskUsageBytes    *int64                `json:"disk_usage_bytes,omitempty"`
	Config            *statusConfigResponse `json:"config,omitempty"`
}

func localStatus(ctx context.Context, cfg *config.Config, c *Components) (*statusResponse, error) {
	counts, err := c.Store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	status := &statusResponse{
		Movies:            counts.Movies,
		Embeddings:        counts.Embeddings,
		MissingEmbeddings: counts.Missing(),
		Config: &statusConfigResponse{
			Provider:      cfg.Provider.Type,
			Model:         cfg.Provider.Model,
			Dimensions:    cfg.Provider.Dimensions,
			StorageDriver: cfg.Storage.Driver,
			DatabasePath:  cfg.Storage.DatabasePath,
			Workers:       cfg.Generation.Workers,
			TopK:          cfg.Recommend.TopK,
		},
	}
	if size, err := c.Storage.SizeBytes(); err == nil {
		status.DiskUsageBytes = &size
	}
	return status, nil
}

func writeStatus(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "movies:             %d   # catalog size\n", status.Movies)
	fmt.Fprintf(w, "embeddings:         %d   # movies with a stored embedding\n", status.Embeddings)
	fmt.Fprintf(w, "missing_embeddings: %d\n", status.MissingEmbeddings)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database files on disk\n", *status.DiskUsageBytes)
	}
	if status.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "provider:           %s\n", status.Config.Provider)
		if status.Config.Model != "" {
			fmt.Fprintf(w, "model:              %s\n", status.Config.Model)
		}
		fmt.Fprintf(w, "dimensions:         %d\n", status.Config.Dimensions)
		fmt.Fprintf(w, "storage_driver:     %s\n", status.Config.StorageDriver)
		if status.Config.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", status.Config.DatabasePath)
		}
		fmt.Fprintf(w, "workers:            %d\n", status.Config.Workers)
		fmt.Fprintf(w, "top_k:              %d\n", status.Config.TopK)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path (for direct storage mode)")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *statusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		cfg, _, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		status, err = localStatus(context.Background(), cfg, components)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	writeStatus(os.Stdout, status)
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Storage     storage.Storage
	Embedders   *embedding.Chain
	Store       *embedstore.Store
	Generator   *generator.Generator
	Recommender *recommend.Service
	Importer    *catalog.Importer
	logger      *zap.Logger
}

// Close releases the store and the provider.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedders != nil {
		_ = c.Embedders.Close()
	}
}

// ImportAndGenerate imports the catalog at path and generates embeddings for new or changed movies.
func (c *Components) ImportAndGenerate(ctx context.Context, path string) (*generator.Report, error) {
	res, err := c.Importer.ImportFile(ctx, path)
	if err != nil {
		return nil, err
	}
	c.logger.Info("catalog imported",
		zap.String("path", path),
		zap.Int("upserted", res.Upserted),
		zap.Int("invalid", res.Invalid))
	return c.Generator.Run(ctx, generator.ModeMissing)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := storage.NewSQLiteStorage(cfg.Storage.Driver, cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	embedders, err := embedding.New(&cfg.Provider, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	store := embedstore.New(db, cfg.Provider.Dimensions, embedstore.WithLogger(logger))
	gen := generator.New(db, store, embedders.Batch,
		generator.WithLogger(logger),
		generator.WithWorkers(cfg.Generation.Workers),
		generator.WithSkipEmpty(cfg.Generation.SkipEmptyOrDefault()),
	)
	rec := recommend.New(db, store, embedders.Query,
		recommend.WithLogger(logger),
		recommend.WithTopK(cfg.Recommend.TopK),
	)
	return &Components{
		Storage:     db,
		Embedders:   embedders,
		Store:       store,
		Generator:   gen,
		Recommender: rec,
		Importer:    catalog.NewImporter(db, catalog.WithLogger(logger)),
		logger:      logger,
	}, nil
}

func printUsage() {
	fmt.Println(`movierec - Movie recommendations by description similarity

Usage:
  movierec server [flags]               Start the HTTP server
  movierec import [flags] <file>        Import a JSON, CSV or XLSX movie catalog
  movierec generate [flags]             Generate embeddings for the catalog
  movierec recommend [flags] <text>     Recommend movies for a description
  movierec inspect [flags]              Print a stored embedding
  movierec status [flags]               Show catalog and embedding counts
  movierec version                      Show version
  movierec help                         Show this help

Config:
  Every command accepts --config (default: $MOVIEREC_CONFIG, else
  /usr/local/etc/movierec/config.yaml, else ./config.yaml).

Server Flags:
  --debug            Enable debug logging

Import Flags:
  --generate         Generate missing embeddings after the import

Generate Flags:
  --missing          Only movies without an embedding
  --workers int      Concurrent provider calls (default from config)
  --show-random      Print a random movie's embedding after the run
  --title string     Print this movie's embedding after the run
  --n int            Number of embedding values to print (default: 8)
  --output string    Summary format: text or json (default: text)

Recommend Flags:
  --top int          Number of recommendations (default from config, 3)
  --server string    Server URL; empty uses the local store directly
  --output string    Output format: text or json (default: text)

Inspect Flags:
  --id string        Movie id
  --title string     Movie title (case-insensitive)
  --random           A random movie with an embedding
  --n int            Number of values to print (default: 8, 0 = all)

Status Flags:
  --server string    Server URL; empty uses the local store directly
  --output string    Output format: text or json (default: text)

Examples:
  movierec import movies.xlsx
  movierec generate --missing --workers 8
  movierec generate --show-random --n 5
  movierec recommend "a heist that goes wrong in Los Angeles"
  movierec recommend --top 5 --output json "space horror"
  movierec inspect --title "Alien"
  movierec status --output json`)
}
