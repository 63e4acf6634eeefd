// Package main is the tutorly CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/tutorly/internal/answer"
	"github.com/hyperjump/tutorly/internal/auth"
	"github.com/hyperjump/tutorly/internal/cli"
	"github.com/hyperjump/tutorly/internal/config"
	"github.com/hyperjump/tutorly/internal/embedding"
	"github.com/hyperjump/tutorly/internal/extract"
	"github.com/hyperjump/tutorly/internal/ingest"
	"github.com/hyperjump/tutorly/internal/models"
	"github.com/hyperjump/tutorly/internal/rag"
	"github.com/hyperjump/tutorly/internal/retrieval"
	"github.com/hyperjump/tutorly/internal/server"
	"github.com/hyperjump/tutorly/internal/storage"
	"github.com/hyperjump/tutorly/internal/watcher"
	"github.com/hyperjump/tutorly/pkg/utils"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/tutorly/config.yaml"
	defaultServerURL  = "http://localhost:8080"
	tokenEnv          = "TUTORLY_TOKEN"
)

// loadConfig loads config from path. When path is the default and ./config.yaml exists,
// that file is used instead so the binary works from a project checkout.
// Returns the config and the path that was actually loaded.
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
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "list":
		runList()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("tutorly version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("retrieval_strategy", cfg.Retrieval.Strategy),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	authn, err := auth.NewAuthenticator(cfg.Auth)
	if err != nil {
		logger.Fatal("Failed to initialize authenticator", zap.Error(err))
	}

	if inbox := startInbox(ctx, cfg, components, logger); inbox != nil {
		defer inbox.Stop()
	}

	srv := server.NewServer(components.Pipeline, components.Ingester, components.Storage, authn, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// inboxHandler ingests inbox files on behalf of a single owner.
type inboxHandler struct {
	ingester *ingest.Ingester
	owner    string
}

func (h *inboxHandler) Ingest(ctx context.Context, path string) error {
	_, err := h.ingester.IngestPath(ctx, h.owner, path)
	return err
}

func (h *inboxHandler) Remove(ctx context.Context, path string) error {
	return h.ingester.RemovePath(ctx, h.owner, path)
}

// startInbox starts the inbox watcher when ingest.inbox_dir is configured. Returns nil otherwise.
func startInbox(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) *watcher.Inbox {
	if cfg.Ingest.InboxDir == "" {
		return nil
	}
	if cfg.Ingest.InboxOwner == "" {
		logger.Warn("ingest.inbox_dir is set without ingest.inbox_owner; inbox disabled")
		return nil
	}
	inbox := watcher.New(
		cfg.Ingest.InboxDir,
		c.Ingester.Supports,
		&inboxHandler{ingester: c.Ingester, owner: cfg.Ingest.InboxOwner},
		watcher.WithLogger(logger),
	)
	if err := inbox.Start(ctx); err != nil {
		logger.Warn("inbox watcher failed to start", zap.String("dir", cfg.Ingest.InboxDir), zap.Error(err))
		return nil
	}
	inbox.Sync()
	return inbox
}

// clientFlags are shared by the commands that can talk to a running server or work locally.
type clientFlags struct {
	configPath *string
	serverURL  *string
	token      *string
	user       *string
	output     *string
}

func addClientFlags(fs *flag.FlagSet) *clientFlags {
	return &clientFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path (local mode)"),
		serverURL:  fs.String("server", defaultServerURL, `server URL (empty = run locally against the configured storage)`),
		token:      fs.String("token", os.Getenv(tokenEnv), "bearer token for the server (default $"+tokenEnv+")"),
		user:       fs.String("user", "", "user ID to act as in local mode (default ingest.inbox_owner)"),
		output:     fs.String("output", "text", "output format: text or json"),
	}
}

func (f *clientFlags) format() cli.OutputFormat {
	format, err := cli.ParseOutputFormat(*f.output)
	if err != nil {
		fatalf("%v", err)
	}
	return format
}

func (f *clientFlags) remote() bool {
	return *f.serverURL != ""
}

func (f *clientFlags) client() *apiClient {
	if *f.token == "" {
		fatalf("A token is required to talk to the server; pass --token or set %s", tokenEnv)
	}
	return newAPIClient(*f.serverURL, *f.token)
}

// local loads config and builds components for local mode. The returned cleanup must be called.
func (f *clientFlags) local(ctx context.Context) (*config.Config, *Components, string, func()) {
	cfg, _, err := loadConfig(*f.configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	user := *f.user
	if user == "" {
		user = cfg.Ingest.InboxOwner
	}
	return cfg, components, user, func() {
		components.Close()
		_ = logger.Sync()
	}
}

// stringList is a repeatable flag that also accepts comma-separated values.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

// argsReorder moves flags that appear after positional arguments to the front so that
// flag.Parse sees them; the flag package stops at the first non-flag argument.
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

// buildQuestion joins positional args with spaces so questions work with or without quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: tutorly ask [flags] --doc <name> <question>\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  tutorly ask --doc manual.pdf How long is the warranty?
  tutorly ask --doc week1.pdf,week2.pdf "Summarize the key terms"
  tutorly ask --server "" --user u1 --doc notes.md --output json What is due Friday?
`)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	flags := addClientFlags(fs)
	var docs stringList
	fs.Var(&docs, "doc", "selected document name (repeatable or comma-separated)")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	req := &models.ChatRequest{Message: buildQuestion(fs.Args()), SelectedDocs: docs}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		printAskUsage(fs)
		os.Exit(1)
	}
	format := flags.format()
	ctx := context.Background()

	var resp *models.ChatResponse
	var err error
	if flags.remote() {
		resp, err = flags.client().Chat(ctx, req)
	} else {
		_, components, user, cleanup := flags.local(ctx)
		defer cleanup()
		if user == "" {
			fatalf("--user is required in local mode")
		}
		resp, err = components.Pipeline.Ask(ctx, user, req)
	}
	if err != nil {
		fatalf("Ask failed: %v", err)
	}
	if err := cli.WriteAnswer(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	flags := addClientFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fatalf("Usage: tutorly ingest [flags] <file-or-directory>...")
	}
	format := flags.format()
	ctx := context.Background()

	var ingested []cli.IngestSummary
	if flags.remote() {
		client := flags.client()
		for _, path := range fs.Args() {
			files, err := collectFiles(path)
			if err != nil {
				fatalf("Ingest failed: %v", err)
			}
			for _, file := range files {
				res, err := client.Upload(ctx, file)
				if err != nil {
					fatalf("Ingest %s failed: %v", file, err)
				}
				ingested = append(ingested, *res)
			}
		}
	} else {
		_, components, user, cleanup := flags.local(ctx)
		defer cleanup()
		if user == "" {
			fatalf("--user is required in local mode")
		}
		for _, path := range fs.Args() {
			results, err := ingestLocal(ctx, components.Ingester, user, path)
			if err != nil {
				fatalf("Ingest %s failed: %v", path, err)
			}
			for _, res := range results {
				ingested = append(ingested, cli.IngestSummary{ID: res.Resource.ID, Name: res.Resource.Name, Chunks: res.Chunks})
			}
		}
	}
	if err := cli.WriteIngest(os.Stdout, ingested, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// ingestLocal ingests a file or, for a directory, every supported file under it.
func ingestLocal(ctx context.Context, in *ingest.Ingester, user, path string) ([]*ingest.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return in.IngestDirectory(ctx, user, path)
	}
	res, err := in.IngestPath(ctx, user, path)
	if err != nil {
		return nil, err
	}
	return []*ingest.Result{res}, nil
}

// collectFiles returns path itself when it is a file, or every regular file under it when it is a directory.
// Remote ingestion uploads each of them; the server rejects unsupported types.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	flags := addClientFlags(fs)
	_ = fs.Parse(os.Args[2:])
	format := flags.format()
	ctx := context.Background()

	var list []cli.ResourceSummary
	var err error
	if flags.remote() {
		list, err = flags.client().Resources(ctx)
	} else {
		_, components, user, cleanup := flags.local(ctx)
		defer cleanup()
		if user == "" {
			fatalf("--user is required in local mode")
		}
		list, err = localResources(ctx, components.Storage, user)
	}
	if err != nil {
		fatalf("List failed: %v", err)
	}
	if err := cli.WriteResources(os.Stdout, list, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func localResources(ctx context.Context, store storage.Storage, user string) ([]cli.ResourceSummary, error) {
	resources, err := store.ListResources(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]cli.ResourceSummary, 0, len(resources))
	for _, r := range resources {
		n, err := store.CountChunksByResourceID(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, cli.ResourceSummary{ID: r.ID, Name: r.Name, Chunks: n, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	flags := addClientFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))
	if fs.NArg() < 1 {
		fatalf("Usage: tutorly delete [flags] <resource-id>")
	}
	id := fs.Arg(0)
	ctx := context.Background()

	var err error
	if flags.remote() {
		err = flags.client().Delete(ctx, id)
	} else {
		_, components, user, cleanup := flags.local(ctx)
		defer cleanup()
		if user == "" {
			fatalf("--user is required in local mode")
		}
		err = components.Ingester.DeleteResource(ctx, user, id)
	}
	if err != nil {
		fatalf("Deletion failed: %v", err)
	}
	fmt.Printf("Resource deleted: %s\n", id)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	flags := addClientFlags(fs)
	_ = fs.Parse(os.Args[2:])
	format := flags.format()
	ctx := context.Background()

	var status map[string]interface{}
	var err error
	if flags.remote() {
		status, err = flags.client().Status(ctx)
	} else {
		cfg, components, _, cleanup := flags.local(ctx)
		defer cleanup()
		// Without --user the local status covers the whole store.
		status, err = server.Status(ctx, components.Storage, cfg, components.Pipeline.Strategy(), *flags.user)
	}
	if err != nil {
		fatalf("Status failed: %v", err)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Blobs     *storage.BlobStore
	Embedder  embedding.Embedder
	Retriever retrieval.Retriever
	Answerer  answer.Answerer
	Ingester  *ingest.Ingester
	Pipeline  *rag.Pipeline

	// Postgres is the delegated retrieval database; nil for the in-process strategy.
	Postgres *pgxpool.Pool
}

func (c *Components) Close() {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	blobs, err := storage.NewBlobStore(cfg.Storage.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload store: %w", err)
	}
	c.Blobs = blobs

	embedder, err := embedding.NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	// The delegated strategy ranks chunks in Postgres, so ingestion mirrors them there.
	var db retrieval.Querier
	ingestOpts := []ingest.Option{ingest.WithLogger(logger)}
	if cfg.Retrieval.Strategy == config.StrategyDelegated {
		dsn, err := config.Secret(cfg.Retrieval.DatabaseURLEnv)
		if err != nil {
			return nil, fmt.Errorf("delegated retrieval: %w", err)
		}
		pool, err := storage.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to retrieval database: %w", err)
		}
		c.Postgres = pool
		db = pool
		mirror, err := storage.NewPostgresChunkStore(pool, cfg.Retrieval.ResourcesTable, cfg.Retrieval.ChunksTable)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chunk mirror: %w", err)
		}
		ingestOpts = append(ingestOpts, ingest.WithMirror(mirror))
	}

	retriever, err := retrieval.NewRetriever(cfg.Retrieval, store, db, embedder.Dimensions(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retriever: %w", err)
	}
	c.Retriever = retriever

	answerer, err := answer.NewAnswerer(cfg.Chat)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize answerer: %w", err)
	}
	c.Answerer = answerer

	chunker, err := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlapOrDefault())
	if err != nil {
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}
	c.Ingester = ingest.NewIngester(store, blobs, embedder, extract.NewExtractor(cfg.Ingest.Extensions), chunker,
		ingestOpts...)
	c.Pipeline = rag.NewPipeline(store, embedder, retriever, answerer,
		rag.WithTopK(cfg.Retrieval.TopK), rag.WithLogger(logger))

	logger.Debug("components initialized",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", embedder.Dimensions()),
		zap.String("retriever", retriever.Name()),
	)
	return c, nil
}

func printUsage() {
	fmt.Println(`tutorly - Chat with your documents

Usage:
  tutorly server [flags]                    Start the HTTP server
  tutorly ask [flags] --doc <name> <text>   Ask a question about selected documents
  tutorly ingest [flags] <file-or-dir>...   Ingest documents
  tutorly list [flags]                      List ingested documents
  tutorly delete [flags] <id>               Delete a document
  tutorly status [flags]                    Show storage and retrieval status
  tutorly version                           Show version
  tutorly help                              Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/tutorly/config.yaml)
  --debug            Enable debug logging

Client Flags (ask, ingest, list, delete, status):
  --server string    Server URL (default: http://localhost:8080). Use --server "" to run locally.
  --token string     Bearer token for the server (default: $TUTORLY_TOKEN)
  --config string    Config file path (local mode)
  --user string      User ID in local mode (default: ingest.inbox_owner)
  --output string    Output format: text or json (default: text)

Ask Flags:
  --doc string       Selected document name; repeat or comma-separate for several

Examples:
  tutorly server
  tutorly ingest ./manual.pdf
  tutorly ask --doc manual.pdf How long is the warranty?
  tutorly ask --output json --doc manual.pdf "warranty"
  tutorly ingest --server "" --user u1 ./course
  tutorly status --output json`)
}
