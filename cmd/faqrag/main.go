// Package main is the faqrag CLI entry point.
package main

import (
	"bufio"
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

	"github.com/hyperjump/faqrag/internal/cli"
	"github.com/hyperjump/faqrag/internal/config"
	"github.com/hyperjump/faqrag/internal/embedding"
	"github.com/hyperjump/faqrag/internal/indexer"
	"github.com/hyperjump/faqrag/internal/llm"
	"github.com/hyperjump/faqrag/internal/models"
	"github.com/hyperjump/faqrag/internal/rag"
	"github.com/hyperjump/faqrag/internal/search"
	"github.com/hyperjump/faqrag/internal/server"
	"github.com/hyperjump/faqrag/internal/storage"
	"github.com/hyperjump/faqrag/internal/vector"
	"github.com/hyperjump/faqrag/internal/watcher"
	"github.com/hyperjump/faqrag/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/faqrag/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present; when neither exists, defaults and the environment (including
// .env in the current directory) are used. Returns the config and the path actually loaded,
// empty when running on defaults.
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
			if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
				cfg, err := config.Default(cwd)
				if err != nil {
					return nil, "", err
				}
				return cfg, "", nil
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
	case "build":
		runBuild()
	case "ask":
		runAsk()
	case "retrieve":
		runRetrieve()
	case "server":
		runServer()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("faqrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// mustSetup loads and validates config and creates the logger, exiting on failure.
func mustSetup(configPath string, debug, withLLM bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	validate := cfg.ValidateIndexing
	if withLLM {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if resolved == "" {
		resolved = "(defaults)"
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger
}

func mustFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	source := fs.String("source", "", "knowledge file (.json, .jsonl, .yaml, .xlsx); default storage.knowledge_path")
	location := fs.String("index", "", "index location; default storage.index_path")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := mustFormat(*outputFormat)

	cfg, logger := mustSetup(*configPath, *debug, false)
	defer logger.Sync()
	if *source == "" {
		*source = cfg.Storage.KnowledgePath
	}
	if *location == "" {
		*location = cfg.Storage.IndexPath
	}

	ctx := context.Background()
	embedder, err := embedding.New(ctx, cfg.Embedding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize embedder: %v\n", err)
		os.Exit(1)
	}
	defer embedder.Close()
	store, err := vector.NewStore(cfg.Storage.IndexType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize index store: %v\n", err)
		os.Exit(1)
	}
	chunker, err := indexer.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlapOrDefault())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid chunking settings: %v\n", err)
		os.Exit(1)
	}
	builder := indexer.NewBuilder(chunker, embedder, store,
		indexer.WithLogger(logger),
		indexer.WithBatchSize(cfg.Embedding.BatchSize))

	report, err := builder.BuildFromFile(ctx, *source, *location)
	if err != nil {
		logger.Error("build failed", zap.String("error_kind", models.ErrorKind(err)), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Build failed (%s): %v\nThe previous index at %s was not modified.\n",
			models.ErrorKind(err), err, *location)
		os.Exit(1)
	}
	if err := cli.WriteBuildReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// buildQuery joins all positional args with spaces so multi-word queries work the same
// with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query to the
// front of the slice so that flag.Parse() sees them. Go's flag package stops at the
// first non-flag argument, so "faqrag ask \"query\" -k 3" would otherwise leave -k unparsed.
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

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = answer in-process)")
	k := fs.Int("k", 0, "number of segments to retrieve (default retrieval.top_k)")
	user := fs.String("user", "", "user name recorded in the dialog log")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := mustFormat(*outputFormat)
	query := buildQuery(fs.Args())

	var ask func(q string) (*models.Answer, error)
	if *serverURL != "" {
		ask = func(q string) (*models.Answer, error) {
			var ans models.Answer
			req := models.QueryRequest{Query: q, K: *k, Username: *user}
			if err := postJSON(*serverURL+"/api/v1/answer", req, &ans); err != nil {
				return nil, err
			}
			return &ans, nil
		}
	} else {
		cfg, logger := mustSetup(*configPath, *debug, true)
		defer logger.Sync()
		components, err := initializeComponents(context.Background(), cfg, logger, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ask = func(q string) (*models.Answer, error) {
			req := &models.QueryRequest{Query: q, K: *k, Username: *user}
			return components.Service.Ask(context.Background(), req, "cli"), nil
		}
	}

	if query != "" {
		ans, err := ask(query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, ans, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := runREPL(os.Stdin, os.Stdout, ask, format); err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
}

// isExitCommand reports whether line ends an interactive session.
func isExitCommand(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "выход":
		return true
	}
	return false
}

// runREPL reads questions line by line until EOF or an exit command.
func runREPL(in io.Reader, out io.Writer, ask func(string) (*models.Answer, error), format cli.OutputFormat) error {
	if format == cli.OutputText {
		fmt.Fprintln(out, "FAQ assistant. Type a question, or exit / quit / выход to leave.")
	}
	scanner := bufio.NewScanner(in)
	for {
		if format == cli.OutputText {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			if format == cli.OutputText {
				fmt.Fprintln(out)
			}
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isExitCommand(line) {
			return nil
		}
		ans, err := ask(line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := cli.WriteAnswer(out, ans, format); err != nil {
			return err
		}
	}
}

func runRetrieve() {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = search in-process)")
	k := fs.Int("k", 0, "number of segments (default retrieval.top_k)")
	withContext := fs.Bool("context", false, "print the assembled context sent to the model")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := mustFormat(*outputFormat)

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: faqrag retrieve [flags] <query>")
		os.Exit(1)
	}

	var response *models.RetrieveResponse
	if *serverURL != "" {
		body := map[string]interface{}{"query": query, "k": *k, "context": *withContext}
		response = &models.RetrieveResponse{}
		if err := postJSON(*serverURL+"/api/v1/retrieve", body, response); err != nil {
			fmt.Fprintf(os.Stderr, "Retrieve failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, logger := mustSetup(*configPath, *debug, false)
		defer logger.Sync()
		components, err := initializeComponents(context.Background(), cfg, logger, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		response, err = components.Engine.RetrieveRequest(context.Background(), &models.QueryRequest{Query: query, K: *k})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Retrieve failed (%s): %v\n", models.ErrorKind(err), err)
			os.Exit(1)
		}
		if *withContext {
			response.Context = rag.Assemble(response.Results)
		}
	}
	if err := cli.WriteRetrieval(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (index reloads, requests, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := mustSetup(*configPath, *debug, true)
	defer logger.Sync()

	components, err := initializeComponents(context.Background(), cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.ReloadIndexOrDefault() {
		engine := components.Engine
		watchSvc := watcher.NewWatcher(
			[]string{cfg.Storage.IndexPath},
			func(target string) {
				if err := engine.Reload(target); err != nil {
					logger.Warn("index reload failed, keeping current index",
						zap.String("location", target),
						zap.String("error_kind", models.ErrorKind(err)),
						zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(components.Service, components.Engine, components.Dialogs, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := mustFormat(*outputFormat)

	var status *models.Status
	if *serverURL != "" {
		status = &models.Status{}
		if err := getJSON(*serverURL+"/api/v1/status", status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		idx, err := vector.Open(cfg.Storage.IndexPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "No index at %s: %v\nRun \"faqrag build\" first.\n", cfg.Storage.IndexPath, err)
			os.Exit(1)
		}
		var dialogs storage.DialogLog
		if cfg.Storage.DialogDBPath != "" {
			if _, statErr := os.Stat(cfg.Storage.DialogDBPath); statErr == nil {
				d, err := storage.NewSQLiteDialogLog(cfg.Storage.DialogDBPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Failed to open dialog log: %v\n", err)
					os.Exit(1)
				}
				defer d.Close()
				dialogs = d
			}
		}
		status, err = server.CollectStatus(context.Background(), cfg, idx, cfg.Retrieval.TopK, dialogs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func postJSON(url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Components holds the serving pipeline.
type Components struct {
	Embedder embedding.Embedder
	LLM      llm.Client
	Engine   *search.Engine
	Service  *rag.Service
	Dialogs  storage.DialogLog
}

// Close releases all resources.
func (c *Components) Close() {
	if c.Dialogs != nil {
		_ = c.Dialogs.Close()
	}
	if c.LLM != nil {
		_ = c.LLM.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// initializeComponents loads the persisted index and wires the retriever. withLLM also
// creates the model client, the dialog log and the answer service.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, withLLM bool) (*Components, error) {
	idx, err := vector.Open(cfg.Storage.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load index (run \"faqrag build\" first): %w", err)
	}
	logger.Info("index loaded",
		zap.String("location", cfg.Storage.IndexPath),
		zap.String("backend", idx.Manifest().Backend),
		zap.String("generation", idx.Manifest().Generation),
		zap.Int("segments", idx.Size()))

	embedder, err := embedding.New(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c := &Components{Embedder: embedder}

	engine, err := search.NewEngine(embedder, idx, cfg.Retrieval.TopK, search.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Engine = engine
	if !withLLM {
		return c, nil
	}

	client, err := llm.New(ctx, cfg.LLM, rag.ExtractiveResponse)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}
	c.LLM = client

	if cfg.Storage.DialogDBPath != "" {
		dialogs, err := storage.NewSQLiteDialogLog(cfg.Storage.DialogDBPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open dialog log: %w", err)
		}
		c.Dialogs = dialogs
	}

	composer := rag.NewComposer(engine, client,
		rag.WithLogger(logger),
		rag.WithTimeout(cfg.LLM.Timeout),
		rag.WithDefaultK(cfg.Retrieval.TopK))
	c.Service = rag.NewService(composer, c.Dialogs, logger)
	return c, nil
}

func printUsage() {
	fmt.Println(`faqrag - FAQ assistant answering from a knowledge base

Usage:
  faqrag build [flags]              Build the index from the knowledge file
  faqrag ask [flags] [question]     Answer a question (interactive when no question is given)
  faqrag retrieve [flags] <query>   Show the segments retrieved for a query
  faqrag server [flags]             Start the HTTP server
  faqrag status [flags]             Show index and dialog log status
  faqrag version                    Show version
  faqrag help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/faqrag/config.yaml,
                     then ./config.yaml, then defaults and environment)
  --output string    Output format: text or json (default: text)
  --debug            Enable debug logging

Build Flags:
  --source string    Knowledge file: .json, .jsonl, .yaml or .xlsx (default: storage.knowledge_path)
  --index string     Index location (default: storage.index_path)

Ask / Retrieve Flags:
  --k int            Number of segments to retrieve (default: retrieval.top_k)
  --server string    Use a running server instead of loading the index in-process
  --user string      (ask) user name recorded in the dialog log
  --context          (retrieve) print the assembled model context

Environment:
  OPENAI_API_KEY, GEMINI_API_KEY, LLM_PROVIDER, EMBEDDING_PROVIDER,
  FAQRAG_INDEX_PATH, FAQRAG_KNOWLEDGE_PATH (also read from .env)

Examples:
  faqrag build --source data/raw_faq.json
  faqrag ask "Как вызвать курьера?"
  faqrag ask                                  # interactive; exit, quit or выход to leave
  faqrag retrieve --k 3 --context часы работы
  faqrag server
  faqrag status --output json`)
}
