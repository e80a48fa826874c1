// Package main is the kotae CLI entry point.
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
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence, and when neither exists the built-in defaults are used.
// Variables from a .env file and the environment are applied last. Returns the config and
// the path that was actually loaded, empty when running on defaults.
func loadConfig(path string) (*config.Config, string, error) {
	_ = godotenv.Load()

	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnv(cfg, os.Getenv)
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	if cwd, err := os.Getwd(); err == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			return cfg, fallback, loadErr
		}
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := &config.Config{}
		config.ApplyDefaults(cfg)
		return cfg, "", nil
	}
	cfg, err := config.Load(path)
	return cfg, path, err
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
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "search":
		runSearch()
	case "documents":
		runDocuments()
	case "history":
		runHistory()
	case "status":
		runStatus()
	case "reset":
		runReset()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// localEnv is everything a command needs to work on the local index directly.
type localEnv struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	components *Components
}

func (e *localEnv) Close() {
	if e.components != nil {
		e.components.Close()
	}
	_ = e.logger.Sync()
}

// openLocal loads config, builds the logger and restores the session, exiting on failure.
// Outside of server mode, logging stays quiet unless debug is on.
func openLocal(configPath string, debug, serverMode bool) *localEnv {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger := zap.NewNop()
	if debugMode || serverMode {
		logger, err = utils.NewLogger(debugMode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
	}
	logger.Info("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return &localEnv{cfg: cfg, configPath: resolved, logger: logger, components: components}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	env := openLocal(*configPath, *debug, true)
	defer env.Close()
	cfg, logger, sess := env.cfg, env.logger, env.components.Session

	watchSvc := watcher.New(sess,
		watcher.WithLogger(logger),
		watcher.WithDirectories(cfg.Watch.Directories),
		watcher.WithExtensions(cfg.Watch.Extensions),
		watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(sess, logger, watchSvc, env.configPath)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	if err := sess.Save(); err != nil {
		logger.Warn("index save failed", zap.String("path", cfg.Storage.IndexPath), zap.Error(err))
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; when set, files are uploaded to the running server")
	showProgress := fs.Bool("progress", true, "show a progress bar")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae ingest [flags] <file|dir|glob>...\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}

	if *serverURL != "" {
		ingestViaHTTP(newAPIClient(*serverURL), fs.Args(), *showProgress)
		return
	}

	env := openLocal(*configPath, *debug, false)
	defer env.Close()

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if !*showProgress {
			return
		}
		if bar == nil {
			bar = newProgressBar(total)
		}
		_ = bar.Set(done)
	}
	summary, err := env.components.Session.IngestPaths(context.Background(), fs.Args(), progress)
	if bar != nil {
		_ = bar.Finish()
	}
	if summary != nil {
		printIngestSummary(summary)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	if len(summary.Failed) > 0 {
		os.Exit(1)
	}
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("ingesting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
	)
}

func ingestViaHTTP(client *apiClient, patterns []string, showProgress bool) {
	paths, err := ingest.ExpandPaths(patterns, func(p string) bool { return ingest.PathAllowed(p, nil) })
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = newProgressBar(len(paths))
	}
	summary := &ingest.Summary{Failed: make(map[string]error)}
	for _, p := range paths {
		doc, err := client.Upload(p)
		var apiErr *apiError
		switch {
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
			summary.Skipped = append(summary.Skipped, p)
		case err != nil:
			summary.Failed[p] = err
		default:
			summary.Ingested = append(summary.Ingested, doc)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	printIngestSummary(summary)
	if len(summary.Failed) > 0 {
		os.Exit(1)
	}
}

func printIngestSummary(s *ingest.Summary) {
	fmt.Println()
	for _, doc := range s.Ingested {
		fmt.Printf("ingested  %s (%d chunks)\n", doc.Name, doc.Chunks)
	}
	for _, p := range s.Skipped {
		fmt.Printf("skipped   %s (already ingested)\n", p)
	}
	failed := make([]string, 0, len(s.Failed))
	for p := range s.Failed {
		failed = append(failed, p)
	}
	sort.Strings(failed)
	for _, p := range failed {
		fmt.Printf("failed    %s: %v\n", p, s.Failed[p])
	}
	fmt.Printf("\n%d ingested, %d skipped, %d failed\n", len(s.Ingested), len(s.Skipped), len(s.Failed))
}

// queryFlags are shared by ask and search.
type queryFlags struct {
	configPath *string
	serverURL  *string
	k          *int
	output     *string
	debug      *bool
}

func newQueryFlagSet(name, usage string) (*flag.FlagSet, *queryFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	qf := &queryFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		serverURL:  fs.String("server", "", "server URL (empty = use the local index directly)"),
		k:          fs.Int("k", 0, "number of chunks to retrieve (0 = configured default)"),
		output:     fs.String("output", "text", "output format: text or json"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kotae %s [flags] %s\n\n", name, usage)
		fmt.Fprintf(fs.Output(), "Remaining arguments are joined by spaces, so quoting is optional.\n\n")
		fs.PrintDefaults()
	}
	return fs, qf
}

// parseQuery parses flags (which may follow the text) and returns the joined text.
func parseQuery(fs *flag.FlagSet, qf *queryFlags) (string, cli.OutputFormat) {
	_ = fs.Parse(reorderArgs(os.Args[2:]))
	text := buildQuery(fs.Args())
	if text == "" {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*qf.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return text, format
}

func runAsk() {
	fs, qf := newQueryFlagSet("ask", "<question>")
	question, format := parseQuery(fs, qf)

	var resp *models.AskResponse
	if *qf.serverURL != "" {
		var err error
		resp, err = newAPIClient(*qf.serverURL).Ask(question, *qf.k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		env := openLocal(*qf.configPath, *qf.debug, false)
		defer env.Close()
		start := time.Now()
		ex, err := env.components.Session.Ask(context.Background(), question, *qf.k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		resp = &models.AskResponse{
			Question:   ex.Question,
			Answer:     ex.Answer,
			Degraded:   ex.Degraded,
			ExchangeID: ex.ID,
			QueryTime:  time.Since(start).Milliseconds(),
		}
	}
	if err := cli.WriteAnswer(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSearch() {
	fs, qf := newQueryFlagSet("search", "<query>")
	query, format := parseQuery(fs, qf)

	var resp *models.SearchResponse
	if *qf.serverURL != "" {
		var err error
		resp, err = newAPIClient(*qf.serverURL).Search(query, *qf.k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		env := openLocal(*qf.configPath, *qf.debug, false)
		defer env.Close()
		start := time.Now()
		hits, err := env.components.Session.Search(context.Background(), query, *qf.k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		resp = &models.SearchResponse{
			Query:     query,
			Hits:      hits,
			Total:     len(hits),
			QueryTime: time.Since(start).Milliseconds(),
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// newReadFlagSet returns the flags shared by the read-only listing commands.
func newReadFlagSet(name string) (*flag.FlagSet, *string, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use the local index directly)")
	output := fs.String("output", "text", "output format: text or json")
	return fs, configPath, serverURL, output
}

func mustFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runDocuments() {
	fs, configPath, serverURL, output := newReadFlagSet("documents")
	_ = fs.Parse(os.Args[2:])
	format := mustFormat(*output)

	var docs []*models.Document
	var err error
	if *serverURL != "" {
		docs, err = newAPIClient(*serverURL).Documents()
	} else {
		env := openLocal(*configPath, false, false)
		defer env.Close()
		docs, err = env.components.Session.Documents(context.Background())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Documents failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteDocuments(os.Stdout, docs, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runHistory() {
	fs, configPath, serverURL, output := newReadFlagSet("history")
	limit := fs.Int("limit", 0, "show only the most recent exchanges (0 = all)")
	_ = fs.Parse(os.Args[2:])
	format := mustFormat(*output)

	var exchanges []*models.Exchange
	var err error
	if *serverURL != "" {
		exchanges, err = newAPIClient(*serverURL).History(*limit)
	} else {
		env := openLocal(*configPath, false, false)
		defer env.Close()
		exchanges, err = env.components.Session.History(context.Background(), *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteHistory(os.Stdout, exchanges, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs, configPath, serverURL, output := newReadFlagSet("status")
	_ = fs.Parse(os.Args[2:])
	format := mustFormat(*output)

	var st *models.Status
	var err error
	if *serverURL != "" {
		st, err = newAPIClient(*serverURL).Status()
	} else {
		env := openLocal(*configPath, false, false)
		defer env.Close()
		st, err = env.components.Session.Stats(context.Background())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runReset() {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = reset the local index directly)")
	yes := fs.Bool("yes", false, "confirm removal of all documents, chunks and history")
	_ = fs.Parse(os.Args[2:])
	if !*yes {
		fmt.Fprintln(os.Stderr, "reset removes every document, chunk and exchange; rerun with --yes to confirm")
		os.Exit(1)
	}

	var err error
	if *serverURL != "" {
		err = newAPIClient(*serverURL).Reset()
	} else {
		env := openLocal(*configPath, false, false)
		defer env.Close()
		err = env.components.Session.Reset(context.Background())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("All documents and history cleared.")
}

func runWatch() {
	if len(os.Args) < 3 {
		printWatchUsage()
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch "+sub, flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	noSync := fs.Bool("no-sync", false, "on add, do not ingest files already in the directory")
	_ = fs.Parse(reorderArgs(os.Args[3:]))
	client := newAPIClient(*serverURL)

	switch sub {
	case "list":
		dirs, err := client.WatchList()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Watch list failed: %v\n", err)
			os.Exit(1)
		}
		if len(dirs) == 0 {
			fmt.Println("No watched directories.")
			return
		}
		for _, d := range dirs {
			fmt.Println(d)
		}
	case "add", "remove":
		if fs.NArg() != 1 {
			printWatchUsage()
			os.Exit(1)
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid path: %v\n", err)
			os.Exit(1)
		}
		if sub == "add" {
			err = client.WatchAdd(path, !*noSync)
		} else {
			err = client.WatchRemove(path)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Watch %s failed: %v\n", sub, err)
			os.Exit(1)
		}
		fmt.Printf("Watch directory %s: %s\n", map[string]string{"add": "added", "remove": "removed"}[sub], path)
	default:
		fmt.Printf("Unknown watch command: %s\n", sub)
		printWatchUsage()
		os.Exit(1)
	}
}

func printWatchUsage() {
	fmt.Println(`Usage: kotae watch <add|remove|list> [flags] [path]

  kotae watch list
  kotae watch add /path/to/docs [--no-sync]
  kotae watch remove /path/to/docs

Flags:
  --server string    Server URL (default: http://localhost:8080)`)
}

// buildQuery joins all positional args with spaces so multi-word questions work the
// same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves flags (and their values) that appear after the positional arguments
// to the front so that flag.Parse sees them. Go's flag package stops at the first
// non-flag argument, so "kotae ask what is this -k 8" would otherwise leave -k unparsed.
func reorderArgs(args []string) []string {
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

func printUsage() {
	fmt.Println(`kotae - Ask questions about your documents

Usage:
  kotae server [flags]                Start the HTTP server
  kotae ingest [flags] <path>...      Ingest files, directories or globs
  kotae ask [flags] <question>        Answer a question from the ingested documents
  kotae search [flags] <query>        Show the chunks closest to a query
  kotae documents [flags]             List ingested documents
  kotae history [flags]               Show previous questions and answers
  kotae status [flags]                Show catalog and index status
  kotae reset --yes [flags]           Remove all documents, chunks and history
  kotae watch <add|remove|list>       Manage watched directories
  kotae version                       Show version
  kotae help                          Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml,
                     or ./config.yaml when present)
  --server string    Server URL; when set, the command talks to a running server
                     instead of opening the local index
  --output string    Output format: text or json (default: text)

Ask/Search Flags:
  --k int            Number of chunks to retrieve (default from config)

Ingest Flags:
  --progress         Show a progress bar (default: true)

Environment:
  OPENAI_API_KEY, OPENAI_BASE_URL, KOTAE_EMBEDDING_PROVIDER and KOTAE_GENERATION_MODEL
  override the config file. A .env file in the current directory is loaded first.

Examples:
  kotae server
  kotae ingest ~/papers "docs/**/*.pdf"
  kotae ask what does the warranty cover
  kotae ask --k 8 --output json "summarize chapter two"
  kotae search --server http://localhost:8080 refund policy
  kotae history --limit 5
  kotae watch add /path/to/docs`)
}
