// Package main is the Seiri CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/hyperjump/seiri/internal/cli"
	"github.com/hyperjump/seiri/internal/config"
	"github.com/hyperjump/seiri/internal/embedding"
	"github.com/hyperjump/seiri/internal/export"
	"github.com/hyperjump/seiri/internal/models"
	"github.com/hyperjump/seiri/internal/refine"
	"github.com/hyperjump/seiri/internal/server"
	"github.com/hyperjump/seiri/internal/storage"
	"github.com/hyperjump/seiri/internal/table"
	"github.com/hyperjump/seiri/internal/watcher"
	"github.com/hyperjump/seiri/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/seiri/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present, and a missing default file means built-in defaults.
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
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "", nil
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
	case "refine":
		runRefine()
	case "columns":
		runColumns()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("seiri version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by every command.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, string) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if debug {
		cfg.Debug = true
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, resolved
}

// newEmbedder defers model loading until the first refinement needs it.
func newEmbedder(cfg *config.Config, logger *zap.Logger) *embedding.Lazy {
	embCfg := cfg.Embedding
	return embedding.NewLazy(func(ctx context.Context) (embedding.Embedder, error) {
		return embedding.NewFromConfig(&embCfg, logger)
	})
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (grouping decisions, requests, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolvedConfigPath := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug),
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	embedder := newEmbedder(cfg, logger)
	defer embedder.Close()

	refiner := refine.New(embedder, cfg.Refine, logger)
	srv := server.NewServer(refiner, embedder, store, cfg, logger)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

// argsReorder moves flags that follow the positional arguments to the front, so
// "seiri refine data.xlsx --column City" parses like "seiri refine --column City data.xlsx".
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

type refineOptions struct {
	Column    string
	Threshold float64
	Strategy  string
	Output    string
	Full      bool
	Format    cli.OutputFormat
}

func runRefine() {
	fs := flag.NewFlagSet("refine", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	column := fs.String("column", "", "column to refine (required)")
	threshold := fs.Float64("threshold", 0, "similarity threshold (default from config, or 0.75)")
	strategy := fs.String("strategy", "", "grouping strategy: greedy or components (default from config)")
	output := fs.String("output", "", "write the refined table to this .csv or .xlsx file")
	full := fs.Bool("full", false, "export every column, not just the original and processed ones")
	format := fs.String("format", "text", "report format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: seiri refine --column <name> [flags] <file>")
		os.Exit(1)
	}
	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	embedder := newEmbedder(cfg, logger)
	defer embedder.Close()
	refiner := refine.New(embedder, cfg.Refine, logger)

	opts := refineOptions{
		Column:    *column,
		Threshold: *threshold,
		Strategy:  *strategy,
		Output:    *output,
		Full:      *full,
		Format:    outFormat,
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := refineFile(ctx, refiner, fs.Arg(0), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Refine failed: %v\n", err)
		os.Exit(1)
	}
}

// refineFile refines one column of the spreadsheet at path, optionally writes the
// refined table to opts.Output, and reports the result to w.
func refineFile(ctx context.Context, refiner *refine.Refiner, path string, opts refineOptions, w io.Writer) error {
	tbl, err := table.LoadFile(path)
	if err != nil {
		return err
	}
	ref, err := refiner.Refine(ctx, tbl, models.RefineRequest{
		Column:    opts.Column,
		Threshold: opts.Threshold,
		Strategy:  opts.Strategy,
	})
	if err != nil {
		return err
	}
	if opts.Output != "" {
		if err := writeExport(tbl, ref, opts.Output, opts.Full); err != nil {
			return err
		}
	}
	return cli.WriteRefinement(w, ref, opts.Output, opts.Format)
}

func writeExport(tbl *table.Table, ref *models.Refinement, path string, full bool) error {
	f, err := export.ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	sheet, err := export.FromRefinement(tbl, ref, full)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, sheet, f); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func runColumns() {
	fs := flag.NewFlagSet("columns", flag.ExitOnError)
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: seiri columns [flags] <file>")
		os.Exit(1)
	}
	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := listColumns(fs.Arg(0), outFormat, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Columns failed: %v\n", err)
		os.Exit(1)
	}
}

func listColumns(path string, format cli.OutputFormat, w io.Writer) error {
	tbl, err := table.LoadFile(path)
	if err != nil {
		return err
	}
	return cli.WriteColumns(w, tbl.Columns, format)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	column := fs.String("column", "", "column to refine (default from config watch.column)")
	threshold := fs.Float64("threshold", 0, "similarity threshold (default from config)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	watchCfg := cfg.Watch
	if *column != "" {
		watchCfg.Column = *column
	}
	if *threshold != 0 {
		watchCfg.Threshold = *threshold
	}
	if fs.NArg() > 0 {
		watchCfg.Directories = fs.Args()
	}

	embedder := newEmbedder(cfg, logger)
	defer embedder.Close()
	refiner := refine.New(embedder, cfg.Refine, logger)

	inbox := watcher.NewInbox(refiner, watchCfg, logger, watcher.OnProcessed(func(src, out string, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", src, err)
			return
		}
		fmt.Printf("%s -> %s\n", src, out)
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if err := inbox.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
		os.Exit(1)
	}
}

// statusResponse mirrors the /api/v1/status payload.
type statusResponse struct {
	Status         models.Status          `json:"status"`
	Config         map[string]interface{} `json:"config,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	res, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, &res.Status, outFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if outFormat == cli.OutputText && res.DiskUsageBytes != nil {
		fmt.Printf("Disk usage:   %d bytes\n", *res.DiskUsageBytes)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(strings.TrimSuffix(serverURL, "/") + "/api/v1/status")
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

func printUsage() {
	fmt.Println(`seiri - Semantic deduplication for spreadsheet columns

Usage:
  seiri server [flags]                   Start the HTTP server
  seiri refine [flags] <file>            Group similar values in a column and report the mapping
  seiri columns [flags] <file>           List the columns of a spreadsheet
  seiri watch [flags] [directory...]     Refine every spreadsheet dropped into the inbox directories
  seiri status [flags]                   Show server status
  seiri version                          Show version
  seiri help                             Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/seiri/config.yaml)
  --debug            Enable debug logging

Refine Flags:
  --column string       Column to refine (required)
  --threshold float     Similarity threshold; values must score strictly above it to merge (default from config, or 0.75)
  --strategy string     Grouping strategy: greedy or components (default from config, or greedy)
  --output string       Write the refined table to a .csv or .xlsx file
  --full                Export every column with the processed column next to the original
  --format string       Report format: text or json (default: text)
  --config string       Config file path
  --debug               Enable debug logging

Columns Flags:
  --format string    Output format: text or json (default: text)

Watch Flags:
  --column string       Column to refine (default from config watch.column)
  --threshold float     Similarity threshold (default from config)
  --config string       Config file path

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --format string    Output format: text or json (default: text)

Examples:
  seiri server
  seiri columns cities.xlsx
  seiri refine --column City cities.xlsx
  seiri refine cities.csv --column City --threshold 0.8 --output refined.xlsx
  seiri refine --column City --format json cities.ods
  seiri watch --column City ~/inbox
  seiri status --format json`)
}
