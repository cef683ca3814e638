package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hyperjump/seiri/internal/config"
	"github.com/hyperjump/seiri/internal/export"
	"github.com/hyperjump/seiri/internal/models"
	"github.com/hyperjump/seiri/internal/refine"
	"github.com/hyperjump/seiri/internal/table"
	"go.uber.org/zap"
)

// OutputSuffix is appended to the input base name for refined files.
const OutputSuffix = ".refined.csv"

// OutputPath returns where the refined version of path is written.
func OutputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + OutputSuffix
}

// IsOutput reports whether path is a refined file written by an Inbox.
func IsOutput(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), OutputSuffix)
}

// Inbox refines one column of every spreadsheet that lands in its directories.
type Inbox struct {
	refiner *refine.Refiner
	cfg     config.WatchConfig
	logger  *zap.Logger
	watcher *Watcher
	// mu runs one refinement at a time.
	mu sync.Mutex
	// processed is called after each file; tests use it to observe progress.
	processed func(src, out string, err error)

	ctxMu  sync.RWMutex
	runCtx context.Context
}

// InboxOption configures an Inbox.
type InboxOption func(*Inbox)

// OnProcessed sets a callback run after each file with the output path or error.
func OnProcessed(fn func(src, out string, err error)) InboxOption {
	return func(i *Inbox) { i.processed = fn }
}

// NewInbox creates an inbox over cfg.Directories.
func NewInbox(refiner *refine.Refiner, cfg config.WatchConfig, logger *zap.Logger, opts ...InboxOption) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &Inbox{refiner: refiner, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(in)
	}
	in.watcher = NewWatcher(cfg.Directories, cfg.Extensions, in.handle,
		WithLogger(logger), WithIgnore(IsOutput))
	return in
}

// Run refines files already present, then watches for new ones until ctx is cancelled.
func (in *Inbox) Run(ctx context.Context) error {
	if in.cfg.Column == "" {
		return fmt.Errorf("watch: column is required")
	}
	if len(in.cfg.Directories) == 0 {
		return fmt.Errorf("watch: no directories configured")
	}
	in.setRunContext(ctx)
	if err := in.watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer in.watcher.Stop()
	in.logger.Info("watching inbox",
		zap.Strings("directories", in.watcher.Directories()),
		zap.String("column", in.cfg.Column),
		zap.Float64("threshold", in.cfg.Threshold))
	in.watcher.SyncExistingFiles()
	<-ctx.Done()
	return nil
}

func (in *Inbox) setRunContext(ctx context.Context) {
	in.ctxMu.Lock()
	in.runCtx = ctx
	in.ctxMu.Unlock()
}

// runContext returns the context passed to Run.
func (in *Inbox) runContext() context.Context {
	in.ctxMu.RLock()
	defer in.ctxMu.RUnlock()
	if in.runCtx == nil {
		return context.Background()
	}
	return in.runCtx
}

func (in *Inbox) handle(path string) {
	out, err := in.Process(in.runContext(), path)
	if err != nil {
		in.logger.Error("refine file failed", zap.String("path", path), zap.Error(err))
	}
	if in.processed != nil {
		in.processed(path, out, err)
	}
}

// Process refines path and writes the whole table, with the processed column added,
// to OutputPath(path). A file whose output is newer than the input is skipped and
// the existing output path returned.
func (in *Inbox) Process(ctx context.Context, path string) (string, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out := OutputPath(path)
	if fresh(path, out) {
		in.logger.Debug("output up to date", zap.String("path", path))
		return out, nil
	}

	tbl, err := table.LoadFile(path)
	if err != nil {
		return "", err
	}
	ref, err := in.refiner.Refine(ctx, tbl, models.RefineRequest{
		Column:    in.cfg.Column,
		Threshold: in.cfg.Threshold,
	})
	if err != nil {
		return "", err
	}
	sheet, err := export.FromRefinement(tbl, ref, true)
	if err != nil {
		return "", err
	}

	tmp := out + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	if err := export.WriteCSV(f, sheet); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		return "", fmt.Errorf("rename output: %w", err)
	}
	in.logger.Info("refined file",
		zap.String("path", path),
		zap.String("output", out),
		zap.Int("unique_before", ref.UniqueBefore),
		zap.Int("unique_after", ref.UniqueAfter))
	return out, nil
}

// fresh reports whether out exists and is not older than src.
func fresh(src, out string) bool {
	si, err := os.Stat(src)
	if err != nil {
		return false
	}
	oi, err := os.Stat(out)
	if err != nil {
		return false
	}
	return !oi.ModTime().Before(si.ModTime())
}
