package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/seiri/internal/config"
	"github.com/hyperjump/seiri/internal/embedding"
	"github.com/hyperjump/seiri/internal/refine"
	"go.uber.org/zap"
)

func newInbox(t *testing.T, dir string, opts ...InboxOption) *Inbox {
	t.Helper()
	cfg := config.Default()
	cfg.Watch.Directories = []string{dir}
	cfg.Watch.Column = "City"
	// Above every similarity: values are only normalized.
	cfg.Watch.Threshold = 2
	r := refine.New(embedding.NewMockEmbedder(8), cfg.Refine, zap.NewNop())
	return NewInbox(r, cfg.Watch, zap.NewNop(), opts...)
}

func TestOutputPath(t *testing.T) {
	if got := OutputPath("/in/cities.xlsx"); got != "/in/cities.refined.csv" {
		t.Errorf("OutputPath = %q", got)
	}
	if !IsOutput("/in/cities.refined.csv") || IsOutput("/in/cities.csv") {
		t.Error("IsOutput mismatch")
	}
}

func TestInbox_Process(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cities.csv")
	if err := writeFile(src, "ID,City\n1,nyc\n2, boston \n"); err != nil {
		t.Fatal(err)
	}
	in := newInbox(t, dir)

	out, err := in.Process(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join(dir, "cities.refined.csv") {
		t.Errorf("out = %q", out)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "\ufeffID,City,Processed: City\n1,nyc,Nyc\n2,\" boston \",Boston\n"
	if string(data) != want {
		t.Errorf("output = %q, want %q", data, want)
	}

	// An output newer than its input is kept as is.
	if err := writeFile(out, "kept"); err != nil {
		t.Fatal(err)
	}
	if _, err := in.Process(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); string(data) != "kept" {
		t.Errorf("fresh output was rewritten: %q", data)
	}

	// A newer input is refined again.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(src, future, future); err != nil {
		t.Fatal(err)
	}
	if _, err := in.Process(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); string(data) != want {
		t.Errorf("stale output not refreshed: %q", data)
	}
}

func TestInbox_ProcessMissingColumn(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "people.csv")
	if err := writeFile(src, "Name\nAda\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := newInbox(t, dir).Process(context.Background(), src); err == nil {
		t.Error("expected column not found")
	}
	if _, err := os.Stat(OutputPath(src)); !os.IsNotExist(err) {
		t.Error("no output should be written on failure")
	}
}

func TestInbox_Run(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "existing.csv"), "City\nparis\n"); err != nil {
		t.Fatal(err)
	}

	done := make(chan string, 4)
	in := newInbox(t, dir, OnProcessed(func(src, out string, err error) {
		if err != nil {
			t.Errorf("process %s: %v", src, err)
		}
		done <- filepath.Base(out)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- in.Run(ctx) }()

	wait := func(want string) {
		t.Helper()
		select {
		case got := <-done:
			if got != want {
				t.Errorf("processed %q, want %q", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	wait("existing.refined.csv")

	if err := writeFile(filepath.Join(dir, "dropped.csv"), "City\nlyon\n"); err != nil {
		t.Fatal(err)
	}
	wait("dropped.refined.csv")

	data, err := os.ReadFile(filepath.Join(dir, "dropped.refined.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "lyon,Lyon") {
		t.Errorf("output = %q", data)
	}

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Run: %v", err)
	}
}

func TestInbox_RunRequiresColumn(t *testing.T) {
	cfg := config.Default()
	cfg.Watch.Directories = []string{t.TempDir()}
	in := NewInbox(refine.New(embedding.NewMockEmbedder(8), cfg.Refine, nil), cfg.Watch, nil)
	if err := in.Run(context.Background()); err == nil {
		t.Error("expected error without a column")
	}
}

func TestInbox_HandleUsesRunContext(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cities.csv")
	if err := writeFile(src, "ID,City\n1,nyc\n"); err != nil {
		t.Fatal(err)
	}
	var gotErr error
	in := newInbox(t, dir, OnProcessed(func(_, _ string, err error) { gotErr = err }))

	ctx, cancel := context.WithCancel(context.Background())
	in.setRunContext(ctx)
	cancel()
	in.handle(src)

	if !errors.Is(gotErr, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", gotErr)
	}
	if _, err := os.Stat(OutputPath(src)); !os.IsNotExist(err) {
		t.Error("no output should be written after shutdown")
	}
}
