package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/seiri/internal/cli"
	"github.com/hyperjump/seiri/internal/config"
	"github.com/hyperjump/seiri/internal/models"
	"github.com/hyperjump/seiri/internal/refine"
	"github.com/hyperjump/seiri/internal/table"
	"go.uber.org/zap"
)

type fixedEmbedder map[string][]float32

func (f fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f[text], nil
}

func (f fixedEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f[t]
	}
	return out, nil
}

func (f fixedEmbedder) Dimensions() int { return 2 }
func (f fixedEmbedder) Model() string   { return "fixed" }
func (f fixedEmbedder) Close() error    { return nil }

func testRefiner() *refine.Refiner {
	e := fixedEmbedder{
		"Nyc":      {1, 0},
		"New York": {0.99, 0.1},
		"Boston":   {0, 1},
	}
	return refine.New(e, config.Default().Refine, zap.NewNop())
}

func writeCities(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cities.csv")
	if err := os.WriteFile(path, []byte("ID,City\n1,nyc\n2,new york\n3,boston\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after file are moved first",
			args:     []string{"cities.xlsx", "--column", "City"},
			expected: []string{"--column", "City", "cities.xlsx"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"--column", "City", "cities.xlsx"},
			expected: []string{"--column", "City", "cities.xlsx"},
		},
		{
			name:     "file only returns unchanged",
			args:     []string{"cities.xlsx"},
			expected: []string{"cities.xlsx"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
refine:
  default_threshold: 0.9
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
	if cfg.Refine.DefaultThreshold != 0.9 {
		t.Errorf("threshold = %f, want 0.9", cfg.Refine.DefaultThreshold)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Refine.DefaultThreshold != 0.75 {
		t.Errorf("default threshold = %f, want 0.75", cfg.Refine.DefaultThreshold)
	}
}

func TestLoadConfig_missingExplicitPathFails(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestRefineFile_JSONReport(t *testing.T) {
	path := writeCities(t)
	var out bytes.Buffer
	opts := refineOptions{Column: "City", Format: cli.OutputJSON}
	if err := refineFile(context.Background(), testRefiner(), path, opts, &out); err != nil {
		t.Fatalf("refineFile: %v", err)
	}
	var report cli.RefinementReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out.String())
	}
	if report.UniqueAfter != 2 {
		t.Errorf("unique_after = %d, want 2", report.UniqueAfter)
	}
	if len(report.Groups) != 1 || report.Groups[0].Canonical != "Nyc" {
		t.Errorf("groups = %+v, want one group with canonical Nyc", report.Groups)
	}
	if report.Output != "" {
		t.Errorf("output = %q, want empty", report.Output)
	}
}

func TestRefineFile_WritesExport(t *testing.T) {
	path := writeCities(t)
	outPath := filepath.Join(t.TempDir(), "refined.csv")
	var out bytes.Buffer
	opts := refineOptions{Column: "City", Output: outPath, Full: true, Format: cli.OutputText}
	if err := refineFile(context.Background(), testRefiner(), path, opts, &out); err != nil {
		t.Fatalf("refineFile: %v", err)
	}
	if !strings.Contains(out.String(), "Written to "+outPath) {
		t.Errorf("report should mention output file:\n%s", out.String())
	}
	tbl, err := table.LoadFile(outPath)
	if err != nil {
		t.Fatalf("reload export: %v", err)
	}
	want := []string{"ID", "City", "Processed: City"}
	if !reflect.DeepEqual(tbl.Columns, want) {
		t.Errorf("columns = %v, want %v", tbl.Columns, want)
	}
	processed, err := tbl.Column("Processed: City")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(processed, []string{"Nyc", "Nyc", "Boston"}) {
		t.Errorf("processed = %v", processed)
	}
}

func TestRefineFile_Errors(t *testing.T) {
	path := writeCities(t)
	ctx := context.Background()
	if err := refineFile(ctx, testRefiner(), path, refineOptions{Column: "Country"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown column")
	}
	if err := refineFile(ctx, testRefiner(), path, refineOptions{}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for missing column")
	}
	opts := refineOptions{Column: "City", Output: filepath.Join(t.TempDir(), "out.pdf")}
	if err := refineFile(ctx, testRefiner(), path, opts, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unsupported output extension")
	}
}

func TestListColumns(t *testing.T) {
	path := writeCities(t)
	var out bytes.Buffer
	if err := listColumns(path, cli.OutputText, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "  1  ID\n  2  City\n" {
		t.Errorf("listColumns text = %q", out.String())
	}
}

func TestStatusViaHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":           models.Status{Datasets: 2, Refinements: 3, Provider: "mock", DefaultThreshold: 0.75},
			"disk_usage_bytes": 4096,
		})
	}))
	defer ts.Close()

	res, err := statusViaHTTP(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status.Datasets != 2 || res.Status.Refinements != 3 || res.Status.Provider != "mock" {
		t.Errorf("status = %+v", res.Status)
	}
	if res.DiskUsageBytes == nil || *res.DiskUsageBytes != 4096 {
		t.Errorf("disk usage = %v", res.DiskUsageBytes)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer down.Close()
	if _, err := statusViaHTTP(down.URL); err == nil {
		t.Error("expected error on 500")
	}
}
