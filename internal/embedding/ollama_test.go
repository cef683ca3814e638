package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func newOllamaTestServer(t *testing.T, calls *int32, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != "/api/embed" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if status != http.StatusOK {
			http.Error(w, "model not found", status)
			return
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := ollamaEmbedResponse{Model: req.Model}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i), 1, 0})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_EmbedBatchSingleRequest(t *testing.T) {
	var calls int32
	srv := newOllamaTestServer(t, &calls, http.StatusOK)
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Model: "test-model"})

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	if vecs[2][0] != 2 {
		t.Errorf("vectors out of order: %v", vecs)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected one batched request, got %d", calls)
	}
	if e.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3 after first response", e.Dimensions())
	}
	if e.Model() != "test-model" {
		t.Errorf("Model() = %q", e.Model())
	}
}

func TestOllamaEmbedder_ErrorStatus(t *testing.T) {
	var calls int32
	srv := newOllamaTestServer(t, &calls, http.StatusInternalServerError)
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})

	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("failed request should not be retried, got %d calls", calls)
	}
}

func TestOllamaEmbedder_EmptyInput(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: "http://127.0.0.1:1"})
	if _, err := e.EmbedBatch(context.Background(), nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	var calls int32
	srv := newOllamaTestServer(t, &calls, http.StatusOK)
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL, Dimensions: 8})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestOllamaEmbedder_ConcurrentFirstUse(t *testing.T) {
	var calls int32
	srv := newOllamaTestServer(t, &calls, http.StatusOK)
	e := NewOllamaEmbedder(OllamaConfig{BaseURL: srv.URL})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := e.EmbedBatch(context.Background(), []string{"a", "b"}); err != nil {
				t.Error(err)
			}
		}()
		go func() {
			defer wg.Done()
			if d := e.Dimensions(); d != 0 && d != 3 {
				t.Errorf("Dimensions() = %d", d)
			}
		}()
	}
	wg.Wait()

	if e.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3", e.Dimensions())
	}
}
