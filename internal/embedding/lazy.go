package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// BuildFunc constructs an Embedder. It may be expensive (model loading).
type BuildFunc func(ctx context.Context) (Embedder, error)

// Lazy is an Embedder that builds its underlying provider on first use and
// reuses it for every later call. Concurrent first calls share a single
// construction. A failed construction is not kept; the next call tries again.
type Lazy struct {
	build BuildFunc
	group singleflight.Group
	mu    sync.RWMutex
	inst  Embedder
}

// NewLazy returns a Lazy that calls build on first use.
func NewLazy(build BuildFunc) *Lazy {
	return &Lazy{build: build}
}

// Get returns the provider, constructing it if needed.
func (l *Lazy) Get(ctx context.Context) (Embedder, error) {
	if inst := l.current(); inst != nil {
		return inst, nil
	}
	v, err, _ := l.group.Do("embedder", func() (interface{}, error) {
		if inst := l.current(); inst != nil {
			return inst, nil
		}
		inst, err := l.build(ctx)
		if err != nil {
			return nil, err
		}
		if inst == nil {
			return nil, errors.New("build returned no embedder")
		}
		l.mu.Lock()
		l.inst = inst
		l.mu.Unlock()
		return inst, nil
	})
	if err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}
	return v.(Embedder), nil
}

// Built reports whether the provider has been constructed.
func (l *Lazy) Built() bool {
	return l.current() != nil
}

func (l *Lazy) current() Embedder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.inst
}

func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	inst, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return inst.Embed(ctx, text)
}

func (l *Lazy) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	inst, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return inst.EmbedBatch(ctx, texts)
}

// Dimensions returns 0 until the provider is built.
func (l *Lazy) Dimensions() int {
	if inst := l.current(); inst != nil {
		return inst.Dimensions()
	}
	return 0
}

// Model returns "" until the provider is built.
func (l *Lazy) Model() string {
	if inst := l.current(); inst != nil {
		return inst.Model()
	}
	return ""
}

// Close closes the provider if it was built.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inst == nil {
		return nil
	}
	err := l.inst.Close()
	l.inst = nil
	return err
}
