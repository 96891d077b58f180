// Package ocr isolates the label pipeline from the text recognition engine.
// Engines are black boxes that turn image bytes into text; backends register
// themselves from their own packages (tesseract, vertex) so callers only
// depend on the small Engine interface.
package ocr

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Engine recognizes text in a single image.
type Engine interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Load prepares the engine (clients, credentials). It is called once
	// before the first Recognize.
	Load(ctx context.Context) error
	// Recognize returns the text found in the input image.
	Recognize(ctx context.Context, in Input) (Result, error)
}

// Factory builds an engine from configuration.
type Factory func(cfg EngineConfig) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an engine available to NewEngine under name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Engines lists registered engine names.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewEngine creates a new engine instance based on the engine name.
func NewEngine(name string, cfg EngineConfig) (Engine, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported ocr engine: %s (registered: %v)", name, Engines())
	}
	return f(cfg)
}
