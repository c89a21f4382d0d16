// Package observability provides hooks for metrics and tracing.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register
// hooks at startup to receive events about placement stage execution and
// solver iterations.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This keeps the placement library dependency-free from observability
// frameworks while allowing different backends at the entry point.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPlacerHooks(&myPlacerHooks{})
//	    // ... run application
//	}
//
// The runner calls hooks to emit events:
//
//	observability.Placer().OnStageStart(ctx, "global", nodeCount)
//	// ... solve ...
//	observability.Placer().OnStageComplete(ctx, "global", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// PlacerHooks receives events from the placement pipeline.
type PlacerHooks interface {
	// OnStageStart records the start of a pipeline stage
	// ("import", "global", "legalize", "detail", "export").
	OnStageStart(ctx context.Context, stage string, nodeCount int)

	// OnStageComplete records stage completion with its duration and error.
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)

	// OnIteration records one global-placement iteration.
	OnIteration(ctx context.Context, iteration int, overflow, hpwl float64)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// NoopPlacerHooks is a no-op implementation of PlacerHooks.
type NoopPlacerHooks struct{}

func (NoopPlacerHooks) OnStageStart(context.Context, string, int)                   {}
func (NoopPlacerHooks) OnStageComplete(context.Context, string, time.Duration, error) {}
func (NoopPlacerHooks) OnIteration(context.Context, int, float64, float64)          {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

var (
	placerHooks PlacerHooks = NoopPlacerHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetPlacerHooks registers custom placer hooks.
// This should be called once at application startup before any runs.
func SetPlacerHooks(h PlacerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		placerHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Placer returns the registered placer hooks.
func Placer() PlacerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return placerHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	placerHooks = NoopPlacerHooks{}
	cacheHooks = NoopCacheHooks{}
}
