package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/shapedtime/streamcore/internal/api"
	"github.com/shapedtime/streamcore/internal/engine"
	"github.com/shapedtime/streamcore/internal/streaming"
)

// registry wires the api.Registry contract onto a set of
// streaming.StreamProviders built over the engine adapter. One
// providerEntry per torrent infohash, matching spec §3's "at most one
// StreamProvider per torrent infohash" invariant.
type registry struct {
	adapter     *engine.Adapter
	metrics     *streaming.Metrics
	blockLength int64

	mu       sync.Mutex
	entries  map[string]*providerEntry
}

type providerEntry struct {
	provider *streaming.StreamProvider
	torrent  streaming.Torrent
	files    []streaming.File
}

func newRegistry(adapter *engine.Adapter, metrics *streaming.Metrics, blockLength int64) *registry {
	return &registry{
		adapter:     adapter,
		metrics:     metrics,
		blockLength: blockLength,
		entries:     make(map[string]*providerEntry),
	}
}

var _ api.Registry = (*registry)(nil)

func (r *registry) Provider(infohash string) (api.ProviderHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[infohash]
	if !ok {
		return nil, false
	}
	return e, true
}

func (r *registry) OpenMagnet(ctx *gin.Context, magnetURI string) (api.ProviderHandle, error) {
	t, files, err := r.adapter.AddMagnet(ctx.Request.Context(), magnetURI)
	if err != nil {
		return nil, fmt.Errorf("open magnet: %w", err)
	}

	ta, ok := t.(interface{ InfoHash() string })
	if !ok {
		return nil, fmt.Errorf("open magnet: engine torrent missing InfoHash")
	}
	infohash := ta.InfoHash()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[infohash]; ok {
		return existing, nil
	}

	base := streaming.NewRarestFirstPicker(t, r.blockLength)
	provider := streaming.NewStreamProvider(r.adapter, infohash, t, files, base, r.blockLength, r.metrics)

	entry := &providerEntry{provider: provider, torrent: t, files: files}
	r.entries[infohash] = entry
	return entry, nil
}

var _ api.ProviderHandle = (*providerEntry)(nil)

func (e *providerEntry) Infohash() string { return providerInfohash(e) }

func providerInfohash(e *providerEntry) string {
	if ta, ok := e.torrent.(interface{ InfoHash() string }); ok {
		return ta.InfoHash()
	}
	return ""
}

func (e *providerEntry) Active() bool { return e.provider.Active() }
func (e *providerEntry) Paused() bool { return e.provider.Paused() }

func (e *providerEntry) Start(ctx context.Context) error  { return e.provider.Start(ctx) }
func (e *providerEntry) Pause(ctx context.Context) error  { return e.provider.Pause(ctx) }
func (e *providerEntry) Resume(ctx context.Context) error { return e.provider.Resume(ctx) }
func (e *providerEntry) Stop(ctx context.Context) error   { return e.provider.Stop(ctx) }

func (e *providerEntry) CreateStream(file streaming.File) (*streaming.LocalStream, error) {
	return e.provider.CreateStream(file)
}

func (e *providerEntry) FileByPath(path string) (streaming.File, bool) {
	for _, f := range e.files {
		if f.Path() == path {
			return f, true
		}
	}
	return nil, false
}
