package api

import (
	"context"

	"github.com/shapedtime/streamcore/internal/streaming"
)

// ProviderHandle is the subset of StreamProvider plus file lookup the API
// needs. cmd/streamd's concrete registry (registry.go) wraps a *streaming.StreamProvider
// together with the torrent's file list to satisfy this.
type ProviderHandle interface {
	Infohash() string
	Active() bool
	Paused() bool
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	CreateStream(file streaming.File) (*streaming.LocalStream, error)
	FileByPath(path string) (streaming.File, bool)
}
