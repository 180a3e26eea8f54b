package engine

import (
	"github.com/anacrolix/torrent"

	"github.com/shapedtime/streamcore/internal/streaming"
)

// fileAdapter implements streaming.File over a real anacrolix torrent.File.
type fileAdapter struct {
	f *torrent.File
}

var _ streaming.File = (*fileAdapter)(nil)

func newFileAdapter(f *torrent.File) *fileAdapter { return &fileAdapter{f: f} }

func (a *fileAdapter) Path() string   { return a.f.Path() }
func (a *fileAdapter) Offset() int64  { return a.f.Offset() }
func (a *fileAdapter) Length() int64  { return a.f.Length() }

// File returns the underlying anacrolix file, for callers (the control
// API, format hinting) that need extension/name information beyond the
// streaming.File contract.
func (a *fileAdapter) File() *torrent.File { return a.f }
