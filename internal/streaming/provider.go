package streaming

import (
	"context"
	"log/slog"
	"sync"
)

// state is the provider's lifecycle state (spec §4.4: Inactive -> Active
// <-> Paused -> Stopped). Stopped is terminal and not held as a distinct
// value after stop succeeds — the provider reverts to Inactive, which is
// itself terminal for that provider instance (a fresh provider is
// required to restart, spec §3).
type state int

const (
	stateInactive state = iota
	stateActive
	statePaused
)

// StreamProvider owns one torrent session: it installs the streaming
// picker before starting the torrent, enforces single-active-stream and
// single-active-provider-per-infohash, and drives the Inactive -> Active
// <-> Paused -> Stopped state machine (spec §4.4).
type StreamProvider struct {
	engine    Engine
	infohash  string
	torrent   Torrent
	files     []File
	picker    *StreamingPicker
	blockLen  int64
	metrics   *Metrics
	log       *slog.Logger

	mu           sync.Mutex
	st           state
	stopped      bool
	activeStream *LocalStream
}

// NewStreamProvider constructs a provider over an already-resolved
// torrent (spec §4.4 constructor form "(engine, save_directory,
// torrent)"). The magnet-link constructor form is the engine adapter's
// responsibility: it resolves the magnet to a Torrent and then calls
// this same constructor, since core code never speaks DHT/magnet (spec
// §1 non-goals). files is the torrent's file list, used by CreateStream
// to reject a file that does not belong to this torrent; it may be nil,
// in which case CreateStream skips that check.
func NewStreamProvider(engine Engine, infohash string, t Torrent, files []File, base BasePicker, blockLength int64, metrics *Metrics) *StreamProvider {
	return &StreamProvider{
		engine:   engine,
		infohash: infohash,
		torrent:  t,
		files:    files,
		picker:   NewStreamingPicker(base, nil),
		blockLen: blockLength,
		metrics:  metrics,
		log:      slog.With("component", "stream-provider", "infohash", infohash),
		st:       stateInactive,
	}
}

// Active reports whether the provider is Active or Active+Paused.
func (p *StreamProvider) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st == stateActive || p.st == statePaused
}

// Paused reports whether the provider is Active+Paused.
func (p *StreamProvider) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st == statePaused
}

// Start transitions Inactive -> Active: registers the torrent with the
// engine, installs the streaming picker on it, and starts it (spec §4.4
// row "start"). Fails with Conflict if this infohash is already present
// in the engine under any provider, or InvalidState if this provider is
// not Inactive.
//
// Register must precede ChangePicker: the engine adapter only tracks
// per-torrent session state (including the installed picker and its
// window-driving goroutine) once Register has created that session, so
// ChangePicker on an unregistered torrent always fails.
func (p *StreamProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.st != stateInactive {
		return newErr(KindInvalidState, "start", nil)
	}
	if p.engine.Contains(p.infohash) {
		return newErr(KindConflict, "start", nil)
	}

	if err := p.engine.Register(ctx, p.torrent); err != nil {
		return newErr(KindConflict, "start", err)
	}
	if err := p.engine.ChangePicker(p.torrent, p.picker); err != nil {
		_ = p.engine.Unregister(ctx, p.torrent)
		return newErr(KindConflict, "start", err)
	}
	if err := p.engine.Start(ctx, p.torrent); err != nil {
		_ = p.engine.Unregister(ctx, p.torrent)
		return newErr(KindStorageError, "start", err)
	}

	p.st = stateActive
	p.log.Info("provider started")
	return nil
}

// Pause transitions Active -> Active+Paused (spec §4.4 row "pause").
func (p *StreamProvider) Pause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.st != stateActive {
		return newErr(KindInvalidState, "pause", nil)
	}
	if err := p.engine.Pause(ctx, p.torrent); err != nil {
		return newErr(KindStorageError, "pause", err)
	}
	p.st = statePaused
	return nil
}

// Resume transitions Active+Paused -> Active (spec §4.4 row "resume").
func (p *StreamProvider) Resume(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.st != statePaused {
		return newErr(KindInvalidState, "resume", nil)
	}
	if err := p.engine.Resume(ctx, p.torrent); err != nil {
		return newErr(KindStorageError, "resume", err)
	}
	p.st = stateActive
	return nil
}

// Stop transitions Active (Paused or not) -> Inactive, terminally: it
// stops the torrent, unregisters it, and disposes the active stream if
// any (spec §4.4 row "stop"). A stopped provider cannot Start again.
func (p *StreamProvider) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.st != stateActive && p.st != statePaused {
		p.mu.Unlock()
		return newErr(KindInvalidState, "stop", nil)
	}
	stream := p.activeStream
	p.activeStream = nil
	p.mu.Unlock()

	if stream != nil {
		stream.Dispose()
	}

	if err := p.engine.Stop(ctx, p.torrent); err != nil {
		return newErr(KindStorageError, "stop", err)
	}
	if err := p.engine.Unregister(ctx, p.torrent); err != nil {
		return newErr(KindStorageError, "stop", err)
	}

	p.mu.Lock()
	p.st = stateInactive
	p.stopped = true
	p.mu.Unlock()

	p.log.Info("provider stopped")
	return nil
}

// CreateStream creates a LocalStream positioned at byte 0 of file and
// seeks the picker's window to it before returning, so the happens-before
// ordering of spec §5 holds for the caller's very first read (spec §4.4
// row "create_stream"). Fails with InvalidState if the provider is not
// Active, or if a previous stream has not yet been disposed; with
// InvalidArgument if file is nil or not part of this torrent.
func (p *StreamProvider) CreateStream(file File) (*LocalStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if file == nil {
		return nil, newErr(KindInvalidArgument, "create_stream", nil)
	}
	if p.files != nil && !p.hasFile(file) {
		return nil, newErr(KindInvalidArgument, "create_stream", nil)
	}
	if p.st != stateActive && p.st != statePaused {
		return nil, newErr(KindInvalidState, "create_stream", nil)
	}
	if p.activeStream != nil {
		return nil, newErr(KindInvalidState, "create_stream", nil)
	}

	win := NewPieceWindow(p.torrent.PieceLength(), file.Offset(), file.Length(), p.torrent.NumPieces(), DefaultConfig())
	p.picker.mu.Lock()
	p.picker.win = win
	p.picker.mu.Unlock()

	notifier := p.engine.Notifier(p.torrent)

	stream := NewLocalStream(file, p.torrent, p.picker, notifier, p.metrics, p.clearActiveStream)
	p.picker.SeekToPosition(file, 0)
	p.activeStream = stream

	return stream, nil
}

// hasFile reports whether file is one of this provider's torrent's own
// files, identified by path/offset/length rather than pointer identity so
// a caller's own File value (e.g. one it reconstructed from the API) still
// matches (spec §4.4 create_stream InvalidArgument "file not part of this
// torrent").
func (p *StreamProvider) hasFile(file File) bool {
	for _, f := range p.files {
		if f.Path() == file.Path() && f.Offset() == file.Offset() && f.Length() == file.Length() {
			return true
		}
	}
	return false
}

// clearActiveStream is the LocalStream.Dispose callback that frees the
// provider's single-active-stream slot.
func (p *StreamProvider) clearActiveStream() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeStream = nil
}
