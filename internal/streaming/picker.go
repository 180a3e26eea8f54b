package streaming

import (
	"log/slog"
	"sync"

	"github.com/shapedtime/streamcore/internal/streaming/format"
)

// StreamingPicker decorates a BasePicker so that request generation is
// biased towards a PieceWindow's current Urgent/Prefetch bands (spec
// §4.2). It holds no per-block state of its own — all request bookkeeping
// lives in the wrapped base picker — only the window and the set of
// requests it is currently holding open so it can cancel them on seek.
//
// A StreamingPicker is owned exclusively by the torrent session that
// installs it; there is no back-pointer from the base picker to the
// decorator (spec §9 "Base-picker wrapping without cyclic ownership").
type StreamingPicker struct {
	mu   sync.Mutex
	base BasePicker
	win  *PieceWindow

	// outstanding tracks requests this decorator has handed out, so that
	// SeekToPosition can find and cancel the ones that fell out of the
	// new Urgent window.
	outstanding map[Request]struct{}

	log *slog.Logger
}

// NewStreamingPicker wraps base with window, which must already be seeked
// to the stream's initial position.
func NewStreamingPicker(base BasePicker, win *PieceWindow) *StreamingPicker {
	return &StreamingPicker{
		base:        base,
		win:         win,
		outstanding: make(map[Request]struct{}),
		log:         slog.With("component", "streaming-picker"),
	}
}

// SeekToPosition recomputes the window for a new byte offset and cancels
// any outstanding request that fell outside the new Urgent band, so
// bandwidth budgeted to now-irrelevant pieces is reclaimed immediately
// (spec §4.2, §9 "Cancellation of in-flight requests on seek").
//
// Returns the cancelled requests. Its callers in this package
// (LocalStream.Seek, StreamProvider.CreateStream) discard them; no wire
// Cancel messages are sent from here.
func (p *StreamingPicker) SeekToPosition(file File, byteOffset int64) []Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.win == nil {
		return nil
	}
	p.win.SeekTo(byteOffset)

	stillUrgent := make(map[int]bool)
	p.win.ForEachUrgent(func(piece int) { stillUrgent[piece] = true })

	var cancelled []Request
	for r := range p.outstanding {
		if stillUrgent[r.Piece] {
			continue
		}
		if p.base.CancelRequest(r) {
			cancelled = append(cancelled, r)
		}
		delete(p.outstanding, r)
	}

	p.log.Debug("seek re-aimed window",
		"head_piece", p.win.HeadPiece(),
		"cancelled", len(cancelled),
	)

	return cancelled
}

// SetFormatHint folds format-detected critical-range info into the
// window (spec-full §4.6). Safe to call at any time; takes effect on the
// next PickPieces call.
func (p *StreamingPicker) SetFormatHint(info *format.Info) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.win == nil {
		return
	}
	p.win.SetFormatHint(info)
}

// Window exposes the underlying PieceWindow read-only state for callers
// that need head_piece/file_range (e.g. metrics, tests). The returned
// pointer's fields can change concurrently under SeekToPosition; callers
// that read more than one field off it (e.g. the engine adapter's
// priority driver) must go through WithWindow instead.
func (p *StreamingPicker) Window() *PieceWindow {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.win
}

// WithWindow runs fn with the current window while holding the picker's
// lock, so a multi-field read (FileRange + PriorityOf per piece, as the
// engine adapter's 250ms priority driver does) can't race SeekToPosition's
// in-place window mutation. fn must not call back into the picker.
func (p *StreamingPicker) WithWindow(fn func(win *PieceWindow)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.win)
}

// PickPieces implements the request-generation contract of spec §4.2:
// try Urgent first, then Prefetch, then fall through unrestricted so the
// stream never blocks ordinary download progress just because its own
// window is satisfied or unavailable from this peer.
func (p *StreamingPicker) PickPieces(peer PeerHandle, availableFromPeer map[int]bool, count int) []Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.win == nil {
		// No stream has been created yet: nothing to bias towards.
		reqs := p.base.PickPieces(peer, nil, count)
		p.track(reqs)
		return reqs
	}

	if reqs := p.tryBand(peer, availableFromPeer, count, p.win.ForEachUrgent); len(reqs) > 0 {
		return reqs
	}
	if reqs := p.tryBand(peer, availableFromPeer, count, p.win.ForEachPrefetch); len(reqs) > 0 {
		return reqs
	}

	// Window exhausted or unavailable from this peer: fall through
	// unrestricted so normal download progress is never blocked by the
	// stream (spec §4.2 step 3).
	reqs := p.base.PickPieces(peer, nil, count)
	p.track(reqs)
	return reqs
}

// tryBand restricts candidates to the pieces band(fn) yields intersected
// with availableFromPeer, and asks the base picker for up to count
// requests within that restriction.
func (p *StreamingPicker) tryBand(peer PeerHandle, availableFromPeer map[int]bool, count int, band func(func(int))) []Request {
	allowed := make(map[int]bool)
	band(func(piece int) {
		if availableFromPeer == nil || availableFromPeer[piece] {
			allowed[piece] = true
		}
	})
	if len(allowed) == 0 {
		return nil
	}
	reqs := p.base.PickPieces(peer, allowed, count)
	p.track(reqs)
	return reqs
}

func (p *StreamingPicker) track(reqs []Request) {
	for _, r := range reqs {
		p.outstanding[r] = struct{}{}
	}
}

// ContinueExistingRequest forwards unchanged (spec §4.2 "all other
// operations are forwarded unchanged").
func (p *StreamingPicker) ContinueExistingRequest(peer PeerHandle, piece int) []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	reqs := p.base.ContinueExistingRequest(peer, piece)
	p.track(reqs)
	return reqs
}

func (p *StreamingPicker) IsInteresting(peer PeerHandle) bool {
	return p.base.IsInteresting(peer)
}

func (p *StreamingPicker) AlreadyRequestedBlock(r Request) bool {
	return p.base.AlreadyRequestedBlock(r)
}

func (p *StreamingPicker) CancelRequest(r Request) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.outstanding, r)
	return p.base.CancelRequest(r)
}

func (p *StreamingPicker) ReceivedBlock(r Request) {
	p.mu.Lock()
	delete(p.outstanding, r)
	p.mu.Unlock()
	p.base.ReceivedBlock(r)
}

func (p *StreamingPicker) Reset() {
	p.mu.Lock()
	p.outstanding = make(map[Request]struct{})
	p.mu.Unlock()
	p.base.Reset()
}

var _ BasePicker = (*StreamingPicker)(nil)
