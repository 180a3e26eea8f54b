package engine

import (
	"context"
	"io"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/types"

	"github.com/shapedtime/streamcore/internal/streaming"
)

// readResult carries the outcome of a readContext goroutine back to its
// caller, grounded on the same cancellable-read shape the teacher's
// vfs.TorrentFile.readContext uses over anacrolix's blocking Reader.
type readResult struct {
	n   int
	err error
}

// torrentAdapter implements streaming.Torrent over a real
// *anacrolix/torrent.Torrent. A single torrent.Reader is kept open and
// reused across ReadAt calls (anacrolix readers are cheap to seek, not to
// create) and serialized by pendingRead the same way the teacher's
// TorrentFile serializes its PriorityReader.
type torrentAdapter struct {
	t      *torrent.Torrent
	reader torrent.Reader

	pendingRead chan readResult
}

func newTorrentAdapter(t *torrent.Torrent) *torrentAdapter {
	return &torrentAdapter{t: t}
}

var _ streaming.Torrent = (*torrentAdapter)(nil)

func (a *torrentAdapter) PieceLength() int64 {
	info := a.t.Info()
	if info == nil {
		return 0
	}
	return info.PieceLength
}

func (a *torrentAdapter) NumPieces() int { return a.t.NumPieces() }

// InfoHash returns the lowercase hex info hash, the identifier
// StreamProvider and the Engine interface key sessions by.
func (a *torrentAdapter) InfoHash() string { return a.t.InfoHash().HexString() }

// Name returns the torrent's display name, for logging and the control API.
func (a *torrentAdapter) Name() string {
	if info := a.t.Info(); info != nil {
		return info.Name
	}
	return a.t.Name()
}

func (a *torrentAdapter) Have(i int) bool {
	if i < 0 || i >= a.t.NumPieces() {
		return false
	}
	return a.t.PieceState(i).Complete
}

// ReadAt reads len(p) bytes at an absolute torrent offset, honoring ctx
// cancellation over anacrolix's non-context-aware blocking Reader.Read by
// running the read in a goroutine and draining any goroutine a prior
// cancellation left behind before starting the next one — the same shape
// as the teacher's TorrentFile.readContext, adapted to an absolute-offset
// ReadAt instead of a stateful streaming Read.
func (a *torrentAdapter) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if a.reader == nil {
		a.reader = a.t.NewReader()
		a.reader.SetResponsive()
	}

	if a.pendingRead != nil {
		select {
		case <-a.pendingRead:
			a.pendingRead = nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	if _, err := a.reader.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	buf := make([]byte, len(p))
	done := make(chan readResult, 1)
	reader := a.reader

	go func() {
		n, err := io.ReadFull(reader, buf)
		done <- readResult{n, err}
	}()

	select {
	case r := <-done:
		copy(p[:r.n], buf[:r.n])
		if r.err == io.ErrUnexpectedEOF {
			r.err = io.EOF
		}
		return r.n, r.err
	case <-ctx.Done():
		a.pendingRead = done
		return 0, ctx.Err()
	}
}

func (a *torrentAdapter) Close() error {
	if a.reader != nil {
		return a.reader.Close()
	}
	return nil
}

// applyPriority maps PieceWindow priority bands onto anacrolix's public
// piece-priority levers (spec-full §4.5): Urgent pieces get PiecePriorityNow
// so anacrolix's own request strategy requests them from every peer that
// has them immediately, Prefetch pieces get PiecePriorityReadahead, and
// everything outside the window reverts to PiecePriorityNormal so ordinary
// sequential/rarest-first download of the rest of the torrent is
// unaffected — the same "sliding window of elevated pieces, everything
// else left alone" shape as the pack's resumeTorrentForStreaming pattern.
func (a *torrentAdapter) applyPriority(win *streaming.PieceWindow) {
	if win == nil {
		return
	}
	first, last := win.FileRange()
	for i := first; i <= last; i++ {
		switch win.PriorityOf(i) {
		case streaming.Urgent:
			a.t.Piece(i).SetPriority(types.PiecePriorityNow)
		case streaming.Prefetch:
			a.t.Piece(i).SetPriority(types.PiecePriorityReadahead)
		default:
			a.t.Piece(i).SetPriority(types.PiecePriorityNormal)
		}
	}
}

// priorityDriverInterval bounds how often ChangePicker's background
// goroutine re-applies piece priorities from the installed picker's
// window. anacrolix exposes no push notification for "picker changed", so
// this polls instead of reacting to SeekToPosition directly.
const priorityDriverInterval = 250 * time.Millisecond
