package streaming

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/shapedtime/streamcore/internal/streaming/format"
)

// LocalStream is a seekable, readable byte stream over one file of one
// torrent (spec §4.3). A read that lands in an undownloaded piece
// suspends the caller until the piece verifies, the read's context is
// cancelled, or the stream is disposed; it never blocks the torrent's main loop itself —
// only the calling goroutine.
type LocalStream struct {
	file     File
	torrent  Torrent
	picker   *StreamingPicker
	notifier Notifier
	metrics  *Metrics
	log      *slog.Logger

	onDispose func() // clears the owning provider's active-stream slot

	mu       sync.Mutex
	position int64
	disposed bool
	closeCh  chan struct{}

	formatOnce sync.Once
}

// NewLocalStream constructs a stream positioned at byte 0 of file. picker
// must already be installed on the torrent's engine session.
func NewLocalStream(file File, t Torrent, picker *StreamingPicker, notifier Notifier, metrics *Metrics, onDispose func()) *LocalStream {
	if metrics != nil {
		metrics.ActiveStreams.Inc()
	}
	return &LocalStream{
		file:      file,
		torrent:   t,
		picker:    picker,
		notifier:  notifier,
		metrics:   metrics,
		log:       slog.With("component", "local-stream", "file", file.Path()),
		onDispose: onDispose,
		closeCh:   make(chan struct{}),
	}
}

// Position returns the stream's current byte offset within file.
func (s *LocalStream) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Length returns the file's length in bytes.
func (s *LocalStream) Length() int64 { return s.file.Length() }

// Seek moves the stream's position and re-aims the picker synchronously,
// so that by the time Seek returns, request generation is already biased
// toward the new window (spec §4.3, §5 ordering guarantee). offset must
// be within [0, Length()]; anything else is KindInvalidArgument.
func (s *LocalStream) Seek(offset int64) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return newErr(KindInvalidState, "seek", nil)
	}
	if offset < 0 || offset > s.file.Length() {
		s.mu.Unlock()
		return newErr(KindInvalidArgument, "seek", nil)
	}
	prev := s.position
	s.position = offset
	s.mu.Unlock()

	if s.metrics != nil {
		direction := "forward"
		if offset < prev {
			direction = "backward"
		}
		s.metrics.Seeks.WithLabelValues(direction).Inc()
	}

	s.picker.SeekToPosition(s.file, offset)
	return nil
}

// Read copies up to len(p) bytes starting at the stream's current
// position into p, advancing the position by the number of bytes copied.
// If the current position's piece is not yet downloaded, Read suspends
// until it verifies, ctx is cancelled, or the stream is disposed.
//
// Read returns io.EOF once the position reaches Length — callers that
// want the literal "returns 0 bytes" framing of a bare streaming API can
// treat io.EOF as that terminal condition; returning the stdlib sentinel
// keeps LocalStream usable directly as an io.Reader via a thin wrapper.
func (s *LocalStream) Read(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	s.startFormatDetection()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return 0, newErr(KindCancelled, "read", nil)
	}
	pos := s.position
	s.mu.Unlock()

	if pos >= s.file.Length() {
		return 0, io.EOF
	}

	piece := byteToPiece(s.piecelen(), s.file.Offset()+pos)

	if !s.torrent.Have(piece) {
		var waitStart time.Time
		if s.metrics != nil {
			waitStart = time.Now()
		}
		if err := s.waitForPiece(ctx, piece); err != nil {
			return 0, err
		}
		if s.metrics != nil {
			s.metrics.ReadWaitDuration.Observe(time.Since(waitStart).Seconds())
		}
	}

	n := s.clampToPieceAndFile(pos, piece, len(p))
	read, err := s.torrent.ReadAt(ctx, p[:n], s.file.Offset()+pos)
	if err != nil && read == 0 {
		return 0, newErr(KindStorageError, "read", err)
	}

	s.mu.Lock()
	s.position += int64(read)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ReadBytes.Add(float64(read))
	}

	return read, nil
}

// clampToPieceAndFile bounds a read length so it never crosses the current
// piece's verified boundary nor the file's end.
func (s *LocalStream) clampToPieceAndFile(pos int64, piece int, want int) int {
	pieceLen := s.piecelen()
	pieceEndAbs := int64(piece+1) * pieceLen
	pieceRemaining := pieceEndAbs - (s.file.Offset() + pos)
	fileRemaining := s.file.Length() - pos

	max := fileRemaining
	if pieceRemaining < max {
		max = pieceRemaining
	}
	if int64(want) < max {
		max = int64(want)
	}
	if max < 0 {
		max = 0
	}
	return int(max)
}

func (s *LocalStream) piecelen() int64 { return s.torrent.PieceLength() }

// waitForPiece blocks until piece is Have, ctx is cancelled, or the
// stream is disposed, re-checking Have on every notifier tick rather than
// trusting the delivered piece index (spec §9 "plain broadcast").
func (s *LocalStream) waitForPiece(ctx context.Context, piece int) error {
	ch, cancel := s.notifier.Subscribe()
	defer cancel()

	for {
		if s.torrent.Have(piece) {
			return nil
		}
		select {
		case <-ctx.Done():
			return newErr(KindCancelled, "read", ctx.Err())
		case <-s.closeCh:
			return newErr(KindCancelled, "read", nil)
		case <-ch:
			// re-check Have at the top of the loop
		}
	}
}

// Dispose releases the stream. Idempotent: calling it more than once, or
// concurrently with an in-flight Read, is safe — every suspended Read
// wakes with a cancelled result and every subsequent Read/Seek returns
// KindInvalidState/KindCancelled. Clears the owning provider's
// active-stream slot exactly once.
func (s *LocalStream) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	close(s.closeCh)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveStreams.Dec()
	}
	if s.onDispose != nil {
		s.onDispose()
	}
	s.log.Debug("stream disposed")
}

// SetFormatHint forwards a container-format hint to the underlying
// picker/window (spec-full §4.6).
func (s *LocalStream) SetFormatHint(info *format.Info) {
	s.picker.SetFormatHint(info)
}

// startFormatDetection kicks off detectFormat exactly once per stream, on
// the first Read, mirroring the teacher's PriorityReader.startFormatDetection.
func (s *LocalStream) startFormatDetection() {
	s.formatOnce.Do(func() {
		go s.detectFormat()
	})
}

// detectFormat sniffs the file's container format in the background and
// feeds the result into the picker/window so later urgent-band sizing can
// account for a moov/footer atom (spec-full §4.6). It reads through
// waitForPiece so it never violates Torrent.ReadAt's Have precondition,
// which means it can block for a long time on a cold torrent; that's why
// it runs off the calling goroutine rather than inline in Read.
func (s *LocalStream) detectFormat() {
	info := format.Detect(&formatDetectReaderAt{stream: s}, s.file.Length(), s.file.Path())
	select {
	case <-s.closeCh:
		return
	default:
	}
	s.SetFormatHint(info)
	s.log.Debug("format detected", "format", info.Format)
}

// formatDetectReaderAt adapts LocalStream into an io.ReaderAt for format
// sniffing, waiting for each piece to verify before reading it so it never
// breaks Torrent.ReadAt's "only call on Have pieces" precondition.
type formatDetectReaderAt struct {
	stream *LocalStream
}

func (r *formatDetectReaderAt) ReadAt(p []byte, off int64) (int, error) {
	s := r.stream
	if off < 0 || off >= s.file.Length() {
		return 0, io.EOF
	}

	piece := byteToPiece(s.piecelen(), s.file.Offset()+off)
	if !s.torrent.Have(piece) {
		if err := s.waitForPiece(context.Background(), piece); err != nil {
			return 0, err
		}
	}

	n := s.clampToPieceAndFile(off, piece, len(p))
	if n == 0 {
		return 0, io.EOF
	}
	return s.torrent.ReadAt(context.Background(), p[:n], s.file.Offset()+off)
}
