package streaming

import "github.com/shapedtime/streamcore/internal/streaming/format"

// PieceWindow computes, for a byte offset within a streamed file, the
// contiguous piece range that should be prioritized and the ordering
// within it (spec §3/§4.1).
//
// A PieceWindow is owned exclusively by a StreamingPicker and is not safe
// for concurrent use; callers serialize access themselves (spec §5, the
// engine's single-threaded main loop).
type PieceWindow struct {
	pieceLength int64

	// firstPiece/lastPiece is the file's piece range, inclusive both
	// ends. Fixed for the lifetime of the window.
	firstPiece int
	lastPiece  int

	fileOffset int64
	fileLength int64

	headPiece int

	highPriorityCount int
	lookAheadCount    int

	// critical is an optional extra Urgent range (e.g. a trailing MP4
	// moov atom) set by SetFormatHint. It is unioned with the
	// head-relative Urgent band regardless of head_piece.
	hasCritical   bool
	criticalStart int
	criticalEnd   int // exclusive
}

// NewPieceWindow builds the window for one file of one torrent.
func NewPieceWindow(pieceLength int64, fileOffset, fileLength int64, numPieces int, cfg Config) *PieceWindow {
	if cfg.IsZero() {
		cfg = DefaultConfig()
	}

	first := byteToPiece(pieceLength, fileOffset)
	last := byteToPiece(pieceLength, fileOffset+fileLength-1)
	if fileLength <= 0 {
		last = first
	}
	if last >= numPieces {
		last = numPieces - 1
	}
	if last < first {
		last = first
	}

	return &PieceWindow{
		pieceLength:       pieceLength,
		firstPiece:        first,
		lastPiece:         last,
		fileOffset:        fileOffset,
		fileLength:        fileLength,
		headPiece:         first,
		highPriorityCount: cfg.HighPriorityCount,
		lookAheadCount:    cfg.LookAheadCount,
	}
}

func byteToPiece(pieceLength, offset int64) int {
	if pieceLength <= 0 {
		return 0
	}
	return int(offset / pieceLength)
}

// SeekTo recomputes head_piece for a new byte offset within the file,
// clamped to the file's piece range (spec §4.1). It is the only input
// that moves the window.
func (w *PieceWindow) SeekTo(byteOffset int64) {
	if byteOffset < 0 {
		byteOffset = 0
	}
	if byteOffset > w.fileLength {
		byteOffset = w.fileLength
	}
	abs := w.fileOffset + byteOffset
	if byteOffset == w.fileLength && byteOffset > 0 {
		abs--
	}
	p := byteToPiece(w.pieceLength, abs)
	w.headPiece = clamp(p, w.firstPiece, w.lastPiece)
}

// SetFormatHint folds a container's trailing-metadata range (e.g. an MP4
// moov atom at EOF) into the Urgent band, in addition to whatever the
// current head position covers. Clears the hint when info carries no
// critical range.
func (w *PieceWindow) SetFormatHint(info *format.Info) {
	start, end, ok := info.CriticalRange()
	if !ok {
		w.hasCritical = false
		return
	}
	w.criticalStart = clamp(byteToPiece(w.pieceLength, w.fileOffset+start), w.firstPiece, w.lastPiece)
	w.criticalEnd = clamp(byteToPiece(w.pieceLength, w.fileOffset+end-1)+1, w.firstPiece, w.lastPiece+1)
	w.hasCritical = w.criticalEnd > w.criticalStart
}

// HeadPiece returns the piece containing the reader's current position.
func (w *PieceWindow) HeadPiece() int { return w.headPiece }

// FileRange returns the file's inclusive piece range.
func (w *PieceWindow) FileRange() (first, last int) { return w.firstPiece, w.lastPiece }

// PriorityOf classifies piece i per spec §4.1.
func (w *PieceWindow) PriorityOf(i int) Priority {
	if i > w.lastPiece || i < w.firstPiece {
		return Normal
	}
	if w.hasCritical && i >= w.criticalStart && i < w.criticalEnd {
		return Urgent
	}
	urgentEnd := w.headPiece + w.highPriorityCount
	if i >= w.headPiece && i < urgentEnd {
		return Urgent
	}
	prefetchEnd := urgentEnd + w.lookAheadCount
	if i >= urgentEnd && i < prefetchEnd {
		return Prefetch
	}
	return Normal
}

// UrgentRange returns the Urgent band as [start, end) piece indices,
// clamped to the file's range. Does not include any format-hint critical
// range that lies outside the head-relative band — callers that need the
// full Urgent set should use ForEachUrgent.
func (w *PieceWindow) UrgentRange() (start, end int) {
	start = w.headPiece
	end = clamp(w.headPiece+w.highPriorityCount, w.firstPiece, w.lastPiece+1)
	if start > end {
		start = end
	}
	return
}

// PrefetchRange returns the Prefetch band as [start, end) piece indices.
func (w *PieceWindow) PrefetchRange() (start, end int) {
	_, urgentEnd := w.UrgentRange()
	start = urgentEnd
	end = clamp(urgentEnd+w.lookAheadCount, w.firstPiece, w.lastPiece+1)
	if start > end {
		start = end
	}
	return
}

// ForEachUrgent calls fn for every piece index currently Urgent, in
// priority order (lowest index first), including any format-hint critical
// range.
func (w *PieceWindow) ForEachUrgent(fn func(piece int)) {
	start, end := w.UrgentRange()
	for i := start; i < end; i++ {
		fn(i)
	}
	if w.hasCritical {
		for i := w.criticalStart; i < w.criticalEnd; i++ {
			if i >= start && i < end {
				continue
			}
			fn(i)
		}
	}
}

// ForEachPrefetch calls fn for every piece index currently Prefetch, in
// priority order (lowest index first).
func (w *PieceWindow) ForEachPrefetch(fn func(piece int)) {
	start, end := w.PrefetchRange()
	for i := start; i < end; i++ {
		fn(i)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
