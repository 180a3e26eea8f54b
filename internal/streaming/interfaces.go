package streaming

import "context"

// Priority is the priority band the streaming picker assigns to a piece.
// Base pickers are free to interpret these however they rank pieces
// internally; the streaming picker only relies on the ordering Urgent >
// Prefetch > Normal.
type Priority int

const (
	Normal Priority = iota
	Prefetch
	Urgent
)

// File is a single file inside a torrent, read-only from the core's
// perspective. Offset/Length never change for the lifetime of a torrent.
type File interface {
	// Path is the file's path within the torrent, used only for logging
	// and format sniffing (extension hints).
	Path() string
	// Offset is the file's first byte's absolute offset within the torrent.
	Offset() int64
	// Length is the file's length in bytes.
	Length() int64
}

// Torrent is the read-only torrent geometry and piece-verification surface
// the core depends on (spec §3 "Torrent geometry", "Download bitmap").
type Torrent interface {
	// PieceLength is the nominal piece length P. The last piece may be
	// shorter; callers must clamp against NumPieces/Length themselves.
	PieceLength() int64
	// NumPieces is the total number of pieces, ceil(L/P).
	NumPieces() int
	// Have reports whether piece i has been received and hash-verified.
	Have(i int) bool
	// ReadAt reads already-verified bytes at an absolute torrent offset.
	// It must not be called for bytes in a piece for which Have is false.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
}

// Notifier is a single broadcast "piece verified" signal. Subscribe
// returns a channel that receives a value (the verified piece index) each
// time a piece finishes verifying; callers re-check Have after every
// receive rather than trusting the delivered index is the one they were
// waiting on (this keeps the notifier a plain broadcast, with no per-piece
// bookkeeping on the core side, per spec §9).
type Notifier interface {
	Subscribe() (ch <-chan int, cancel func())
}

// Engine is the surrounding download engine the core depends on for
// lifecycle (spec §6 "Consumed from the engine").
type Engine interface {
	// Contains reports whether infohash is already registered with the
	// engine, under any provider.
	Contains(infohash string) bool
	// Register adds torrent to the engine. Idempotent.
	Register(ctx context.Context, t Torrent) error
	// Unregister removes torrent from the engine. Idempotent.
	Unregister(ctx context.Context, t Torrent) error
	// Start begins downloading/seeding.
	Start(ctx context.Context, t Torrent) error
	// Pause halts hashing/downloading/seeding without unregistering.
	Pause(ctx context.Context, t Torrent) error
	// Resume undoes Pause.
	Resume(ctx context.Context, t Torrent) error
	// Stop halts the torrent terminally for this session.
	Stop(ctx context.Context, t Torrent) error
	// ChangePicker installs picker on t. Must be called before Start.
	ChangePicker(t Torrent, picker BasePicker) error
	// Notifier returns the per-torrent piece-verified broadcast.
	Notifier(t Torrent) Notifier
}

// PeerHandle identifies one connected peer for the purposes of §4.2's
// per-peer request generation. Base pickers key their per-peer state (choke
// state, in-flight requests, have-set) by this handle; the streaming
// decorator treats it as opaque.
type PeerHandle interface{}

// BasePicker is the general-purpose piece-selection policy the streaming
// picker decorates (spec §4.2). It is an external collaborator: the core
// never second-guesses its choices among a restricted candidate set, only
// narrows that set before delegating.
//
// BasePicker implementations are not required to be safe for concurrent
// use; the core only calls them from the torrent's single-threaded main
// loop (spec §5).
type BasePicker interface {
	// PickPieces asks for up to count block requests, restricted to
	// pieces in allowed (if allowed is non-nil) that peer is known to
	// have and that are not already Have. A nil allowed means no
	// restriction. Returns fewer than count (possibly zero) if no more
	// eligible blocks exist; never blocks.
	PickPieces(peer PeerHandle, allowed map[int]bool, count int) []Request
	// ContinueExistingRequest extends a request already in flight for
	// peer for more blocks of the same piece, if the base picker's
	// policy allows it (e.g. endgame duplication).
	ContinueExistingRequest(peer PeerHandle, piece int) []Request
	// IsInteresting reports whether peer has any piece this picker would
	// still request.
	IsInteresting(peer PeerHandle) bool
	// AlreadyRequestedBlock reports whether r has already been requested
	// from some peer.
	AlreadyRequestedBlock(r Request) bool
	// CancelRequest withdraws a previously issued request, e.g. because
	// it fell out of the streaming window on seek.
	CancelRequest(r Request) bool
	// ReceivedBlock informs the base picker that a block has arrived
	// (the piece may or may not be complete/verified yet).
	ReceivedBlock(r Request)
	// Reset drops all per-peer and per-request state, e.g. on peer
	// disconnect or torrent restart.
	Reset()
}

// Request identifies a single block request on the wire.
type Request struct {
	Piece  int
	Begin  int64 // byte offset within the piece
	Length int64
}
