package streaming

import (
	"sort"
	"sync"

	"github.com/anacrolix/multiless"
)

// RarestFirstPicker is a minimal reference BasePicker (spec §4.2, §4.1,
// §6): among a candidate set of pieces it requests the lowest-index
// piece first, ties broken by rarest-first availability — matching
// spec §4.1's "within Urgent, lower piece index has higher priority;
// ties are broken by the base picker's own policy, typically
// rarest-first" — using the same tie-break ladder the pack's
// request-strategy implementations build with
// github.com/anacrolix/multiless. It exists so the module has something
// concrete to plug into StreamingPicker outside of tests; production
// users are free to substitute whatever policy the surrounding engine
// already has (endgame, choke-aware, etc).
//
// Safe for concurrent use, but StreamingPicker only ever calls it from
// the torrent's single-threaded main loop (spec §5).
type RarestFirstPicker struct {
	mu sync.Mutex

	t           Torrent
	blockLength int64

	// availability[piece] is the number of peers known to have piece, as
	// recorded through SetAvailability. Pieces absent from the map are
	// treated as availability zero (never seen).
	availability map[int]int

	// requested tracks in-flight block requests so the same byte range
	// of a piece is never requested twice concurrently.
	requested map[Request]PeerHandle
}

// NewRarestFirstPicker creates a picker over t's pieces.
func NewRarestFirstPicker(t Torrent, blockLength int64) *RarestFirstPicker {
	return &RarestFirstPicker{
		t:            t,
		blockLength:  blockLength,
		availability: make(map[int]int),
		requested:    make(map[Request]PeerHandle),
	}
}

// SetAvailability records how many peers are known to have piece. Not part
// of the BasePicker interface; the engine adapter in internal/engine does
// not call it, so availability stays zero there.
func (p *RarestFirstPicker) SetAvailability(piece, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.availability[piece] = count
}

func (p *RarestFirstPicker) PickPieces(peer PeerHandle, allowed map[int]bool, count int) []Request {
	if count <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := p.candidatePieces(allowed)
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		return multiless.New().
			Int(a, b).
			Int(p.availability[a], p.availability[b]).
			MustLess()
	})

	var out []Request
	for _, piece := range candidates {
		if len(out) >= count {
			break
		}
		if r, ok := p.nextBlock(piece); ok {
			p.requested[r] = peer
			out = append(out, r)
		}
	}
	return out
}

func (p *RarestFirstPicker) candidatePieces(allowed map[int]bool) []int {
	var out []int
	if allowed != nil {
		for piece, ok := range allowed {
			if ok && !p.t.Have(piece) {
				out = append(out, piece)
			}
		}
		return out
	}
	for i := 0; i < p.t.NumPieces(); i++ {
		if !p.t.Have(i) {
			out = append(out, i)
		}
	}
	return out
}

// nextBlock finds the first not-yet-requested block offset within piece.
func (p *RarestFirstPicker) nextBlock(piece int) (Request, bool) {
	pieceLen := p.t.PieceLength()
	for off := int64(0); off < pieceLen; off += p.blockLength {
		length := p.blockLength
		if off+length > pieceLen {
			length = pieceLen - off
		}
		r := Request{Piece: piece, Begin: off, Length: length}
		if _, inFlight := p.requested[r]; !inFlight {
			return r, true
		}
	}
	return Request{}, false
}

func (p *RarestFirstPicker) ContinueExistingRequest(peer PeerHandle, piece int) []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.t.Have(piece) {
		return nil
	}
	if r, ok := p.nextBlock(piece); ok {
		p.requested[r] = peer
		return []Request{r}
	}
	return nil
}

func (p *RarestFirstPicker) IsInteresting(peer PeerHandle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < p.t.NumPieces(); i++ {
		if !p.t.Have(i) {
			return true
		}
	}
	return false
}

func (p *RarestFirstPicker) AlreadyRequestedBlock(r Request) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.requested[r]
	return ok
}

func (p *RarestFirstPicker) CancelRequest(r Request) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.requested[r]; !ok {
		return false
	}
	delete(p.requested, r)
	return true
}

func (p *RarestFirstPicker) ReceivedBlock(r Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.requested, r)
}

func (p *RarestFirstPicker) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requested = make(map[Request]PeerHandle)
}

var _ BasePicker = (*RarestFirstPicker)(nil)
