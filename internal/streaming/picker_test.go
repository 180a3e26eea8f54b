package streaming

import "testing"

// fakeBasePicker is a minimal BasePicker recording what it was asked for,
// restricted to whatever candidate set PickPieces receives.
type fakeBasePicker struct {
	have        map[int]bool
	requested   []map[int]bool
	cancelled   []Request
	resetCalled bool
}

func newFakeBasePicker() *fakeBasePicker {
	return &fakeBasePicker{have: make(map[int]bool)}
}

func (f *fakeBasePicker) PickPieces(peer PeerHandle, allowed map[int]bool, count int) []Request {
	f.requested = append(f.requested, allowed)

	var out []Request
	tryPiece := func(piece int) bool {
		if f.have[piece] {
			return false
		}
		if len(out) >= count {
			return true
		}
		out = append(out, Request{Piece: piece, Begin: 0, Length: 16 * 1024})
		return len(out) >= count
	}

	if allowed != nil {
		for piece, ok := range allowed {
			if ok && tryPiece(piece) {
				break
			}
		}
		return out
	}
	for piece := 0; piece < 1000; piece++ {
		if tryPiece(piece) {
			break
		}
	}
	return out
}

func (f *fakeBasePicker) ContinueExistingRequest(peer PeerHandle, piece int) []Request { return nil }
func (f *fakeBasePicker) IsInteresting(peer PeerHandle) bool                           { return true }
func (f *fakeBasePicker) AlreadyRequestedBlock(r Request) bool                         { return false }

func (f *fakeBasePicker) CancelRequest(r Request) bool {
	f.cancelled = append(f.cancelled, r)
	return true
}

func (f *fakeBasePicker) ReceivedBlock(r Request) {}

func (f *fakeBasePicker) Reset() { f.resetCalled = true }

func TestStreamingPickerBiasesTowardUrgentBand(t *testing.T) {
	base := newFakeBasePicker()
	win := NewPieceWindow(1<<20, 0, 20<<20, 20, DefaultConfig())
	p := NewStreamingPicker(base, win)

	reqs := p.PickPieces(nil, nil, 2)
	if len(reqs) != 2 {
		t.Fatalf("PickPieces returned %d requests, want 2", len(reqs))
	}
	for _, r := range reqs {
		if r.Piece < 0 || r.Piece > 4 {
			t.Errorf("request for piece %d, want within Urgent band [0,4]", r.Piece)
		}
	}
}

func TestStreamingPickerFallsThroughWhenWindowExhausted(t *testing.T) {
	base := newFakeBasePicker()
	// Mark every piece in Urgent+Prefetch as already Have, so the window
	// bands yield nothing and PickPieces must fall through unrestricted.
	for i := 0; i <= 19; i++ {
		base.have[i] = true
	}
	win := NewPieceWindow(1<<20, 0, 30<<20, 30, DefaultConfig())
	p := NewStreamingPicker(base, win)

	reqs := p.PickPieces(nil, nil, 1)
	if len(reqs) != 1 {
		t.Fatalf("PickPieces returned %d requests, want 1", len(reqs))
	}
	if reqs[0].Piece < 20 {
		t.Errorf("expected fallthrough to piece >= 20, got %d", reqs[0].Piece)
	}
}

func TestStreamingPickerNilWindowPassesThrough(t *testing.T) {
	base := newFakeBasePicker()
	p := NewStreamingPicker(base, nil)

	reqs := p.PickPieces(nil, nil, 1)
	if len(reqs) != 1 {
		t.Fatalf("PickPieces returned %d requests, want 1", len(reqs))
	}

	// SeekToPosition and SetFormatHint must be safe no-ops with no window.
	if got := p.SeekToPosition(nil, 100); got != nil {
		t.Errorf("SeekToPosition with nil window returned %v, want nil", got)
	}
	p.SetFormatHint(nil)
}

func TestStreamingPickerSeekCancelsOutOfWindowRequests(t *testing.T) {
	base := newFakeBasePicker()
	win := NewPieceWindow(1<<20, 0, 30<<20, 30, DefaultConfig())
	p := NewStreamingPicker(base, win)

	reqs := p.PickPieces(nil, nil, 1)
	if len(reqs) != 1 {
		t.Fatalf("setup: PickPieces returned %d, want 1", len(reqs))
	}

	p.SeekToPosition(nil, 16<<20)

	if len(base.cancelled) != 1 {
		t.Fatalf("expected 1 cancelled request after seek, got %d", len(base.cancelled))
	}
	if base.cancelled[0] != reqs[0] {
		t.Errorf("cancelled %v, want %v", base.cancelled[0], reqs[0])
	}
}

func TestStreamingPickerSeekKeepsStillUrgentRequests(t *testing.T) {
	base := newFakeBasePicker()
	win := NewPieceWindow(1<<20, 0, 30<<20, 30, DefaultConfig())
	p := NewStreamingPicker(base, win)

	base.have[0] = true
	reqs := p.PickPieces(nil, nil, 1) // picks one of pieces 1-4, all still within Urgent [1,5] after a small seek
	if len(reqs) != 1 {
		t.Fatalf("setup: PickPieces returned %d, want 1", len(reqs))
	}

	p.SeekToPosition(nil, 1<<20) // head moves to piece 1; piece 1 stays Urgent

	if len(base.cancelled) != 0 {
		t.Errorf("expected no cancellations, got %v", base.cancelled)
	}
}

func TestStreamingPickerForwardsBookkeeping(t *testing.T) {
	base := newFakeBasePicker()
	p := NewStreamingPicker(base, nil)

	if !p.IsInteresting(nil) {
		t.Error("IsInteresting forwarded incorrectly")
	}
	if p.AlreadyRequestedBlock(Request{}) {
		t.Error("AlreadyRequestedBlock forwarded incorrectly")
	}
	p.ReceivedBlock(Request{Piece: 1})
	p.Reset()
	if !base.resetCalled {
		t.Error("Reset was not forwarded to base picker")
	}
}
