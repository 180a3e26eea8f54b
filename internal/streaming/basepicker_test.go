package streaming

import "testing"

func TestRarestFirstPickerPrefersLowerIndexOverRarity(t *testing.T) {
	tt := newFakeTorrent(1<<20, 3<<20) // 3 pieces
	p := NewRarestFirstPicker(tt, 16*1024)

	p.SetAvailability(0, 5)
	p.SetAvailability(1, 1) // rarest, but higher index than 0
	p.SetAvailability(2, 3)

	reqs := p.PickPieces(nil, nil, 1)
	if len(reqs) != 1 {
		t.Fatalf("PickPieces returned %d, want 1", len(reqs))
	}
	if reqs[0].Piece != 0 {
		t.Errorf("picked piece %d, want 0 (lowest index, per spec §4.1 index beats rarity)", reqs[0].Piece)
	}
}

func TestRarestFirstPickerSkipsHavePieces(t *testing.T) {
	tt := newFakeTorrent(1<<20, 2<<20)
	tt.MarkHave(0)
	p := NewRarestFirstPicker(tt, 16*1024)

	reqs := p.PickPieces(nil, nil, 5)
	for _, r := range reqs {
		if r.Piece == 0 {
			t.Errorf("picked already-Have piece 0")
		}
	}
}

func TestRarestFirstPickerNeverDoubleRequestsSameBlock(t *testing.T) {
	tt := newFakeTorrent(32*1024, 32*1024) // one piece, two 16KiB blocks
	p := NewRarestFirstPicker(tt, 16*1024)

	first := p.PickPieces(nil, nil, 1)
	second := p.PickPieces(nil, nil, 1)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one request per call, got %d and %d", len(first), len(second))
	}
	if first[0] == second[0] {
		t.Errorf("second PickPieces re-issued the same block %v", first[0])
	}
}

func TestRarestFirstPickerCancelRequestAllowsReissue(t *testing.T) {
	tt := newFakeTorrent(16*1024, 16*1024)
	p := NewRarestFirstPicker(tt, 16*1024)

	reqs := p.PickPieces(nil, nil, 1)
	if len(reqs) != 1 {
		t.Fatalf("setup: PickPieces returned %d, want 1", len(reqs))
	}

	if !p.CancelRequest(reqs[0]) {
		t.Fatal("CancelRequest returned false for an in-flight request")
	}
	if p.AlreadyRequestedBlock(reqs[0]) {
		t.Error("AlreadyRequestedBlock true after CancelRequest")
	}

	again := p.PickPieces(nil, nil, 1)
	if len(again) != 1 || again[0] != reqs[0] {
		t.Errorf("expected cancelled request to be reissuable, got %v", again)
	}
}

func TestRarestFirstPickerIsInterestingReflectsHaveState(t *testing.T) {
	tt := newFakeTorrent(1<<20, 1<<20)
	p := NewRarestFirstPicker(tt, 16*1024)

	if !p.IsInteresting(nil) {
		t.Error("IsInteresting should be true while any piece is missing")
	}

	tt.MarkHave(0)
	if p.IsInteresting(nil) {
		t.Error("IsInteresting should be false once every piece is Have")
	}
}

func TestRarestFirstPickerResetClearsInFlightState(t *testing.T) {
	tt := newFakeTorrent(16*1024, 16*1024)
	p := NewRarestFirstPicker(tt, 16*1024)

	reqs := p.PickPieces(nil, nil, 1)
	if len(reqs) != 1 {
		t.Fatalf("setup: PickPieces returned %d, want 1", len(reqs))
	}

	p.Reset()

	if p.AlreadyRequestedBlock(reqs[0]) {
		t.Error("AlreadyRequestedBlock true after Reset")
	}
}
