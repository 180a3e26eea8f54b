package streaming

import "testing"

func TestByteToPiece(t *testing.T) {
	tests := []struct {
		name        string
		pieceLength int64
		offset      int64
		want        int
	}{
		{"start of first piece", 1024, 0, 0},
		{"end of first piece", 1024, 1023, 0},
		{"start of second piece", 1024, 1024, 1},
		{"large offset", 1024 * 1024, 10*1024*1024 + 500, 10},
		{"zero piece length", 0, 1000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := byteToPiece(tt.pieceLength, tt.offset); got != tt.want {
				t.Errorf("byteToPiece(%d, %d) = %d, want %d", tt.pieceLength, tt.offset, got, tt.want)
			}
		})
	}
}

func TestPieceWindowInitialRange(t *testing.T) {
	// 20 pieces total, file spans pieces 0-19 (matching the spec's worked
	// example: a 20-piece file with defaults 5/15).
	w := NewPieceWindow(1<<20, 0, 20<<20, 20, DefaultConfig())

	first, last := w.FileRange()
	if first != 0 || last != 19 {
		t.Fatalf("FileRange() = %d,%d, want 0,19", first, last)
	}
	if w.HeadPiece() != 0 {
		t.Fatalf("HeadPiece() = %d, want 0", w.HeadPiece())
	}

	for i := 0; i <= 4; i++ {
		if got := w.PriorityOf(i); got != Urgent {
			t.Errorf("PriorityOf(%d) = %v, want Urgent", i, got)
		}
	}
	for i := 5; i <= 19; i++ {
		if got := w.PriorityOf(i); got != Prefetch {
			t.Errorf("PriorityOf(%d) = %v, want Prefetch", i, got)
		}
	}
}

func TestPieceWindowSequentialAdvance(t *testing.T) {
	w := NewPieceWindow(1<<20, 0, 30<<20, 30, DefaultConfig())

	w.SeekTo(3 << 20) // byte offset into piece 3
	if w.HeadPiece() != 3 {
		t.Fatalf("HeadPiece() = %d, want 3", w.HeadPiece())
	}
	for i := 3; i <= 7; i++ {
		if got := w.PriorityOf(i); got != Urgent {
			t.Errorf("PriorityOf(%d) = %v, want Urgent", i, got)
		}
	}
	if got := w.PriorityOf(2); got != Normal {
		t.Errorf("PriorityOf(2) = %v, want Normal (fell behind head)", got)
	}
}

func TestPieceWindowForwardSeek(t *testing.T) {
	w := NewPieceWindow(1<<20, 0, 30<<20, 30, DefaultConfig())

	w.SeekTo(16 << 20)
	if w.HeadPiece() != 16 {
		t.Fatalf("HeadPiece() = %d, want 16", w.HeadPiece())
	}

	start, end := w.UrgentRange()
	if start != 16 || end != 21 {
		t.Fatalf("UrgentRange() = %d,%d, want 16,21", start, end)
	}
}

func TestPieceWindowBackwardSeek(t *testing.T) {
	w := NewPieceWindow(1<<20, 0, 30<<20, 30, DefaultConfig())

	w.SeekTo(16 << 20)
	w.SeekTo(2 << 20)

	if w.HeadPiece() != 2 {
		t.Fatalf("HeadPiece() = %d, want 2", w.HeadPiece())
	}
	if got := w.PriorityOf(16); got != Prefetch {
		t.Errorf("PriorityOf(16) = %v, want Prefetch (no longer Urgent) after seeking back", got)
	}
}

func TestPieceWindowClampsToFileRange(t *testing.T) {
	// File occupies only pieces 2-4 of a larger torrent.
	w := NewPieceWindow(1<<20, 2<<20, 3<<20, 30, Config{HighPriorityCount: 5, LookAheadCount: 15})

	first, last := w.FileRange()
	if first != 2 || last != 4 {
		t.Fatalf("FileRange() = %d,%d, want 2,4", first, last)
	}

	start, end := w.UrgentRange()
	if start != 2 || end != 5 {
		t.Errorf("UrgentRange() = %d,%d, want 2,5 (clamped to file end)", start, end)
	}
	pStart, pEnd := w.PrefetchRange()
	if pStart != 5 || pEnd != 5 {
		t.Errorf("PrefetchRange() = %d,%d, want 5,5 (empty, beyond file)", pStart, pEnd)
	}
}

func TestPieceWindowSeekClampsToFileLength(t *testing.T) {
	w := NewPieceWindow(1<<20, 0, 10<<20, 10, DefaultConfig())

	w.SeekTo(-5)
	if w.HeadPiece() != 0 {
		t.Errorf("SeekTo(negative) HeadPiece() = %d, want 0", w.HeadPiece())
	}

	w.SeekTo(1000 << 20)
	if w.HeadPiece() != 9 {
		t.Errorf("SeekTo(past end) HeadPiece() = %d, want 9 (last piece)", w.HeadPiece())
	}
}

func TestForEachUrgentOrder(t *testing.T) {
	w := NewPieceWindow(1<<20, 0, 20<<20, 20, DefaultConfig())

	var seen []int
	w.ForEachUrgent(func(piece int) { seen = append(seen, piece) })

	want := []int{0, 1, 2, 3, 4}
	if len(seen) != len(want) {
		t.Fatalf("ForEachUrgent visited %v, want %v", seen, want)
	}
	for i, p := range seen {
		if p != want[i] {
			t.Errorf("ForEachUrgent()[%d] = %d, want %d", i, p, want[i])
		}
	}
}
