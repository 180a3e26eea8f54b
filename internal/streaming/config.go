package streaming

// Config holds the tunables for the streaming piece window (spec §3
// "PieceWindow"). Mirrors the teacher's streaming.Config shape, renamed to
// the spec's own field names.
type Config struct {
	// HighPriorityCount is the number of pieces starting at head_piece
	// that are Urgent. Spec default: 5.
	HighPriorityCount int
	// LookAheadCount is the number of additional pieces after the
	// high-priority window that are Prefetch. Spec default: 15.
	LookAheadCount int
}

// DefaultConfig returns the spec's default window sizing.
func DefaultConfig() Config {
	return Config{
		HighPriorityCount: 5,
		LookAheadCount:    15,
	}
}

// IsZero reports whether cfg has no values set (the zero Config), in which
// case callers should substitute DefaultConfig().
func (c Config) IsZero() bool {
	return c.HighPriorityCount == 0 && c.LookAheadCount == 0
}
