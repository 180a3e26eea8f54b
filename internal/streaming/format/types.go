// Package format sniffs a streamed file's container format so the streaming
// core can widen its priority window to cover metadata that playback cannot
// start without (an MP4 moov atom, which may sit at the end of the file).
// MKV detection yields only a header-size estimate and no critical range.
package format

// Kind identifies a detected container format.
type Kind int

const (
	Unknown Kind = iota
	MP4
	MKV
	Other
)

// String returns a human-readable format name.
func (k Kind) String() string {
	switch k {
	case MP4:
		return "MP4"
	case MKV:
		return "MKV"
	case Other:
		return "Other"
	default:
		return "Unknown"
	}
}

// Info carries format-specific priority hints back to the streaming core.
type Info struct {
	Format      Kind
	MoovOffset  int64 // MP4: offset of moov atom (0 if no moov was found)
	MoovSize    int64 // MP4: size of moov atom
	HeaderSize  int64 // recommended header bytes to prioritize
	NeedsFooter bool  // whether footer contains important metadata
}

// CriticalRange returns the byte range, if any, that playback cannot start
// without: the MP4 moov atom, wherever the analyzer located it (for a
// trailing moov this lies outside the head-relative header window). ok is
// false for non-MP4 formats and for an MP4 Info with no located moov.
func (i *Info) CriticalRange() (start, end int64, ok bool) {
	if i == nil {
		return 0, 0, false
	}
	if i.Format == MP4 && i.MoovOffset > 0 && i.MoovSize > 0 {
		return i.MoovOffset, i.MoovOffset + i.MoovSize, true
	}
	return 0, 0, false
}
