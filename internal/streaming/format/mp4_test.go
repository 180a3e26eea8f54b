package format

import (
	"bytes"
	"testing"
)

type bytesReaderAt struct {
	data []byte
}

func (r *bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(r.data).ReadAt(p, off)
}

func atom(kind string, payload []byte) []byte {
	size := uint32(8 + len(payload))
	buf := make([]byte, 8)
	buf[0] = byte(size >> 24)
	buf[1] = byte(size >> 16)
	buf[2] = byte(size >> 8)
	buf[3] = byte(size)
	copy(buf[4:8], kind)
	return append(buf, payload...)
}

func TestMP4AnalyzerFastStartMoov(t *testing.T) {
	var data []byte
	data = append(data, atom("ftyp", make([]byte, 16))...)
	data = append(data, atom("moov", make([]byte, 32))...)
	data = append(data, atom("mdat", make([]byte, 1024))...)

	a := NewMP4Analyzer(&bytesReaderAt{data: data}, int64(len(data)))
	info, err := a.Analyze()
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if info.Format != MP4 {
		t.Fatalf("Format = %v, want MP4", info.Format)
	}
	if info.NeedsFooter {
		t.Error("fast-start moov should not need footer priority")
	}
	if info.MoovOffset != 24 { // after the 24-byte ftyp atom
		t.Errorf("MoovOffset = %d, want 24", info.MoovOffset)
	}
}

func TestMP4AnalyzerTrailingMoovNeedsFooter(t *testing.T) {
	var data []byte
	data = append(data, atom("ftyp", make([]byte, 16))...)
	data = append(data, atom("mdat", make([]byte, 60*1024*1024))...)
	data = append(data, atom("moov", make([]byte, 4096))...)

	a := NewMP4Analyzer(&bytesReaderAt{data: data}, int64(len(data)))
	info, err := a.Analyze()
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !info.NeedsFooter {
		t.Error("trailing moov should need footer priority")
	}
	if info.MoovOffset <= info.HeaderSize {
		t.Errorf("MoovOffset = %d, want beyond HeaderSize (%d)", info.MoovOffset, info.HeaderSize)
	}
}

func TestMP4AnalyzerRejectsNonMP4(t *testing.T) {
	data := []byte("this is not an mp4 file at all!!")
	a := NewMP4Analyzer(&bytesReaderAt{data: data}, int64(len(data)))
	if _, err := a.Analyze(); err != ErrNotMP4 {
		t.Fatalf("Analyze on non-MP4 data = %v, want ErrNotMP4", err)
	}
}

func TestInfoCriticalRangeOnlyWithLocatedMoov(t *testing.T) {
	info := &Info{Format: MP4, MoovOffset: 100, MoovSize: 50}
	start, end, ok := info.CriticalRange()
	if !ok || start != 100 || end != 150 {
		t.Fatalf("CriticalRange() = %d,%d,%v, want 100,150,true", start, end, ok)
	}

	info2 := &Info{Format: MP4}
	if _, _, ok := info2.CriticalRange(); ok {
		t.Error("CriticalRange() should be false with no moov offset")
	}

	var nilInfo *Info
	if _, _, ok := nilInfo.CriticalRange(); ok {
		t.Error("CriticalRange() on nil Info should be false")
	}
}
