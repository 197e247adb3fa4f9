package gcm

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/hansbonini/gcmtools/pkg/common"
)

// DOL header layout constants
const (
	TextSegCount  = 7
	DataSegCount  = 11
	TotalSegCount = TextSegCount + DataSegCount

	DOLHeaderLen = 0x100
)

// SegmentType distinguishes text from data segments
type SegmentType int

const (
	TextSegment SegmentType = iota
	DataSegment
)

// Segment is one loadable region of the DOL executable.
// Offset is absolute within the image, not relative to the DOL header
// (the on-disk value is relative; the DOL offset is added during decode).
type Segment struct {
	Offset      uint64
	Size        uint64
	LoadAddress uint64
	Type        SegmentType
	Num         int
}

// String returns the conventional segment name, e.g. ".text0" or ".data3"
func (s *Segment) String() string {
	if s.Type == TextSegment {
		return fmt.Sprintf(".text%d", s.Num)
	}
	return fmt.Sprintf(".data%d", s.Num)
}

// Name implements the layout Section name for the segment
func (s *Segment) Name() string {
	return s.String()
}

// Start implements the layout Section start offset
func (s *Segment) Start() uint64 {
	return s.Offset
}

// Len implements the layout Section byte length
func (s *Segment) Len() uint64 {
	return s.Size
}

// ParseSegmentName parses ".textN"/".dataN" into a type and number
func ParseSegmentName(name string) (SegmentType, int, bool) {
	var segType SegmentType
	var suffix string
	switch {
	case strings.HasPrefix(name, ".text"):
		segType, suffix = TextSegment, name[len(".text"):]
	case strings.HasPrefix(name, ".data"):
		segType, suffix = DataSegment, name[len(".data"):]
	default:
		return 0, 0, false
	}
	num, err := common.ParseOffset(suffix)
	if err != nil {
		return 0, 0, false
	}
	return segType, int(num), true
}

// DOLHeader describes the main executable of the image: its header plus
// every non-empty text and data segment.
type DOLHeader struct {
	Offset     uint64
	DOLSize    uint64
	EntryPoint uint64
	Segments   []*Segment
}

// DecodeDOLHeader reads the DOL header at offset along with the offsets,
// sizes and load addresses of all its non-empty segments.
func DecodeDOLHeader(r io.ReadSeeker, offset int64) (*DOLHeader, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	// The fixed header region carries three parallel tables followed by
	// bss info and the entry point.
	raw := make([]byte, DOLHeaderLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("failed to read DOL header: %w", err)
	}

	d := &DOLHeader{
		Offset:     uint64(offset),
		EntryPoint: uint64(binary.BigEndian.Uint32(raw[0xE0:])),
	}

	for i := 0; i < TotalSegCount; i++ {
		size := uint64(binary.BigEndian.Uint32(raw[0x90+i*4:]))
		if size == 0 {
			continue
		}
		seg := &Segment{
			Offset:      d.Offset + uint64(binary.BigEndian.Uint32(raw[0x00+i*4:])),
			Size:        size,
			LoadAddress: uint64(binary.BigEndian.Uint32(raw[0x48+i*4:])),
		}
		if i < TextSegCount {
			seg.Type, seg.Num = TextSegment, i
		} else {
			seg.Type, seg.Num = DataSegment, i-TextSegCount
		}
		d.Segments = append(d.Segments, seg)
	}

	d.DOLSize = DOLHeaderLen
	for _, seg := range d.Segments {
		if end := seg.Offset - d.Offset + seg.Size; end > d.DOLSize {
			d.DOLSize = end
		}
	}

	return d, nil
}

// FindSegment returns the segment with the given type and number, if any
func (d *DOLHeader) FindSegment(segType SegmentType, num int) *Segment {
	for _, seg := range d.Segments {
		if seg.Type == segType && seg.Num == num {
			return seg
		}
	}
	return nil
}

// SegmentAtAddress returns the segment loaded at the given memory address
func (d *DOLHeader) SegmentAtAddress(memAddr uint64) *Segment {
	for _, seg := range d.Segments {
		if seg.LoadAddress <= memAddr && memAddr < seg.LoadAddress+seg.Size {
			return seg
		}
	}
	return nil
}

// Name implements the layout Section name for the DOL header region
func (d *DOLHeader) Name() string {
	return DOLPath
}

// Start implements the layout Section start offset
func (d *DOLHeader) Start() uint64 {
	return d.Offset
}

// Len implements the layout Section byte length.
// Only the header region itself; segments are separate sections.
func (d *DOLHeader) Len() uint64 {
	return DOLHeaderLen
}
