package gcm

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildTestDOL lays out a DOL header with one text and one data segment:
// .text0 at +0x100 (0x20 bytes, loaded at 0x80003100) and .data0 at +0x120
// (0x40 bytes, loaded at 0x80004000).
func buildTestDOL() []byte {
	raw := make([]byte, DOLHeaderLen)
	binary.BigEndian.PutUint32(raw[0x00:], 0x100)      // .text0 offset
	binary.BigEndian.PutUint32(raw[0x48:], 0x80003100) // .text0 load address
	binary.BigEndian.PutUint32(raw[0x90:], 0x20)       // .text0 size

	data0 := TextSegCount * 4
	binary.BigEndian.PutUint32(raw[0x00+data0:], 0x120)      // .data0 offset
	binary.BigEndian.PutUint32(raw[0x48+data0:], 0x80004000) // .data0 load address
	binary.BigEndian.PutUint32(raw[0x90+data0:], 0x40)       // .data0 size

	binary.BigEndian.PutUint32(raw[0xE0:], 0x80003100) // entry point
	return raw
}

func TestDecodeDOLHeader(t *testing.T) {
	image := make([]byte, 0x2600)
	copy(image[0x2500:], buildTestDOL())

	dol, err := DecodeDOLHeader(bytes.NewReader(image), 0x2500)
	if err != nil {
		t.Fatalf("DecodeDOLHeader() failed: %v", err)
	}

	if dol.Offset != 0x2500 {
		t.Errorf("Offset = 0x%X, want 0x2500", dol.Offset)
	}
	if dol.EntryPoint != 0x80003100 {
		t.Errorf("EntryPoint = 0x%X, want 0x80003100", dol.EntryPoint)
	}
	// Empty segments are dropped
	if len(dol.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2", len(dol.Segments))
	}

	text := dol.Segments[0]
	if text.String() != ".text0" {
		t.Errorf("segment 0 = %s, want .text0", text)
	}
	// Segment offsets are absolute within the image
	if text.Offset != 0x2600 {
		t.Errorf(".text0 Offset = 0x%X, want 0x2600", text.Offset)
	}
	if text.Size != 0x20 || text.LoadAddress != 0x80003100 {
		t.Errorf(".text0 = (size 0x%X, load 0x%X), want (0x20, 0x80003100)", text.Size, text.LoadAddress)
	}

	data := dol.Segments[1]
	if data.String() != ".data0" {
		t.Errorf("segment 1 = %s, want .data0", data)
	}
	if data.Offset != 0x2620 {
		t.Errorf(".data0 Offset = 0x%X, want 0x2620", data.Offset)
	}

	// .data0 ends furthest from the header
	if dol.DOLSize != 0x160 {
		t.Errorf("DOLSize = 0x%X, want 0x160", dol.DOLSize)
	}
}

func TestDecodeDOLHeader_NoSegments(t *testing.T) {
	dol, err := DecodeDOLHeader(bytes.NewReader(make([]byte, DOLHeaderLen)), 0)
	if err != nil {
		t.Fatalf("DecodeDOLHeader() failed: %v", err)
	}
	if len(dol.Segments) != 0 {
		t.Errorf("len(Segments) = %d, want 0", len(dol.Segments))
	}
	if dol.DOLSize != DOLHeaderLen {
		t.Errorf("DOLSize = 0x%X, want 0x%X", dol.DOLSize, uint64(DOLHeaderLen))
	}
}

func TestFindSegment(t *testing.T) {
	image := make([]byte, 0x2600)
	copy(image[0x2500:], buildTestDOL())
	dol, err := DecodeDOLHeader(bytes.NewReader(image), 0x2500)
	if err != nil {
		t.Fatalf("DecodeDOLHeader() failed: %v", err)
	}

	if seg := dol.FindSegment(TextSegment, 0); seg == nil || seg.String() != ".text0" {
		t.Errorf("FindSegment(text, 0) = %v, want .text0", seg)
	}
	if seg := dol.FindSegment(DataSegment, 0); seg == nil || seg.String() != ".data0" {
		t.Errorf("FindSegment(data, 0) = %v, want .data0", seg)
	}
	if seg := dol.FindSegment(TextSegment, 3); seg != nil {
		t.Errorf("FindSegment(text, 3) = %v, want nil", seg)
	}
}

func TestSegmentAtAddress(t *testing.T) {
	image := make([]byte, 0x2600)
	copy(image[0x2500:], buildTestDOL())
	dol, err := DecodeDOLHeader(bytes.NewReader(image), 0x2500)
	if err != nil {
		t.Fatalf("DecodeDOLHeader() failed: %v", err)
	}

	if seg := dol.SegmentAtAddress(0x80003110); seg == nil || seg.String() != ".text0" {
		t.Errorf("SegmentAtAddress(0x80003110) = %v, want .text0", seg)
	}
	// One past the end of .text0 is unowned
	if seg := dol.SegmentAtAddress(0x80003120); seg != nil {
		t.Errorf("SegmentAtAddress(0x80003120) = %v, want nil", seg)
	}
	if seg := dol.SegmentAtAddress(0x80004000); seg == nil || seg.String() != ".data0" {
		t.Errorf("SegmentAtAddress(0x80004000) = %v, want .data0", seg)
	}
}

func TestParseSegmentName(t *testing.T) {
	cases := []struct {
		name    string
		segType SegmentType
		num     int
		ok      bool
	}{
		{".text0", TextSegment, 0, true},
		{".text6", TextSegment, 6, true},
		{".data10", DataSegment, 10, true},
		{".bss", 0, 0, false},
		{".text", 0, 0, false},
		{"text0", 0, 0, false},
	}
	for _, c := range cases {
		segType, num, ok := ParseSegmentName(c.name)
		if ok != c.ok {
			t.Errorf("ParseSegmentName(%q) ok = %v, want %v", c.name, ok, c.ok)
			continue
		}
		if ok && (segType != c.segType || num != c.num) {
			t.Errorf("ParseSegmentName(%q) = (%v, %d), want (%v, %d)",
				c.name, segType, num, c.segType, c.num)
		}
	}
}
