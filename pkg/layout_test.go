package pkg

import (
	"bytes"
	"testing"

	"github.com/hansbonini/gcmtools/pkg/gcm"
)

func TestLayoutSections(t *testing.T) {
	disc, err := OpenDisc(bytes.NewReader(buildTestImage(t)))
	if err != nil {
		t.Fatalf("OpenDisc() failed: %v", err)
	}

	sections := disc.Layout().Sections()
	// header, apploader, FST, DOL header, .text0, a.txt, b.txt
	if len(sections) != 7 {
		t.Fatalf("len(Sections()) = %d, want 7", len(sections))
	}

	for i := 1; i < len(sections); i++ {
		if sections[i-1].Start() > sections[i].Start() {
			t.Fatalf("sections not sorted: %s at 0x%X after %s at 0x%X",
				sections[i].Name(), sections[i].Start(),
				sections[i-1].Name(), sections[i-1].Start())
		}
	}

	wantNames := []string{
		gcm.HeaderPath,
		gcm.ApploaderPath,
		gcm.FSTPath,
		gcm.DOLPath,
		".text0",
		"/a.txt",
		"/sub/b.txt",
	}
	for i, section := range sections {
		if section.Name() != wantNames[i] {
			t.Errorf("section %d: Name() = %q, want %q", i, section.Name(), wantNames[i])
		}
	}
}

func TestLayoutFindOffset(t *testing.T) {
	disc, err := OpenDisc(bytes.NewReader(buildTestImage(t)))
	if err != nil {
		t.Fatalf("OpenDisc() failed: %v", err)
	}
	layout := disc.Layout()

	cases := []struct {
		offset uint64
		want   string
	}{
		{0, gcm.HeaderPath},
		{0x243F, gcm.HeaderPath}, // last header byte
		{0x2440, gcm.ApploaderPath},
		{0x24BF, gcm.ApploaderPath}, // last apploader byte
		{0x2500, gcm.FSTPath},
		{0x253F, gcm.FSTPath},
		{0x2600, gcm.DOLPath},
		{0x2700, ".text0"},
		{0x271F, ".text0"},
		{0x8000, "/a.txt"},
		{0x8004, "/a.txt"},
		{0x8021, "/sub/b.txt"},
	}
	for _, c := range cases {
		section := layout.FindOffset(c.offset)
		if section == nil {
			t.Errorf("FindOffset(0x%X) = nil, want %s", c.offset, c.want)
			continue
		}
		if section.Name() != c.want {
			t.Errorf("FindOffset(0x%X) = %s, want %s", c.offset, section.Name(), c.want)
		}
	}

	// Gaps between sections and the tail of the image are unowned
	for _, offset := range []uint64{0x24C0, 0x2540, 0x8023, ROMSize - 1} {
		if section := layout.FindOffset(offset); section != nil {
			t.Errorf("FindOffset(0x%X) = %s, want nil", offset, section.Name())
		}
	}
}

func TestSectionEnd(t *testing.T) {
	file := &FileEntry{FileOffset: 0x8000, Size: 5}
	if got := SectionEnd(fileSection{file}); got != 0x8004 {
		t.Errorf("SectionEnd() = 0x%X, want 0x8004", got)
	}

	// A zero-length section must not wrap below its start
	empty := &FileEntry{FileOffset: 0, Size: 0}
	if got := SectionEnd(fileSection{empty}); got != 0 {
		t.Errorf("SectionEnd() = 0x%X, want 0", got)
	}
}

func TestLayout_ZeroSizeFileOwnsNothing(t *testing.T) {
	// Tree with an empty file recorded at offset 0, inside the header region
	var buffer bytes.Buffer
	buffer.Write(testRecord(1, 0, 0, 3))       // root
	buffer.Write(testRecord(0, 0, 0, 0))       // empty.bin
	buffer.Write(testRecord(0, 10, 0x8000, 5)) // a.txt
	buffer.WriteString("empty.bin\x00a.txt\x00")

	fst, err := DecodeFST(bytes.NewReader(buffer.Bytes()), 0)
	if err != nil {
		t.Fatalf("DecodeFST() failed: %v", err)
	}
	fst.Offset = 0x2500

	layout := NewLayout(
		&gcm.Header{},
		&gcm.Apploader{CodeSize: 0x40, TrailerSize: 0x20},
		&gcm.DOLHeader{Offset: 0x2600, DOLSize: gcm.DOLHeaderLen},
		fst,
	)

	// header, apploader, FST, DOL header, a.txt; the empty file is not indexed
	if got := len(layout.Sections()); got != 5 {
		t.Fatalf("len(Sections()) = %d, want 5", got)
	}
	for _, section := range layout.Sections() {
		if section.Name() == "/empty.bin" {
			t.Fatal("zero-size file should not appear in the layout")
		}
	}

	// Offset 0 belongs to the header, not the empty file recorded there
	section := layout.FindOffset(0)
	if section == nil || section.Name() != gcm.HeaderPath {
		t.Errorf("FindOffset(0) = %v, want %s", section, gcm.HeaderPath)
	}

	// Even compared directly, a zero-length section owns no offset
	empty := fileSection{fst.Entries[1].(*FileEntry)}
	for _, offset := range []uint64{0, 1, 0x8000} {
		if compareOffset(empty, offset) == 0 {
			t.Errorf("compareOffset(empty, 0x%X) = 0, want non-zero", offset)
		}
	}
}

func TestExtractSection(t *testing.T) {
	image := buildTestImage(t)
	disc, err := OpenDisc(bytes.NewReader(image))
	if err != nil {
		t.Fatalf("OpenDisc() failed: %v", err)
	}

	section := disc.Layout().FindOffset(0x8000)
	if section == nil {
		t.Fatal("FindOffset(0x8000) = nil")
	}

	var out bytes.Buffer
	if err := ExtractSection(bytes.NewReader(image), section, &out); err != nil {
		t.Fatalf("ExtractSection() failed: %v", err)
	}
	if out.String() != "hello" {
		t.Errorf("extracted = %q, want hello", out.String())
	}
}
