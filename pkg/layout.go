package pkg

import (
	"fmt"
	"io"
	"sort"

	"github.com/hansbonini/gcmtools/pkg/gcm"
)

// Section is any contiguous region of the image that owns a byte range
type Section interface {
	Name() string
	Start() uint64
	Len() uint64
}

// SectionEnd is the last byte offset owned by a section. A zero-length
// section owns no bytes and reports its start, so the inclusive end never
// wraps below it.
func SectionEnd(s Section) uint64 {
	if s.Len() == 0 {
		return s.Start()
	}
	return s.Start() + s.Len() - 1
}

// compareOffset orders a section against an offset: negative when the
// section lies entirely before it, positive when entirely after, zero when
// the section owns it. Zero-length sections own nothing and only order.
func compareOffset(s Section, offset uint64) int {
	switch {
	case s.Start() > offset:
		return 1
	case s.Len() == 0 || SectionEnd(s) < offset:
		return -1
	default:
		return 0
	}
}

// fileSection adapts a file entry to the Section interface
type fileSection struct {
	file *FileEntry
}

func (s fileSection) Name() string  { return s.file.FullPath }
func (s fileSection) Start() uint64 { return s.file.FileOffset }
func (s fileSection) Len() uint64   { return s.file.Size }

// Layout is the merged, offset-sorted list of every section in one image.
// Sections never overlap by construction of the placement algorithm; that
// invariant is relied on, not re-validated here.
type Layout struct {
	sections []Section
}

// NewLayout merges the header, apploader, DOL (header plus each segment),
// the FST and every file entry into one offset-searchable list.
func NewLayout(header *gcm.Header, apploader *gcm.Apploader, dol *gcm.DOLHeader, fst *FST) *Layout {
	sections := []Section{header, apploader, dol, fst}
	for _, seg := range dol.Segments {
		sections = append(sections, seg)
	}
	for _, entry := range fst.Entries {
		if file, ok := entry.(*FileEntry); ok && file.Size > 0 {
			sections = append(sections, fileSection{file})
		}
	}

	sort.Slice(sections, func(i, j int) bool {
		return sections[i].Start() < sections[j].Start()
	})

	return &Layout{sections: sections}
}

// Sections returns every section in start-offset order
func (l *Layout) Sections() []Section {
	return l.sections
}

// FindOffset returns the section owning the given byte offset, or nil when
// no section claims it.
func (l *Layout) FindOffset(offset uint64) Section {
	i := sort.Search(len(l.sections), func(i int) bool {
		return compareOffset(l.sections[i], offset) >= 0
	})
	if i < len(l.sections) && compareOffset(l.sections[i], offset) == 0 {
		return l.sections[i]
	}
	return nil
}

// ExtractSection copies a section's bytes from the image to output using a
// bounded chunk buffer.
func ExtractSection(r io.ReadSeeker, section Section, output io.Writer) error {
	if _, err := r.Seek(int64(section.Start()), io.SeekStart); err != nil {
		return err
	}
	chunk := make([]byte, WriteChunkSize)
	if _, err := io.CopyBuffer(output, io.LimitReader(r, int64(section.Len())), chunk); err != nil {
		return fmt.Errorf("failed to extract section %s: %w", section.Name(), err)
	}
	return nil
}
