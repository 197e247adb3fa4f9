// Package pkg provides decoding, extraction and rebuilding of the GameCube
// disc file system table (FST). The FST is a flat array of 12-byte records:
// hierarchy is expressed through index ranges, not pointers, and that shape
// is kept here as a slice of entries addressed by integer index.
package pkg

import (
	"path"
	"strings"

	"github.com/hansbonini/gcmtools/pkg/gcm"
)

// EntrySize is the fixed byte length of one FST record
const EntrySize = 12

// PathSeparator is the separator used inside the image file system
const PathSeparator = "/"

const (
	// ROMSize is the fixed capacity of a GCM image
	ROMSize = 0x57058000

	// WriteChunkSize bounds the buffer used for file copies and zero fill
	WriteChunkSize = 1 << 20

	// DefaultAlignment is the default file placement boundary (32 KiB)
	DefaultAlignment = 32 * 1024

	// MinAlignment is the smallest accepted placement boundary
	MinAlignment = 4
)

// EntryInfo holds the fields shared by file and directory entries.
// DirectoryIndex is the index of the innermost enclosing directory and is
// RootDirectoryIndex for the root only. FullPath is derived from the name
// chain after decode and cached.
type EntryInfo struct {
	Index          int
	Name           string
	FilenameOffset uint32
	DirectoryIndex int
	FullPath       string
}

// RootDirectoryIndex marks the root entry, which has no enclosing directory
const RootDirectoryIndex = -1

// FileEntry is an FST record describing file contents within the image
type FileEntry struct {
	EntryInfo
	FileOffset uint64
	Size       uint64
}

// DirectoryEntry is an FST record describing a directory. NextIndex is the
// index one past the last entry of this directory's entire subtree.
// FileCount counts immediate children only and is not stored on disk.
type DirectoryEntry struct {
	EntryInfo
	ParentIndex int
	NextIndex   int
	FileCount   int
}

// Entry is the closed set of FST record kinds: *FileEntry or *DirectoryEntry
type Entry interface {
	Info() *EntryInfo
	IsDir() bool
}

// Info returns the shared entry fields
func (f *FileEntry) Info() *EntryInfo { return &f.EntryInfo }

// IsDir reports that a file entry is not a directory
func (f *FileEntry) IsDir() bool { return false }

// Info returns the shared entry fields
func (d *DirectoryEntry) Info() *EntryInfo { return &d.EntryInfo }

// IsDir reports that a directory entry is a directory
func (d *DirectoryEntry) IsDir() bool { return true }

// FST is the decoded (or rebuilt) file system table of one image.
// Entries[0] is always the root directory and Entries[i].Info().Index == i.
// FileCount counts files only; TotalFileSystemSize is the raw, unaligned
// sum of all file sizes.
type FST struct {
	Offset              uint64
	FileCount           int
	TotalFileSystemSize uint64
	Entries             []Entry
	Size                uint64
}

// Root returns the root directory entry
func (f *FST) Root() *DirectoryEntry {
	return f.Entries[0].(*DirectoryEntry)
}

// ParentOf returns the enclosing directory of an entry, or nil for the root
func (f *FST) ParentOf(info *EntryInfo) Entry {
	if info.DirectoryIndex == RootDirectoryIndex {
		return nil
	}
	return f.Entries[info.DirectoryIndex]
}

// fullPath walks the directory chain back to the root, collecting names
// in reverse. Executed once per entry after decode or rebuild.
func (f *FST) fullPath(info *EntryInfo) string {
	names := []string{info.Name}
	for parent := f.ParentOf(info); parent != nil; parent = f.ParentOf(parent.Info()) {
		names = append(names, parent.Info().Name)
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return path.Join(names...)
}

// cacheFullPaths fills in FullPath for every entry
func (f *FST) cacheFullPaths() {
	for _, entry := range f.Entries {
		info := entry.Info()
		info.FullPath = f.fullPath(info)
	}
}

// DirectoryIter walks the immediate children of one directory. Files advance
// the cursor by one; directories advance it past their whole subtree, so
// nested entries are skipped in a single hop. The iterator is finite and can
// be restarted by creating a new one.
type DirectoryIter struct {
	dir     *DirectoryEntry
	entries []Entry
	current int
}

// IterContents returns an iterator over the directory's immediate children
func (d *DirectoryEntry) IterContents(entries []Entry) *DirectoryIter {
	return &DirectoryIter{
		dir:     d,
		entries: entries,
		current: d.Index + 1,
	}
}

// Next returns the next immediate child, or nil when the directory ends
func (it *DirectoryIter) Next() Entry {
	if it.current >= it.dir.NextIndex {
		return nil
	}
	entry := it.entries[it.current]
	switch e := entry.(type) {
	case *DirectoryEntry:
		it.current = e.NextIndex
	case *FileEntry:
		it.current++
	}
	return entry
}

// displayName is the entry name without the directory suffix
func displayName(entry Entry) string {
	return strings.TrimSuffix(entry.Info().Name, PathSeparator)
}

// EntryForPath resolves a path to an entry. A bare name (no separators) is
// searched depth-first across the whole tree and the first match in tree
// order wins; duplicate names in different directories are deliberately not
// disambiguated further. A multi-component path is resolved component by
// component from the root and returns nil on any missing component.
func (f *FST) EntryForPath(p string) Entry {
	trimmed := strings.Trim(p, PathSeparator)
	if trimmed == "" {
		return f.Entries[0]
	}
	if !strings.Contains(p, PathSeparator) {
		return f.entryWithName(p, f.Root())
	}

	var current Entry = f.Entries[0]
	for _, component := range strings.Split(trimmed, PathSeparator) {
		dir, ok := current.(*DirectoryEntry)
		if !ok {
			return nil
		}
		current = nil
		for it := dir.IterContents(f.Entries); ; {
			child := it.Next()
			if child == nil {
				break
			}
			if displayName(child) == component {
				current = child
				break
			}
		}
		if current == nil {
			return nil
		}
	}
	return current
}

// entryWithName searches dir's subtree depth-first for the first entry
// whose name matches
func (f *FST) entryWithName(name string, dir *DirectoryEntry) Entry {
	for it := dir.IterContents(f.Entries); ; {
		entry := it.Next()
		if entry == nil {
			return nil
		}
		if displayName(entry) == name {
			return entry
		}
		if subdir, ok := entry.(*DirectoryEntry); ok {
			if found := f.entryWithName(name, subdir); found != nil {
				return found
			}
		}
	}
}

// Name implements the layout Section name for the table region
func (f *FST) Name() string {
	return gcm.FSTPath
}

// Start implements the layout Section start offset
func (f *FST) Start() uint64 {
	return f.Offset
}

// Len implements the layout Section byte length
func (f *FST) Len() uint64 {
	return f.Size
}
