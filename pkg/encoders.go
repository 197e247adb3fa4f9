package pkg

import (
	"encoding/binary"
	"fmt"
	"io"
	"path"
	"sort"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/hansbonini/gcmtools/pkg/common"
	"github.com/hansbonini/gcmtools/pkg/gcm"
)

// EncodeEntry serializes one entry into its 12-byte record. The filename
// offset is truncated to 24 bits, which is all the wire format carries.
func EncodeEntry(entry Entry) [EntrySize]byte {
	var record [EntrySize]byte

	info := entry.Info()
	common.PutUint24BE(record[1:4], info.FilenameOffset&0xFFFFFF)

	switch e := entry.(type) {
	case *FileEntry:
		record[0] = 0
		binary.BigEndian.PutUint32(record[4:8], uint32(e.FileOffset))
		binary.BigEndian.PutUint32(record[8:12], uint32(e.Size))
	case *DirectoryEntry:
		record[0] = 1
		binary.BigEndian.PutUint32(record[4:8], uint32(e.ParentIndex))
		binary.BigEndian.PutUint32(record[8:12], uint32(e.NextIndex))
	}

	return record
}

// Encode writes the fixed records in index order followed by the string
// table. Names are written sorted by filename offset: creation order and
// offset order coincide by construction, but the sort keeps the table
// correct even if they ever diverge. The root's name is synthetic and is
// not part of the table.
func (f *FST) Encode(w io.Writer) error {
	for _, entry := range f.Entries {
		record := EncodeEntry(entry)
		if _, err := w.Write(record[:]); err != nil {
			return err
		}
	}

	type tableName struct {
		offset uint32
		name   string
	}
	names := make([]tableName, 0, len(f.Entries)-1)
	for _, entry := range f.Entries[1:] {
		info := entry.Info()
		names = append(names, tableName{
			offset: info.FilenameOffset,
			name:   displayName(entry),
		})
	}
	sort.Slice(names, func(i, j int) bool { return names[i].offset < names[j].offset })

	for _, n := range names {
		if _, err := w.Write([]byte(n.name)); err != nil {
			return err
		}
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	}

	return nil
}

// rebuildInfo is the traversal accumulator threaded through the recursive
// rebuild walk. fileSystemSize advances by alignment-rounded file sizes and
// doubles as the tentative file offset counter; totalFileSystemSize keeps
// the raw sum.
type rebuildInfo struct {
	entries             []Entry
	fileSystemSize      uint64
	totalFileSystemSize uint64
	filenameOffset      uint32
	fileCount           int
	parentIndex         int
	currentPath         string
	alignment           uint64
}

func (rb *rebuildInfo) addEntry(entry Entry) {
	if file, ok := entry.(*FileEntry); ok {
		rb.fileSystemSize += common.Align(file.Size, rb.alignment)
		rb.totalFileSystemSize += file.Size
		rb.fileCount++
	}
	rb.entries = append(rb.entries, entry)
}

// FSTRebuilder builds a brand-new FST, and the placement of every file,
// from a host directory tree.
type FSTRebuilder struct {
	fs            afero.Fs
	rootPath      string
	alignment     uint64
	apploaderSize uint64
	dolSize       uint64
}

// NewFSTRebuilder prepares a rebuild rooted at rootPath. The apploader and
// DOL must already exist under &&systemdata; a missing one fails here,
// before any entry work begins.
func NewFSTRebuilder(fs afero.Fs, rootPath string, alignment uint64) (*FSTRebuilder, error) {
	apploader, err := fs.Stat(path.Join(rootPath, gcm.ApploaderPath))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", common.ErrFailedToReadApploader, err)
	}
	dol, err := fs.Stat(path.Join(rootPath, gcm.DOLPath))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", common.ErrFailedToReadDOL, err)
	}

	return &FSTRebuilder{
		fs:            fs,
		rootPath:      rootPath,
		alignment:     alignment,
		apploaderSize: uint64(apploader.Size()),
		dolSize:       uint64(dol.Size()),
	}, nil
}

// RebuildResult carries the rebuilt table and the section offsets that
// surround it in the final image.
type RebuildResult struct {
	FST       *FST
	DOLOffset uint64
	SpaceUsed uint64
}

// Rebuild walks the host tree and produces the new FST plus final absolute
// offsets for every file. Traversal order is whatever the host filesystem
// listing yields; rebuilding the same tree on another platform may assign a
// different but equally valid index order.
func (r *FSTRebuilder) Rebuild() (*RebuildResult, error) {
	root := &DirectoryEntry{
		EntryInfo: EntryInfo{
			Index:          0,
			Name:           PathSeparator,
			DirectoryIndex: RootDirectoryIndex,
			FullPath:       PathSeparator,
		},
	}
	rb := &rebuildInfo{
		parentIndex: RootDirectoryIndex,
		alignment:   r.alignment,
	}

	if err := r.rebuildDirInfo(r.rootPath, root, rb); err != nil {
		return nil, err
	}

	size := uint64(len(rb.entries)*EntrySize) + uint64(rb.filenameOffset)
	offset := common.Align(gcm.ApploaderOffset+r.apploaderSize, r.alignment)
	dolOffset := common.Align(offset+size, r.alignment)
	fileSystemOffset := common.Align(dolOffset+r.dolSize, r.alignment)

	// Tentative offsets become final with a single base shift
	var maxEOF uint64
	for _, entry := range rb.entries {
		if file, ok := entry.(*FileEntry); ok {
			file.FileOffset += fileSystemOffset
			if end := file.FileOffset + file.Size; end > maxEOF {
				maxEOF = end
			}
		}
	}

	fst := &FST{
		Offset:              offset,
		FileCount:           rb.fileCount,
		TotalFileSystemSize: rb.totalFileSystemSize,
		Entries:             rb.entries,
		Size:                size,
	}
	common.LogInfo(common.InfoFSTRebuilt+": %d entries, %d files", len(fst.Entries), fst.FileCount)

	return &RebuildResult{
		FST:       fst,
		DOLOffset: dolOffset,
		SpaceUsed: maxEOF,
	}, nil
}

// rebuildDirInfo adds dir, recurses into its host directory, then patches
// the closing fields once the subtree is fully walked.
func (r *FSTRebuilder) rebuildDirInfo(fsPath string, dir *DirectoryEntry, rb *rebuildInfo) error {
	oldParentIndex := rb.parentIndex
	oldPath := rb.currentPath
	dirIndex := dir.Index

	rb.currentPath = path.Join(rb.currentPath, dir.Name)
	rb.parentIndex = dirIndex
	rb.addEntry(dir)
	common.LogDebug(common.DebugRebuildTraversal, fsPath, dirIndex)

	previousEntryCount := len(rb.entries)
	immediateChildren, err := r.addEntriesInDirectory(fsPath, rb)
	if err != nil {
		return err
	}
	totalEntriesAdded := len(rb.entries) - previousEntryCount

	rb.currentPath = oldPath
	rb.parentIndex = oldParentIndex

	dir.FileCount = immediateChildren
	dir.NextIndex = dirIndex + totalEntriesAdded + 1

	return nil
}

// addEntriesInDirectory appends an entry for every non-ignored host entry
// and returns the number of immediate children added.
func (r *FSTRebuilder) addEntriesInDirectory(fsPath string, rb *rebuildInfo) (int, error) {
	listing, err := afero.ReadDir(r.fs, fsPath)
	if err != nil {
		return 0, err
	}

	immediateChildren := 0
	for _, hostEntry := range listing {
		name := hostEntry.Name()
		if isFileIgnored(name) {
			continue
		}
		if !utf8.ValidString(name) {
			return 0, fmt.Errorf("host filename is not valid UTF-8: %q", name)
		}

		info := EntryInfo{
			Index:          len(rb.entries),
			Name:           name,
			FilenameOffset: rb.filenameOffset,
			DirectoryIndex: rb.parentIndex,
			FullPath:       path.Join(rb.currentPath, name),
		}
		// plus 1 for the null terminator
		rb.filenameOffset += uint32(len(name)) + 1

		if hostEntry.IsDir() {
			parentIndex := info.DirectoryIndex
			if parentIndex == RootDirectoryIndex {
				parentIndex = 0
			}
			info.Name += PathSeparator
			dirEntry := &DirectoryEntry{
				EntryInfo:   info,
				ParentIndex: parentIndex,
			}
			if err := r.rebuildDirInfo(path.Join(fsPath, name), dirEntry, rb); err != nil {
				return 0, err
			}
		} else {
			// Tentative offset; shifted to its final value once the
			// surrounding section offsets are known.
			rb.addEntry(&FileEntry{
				EntryInfo:  info,
				FileOffset: rb.fileSystemSize,
				Size:       uint64(hostEntry.Size()),
			})
		}
		immediateChildren++
	}

	return immediateChildren, nil
}

// isFileIgnored skips hidden host entries and the system-metadata directory
func isFileIgnored(name string) bool {
	return len(name) > 0 && name[0] == '.' || name == gcm.SystemDataDir
}

// PlacedFile is one (absolute offset, host source) pair of the final layout
type PlacedFile struct {
	Offset uint64
	Path   string
}

// ImageWriter streams a sorted placement into an output image, zero-filling
// the gaps between sections and enforcing the fixed image capacity.
type ImageWriter struct {
	fs        afero.Fs
	files     []PlacedFile
	alignment uint64
}

// NewImageWriter sorts the placement by offset and prepares the writer
func NewImageWriter(fs afero.Fs, files []PlacedFile, alignment uint64) *ImageWriter {
	sorted := make([]PlacedFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Offset != sorted[j].Offset {
			return sorted[i].Offset < sorted[j].Offset
		}
		return sorted[i].Path < sorted[j].Path
	})
	return &ImageWriter{fs: fs, files: sorted, alignment: alignment}
}

// PlacementForFST collects a (offset, host path) pair for every file in the
// tree, walking directories recursively.
func PlacementForFST(fst *FST, dir *DirectoryEntry, prefix string) []PlacedFile {
	var files []PlacedFile
	for it := dir.IterContents(fst.Entries); ; {
		entry := it.Next()
		if entry == nil {
			return files
		}
		switch e := entry.(type) {
		case *FileEntry:
			files = append(files, PlacedFile{
				Offset: e.FileOffset,
				Path:   path.Join(prefix, e.Name),
			})
		case *DirectoryEntry:
			files = append(files, PlacementForFST(fst, e, path.Join(prefix, displayName(e)))...)
		}
	}
}

// Write streams every placed file into output. Zero-size files are skipped.
// Exceeding the fixed capacity aborts the write with the configured
// alignment named as the likely fix; the partial output is the caller's to
// discard. progress, when non-nil, is invoked after each file.
func (w *ImageWriter) Write(output io.Writer, progress func(done, total int)) error {
	chunk := make([]byte, WriteChunkSize)
	var bytesWritten uint64
	total := len(w.files)

	for i, placed := range w.files {
		size, err := w.copyFile(output, placed, bytesWritten, chunk)
		if err != nil {
			return err
		}
		if size > 0 {
			bytesWritten = placed.Offset + size
		}

		if bytesWritten > ROMSize {
			return fmt.Errorf(
				"%s: try decreasing the file alignment with the -a option (the current alignment is %d bytes)",
				common.ErrNotEnoughSpace, w.alignment,
			)
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	return writeZeros(output, ROMSize-bytesWritten, chunk)
}

// copyFile zero-fills up to the section offset and copies the host file.
// Returns the number of content bytes copied (zero for empty files, which
// do not move the cursor).
func (w *ImageWriter) copyFile(output io.Writer, placed PlacedFile, bytesWritten uint64, chunk []byte) (uint64, error) {
	file, err := w.fs.Open(placed.Path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return 0, err
	}
	size := uint64(stat.Size())
	if size == 0 {
		return 0, nil
	}
	if placed.Offset < bytesWritten {
		return 0, fmt.Errorf("%s: %s at offset 0x%X", common.ErrOverlappingPlacement, placed.Path, placed.Offset)
	}

	if err := writeZeros(output, placed.Offset-bytesWritten, chunk); err != nil {
		return 0, err
	}
	if _, err := io.CopyBuffer(output, io.LimitReader(file, int64(size)), chunk); err != nil {
		return 0, fmt.Errorf("%s %s: %w", common.ErrFailedToWriteImage, placed.Path, err)
	}
	common.LogDebug(common.DebugFilePlaced, placed.Path, placed.Offset, size)

	return size, nil
}

// writeZeros writes count zero bytes reusing the caller's chunk buffer
func writeZeros(output io.Writer, count uint64, chunk []byte) error {
	for i := range chunk {
		chunk[i] = 0
	}
	for count > 0 {
		n := uint64(len(chunk))
		if n > count {
			n = count
		}
		if _, err := output.Write(chunk[:n]); err != nil {
			return err
		}
		count -= n
	}
	return nil
}
