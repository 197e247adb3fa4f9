package pkg

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/hansbonini/gcmtools/pkg/common"
)

// DecodeEntry parses one 12-byte FST record. Byte 0 is the tag (0 = file,
// 1 = directory), bytes 1-3 a 24-bit big-endian filename offset, and the two
// 32-bit fields that follow are (file_offset, size) for files or
// (parent_index, next_index) for directories. The name and full path are
// filled in later from the string table.
func DecodeEntry(record []byte, index, directoryIndex int) (Entry, error) {
	if len(record) != EntrySize {
		return nil, fmt.Errorf("entry %d: record is %d bytes, want %d", index, len(record), EntrySize)
	}

	filenameOffset := uint32(record[1])<<16 | uint32(record[2])<<8 | uint32(record[3])
	f2 := binary.BigEndian.Uint32(record[4:8])
	f3 := binary.BigEndian.Uint32(record[8:12])

	info := EntryInfo{
		Index:          index,
		FilenameOffset: filenameOffset,
		DirectoryIndex: directoryIndex,
	}

	switch record[0] {
	case 0:
		return &FileEntry{
			EntryInfo:  info,
			FileOffset: uint64(f2),
			Size:       uint64(f3),
		}, nil
	case 1:
		return &DirectoryEntry{
			EntryInfo:   info,
			ParentIndex: int(f2),
			NextIndex:   int(f3),
		}, nil
	default:
		return nil, fmt.Errorf("%s: entry %d has tag 0x%02X", common.ErrInvalidEntryTag, index, record[0])
	}
}

// openDirectory tracks one not-yet-closed directory during the decode walk
type openDirectory struct {
	index      int
	nextIndex  int
	childCount int
}

// DecodeFST reads the full file system table at offset: the fixed records,
// then the string table that immediately follows them. Decoding fails on a
// truncated read, an invalid tag byte, a non-UTF-8 name, or a root record
// that is not a directory; nothing is recovered.
func DecodeFST(r io.ReadSeeker, offset int64) (*FST, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	record := make([]byte, EntrySize)
	if _, err := io.ReadFull(r, record); err != nil {
		return nil, fmt.Errorf("failed to read root entry: %w", err)
	}
	rootEntry, err := DecodeEntry(record, 0, RootDirectoryIndex)
	if err != nil {
		return nil, err
	}
	root, ok := rootEntry.(*DirectoryEntry)
	if !ok {
		return nil, fmt.Errorf("%s", common.ErrRootNotDirectory)
	}
	entryCount := root.NextIndex

	fst := &FST{
		Offset:  uint64(offset),
		Entries: make([]Entry, 0, entryCount),
	}
	fst.Entries = append(fst.Entries, root)

	// Stack of open directories. A frame is popped, and its immediate-child
	// count committed, once the walk reaches its next_index.
	parents := []openDirectory{{index: 0, nextIndex: entryCount}}

	for index := 1; index < entryCount; index++ {
		for len(parents) > 0 && parents[len(parents)-1].nextIndex == index {
			frame := parents[len(parents)-1]
			parents = parents[:len(parents)-1]
			fst.Entries[frame.index].(*DirectoryEntry).FileCount = frame.childCount
			common.LogDebug(common.DebugDirectoryClosed, frame.index, frame.childCount, frame.nextIndex)
		}
		if len(parents) == 0 {
			return nil, fmt.Errorf("entry %d is outside every open directory", index)
		}
		top := &parents[len(parents)-1]
		top.childCount++

		if _, err := io.ReadFull(r, record); err != nil {
			return nil, fmt.Errorf("failed to read entry %d: %w", index, err)
		}
		entry, err := DecodeEntry(record, index, top.index)
		if err != nil {
			return nil, err
		}

		switch e := entry.(type) {
		case *FileEntry:
			fst.FileCount++
			fst.TotalFileSystemSize += e.Size
		case *DirectoryEntry:
			parents = append(parents, openDirectory{index: index, nextIndex: e.NextIndex})
		}

		fst.Entries = append(fst.Entries, entry)
	}

	// Close the directories still open when the walk ends
	for len(parents) > 0 {
		frame := parents[len(parents)-1]
		parents = parents[:len(parents)-1]
		fst.Entries[frame.index].(*DirectoryEntry).FileCount = frame.childCount
	}

	strTblAddr, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	end := strTblAddr
	for _, entry := range fst.Entries {
		consumed, err := readFilename(r, entry, strTblAddr)
		if err != nil {
			return nil, err
		}
		if currEnd := strTblAddr + int64(entry.Info().FilenameOffset) + int64(consumed); currEnd > end {
			end = currEnd
		}
	}
	fst.Size = uint64(end - offset)
	common.LogDebug(common.DebugStringTableEnd, end)

	fst.cacheFullPaths()

	return fst, nil
}

// readFilename reads an entry's name from the string table. The root gets
// the path separator without a table lookup; directory names get the
// separator appended. Returns the number of string-table bytes consumed,
// null terminator included.
func readFilename(r io.ReadSeeker, entry Entry, strTblAddr int64) (int, error) {
	info := entry.Info()
	if info.Index == 0 {
		info.Name = PathSeparator
		return 0, nil
	}

	if _, err := r.Seek(strTblAddr+int64(info.FilenameOffset), io.SeekStart); err != nil {
		return 0, err
	}
	name, consumed, err := common.ReadCString(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read name of entry %d: %w", info.Index, err)
	}
	if !utf8.ValidString(name) {
		return 0, fmt.Errorf("%s: entry %d", common.ErrEntryNameNotUTF8, info.Index)
	}

	info.Name = name
	if entry.IsDir() {
		info.Name += PathSeparator
	}
	return consumed, nil
}
