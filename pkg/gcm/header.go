// Package gcm provides GameCube-specific disc image structures.
// The byte layout of the header, apploader and DOL follows the yagcd
// documentation (chapter 13).
package gcm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// Disc header layout constants
const (
	GameHeaderSize = 0x2440

	GameCodeSize  = 4
	MakerCodeSize = 2

	UnusedRegion1Size = 0x12
	GameNameSize      = 0x03e0
	UnusedRegion2Size = 0x18
	UnusedRegion3Size = 4

	DOLOffsetOffset = 0x0420
	FSTOffsetOffset = 0x0424
	FSTSizeOffset   = 0x0428

	// MagicWord is found at offset 0x1c of every valid disc header
	MagicWord uint32 = 0xc2339f3d
)

// HeaderInformation is the "disk header information" block that follows
// the main header fields.
type HeaderInformation struct {
	DebugMonitorSize    uint32
	SimulatedMemorySize uint32
	ArgumentOffset      uint32
	DebugFlag           uint32
	TrackLocation       uint32
	TrackSize           uint32
	CountryCode         uint32
	Unknown             uint32
}

// Header represents the disc header record at the start of a GCM image.
// Offsets are stored as 64-bit values even though the image stores 32 bits,
// since they are combined with 64-bit stream positions everywhere.
type Header struct {
	GameCode             string
	MakerCode            string
	DiskID               byte
	Version              byte
	AudioStreaming       byte
	StreamBufferSize     byte
	Title                string
	DebugMonitorOffset   uint32
	DebugMonitorLoadAddr uint32
	DOLOffset            uint64
	FSTOffset            uint64
	FSTSize              uint64
	MaxFSTSize           uint64
	UserPosition         uint32
	UserLength           uint32
	Unknown              uint32
	Information          HeaderInformation
}

// DecodeHeader reads and validates the disc header starting at offset.
func DecodeHeader(r io.ReadSeeker, offset int64) (*Header, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	h := &Header{}

	fixed := make([]byte, 0x20)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("failed to read header fields: %w", err)
	}
	h.GameCode = string(fixed[0:GameCodeSize])
	h.MakerCode = string(fixed[GameCodeSize : GameCodeSize+MakerCodeSize])
	h.DiskID = fixed[6]
	h.Version = fixed[7]
	h.AudioStreaming = fixed[8]
	h.StreamBufferSize = fixed[9]

	magic := binary.BigEndian.Uint32(fixed[0x1c:0x20])
	if magic != MagicWord {
		return nil, fmt.Errorf("invalid magic word: expected 0x%08X, got 0x%08X", MagicWord, magic)
	}

	title := make([]byte, GameNameSize)
	if _, err := io.ReadFull(r, title); err != nil {
		return nil, fmt.Errorf("failed to read title: %w", err)
	}
	if i := bytes.IndexByte(title, 0); i >= 0 {
		title = title[:i]
	}
	if !utf8.Valid(title) {
		return nil, fmt.Errorf("disc title is not valid UTF-8")
	}
	h.Title = string(title)

	tail := make([]byte, 0x40)
	if _, err := io.ReadFull(r, tail); err != nil {
		return nil, fmt.Errorf("failed to read header offsets: %w", err)
	}
	h.DebugMonitorOffset = binary.BigEndian.Uint32(tail[0x00:])
	h.DebugMonitorLoadAddr = binary.BigEndian.Uint32(tail[0x04:])
	// 0x08..0x20 is unused
	h.DOLOffset = uint64(binary.BigEndian.Uint32(tail[0x20:]))
	h.FSTOffset = uint64(binary.BigEndian.Uint32(tail[0x24:]))
	h.FSTSize = uint64(binary.BigEndian.Uint32(tail[0x28:]))
	h.MaxFSTSize = uint64(binary.BigEndian.Uint32(tail[0x2c:]))
	h.UserPosition = binary.BigEndian.Uint32(tail[0x30:])
	h.UserLength = binary.BigEndian.Uint32(tail[0x34:])
	h.Unknown = binary.BigEndian.Uint32(tail[0x38:])
	// 0x3c..0x40 is unused

	info := make([]byte, 0x20)
	if _, err := io.ReadFull(r, info); err != nil {
		return nil, fmt.Errorf("failed to read header information: %w", err)
	}
	h.Information = HeaderInformation{
		DebugMonitorSize:    binary.BigEndian.Uint32(info[0x00:]),
		SimulatedMemorySize: binary.BigEndian.Uint32(info[0x04:]),
		ArgumentOffset:      binary.BigEndian.Uint32(info[0x08:]),
		DebugFlag:           binary.BigEndian.Uint32(info[0x0c:]),
		TrackLocation:       binary.BigEndian.Uint32(info[0x10:]),
		TrackSize:           binary.BigEndian.Uint32(info[0x14:]),
		CountryCode:         binary.BigEndian.Uint32(info[0x18:]),
		Unknown:             binary.BigEndian.Uint32(info[0x1c:]),
	}

	return h, nil
}

// Encode writes the full GameHeaderSize bytes of the header. Unused regions
// are zero-filled, which matches how extracted headers are stored on disk.
func (h *Header) Encode(w io.Writer) error {
	buf := make([]byte, GameHeaderSize)

	copy(buf[0:], h.GameCode)
	copy(buf[GameCodeSize:], h.MakerCode)
	buf[6] = h.DiskID
	buf[7] = h.Version
	buf[8] = h.AudioStreaming
	buf[9] = h.StreamBufferSize
	binary.BigEndian.PutUint32(buf[0x1c:], MagicWord)

	title := []byte(h.Title)
	if len(title) > GameNameSize {
		return fmt.Errorf("title too long: %d bytes", len(title))
	}
	copy(buf[0x20:], title)

	binary.BigEndian.PutUint32(buf[0x400:], h.DebugMonitorOffset)
	binary.BigEndian.PutUint32(buf[0x404:], h.DebugMonitorLoadAddr)
	binary.BigEndian.PutUint32(buf[DOLOffsetOffset:], uint32(h.DOLOffset))
	binary.BigEndian.PutUint32(buf[FSTOffsetOffset:], uint32(h.FSTOffset))
	binary.BigEndian.PutUint32(buf[FSTSizeOffset:], uint32(h.FSTSize))
	binary.BigEndian.PutUint32(buf[FSTSizeOffset+4:], uint32(h.MaxFSTSize))
	binary.BigEndian.PutUint32(buf[0x430:], h.UserPosition)
	binary.BigEndian.PutUint32(buf[0x434:], h.UserLength)
	binary.BigEndian.PutUint32(buf[0x438:], h.Unknown)

	info := h.Information
	binary.BigEndian.PutUint32(buf[0x440:], info.DebugMonitorSize)
	binary.BigEndian.PutUint32(buf[0x444:], info.SimulatedMemorySize)
	binary.BigEndian.PutUint32(buf[0x448:], info.ArgumentOffset)
	binary.BigEndian.PutUint32(buf[0x44c:], info.DebugFlag)
	binary.BigEndian.PutUint32(buf[0x450:], info.TrackLocation)
	binary.BigEndian.PutUint32(buf[0x454:], info.TrackSize)
	binary.BigEndian.PutUint32(buf[0x458:], info.CountryCode)
	binary.BigEndian.PutUint32(buf[0x45c:], info.Unknown)

	_, err := w.Write(buf)
	return err
}

// GameID returns the six character game identifier
func (h *Header) GameID() string {
	return h.GameCode + h.MakerCode
}

// Name implements the layout Section name for the header region
func (h *Header) Name() string {
	return HeaderPath
}

// Start implements the layout Section start offset
func (h *Header) Start() uint64 {
	return 0
}

// Len implements the layout Section byte length
func (h *Header) Len() uint64 {
	return GameHeaderSize
}
