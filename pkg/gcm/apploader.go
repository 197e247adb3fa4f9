package gcm

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ApploaderOffset is where the apploader always begins, right after the header
const ApploaderOffset = 0x2440

// Apploader describes the bootstrap loader blob that precedes the FST.
// Only its header is interpreted; the code itself is an opaque region.
type Apploader struct {
	Date        string
	EntryPoint  uint32
	CodeSize    uint32
	TrailerSize uint32
}

// DecodeApploader reads the apploader header starting at offset.
func DecodeApploader(r io.ReadSeeker, offset int64) (*Apploader, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	buf := make([]byte, 0x20)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to read apploader header: %w", err)
	}

	a := &Apploader{
		Date:        string(buf[0:10]),
		EntryPoint:  binary.BigEndian.Uint32(buf[0x10:]),
		CodeSize:    binary.BigEndian.Uint32(buf[0x14:]),
		TrailerSize: binary.BigEndian.Uint32(buf[0x18:]),
	}
	return a, nil
}

// TotalSize is the full on-disk size of the apploader region,
// header included.
func (a *Apploader) TotalSize() uint64 {
	return 0x20 + uint64(a.CodeSize) + uint64(a.TrailerSize)
}

// Name implements the layout Section name for the apploader region
func (a *Apploader) Name() string {
	return ApploaderPath
}

// Start implements the layout Section start offset
func (a *Apploader) Start() uint64 {
	return ApploaderOffset
}

// Len implements the layout Section byte length
func (a *Apploader) Len() uint64 {
	return a.TotalSize()
}
