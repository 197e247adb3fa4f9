package gcm

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestDecodeApploader(t *testing.T) {
	image := make([]byte, ApploaderOffset+0x20)
	copy(image[ApploaderOffset:], "2001/12/17")
	binary.BigEndian.PutUint32(image[ApploaderOffset+0x10:], 0x81200000)
	binary.BigEndian.PutUint32(image[ApploaderOffset+0x14:], 0x4000)
	binary.BigEndian.PutUint32(image[ApploaderOffset+0x18:], 0x1C)

	a, err := DecodeApploader(bytes.NewReader(image), ApploaderOffset)
	if err != nil {
		t.Fatalf("DecodeApploader() failed: %v", err)
	}

	if a.Date != "2001/12/17" {
		t.Errorf("Date = %q, want 2001/12/17", a.Date)
	}
	if a.EntryPoint != 0x81200000 {
		t.Errorf("EntryPoint = 0x%X, want 0x81200000", a.EntryPoint)
	}
	if a.TotalSize() != 0x20+0x4000+0x1C {
		t.Errorf("TotalSize() = 0x%X, want 0x%X", a.TotalSize(), uint64(0x20+0x4000+0x1C))
	}
	if a.Start() != ApploaderOffset {
		t.Errorf("Start() = 0x%X, want 0x%X", a.Start(), uint64(ApploaderOffset))
	}
	if a.Len() != a.TotalSize() {
		t.Errorf("Len() = 0x%X, want TotalSize()", a.Len())
	}
	if a.Name() != ApploaderPath {
		t.Errorf("Name() = %q, want %q", a.Name(), ApploaderPath)
	}
}

func TestDecodeApploader_Truncated(t *testing.T) {
	if _, err := DecodeApploader(bytes.NewReader(make([]byte, 0x10)), 0); err == nil {
		t.Fatal("DecodeApploader() should fail on a truncated header")
	}
}
