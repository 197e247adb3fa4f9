package common

import (
	"bytes"
	"testing"
)

func TestPutUint24BE(t *testing.T) {
	buf := make([]byte, 3)
	PutUint24BE(buf, 0x010203)
	if !bytes.Equal(buf, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("PutUint24BE() = % X, want 01 02 03", buf)
	}

	// Only the low 24 bits fit on the wire
	PutUint24BE(buf, 0xFFABCDEF)
	if !bytes.Equal(buf, []byte{0xAB, 0xCD, 0xEF}) {
		t.Errorf("PutUint24BE() = % X, want AB CD EF", buf)
	}
}

func TestReadCString(t *testing.T) {
	text, consumed, err := ReadCString(bytes.NewReader([]byte("a.txt\x00rest")))
	if err != nil {
		t.Fatalf("ReadCString() failed: %v", err)
	}
	if text != "a.txt" {
		t.Errorf("ReadCString() = %q, want a.txt", text)
	}
	if consumed != 6 {
		t.Errorf("consumed = %d, want 6", consumed)
	}

	if _, _, err := ReadCString(bytes.NewReader([]byte("no terminator"))); err == nil {
		t.Error("ReadCString() should fail without a terminator")
	}
}

func TestAlign(t *testing.T) {
	cases := []struct {
		n, m, want uint64
	}{
		{0, 32, 0},
		{1, 32, 32},
		{32, 32, 32},
		{33, 32, 64},
		{0x2440 + 0x80, 0x8000, 0x8000},
		{5, 4, 8},
	}
	for _, c := range cases {
		if got := Align(c.n, c.m); got != c.want {
			t.Errorf("Align(%d, %d) = %d, want %d", c.n, c.m, got, c.want)
		}
	}
}

func TestParseOffset(t *testing.T) {
	cases := []struct {
		text string
		want uint64
	}{
		{"0", 0},
		{"1234567", 1234567},
		{"0x2440", 0x2440},
		{"0X2440", 0x2440},
	}
	for _, c := range cases {
		got, err := ParseOffset(c.text)
		if err != nil {
			t.Fatalf("ParseOffset(%q) failed: %v", c.text, err)
		}
		if got != c.want {
			t.Errorf("ParseOffset(%q) = %d, want %d", c.text, got, c.want)
		}
	}

	for _, text := range []string{"", "abc", "0x", "-1"} {
		if _, err := ParseOffset(text); err == nil {
			t.Errorf("ParseOffset(%q) should fail", text)
		}
	}
}
