package common

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// PutUint24BE writes a 24-bit big-endian value into a 3-byte slice
func PutUint24BE(buf []byte, value uint32) {
	buf[0] = byte(value >> 16)
	buf[1] = byte(value >> 8)
	buf[2] = byte(value)
}

// ReadCString reads bytes up to and including a null terminator and returns
// the string before the terminator plus the total number of bytes consumed.
func ReadCString(reader io.Reader) (string, int, error) {
	br := bufio.NewReader(reader)
	raw, err := br.ReadString(0)
	if err != nil {
		return "", 0, err
	}
	return raw[:len(raw)-1], len(raw), nil
}

// Align rounds n up to the next multiple of m
func Align(n, m uint64) uint64 {
	if n%m == 0 {
		return n
	}
	return (n/m + 1) * m
}

// ParseOffset parses a decimal or 0x-prefixed hexadecimal offset
func ParseOffset(text string) (uint64, error) {
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		return strconv.ParseUint(text[2:], 16, 64)
	}
	return strconv.ParseUint(text, 10, 64)
}
