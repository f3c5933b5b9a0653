package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/chunkwalk/internal/formats/png"
	"github.com/danmuck/chunkwalk/internal/protocol/frame"
)

// Auto is the format name that asks chunkctl to pick a builtin from the
// leading bytes of the file.
const Auto = "auto"

// SniffLen is how many leading bytes Sniff looks at.
const SniffLen = 8

var ErrUnrecognized = errors.New("formats: unrecognized file layout")

// Sniff names the builtin format whose signature opens head. tlv is never
// returned: a field stream has no signature.
func Sniff(head []byte) (string, bool) {
	if len(head) >= len(png.Signature) && bytes.Equal(head[:len(png.Signature)], png.Signature) {
		return "png", true
	}
	if len(head) < 4 {
		return "", false
	}
	switch string(head[:4]) {
	case "FORM", "CAT ":
		return "iff", true
	case "RIFF":
		return "riff", true
	case "LIST":
		// Both dialects open with LIST; the byte order whose length is
		// smaller is the plausible one.
		if len(head) < 8 {
			return "", false
		}
		if binary.BigEndian.Uint32(head[4:8]) <= binary.LittleEndian.Uint32(head[4:8]) {
			return "iff", true
		}
		return "riff", true
	}
	if len(head) >= 8 && binary.BigEndian.Uint32(head[:4]) == frame.Magic &&
		binary.BigEndian.Uint16(head[6:8]) >= frame.FixedHeaderLen {
		return "frame", true
	}
	return "", false
}

// DetectFile reads the head of path and sniffs it.
func DetectFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, SniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("formats: read %s: %w", path, err)
	}
	name, ok := Sniff(head[:n])
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnrecognized, path)
	}
	return name, nil
}
