// Package png walks PNG chunk streams and verifies their CRCs.
package png

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/danmuck/chunkwalk/internal/chunk"
	"github.com/danmuck/chunkwalk/internal/chunk/fourcc"
	"github.com/danmuck/chunkwalk/internal/index"
)

const (
	HeaderLen = 8
	crcLen    = 4
	// MaxChunkLen is the largest chunk length PNG allows (2^31-1).
	MaxChunkLen = 1<<31 - 1
)

var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

var (
	ErrChecksum      = errors.New("png: crc mismatch")
	ErrChunkTooLarge = errors.New("png: chunk length exceeds 2^31-1")
	ErrAfterEnd      = errors.New("png: chunk after IEND")
	ErrMissingEnd    = errors.New("png: missing IEND")
	ErrFirstNotIHDR  = errors.New("png: first chunk is not IHDR")
)

var (
	tagIHDR = fourcc.New("IHDR")
	tagIEND = fourcc.New("IEND")
)

type Header struct {
	Length uint32
	Type   fourcc.FourCC
}

type Walker = chunk.Walker[Header]

// Critical reports whether the ancillary bit (bit 5 of the first byte) is clear.
func (h Header) Critical() bool { return h.Type[0]&0x20 == 0 }

func ReadHeader(w *Walker) (Header, error) {
	n, err := w.ReadU32(binary.BigEndian)
	if err != nil {
		return Header{}, err
	}
	typ, err := w.ReadFourCC()
	if err != nil {
		return Header{}, err
	}
	if n > MaxChunkLen {
		return Header{}, fmt.Errorf("%w: %s length %d", ErrChunkTooLarge, typ, n)
	}
	return Header{Length: n, Type: typ}, nil
}

// Chunk is a verified chunk handed to a Visitor. Data is only populated when
// the visitor asked for the chunk's data.
type Chunk struct {
	Header
	Offset int64
	Data   []byte
}

// Options selects which chunk bodies are kept in memory.
type Options struct {
	Keep func(Header) bool
	// SkipCRC disables checksum verification. Bodies are then not read
	// unless kept.
	SkipCRC bool
}

// Scan checks the signature, walks every chunk, and returns the chunk index.
func Scan(src io.ReadSeeker, opts Options, cfg chunk.Config, visit func(Chunk) error) ([]*index.Entry, error) {
	return ScanWalker(chunk.New(src, ReadHeader, cfg), opts, visit)
}

// ScanWalker is Scan over a caller-owned walker positioned at the signature.
func ScanWalker(w *Walker, opts Options, visit func(Chunk) error) ([]*index.Entry, error) {
	if err := w.Expect(Signature); err != nil {
		return nil, fmt.Errorf("png: signature: %w", err)
	}

	var (
		entries []*index.Entry
		count   int
		ended   bool
	)
	err := w.Parse(func(w *Walker, h Header) (int64, error) {
		if ended {
			return 0, fmt.Errorf("%w: %s", ErrAfterEnd, h.Type)
		}
		if count == 0 && h.Type != tagIHDR {
			return 0, fmt.Errorf("%w: found %s", ErrFirstNotIHDR, h.Type)
		}
		count++
		ended = h.Type == tagIEND

		c := Chunk{Header: h, Offset: w.HeaderStart()}
		keep := opts.Keep != nil && opts.Keep(h)
		if keep || !opts.SkipCRC {
			data, err := w.ReadBytes(int(h.Length))
			if err != nil {
				return 0, fmt.Errorf("png: %s body: %w", h.Type, err)
			}
			if !opts.SkipCRC {
				if err := verifyCRC(w, h, data); err != nil {
					return 0, err
				}
			}
			if keep {
				c.Data = data
			}
		}

		entries = append(entries, &index.Entry{
			Tag:       h.Type.String(),
			Offset:    c.Offset,
			HeaderLen: HeaderLen,
			Length:    int64(h.Length) + crcLen,
		})
		if visit != nil {
			if err := visit(c); err != nil {
				return 0, err
			}
		}
		return int64(h.Length) + crcLen, nil
	})
	if err != nil {
		return entries, err
	}
	if !ended {
		return entries, ErrMissingEnd
	}
	return entries, nil
}

func verifyCRC(w *Walker, h Header, data []byte) error {
	want, err := w.ReadU32(binary.BigEndian)
	if err != nil {
		return fmt.Errorf("png: %s crc: %w", h.Type, err)
	}
	crc := crc32.NewIEEE()
	crc.Write(h.Type[:])
	crc.Write(data)
	if got := crc.Sum32(); got != want {
		return fmt.Errorf("%w: %s got %08x want %08x", ErrChecksum, h.Type, got, want)
	}
	return nil
}

// AppendChunk encodes one chunk with its CRC.
func AppendChunk(buf []byte, typ string, data []byte) []byte {
	id := fourcc.New(typ)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, id[:]...)
	buf = append(buf, data...)
	crc := crc32.NewIEEE()
	crc.Write(id[:])
	crc.Write(data)
	return binary.BigEndian.AppendUint32(buf, crc.Sum32())
}
