package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/chunkwalk/internal/chunk/fourcc"
)

// ReadFull fills p from the current position. It never reads past the end of
// the active region: zero bytes available yields io.EOF, fewer than len(p)
// yields io.ErrUnexpectedEOF. Other source faults are *Error of KindIO.
func (w *Walker[H]) ReadFull(p []byte) error {
	if err := w.init(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	avail := w.bound - w.pos
	if avail <= 0 {
		return io.EOF
	}
	want, short := p, false
	if int64(len(p)) > avail {
		want, short = p[:avail], true
	}
	n, err := io.ReadFull(w.src, want)
	w.pos += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if n == 0 {
				return io.EOF
			}
			return io.ErrUnexpectedEOF
		}
		return &Error{Kind: KindIO, Offset: w.pos, Depth: w.depth, Err: err}
	}
	if short {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// ReadBytes reads exactly n bytes. Sizes beyond the active region fail with
// io.EOF or io.ErrUnexpectedEOF before anything is allocated; the position is
// left unchanged.
func (w *Walker[H]) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("chunk: negative read size %d", n)
	}
	if err := w.init(); err != nil {
		return nil, err
	}
	if avail := w.bound - w.pos; int64(n) > avail {
		if avail <= 0 {
			return nil, io.EOF
		}
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if err := w.ReadFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (w *Walker[H]) ReadU8() (uint8, error) {
	var b [1]byte
	if err := w.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (w *Walker[H]) ReadU16(order binary.ByteOrder) (uint16, error) {
	var b [2]byte
	if err := w.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return order.Uint16(b[:]), nil
}

func (w *Walker[H]) ReadU32(order binary.ByteOrder) (uint32, error) {
	var b [4]byte
	if err := w.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return order.Uint32(b[:]), nil
}

func (w *Walker[H]) ReadI32(order binary.ByteOrder) (int32, error) {
	v, err := w.ReadU32(order)
	return int32(v), err
}

func (w *Walker[H]) ReadU64(order binary.ByteOrder) (uint64, error) {
	var b [8]byte
	if err := w.ReadFull(b[:]); err != nil {
		return 0, err
	}
	return order.Uint64(b[:]), nil
}

func (w *Walker[H]) ReadFourCC() (fourcc.FourCC, error) {
	var id fourcc.FourCC
	if err := w.ReadFull(id[:]); err != nil {
		return fourcc.FourCC{}, err
	}
	return id, nil
}

// Peek reads n bytes and restores the position.
func (w *Walker[H]) Peek(n int) ([]byte, error) {
	if err := w.init(); err != nil {
		return nil, err
	}
	at := w.pos
	b, err := w.ReadBytes(n)
	if serr := w.seekTo(at); serr != nil {
		return nil, serr
	}
	return b, err
}

// Expect reads len(want) bytes and fails with ErrUnexpectedValue unless they
// equal want.
func (w *Walker[H]) Expect(want []byte) error {
	got, err := w.ReadBytes(len(want))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("%w: got %q want %q", ErrUnexpectedValue, got, want)
	}
	return nil
}

// Position returns the current absolute offset.
func (w *Walker[H]) Position() (int64, error) {
	if err := w.init(); err != nil {
		return 0, err
	}
	return w.pos, nil
}

// Remaining returns the bytes left before the end of the active region.
func (w *Walker[H]) Remaining() (int64, error) {
	if err := w.init(); err != nil {
		return 0, err
	}
	return w.bound - w.pos, nil
}

// Seek moves to an absolute offset inside [0, end of active region].
func (w *Walker[H]) Seek(abs int64) (int64, error) {
	if err := w.init(); err != nil {
		return 0, err
	}
	if err := w.seekTo(abs); err != nil {
		return w.pos, err
	}
	return w.pos, nil
}

// Skip moves by a relative offset.
func (w *Walker[H]) Skip(rel int64) (int64, error) {
	if err := w.init(); err != nil {
		return 0, err
	}
	return w.Seek(w.pos + rel)
}

// HeaderStart is the offset at which the header being handled began.
func (w *Walker[H]) HeaderStart() int64 { return w.headerStart }

// Depth is the current ParseRegion nesting level; zero at top level.
func (w *Walker[H]) Depth() int { return w.depth }
