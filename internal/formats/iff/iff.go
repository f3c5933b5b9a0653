// Package iff walks IFF-85 and RIFF containers.
//
// Both formats share one layout: a four-byte tag, a 32-bit payload size, the
// payload, and a pad byte after odd-sized payloads. Group chunks begin their
// payload with a four-byte form type followed by child chunks.
package iff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/chunkwalk/internal/chunk"
	"github.com/danmuck/chunkwalk/internal/chunk/fourcc"
	"github.com/danmuck/chunkwalk/internal/index"
)

const HeaderLen = 8

var (
	ErrNotContainer = errors.New("iff: stream does not start with a group chunk")
	ErrShortGroup   = errors.New("iff: group chunk smaller than its form type")
)

// Dialect fixes byte order and the tags that open a group.
type Dialect struct {
	Name   string
	Order  binary.ByteOrder
	Groups []fourcc.FourCC
}

var (
	IFF = Dialect{
		Name:   "iff",
		Order:  binary.BigEndian,
		Groups: []fourcc.FourCC{fourcc.New("FORM"), fourcc.New("LIST"), fourcc.New("CAT ")},
	}
	RIFF = Dialect{
		Name:   "riff",
		Order:  binary.LittleEndian,
		Groups: []fourcc.FourCC{fourcc.New("RIFF"), fourcc.New("LIST")},
	}
)

func (d Dialect) IsGroup(id fourcc.FourCC) bool { return id.Match(d.Groups...) }

// Header is one chunk header.
type Header struct {
	ID   fourcc.FourCC
	Size uint32
}

// Walker is the chunk walker specialised to IFF headers.
type Walker = chunk.Walker[Header]

// ReadHeader returns the header reader for d.
func (d Dialect) ReadHeader() chunk.HeaderFunc[Header] {
	return func(w *Walker) (Header, error) {
		id, err := w.ReadFourCC()
		if err != nil {
			return Header{}, err
		}
		size, err := w.ReadU32(d.Order)
		if err != nil {
			return Header{}, err
		}
		return Header{ID: id, Size: size}, nil
	}
}

// Visitor is called for every chunk. form is the group form type and is zero
// for leaf chunks. A leaf visitor may read payload bytes; the walk still
// advances by the declared size.
type Visitor func(w *Walker, h Header, form fourcc.FourCC) error

// Handler builds the recursive handler for d. Groups are descended into with
// a bounded region; everything else is a leaf.
func (d Dialect) Handler(visit Visitor) chunk.Handler[Header] {
	var fn chunk.Handler[Header]
	fn = func(w *Walker, h Header) (int64, error) {
		size := int64(h.Size)
		padded, err := padTo(w, size)
		if err != nil {
			return 0, err
		}
		if !d.IsGroup(h.ID) {
			if visit != nil {
				if err := visit(w, h, fourcc.FourCC{}); err != nil {
					return 0, err
				}
			}
			return padded, nil
		}
		if size < 4 {
			return 0, fmt.Errorf("%w: %s size %d", ErrShortGroup, h.ID, size)
		}
		form, err := w.ReadFourCC()
		if err != nil {
			return 0, err
		}
		if visit != nil {
			if err := visit(w, h, form); err != nil {
				return 0, err
			}
		}
		if err := w.ParseRegion(size-4, fn); err != nil {
			return 0, err
		}
		return padded, nil
	}
	return fn
}

// padTo rounds odd sizes up to even, except when the pad byte would fall past
// the end of the enclosing region. Many writers omit the final pad byte.
func padTo(w *Walker, size int64) (int64, error) {
	if size%2 == 0 {
		return size, nil
	}
	rem, err := w.Remaining()
	if err != nil {
		return 0, err
	}
	if rem == size {
		return size, nil
	}
	return size + 1, nil
}

// Scan walks src as a dialect container and returns its chunk tree.
func Scan(src io.ReadSeeker, d Dialect, cfg chunk.Config) ([]*index.Entry, error) {
	w := chunk.New(src, d.ReadHeader(), cfg)
	return ScanWalker(w, d)
}

// ScanWalker is Scan over an existing walker, which the caller still owns.
func ScanWalker(w *Walker, d Dialect) ([]*index.Entry, error) {
	var b index.Builder
	var stackDepth []int

	visit := func(w *Walker, h Header, form fourcc.FourCC) error {
		for len(stackDepth) > 0 && stackDepth[len(stackDepth)-1] >= w.Depth() {
			stackDepth = stackDepth[:len(stackDepth)-1]
			b.Pop()
		}
		e := &index.Entry{
			Tag:       h.ID.String(),
			Offset:    w.HeaderStart(),
			HeaderLen: HeaderLen,
			Length:    int64(h.Size),
			Depth:     w.Depth(),
		}
		if !d.IsGroup(h.ID) {
			b.Add(e)
			return nil
		}
		e.Form = form.String()
		b.Push(e)
		stackDepth = append(stackDepth, w.Depth())
		return nil
	}

	first := true
	root := d.Handler(visit)
	err := w.Parse(func(w *Walker, h Header) (int64, error) {
		if first && !d.IsGroup(h.ID) {
			return 0, fmt.Errorf("%w: found %s", ErrNotContainer, h.ID)
		}
		first = false
		return root(w, h)
	})
	if err != nil {
		return b.Entries(), err
	}
	return b.Entries(), nil
}
