// Package layout walks TLV streams described by data instead of code: tag
// and length widths, byte order, padding and which tags open groups.
package layout

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/chunkwalk/internal/chunk"
	"github.com/danmuck/chunkwalk/internal/index"
)

var (
	ErrInvalidLayout  = errors.New("layout: invalid layout")
	ErrLengthUnderrun = errors.New("layout: length smaller than header")
)

type Layout struct {
	Name        string
	TagWidth    int
	LengthWidth int
	Order       binary.ByteOrder
	// LengthFirst puts the length field before the tag.
	LengthFirst bool
	// LengthIncludesHeader means the length counts the header bytes too.
	LengthIncludesHeader bool
	// Align pads payloads to a multiple of Align bytes. 0 or 1 disables.
	Align int
	// Groups are tags whose payload is a FormWidth-byte form followed by
	// child chunks.
	Groups    [][]byte
	FormWidth int
	// Known, when set, lists the only leaf tags the layout accepts; any
	// other tag that is not a group fails the walk with chunk.ErrUnknownChunk.
	Known [][]byte
}

func (l Layout) HeaderLen() int { return l.TagWidth + l.LengthWidth }

func (l Layout) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidLayout)
	}
	if l.TagWidth < 1 || l.TagWidth > 16 {
		return fmt.Errorf("%w: %s tag width %d not in [1,16]", ErrInvalidLayout, l.Name, l.TagWidth)
	}
	switch l.LengthWidth {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("%w: %s length width %d not 1, 2, 4 or 8", ErrInvalidLayout, l.Name, l.LengthWidth)
	}
	if l.Order == nil && l.LengthWidth > 1 {
		return fmt.Errorf("%w: %s missing byte order", ErrInvalidLayout, l.Name)
	}
	if l.Align < 0 {
		return fmt.Errorf("%w: %s negative align", ErrInvalidLayout, l.Name)
	}
	if l.FormWidth < 0 {
		return fmt.Errorf("%w: %s negative form width", ErrInvalidLayout, l.Name)
	}
	for _, g := range l.Groups {
		if len(g) != l.TagWidth {
			return fmt.Errorf("%w: %s group tag %q is %d bytes, want %d",
				ErrInvalidLayout, l.Name, g, len(g), l.TagWidth)
		}
	}
	for _, k := range l.Known {
		if len(k) != l.TagWidth {
			return fmt.Errorf("%w: %s known tag %q is %d bytes, want %d",
				ErrInvalidLayout, l.Name, k, len(k), l.TagWidth)
		}
	}
	return nil
}

// ParseTag accepts ascii tags ("LIST") or hex with a 0x prefix ("0x0102").
func ParseTag(raw string) ([]byte, error) {
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		b, err := hex.DecodeString(raw[2:])
		if err != nil {
			return nil, fmt.Errorf("layout: tag %q: %w", raw, err)
		}
		return b, nil
	}
	return []byte(raw), nil
}

func ParseOrder(raw string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "big", "be", "big-endian", "":
		return binary.BigEndian, nil
	case "little", "le", "little-endian":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("layout: unknown byte order %q", raw)
	}
}

type Header struct {
	Tag    []byte
	Length uint64
}

// TagString renders printable tags as text and anything else as hex.
func TagString(tag []byte) string {
	for _, b := range tag {
		if b < 0x20 || b > 0x7e {
			return "0x" + hex.EncodeToString(tag)
		}
	}
	return string(tag)
}

type Walker = chunk.Walker[Header]

func (l Layout) ReadHeader() chunk.HeaderFunc[Header] {
	return func(w *Walker) (Header, error) {
		var h Header
		var err error
		if l.LengthFirst {
			if h.Length, err = l.readLength(w); err != nil {
				return Header{}, err
			}
			if h.Tag, err = w.ReadBytes(l.TagWidth); err != nil {
				return Header{}, err
			}
		} else {
			if h.Tag, err = w.ReadBytes(l.TagWidth); err != nil {
				return Header{}, err
			}
			if h.Length, err = l.readLength(w); err != nil {
				return Header{}, err
			}
		}
		if l.LengthIncludesHeader && h.Length < uint64(l.HeaderLen()) {
			return Header{}, fmt.Errorf("%w: %s length %d", ErrLengthUnderrun, TagString(h.Tag), h.Length)
		}
		return h, nil
	}
}

func (l Layout) readLength(w *Walker) (uint64, error) {
	switch l.LengthWidth {
	case 1:
		v, err := w.ReadU8()
		return uint64(v), err
	case 2:
		v, err := w.ReadU16(l.Order)
		return uint64(v), err
	case 4:
		v, err := w.ReadU32(l.Order)
		return uint64(v), err
	default:
		return w.ReadU64(l.Order)
	}
}

// PayloadLen is the number of bytes following the header, before padding.
func (l Layout) PayloadLen(h Header) (int64, error) {
	n := h.Length
	if l.LengthIncludesHeader {
		n -= uint64(l.HeaderLen())
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("layout: %s length %d overflows", TagString(h.Tag), h.Length)
	}
	return int64(n), nil
}

func (l Layout) isGroup(tag []byte) bool { return containsTag(l.Groups, tag) }

func (l Layout) isKnown(tag []byte) bool {
	return len(l.Known) == 0 || containsTag(l.Known, tag) || l.isGroup(tag)
}

func containsTag(tags [][]byte, tag []byte) bool {
	for _, t := range tags {
		if bytes.Equal(t, tag) {
			return true
		}
	}
	return false
}

func (l Layout) pad(w *Walker, n int64) (int64, error) {
	if l.Align <= 1 {
		return n, nil
	}
	padded := (n + int64(l.Align) - 1) / int64(l.Align) * int64(l.Align)
	if padded == n {
		return n, nil
	}
	rem, err := w.Remaining()
	if err != nil {
		return 0, err
	}
	if rem >= n && rem < padded {
		return n, nil
	}
	return padded, nil
}

// Scan walks src and returns the chunk tree.
func (l Layout) Scan(src io.ReadSeeker, cfg chunk.Config) ([]*index.Entry, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	w := chunk.New(src, l.ReadHeader(), cfg)
	return l.ScanWalker(w)
}

// ScanWalker is Scan over a caller-owned walker.
func (l Layout) ScanWalker(w *Walker) ([]*index.Entry, error) {
	var b index.Builder
	var fn chunk.Handler[Header]
	fn = func(w *Walker, h Header) (int64, error) {
		if !l.isKnown(h.Tag) {
			return 0, fmt.Errorf("%w: %s in layout %s", chunk.ErrUnknownChunk, TagString(h.Tag), l.Name)
		}
		n, err := l.PayloadLen(h)
		if err != nil {
			return 0, err
		}
		padded, err := l.pad(w, n)
		if err != nil {
			return 0, err
		}
		e := &index.Entry{
			Tag:       TagString(h.Tag),
			Offset:    w.HeaderStart(),
			HeaderLen: int64(l.HeaderLen()),
			Length:    n,
			Depth:     w.Depth(),
		}
		if !l.isGroup(h.Tag) {
			b.Add(e)
			return padded, nil
		}
		if n < int64(l.FormWidth) {
			return 0, fmt.Errorf("layout: group %s payload %d shorter than form width %d",
				e.Tag, n, l.FormWidth)
		}
		if l.FormWidth > 0 {
			form, err := w.ReadBytes(l.FormWidth)
			if err != nil {
				return 0, err
			}
			e.Form = TagString(form)
		}
		b.Push(e)
		defer b.Pop()
		if err := w.ParseRegion(n-int64(l.FormWidth), fn); err != nil {
			return 0, err
		}
		return padded, nil
	}
	err := w.Parse(fn)
	return b.Entries(), err
}
