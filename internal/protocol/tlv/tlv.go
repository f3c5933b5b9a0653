package tlv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/chunkwalk/internal/chunk"
	"github.com/danmuck/chunkwalk/internal/index"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
)

// Type IDs from tlv contract.
const (
	TypeU8     uint8 = 1
	TypeU16    uint8 = 2
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeBool   uint8 = 5
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
)

// FieldHeader is the 7-byte field prefix: id, type, value length.
type FieldHeader struct {
	ID   uint16
	Type uint8
	Len  uint32
}

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

type Walker = chunk.Walker[FieldHeader]

// ReadHeader reads one field header. A header cut short is ErrShortFieldHeader.
func ReadHeader(w *Walker) (FieldHeader, error) {
	var buf [HeaderLen]byte
	if err := w.ReadFull(buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return FieldHeader{}, ErrShortFieldHeader
		}
		return FieldHeader{}, err
	}
	return FieldHeader{
		ID:   binary.BigEndian.Uint16(buf[0:2]),
		Type: buf[2],
		Len:  binary.BigEndian.Uint32(buf[3:7]),
	}, nil
}

// WalkFields streams fields from src without buffering values. fn may read
// the value through w; the walk advances past the value either way.
func WalkFields(src io.ReadSeeker, cfg chunk.Config, fn func(w *Walker, h FieldHeader) error) error {
	return walkFields(chunk.New(src, ReadHeader, cfg), fn)
}

// ScanWalker indexes every field reachable from w. Fields are tagged
// "<id>/<type>".
func ScanWalker(w *Walker) ([]*index.Entry, error) {
	var entries []*index.Entry
	err := walkFields(w, func(w *Walker, h FieldHeader) error {
		entries = append(entries, &index.Entry{
			Tag:       fmt.Sprintf("%d/%d", h.ID, h.Type),
			Offset:    w.HeaderStart(),
			HeaderLen: HeaderLen,
			Length:    int64(h.Len),
		})
		return nil
	})
	return entries, err
}

func walkFields(w *Walker, fn func(w *Walker, h FieldHeader) error) error {
	return w.Parse(func(w *Walker, h FieldHeader) (int64, error) {
		rem, err := w.Remaining()
		if err != nil {
			return 0, err
		}
		if int64(h.Len) > rem {
			return 0, fmt.Errorf("%w: field %d wants %d bytes, %d left", ErrShortFieldValue, h.ID, h.Len, rem)
		}
		if fn != nil {
			if err := fn(w, h); err != nil {
				return 0, err
			}
		}
		return int64(h.Len), nil
	})
}

// DecodeFields buffers every field of payload.
func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	err := WalkFields(bytes.NewReader(payload), chunk.DefaultConfig(), func(w *Walker, h FieldHeader) error {
		val, err := w.ReadBytes(int(h.Len))
		if err != nil {
			return err
		}
		fields = append(fields, Field{ID: h.ID, Type: h.Type, Value: val})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}
