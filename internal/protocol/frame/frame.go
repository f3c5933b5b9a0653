package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/chunkwalk/internal/chunk"
	"github.com/danmuck/chunkwalk/internal/index"
	"github.com/danmuck/chunkwalk/internal/protocol/tlv"
)

const (
	FixedHeaderLen uint16 = 32
	// Magic opens every frame written by the control plane.
	Magic          uint32 = 0xEDCE1001
	FlagHasAuth    uint32 = 0x01
	FlagIsResponse uint32 = 0x02
	FlagIsError    uint32 = 0x04
)

var (
	ErrShortHeader       = errors.New("frame: short fixed header")
	ErrHeaderLenTooSmall = errors.New("frame: header_len smaller than fixed header")
	ErrHeaderLenMismatch = errors.New("frame: auth present but header_len has no auth bytes")
	ErrPayloadTooLarge   = errors.New("frame: payload too large")
	ErrAuthTooLarge      = errors.New("frame: auth too large")
	ErrBadMagic          = errors.New("frame: unexpected magic")
	ErrBadPayload        = errors.New("frame: payload is not a tlv field sequence")
)

// Header is the fixed wire header.
type Header struct {
	Magic       uint32
	Version     uint16
	HeaderLen   uint16
	MessageID   uint64
	MessageType uint32
	Flags       uint32
	PayloadLen  uint64
}

// AuthLen is the number of auth bytes between the fixed header and payload.
func (h Header) AuthLen() uint64 {
	if h.HeaderLen < FixedHeaderLen {
		return 0
	}
	return uint64(h.HeaderLen - FixedHeaderLen)
}

// Role names the message direction carried in Flags.
func (h Header) Role() string {
	switch {
	case h.Flags&FlagIsError != 0:
		return "error"
	case h.Flags&FlagIsResponse != 0:
		return "response"
	default:
		return "request"
	}
}

// Limits constrains frame sizes accepted by a scan.
type Limits struct {
	MaxAuthBytes    uint64
	MaxPayloadBytes uint64
	// Magic, when set, must match every frame in a capture.
	Magic uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxAuthBytes:    64 * 1024,
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

func (l Limits) check(h Header) error {
	if h.HeaderLen < FixedHeaderLen {
		return ErrHeaderLenTooSmall
	}
	authLen := h.AuthLen()
	if h.Flags&FlagHasAuth != 0 && authLen == 0 {
		return ErrHeaderLenMismatch
	}
	if authLen > l.MaxAuthBytes {
		return ErrAuthTooLarge
	}
	if h.PayloadLen > l.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	if l.Magic != 0 && h.Magic != l.Magic {
		return fmt.Errorf("%w: got %08x want %08x", ErrBadMagic, h.Magic, l.Magic)
	}
	return nil
}

type Walker = chunk.Walker[Header]

// ReadHeader reads one fixed header through the walker.
func ReadHeader(w *Walker) (Header, error) {
	var fixed [FixedHeaderLen]byte
	if err := w.ReadFull(fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, ErrShortHeader
		}
		return Header{}, err
	}
	return DecodeHeader(fixed[:])
}

// Scan walks a capture file: frames written back to back.
// fn sees each header and its index entry with the walker positioned at the
// auth block, and may read auth and payload; the walk skips whatever it
// leaves unread.
func Scan(src io.ReadSeeker, limits Limits, cfg chunk.Config, fn func(w *Walker, h Header, e *index.Entry) error) ([]*index.Entry, error) {
	return ScanWalker(chunk.New(src, ReadHeader, cfg), limits, fn)
}

// ScanWalker is Scan over a caller-owned walker.
func ScanWalker(w *Walker, limits Limits, fn func(w *Walker, h Header, e *index.Entry) error) ([]*index.Entry, error) {
	var entries []*index.Entry
	err := w.Parse(func(w *Walker, h Header) (int64, error) {
		if err := limits.check(h); err != nil {
			return 0, err
		}
		length := int64(h.AuthLen()) + int64(h.PayloadLen)
		e := &index.Entry{
			Tag:       fmt.Sprintf("msg:%d", h.MessageType),
			Form:      h.Role(),
			Offset:    w.HeaderStart(),
			HeaderLen: int64(FixedHeaderLen),
			Length:    length,
		}
		entries = append(entries, e)
		if fn != nil {
			if err := fn(w, h, e); err != nil {
				return 0, err
			}
		}
		return length, nil
	})
	return entries, err
}

// ScanMessages is ScanWalker for captures whose payloads are TLV field
// sequences. Every field becomes a child entry of its frame; visit, when set,
// receives the decoded fields.
func ScanMessages(w *Walker, limits Limits, visit func(h Header, fields []tlv.Field) error) ([]*index.Entry, error) {
	return ScanWalker(w, limits, func(w *Walker, h Header, e *index.Entry) error {
		if _, err := w.Skip(int64(h.AuthLen())); err != nil {
			return err
		}
		start, err := w.Position()
		if err != nil {
			return err
		}
		payload, err := w.ReadBytes(int(h.PayloadLen))
		if err != nil {
			return fmt.Errorf("frame: message %d payload: %w", h.MessageID, err)
		}
		fields, err := tlv.DecodeFields(payload)
		if err != nil {
			// Report against the frame, not the payload-relative offset.
			var ce *chunk.Error
			if errors.As(err, &ce) {
				err = ce.Err
			}
			return fmt.Errorf("%w: message %d: %w", ErrBadPayload, h.MessageID, err)
		}

		off := start
		for _, f := range fields {
			e.Children = append(e.Children, &index.Entry{
				Tag:       fmt.Sprintf("%d/%d", f.ID, f.Type),
				Offset:    off,
				HeaderLen: tlv.HeaderLen,
				Length:    int64(len(f.Value)),
				Depth:     1,
			})
			off += tlv.HeaderLen + int64(len(f.Value))
		}
		if visit != nil {
			return visit(h, fields)
		}
		return nil
	})
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(FixedHeaderLen) {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:       binary.BigEndian.Uint32(b[0:4]),
		Version:     binary.BigEndian.Uint16(b[4:6]),
		HeaderLen:   binary.BigEndian.Uint16(b[6:8]),
		MessageID:   binary.BigEndian.Uint64(b[8:16]),
		MessageType: binary.BigEndian.Uint32(b[16:20]),
		Flags:       binary.BigEndian.Uint32(b[20:24]),
		PayloadLen:  binary.BigEndian.Uint64(b[24:32]),
	}, nil
}
