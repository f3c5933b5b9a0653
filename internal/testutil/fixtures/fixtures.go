// Package fixtures builds wire bytes for tests of the frame and tlv walkers.
package fixtures

import "encoding/binary"

const (
	FrameMagic  uint32 = 0xEDCE1001
	frameHdrLen        = 32
	flagHasAuth uint32 = 0x01
)

// Field is one TLV field to encode.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

// AppendField appends the 7-byte id/type/length header and the value.
func AppendField(buf []byte, f Field) []byte {
	buf = binary.BigEndian.AppendUint16(buf, f.ID)
	buf = append(buf, f.Type)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(f.Value)))
	return append(buf, f.Value...)
}

func Fields(fields ...Field) []byte {
	var out []byte
	for _, f := range fields {
		out = AppendField(out, f)
	}
	return out
}

// Frame describes one message for AppendFrame. HeaderLen, PayloadLen and the
// auth flag are derived from Auth and Payload.
type Frame struct {
	Magic       uint32
	Version     uint16
	MessageID   uint64
	MessageType uint32
	Flags       uint32
	Auth        []byte
	Payload     []byte
}

func AppendFrame(buf []byte, f Frame) []byte {
	flags := f.Flags &^ flagHasAuth
	if len(f.Auth) > 0 {
		flags |= flagHasAuth
	}
	buf = AppendFrameHeader(buf, f.Magic, f.Version, uint16(frameHdrLen+len(f.Auth)),
		f.MessageID, f.MessageType, flags, uint64(len(f.Payload)))
	buf = append(buf, f.Auth...)
	return append(buf, f.Payload...)
}

// AppendFrameHeader writes a raw fixed header, for malformed-header cases.
func AppendFrameHeader(buf []byte, magic uint32, version, headerLen uint16, id uint64, typ, flags uint32, payloadLen uint64) []byte {
	buf = binary.BigEndian.AppendUint32(buf, magic)
	buf = binary.BigEndian.AppendUint16(buf, version)
	buf = binary.BigEndian.AppendUint16(buf, headerLen)
	buf = binary.BigEndian.AppendUint64(buf, id)
	buf = binary.BigEndian.AppendUint32(buf, typ)
	buf = binary.BigEndian.AppendUint32(buf, flags)
	return binary.BigEndian.AppendUint64(buf, payloadLen)
}

func Capture(frames ...Frame) []byte {
	var out []byte
	for _, f := range frames {
		out = AppendFrame(out, f)
	}
	return out
}
