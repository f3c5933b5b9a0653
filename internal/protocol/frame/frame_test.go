package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/danmuck/chunkwalk/internal/chunk"
	"github.com/danmuck/chunkwalk/internal/index"
	"github.com/danmuck/chunkwalk/internal/protocol/tlv"
	"github.com/danmuck/chunkwalk/internal/testutil/fixtures"
	"github.com/danmuck/chunkwalk/internal/testutil/testlog"
)

func newWalker(b []byte) *Walker {
	return chunk.New(bytes.NewReader(b), ReadHeader, chunk.DefaultConfig())
}

func TestFixtureMagicMatches(t *testing.T) {
	if fixtures.FrameMagic != Magic {
		t.Fatalf("fixture magic %08x, frame magic %08x", fixtures.FrameMagic, Magic)
	}
}

func TestDecodeHeaderFields(t *testing.T) {
	testlog.Start(t)
	b := fixtures.AppendFrameHeader(nil, Magic, 1, 40, 42, 7, FlagHasAuth|FlagIsResponse, 99)
	h, err := DecodeHeader(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Header{Magic: Magic, Version: 1, HeaderLen: 40, MessageID: 42, MessageType: 7, Flags: FlagHasAuth | FlagIsResponse, PayloadLen: 99}
	if h != want {
		t.Fatalf("header mismatch: got=%+v want=%+v", h, want)
	}
	if h.AuthLen() != 8 || h.Role() != "response" {
		t.Fatalf("unexpected auth len %d role %q", h.AuthLen(), h.Role())
	}
	if _, err := DecodeHeader(b[:31]); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestScanMalformedHeaderIsDeterministic(t *testing.T) {
	testlog.Start(t)
	_, err := Scan(bytes.NewReader([]byte{1, 2, 3}), DefaultLimits(), chunk.DefaultConfig(), nil)
	if !errors.Is(err, ErrShortHeader) || !errors.Is(err, chunk.ErrMalformedHeader) {
		t.Fatalf("expected malformed ErrShortHeader, got %v", err)
	}
}

func TestScanHeaderLenTooSmall(t *testing.T) {
	testlog.Start(t)
	buf := fixtures.AppendFrameHeader(nil, Magic, 1, 8, 1, 1, 0, 0)
	_, err := Scan(bytes.NewReader(buf), DefaultLimits(), chunk.DefaultConfig(), nil)
	if !errors.Is(err, ErrHeaderLenTooSmall) || !errors.Is(err, chunk.ErrRejected) {
		t.Fatalf("expected rejected ErrHeaderLenTooSmall, got %v", err)
	}
}

func TestScanAuthFlagWithoutAuthBytes(t *testing.T) {
	testlog.Start(t)
	buf := fixtures.AppendFrameHeader(nil, Magic, 1, FixedHeaderLen, 1, 1, FlagHasAuth, 0)
	_, err := Scan(bytes.NewReader(buf), DefaultLimits(), chunk.DefaultConfig(), nil)
	if !errors.Is(err, ErrHeaderLenMismatch) {
		t.Fatalf("expected ErrHeaderLenMismatch, got %v", err)
	}
}

func TestScanCaptureVisitsEveryFrame(t *testing.T) {
	testlog.Start(t)
	capture := fixtures.Capture(
		fixtures.Frame{Magic: Magic, Version: 1, MessageID: 1, MessageType: 1, Payload: []byte("one")},
		fixtures.Frame{Magic: Magic, Version: 1, MessageID: 2, MessageType: 2, Auth: []byte("tok"), Payload: []byte("two!")},
		fixtures.Frame{Magic: Magic, Version: 1, MessageID: 3, MessageType: 7, Flags: FlagIsError},
	)

	var ids []uint64
	var auth []byte
	limits := DefaultLimits()
	limits.Magic = Magic
	entries, err := Scan(bytes.NewReader(capture), limits, chunk.DefaultConfig(), func(w *Walker, h Header, _ *index.Entry) error {
		ids = append(ids, h.MessageID)
		if h.AuthLen() > 0 {
			b, err := w.ReadBytes(int(h.AuthLen()))
			if err != nil {
				return err
			}
			auth = b
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if string(auth) != "tok" {
		t.Fatalf("auth mismatch: %q", auth)
	}
	if entries[1].Tag != "msg:2" || entries[1].Length != 7 || entries[1].Form != "request" {
		t.Fatalf("unexpected entry: %+v", entries[1])
	}
	if entries[2].Form != "error" {
		t.Fatalf("expected error role, got %q", entries[2].Form)
	}
	if got := entries[2].End(); got != int64(len(capture)) {
		t.Fatalf("expected capture end %d, got %d", len(capture), got)
	}
}

func TestScanCaptureLimitsAreRejections(t *testing.T) {
	testlog.Start(t)
	capture := fixtures.Capture(
		fixtures.Frame{Magic: Magic, Version: 1, MessageID: 1, Payload: make([]byte, 64)},
	)
	limits := DefaultLimits()
	limits.MaxPayloadBytes = 16
	_, err := Scan(bytes.NewReader(capture), limits, chunk.DefaultConfig(), nil)
	if !errors.Is(err, ErrPayloadTooLarge) || !errors.Is(err, chunk.ErrRejected) {
		t.Fatalf("expected rejected ErrPayloadTooLarge, got %v", err)
	}

	limits = DefaultLimits()
	limits.Magic = 0xBADF00D
	_, err = Scan(bytes.NewReader(capture), limits, chunk.DefaultConfig(), nil)
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestScanCaptureTruncated(t *testing.T) {
	testlog.Start(t)
	capture := fixtures.Capture(
		fixtures.Frame{Magic: Magic, Version: 1, MessageID: 1, Payload: []byte("abc")},
		fixtures.Frame{Magic: Magic, Version: 1, MessageID: 2, Payload: []byte("def")},
	)

	_, err := Scan(bytes.NewReader(capture[:len(capture)-40]), DefaultLimits(), chunk.DefaultConfig(), nil)
	if !errors.Is(err, ErrShortHeader) || !errors.Is(err, chunk.ErrMalformedHeader) {
		t.Fatalf("expected short header, got %v", err)
	}

	_, err = Scan(bytes.NewReader(capture[:len(capture)-1]), DefaultLimits(), chunk.DefaultConfig(), nil)
	if !errors.Is(err, chunk.ErrSeekRange) {
		t.Fatalf("expected seek range, got %v", err)
	}
}

func TestScanMessagesIndexesPayloadFields(t *testing.T) {
	testlog.Start(t)
	capture := fixtures.Capture(
		fixtures.Frame{Magic: Magic, Version: 1, MessageID: 1, MessageType: 3, Auth: []byte("tok"),
			Payload: fixtures.Fields(
				fixtures.Field{ID: 1, Type: tlv.TypeString, Value: []byte("intent-1")},
				fixtures.Field{ID: 9, Type: tlv.TypeU32, Value: []byte{0, 0, 0, 42}},
			)},
		fixtures.Frame{Magic: Magic, Version: 1, MessageID: 2, MessageType: 3, Flags: FlagIsResponse},
	)

	var visited []uint64
	var values []string
	entries, err := ScanMessages(newWalker(capture), DefaultLimits(), func(h Header, fields []tlv.Field) error {
		visited = append(visited, h.MessageID)
		for _, f := range fields {
			values = append(values, string(f.Value))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scan messages: %v", err)
	}
	if len(entries) != 2 || len(visited) != 2 {
		t.Fatalf("expected 2 frames, got %d entries %v visited", len(entries), visited)
	}
	if len(values) != 2 || values[0] != "intent-1" {
		t.Fatalf("unexpected values: %q", values)
	}

	first := entries[0]
	if first.Form != "request" || len(first.Children) != 2 {
		t.Fatalf("unexpected first frame: %+v", first)
	}
	// payload begins after the 32-byte header and 3 auth bytes
	if c := first.Children[0]; c.Tag != "1/6" || c.Offset != 35 || c.Length != 8 || c.Depth != 1 {
		t.Fatalf("unexpected first field: %+v", c)
	}
	if c := first.Children[1]; c.Tag != "9/3" || c.Offset != 50 || c.End() != first.End() {
		t.Fatalf("unexpected second field: %+v", c)
	}
	if entries[1].Form != "response" || len(entries[1].Children) != 0 {
		t.Fatalf("unexpected second frame: %+v", entries[1])
	}
}

func TestScanMessagesRejectsNonFieldPayload(t *testing.T) {
	testlog.Start(t)
	ok := fixtures.Frame{Magic: Magic, Version: 1, MessageID: 1,
		Payload: fixtures.Fields(fixtures.Field{ID: 1, Type: tlv.TypeBool, Value: []byte{1}})}
	bad := fixtures.Frame{Magic: Magic, Version: 1, MessageID: 2, Payload: []byte("ping")}
	capture := fixtures.Capture(ok, bad)

	_, err := ScanMessages(newWalker(capture), DefaultLimits(), nil)
	if !errors.Is(err, ErrBadPayload) || !errors.Is(err, tlv.ErrShortFieldHeader) {
		t.Fatalf("expected ErrBadPayload wrapping short field header, got %v", err)
	}
	var ce *chunk.Error
	if !errors.As(err, &ce) || ce.Kind != chunk.KindRejected {
		t.Fatalf("expected rejected chunk error, got %v", err)
	}
	if want := int64(len(fixtures.AppendFrame(nil, ok))); ce.Offset != want {
		t.Fatalf("expected offset %d, got %d", want, ce.Offset)
	}
}

func TestScanMessagesTruncatedPayload(t *testing.T) {
	testlog.Start(t)
	capture := fixtures.Capture(fixtures.Frame{Magic: Magic, Version: 1, MessageID: 9,
		Payload: fixtures.Fields(fixtures.Field{ID: 1, Type: tlv.TypeString, Value: []byte("payload")})})
	_, err := ScanMessages(newWalker(capture[:len(capture)-3]), DefaultLimits(), nil)
	if !errors.Is(err, io.ErrUnexpectedEOF) || !errors.Is(err, chunk.ErrRejected) {
		t.Fatalf("expected rejected unexpected EOF, got %v", err)
	}
}
