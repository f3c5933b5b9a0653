package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/chunkwalk/internal/chunk"
	"github.com/danmuck/chunkwalk/internal/config"
	"github.com/danmuck/chunkwalk/internal/formats"
	"github.com/danmuck/chunkwalk/internal/formats/png"
	"github.com/danmuck/chunkwalk/internal/index"
	"github.com/danmuck/chunkwalk/internal/protocol/frame"
	"github.com/danmuck/chunkwalk/internal/protocol/tlv"
	"github.com/danmuck/chunkwalk/internal/testutil/fixtures"
	"github.com/rs/zerolog"
)

func beChunk(tag string, body []byte) []byte {
	out := append([]byte(tag), 0, 0, 0, 0)
	binary.BigEndian.PutUint32(out[4:], uint32(len(body)))
	out = append(out, body...)
	if len(body)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func sampleIFF() []byte {
	body := []byte("AIFF")
	body = append(body, beChunk("COMM", []byte{0, 1, 0, 0})...)
	body = append(body, beChunk("ANNO", []byte("hey"))...)
	return beChunk("FORM", body)
}

func writeInput(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunPrintsTree(t *testing.T) {
	path := writeInput(t, "sample.aiff", sampleIFF())
	cfg := config.DefaultWalkConfig()

	var out bytes.Buffer
	if err := run(cfg, path, &out, zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", out.String())
	}
	if !strings.HasPrefix(lines[0], "FORM AIFF") || !strings.HasPrefix(lines[1], "  COMM") {
		t.Fatalf("unexpected tree: %q", out.String())
	}
	if !strings.Contains(lines[2], "offset=24 length=3") {
		t.Fatalf("unexpected ANNO line: %q", lines[2])
	}
}

func TestRunExportsCBORToFile(t *testing.T) {
	path := writeInput(t, "sample.aiff", sampleIFF())
	dir := t.TempDir()
	cfg := config.DefaultWalkConfig()
	cfg.Export = "cbor"
	cfg.ExportPath = filepath.Join(dir, "index.cbor")
	cfg.MetricsPath = filepath.Join(dir, "walk.prom")

	var out bytes.Buffer
	if err := run(cfg, path, &out, zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	f, err := os.Open(cfg.ExportPath)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	entries, err := index.Import(f, index.EncodingCBOR)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if index.Count(entries) != 3 || index.Find(entries, "ANNO") == nil {
		t.Fatalf("unexpected exported index: %+v", entries)
	}
	if out.Len() == 0 {
		t.Fatalf("expected tree on stdout when exporting to a file")
	}
	metrics, err := os.ReadFile(cfg.MetricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), `chunkwalk_walk_runs_total{format="iff",outcome="ok"}`) {
		t.Fatalf("missing run metric:\n%s", metrics)
	}
}

func TestRunJSONExportReplacesTree(t *testing.T) {
	path := writeInput(t, "sample.aiff", sampleIFF())
	cfg := config.DefaultWalkConfig()
	cfg.Export = "json"

	var out bytes.Buffer
	if err := run(cfg, path, &out, zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	entries, err := index.Import(&out, index.EncodingJSON)
	if err != nil {
		t.Fatalf("stdout is not a json index: %v", err)
	}
	if len(entries) != 1 || len(entries[0].Children) != 2 {
		t.Fatalf("unexpected index: %+v", entries)
	}
}

func TestRunReportsFailureKind(t *testing.T) {
	// trailing chunk declares 100 bytes that are not there
	data := append(sampleIFF(), 'J', 'U', 'N', 'K', 0, 0, 0, 100)
	path := writeInput(t, "cut.aiff", data)
	cfg := config.DefaultWalkConfig()

	var out bytes.Buffer
	err := run(cfg, path, &out, zerolog.Nop())
	if !errors.Is(err, chunk.ErrSeekRange) {
		t.Fatalf("expected seek range failure, got %v", err)
	}
	if outcomeOf(err) != "seek-range" {
		t.Fatalf("unexpected outcome %q", outcomeOf(err))
	}
	if !strings.Contains(out.String(), "ANNO") || !strings.Contains(out.String(), "JUNK") {
		t.Fatalf("expected partial tree, got %q", out.String())
	}
	if outcomeOf(errors.New("plain")) != "error" {
		t.Fatalf("plain errors should map to error outcome")
	}
}

func TestRunMissingFileIsIOError(t *testing.T) {
	cfg := config.DefaultWalkConfig()
	err := run(cfg, filepath.Join(t.TempDir(), "missing"), &bytes.Buffer{}, zerolog.Nop())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestRunPNGAndFrameFormats(t *testing.T) {
	img := append([]byte{}, png.Signature...)
	img = png.AppendChunk(img, "IHDR", make([]byte, 13))
	img = png.AppendChunk(img, "IEND", nil)

	cfg := config.DefaultWalkConfig()
	cfg.Format = "png"
	var out bytes.Buffer
	if err := run(cfg, writeInput(t, "a.png", img), &out, zerolog.Nop()); err != nil {
		t.Fatalf("png run: %v", err)
	}
	if !strings.Contains(out.String(), "IEND") {
		t.Fatalf("unexpected png tree: %q", out.String())
	}

	var capture []byte
	for i := 0; i < 2; i++ {
		capture = fixtures.AppendFrame(capture, fixtures.Frame{
			Magic: frame.Magic, Version: 1, MessageType: uint32(10 + i),
			Payload: fixtures.Fields(fixtures.Field{ID: 1, Type: tlv.TypeString, Value: []byte("ping")}),
		})
	}
	cfg.Format = "frame"
	cfg.MaxPayload = 2
	out.Reset()
	err := run(cfg, writeInput(t, "cap.bin", capture), &out, zerolog.Nop())
	if !errors.Is(err, frame.ErrPayloadTooLarge) {
		t.Fatalf("expected payload limit failure, got %v", err)
	}

	cfg.MaxPayload = 0
	out.Reset()
	if err := run(cfg, writeInput(t, "cap.bin", capture), &out, zerolog.Nop()); err != nil {
		t.Fatalf("frame run: %v", err)
	}
	if !strings.Contains(out.String(), "msg:11") || !strings.Contains(out.String(), "1/6") {
		t.Fatalf("unexpected frame tree: %q", out.String())
	}
}

func TestRunAutoDetectsFormat(t *testing.T) {
	cfg := config.DefaultWalkConfig()
	cfg.Format = formats.Auto

	var out bytes.Buffer
	if err := run(cfg, writeInput(t, "sample.aiff", sampleIFF()), &out, zerolog.Nop()); err != nil {
		t.Fatalf("auto iff: %v", err)
	}
	if !strings.Contains(out.String(), "COMM") {
		t.Fatalf("unexpected tree: %q", out.String())
	}

	capture := fixtures.AppendFrame(nil, fixtures.Frame{Magic: frame.Magic, Version: 1, MessageType: 4,
		Payload: fixtures.Fields(fixtures.Field{ID: 2, Type: tlv.TypeU8, Value: []byte{1}})})
	out.Reset()
	if err := run(cfg, writeInput(t, "cap.bin", capture), &out, zerolog.Nop()); err != nil {
		t.Fatalf("auto frame: %v", err)
	}
	if !strings.Contains(out.String(), "msg:4") {
		t.Fatalf("unexpected frame tree: %q", out.String())
	}

	err := run(cfg, writeInput(t, "noise.bin", []byte("not a chunk stream")), &out, zerolog.Nop())
	if !errors.Is(err, formats.ErrUnrecognized) {
		t.Fatalf("expected unrecognized layout, got %v", err)
	}
}

func TestRunDeclarativeLayout(t *testing.T) {
	dir := t.TempDir()
	layouts := filepath.Join(dir, "layouts.toml")
	if err := config.WriteTemplate(layouts, "layouts", false); err != nil {
		t.Fatalf("write layouts: %v", err)
	}
	cfg := config.DefaultWalkConfig()
	cfg.Format = "iff-generic"
	cfg.LayoutsPath = layouts

	var out bytes.Buffer
	if err := run(cfg, writeInput(t, "sample.aiff", sampleIFF()), &out, zerolog.Nop()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "ANNO") {
		t.Fatalf("unexpected tree: %q", out.String())
	}

	cfg.Format = "nope"
	if err := run(cfg, writeInput(t, "x", nil), &out, zerolog.Nop()); err == nil {
		t.Fatalf("expected unknown layout error")
	}
	cfg.LayoutsPath = ""
	if err := run(cfg, writeInput(t, "x", nil), &out, zerolog.Nop()); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestParseArgsOverlaysFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "chunkctl.toml")
	if err := os.WriteFile(cfgPath, []byte("format = \"png\"\nmax_depth = 8\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, path, err := parseArgs([]string{"-config", cfgPath, "-strict", "-export", "cbor", "-o", "out.cbor", "in.png"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if path != "in.png" || cfg.Format != "png" || cfg.MaxDepth != 8 || !cfg.Strict {
		t.Fatalf("unexpected config: %+v path=%s", cfg, path)
	}
	if cfg.Export != "cbor" || cfg.ExportPath != "out.cbor" {
		t.Fatalf("export flags not applied: %+v", cfg)
	}

	cfg, _, err = parseArgs([]string{"-config", cfgPath, "-max-depth", "0", "-format", "riff", "a.wav"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MaxDepth != 0 || cfg.Format != "riff" {
		t.Fatalf("explicit zero flag should override file: %+v", cfg)
	}
}

func TestParseArgsRejects(t *testing.T) {
	cases := [][]string{
		{},
		{"a", "b"},
		{"-export", "xml", "a"},
		{"-o", "out.json", "a"},
		{"-config", filepath.Join(t.TempDir(), "missing.toml"), "a"},
	}
	for _, args := range cases {
		if _, _, err := parseArgs(args); err == nil {
			t.Fatalf("%v: expected error", args)
		}
	}
}
