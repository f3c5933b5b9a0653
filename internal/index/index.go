// Package index records the chunk tree produced by a walk and exports it.
package index

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Entry is one visited chunk. Offset is where its header begins; Length is
// the payload length the handler advanced past.
type Entry struct {
	Tag       string   `json:"tag" cbor:"1,keyasint"`
	Form      string   `json:"form,omitempty" cbor:"2,keyasint,omitempty"`
	Offset    int64    `json:"offset" cbor:"3,keyasint"`
	HeaderLen int64    `json:"header_len" cbor:"4,keyasint"`
	Length    int64    `json:"length" cbor:"5,keyasint"`
	Depth     int      `json:"depth" cbor:"6,keyasint"`
	Children  []*Entry `json:"children,omitempty" cbor:"7,keyasint,omitempty"`
}

// End is the offset just past the payload.
func (e *Entry) End() int64 { return e.Offset + e.HeaderLen + e.Length }

// Builder assembles a tree from handler callbacks. Push opens a group whose
// children are added until the matching Pop.
type Builder struct {
	roots []*Entry
	stack []*Entry
}

func (b *Builder) Add(e *Entry) {
	if n := len(b.stack); n > 0 {
		parent := b.stack[n-1]
		parent.Children = append(parent.Children, e)
		return
	}
	b.roots = append(b.roots, e)
}

func (b *Builder) Push(e *Entry) {
	b.Add(e)
	b.stack = append(b.stack, e)
}

func (b *Builder) Pop() {
	if n := len(b.stack); n > 0 {
		b.stack = b.stack[:n-1]
	}
}

func (b *Builder) Entries() []*Entry { return b.roots }

// Walk visits entries depth first. Returning false from fn skips children.
func Walk(entries []*Entry, fn func(*Entry) bool) {
	for _, e := range entries {
		if fn(e) {
			Walk(e.Children, fn)
		}
	}
}

func Count(entries []*Entry) int {
	n := 0
	Walk(entries, func(*Entry) bool {
		n++
		return true
	})
	return n
}

// Find returns the first entry with tag in depth-first order.
func Find(entries []*Entry, tag string) *Entry {
	var found *Entry
	Walk(entries, func(e *Entry) bool {
		if found == nil && e.Tag == tag {
			found = e
		}
		return found == nil
	})
	return found
}

type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

func ParseEncoding(raw string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(raw))) {
	case EncodingJSON:
		return EncodingJSON, nil
	case EncodingCBOR:
		return EncodingCBOR, nil
	default:
		return "", fmt.Errorf("index: unsupported encoding %q (expected json or cbor)", raw)
	}
}

var cborMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Export writes entries to w.
func Export(w io.Writer, enc Encoding, entries []*Entry) error {
	switch enc {
	case EncodingJSON:
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(entries)
	case EncodingCBOR:
		return cborMode.NewEncoder(w).Encode(entries)
	default:
		return fmt.Errorf("index: unsupported encoding %q", enc)
	}
}

// Import reads entries written by Export.
func Import(r io.Reader, enc Encoding) ([]*Entry, error) {
	var out []*Entry
	switch enc {
	case EncodingJSON:
		if err := json.NewDecoder(r).Decode(&out); err != nil {
			return nil, fmt.Errorf("index: decode json: %w", err)
		}
	case EncodingCBOR:
		if err := cbor.NewDecoder(r).Decode(&out); err != nil {
			return nil, fmt.Errorf("index: decode cbor: %w", err)
		}
	default:
		return nil, fmt.Errorf("index: unsupported encoding %q", enc)
	}
	return out, nil
}

// Fprint writes an indented one-line-per-chunk listing.
func Fprint(w io.Writer, entries []*Entry) error {
	var err error
	Walk(entries, func(e *Entry) bool {
		if err != nil {
			return false
		}
		label := e.Tag
		if e.Form != "" {
			label += " " + e.Form
		}
		_, err = fmt.Fprintf(w, "%s%-12s offset=%d length=%d\n",
			strings.Repeat("  ", e.Depth), label, e.Offset, e.Length)
		return true
	})
	return err
}
