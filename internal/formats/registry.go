// Package formats names the chunk consumers chunkctl can run and keeps them in
// a registry keyed by format name.
package formats

import (
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/chunkwalk/internal/chunk"
	"github.com/danmuck/chunkwalk/internal/formats/iff"
	"github.com/danmuck/chunkwalk/internal/formats/layout"
	"github.com/danmuck/chunkwalk/internal/formats/png"
	"github.com/danmuck/chunkwalk/internal/index"
	"github.com/danmuck/chunkwalk/internal/protocol/frame"
	"github.com/danmuck/chunkwalk/internal/protocol/tlv"
)

// Format walks one file and returns its chunk tree. A failed walk still
// returns the entries indexed before the failure.
type Format interface {
	Name() string
	ScanFile(path string, cfg chunk.Config) ([]*index.Entry, error)
}

type Registry struct {
	mu      sync.RWMutex
	formats map[string]Format
}

func NewRegistry() *Registry {
	return &Registry{formats: map[string]Format{}}
}

// Register adds f. Names are unique; a layout cannot shadow a builtin.
func (r *Registry) Register(f Format) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.formats[f.Name()]; ok {
		return fmt.Errorf("formats: %q already registered", f.Name())
	}
	r.formats[f.Name()] = f
	return nil
}

func (r *Registry) Get(name string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[name]
	return f, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options carries consumer settings that do not fit chunk.Config.
type Options struct {
	FrameLimits frame.Limits
}

func DefaultOptions() Options {
	return Options{FrameLimits: frame.DefaultLimits()}
}

// Builtins returns a registry holding iff, riff, png, tlv and frame.
func Builtins(opts Options) *Registry {
	r := NewRegistry()
	for _, f := range []Format{
		Dialect(iff.IFF),
		Dialect(iff.RIFF),
		Func[png.Header]{FormatName: "png", ReadHeader: png.ReadHeader, Scan: func(w *png.Walker) ([]*index.Entry, error) {
			return png.ScanWalker(w, png.Options{}, nil)
		}},
		Func[tlv.FieldHeader]{FormatName: "tlv", ReadHeader: tlv.ReadHeader, Scan: tlv.ScanWalker},
		Func[frame.Header]{FormatName: "frame", ReadHeader: frame.ReadHeader, Scan: func(w *frame.Walker) ([]*index.Entry, error) {
			return frame.ScanMessages(w, opts.FrameLimits, nil)
		}},
	} {
		// builtin names are distinct
		_ = r.Register(f)
	}
	return r
}

// Func adapts a header reader and a walker scan to Format.
type Func[H any] struct {
	FormatName string
	ReadHeader chunk.HeaderFunc[H]
	Scan       func(w *chunk.Walker[H]) ([]*index.Entry, error)
}

func (f Func[H]) Name() string { return f.FormatName }

func (f Func[H]) ScanFile(path string, cfg chunk.Config) (entries []*index.Entry, err error) {
	w, err := chunk.Open(path, f.ReadHeader, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return f.Scan(w)
}

func Dialect(d iff.Dialect) Format {
	return Func[iff.Header]{FormatName: d.Name, ReadHeader: d.ReadHeader(), Scan: func(w *iff.Walker) ([]*index.Entry, error) {
		return iff.ScanWalker(w, d)
	}}
}

func Layout(l layout.Layout) Format {
	return Func[layout.Header]{FormatName: l.Name, ReadHeader: l.ReadHeader(), Scan: l.ScanWalker}
}

// RegisterLayouts adds every layout in defs.
func (r *Registry) RegisterLayouts(defs map[string]layout.Layout) error {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.Register(Layout(defs[name])); err != nil {
			return err
		}
	}
	return nil
}
