package chunk

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// HeaderFunc assembles one header from the walker's current position using
// its primitive reads.
type HeaderFunc[H any] func(w *Walker[H]) (H, error)

// Handler interprets one header and returns the payload length to advance
// past, measured from the end of the header.
type Handler[H any] func(w *Walker[H], h H) (int64, error)

// Walker drives the read-header, dispatch, seek-forward loop over a seekable
// source. A Walker is not safe for concurrent use. After a failed Parse the
// source position is undefined.
type Walker[H any] struct {
	src        io.ReadSeeker
	readHeader HeaderFunc[H]
	cfg        Config
	log        zerolog.Logger

	ready       bool
	pos         int64
	bound       int64
	depth       int
	headerStart int64
	closed      bool
}

// New returns a walker owning src. No I/O happens until the first read or
// Parse; walking starts wherever the caller left src.
func New[H any](src io.ReadSeeker, readHeader HeaderFunc[H], cfg Config) *Walker[H] {
	cfg = cfg.WithDefaults()
	return &Walker[H]{
		src:        src,
		readHeader: readHeader,
		cfg:        cfg,
		log:        *cfg.Logger,
	}
}

// Open opens path and returns a walker owning the file. Callers must Close it.
func Open[H any](path string, readHeader HeaderFunc[H], cfg Config) (*Walker[H], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("chunk: open %s: %w", path, err)
	}
	return New(f, readHeader, cfg), nil
}

// Close releases the source if it is an io.Closer. It is safe to call more
// than once.
func (w *Walker[H]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if c, ok := w.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Parse walks chunks from the current position to the end of the enclosing
// region (the medium end at top level). It returns nil only on a clean end of
// stream: zero bytes available where a header was expected.
func (w *Walker[H]) Parse(fn Handler[H]) error {
	if err := w.init(); err != nil {
		return err
	}
	return w.loop(fn)
}

// ParseRegion walks the next length bytes as a nested chunk sequence. Reads
// inside the region cannot cross its end, and on success the position is
// exactly the region end.
func (w *Walker[H]) ParseRegion(length int64, fn Handler[H]) error {
	if err := w.init(); err != nil {
		return err
	}
	if length < 0 {
		return w.errorAt(KindRejected, w.pos, ErrNegativeLength)
	}
	if w.depth+1 > w.cfg.MaxDepth {
		return w.errorAt(KindRejected, w.pos, fmt.Errorf("%w: limit %d", ErrTooDeep, w.cfg.MaxDepth))
	}
	end := w.pos + length
	if end > w.bound {
		return w.errorAt(KindSeekRange, w.pos,
			fmt.Errorf("region of %d bytes exceeds enclosing bound %d", length, w.bound))
	}

	savedBound, savedStart := w.bound, w.headerStart
	w.bound = end
	w.depth++
	defer func() {
		w.bound = savedBound
		w.headerStart = savedStart
		w.depth--
	}()

	if err := w.loop(fn); err != nil {
		return err
	}
	return w.seekTo(end)
}

func (w *Walker[H]) loop(fn Handler[H]) error {
	for {
		start := w.pos
		w.headerStart = start

		h, err := w.readHeader(w)
		if err != nil {
			if w.pos == start && errors.Is(err, io.EOF) {
				w.log.Trace().Int64("offset", start).Int("depth", w.depth).Msg("chunk walk done")
				return nil
			}
			return w.wrap(KindHeader, start, err)
		}
		headerEnd := w.pos

		n, err := fn(w, h)
		if err != nil {
			return w.wrap(KindRejected, start, err)
		}
		if n < 0 {
			return w.errorAt(KindRejected, start, fmt.Errorf("%w: %d", ErrNegativeLength, n))
		}

		target := headerEnd + n
		if w.cfg.Strict && w.pos > target {
			return w.errorAt(KindLengthMismatch, start,
				fmt.Errorf("position %d past chunk end %d", w.pos, target))
		}
		w.log.Trace().
			Int64("offset", start).
			Int64("header_len", headerEnd-start).
			Int64("length", n).
			Int("depth", w.depth).
			Interface("header", h).
			Msg("chunk")
		if err := w.seekTo(target); err != nil {
			return w.wrap(KindSeekRange, start, err)
		}
	}
}

// wrap keeps the kind of an *Error raised deeper (a nested walk or a
// primitive I/O fault) and classifies anything else as kind.
func (w *Walker[H]) wrap(kind Kind, offset int64, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		w.log.Debug().Err(err).Msg("chunk walk failed")
		return err
	}
	return w.errorAt(kind, offset, err)
}

func (w *Walker[H]) errorAt(kind Kind, offset int64, err error) error {
	e := &Error{Kind: kind, Offset: offset, Depth: w.depth, Err: err}
	w.log.Debug().Err(e).Msg("chunk walk failed")
	return e
}

func (w *Walker[H]) init() error {
	if w.closed {
		return &Error{Kind: KindIO, Offset: w.pos, Depth: w.depth, Err: os.ErrClosed}
	}
	if w.ready {
		return nil
	}
	cur, err := w.src.Seek(0, io.SeekCurrent)
	if err != nil {
		return &Error{Kind: KindIO, Err: err}
	}
	end, err := w.src.Seek(0, io.SeekEnd)
	if err != nil {
		return &Error{Kind: KindIO, Offset: cur, Err: err}
	}
	if _, err := w.src.Seek(cur, io.SeekStart); err != nil {
		return &Error{Kind: KindIO, Offset: cur, Err: err}
	}
	w.pos = cur
	w.bound = end
	w.headerStart = cur
	w.ready = true
	return nil
}

func (w *Walker[H]) seekTo(abs int64) error {
	if abs < 0 || abs > w.bound {
		return &Error{
			Kind:   KindSeekRange,
			Offset: w.headerStart,
			Depth:  w.depth,
			Err:    fmt.Errorf("target %d outside [0, %d]", abs, w.bound),
		}
	}
	if abs == w.pos {
		return nil
	}
	if _, err := w.src.Seek(abs, io.SeekStart); err != nil {
		return &Error{Kind: KindIO, Offset: w.headerStart, Depth: w.depth, Err: err}
	}
	w.pos = abs
	return nil
}
