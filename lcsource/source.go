// Package lcsource provides byte sources for the line engine.
//
// A Source is opened lazily and yields a stream that must be closed exactly
// once. Every stream handed out by this package tolerates repeated Close
// calls and rejects reads after Close with an lcerr.ReadAfterClose error.
package lcsource

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/lattice-substrate/line-canon/lcerr"
)

// Source yields a byte stream on demand.
type Source interface {
	Open() (io.ReadCloser, error)
}

// Func adapts a function to Source.
type Func func() (io.ReadCloser, error)

// Open calls f.
func (f Func) Open() (io.ReadCloser, error) { return f() }

// Bytes returns a reopenable source over b. b is copied.
func Bytes(b []byte) Source {
	data := append([]byte(nil), b...)
	return Func(func() (io.ReadCloser, error) {
		return newStream(bytes.NewReader(data), nil), nil
	})
}

// String returns a reopenable source over the bytes of s.
func String(s string) Source {
	return Func(func() (io.ReadCloser, error) {
		return newStream(strings.NewReader(s), nil), nil
	})
}

// Reader returns a one-shot source over r. The first Open hands out r; a
// second Open fails with SourceUnavailable. If r is an io.Closer it is
// closed when the stream is closed.
func Reader(r io.Reader) Source {
	var mu sync.Mutex
	used := false
	return Func(func() (io.ReadCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		if used {
			return nil, lcerr.New(lcerr.SourceUnavailable, -1, "reader source already opened")
		}
		used = true
		c, _ := r.(io.Closer)
		return newStream(r, c), nil
	})
}

// File returns a source that opens path on demand.
func File(path string) Source {
	return Func(func() (io.ReadCloser, error) {
		f, err := os.Open(path) //nolint:gosec // path is explicit caller input.
		if err != nil {
			return nil, lcerr.Wrap(lcerr.SourceUnavailable, -1, "open "+path, err)
		}
		return newStream(f, f), nil
	})
}

// Open opens src, rejecting a nil source with SourceUnavailable and
// classifying unclassified open failures the same way.
func Open(src Source) (io.ReadCloser, error) {
	if src == nil {
		return nil, lcerr.New(lcerr.SourceUnavailable, -1, "source is nil")
	}
	rc, err := src.Open()
	if err != nil {
		if _, ok := lcerr.ClassOf(err); ok {
			return nil, err
		}
		return nil, lcerr.Wrap(lcerr.SourceUnavailable, -1, "open source", err)
	}
	if rc == nil {
		return nil, lcerr.New(lcerr.SourceUnavailable, -1, "source opened a nil stream")
	}
	return rc, nil
}

// stream is the close-once wrapper around every stream this package hands
// out.
type stream struct {
	r       io.Reader
	c       io.Closer
	closed  bool
	onClose func()
}

func newStream(r io.Reader, c io.Closer) *stream {
	return &stream{r: r, c: c}
}

func (s *stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, lcerr.New(lcerr.ReadAfterClose, -1, "read from closed source")
	}
	return s.r.Read(p)
}

func (s *stream) ReadByte() (byte, error) {
	if s.closed {
		return 0, lcerr.New(lcerr.ReadAfterClose, -1, "read from closed source")
	}
	if br, ok := s.r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var b [1]byte
	for {
		n, err := s.r.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.onClose != nil {
		s.onClose()
	}
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}
