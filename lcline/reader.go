// Package lcline decodes byte streams into logical lines.
//
// A line ends at CRLF, LF, CR, NEL (U+0085), LINE SEPARATOR (U+2028) or
// PARAGRAPH SEPARATOR (U+2029). CRLF is a single boundary. A stream that
// ends on a boundary yields a trailing empty line, and an empty stream
// yields exactly one empty line. U+FEFF is dropped only when it is the first
// decoded character of the stream.
//
// Reader is the single decoding state machine; ReadAll and DecodeLines are
// bulk forms built on repeated Next calls, so both consumption styles
// produce identical lines for every input.
package lcline

import (
	"bufio"
	"io"
	"iter"
	"strings"
	"sync"

	"golang.org/x/text/transform"

	"github.com/lattice-substrate/line-canon/lccharset"
	"github.com/lattice-substrate/line-canon/lcerr"
	"github.com/lattice-substrate/line-canon/lcsource"
)

// Line boundary characters besides CR and LF.
const (
	NEL = '\u0085'
	LS  = '\u2028'
	PS  = '\u2029'
	BOM = '\ufeff'
)

// state is the per-reader decoding state threaded through every Next call.
type state struct {
	// skipLF is set after a CR boundary so that the LF of a CRLF pair is
	// consumed silently at the start of the next read.
	skipLF bool
	// owed is true while a line is still due even if no input remains: at
	// stream start, and after any line that ended on a boundary.
	owed bool
	// started is set once the first decoded character has been seen.
	started bool
}

// Reader pulls one logical line at a time. The mutex makes a single Reader
// safe to drive from two call sites (for example an All loop whose body
// also calls Next); it does not make cross-goroutine use meaningful.
type Reader struct {
	mu     sync.Mutex
	rc     io.ReadCloser
	in     *bufio.Reader
	cs     *lccharset.Charset
	st     state
	n      int // lines returned so far
	err    error
	closed bool
}

// NewReader decodes rc under cs. The reader owns rc and closes it on Close.
func NewReader(rc io.ReadCloser, cs *lccharset.Charset) (*Reader, error) {
	if cs == nil {
		return nil, lcerr.New(lcerr.MissingCharset, -1, "charset is nil")
	}
	if rc == nil {
		return nil, lcerr.New(lcerr.SourceUnavailable, -1, "stream is nil")
	}
	return &Reader{
		rc: rc,
		in: bufio.NewReader(transform.NewReader(rc, cs.NewDecoder())),
		cs: cs,
		st: state{owed: true},
	}, nil
}

// Open validates cs, then opens src and returns a Reader over it. The
// charset is checked before the source is touched.
func Open(src lcsource.Source, cs *lccharset.Charset) (*Reader, error) {
	if cs == nil {
		return nil, lcerr.New(lcerr.MissingCharset, -1, "charset is nil")
	}
	rc, err := lcsource.Open(src)
	if err != nil {
		return nil, err
	}
	return NewReader(rc, cs)
}

// Charset returns the charset the reader decodes with.
func (r *Reader) Charset() *lccharset.Charset { return r.cs }

// HasNext reports whether Next will return a line or an error. It is true
// while decoded input remains or while a line is owed because the previous
// line ended exactly on a boundary.
func (r *Reader) HasNext() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if r.err != nil {
		return true
	}
	more, err := r.more()
	if err != nil {
		r.err = err
		return true
	}
	return more || r.st.owed
}

// Next returns the next line without its boundary. It returns io.EOF when
// the stream is exhausted, a DecodeIO error when the underlying read fails
// (the error is sticky), and ReadAfterClose after Close.
func (r *Reader) Next() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", lcerr.New(lcerr.ReadAfterClose, r.n, "read from closed line reader")
	}
	if r.err != nil {
		return "", r.err
	}
	if err := r.skip(); err != nil {
		r.err = err
		return "", err
	}

	var b strings.Builder
	for {
		c, _, err := r.in.ReadRune()
		if err == io.EOF {
			if b.Len() == 0 && !r.st.owed {
				return "", io.EOF
			}
			r.st.owed = false
			r.n++
			return b.String(), nil
		}
		if err != nil {
			r.err = r.wrap(err)
			return "", r.err
		}
		if !r.st.started {
			r.st.started = true
			if c == BOM {
				continue
			}
		}
		switch c {
		case '\r':
			r.st.skipLF = true
			return r.emit(&b), nil
		case '\n', NEL, LS, PS:
			return r.emit(&b), nil
		default:
			b.WriteRune(c)
		}
	}
}

func (r *Reader) emit(b *strings.Builder) string {
	r.st.owed = true
	r.n++
	return b.String()
}

// skip applies a pending CRLF merge. A form feed directly after CR is
// dropped as well, for page-break compatibility.
func (r *Reader) skip() error {
	if !r.st.skipLF {
		return nil
	}
	r.st.skipLF = false
	c, _, err := r.in.ReadRune()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return r.wrap(err)
	}
	r.st.started = true
	if c == '\n' || c == '\f' {
		return nil
	}
	return r.unread()
}

// more applies a pending skip and reports whether decoded input remains.
func (r *Reader) more() (bool, error) {
	if err := r.skip(); err != nil {
		return false, err
	}
	if _, _, err := r.in.ReadRune(); err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, r.wrap(err)
	}
	return true, r.unread()
}

func (r *Reader) unread() error {
	if err := r.in.UnreadRune(); err != nil {
		return lcerr.Wrap(lcerr.InternalError, r.n, "unread rune", err)
	}
	return nil
}

func (r *Reader) wrap(err error) error {
	return lcerr.Wrap(lcerr.DecodeIO, r.n, "decode "+r.cs.Name(), err)
}

// Close releases the underlying stream. It is safe to call more than once;
// only the first call closes the stream.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rc.Close()
}

// All returns an iterator over the remaining lines. Iteration stops after
// the first error, which is yielded with an empty line.
func (r *Reader) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for r.HasNext() {
			line, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}
