// Package lctranscode re-encodes a byte stream from one charset to another
// one scalar value at a time.
//
// Sources in a 16-bit charset are read as raw code units so that unpaired
// surrogates survive: a lone surrogate is written unchanged when the
// destination is also 16-bit, and as U+FFFD otherwise. Well-formed pairs
// are combined and re-encoded as a single scalar value.
package lctranscode

import (
	"bufio"
	"errors"
	"io"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"github.com/lattice-substrate/line-canon/lccharset"
	"github.com/lattice-substrate/line-canon/lcerr"
	"github.com/lattice-substrate/line-canon/lcsource"
)

const noUnit = -1

// Transcoder is an io.ReadCloser and io.ByteReader producing the bytes of
// its source re-encoded in the destination charset. Only the encoding of
// the current scalar value is buffered.
type Transcoder struct {
	src      io.ReadCloser
	from, to *lccharset.Charset

	raw   *bufio.Reader // undecoded bytes, 16-bit sources only
	runes *bufio.Reader // decoded UTF-8, all other sources
	order lccharset.Order
	back  int // pushed-back code unit, or noUnit

	enc     *encoding.Encoder
	bom     []byte
	scratch [64]byte

	started bool // first scalar value examined
	lead    bool // first output bytes produced
	flushed bool
	buf     []byte
	pos     int
	err     error
	closed  bool
}

// New wraps src. The transcoder owns src and closes it on Close. Charsets
// are checked here so that a bad configuration fails before any read.
func New(src io.ReadCloser, from, to *lccharset.Charset) (*Transcoder, error) {
	if err := check(from, to); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, lcerr.New(lcerr.SourceUnavailable, -1, "stream is nil")
	}
	t := &Transcoder{
		src:  src,
		from: from,
		to:   to,
		back: noUnit,
		enc:  to.NewEncoder(),
		bom:  to.BOM(),
	}
	if sixteen(from) {
		t.raw = bufio.NewReader(src)
	} else {
		t.runes = bufio.NewReader(transform.NewReader(src, from.NewDecoder()))
	}
	return t, nil
}

// Transcode returns a lazy source whose streams carry src re-encoded from
// from to to. src is opened only when the returned source is opened.
func Transcode(src lcsource.Source, from, to *lccharset.Charset) (lcsource.Source, error) {
	if err := check(from, to); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, lcerr.New(lcerr.SourceUnavailable, -1, "source is nil")
	}
	return lcsource.Func(func() (io.ReadCloser, error) {
		rc, err := lcsource.Open(src)
		if err != nil {
			return nil, err
		}
		return New(rc, from, to)
	}), nil
}

func check(from, to *lccharset.Charset) error {
	if from == nil {
		return lcerr.New(lcerr.MissingCharset, -1, "source charset is nil")
	}
	if to == nil {
		return lcerr.New(lcerr.MissingCharset, -1, "destination charset is nil")
	}
	return nil
}

func sixteen(cs *lccharset.Charset) bool {
	return cs.UnitSize() == 2 && cs.SurrogatePairs()
}

// Read implements io.Reader.
func (t *Transcoder) Read(p []byte) (int, error) {
	if t.closed {
		return 0, lcerr.New(lcerr.ReadAfterClose, -1, "read from closed transcoder")
	}
	n := 0
	for n < len(p) {
		if err := t.fill(); err != nil {
			if n > 0 && err == io.EOF {
				return n, nil
			}
			return n, err
		}
		c := copy(p[n:], t.buf[t.pos:])
		t.pos += c
		n += c
	}
	return n, nil
}

// ReadByte implements io.ByteReader.
func (t *Transcoder) ReadByte() (byte, error) {
	if t.closed {
		return 0, lcerr.New(lcerr.ReadAfterClose, -1, "read from closed transcoder")
	}
	if err := t.fill(); err != nil {
		return 0, err
	}
	b := t.buf[t.pos]
	t.pos++
	return b, nil
}

// Close closes the source. Later calls are no-ops.
func (t *Transcoder) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.src.Close()
}

// fill refills the buffer with the encoding of the next scalar value. It
// returns io.EOF only once the source is exhausted and the buffer drained.
func (t *Transcoder) fill() error {
	for t.pos >= len(t.buf) {
		if t.err != nil {
			return t.err
		}
		t.buf, t.pos = t.buf[:0], 0
		if t.flushed {
			t.err = io.EOF
			continue
		}
		r, lone, err := t.next()
		switch {
		case err == io.EOF:
			t.flushed = true
			if err := t.encode(nil, true); err != nil {
				t.err = err
			}
		case err != nil:
			t.err = err
		case lone != noUnit && sixteen(t.to):
			t.buf = lccharset.AppendUnit(t.buf, uint16(lone), t.to.Order())
		default:
			if lone != noUnit {
				r = utf8.RuneError
			}
			var b [utf8.UTFMax]byte
			n := utf8.EncodeRune(b[:], r)
			if err := t.encode(b[:n], false); err != nil {
				t.err = err
			}
		}
		if len(t.buf) > 0 && !t.lead {
			t.lead = true
			if len(t.bom) > 0 {
				t.buf = append(append(make([]byte, 0, len(t.bom)+len(t.buf)), t.bom...), t.buf...)
			}
		}
	}
	return nil
}

// encode runs src through the destination encoder, appending to buf. The
// encoder is kept across calls so stateful charsets shift correctly; the
// final call with atEOF flushes any trailing shift sequence.
func (t *Transcoder) encode(src []byte, atEOF bool) error {
	for {
		nDst, nSrc, err := t.enc.Transform(t.scratch[:], src, atEOF)
		t.buf = append(t.buf, t.scratch[:nDst]...)
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) {
			continue
		}
		if err != nil {
			return lcerr.Wrap(lcerr.DecodeIO, -1, "encode "+t.to.Name(), err)
		}
		return nil
	}
}

// next returns the next scalar value, or in lone the value of an unpaired
// surrogate (with r undefined). A leading U+FEFF is consumed as a marker.
func (t *Transcoder) next() (r rune, lone int, err error) {
	for {
		if t.raw != nil {
			r, lone, err = t.nextUnit()
		} else {
			r, _, err = t.runes.ReadRune()
			lone = noUnit
			if err != nil && err != io.EOF {
				err = lcerr.Wrap(lcerr.DecodeIO, -1, "decode "+t.from.Name(), err)
			}
		}
		if err != nil {
			return 0, noUnit, err
		}
		first := !t.started
		t.started = true
		if first && lone == noUnit && r == '\ufeff' && !t.from.DetectsBOM() {
			continue
		}
		return r, lone, nil
	}
}

func (t *Transcoder) nextUnit() (rune, int, error) {
	if !t.started {
		t.order = t.from.Order()
		if n := t.from.SniffLen(); n > 0 {
			prefix, _ := t.raw.Peek(n)
			order, skip := t.from.SniffOrder(prefix)
			t.order = order
			if _, err := t.raw.Discard(skip); err != nil {
				return 0, noUnit, lcerr.Wrap(lcerr.DecodeIO, -1, "decode "+t.from.Name(), err)
			}
		}
	}
	u, err := t.unit()
	if err != nil {
		return 0, noUnit, err
	}
	if !utf16.IsSurrogate(rune(u)) {
		return rune(u), noUnit, nil
	}
	if u >= 0xdc00 {
		return 0, u, nil
	}
	v, err := t.unit()
	if err == io.EOF {
		return 0, u, nil
	}
	if err != nil {
		return 0, noUnit, err
	}
	if v >= 0xdc00 && v <= 0xdfff {
		return utf16.DecodeRune(rune(u), rune(v)), noUnit, nil
	}
	t.back = v
	return 0, u, nil
}

// unit reads one 16-bit code unit. A dangling odd byte at the end of the
// stream reads as U+FFFD.
func (t *Transcoder) unit() (int, error) {
	if t.back != noUnit {
		u := t.back
		t.back = noUnit
		return u, nil
	}
	var b [2]byte
	_, err := io.ReadFull(t.raw, b[:])
	switch {
	case err == io.EOF:
		return 0, io.EOF
	case err == io.ErrUnexpectedEOF:
		return utf8.RuneError, nil
	case err != nil:
		return 0, lcerr.Wrap(lcerr.DecodeIO, -1, "decode "+t.from.Name(), err)
	}
	return int(t.order.ByteOrder().Uint16(b[:])), nil
}
