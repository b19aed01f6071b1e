package lcsource

import (
	"io"
	"slices"
	"unicode/utf8"

	"golang.org/x/text/encoding"

	"github.com/lattice-substrate/line-canon/lccharset"
	"github.com/lattice-substrate/line-canon/lcerr"
)

// Separator is the canonical line separator written between rows.
const Separator = "\r\n"

// Synthesize returns a reopenable source producing the bytes of rows joined
// by Separator and encoded in cs:
//
//   - no rows produce no bytes;
//   - a single row produces only its own bytes, with no trailing separator;
//   - the separator is encoded in cs, so 16-bit charsets get their own
//     byte order;
//   - a charset byte-order mark is written once, in front of the first
//     non-empty chunk, so a blank leading row never yields a stream made of
//     a lone mark.
//
// A nil or empty rows slice means zero rows. A nil charset or a row that is
// not valid UTF-8 is rejected here, before any stream is opened.
func Synthesize(rows []string, cs *lccharset.Charset) (Source, error) {
	if cs == nil {
		return nil, lcerr.New(lcerr.MissingCharset, -1, "charset is nil")
	}
	for i, r := range rows {
		if !utf8.ValidString(r) {
			return nil, lcerr.New(lcerr.InvalidRow, i, "row is not valid UTF-8")
		}
	}
	return &rowSource{rows: slices.Clone(rows), cs: cs}, nil
}

type rowSource struct {
	rows []string
	cs   *lccharset.Charset
}

func (s *rowSource) Open() (io.ReadCloser, error) {
	rs := &rowStream{rows: s.rows, cs: s.cs, enc: s.cs.NewEncoder(), bom: s.cs.BOM()}
	return newStream(rs, nil), nil
}

// rowStream encodes one row at a time. Only the current chunk is held in
// memory.
type rowStream struct {
	rows []string
	cs   *lccharset.Charset
	enc  *encoding.Encoder
	bom  []byte
	sep  []byte

	next int
	buf  []byte
	pos  int
	// lead is true once the first non-empty chunk has been produced.
	lead bool
}

func (s *rowStream) fill() error {
	for s.pos >= len(s.buf) {
		if s.next >= len(s.rows) {
			return io.EOF
		}
		chunk, err := s.chunk(s.next)
		if err != nil {
			return err
		}
		s.next++
		if len(chunk) > 0 && !s.lead {
			s.lead = true
			if len(s.bom) > 0 {
				chunk = append(append([]byte(nil), s.bom...), chunk...)
			}
		}
		s.buf, s.pos = chunk, 0
	}
	return nil
}

func (s *rowStream) chunk(i int) ([]byte, error) {
	var out []byte
	if i > 0 {
		if s.sep == nil {
			sep, err := s.enc.String(Separator)
			if err != nil {
				return nil, lcerr.Wrap(lcerr.InternalError, i, "encode separator in "+s.cs.Name(), err)
			}
			s.sep = []byte(sep)
		}
		out = append(out, s.sep...)
	}
	b, err := s.enc.String(s.rows[i])
	if err != nil {
		return nil, lcerr.Wrap(lcerr.InvalidRow, i, "encode row in "+s.cs.Name(), err)
	}
	return append(out, b...), nil
}

func (s *rowStream) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if err := s.fill(); err != nil {
			if n > 0 && err == io.EOF {
				return n, nil
			}
			return n, err
		}
		c := copy(p[n:], s.buf[s.pos:])
		s.pos += c
		n += c
	}
	return n, nil
}

func (s *rowStream) ReadByte() (byte, error) {
	if err := s.fill(); err != nil {
		return 0, err
	}
	b := s.buf[s.pos]
	s.pos++
	return b, nil
}
