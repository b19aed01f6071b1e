package lccharset

import (
	"bytes"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// bomRule selects a content decoder when a stream starts with mark.
type bomRule struct {
	mark  []byte
	order Order
	enc   encoding.Encoding
}

// sniffer is a transform.Transformer that inspects the first bytes of a
// stream once, drops a recognised byte-order mark, and then delegates to
// the decoder for the selected byte order. Without a mark the charset's
// default order applies and the leading bytes are content.
type sniffer struct {
	cs  *Charset
	max int
	cur transform.Transformer
}

func newSniffer(cs *Charset) *sniffer {
	s := &sniffer{cs: cs}
	for _, r := range cs.sniff {
		if len(r.mark) > s.max {
			s.max = len(r.mark)
		}
	}
	return s
}

func (s *sniffer) Reset() {
	s.cur = nil
}

func (s *sniffer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	skip := 0
	if s.cur == nil {
		if len(src) < s.max && !atEOF {
			return 0, 0, transform.ErrShortSrc
		}
		s.cur = s.cs.enc.NewDecoder()
		for _, r := range s.cs.sniff {
			if bytes.HasPrefix(src, r.mark) {
				s.cur = r.enc.NewDecoder()
				skip = len(r.mark)
				break
			}
		}
	}
	nDst, nSrc, err = s.cur.Transform(dst, src[skip:], atEOF)
	return nDst, nSrc + skip, err
}

// SniffOrder reports the byte order a decoder would select for a stream
// starting with prefix, and how many leading bytes form the byte-order mark.
// Charsets without detection always report their default order and zero.
func (c *Charset) SniffOrder(prefix []byte) (Order, int) {
	for _, r := range c.sniff {
		if bytes.HasPrefix(prefix, r.mark) {
			return r.order, len(r.mark)
		}
	}
	return c.order, 0
}

// SniffLen is the number of leading bytes SniffOrder needs to decide.
func (c *Charset) SniffLen() int {
	n := 0
	for _, r := range c.sniff {
		if len(r.mark) > n {
			n = len(r.mark)
		}
	}
	return n
}
