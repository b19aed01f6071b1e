// Package lccharset is the charset registry used by the line engine.
//
// A Charset pairs a golang.org/x/text encoding with the facts the line
// engine needs and x/text does not expose: code-unit size, byte order,
// whether surrogate pairs occur, and which byte-order mark (if any) is
// written at the start of a synthesized stream.
//
// Content encoders never write a byte-order mark. The mark is owned by the
// stream producers (lcsource, lctranscode), which write it once, before the
// first non-empty content.
package lccharset

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding"
)

// Width is the byte width policy of a charset.
type Width int

const (
	// Variable means scalar values occupy a varying number of code units.
	Variable Width = iota
	// Fixed means every scalar value occupies exactly one code unit.
	Fixed
)

func (w Width) String() string {
	if w == Fixed {
		return "fixed"
	}
	return "variable"
}

// Order is the byte order of multi-byte code units.
type Order int

const (
	// NoOrder applies to charsets with single-byte code units.
	NoOrder Order = iota
	BigEndian
	LittleEndian
)

func (o Order) String() string {
	switch o {
	case BigEndian:
		return "big-endian"
	case LittleEndian:
		return "little-endian"
	default:
		return "none"
	}
}

// ByteOrder returns the encoding/binary byte order, or nil for NoOrder.
func (o Order) ByteOrder() binary.ByteOrder {
	switch o {
	case BigEndian:
		return binary.BigEndian
	case LittleEndian:
		return binary.LittleEndian
	default:
		return nil
	}
}

// Charset is an immutable encoding descriptor. The zero value is not usable;
// obtain one from Lookup or a Registry.
type Charset struct {
	name    string
	aliases []string
	enc     encoding.Encoding // content codec, never reads or writes a BOM
	width   Width
	unit    int
	order   Order
	pairs   bool
	bom     []byte // written at stream start by producers
	sniff   []bomRule
}

// Name returns the canonical charset name.
func (c *Charset) Name() string { return c.name }

func (c *Charset) String() string { return c.name }

// Width reports the byte width policy.
func (c *Charset) Width() Width { return c.width }

// UnitSize reports the code unit size in bytes (1, 2 or 4).
func (c *Charset) UnitSize() int { return c.unit }

// Order reports the default byte order of code units.
func (c *Charset) Order() Order { return c.order }

// SurrogatePairs reports whether supplementary-plane scalars are encoded as
// two 16-bit surrogate code units.
func (c *Charset) SurrogatePairs() bool { return c.pairs }

// BOM returns a copy of the byte-order mark producers write at stream start.
// It is nil for charsets that do not write one.
func (c *Charset) BOM() []byte {
	if c.bom == nil {
		return nil
	}
	return append([]byte(nil), c.bom...)
}

// DetectsBOM reports whether the decoder selects the byte order from a
// leading byte-order mark.
func (c *Charset) DetectsBOM() bool { return len(c.sniff) > 0 }

// NewDecoder returns a decoder producing UTF-8. Charsets that detect a
// byte-order mark consume it; all others pass U+FEFF through as content.
func (c *Charset) NewDecoder() *encoding.Decoder {
	if len(c.sniff) == 0 {
		return c.enc.NewDecoder()
	}
	return &encoding.Decoder{Transformer: newSniffer(c)}
}

// NewEncoder returns a content encoder that never writes a byte-order mark
// and replaces characters the charset cannot represent.
func (c *Charset) NewEncoder() *encoding.Encoder {
	return encoding.ReplaceUnsupported(c.enc.NewEncoder())
}

// Encode encodes s as content (no byte-order mark).
func (c *Charset) Encode(s string) ([]byte, error) {
	b, err := c.NewEncoder().String(s)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.name, err)
	}
	return []byte(b), nil
}

// Decode decodes b, honouring the charset's byte-order-mark detection.
func (c *Charset) Decode(b []byte) (string, error) {
	s, err := c.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", c.name, err)
	}
	return string(s), nil
}

// AppendUnit appends a single 16-bit code unit in byte order o. It carries
// unpaired surrogates, which have no UTF-8 form, into 16-bit destinations
// unchanged.
func AppendUnit(dst []byte, u uint16, o Order) []byte {
	if o == LittleEndian {
		return append(dst, byte(u), byte(u>>8))
	}
	return append(dst, byte(u>>8), byte(u))
}

// Equal reports whether c and other name the same charset.
func (c *Charset) Equal(other *Charset) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.name == other.name
}
