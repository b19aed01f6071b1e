package lccharset_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-substrate/line-canon/lccharset"
	"github.com/lattice-substrate/line-canon/lcerr"
)

func TestLookupBuiltins(t *testing.T) {
	cases := []struct {
		name  string
		want  *lccharset.Charset
		width lccharset.Width
		unit  int
		order lccharset.Order
		pairs bool
	}{
		{"UTF-8", lccharset.UTF8, lccharset.Variable, 1, lccharset.NoOrder, false},
		{"utf8", lccharset.UTF8, lccharset.Variable, 1, lccharset.NoOrder, false},
		{"utf-16", lccharset.UTF16, lccharset.Variable, 2, lccharset.BigEndian, true},
		{"UTF-16BE", lccharset.UTF16BE, lccharset.Variable, 2, lccharset.BigEndian, true},
		{" UTF-16LE ", lccharset.UTF16LE, lccharset.Variable, 2, lccharset.LittleEndian, true},
		{"UTF-32", lccharset.UTF32, lccharset.Fixed, 4, lccharset.BigEndian, false},
		{"UTF-32LE", lccharset.UTF32LE, lccharset.Fixed, 4, lccharset.LittleEndian, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cs, err := lccharset.Lookup(tc.name)
			require.NoError(t, err)
			assert.Same(t, tc.want, cs)
			assert.Equal(t, tc.width, cs.Width())
			assert.Equal(t, tc.unit, cs.UnitSize())
			assert.Equal(t, tc.order, cs.Order())
			assert.Equal(t, tc.pairs, cs.SurrogatePairs())
		})
	}
}

func TestLookupIANA(t *testing.T) {
	cs, err := lccharset.Lookup("latin1")
	require.NoError(t, err)
	assert.Equal(t, "ISO-8859-1", cs.Name())
	assert.Equal(t, lccharset.Fixed, cs.Width())
	assert.Nil(t, cs.BOM())

	again, err := lccharset.Lookup("ISO-8859-1")
	require.NoError(t, err)
	assert.Same(t, cs, again)

	sjis, err := lccharset.Lookup("Shift_JIS")
	require.NoError(t, err)
	assert.Equal(t, lccharset.Variable, sjis.Width())
}

func TestLookupErrors(t *testing.T) {
	_, err := lccharset.Lookup("   ")
	class, ok := lcerr.ClassOf(err)
	require.True(t, ok)
	assert.Equal(t, lcerr.MissingCharset, class)

	_, err = lccharset.Lookup("x-no-such-charset")
	var le *lcerr.Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, lcerr.UnsupportedCharset, le.Class)
}

func TestEncodeNeverWritesBOM(t *testing.T) {
	b, err := lccharset.UTF16.Encode("A")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x41}, b)
	assert.Equal(t, []byte{0xfe, 0xff}, lccharset.UTF16.BOM())
	assert.Nil(t, lccharset.UTF16BE.BOM())
}

func TestEncodeSeparatorPerCharset(t *testing.T) {
	be, err := lccharset.UTF16BE.Encode("\r\n")
	require.NoError(t, err)
	le, err := lccharset.UTF16LE.Encode("\r\n")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x0d, 0x00, 0x0a}, be)
	assert.Equal(t, []byte{0x0d, 0x00, 0x0a, 0x00}, le)
}

func TestDecodeSniffsBOM(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want string
	}{
		{"big-endian mark", []byte{0xfe, 0xff, 0x00, 0x41}, "A"},
		{"little-endian mark", []byte{0xff, 0xfe, 0x41, 0x00}, "A"},
		{"no mark defaults big-endian", []byte{0x00, 0x41}, "A"},
		{"empty", nil, ""},
		{"second mark is content", []byte{0xfe, 0xff, 0xfe, 0xff, 0x00, 0x41}, "\ufeffA"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := lccharset.UTF16.Decode(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeExplicitOrderKeepsBOM(t *testing.T) {
	got, err := lccharset.UTF16BE.Decode([]byte{0xfe, 0xff, 0x00, 0x41})
	require.NoError(t, err)
	assert.Equal(t, "\ufeffA", got)
}

func TestSniffOrder(t *testing.T) {
	o, n := lccharset.UTF16.SniffOrder([]byte{0xff, 0xfe, 0x41})
	assert.Equal(t, lccharset.LittleEndian, o)
	assert.Equal(t, 2, n)

	o, n = lccharset.UTF32.SniffOrder([]byte{0x00, 0x00, 0x00, 0x41})
	assert.Equal(t, lccharset.BigEndian, o)
	assert.Equal(t, 0, n)
	assert.Equal(t, 4, lccharset.UTF32.SniffLen())

	o, n = lccharset.UTF16LE.SniffOrder([]byte{0xfe, 0xff})
	assert.Equal(t, lccharset.LittleEndian, o)
	assert.Equal(t, 0, n)
}

func TestUnsupportedCharactersReplaced(t *testing.T) {
	latin1 := lccharset.MustLookup("ISO-8859-1")
	b, err := latin1.Encode("a世b")
	require.NoError(t, err)
	assert.Len(t, b, 3)
	assert.Equal(t, byte('a'), b[0])
	assert.Equal(t, byte('b'), b[2])
}

func TestAppendUnit(t *testing.T) {
	assert.Equal(t, []byte{0xd8, 0x3d}, lccharset.AppendUnit(nil, 0xd83d, lccharset.BigEndian))
	assert.Equal(t, []byte{0x3d, 0xd8}, lccharset.AppendUnit(nil, 0xd83d, lccharset.LittleEndian))
}

func TestNamesIncludesBuiltinsAndIndex(t *testing.T) {
	names := lccharset.Names()
	assert.Contains(t, names, "UTF-8")
	assert.Contains(t, names, "UTF-16LE")
	assert.Contains(t, names, "ISO-8859-1")
	assert.Contains(t, names, "Shift_JIS")
}

func TestEqual(t *testing.T) {
	var nilCS *lccharset.Charset
	assert.True(t, nilCS.Equal(nil))
	assert.False(t, lccharset.UTF8.Equal(nil))
	assert.True(t, lccharset.UTF8.Equal(lccharset.MustLookup("utf8")))
	assert.Equal(t, "fixed", lccharset.Fixed.String())
	assert.Equal(t, "little-endian", lccharset.LittleEndian.String())
}
