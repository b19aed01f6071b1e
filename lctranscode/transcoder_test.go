package lctranscode_test

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-substrate/line-canon/lccharset"
	"github.com/lattice-substrate/line-canon/lcerr"
	"github.com/lattice-substrate/line-canon/lcline"
	"github.com/lattice-substrate/line-canon/lcsource"
	"github.com/lattice-substrate/line-canon/lctranscode"
)

func transcode(t *testing.T, in []byte, from, to *lccharset.Charset) []byte {
	t.Helper()
	src, err := lctranscode.Transcode(lcsource.Bytes(in), from, to)
	require.NoError(t, err)
	rc, err := src.Open()
	require.NoError(t, err)
	defer rc.Close()
	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	return out
}

func TestTranscodeBytes(t *testing.T) {
	latin1 := lccharset.MustLookup("ISO-8859-1")
	cases := []struct {
		name     string
		in       []byte
		from, to *lccharset.Charset
		want     []byte
	}{
		{"empty", nil, lccharset.UTF8, lccharset.UTF16, nil},
		{"utf8 to utf16 writes mark", []byte("A"), lccharset.UTF8, lccharset.UTF16, []byte{0xfe, 0xff, 0x00, 0x41}},
		{"utf8 to utf16le", []byte("A\r\n"), lccharset.UTF8, lccharset.UTF16LE, []byte{0x41, 0x00, 0x0d, 0x00, 0x0a, 0x00}},
		{"utf16 le mark to utf8", []byte{0xff, 0xfe, 0x41, 0x00}, lccharset.UTF16, lccharset.UTF8, []byte("A")},
		{"leading mark is not content", []byte{0xfe, 0xff, 0x00, 0x41}, lccharset.UTF16BE, lccharset.UTF8, []byte("A")},
		{"later mark is content", []byte{0x00, 0x41, 0xfe, 0xff}, lccharset.UTF16BE, lccharset.UTF8, []byte("A\ufeff")},
		{"utf8 mark dropped", []byte("\ufeffA"), lccharset.UTF8, lccharset.UTF8, []byte("A")},
		{"latin1 to utf8", []byte("caf\xe9"), latin1, lccharset.UTF8, []byte("café")},
		{"utf8 to latin1", []byte("café"), lccharset.UTF8, latin1, []byte("caf\xe9")},
		{"utf8 to utf32be", []byte("\U0001D11E"), lccharset.UTF8, lccharset.UTF32BE, []byte{0x00, 0x01, 0xd1, 0x1e}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := transcode(t, tc.in, tc.from, tc.to)
			if len(tc.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSurrogatePairsRoundTrip(t *testing.T) {
	const text = "a\U0001D11Eb\U0001F600"
	charsets := []*lccharset.Charset{
		lccharset.UTF8, lccharset.UTF16, lccharset.UTF16BE, lccharset.UTF16LE,
		lccharset.UTF32, lccharset.UTF32BE, lccharset.UTF32LE,
	}
	for _, from := range charsets {
		for _, to := range charsets {
			t.Run(from.Name()+"->"+to.Name(), func(t *testing.T) {
				in, err := from.Encode(text)
				require.NoError(t, err)
				out := transcode(t, in, from, to)
				lines, err := lcline.DecodeBytes(out, to)
				require.NoError(t, err)
				assert.Equal(t, []string{text}, lines)
			})
		}
	}
}

func TestLoneSurrogates(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		to   *lccharset.Charset
		want []byte
	}{
		{"lone high kept in utf16", []byte{0xd8, 0x00, 0x00, 0x41}, lccharset.UTF16LE, []byte{0x00, 0xd8, 0x41, 0x00}},
		{"lone low kept in utf16", []byte{0xdc, 0x00}, lccharset.UTF16BE, []byte{0xdc, 0x00}},
		{"high at end kept", []byte{0x00, 0x41, 0xd8, 0x3d}, lccharset.UTF16BE, []byte{0x00, 0x41, 0xd8, 0x3d}},
		{"two highs kept", []byte{0xd8, 0x00, 0xd8, 0x3d, 0xde, 0x00}, lccharset.UTF16BE, []byte{0xd8, 0x00, 0xd8, 0x3d, 0xde, 0x00}},
		{"lone high to utf8", []byte{0xd8, 0x00, 0x00, 0x41}, lccharset.UTF8, []byte("\ufffdA")},
		{"lone low to utf32", []byte{0xdc, 0x00}, lccharset.UTF32BE, []byte{0x00, 0x00, 0xff, 0xfd}},
		{"odd trailing byte", []byte{0x00, 0x41, 0x42}, lccharset.UTF8, []byte("A\ufffd")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, transcode(t, tc.in, lccharset.UTF16BE, tc.to))
		})
	}
}

func TestLoneSurrogateGetsDestinationMark(t *testing.T) {
	got := transcode(t, []byte{0xdc, 0x00}, lccharset.UTF16BE, lccharset.UTF16)
	assert.Equal(t, []byte{0xfe, 0xff, 0xdc, 0x00}, got)
}

func TestStatefulDestination(t *testing.T) {
	jis := lccharset.MustLookup("ISO-2022-JP")
	out := transcode(t, []byte("a日本\r\nb"), lccharset.UTF8, jis)
	lines, err := lcline.DecodeBytes(out, jis)
	require.NoError(t, err)
	assert.Equal(t, []string{"a日本", "b"}, lines)
}

func TestByteAtATime(t *testing.T) {
	in, err := lccharset.UTF16LE.Encode("x\U0001D11Ey")
	require.NoError(t, err)
	tc, err := lctranscode.New(io.NopCloser(iotest.OneByteReader(bytes.NewReader(in))), lccharset.UTF16LE, lccharset.UTF8)
	require.NoError(t, err)
	defer tc.Close()

	var got []byte
	for {
		b, err := tc.ReadByte()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, b)
	}
	assert.Equal(t, "x\U0001D11Ey", string(got))

	_, err = tc.ReadByte()
	assert.Equal(t, io.EOF, err, "end of stream is sticky")
}

func TestConfigurationFailsAtConstruction(t *testing.T) {
	tr := lcsource.Track(lcsource.String("a"))
	_, err := lctranscode.Transcode(tr, lccharset.UTF8, nil)
	class, _ := lcerr.ClassOf(err)
	assert.Equal(t, lcerr.MissingCharset, class)

	_, err = lctranscode.Transcode(tr, nil, lccharset.UTF8)
	class, _ = lcerr.ClassOf(err)
	assert.Equal(t, lcerr.MissingCharset, class)
	assert.Equal(t, 0, tr.Opened())

	_, err = lctranscode.Transcode(nil, lccharset.UTF8, lccharset.UTF8)
	class, _ = lcerr.ClassOf(err)
	assert.Equal(t, lcerr.SourceUnavailable, class)

	_, err = lctranscode.New(nil, lccharset.UTF8, lccharset.UTF8)
	class, _ = lcerr.ClassOf(err)
	assert.Equal(t, lcerr.SourceUnavailable, class)
}

func TestCloseOnceAndReadAfterClose(t *testing.T) {
	tr := lcsource.Track(lcsource.String("abc"))
	src, err := lctranscode.Transcode(tr, lccharset.UTF8, lccharset.UTF16)
	require.NoError(t, err)
	rc, err := src.Open()
	require.NoError(t, err)

	require.NoError(t, rc.Close())
	require.NoError(t, rc.Close())
	assert.Equal(t, 1, tr.Closed())

	_, err = rc.Read(make([]byte, 4))
	class, _ := lcerr.ClassOf(err)
	assert.Equal(t, lcerr.ReadAfterClose, class)
}

func TestReadFailureIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	for _, from := range []*lccharset.Charset{lccharset.UTF8, lccharset.UTF16BE} {
		t.Run(from.Name(), func(t *testing.T) {
			tc, err := lctranscode.New(io.NopCloser(iotest.ErrReader(boom)), from, lccharset.UTF8)
			require.NoError(t, err)
			_, err = io.ReadAll(tc)
			assert.ErrorIs(t, err, boom)
			class, _ := lcerr.ClassOf(err)
			assert.Equal(t, lcerr.DecodeIO, class)
		})
	}
}

func TestTranscodedRowsDecode(t *testing.T) {
	rows := []string{"", "first", "\U0001D11E", ""}
	src, err := lcsource.Synthesize(rows, lccharset.UTF16LE)
	require.NoError(t, err)
	out, err := lctranscode.Transcode(src, lccharset.UTF16LE, lccharset.UTF16)
	require.NoError(t, err)
	got, err := lcline.DecodeLines(out, lccharset.UTF16)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
