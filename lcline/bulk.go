package lcline

import (
	"io"

	"github.com/lattice-substrate/line-canon/lccharset"
	"github.com/lattice-substrate/line-canon/lcerr"
	"github.com/lattice-substrate/line-canon/lcsource"
)

// ReadAll drains r and closes it. The reader is closed on every path,
// including when a line fails to decode; a close failure is reported only
// when reading itself succeeded.
func ReadAll(r *Reader) (lines []string, err error) {
	defer lcerr.CloseInto(&err, r.Close)
	for {
		line, nerr := r.Next()
		if nerr == io.EOF {
			return lines, nil
		}
		if nerr != nil {
			return nil, nerr
		}
		lines = append(lines, line)
	}
}

// DecodeLines opens src, decodes it under cs and returns every line. The
// stream is closed exactly once before DecodeLines returns.
func DecodeLines(src lcsource.Source, cs *lccharset.Charset) ([]string, error) {
	r, err := Open(src, cs)
	if err != nil {
		return nil, err
	}
	return ReadAll(r)
}

// DecodeBytes is DecodeLines over an in-memory buffer.
func DecodeBytes(b []byte, cs *lccharset.Charset) ([]string, error) {
	return DecodeLines(lcsource.Bytes(b), cs)
}

// Split decodes UTF-8 text into lines with the same boundary rules.
func Split(s string) []string {
	lines, err := DecodeLines(lcsource.String(s), lccharset.UTF8)
	if err != nil {
		// An in-memory string cannot fail to read.
		panic(err)
	}
	return lines
}
