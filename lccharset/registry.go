package lccharset

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/lattice-substrate/line-canon/lcerr"
)

var (
	utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	utf32BE = utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM)
	utf32LE = utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)
)

// Built-in Unicode charsets. Their byte-order-mark behaviour is fixed here
// rather than delegated to x/text so that producers control where the mark
// lands in a stream.
var (
	UTF8 = &Charset{
		name: "UTF-8", aliases: []string{"utf8", "csUTF8"},
		enc: unicode.UTF8, width: Variable, unit: 1, order: NoOrder,
	}
	// UTF16 writes a big-endian mark and decodes either order, defaulting to
	// big-endian when no mark is present.
	UTF16 = &Charset{
		name: "UTF-16", aliases: []string{"utf16", "csUTF16"},
		enc: utf16BE, width: Variable, unit: 2, order: BigEndian, pairs: true,
		bom: []byte{0xfe, 0xff},
		sniff: []bomRule{
			{mark: []byte{0xfe, 0xff}, order: BigEndian, enc: utf16BE},
			{mark: []byte{0xff, 0xfe}, order: LittleEndian, enc: utf16LE},
		},
	}
	UTF16BE = &Charset{
		name: "UTF-16BE", aliases: []string{"utf16be", "csUTF16BE", "UnicodeBigUnmarked"},
		enc: utf16BE, width: Variable, unit: 2, order: BigEndian, pairs: true,
	}
	UTF16LE = &Charset{
		name: "UTF-16LE", aliases: []string{"utf16le", "csUTF16LE", "UnicodeLittleUnmarked"},
		enc: utf16LE, width: Variable, unit: 2, order: LittleEndian, pairs: true,
	}
	// UTF32 decodes either order from a mark but writes none.
	UTF32 = &Charset{
		name: "UTF-32", aliases: []string{"utf32", "csUTF32"},
		enc: utf32BE, width: Fixed, unit: 4, order: BigEndian,
		sniff: []bomRule{
			{mark: []byte{0x00, 0x00, 0xfe, 0xff}, order: BigEndian, enc: utf32BE},
			{mark: []byte{0xff, 0xfe, 0x00, 0x00}, order: LittleEndian, enc: utf32LE},
		},
	}
	UTF32BE = &Charset{
		name: "UTF-32BE", aliases: []string{"utf32be", "csUTF32BE"},
		enc: utf32BE, width: Fixed, unit: 4, order: BigEndian,
	}
	UTF32LE = &Charset{
		name: "UTF-32LE", aliases: []string{"utf32le", "csUTF32LE"},
		enc: utf32LE, width: Fixed, unit: 4, order: LittleEndian,
	}
)

// Registry maps charset identifiers to Charsets. Lookups fall back from the
// built-in Unicode table to the IANA index and then the WHATWG index. It is
// safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Charset
}

// NewRegistry returns a registry holding the built-in Unicode charsets.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Charset)}
	for _, cs := range []*Charset{UTF8, UTF16, UTF16BE, UTF16LE, UTF32, UTF32BE, UTF32LE} {
		r.add(cs)
	}
	return r
}

var defaultRegistry = NewRegistry()

// Lookup resolves name in the default registry.
func Lookup(name string) (*Charset, error) {
	return defaultRegistry.Lookup(name)
}

// MustLookup is like Lookup but panics on error. It is meant for
// package-level variables and tests.
func MustLookup(name string) *Charset {
	cs, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return cs
}

// Names lists the canonical names known to the default registry.
func Names() []string {
	return defaultRegistry.Names()
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) add(cs *Charset) {
	r.byName[key(cs.name)] = cs
	for _, a := range cs.aliases {
		r.byName[key(a)] = cs
	}
}

// Register adds cs under its name and aliases, replacing earlier entries.
func (r *Registry) Register(cs *Charset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(cs)
}

// Lookup resolves name to a Charset. An empty name is a MissingCharset
// error; a name the runtime cannot encode and decode is UnsupportedCharset.
// Both are reported before any stream is touched.
func (r *Registry) Lookup(name string) (*Charset, error) {
	k := key(name)
	if k == "" {
		return nil, lcerr.New(lcerr.MissingCharset, -1, "charset name is empty")
	}

	r.mu.RLock()
	cs, ok := r.byName[k]
	r.mu.RUnlock()
	if ok {
		return cs, nil
	}

	enc, canonical := resolve(name)
	if enc == nil {
		return nil, lcerr.New(lcerr.UnsupportedCharset, -1, "unsupported charset "+strings.TrimSpace(name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// An alias may canonicalise to a built-in or to an entry created by a
	// concurrent lookup.
	if cs, ok := r.byName[key(canonical)]; ok {
		r.byName[k] = cs
		return cs, nil
	}
	cs = fromEncoding(canonical, enc)
	r.add(cs)
	r.byName[k] = cs
	return cs, nil
}

// Names lists the canonical names currently known to r plus every
// encoding x/text can resolve through the IANA index.
func (r *Registry) Names() []string {
	seen := make(map[string]struct{})
	r.mu.RLock()
	for _, cs := range r.byName {
		seen[cs.name] = struct{}{}
	}
	r.mu.RUnlock()
	for _, e := range knownEncodings() {
		if n := canonicalName(e); n != "" {
			seen[n] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func knownEncodings() []encoding.Encoding {
	var all []encoding.Encoding
	all = append(all, charmap.All...)
	all = append(all, japanese.All...)
	all = append(all, korean.All...)
	all = append(all, simplifiedchinese.All...)
	all = append(all, traditionalchinese.All...)
	return all
}

// resolve maps name through the IANA index, then the WHATWG index. The IANA
// index returns a nil Encoding for names it knows but cannot handle; that
// is treated as unsupported.
func resolve(name string) (encoding.Encoding, string) {
	name = strings.TrimSpace(name)
	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		canonical := canonicalName(enc)
		if canonical == "" {
			canonical = name
		}
		return enc, canonical
	}
	if enc, err := htmlindex.Get(name); err == nil && enc != nil {
		canonical, err := htmlindex.Name(enc)
		if err != nil || canonical == "" {
			canonical = name
		}
		return enc, canonical
	}
	return nil, ""
}

// canonicalName prefers the MIME name (ISO-8859-1 rather than
// ISO_8859-1:1987) and falls back to the IANA registry name.
func canonicalName(enc encoding.Encoding) string {
	if n, err := ianaindex.MIME.Name(enc); err == nil && n != "" {
		return n
	}
	if n, err := ianaindex.IANA.Name(enc); err == nil {
		return n
	}
	return ""
}

func fromEncoding(name string, enc encoding.Encoding) *Charset {
	cs := &Charset{name: name, enc: enc, width: Variable, unit: 1, order: NoOrder}
	if _, ok := enc.(*charmap.Charmap); ok {
		cs.width = Fixed
	}
	if strings.EqualFold(name, "US-ASCII") {
		cs.width = Fixed
	}
	return cs
}
