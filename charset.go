package boxon

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Charset converts between the wire byte representation and a Go string for
// a string-fixed/string-terminated directive (spec.md §3). Header magic is
// given as raw bytes and does not pass through a Charset.
type Charset interface {
	Name() string
	Encode(s string) ([]byte, error)
	Decode(b []byte) (string, error)
}

// asciiCharset implements 7-bit ASCII, rejecting bytes/runes outside [0,127].
type asciiCharset struct{}

func (asciiCharset) Name() string { return "ASCII" }

func (asciiCharset) Encode(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 127 {
			return nil, fmt.Errorf("rune %q out of ASCII range", r)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

func (asciiCharset) Decode(b []byte) (string, error) {
	for _, c := range b {
		if c > 127 {
			return "", fmt.Errorf("byte 0x%02x out of ASCII range", c)
		}
	}
	return string(b), nil
}

// utf8Charset passes bytes through as UTF-8, the default wire charset (spec.md §6).
type utf8Charset struct{}

func (utf8Charset) Name() string                    { return "UTF-8" }
func (utf8Charset) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (utf8Charset) Decode(b []byte) (string, error) { return string(b), nil }

// xtextCharset adapts a golang.org/x/text/encoding.Encoding to the Charset interface.
type xtextCharset struct {
	name string
	enc  encoding.Encoding
}

func (c xtextCharset) Name() string { return c.name }

func (c xtextCharset) Encode(s string) ([]byte, error) {
	return c.enc.NewEncoder().Bytes([]byte(s))
}

func (c xtextCharset) Decode(b []byte) (string, error) {
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

var builtinCharsets = map[string]Charset{
	"ASCII":     asciiCharset{},
	"US-ASCII":  asciiCharset{},
	"UTF-8":     utf8Charset{},
	"UTF8":      utf8Charset{},
	"ISO-8859-1": xtextCharset{name: "ISO-8859-1", enc: charmap.ISO8859_1},
	"LATIN1":     xtextCharset{name: "ISO-8859-1", enc: charmap.ISO8859_1},
	"UTF-16BE":   xtextCharset{name: "UTF-16BE", enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)},
	"UTF-16LE":   xtextCharset{name: "UTF-16LE", enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)},
}

// charsetRegistry holds host-supplied charsets registered through
// CoreBuilder.Charset, scoped to a single CoreBuilder/Core like every other
// registry (converters, validators, checksummers, codecs, types) rather
// than a package-level global: two goroutines building unrelated Cores with
// different custom charsets must not share mutable state, and a Core is
// immutable once Build returns.
type charsetRegistry struct {
	extra map[string]Charset
}

func newCharsetRegistry() *charsetRegistry {
	return &charsetRegistry{extra: map[string]Charset{}}
}

func (cr *charsetRegistry) register(cs Charset) {
	cr.extra[strings.ToUpper(cs.Name())] = cs
}

// lookup resolves a charset name, consulting cr's host-supplied charsets
// before the built-ins. cr may be nil (e.g. a Reader/Writer used directly
// without a Core), in which case only the built-ins are consulted.
func (cr *charsetRegistry) lookup(name string) (Charset, error) {
	if name == "" {
		name = "UTF-8"
	}
	key := strings.ToUpper(name)
	if cr != nil {
		if cs, ok := cr.extra[key]; ok {
			return cs, nil
		}
	}
	if cs, ok := builtinCharsets[key]; ok {
		return cs, nil
	}
	return nil, newErr(KindInvalidCharset, fmt.Sprintf("unknown charset %q", name))
}
