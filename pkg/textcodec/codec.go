// Package textcodec converts between the wire encoding a MUD server speaks
// and Go strings. The active encoding is either negotiated over telnet
// CHARSET (RFC 2066) or taken from configuration.
package textcodec

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding identifies one of the supported wire encodings.
type Encoding int

const (
	UTF8 Encoding = iota
	Latin1
	ASCII
)

func (e Encoding) String() string {
	switch e {
	case Latin1:
		return "ISO-8859-1"
	case ASCII:
		return "US-ASCII"
	default:
		return "UTF-8"
	}
}

// encodingAliases maps upper-cased charset names to encodings. The alias set
// covers the spellings MUD servers actually send in CHARSET REQUEST.
var encodingAliases = map[string]Encoding{
	"UTF-8":          UTF8,
	"UTF8":           UTF8,
	"ISO-8859-1":     Latin1,
	"ISO8859-1":      Latin1,
	"LATIN-1":        Latin1,
	"LATIN1":         Latin1,
	"US-ASCII":       ASCII,
	"ASCII":          ASCII,
	"ANSI_X3.4-1968": ASCII,
}

// EncodingForName resolves a charset name to an Encoding.
func EncodingForName(name string) (Encoding, bool) {
	e, ok := encodingAliases[strings.ToUpper(strings.TrimSpace(name))]
	return e, ok
}

// SupportedEncodings lists the canonical names offered in CHARSET REQUEST,
// preferred encoding first.
func SupportedEncodings() []string {
	return []string{UTF8.String(), Latin1.String(), ASCII.String()}
}

// Codec holds the currently active encoding and converts bytes both ways.
type Codec struct {
	enc Encoding
}

// NewCodec returns a codec starting in the given encoding.
func NewCodec(e Encoding) *Codec {
	return &Codec{enc: e}
}

// Encoding returns the active encoding.
func (c *Codec) Encoding() Encoding {
	return c.enc
}

// SetEncoding switches the active encoding.
func (c *Codec) SetEncoding(e Encoding) {
	c.enc = e
}

// Supports reports whether the named charset can be used.
func (c *Codec) Supports(name string) bool {
	_, ok := EncodingForName(name)
	return ok
}

// SetEncodingForName switches to the named charset. Returns false and leaves
// the codec unchanged when the name is not supported.
func (c *Codec) SetEncodingForName(name string) bool {
	e, ok := EncodingForName(name)
	if !ok {
		return false
	}
	c.enc = e
	return true
}

// Decode converts wire bytes to a string. Undecodable bytes become U+FFFD.
func (c *Codec) Decode(data []byte) string {
	switch c.enc {
	case Latin1:
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return string(data)
		}
		return string(out)
	case ASCII:
		var sb strings.Builder
		sb.Grow(len(data))
		for _, b := range data {
			if b < 0x80 {
				sb.WriteByte(b)
			} else {
				sb.WriteRune('�')
			}
		}
		return sb.String()
	default:
		out, err := unicode.UTF8.NewDecoder().Bytes(data)
		if err != nil {
			return string(data)
		}
		return string(out)
	}
}

// Encode converts a string to wire bytes. Characters the encoding cannot
// represent are replaced.
func (c *Codec) Encode(s string) []byte {
	switch c.enc {
	case Latin1:
		enc := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder())
		out, err := enc.Bytes([]byte(s))
		if err != nil {
			return []byte(s)
		}
		return out
	case ASCII:
		out := make([]byte, 0, len(s))
		for _, r := range s {
			if r < 0x80 {
				out = append(out, byte(r))
			} else {
				out = append(out, '?')
			}
		}
		return out
	default:
		return []byte(s)
	}
}
