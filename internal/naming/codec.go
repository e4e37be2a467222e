// Package naming converts branch names into identifiers that are safe to use
// as child names and directory names, and back.
//
// Encoding is percent-encoding over UTF-8 bytes with upper case hex digits.
// Decoding is tolerant: a '%' that is not followed by two hex digits is kept
// as is. Because of that, Encode(Decode(s)) only equals s when s was produced
// by Encode; existing on-disk names that predate encoding keep working.
package naming

import (
	"strings"
)

const upperHex = "0123456789ABCDEF"

// safe reports whether c is left untouched by Encode.
func safe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '!', '$', '&', '\'', '(', ')', '*', '+', ',', '-', '.', '=', '@', '_':
		return true
	}
	return false
}

// Encode percent-encodes every byte of raw that is not in the safe set.
// "feature/x" becomes "feature%2Fx".
func Encode(raw string) string {
	n := 0
	for i := 0; i < len(raw); i++ {
		if !safe(raw[i]) {
			n++
		}
	}
	if n == 0 {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw) + 2*n)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if safe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0F])
	}
	return b.String()
}

// Decode reverses Encode. Invalid escapes pass through unchanged; Decode
// never fails.
func Decode(s string) string {
	if strings.IndexByte(s, '%') < 0 {
		return s
	}

	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' && i+2 < len(s) {
			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])
			if okHi && okLo {
				buf = append(buf, hi<<4|lo)
				i += 2
				continue
			}
		}
		buf = append(buf, c)
	}
	return string(buf)
}

// IsEncoded reports whether s is exactly the encoding of its own decoding,
// i.e. whether s could have been produced by Encode.
func IsEncoded(s string) bool {
	return Encode(Decode(s)) == s
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
