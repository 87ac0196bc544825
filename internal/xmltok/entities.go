package xmltok

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var predefinedEntities = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"apos": "'",
	"quot": "\"",
}

// decodeEntities replaces predefined entity and character references and
// normalizes "\r\n" and lone "\r" to "\n". On failure it returns the byte
// index of the offending input and a message.
func decodeEntities(data []byte) (string, int, string) {
	if at, msg := checkChars(data); msg != "" {
		return "", at, msg
	}
	if bytes.IndexByte(data, '&') < 0 && bytes.IndexByte(data, '\r') < 0 {
		return string(data), 0, ""
	}
	var b strings.Builder
	b.Grow(len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c == '\r' {
			b.WriteByte('\n')
			if i+1 < len(data) && data[i+1] == '\n' {
				i++
			}
			continue
		}
		if c != '&' {
			b.WriteByte(c)
			continue
		}
		semi := bytes.IndexByte(data[i+1:], ';')
		if semi <= 0 {
			return "", i, errInvalidEntity
		}
		ref := data[i+1 : i+1+semi]
		if ref[0] == '#' {
			r, ok := parseCharRef(ref[1:])
			if !ok {
				return "", i, errInvalidCharRef
			}
			b.WriteRune(r)
		} else {
			value, ok := predefinedEntities[string(ref)]
			if !ok {
				return "", i, errInvalidEntity
			}
			b.WriteString(value)
		}
		i += semi + 1
	}
	return b.String(), 0, ""
}

func parseCharRef(ref []byte) (rune, bool) {
	base := uint64(10)
	if len(ref) > 0 && ref[0] == 'x' {
		base = 16
		ref = ref[1:]
	}
	if len(ref) == 0 {
		return 0, false
	}
	var value uint64
	for _, c := range ref {
		var digit uint64
		switch {
		case c >= '0' && c <= '9':
			digit = uint64(c - '0')
		case base == 16 && c >= 'a' && c <= 'f':
			digit = uint64(c-'a') + 10
		case base == 16 && c >= 'A' && c <= 'F':
			digit = uint64(c-'A') + 10
		default:
			return 0, false
		}
		value = value*base + digit
		if value > utf8.MaxRune {
			return 0, false
		}
	}
	r := rune(value)
	return r, isChar(r)
}

// normalizeNewlines rewrites "\r\n" and lone "\r" as "\n". Character
// references are decoded afterwards, so "&#13;" still yields a carriage return.
func normalizeNewlines(data []byte) []byte {
	if bytes.IndexByte(data, '\r') < 0 {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\r' {
			out = append(out, data[i])
			continue
		}
		out = append(out, '\n')
		if i+1 < len(data) && data[i+1] == '\n' {
			i++
		}
	}
	return out
}

// checkChars reports the index of the first byte that is not valid UTF-8 or
// does not encode an XML Char.
func checkChars(data []byte) (int, string) {
	for i := 0; i < len(data); {
		if c := data[i]; c < utf8.RuneSelf {
			if c < 0x20 && c != '\t' && c != '\n' && c != '\r' {
				return i, errIllegalChar
			}
			i++
			continue
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i, errInvalidUTF8
		}
		if !isChar(r) {
			return i, errIllegalChar
		}
		i += size
	}
	return 0, ""
}

// isChar reports whether r is in the XML 1.0 Char production.
func isChar(r rune) bool {
	return r == '\t' || r == '\n' || r == '\r' ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= utf8.MaxRune
}
