package extract

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// htmlEntities covers the entities that actually occur in embedded
// media JSON. Full entity tables are unnecessary for CDN URLs.
var htmlEntities = map[string]rune{
	"amp":  '&',
	"lt":   '<',
	"gt":   '>',
	"quot": '"',
	"#39":  '\'',
	"#x27": '\'',
	"#x2F": '/',
	"#47":  '/',
}

// Decode resolves JS string escapes and the common HTML entities in one
// pass. Platform pages embed media URLs inside JSON inside script tags,
// so a raw body contains forms like `https:\/\/cdn...` and `&`
// where the patterns expect plain text.
func Decode(s string) string {
	if !strings.ContainsAny(s, `\&`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i += decodeBackslash(&b, s[i:])
		case c == '&':
			n := decodeEntity(&b, s[i:])
			if n == 0 {
				b.WriteByte(c)
				i++
			} else {
				i += n
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// decodeBackslash consumes one escape sequence starting at s[0] == '\\'
// and returns the number of input bytes consumed.
func decodeBackslash(b *strings.Builder, s string) int {
	switch s[1] {
	case '/':
		b.WriteByte('/')
		return 2
	case '\\':
		b.WriteByte('\\')
		return 2
	case '"':
		b.WriteByte('"')
		return 2
	case 'n':
		b.WriteByte('\n')
		return 2
	case 't':
		b.WriteByte('\t')
		return 2
	case 'r':
		return 2
	case 'u':
		if len(s) < 6 {
			b.WriteByte(s[0])
			return 1
		}
		v, err := strconv.ParseUint(s[2:6], 16, 32)
		if err != nil {
			b.WriteByte(s[0])
			return 1
		}
		r := rune(v)
		// Surrogate pairs arrive as two adjacent \uXXXX escapes.
		if utf16.IsSurrogate(r) && len(s) >= 12 && s[6] == '\\' && s[7] == 'u' {
			if v2, err := strconv.ParseUint(s[8:12], 16, 32); err == nil {
				if combined := utf16.DecodeRune(r, rune(v2)); combined != 0xFFFD {
					b.WriteRune(combined)
					return 12
				}
			}
		}
		b.WriteRune(r)
		return 6
	default:
		b.WriteByte(s[0])
		return 1
	}
}

// decodeEntity consumes one HTML entity starting at s[0] == '&' and
// returns the bytes consumed, or 0 when no known entity matches.
func decodeEntity(b *strings.Builder, s string) int {
	end := strings.IndexByte(s[:min(len(s), 8)], ';')
	if end <= 1 {
		return 0
	}
	r, ok := htmlEntities[s[1:end]]
	if !ok {
		return 0
	}
	b.WriteRune(r)
	return end + 1
}
