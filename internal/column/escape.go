package column

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnterminatedEscape = errors.New("unterminated escape sequence")
	ErrInvalidEscape      = errors.New("invalid escape sequence")
)

func escapeCode(c, sep byte) byte {
	switch c {
	case '\\':
		return '\\'
	case '\n':
		return 'n'
	case '\r':
		return 'r'
	case '\t':
		return 't'
	case 0:
		return '0'
	}
	if c == sep {
		return sep
	}
	return 0
}

// NeedsEscape reports whether s contains a byte that Escape would encode.
// It runs in O(len(s)) and never allocates.
func NeedsEscape(s string, sep byte) bool {
	for i := 0; i < len(s); i++ {
		if escapeCode(s[i], sep) != 0 {
			return true
		}
	}
	return false
}

// Escape encodes backslashes, line breaks, tabs, NUL and sep so that s fits
// into a single column. s is returned unchanged when nothing needs escaping.
func Escape(s string, sep byte) string {
	if !NeedsEscape(s, sep) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		if code := escapeCode(s[i], sep); code != 0 {
			b.WriteByte('\\')
			b.WriteByte(code)
		} else {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Unescape reverses Escape.
func Unescape(s string, sep byte) (string, error) {
	first := strings.IndexByte(s, '\\')
	if first < 0 {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s[:first])
	for i := first; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			return "", ErrUnterminatedEscape
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '0':
			b.WriteByte(0)
		default:
			if s[i] != sep {
				return "", errors.Wrapf(ErrInvalidEscape, "\\%c", s[i])
			}
			b.WriteByte(sep)
		}
	}
	return b.String(), nil
}
