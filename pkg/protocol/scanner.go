package protocol

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// The scanner locates "key": pairs anywhere in the text instead of
// tokenizing the whole record, so one corrupt field cannot hide another.

// locate finds the first unescaped occurrence of "key" followed by a colon
// at or after from. It returns the index of the value and the offset to
// resume searching from, or -1 when there is no further occurrence.
func locate(text, key string, from int) (int, int) {
	pattern := `"` + key + `"`

	for from < len(text) {
		i := strings.Index(text[from:], pattern)
		if i < 0 {
			return -1, -1
		}
		i += from
		from = i + 1

		if isEscaped(text, i) {
			continue
		}

		j := skipBlanks(text, i+len(pattern))
		if j >= len(text) || text[j] != ':' {
			continue
		}

		return skipBlanks(text, j+1), from
	}

	return -1, -1
}

// stringField extracts the first quoted value stored under key
func stringField(text, key string) (string, bool) {
	for from := 0; ; {
		at, next := locate(text, key, from)
		if at < 0 {
			return "", false
		}

		if at < len(text) && text[at] == '"' {
			return readString(text, at+1)
		}

		from = next
	}
}

// uintField extracts the decimal digits stored under key. Digits stop at
// the first non-digit; no digits or overflow yields false.
func uintField(text, key string) (uint64, bool) {
	at, _ := locate(text, key, 0)
	if at < 0 {
		return 0, false
	}

	end := at
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == at {
		return 0, false
	}

	n, err := strconv.ParseUint(text[at:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// readString reads up to the first unescaped quote at or after start
func readString(text string, start int) (string, bool) {
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return unescape(text[start:i]), true
		}
	}
	return "", false
}

// unescape resolves JSON string escapes. Bytes outside escapes are kept
// as is, including invalid UTF-8. A malformed escape leaves raw untouched.
func unescape(raw string) string {
	i := strings.IndexByte(raw, '\\')
	if i < 0 {
		return raw
	}

	out := make([]byte, 0, len(raw))
	out = append(out, raw[:i]...)

	for i < len(raw) {
		c := raw[i]
		if c != '\\' {
			out = append(out, c)
			i++
			continue
		}
		if i+1 >= len(raw) {
			return raw
		}

		switch raw[i+1] {
		case '"', '\\', '/':
			out = append(out, raw[i+1])
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'u':
			r, n, ok := readRune(raw[i:])
			if !ok {
				return raw
			}
			out = utf8.AppendRune(out, r)
			i += n
			continue
		default:
			return raw
		}
		i += 2
	}

	return string(out)
}

// readRune decodes a \uXXXX escape at the start of s, joining a following
// low surrogate. A lone surrogate decodes to U+FFFD.
func readRune(s string) (rune, int, bool) {
	r, ok := hex4(s)
	if !ok {
		return 0, 0, false
	}
	if !utf16.IsSurrogate(r) {
		return r, 6, true
	}

	if r2, ok := hex4(s[6:]); ok {
		if dec := utf16.DecodeRune(r, r2); dec != unicode.ReplacementChar {
			return dec, 12, true
		}
	}
	return unicode.ReplacementChar, 6, true
}

// hex4 parses the four hex digits of a \uXXXX escape at the start of s
func hex4(s string) (rune, bool) {
	if len(s) < 6 || s[0] != '\\' || s[1] != 'u' {
		return 0, false
	}
	n, err := strconv.ParseUint(s[2:6], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}

func isEscaped(text string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && text[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func skipBlanks(text string, i int) int {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	return i
}
