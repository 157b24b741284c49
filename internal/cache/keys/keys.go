// Package keys derives the cache keys for query results.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// MaxLen is the longest key produced, in bytes.
const MaxLen = 160

// hashSuffixLen is "-" plus 16 hex digits.
const hashSuffixLen = 17

// Key joins the query kind and its identifying inputs into a readable part,
// e.g. "get-records-quercus-robur", followed by a hash of the case-folded
// inputs. The readable part is what Prefix matches; the hash keeps inputs that
// normalize to the same text apart.
func Key(kind string, parts ...string) string {
	readable := truncate(normalize(join(kind, parts)), MaxLen-hashSuffixLen)
	return fmt.Sprintf("%s-%016x", readable, xxhash.Sum64String(identity(kind, parts)))
}

// Prefix returns the key prefix shared by every entry of kind whose first
// part starts with search. An empty search covers the whole kind.
func Prefix(kind, search string) string {
	p := normalize(kind) + "-"
	if s := normalize(search); s != "" {
		p += s
	}
	return truncate(p, MaxLen-hashSuffixLen)
}

func join(kind string, parts []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(kind))
	for _, p := range parts {
		b.WriteByte('-')
		b.WriteString(strings.TrimSpace(p))
	}
	return b.String()
}

// identity is the hashed form of the inputs: each part case-folded and
// length-prefixed, so ("a-b","c") and ("a","b-c") differ.
func identity(kind string, parts []string) string {
	var b strings.Builder
	for _, p := range append([]string{kind}, parts...) {
		p = strings.ToLower(strings.TrimSpace(p))
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// normalize lower-cases s and keeps letters, digits and [_.-]; whitespace and
// every other rune become '-'.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if isSafe(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('-')
	}
	return b.String()
}

func isSafe(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '_' || r == '-' || r == '.'
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
