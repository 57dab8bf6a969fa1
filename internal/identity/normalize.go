package identity

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// asciiFold maps letters that NFD decomposition leaves intact to their plain
// ASCII base. Nordic and Slavic football names depend on these.
var asciiFold = map[rune]string{
	'ø': "o", 'æ': "ae", 'å': "a", 'ß': "ss", 'đ': "d", 'ð': "d",
	'þ': "th", 'ł': "l", 'œ': "oe", 'ı': "i", 'ħ': "h", 'ŧ': "t",
	'ĸ': "k", 'ŋ': "ng",
}

// Normalize produces the pass-1 matching key for an entity name: lower-cased,
// diacritics stripped, punctuation dropped and runs of whitespace collapsed to
// single spaces. The same raw name always yields the same key, so the key
// doubles as the canonical entity ID.
func Normalize(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	decomposed := norm.NFD.String(lowered)

	var b strings.Builder
	b.Grow(len(decomposed))
	space := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining marks carry the diacritics after NFD
			continue
		case unicode.IsSpace(r):
			space = true
			continue
		case r == '-' || r == '\'' || r == '.' || r == ',':
			// punctuation inside names separates tokens at most
			space = true
			continue
		}
		if folded, ok := asciiFold[r]; ok {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteString(folded)
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// TokenKey produces the pass-2 matching key: the pass-1 key with its tokens
// sorted, so "Smith John" and "John Smith" collapse to the same key.
func TokenKey(name string) string {
	key := Normalize(name)
	if key == "" {
		return ""
	}
	tokens := strings.Split(key, " ")
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Tokens returns the normalized name split into its tokens.
func Tokens(name string) []string {
	key := Normalize(name)
	if key == "" {
		return nil
	}
	return strings.Split(key, " ")
}
