package domain

import (
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug produces the lowercase hyphenated key used to deduplicate categories:
// "World News" -> "world-news", "U.S. Politics" -> "us-politics", "Мир" -> "mir".
// Non-Latin scripts are transliterated to ASCII first. Punctuation is dropped,
// whitespace, '-' and '_' runs become one hyphen. The result is empty only
// when the name holds no letters or digits.
func Slug(name string) string {
	folded, _, err := transform.String(stripMarks, strings.ReplaceAll(name, "@", " at "))
	if err != nil {
		folded = name
	}

	if s := slugify(unidecode.Unidecode(folded), true); s != "" {
		return s
	}
	// Scripts without a transliteration keep their own letters.
	return slugify(folded, false)
}

func slugify(text string, asciiOnly bool) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case (!asciiOnly || r < unicode.MaxASCII) && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || r == '_' || unicode.IsSpace(r):
			pendingDash = true
		}
	}
	return b.String()
}
