// Package slug derives the canonical entity tags used in prompts.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const TagPrefix = "@"

var turkish = map[rune]string{
	'ç': "c", 'Ç': "c",
	'ğ': "g", 'Ğ': "g",
	'ı': "i", 'İ': "i",
	'ö': "o", 'Ö': "o",
	'ş': "s", 'Ş': "s",
	'ü': "u", 'Ü': "u",
}

var tagPattern = regexp.MustCompile(`@[A-Za-z0-9_]+`)

// Make lowercases name, transliterates it to ASCII and collapses every run of
// other characters into a single underscore.
func Make(name string) string {
	var b strings.Builder
	for _, r := range name {
		if t, ok := turkish[r]; ok {
			b.WriteString(t)
			continue
		}
		b.WriteRune(r)
	}

	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), b.String())
	if err != nil {
		folded = b.String()
	}
	folded = strings.ToLower(folded)

	var out strings.Builder
	pendingSep := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && out.Len() > 0 {
				out.WriteByte('_')
			}
			pendingSep = false
			out.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return out.String()
}

// Tag returns the canonical "@slug" for an entity name.
func Tag(name string) string {
	s := Make(name)
	if s == "" {
		return ""
	}
	return TagPrefix + s
}

// Normalize accepts a tag with or without "@" and returns its canonical form.
func Normalize(tag string) string {
	return Tag(strings.TrimPrefix(strings.TrimSpace(tag), TagPrefix))
}

// FindTags returns the distinct canonical tags mentioned in text, in order of
// first appearance.
func FindTags(text string) []string {
	matches := tagPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var tags []string
	for _, m := range matches {
		t := Normalize(m)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}
