// Package normalize turns free text into the canonical form shared by index
// building and query scoring.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTokenLength is the shortest token kept by Tokens.
const MinTokenLength = 3

// Text lowercases s, replaces every rune outside Latin letters, Cyrillic
// letters, digits and whitespace with a space and collapses whitespace runs.
// Text(Text(s)) == Text(s).
func Text(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if keep(r) {
			return r
		}
		return ' '
	}, s)

	return strings.Join(strings.Fields(s), " ")
}

// Any normalizes v when it is a string and returns "" otherwise.
func Any(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Text(s)
}

// Tokens normalizes s and splits it into word tokens, dropping tokens shorter
// than MinTokenLength runes. Order and duplicates are preserved.
func Tokens(s string) []string {
	words := strings.FieldsFunc(Text(s), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < MinTokenLength {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// Composite builds the normalized document text for a vacancy-shaped record.
func Composite(title, company string, skills []string, experience, keywords string) string {
	parts := []string{title, company, strings.Join(skills, ", "), experience, keywords}
	return Text(strings.Join(parts, " "))
}

func keep(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 'а' && r <= 'я', r == 'ё':
		return true
	case unicode.IsSpace(r):
		return true
	}
	return false
}

// Label canonicalizes an identifier such as a skill or company name. Unlike
// Text it keeps punctuation, so "C++" and "C#" stay distinct.
func Label(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
