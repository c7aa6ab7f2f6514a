package grammar

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// applyModifier applies a named Tracery modifier to a resolved string.
// Unknown modifiers are a no-op so grammars written against a richer
// modifier set still expand.
func applyModifier(name, s string) string {
	switch name {
	case "capitalize":
		return capitalize(s)
	case "capitalizeAll":
		return titleCaser.String(s)
	case "s":
		return pluralize(s)
	case "a":
		return article(s) + " " + s
	case "ed":
		return pastTense(s)
	default:
		return s
	}
}

// capitalize uppercases only the first rune.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func pluralize(s string) string {
	switch {
	case s == "":
		return s
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"),
		strings.HasSuffix(s, "z"), strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	case strings.HasSuffix(s, "y") && !hasVowelBeforeSuffix(s, "y"):
		return s[:len(s)-1] + "ies"
	default:
		return s + "s"
	}
}

func pastTense(s string) string {
	switch {
	case s == "":
		return s
	case strings.HasSuffix(s, "e"):
		return s + "d"
	case strings.HasSuffix(s, "y") && !hasVowelBeforeSuffix(s, "y"):
		return s[:len(s)-1] + "ied"
	default:
		return s + "ed"
	}
}

func article(s string) string {
	if s == "" {
		return "a"
	}
	r, _ := utf8.DecodeRuneInString(s)
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return "an"
	default:
		return "a"
	}
}

func hasVowelBeforeSuffix(s, suffix string) bool {
	trimmed := strings.TrimSuffix(s, suffix)
	if trimmed == "" {
		return false
	}
	r := rune(trimmed[len(trimmed)-1])
	return strings.ContainsRune("aeiou", unicode.ToLower(r))
}
