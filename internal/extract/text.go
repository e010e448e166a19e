// Package extract turns untrusted free text into typed posting fields. Every
// function here is total: when no signal is found it returns an explicit
// unspecified value instead of an error.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	spaceRun = regexp.MustCompile(`\s+`)
	titler   = cases.Title(language.French)
)

// nullTokens are the spellings of "no value" that leak in from CSV round trips
var nullTokens = map[string]struct{}{
	"nan": {}, "none": {}, "null": {}, "<na>": {}, "nat": {},
}

// Fold lowercases s and strips diacritics ("Île-de-France" -> "ile-de-france")
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// CleanText collapses whitespace runs and trims
func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Nullable collapses the textual null spellings to ""
func Nullable(s string) string {
	trimmed := strings.TrimSpace(s)
	if _, ok := nullTokens[strings.ToLower(trimmed)]; ok {
		return ""
	}
	return trimmed
}

// CleanLabel is CleanText plus quote stripping and null collapsing, for short
// fields like titles and company names
func CleanLabel(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	return Nullable(CleanText(s))
}

// OrUnspecified returns s, or the unspecified sentinel when s is empty
func OrUnspecified(s, unspecified string) string {
	if s == "" {
		return unspecified
	}
	return s
}

// Title capitalizes each word the French way ("COURBEVOIE" -> "Courbevoie")
func Title(s string) string {
	return titler.String(strings.ToLower(s))
}

// Truncate keeps at most n runes of s
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
