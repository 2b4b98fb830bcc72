// Package text holds the string helpers shared by every extraction step:
// normalization, album marker and year stripping, title splitting and
// clock-time conversion.
package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	disallowedChars = regexp.MustCompile(`[^0-9a-zA-Z ]`)
	spaceRuns       = regexp.MustCompile(` +`)

	albumMarker = regexp.MustCompile(`(?i)\S*?(fullalbum|full[^a-z]+album|album)\S*?`)

	leadingYear    = regexp.MustCompile(`^\s?([12][0-9]{3})\s?`)
	leadingOrdinal = regexp.MustCompile(`^\s*[0-9]+\s*[^0-9a-zA-Z]*\s*`)
)

// Normalize drops every character outside [0-9a-zA-Z ], collapses space
// runs and trims. Accented letters are dropped too ("Beyoncé" -> "Beyonc");
// run FoldAccents first to keep their base letter.
func Normalize(s string) string {
	s = disallowedChars.ReplaceAllString(s, "")
	s = spaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FoldAccents decomposes s (NFKD) and removes the combining marks, so
// "Sigur Rós" becomes "Sigur Ros" and full-width digits become ASCII.
func FoldAccents(s string) string {
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		return s
	}
	return folded
}

// StripAlbumMarker removes "full album" style tokens from title and reports
// whether anything was removed.
func StripAlbumMarker(title string) (string, bool) {
	stripped := albumMarker.ReplaceAllString(title, "")
	return stripped, stripped != title
}

// ExtractYear removes a leading four digit year (1000-2999) from title.
func ExtractYear(title string) (string, string, bool) {
	match := leadingYear.FindStringSubmatchIndex(title)
	if match == nil {
		return title, "", false
	}
	year := title[match[2]:match[3]]
	return title[:match[0]] + title[match[1]:], year, true
}

// StripLeadingOrdinal drops a leading track number such as "01 - " or "3.".
func StripLeadingOrdinal(title string) string {
	return strings.TrimSpace(leadingOrdinal.ReplaceAllString(title, ""))
}
