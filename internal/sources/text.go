package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pathfinder/internal/extract"
)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

// ContainsAny reports whether text contains one of the phrases, ignoring case,
// accents and apostrophe style
func ContainsAny(text string, phrases []string) bool {
	folded := apostrophes.Replace(extract.Fold(text))
	for _, p := range phrases {
		if strings.Contains(folded, apostrophes.Replace(extract.Fold(p))) {
			return true
		}
	}
	return false
}

// VisibleText returns the text of the document body without scripts and styles
func VisibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return extract.CleanText(body.Text())
}

// LongestBlock returns the longest text among the matched elements that is
// shorter than maxLen and contains none of the rejected phrases
func LongestBlock(sel *goquery.Selection, maxLen int, reject []string) string {
	best := ""
	sel.Each(func(_ int, s *goquery.Selection) {
		text := extract.CleanText(s.Text())
		if len(text) <= len(best) || (maxLen > 0 && len(text) >= maxLen) {
			return
		}
		if ContainsAny(text, reject) {
			return
		}
		best = text
	})
	return best
}

// JoinItems joins the trimmed texts of the matched elements with " | "
func JoinItems(sel *goquery.Selection) string {
	var items []string
	seen := make(map[string]struct{})
	sel.Each(func(_ int, s *goquery.Selection) {
		text := extract.CleanText(s.Text())
		if text == "" {
			return
		}
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		items = append(items, text)
	})
	return strings.Join(items, " | ")
}
