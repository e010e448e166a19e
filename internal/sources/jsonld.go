package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// JobPosting returns the first schema.org JobPosting found in the JSON-LD
// blocks of doc. Blocks may hold a single object, an array or an @graph.
func JobPosting(doc *goquery.Document) (gjson.Result, bool) {
	var found gjson.Result
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" || !gjson.Valid(raw) {
			return true
		}
		if r, ok := findJobPosting(gjson.Parse(raw)); ok {
			found = r
			return false
		}
		return true
	})
	return found, found.Exists()
}

func findJobPosting(r gjson.Result) (gjson.Result, bool) {
	switch {
	case r.IsArray():
		for _, item := range r.Array() {
			if found, ok := findJobPosting(item); ok {
				return found, true
			}
		}
	case r.IsObject():
		if r.Get("@type").String() == "JobPosting" {
			return r, true
		}
		if graph := r.Get("@graph"); graph.Exists() {
			return findJobPosting(graph)
		}
	}
	return gjson.Result{}, false
}

// Locality returns the addressLocality of a JobPosting, looking through
// jobLocation whether it is an object or an array
func Locality(job gjson.Result) string {
	loc := job.Get("jobLocation")
	if loc.IsArray() {
		for _, l := range loc.Array() {
			if city := l.Get("address.addressLocality").String(); city != "" {
				return city
			}
		}
		return ""
	}
	return loc.Get("address.addressLocality").String()
}
