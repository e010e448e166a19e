package wttj

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pathfinder/internal/extract"
	"pathfinder/internal/sources"
	"pathfinder/pkg/models"
)

// maxTagLen keeps the short list items that carry contract, place, salary
// and remote badges
const maxTagLen = 50

var (
	expiredPhrases = []string{
		"cette offre n'est plus disponible",
		"archivée",
		"archived",
		"page introuvable",
	}
	salaryMarkers = []string{"salaire", "€", "k€"}
)

// listing is one job card of a search page
type listing struct {
	URL   string
	Title string
}

// parseListing returns the job links of a rendered search page in page order
func parseListing(html, baseURL string) ([]listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(baseURL)
	var out []listing
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, "/companies/") || !strings.Contains(href, "/jobs/") {
			return
		}
		title := extract.CleanText(a.Text())
		if title == "" {
			return
		}
		abs := absolute(base, href)
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, listing{URL: abs, Title: title})
	})
	return out, nil
}

func absolute(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// companyFromURL reads the company slug of a /companies/{slug}/jobs/ URL
func companyFromURL(rawURL string) string {
	_, after, ok := strings.Cut(rawURL, "/companies/")
	if !ok {
		return ""
	}
	slug, _, _ := strings.Cut(after, "/")
	return strings.ToUpper(strings.ReplaceAll(slug, "-", " "))
}

// parseDetail turns a rendered job page into a detail record. JSON-LD wins
// for title, locality and dates; the badge list and the page body fill the rest.
func parseDetail(html, pageURL string, rules *extract.Rules) (*models.Posting, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	p := &models.Posting{
		URL:     pageURL,
		Company: companyFromURL(pageURL),
		City:    models.Unspecified,
		Source:  models.SourceWTTJ,
	}

	if job, ok := sources.JobPosting(doc); ok {
		p.Title = job.Get("title").String()
		if city := sources.Locality(job); city != "" {
			p.City = city
		}
		p.PublishedAt = extract.ParseDatePtr(job.Get("datePosted").String())
		if p.Company == "" {
			p.Company = job.Get("hiringOrganization.name").String()
		}
	}
	if p.Title == "" {
		p.Title = extract.CleanText(doc.Find("h1").First().Text())
	}

	var tags []string
	seen := make(map[string]struct{})
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := extract.CleanText(li.Text())
		if text == "" || len([]rune(text)) >= maxTagLen {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}
		tags = append(tags, text)

		if p.City == models.Unspecified {
			if _, ok := rules.FindCity(text); ok {
				p.City = text
			}
		}
		if p.Salary == "" && sources.ContainsAny(text, salaryMarkers) {
			p.Salary = text
		}
	})
	p.Tags = strings.Join(tags, " | ")

	if main := doc.Find("main").First(); main.Length() > 0 {
		p.Description = extract.CleanText(main.Text())
	} else {
		p.Description = sources.LongestBlock(doc.Find("section"), 0, nil)
	}
	return p, nil
}

// isExpired applies the liveness rules of a job page: a redirect to a much
// shorter non-job URL, a closing phrase, or a 404 page
func isExpired(requested, final, title, html string) bool {
	if redirectedAway(requested, final) {
		return true
	}
	if strings.Contains(title, "404") {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return sources.ContainsAny(sources.VisibleText(doc), expiredPhrases)
}

// redirectedAway only trusts a final URL on the same site; a blank tab or an
// unparseable location says nothing about the posting
func redirectedAway(requested, final string) bool {
	req, err := url.Parse(requested)
	if err != nil {
		return false
	}
	fin, err := url.Parse(final)
	if err != nil || (fin.Scheme != "http" && fin.Scheme != "https") || fin.Host == "" {
		return false
	}
	if !strings.EqualFold(fin.Hostname(), req.Hostname()) {
		return false
	}
	return len(final) < len(requested)-15 && !strings.Contains(fin.Path, "jobs")
}
