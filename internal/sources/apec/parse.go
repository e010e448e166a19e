package apec

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pathfinder/internal/extract"
	"pathfinder/internal/sources"
	"pathfinder/pkg/models"
)

const (
	maxDescriptionLen = 15000
	maxCityTagLen     = 50
	minDescriptionLen = 100
)

var (
	withdrawnPhrases = []string{"offre n'est plus en ligne", "erreur inattendue"}
	privacyPhrases   = []string{"vie privée", "cookies"}

	// noisePhrases mark pages that are login walls, cookie walls or errors
	noisePhrases = []string{
		"votre vie privée",
		"paramétrer les cookies",
		"mot de passe oublié",
		"vous avez déjà un compte",
		"n'est plus en ligne",
		"accès recruteur",
		"erreur inattendue",
		"cette offre n'est plus disponible",
	}
	noiseCompanies = []string{"salaire", "vie privee"}
	cityHints      = []string{"paris", "lyon", "marseille", "lille", "bordeaux", "nantes", "toulouse", "cedex"}
)

// parseListing returns the offer links of a result page and whether the
// "next" pagination item is disabled or missing
func parseListing(html, baseURL string) ([]string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, err
	}

	base, _ := url.Parse(baseURL)
	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, "/emploi/detail-offre/") {
			return
		}
		abs := href
		if ref, err := url.Parse(href); err == nil && base != nil {
			abs = base.ResolveReference(ref).String()
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	items := doc.Find("ul.pagination li")
	last := items.Last()
	noNext := items.Length() == 0 || last.HasClass("disabled")
	return links, noNext, nil
}

// description prefers the offer body block, else the longest block that is
// not a cookie or privacy notice
func description(doc *goquery.Document) string {
	if body := doc.Find(".details-offer-content").First(); body.Length() > 0 {
		return extract.CleanText(body.Text())
	}
	return sources.LongestBlock(doc.Find("div, section"), maxDescriptionLen, privacyPhrases)
}

// parseDetail reads a rendered offer page. It reports withdrawn when the body
// is the site's "no longer online" notice.
func parseDetail(html, pageURL string) (*models.Posting, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, err
	}

	desc := description(doc)
	if sources.ContainsAny(desc, withdrawnPhrases) {
		return nil, true, nil
	}

	p := &models.Posting{
		URL:         pageURL,
		Title:       extract.CleanText(doc.Find("h1").First().Text()),
		City:        models.Unspecified,
		Salary:      models.Unspecified,
		Description: desc,
		Source:      models.SourceAPEC,
	}

	if job, ok := sources.JobPosting(doc); ok {
		if p.Title == "" {
			p.Title = job.Get("title").String()
		}
		p.Company = job.Get("hiringOrganization.name").String()
		if city := sources.Locality(job); city != "" {
			p.City = city
		}
		p.PublishedAt = extract.ParseDatePtr(job.Get("datePosted").String())
	}
	if p.Company == "" {
		p.Company = extract.CleanText(doc.Find(".details-offer-list li").First().Text())
	}

	var tags []string
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := extract.CleanText(li.Text())
		if text == "" {
			return
		}
		folded := extract.Fold(text)
		switch {
		case strings.Contains(text, "€") && (strings.Contains(folded, "an") || strings.Contains(folded, "brut")):
			if !strings.Contains(folded, "sport") {
				p.Salary = text
			}
		case p.City == models.Unspecified && len([]rune(text)) < maxCityTagLen && containsHint(folded):
			p.City = text
		}
		if p.PublishedAt == nil && strings.Contains(folded, "publiee le") {
			p.PublishedAt = extract.ParseDatePtr(text)
		}
		tags = append(tags, text)
	})
	p.Tags = strings.Join(tags, " | ")
	return p, false, nil
}

func containsHint(folded string) bool {
	for _, h := range cityHints {
		if strings.Contains(folded, h) {
			return true
		}
	}
	return false
}

// valid rejects records scraped from cookie walls, login pages and error
// pages, and records too thin to be an offer
func valid(p models.Posting) bool {
	if sources.ContainsAny(p.Description, noisePhrases) {
		return false
	}
	company := extract.Fold(extract.CleanLabel(p.Company))
	if len([]rune(company)) < 2 {
		return false
	}
	for _, n := range noiseCompanies {
		if strings.Contains(company, n) {
			return false
		}
	}
	return len([]rune(extract.CleanText(p.Description))) >= minDescriptionLen
}

// isWithdrawn scans the visible page text for the withdrawn notice
func isWithdrawn(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return sources.ContainsAny(sources.VisibleText(doc), withdrawnPhrases)
}
