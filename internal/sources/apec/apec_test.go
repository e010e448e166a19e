package apec

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/browser/browsertest"
	"pathfinder/internal/crawlstate"
	"pathfinder/internal/extract"
	"pathfinder/internal/logging"
	"pathfinder/internal/sources"
	"pathfinder/pkg/models"
	"pathfinder/pkg/utils"
)

const base = "https://apec.test"

func resultPage(nextDisabled bool, ids ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="results">`)
	for _, id := range ids {
		b.WriteString(`<a href="/candidat/recherche-emploi.html/emploi/detail-offre/` + id + `?selectedIndex=0">Offre</a>`)
	}
	b.WriteString(`</div><a href="/candidat/mon-espace">Espace</a><ul class="pagination"><li><a>1</a></li>`)
	if nextDisabled {
		b.WriteString(`<li class="page-item disabled"><a>Suivant</a></li>`)
	} else {
		b.WriteString(`<li class="page-item"><a>Suivant</a></li>`)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

// paginated serves the search URL then "pageN" documents reached by clicking next
func paginated(c *Connector, pages ...string) *browsertest.Page {
	docs := map[string]browsertest.Doc{c.searchURL(): {HTML: pages[0]}}
	order := []string{c.searchURL()}
	for i, html := range pages[1:] {
		key := base + "/page" + string(rune('2'+i))
		docs[key] = browsertest.Doc{HTML: html}
		order = append(order, key)
	}

	p := browsertest.New(docs)
	p.OnClick = func(current string, selectors []string) (string, bool) {
		if selectors[0] == cookieButtons[0] {
			return "", true
		}
		for i, u := range order[:len(order)-1] {
			if u == current {
				return order[i+1], true
			}
		}
		return "", false
	}
	return p
}

func newTestConnector(page *browsertest.Page) *Connector {
	var open sources.Opener
	if page != nil {
		open = page.Opener()
	}
	return NewConnector(open, Options{
		BaseURL:            base,
		Query:              "Data analyst",
		MaxPages:           38,
		DuplicateTolerance: 2,
		FlushEvery:         20,
	}, extract.DefaultRules(), logging.NewNopLogger())
}

func discover(t *testing.T, c *Connector, known *crawlstate.Set) []string {
	t.Helper()
	var ids []string
	for link, err := range c.Discover(context.Background(), known) {
		require.NoError(t, err)
		assert.Equal(t, models.SourceAPEC, link.Source)
		ids = append(ids, link.ID)
	}
	return ids
}

func TestDiscover(t *testing.T) {
	probe := newTestConnector(nil)

	t.Run("follows pagination until next is disabled", func(t *testing.T) {
		page := paginated(probe,
			resultPage(false, "170001W", "170002W"),
			resultPage(false, "170003W"),
			resultPage(true, "170004W"),
		)
		c := newTestConnector(page)

		assert.Equal(t, []string{"170001W", "170002W", "170003W", "170004W"}, discover(t, c, crawlstate.NewSet()))
	})

	t.Run("stops after a run of known offers", func(t *testing.T) {
		page := paginated(probe,
			resultPage(false, "170001W", "160001W", "160002W", "170002W"),
			resultPage(false, "170003W"),
		)
		c := newTestConnector(page)

		ids := discover(t, c, crawlstate.NewSet("160001W", "160002W"))
		assert.Equal(t, []string{"170001W"}, ids)
	})

	t.Run("stops on a page without new offers", func(t *testing.T) {
		page := paginated(probe,
			resultPage(false, "170001W"),
			resultPage(false, "170001W"),
			resultPage(false, "170009W"),
		)
		c := newTestConnector(page)

		assert.Equal(t, []string{"170001W"}, discover(t, c, crawlstate.NewSet()))
		assert.NotContains(t, page.Visited, base+"/page3")
	})

	t.Run("search failure ends quietly", func(t *testing.T) {
		page := browsertest.New(map[string]browsertest.Doc{})
		c := newTestConnector(page)

		assert.Empty(t, discover(t, c, crawlstate.NewSet()))
	})
}

const offerPage = `<html><head>
<script type="application/ld+json">{"@type":"JobPosting","title":"Data Analyst H/F",
 "hiringOrganization":{"name":"Banque Exemple"},"datePosted":"2026-01-20",
 "jobLocation":{"address":{"addressLocality":"Paris 08"}}}</script></head>
<body>
<div id="onetrust-banner">Nous utilisons des cookies pour respecter votre vie privée.</div>
<h1>Data Analyst H/F</h1>
<ul class="details-offer-list"><li>Banque Exemple</li><li>CDI</li><li>Paris 08 - 75</li><li>45 - 55 k€ brut annuel</li><li>Publiée le 20/01/2026</li></ul>
<div class="details-offer-content">Au sein de la direction data, vous construirez les tableaux de bord
Power BI et les requêtes SQL qui pilotent l'activité commerciale. Télétravail partiel possible.</div>
</body></html>`

func TestFetchDetail(t *testing.T) {
	offerURL := base + "/candidat/recherche-emploi.html/emploi/detail-offre/170001W"
	page := browsertest.New(map[string]browsertest.Doc{offerURL: {HTML: offerPage}})
	c := newTestConnector(page)

	p, err := c.FetchDetail(context.Background(), models.Link{ID: "170001W", URL: offerURL})
	require.NoError(t, err)

	assert.Equal(t, "170001W", p.ID)
	assert.Equal(t, "Data Analyst H/F", p.Title)
	assert.Equal(t, "Banque Exemple", p.Company)
	assert.Equal(t, "Paris 08", p.City)
	assert.Equal(t, "45 - 55 k€ brut annuel", p.Salary)
	assert.Contains(t, p.Description, "Power BI")
	assert.Equal(t, "2026-01-20", extract.FormatDate(p.PublishedAt))

	canonical, ok := c.Clean(*p)
	require.True(t, ok)
	assert.Equal(t, "BANQUE EXEMPLE", canonical.Company)
	assert.Equal(t, "Paris", canonical.City)
	assert.Equal(t, models.ContractCDI, canonical.Contract)
	assert.Equal(t, models.RemoteHybrid, canonical.Remote)
	require.NotNil(t, canonical.AnnualSalary)
	assert.Equal(t, 50000, *canonical.AnnualSalary)
}

func TestFetchDetailWithdrawn(t *testing.T) {
	offerURL := base + "/detail-offre/gone"
	page := browsertest.New(map[string]browsertest.Doc{offerURL: {HTML: `<html><body>
<div class="details-offer-content">Cette offre n'est plus en ligne.</div></body></html>`}})
	c := newTestConnector(page)

	_, err := c.FetchDetail(context.Background(), models.Link{URL: offerURL})
	assert.True(t, errors.Is(err, utils.ErrWithdrawn))
}

func TestProbe(t *testing.T) {
	live := base + "/detail-offre/live"
	gone := base + "/detail-offre/gone"
	broken := base + "/detail-offre/error"
	page := browsertest.New(map[string]browsertest.Doc{
		live:   {HTML: offerPage},
		gone:   {HTML: `<html><body><p>Une erreur inattendue est survenue.</p></body></html>`},
		broken: {},
	})
	page.NavErrors[broken] = errors.New("timeout")
	c := newTestConnector(page)

	tests := []struct {
		url  string
		want sources.Verdict
	}{
		{live, sources.Active},
		{gone, sources.Expired},
		{broken, sources.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, _ := c.Probe(context.Background(), models.ProbeTarget{URL: tt.url})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanRejectsNoise(t *testing.T) {
	c := newTestConnector(nil)
	long := strings.Repeat("Analyse de données et reporting. ", 5)

	tests := []struct {
		name string
		p    models.Posting
		want bool
	}{
		{"valid", models.Posting{URL: "u", Company: "ACME", Description: long}, true},
		{"cookie wall", models.Posting{URL: "u", Company: "ACME", Description: long + " Paramétrer les cookies"}, false},
		{"login page", models.Posting{URL: "u", Company: "ACME", Description: "Mot de passe oublié ? " + long}, false},
		{"short company", models.Posting{URL: "u", Company: "A", Description: long}, false},
		{"salary as company", models.Posting{URL: "u", Company: "Salaire", Description: long}, false},
		{"thin description", models.Posting{URL: "u", Company: "ACME", Description: "Trop court"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := c.Clean(tt.p)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, models.ContractCDI, got.Contract)
				assert.Equal(t, models.DefaultCity, got.City)
			}
		})
	}
}

func TestProbeChallengePageStaysUnknown(t *testing.T) {
	offerURL := base + "/detail-offre/blocked"
	page := browsertest.New(map[string]browsertest.Doc{
		offerURL: {HTML: `<html><body><script src="/cdn-cgi/challenge-platform/x.js"></script></body></html>`},
	})
	c := newTestConnector(page)

	verdict, err := c.Probe(context.Background(), models.ProbeTarget{URL: offerURL})
	assert.True(t, errors.Is(err, utils.ErrBlocked))
	assert.Equal(t, sources.Unknown, verdict)
}
