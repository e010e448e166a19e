package wttj

import (
	"context"
	"errors"
	"testing"
	"time"

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

const base = "https://wttj.test"

func listingPage(hrefs ...string) string {
	html := `<html><body><nav><a href="/fr/companies">Entreprises</a></nav><ul>`
	for _, h := range hrefs {
		html += `<li><a href="` + h + `"><h4>Data Analyst</h4></a></li>`
	}
	return html + `</ul><a href="/fr/companies/acme/jobs/empty"></a></body></html>`
}

const detailPage = `<html><head>
<title>Data Analyst - ACME</title>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"JobPosting",
 "title":"Data Analyst Senior","datePosted":"2026-02-03T09:00:00Z",
 "jobLocation":{"@type":"Place","address":{"addressLocality":"Lyon"}}}</script>
</head><body>
<main>
<h1>Data Analyst Senior</h1>
<ul><li>CDI</li><li>Lyon</li><li>Salaire : 45K à 55K €</li><li>Télétravail fréquent</li><li>Expérience : &gt; 5 ans</li></ul>
<section>Vous travaillerez avec Python, SQL et Tableau au sein de l'équipe data.</section>
</main>
</body></html>`

func newTestConnector(page *browsertest.Page) *Connector {
	c := NewConnector(page.Opener(), Options{
		BaseURL:            base,
		Query:              "data analyst",
		MaxPages:           5,
		Scrolls:            4,
		DuplicateTolerance: 3,
		FlushEvery:         10,
	}, extract.DefaultRules(), logging.NewNopLogger())
	c.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return c
}

func collect(t *testing.T, c *Connector, known *crawlstate.Set) []models.Link {
	t.Helper()
	var links []models.Link
	for link, err := range c.Discover(context.Background(), known) {
		require.NoError(t, err)
		links = append(links, link)
	}
	return links
}

func TestDiscoverStopsOnPageWithoutNewLinks(t *testing.T) {
	c := newTestConnector(nil)
	page := browsertest.New(map[string]browsertest.Doc{
		c.listingURL(1): {HTML: listingPage("/fr/companies/acme/jobs/data-analyst_paris", "/fr/companies/beta/jobs/bi-analyst_lyon?q=1")},
		c.listingURL(2): {HTML: listingPage("/fr/companies/acme/jobs/data-analyst_paris", "/fr/companies/gamma/jobs/analyste_nantes")},
		c.listingURL(3): {HTML: listingPage("/fr/companies/gamma/jobs/analyste_nantes")},
		c.listingURL(4): {HTML: listingPage("/fr/companies/delta/jobs/never-reached")},
	})
	c = newTestConnector(page)

	links := collect(t, c, crawlstate.NewSet())

	var ids []string
	for _, l := range links {
		ids = append(ids, l.ID)
		assert.Equal(t, models.SourceWTTJ, l.Source)
	}
	assert.Equal(t, []string{"data-analyst_paris", "bi-analyst_lyon", "analyste_nantes"}, ids)
	assert.Equal(t, base+"/fr/companies/acme/jobs/data-analyst_paris", links[0].URL)
	assert.NotContains(t, page.Visited, c.listingURL(4))
	assert.Equal(t, 12, page.Scrolls)
}

func TestDiscoverStopsAfterKnownRun(t *testing.T) {
	c := newTestConnector(nil)
	page := browsertest.New(map[string]browsertest.Doc{
		c.listingURL(1): {HTML: listingPage(
			"/fr/companies/a/jobs/k1", "/fr/companies/a/jobs/k2", "/fr/companies/a/jobs/k3",
			"/fr/companies/a/jobs/new-after-known",
		)},
	})
	c = newTestConnector(page)

	links := collect(t, c, crawlstate.NewSet("k1", "k2", "k3"))
	assert.Empty(t, links)
}

func TestDiscoverListingFailureEndsQuietly(t *testing.T) {
	page := browsertest.New(map[string]browsertest.Doc{})
	c := newTestConnector(page)

	links := collect(t, c, crawlstate.NewSet())
	assert.Empty(t, links)
	assert.True(t, page.Closed)
}

func TestFetchDetail(t *testing.T) {
	jobURL := base + "/fr/companies/acme-data/jobs/data-analyst_lyon"
	page := browsertest.New(map[string]browsertest.Doc{jobURL: {HTML: detailPage, Title: "Data Analyst - ACME"}})
	c := newTestConnector(page)

	p, err := c.FetchDetail(context.Background(), models.Link{ID: "data-analyst_lyon", URL: jobURL})
	require.NoError(t, err)

	assert.Equal(t, "data-analyst_lyon", p.ID)
	assert.Equal(t, "Data Analyst Senior", p.Title)
	assert.Equal(t, "ACME DATA", p.Company)
	assert.Equal(t, "Lyon", p.City)
	assert.Equal(t, "Salaire : 45K à 55K €", p.Salary)
	assert.Contains(t, p.Tags, "CDI | Lyon")
	assert.Contains(t, p.Description, "Python, SQL et Tableau")
	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, "2026-02-03", extract.FormatDate(p.PublishedAt))

	canonical, ok := c.Clean(*p)
	require.True(t, ok)
	assert.Equal(t, models.ContractCDI, canonical.Contract)
	assert.Equal(t, models.RemoteHybrid, canonical.Remote)
	assert.Equal(t, "Lyon", canonical.City)
	require.NotNil(t, canonical.AnnualSalary)
	assert.Equal(t, 50000, *canonical.AnnualSalary)
}

func TestFetchDetailWithdrawn(t *testing.T) {
	jobURL := base + "/fr/companies/acme/jobs/gone"
	page := browsertest.New(map[string]browsertest.Doc{
		jobURL: {HTML: `<html><body><span>Cette offre n’est plus disponible</span></body></html>`},
	})
	c := newTestConnector(page)

	_, err := c.FetchDetail(context.Background(), models.Link{ID: "gone", URL: jobURL})
	assert.True(t, errors.Is(err, utils.ErrWithdrawn))
}

func TestProbe(t *testing.T) {
	live := base + "/fr/companies/acme/jobs/data-analyst-confirme_paris_ACME_abcd"
	redirected := base + "/fr/companies/acme/jobs/old-offer_paris_ACME_efgh"
	archived := base + "/fr/companies/acme/jobs/archived"
	notFound := base + "/fr/companies/acme/jobs/missing"
	sameCompany := base + "/fr/companies/acme/jobs/moved"
	blankTab := base + "/fr/companies/acme/jobs/blank-tab_paris_ACME_ijkl"

	page := browsertest.New(map[string]browsertest.Doc{
		live:        {HTML: detailPage},
		redirected:  {HTML: `<html><body>ACME</body></html>`, FinalURL: base + "/fr/companies/acme"},
		archived:    {HTML: `<html><body><p>Offre archivée</p></body></html>`},
		notFound:    {HTML: `<html><body></body></html>`, Title: "404 - Welcome to the Jungle"},
		sameCompany: {HTML: detailPage, FinalURL: base + "/fr/companies/acme/jobs"},
		blankTab:    {HTML: `<html><body></body></html>`, FinalURL: "about:blank"},
	})
	page.NavErrors[base+"/broken"] = errors.New("net::ERR_TIMED_OUT")
	page.Docs[base+"/broken"] = browsertest.Doc{}
	c := newTestConnector(page)

	tests := []struct {
		name    string
		url     string
		want    sources.Verdict
		wantErr bool
	}{
		{"live page", live, sources.Active, false},
		{"redirect to company page", redirected, sources.Expired, false},
		{"archived phrase", archived, sources.Expired, false},
		{"404 title", notFound, sources.Expired, false},
		{"redirect keeping jobs segment", sameCompany, sources.Active, false},
		{"blank tab", blankTab, sources.Active, false},
		{"navigation error", base + "/broken", sources.Unknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Probe(context.Background(), models.ProbeTarget{URL: tt.url})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanDefaults(t *testing.T) {
	c := newTestConnector(browsertest.New(nil))

	got, ok := c.Clean(models.Posting{
		URL:         base + "/fr/companies/x/jobs/y",
		Title:       "Stage Data Analyst",
		Company:     "x corp",
		City:        models.Unspecified,
		Tags:        "Stage | Télétravail total",
		Description: "Basé à Bordeaux, vous rejoindrez l'équipe.",
	})
	require.True(t, ok)
	assert.Equal(t, "X CORP", got.Company)
	assert.Equal(t, "Bordeaux", got.City)
	assert.Equal(t, models.ContractTraining, got.Contract)
	assert.Equal(t, models.RemoteTotal, got.Remote)
	assert.Nil(t, got.AnnualSalary)
	require.NotNil(t, got.PublishedAt)
	assert.Equal(t, "2026-03-01", extract.FormatDate(got.PublishedAt))

	_, ok = c.Clean(models.Posting{})
	assert.False(t, ok)
}

func TestFetchDetailChallengePage(t *testing.T) {
	jobURL := base + "/fr/companies/acme/jobs/blocked"
	page := browsertest.New(map[string]browsertest.Doc{
		jobURL: {HTML: `<html><head><title>Just a moment...</title></head><body></body></html>`},
	})
	c := newTestConnector(page)

	_, err := c.FetchDetail(context.Background(), models.Link{ID: "blocked", URL: jobURL})
	assert.True(t, errors.Is(err, utils.ErrBlocked))
	assert.False(t, errors.Is(err, utils.ErrWithdrawn))

	verdict, err := c.Probe(context.Background(), models.ProbeTarget{URL: jobURL})
	assert.Error(t, err)
	assert.Equal(t, sources.Unknown, verdict)
}

func TestIsExpiredRedirect(t *testing.T) {
	requested := base + "/fr/companies/acme/jobs/data-analyst-confirme_paris_ACME_abcd"

	tests := []struct {
		name  string
		final string
		want  bool
	}{
		{"company page", base + "/fr/companies/acme", true},
		{"same page", requested, false},
		{"empty", "", false},
		{"blank tab", "about:blank", false},
		{"other host", "https://consent.example/", false},
		{"relative", "/fr", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isExpired(requested, tt.final, "", "<html><body></body></html>"))
		})
	}
}
