package sources

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathfinder/internal/browser"
	"pathfinder/internal/browser/browsertest"
	"pathfinder/pkg/models"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestJobPosting(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{"@type":"Organization","name":"ACME"}</script>
<script type="application/ld+json">{"@graph":[{"@type":"WebPage"},{"@type":"JobPosting","title":"Data Analyst",
 "jobLocation":[{"address":{"addressLocality":"Lyon"}}],"datePosted":"2026-01-13"}]}</script>
</head><body></body></html>`

	job, ok := JobPosting(doc(t, html))
	require.True(t, ok)
	assert.Equal(t, "Data Analyst", job.Get("title").String())
	assert.Equal(t, "Lyon", Locality(job))

	_, ok = JobPosting(doc(t, `<html><script type="application/ld+json">not json</script></html>`))
	assert.False(t, ok)
}

func TestTextHelpers(t *testing.T) {
	d := doc(t, `<html><body><script>var x = 1;</script>
<section>court</section>
<section>Un bloc nettement plus long qui décrit le poste</section>
<section>Gérer vos cookies et votre vie privée, un bloc encore plus long que les autres</section>
<ul><li>CDI</li><li> Paris </li><li>CDI</li><li></li></ul>
</body></html>`)

	assert.Equal(t, "Un bloc nettement plus long qui décrit le poste",
		LongestBlock(d.Find("section"), 15000, []string{"cookies"}))
	assert.Equal(t, "CDI | Paris", JoinItems(d.Find("li")))
	assert.NotContains(t, VisibleText(d), "var x")
	assert.True(t, ContainsAny("Cette offre n’est plus disponible", []string{"cette offre n'est plus disponible"}))
	assert.True(t, ContainsAny("Offre clôturée", []string{"offre cloturee"}))
	assert.False(t, ContainsAny("Offre en ligne", []string{"archivée"}))
}

type stubSource struct{ Source }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(models.SourceAPEC, func(Deps) (Source, error) { return stubSource{}, nil })

	s, err := r.Build(models.SourceAPEC, Deps{})
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = r.Build(models.SourceWTTJ, Deps{})
	assert.Error(t, err)
	assert.Equal(t, []string{"apec"}, r.Supported())
}

func TestDuplicateGuard(t *testing.T) {
	g := NewDuplicateGuard(3)
	assert.False(t, g.Known())
	assert.False(t, g.Known())
	g.Fresh()
	assert.False(t, g.Known())
	assert.False(t, g.Known())
	assert.True(t, g.Known())

	unlimited := NewDuplicateGuard(0)
	for i := 0; i < 100; i++ {
		assert.False(t, unlimited.Known())
	}
}

func TestTabReusesAndReopens(t *testing.T) {
	opened := 0
	var pages []*browsertest.Page
	tab := NewTab(func(context.Context) (browser.Page, error) {
		opened++
		p := browsertest.New(nil)
		pages = append(pages, p)
		return p, nil
	})

	first, err := tab.Page(context.Background())
	require.NoError(t, err)
	again, err := tab.Page(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, opened)

	tab.Reset()
	assert.True(t, pages[0].Closed)

	_, err = tab.Page(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, opened)

	require.NoError(t, tab.Close())
	assert.True(t, pages[1].Closed)
	require.NoError(t, tab.Close())
}

func TestTabOpenError(t *testing.T) {
	boom := errors.New("no browser")
	tab := NewTab(func(context.Context) (browser.Page, error) { return nil, boom })

	_, err := tab.Page(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, tab.Close())
}
