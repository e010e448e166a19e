package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTechStack(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name  string
		texts []string
		want  []string
	}{
		{name: "dictionary order", texts: []string{"Maîtrise de Python et SQL, Java exclu"}, want: []string{"Python", "SQL", "Java"}},
		{name: "power bi spacing", texts: []string{"Dashboards PowerBI et Power BI"}, want: []string{"Power BI"}},
		{name: "R needs a standalone capital", texts: []string{"Equipe R&D, pas de r ici"}, want: nil},
		{name: "R language", texts: []string{"Langages : R, Python"}, want: []string{"Python", "R"}},
		{name: "javascript is not java", texts: []string{"JavaScript front"}, want: nil},
		{name: "aliases", texts: []string{"k8s, sklearn, MongoDB, Google Cloud"}, want: []string{"GCP", "Kubernetes", "Scikit-learn", "NoSQL"}},
		{name: "across texts", texts: []string{"Data Engineer Spark", "Airflow et dbt"}, want: []string{"Spark", "Airflow", "Dbt"}},
		{name: "empty", texts: []string{"", " "}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.TechStack(tt.texts...))
		})
	}
}

func TestSplitStack(t *testing.T) {
	assert.Equal(t, []string{"Python", "SQL"}, SplitStack("Python, SQL"))
	assert.Nil(t, SplitStack("nan"))
	assert.Nil(t, SplitStack(""))
}

func TestExperienceYears(t *testing.T) {
	tests := []struct {
		text   string
		want   int
		wantOK bool
	}{
		{text: "Vous avez 3 ans d'expérience en analyse", want: 3, wantOK: true},
		{text: "Expérience : 5 ans minimum", want: 5, wantOK: true},
		{text: "Expérience de 2 ans requise", want: 2, wantOK: true},
		{text: "5+ years of experience with SQL", want: 5, wantOK: true},
		{text: "minimum 4 ans sur un poste similaire", want: 4, wantOK: true},
		{text: "Expérience : 7", want: 7, wantOK: true},
		{text: "Première expérience réussie", wantOK: false},
		{text: "Entreprise fondée il y a 100 ans, 20 ans d'expérience du groupe", wantOK: false},
		{text: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ExperienceYears(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2026-01-13T14:48:00.000Z",
		"2026-01-13T14:48:00Z",
		"2026-01-13T14:48:00+01:00",
		"2026-01-13 14:48:00",
		"2026-01-13",
		"13/01/2026",
		"Publiée le 13/01/2026",
	} {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseDate("nan")
	assert.False(t, ok)
	_, ok = ParseDate("hier")
	assert.False(t, ok)

	assert.Equal(t, "2026-01-13", FormatDate(&want))
	assert.Equal(t, "", FormatDate(nil))
	assert.Equal(t, "2026-01-13", TrimDate("2026-01-13T14:48:00Z"))
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "ile-de-france", Fold("Île-de-France"))
	assert.Equal(t, "a b c", CleanText("  a \n b \tc "))
	assert.Equal(t, "", Nullable(" NaN "))
	assert.Equal(t, "ACME", CleanLabel(` "ACME" `))
	assert.Equal(t, "Courbevoie", Title("COURBEVOIE"))
	assert.Equal(t, "abc", Truncate("abcdef", 3))
}
