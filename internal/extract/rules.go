package extract

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// TechPattern maps a display name to the regular expression that detects it.
// Patterns are matched case-insensitively unless CaseSensitive is set.
type TechPattern struct {
	Name          string `yaml:"name"`
	Pattern       string `yaml:"pattern"`
	CaseSensitive bool   `yaml:"case_sensitive"`
}

// Dictionaries is the data half of Rules, the part a heuristics file may override
type Dictionaries struct {
	Tech        []TechPattern `yaml:"tech"`
	Cities      []string      `yaml:"cities"`
	ParisRegion []string      `yaml:"paris_region"`
	Metros      []string      `yaml:"metros"`
}

// Rules holds the compiled heuristics. It is built once at start-up and
// shared read-only by every extractor call.
type Rules struct {
	dict Dictionaries

	tech   []compiledTech
	cities []compiledCity // longest name first

	parisRegion map[string]struct{}
	metros      map[string]struct{}
}

type compiledTech struct {
	name string
	re   *regexp.Regexp
}

type compiledCity struct {
	name   string
	folded string
	re     *regexp.Regexp
}

// DefaultDictionaries returns the built-in dictionaries
func DefaultDictionaries() Dictionaries {
	return Dictionaries{
		Tech: []TechPattern{
			{Name: "Python", Pattern: `\bpython\b`},
			{Name: "SQL", Pattern: `\bsql\b`},
			{Name: "Excel", Pattern: `\bexcel\b`},
			{Name: "Power BI", Pattern: `\bpower\s?bi\b`},
			{Name: "Tableau", Pattern: `\btableau\b`},
			{Name: "R", Pattern: `(?:^|[\s,;:(/])R(?:$|[\s,;:)/.])`, CaseSensitive: true},
			{Name: "SAS", Pattern: `\bsas\b`},
			{Name: "VBA", Pattern: `\bvba\b`},
			{Name: "AWS", Pattern: `\baws\b`},
			{Name: "Azure", Pattern: `\bazure\b`},
			{Name: "GCP", Pattern: `\bgcp\b|google\s+cloud`},
			{Name: "Spark", Pattern: `\bspark\b`},
			{Name: "Hadoop", Pattern: `\bhadoop\b`},
			{Name: "Kafka", Pattern: `\bkafka\b`},
			{Name: "Airflow", Pattern: `\bairflow\b`},
			{Name: "Snowflake", Pattern: `\bsnowflake\b`},
			{Name: "Databricks", Pattern: `\bdatabricks\b`},
			{Name: "Docker", Pattern: `\bdocker\b`},
			{Name: "Kubernetes", Pattern: `\bkubernetes\b|\bk8s\b`},
			{Name: "Git", Pattern: `\bgit\b`},
			{Name: "Linux", Pattern: `\blinux\b`},
			{Name: "Pandas", Pattern: `\bpandas\b`},
			{Name: "TensorFlow", Pattern: `\btensorflow\b`},
			{Name: "PyTorch", Pattern: `\bpytorch\b`},
			{Name: "Scikit-learn", Pattern: `scikit[\s\-]learn|\bsklearn\b`},
			{Name: "Java", Pattern: `\bjava\b`},
			{Name: "Scala", Pattern: `\bscala\b`},
			{Name: "C++", Pattern: `\bc\+\+`},
			{Name: "NoSQL", Pattern: `\bno\s?sql\b|\bmongo(?:db)?\b|\bcassandra\b`},
			{Name: "Dbt", Pattern: `\bdbt\b`},
			{Name: "Looker", Pattern: `\blooker\b`},
			{Name: "Qlik", Pattern: `\bqlik(?:\s?sense|view)?\b`},
			{Name: "BigQuery", Pattern: `\bbig\s?query\b`},
		},
		Cities: []string{
			"Paris", "Lyon", "Bordeaux", "Nantes", "Lille", "Toulouse", "Marseille",
			"Rennes", "Montpellier", "Strasbourg", "Nice", "Aix-en-Provence", "Grenoble",
			"Levallois-Perret", "Boulogne-Billancourt", "Courbevoie", "La Défense",
			"Nanterre", "Sophia Antipolis", "Issy-les-Moulineaux", "Saint-Denis",
			"Puteaux", "Neuilly-sur-Seine", "Rueil-Malmaison", "Montrouge", "Massy",
			"Saint-Ouen", "Clichy", "Vincennes", "Versailles", "Guyancourt",
			"Clermont-Ferrand", "Tours", "Rouen", "Orléans", "Dijon", "Angers",
			"Le Mans", "Reims", "Caen", "Brest", "Metz", "Nancy", "Amiens", "Limoges",
			"Toulon", "Pau", "Mulhouse", "Valence", "Annecy", "Niort", "Poitiers",
		},
		ParisRegion: []string{
			"Paris", "La Défense", "Courbevoie", "Puteaux", "Nanterre", "Levallois-Perret",
			"Boulogne-Billancourt", "Issy-les-Moulineaux", "Saint-Denis", "Neuilly-sur-Seine",
			"Rueil-Malmaison", "Montrouge", "Massy", "Saint-Ouen", "Clichy", "Vincennes",
			"Versailles", "Guyancourt", "Île-de-France",
		},
		Metros: []string{
			"Lyon", "Marseille", "Toulouse", "Bordeaux", "Lille", "Nantes", "Nice",
			"Strasbourg", "Montpellier", "Rennes", "Grenoble", "Aix-en-Provence",
			"Sophia Antipolis",
		},
	}
}

// NewRules compiles a set of dictionaries
func NewRules(dict Dictionaries) (*Rules, error) {
	r := &Rules{
		dict:        dict,
		parisRegion: foldedSet(dict.ParisRegion),
		metros:      foldedSet(dict.Metros),
	}

	for _, t := range dict.Tech {
		pattern := t.Pattern
		if !t.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("tech pattern %q: %w", t.Name, err)
		}
		r.tech = append(r.tech, compiledTech{name: t.Name, re: re})
	}

	for _, c := range dict.Cities {
		folded := Fold(c)
		r.cities = append(r.cities, compiledCity{
			name:   c,
			folded: folded,
			re:     regexp.MustCompile(`(?:^|[^a-z])` + regexp.QuoteMeta(folded) + `(?:$|[^a-z])`),
		})
	}
	sort.SliceStable(r.cities, func(i, j int) bool {
		return len(r.cities[i].folded) > len(r.cities[j].folded)
	})

	return r, nil
}

// DefaultRules compiles the built-in dictionaries
func DefaultRules() *Rules {
	r, err := NewRules(DefaultDictionaries())
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRules compiles the built-in dictionaries, replacing every list the
// heuristics file at path provides. An empty path returns the defaults.
func LoadRules(path string) (*Rules, error) {
	dict := DefaultDictionaries()
	if path == "" {
		return NewRules(dict)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read heuristics file: %w", err)
	}

	var override Dictionaries
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse heuristics file: %w", err)
	}

	if len(override.Tech) > 0 {
		dict.Tech = override.Tech
	}
	if len(override.Cities) > 0 {
		dict.Cities = override.Cities
	}
	if len(override.ParisRegion) > 0 {
		dict.ParisRegion = override.ParisRegion
	}
	if len(override.Metros) > 0 {
		dict.Metros = override.Metros
	}

	return NewRules(dict)
}

// Dictionaries returns a copy of the source dictionaries
func (r *Rules) Dictionaries() Dictionaries {
	d := r.dict
	d.Tech = append([]TechPattern(nil), r.dict.Tech...)
	d.Cities = append([]string(nil), r.dict.Cities...)
	d.ParisRegion = append([]string(nil), r.dict.ParisRegion...)
	d.Metros = append([]string(nil), r.dict.Metros...)
	return d
}

func foldedSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[Fold(v)] = struct{}{}
	}
	return set
}
