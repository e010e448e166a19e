package models

import (
	"fmt"
	"strings"
	"time"
)

// Unspecified is the sentinel rendered for every categorical field without a signal.
// The dashboard filters on this exact string.
const Unspecified = "Non spécifié"

// DefaultCity is used when no location signal could be found.
const DefaultCity = "France / Remote"

// Source identifies the connector that produced a posting
type Source string

const (
	SourceFranceTravail Source = "France Travail"
	SourceWTTJ          Source = "Welcome to the Jungle"
	SourceAPEC          Source = "Apec"
)

// AllSources lists the sources in chain start order
var AllSources = []Source{SourceFranceTravail, SourceWTTJ, SourceAPEC}

// Slug returns the short name used on the command line and in file names
func (s Source) Slug() string {
	switch s {
	case SourceFranceTravail:
		return "francetravail"
	case SourceWTTJ:
		return "wttj"
	case SourceAPEC:
		return "apec"
	default:
		return strings.ToLower(strings.ReplaceAll(string(s), " ", "_"))
	}
}

// ParseSource resolves a slug or a display name into a Source
func ParseSource(v string) (Source, error) {
	for _, s := range AllSources {
		if strings.EqualFold(v, s.Slug()) || strings.EqualFold(v, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", v)
}

// ContractType is the canonical contract category
type ContractType string

const (
	ContractCDI         ContractType = "CDI"
	ContractCDD         ContractType = "CDD"
	ContractInterim     ContractType = "Intérim"
	ContractCDIInterim  ContractType = "CDI Intérimaire"
	ContractFreelance   ContractType = "Freelance"
	ContractTraining    ContractType = "Stage / Alternance"
	ContractUnspecified ContractType = Unspecified
)

// RemotePolicy is the canonical telework category
type RemotePolicy string

const (
	RemoteTotal       RemotePolicy = "Total"
	RemoteHybrid      RemotePolicy = "Hybride"
	RemoteOccasional  RemotePolicy = "Ponctuel"
	RemotePossible    RemotePolicy = "Possible"
	RemoteUnspecified RemotePolicy = Unspecified
)

// Level is the inferred seniority level
type Level string

const (
	LevelTraining    Level = "Stage / Alternance"
	LevelJunior      Level = "Junior"
	LevelMid         Level = "Confirmé"
	LevelSenior      Level = "Senior"
	LevelUnspecified Level = Unspecified
)

// Link is a discovered posting, the raw tier of a source
type Link struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Source       Source    `json:"source"`
	DiscoveredAt time.Time `json:"discovered_at"`

	// Prefetched carries a detail record when discovery already returned one
	Prefetched *Posting `json:"-"`
}

// Posting is an enriched detail record, still in source terms
type Posting struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	City        string     `json:"city"`
	Contract    string     `json:"contract"`
	Salary      string     `json:"salary"`
	Tags        string     `json:"tags"`
	Description string     `json:"description"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
	Source      Source     `json:"source"`
}

// CanonicalPosting is the cleaned, merged and classified representation of a posting
type CanonicalPosting struct {
	URL             string       `json:"url"`
	Title           string       `json:"title"`
	Company         string       `json:"company"`
	City            string       `json:"city"`
	Department      string       `json:"department,omitempty"`
	Description     string       `json:"description"`
	AnnualSalary    *int         `json:"annual_salary,omitempty"`
	Contract        ContractType `json:"contract"`
	Remote          RemotePolicy `json:"remote"`
	Level           Level        `json:"level"`
	TechStack       []string     `json:"tech_stack"`
	ExperienceYears *int         `json:"experience_years,omitempty"`
	PublishedAt     *time.Time   `json:"published_at,omitempty"`
	ExpiredAt       *time.Time   `json:"expired_at,omitempty"`
	Source          Source       `json:"source"`
}

// Active reports whether no expiry was recorded
func (p *CanonicalPosting) Active() bool { return p.ExpiredAt == nil }

// TechStackString renders the stack the way the canonical file stores it
func (p *CanonicalPosting) TechStackString() string {
	return strings.Join(p.TechStack, ", ")
}

// ProbeTarget is what the expiry checker hands to a source prober
type ProbeTarget struct {
	ID     string
	URL    string
	Source Source
}

// Expirable is a record the expiry checker can probe and mark
type Expirable interface {
	Target() ProbeTarget
	Expired() bool
	ExpiredOn() *time.Time
	MarkExpired(day time.Time)
	ClearExpiry()
}

func (p *Posting) Target() ProbeTarget {
	return ProbeTarget{ID: p.ID, URL: p.URL, Source: p.Source}
}
func (p *Posting) Expired() bool             { return p.ExpiredAt != nil }
func (p *Posting) ExpiredOn() *time.Time     { return p.ExpiredAt }
func (p *Posting) MarkExpired(day time.Time) { markExpired(&p.ExpiredAt, day) }
func (p *Posting) ClearExpiry()              { p.ExpiredAt = nil }

func (p *CanonicalPosting) Target() ProbeTarget {
	return ProbeTarget{URL: p.URL, Source: p.Source}
}
func (p *CanonicalPosting) Expired() bool             { return p.ExpiredAt != nil }
func (p *CanonicalPosting) ExpiredOn() *time.Time     { return p.ExpiredAt }
func (p *CanonicalPosting) MarkExpired(day time.Time) { markExpired(&p.ExpiredAt, day) }
func (p *CanonicalPosting) ClearExpiry()              { p.ExpiredAt = nil }

// markExpired never overwrites an existing expiry date
func markExpired(dst **time.Time, day time.Time) {
	if *dst != nil {
		return
	}
	d := Day(day)
	*dst = &d
}

// Day truncates t to a calendar day in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
