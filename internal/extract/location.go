package extract

import (
	"regexp"
	"strings"

	"pathfinder/pkg/models"
)

// Region is one of the three geographic salary tiers
type Region string

const (
	RegionParis Region = "paris"
	RegionMetro Region = "metro"
	RegionOther Region = "other"
)

// Location is a parsed "City - Department" value
type Location struct {
	City       string
	Department string
}

var (
	deptToken      = regexp.MustCompile(`^(?:\d{2,3}|2[ab])$`)
	deptParens     = regexp.MustCompile(`\s*\((?:\d{2,3}|2[aAbB])\)\s*$`)
	deptTrailing   = regexp.MustCompile(`\s+\d{2}$`)
	arrondissement = regexp.MustCompile(`(?i)\s+\d{1,2}\s*(?:e|er|ème|eme|è)(?:\s+arrondissement)?\b.*$`)
	cedex          = regexp.MustCompile(`(?i)\s+cedex(?:\s+\d+)?\s*$`)
)

var idfDepartments = map[string]struct{}{
	"75": {}, "77": {}, "78": {}, "91": {}, "92": {}, "93": {}, "94": {}, "95": {},
}

// ParseLocation splits the location formats seen across sources ("92 -
// Courbevoie", "Nanterre - 92", "Paris 15e (75)") into a canonical city name and
// an optional department code.
func (r *Rules) ParseLocation(raw string) Location {
	s := CleanLabel(raw)
	if s == "" {
		return Location{}
	}

	var loc Location
	if m := deptParens.FindString(s); m != "" {
		loc.Department = strings.Trim(strings.TrimSpace(m), "()")
		s = strings.TrimSpace(strings.TrimSuffix(s, m))
	}

	if strings.Contains(s, " - ") {
		var rest []string
		for _, part := range strings.Split(s, " - ") {
			part = strings.TrimSpace(part)
			if deptToken.MatchString(strings.ToLower(part)) {
				if loc.Department == "" {
					loc.Department = strings.ToUpper(part)
				}
				continue
			}
			if part != "" {
				rest = append(rest, part)
			}
		}
		if len(rest) > 0 {
			s = rest[0]
		} else {
			s = ""
		}
	}

	if m := deptTrailing.FindString(s); m != "" {
		if loc.Department == "" {
			loc.Department = strings.TrimSpace(m)
		}
		s = strings.TrimSuffix(s, m)
	}
	s = cedex.ReplaceAllString(s, "")
	s = arrondissement.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	loc.City = r.CanonicalCity(s)
	return loc
}

// CanonicalCity maps a city name onto the dictionary spelling, matching the
// longest known name the value starts with. Unknown cities are title-cased.
func (r *Rules) CanonicalCity(s string) string {
	s = CleanText(s)
	if s == "" {
		return ""
	}
	folded := Fold(s)
	for _, c := range r.cities {
		if folded == c.folded {
			return c.name
		}
	}
	for _, c := range r.cities {
		if strings.HasPrefix(folded, c.folded+" ") || strings.HasPrefix(folded, c.folded+"-") {
			return c.name
		}
	}
	if strings.ToUpper(s) == s || strings.ToLower(s) == s {
		return Title(s)
	}
	return s
}

// FindCity scans free text for a dictionary city, longest names first
func (r *Rules) FindCity(text string) (string, bool) {
	folded := Fold(text)
	if folded == "" {
		return "", false
	}
	for _, c := range r.cities {
		if c.re.MatchString(folded) {
			return c.name, true
		}
	}
	return "", false
}

// ResolveCity returns the first usable city among an explicit field and a list
// of free-text fallbacks, or the default city
func (r *Rules) ResolveCity(explicit string, fallbacks ...string) string {
	return r.ResolveLocation(explicit, fallbacks...).City
}

// ResolveLocation is ResolveCity keeping the department code of the explicit
// field, when it carries one
func (r *Rules) ResolveLocation(explicit string, fallbacks ...string) Location {
	if explicit = CleanLabel(explicit); explicit != "" && explicit != models.Unspecified {
		if loc := r.ParseLocation(explicit); loc.City != "" {
			return loc
		}
	}
	for _, text := range fallbacks {
		if city, ok := r.FindCity(text); ok {
			return Location{City: city}
		}
	}
	return Location{City: models.DefaultCity}
}

// Region places a city in one of the salary tiers
func (r *Rules) Region(city string) Region {
	return r.RegionOf(r.ParseLocation(city))
}

// RegionOf places a parsed location in one of the salary tiers. A department
// of Île-de-France wins over the city dictionary.
func (r *Rules) RegionOf(loc Location) Region {
	if _, ok := idfDepartments[strings.TrimSpace(loc.Department)]; ok {
		return RegionParis
	}
	folded := Fold(loc.City)
	if folded == "" {
		return RegionOther
	}
	if _, ok := r.parisRegion[folded]; ok {
		return RegionParis
	}
	if _, ok := r.metros[folded]; ok {
		return RegionMetro
	}
	return RegionOther
}
