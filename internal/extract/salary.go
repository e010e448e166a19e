package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Plausible annual salary band, inclusive
const (
	MinAnnualSalary = 15000
	MaxAnnualSalary = 200000
)

const (
	monthsPerYear  = 12
	hoursPerMonth  = 151.67
	workDaysInYear = 220
)

type salaryPeriod int

const (
	periodUnknown salaryPeriod = iota
	periodAnnual
	periodMonthly
	periodHourly
	periodDaily
)

var (
	salaryHidden = []string{"non affiche", "confidentiel", "a negocier", "non specifie", "selon profil"}

	kRange  = regexp.MustCompile(`(?:^|[^\d.,])(\d{2,3})(?:[.,]\d+)?\s*k?\s*€?\s*(?:-|–|a|to)\s*(\d{2,3})(?:[.,]\d+)?\s*k\b`)
	kSingle = regexp.MustCompile(`(?:^|[^\d.,])(\d{2,3})(?:[.,]\d+)?\s*k\b`)

	paidMonths = regexp.MustCompile(`sur\s+\d+(?:[.,]\d+)?\s*mois`)
	thousands  = regexp.MustCompile(`(\d{1,3})[\s.\x{202f}](\d{3})\b`)
	number     = regexp.MustCompile(`\d+(?:\.\d+)?`)

	annualCtx  = regexp.MustCompile(`annuel|\ban\b|/\s?an\b|per year|yearly|annual`)
	monthlyCtx = regexp.MustCompile(`mensuel|par mois|/\s?mois|per month|monthly`)
	hourlyCtx  = regexp.MustCompile(`horaire|heure|/\s?h\b|hourly|per hour`)
	dailyCtx   = regexp.MustCompile(`journalier|par jour|/\s?j(?:our)?\b|\btjm\b|daily|per day`)
)

// ParseSalary estimates an annual gross salary from free text. It reports
// false when the text carries no plausible amount.
func ParseSalary(text string) (int, bool) {
	s := Fold(CleanText(text))
	if s == "" {
		return 0, false
	}
	for _, marker := range salaryHidden {
		if strings.Contains(s, marker) {
			return 0, false
		}
	}

	if m := kRange.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		return plausible((lo + hi) / 2 * 1000)
	}
	if m := kSingle.FindStringSubmatch(s); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return plausible(v * 1000)
	}

	joined := paidMonths.ReplaceAllString(s, "")
	for thousands.MatchString(joined) {
		joined = thousands.ReplaceAllString(joined, "$1$2")
	}
	joined = strings.ReplaceAll(joined, ",", ".")
	values := numbers(joined)
	if len(values) == 0 {
		return 0, false
	}

	switch detectPeriod(joined) {
	case periodAnnual:
		if v, ok := average(values, 1000, 1e7); ok {
			return plausible(v)
		}
	case periodMonthly:
		if v, ok := average(values, 300, 50000); ok {
			return plausible(v * monthsPerYear)
		}
	case periodHourly:
		if v, ok := average(values, 5, 300); ok {
			return plausible(v * hoursPerMonth * monthsPerYear)
		}
	case periodDaily:
		if v, ok := average(values, 50, 3000); ok {
			return plausible(v * workDaysInYear)
		}
	default:
		return guessSalary(values)
	}
	return 0, false
}

func detectPeriod(s string) salaryPeriod {
	switch {
	case annualCtx.MatchString(s):
		return periodAnnual
	case monthlyCtx.MatchString(s):
		return periodMonthly
	case hourlyCtx.MatchString(s):
		return periodHourly
	case dailyCtx.MatchString(s):
		return periodDaily
	}
	return periodUnknown
}

// guessSalary only trusts magnitudes: large numbers are annual, mid-sized ones
// monthly. Year-shaped numbers are never taken as salaries.
func guessSalary(values []float64) (int, bool) {
	for _, v := range values {
		if v >= 1980 && v <= 2030 {
			continue
		}
		switch {
		case v > MinAnnualSalary:
			return plausible(v)
		case v > 1200 && v < 8000:
			return plausible(v * monthsPerYear)
		}
	}
	return 0, false
}

func numbers(s string) []float64 {
	var out []float64
	for _, raw := range number.FindAllString(s, -1) {
		v, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}

// average takes the mean of the first two values inside [lo, hi]
func average(values []float64, lo, hi float64) (float64, bool) {
	var picked []float64
	for _, v := range values {
		if v >= lo && v <= hi {
			picked = append(picked, v)
			if len(picked) == 2 {
				break
			}
		}
	}
	switch len(picked) {
	case 0:
		return 0, false
	case 1:
		return picked[0], true
	}
	return (picked[0] + picked[1]) / 2, true
}

func plausible(v float64) (int, bool) {
	if v < MinAnnualSalary || v > MaxAnnualSalary {
		return 0, false
	}
	return int(v), true
}
