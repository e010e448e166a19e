package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxExperienceYears bounds plausible experience requirements
const MaxExperienceYears = 15

// experiencePatterns are tried in order; the first plausible match wins.
// They run over folded text.
var experiencePatterns = []*regexp.Regexp{
	// "expérience : 3 ans", "expérience de 5 ans minimum", "experience 2 an(s)"
	regexp.MustCompile(`(?:experience|xp)\s*(?:professionnelle\s*)?(?:requise\s*)?(?::|de|d'au moins|minimum|min\.?)?\s*(?:de\s*)?(\d{1,2})\s*\+?\s*(?:ans?|annees?|years?)(?:[^\w]|$)`),
	// "3 ans d'expérience", "5+ years of experience", "2 à 3 ans d'expérience"
	regexp.MustCompile(`(\d{1,2})\s*\+?\s*(?:ans?|annees?|years?)\s*(?:minimum\s*)?(?:d'|de\s+|of\s+)?(?:experience|xp)(?:[^\w]|$)`),
	// "minimum 3 ans", "au moins 4 ans"
	regexp.MustCompile(`(?:minimum|au moins|at least)\s*(?:de\s*)?(\d{1,2})\s*\+?\s*(?:ans?|annees?|years?)(?:[^\w]|$)`),
	// "Expérience : 3" with the unit elsewhere
	regexp.MustCompile(`experience\s*:\s*(\d{1,2})(?:[^\d]|$)`),
}

// ExperienceYears finds the required years of experience in free text
func ExperienceYears(text string) (int, bool) {
	s := strings.ReplaceAll(Fold(CleanText(text)), "’", "'")
	if s == "" {
		return 0, false
	}
	for _, re := range experiencePatterns {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			years, err := strconv.Atoi(m[1])
			if err != nil || years < 0 || years > MaxExperienceYears {
				continue
			}
			return years, true
		}
	}
	return 0, false
}
