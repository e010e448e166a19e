package extract

import (
	"regexp"
	"strings"

	"pathfinder/pkg/models"
)

// ContractInput gathers every signal a source has about the contract type
type ContractInput struct {
	Title string
	Tags  string
	// Field is the explicit contract field, possibly a source code like "MIS"
	Field string
	// Default applies when nothing else carries a signal
	Default models.ContractType
}

var (
	freelanceWords = regexp.MustCompile(`\bfreelance\b|\bfree-lance\b|\bindependant\b|\bportage salarial\b|\bconsultant externe\b`)
	trainingWords  = regexp.MustCompile(`\bstage\b|\bstagiaire\b|\bintern(?:ship)?\b|\balternan(?:ce|t|te)\b|\bapprenti(?:ssage)?\b|\bcontrat pro(?:fessionnalisation)?\b|\bwork[- ]study\b`)
	interimWords   = regexp.MustCompile(`\binterim(?:aire)?\b|\bmission d'interim\b|\btemporary\b`)
	cddWords       = regexp.MustCompile(`\bcdd\b|\bfixed[- ]term\b|\bduree determinee\b`)
	cdiWords       = regexp.MustCompile(`\bcdi\b|\bpermanent\b|\bduree indeterminee\b`)
)

// contractCodes maps capitalized field values to canonical contract types.
// Source codes (MIS, LIB, DIN, SAI) and literal spellings share the table.
var contractCodes = map[string]models.ContractType{
	"Mis":                models.ContractInterim,
	"Lib":                models.ContractFreelance,
	"Din":                models.ContractCDIInterim,
	"Sai":                models.ContractCDD,
	"Cdi":                models.ContractCDI,
	"Cdd":                models.ContractCDD,
	"Interim":            models.ContractInterim,
	"Intérim":            models.ContractInterim,
	"Cdi intérimaire":    models.ContractCDIInterim,
	"Cdi interimaire":    models.ContractCDIInterim,
	"Freelance":          models.ContractFreelance,
	"Stage":              models.ContractTraining,
	"Alternance":         models.ContractTraining,
	"Apprentissage":      models.ContractTraining,
	"Stage / alternance": models.ContractTraining,
	"Nan":                models.ContractUnspecified,
	"Non spécifié":       models.ContractUnspecified,
}

// NormalizeContract maps an explicit contract field onto the canonical
// vocabulary ("cdi", "CDI" and "Cdi" all become CDI). Unknown values fall back
// to a keyword scan.
func NormalizeContract(field string) models.ContractType {
	s := CleanLabel(field)
	if s == "" {
		return models.ContractUnspecified
	}
	if ct, ok := contractCodes[capitalize(s)]; ok {
		return ct
	}
	return scanContract(Fold(s))
}

// ParseContract applies the contract precedence: a freelance keyword anywhere
// wins, then a training keyword in the title, then the explicit field, then the
// tag vocabulary with short-term contracts ahead of CDI, then the default.
func ParseContract(in ContractInput) models.ContractType {
	title := Fold(in.Title)
	tags := Fold(in.Tags)

	if freelanceWords.MatchString(title) || freelanceWords.MatchString(tags) {
		return models.ContractFreelance
	}
	if trainingWords.MatchString(title) {
		return models.ContractTraining
	}
	if ct := NormalizeContract(in.Field); ct != models.ContractUnspecified {
		return ct
	}
	if ct := scanContract(tags); ct != models.ContractUnspecified {
		return ct
	}
	if in.Default != "" {
		return in.Default
	}
	return models.ContractUnspecified
}

func scanContract(folded string) models.ContractType {
	switch {
	case folded == "":
		return models.ContractUnspecified
	case freelanceWords.MatchString(folded):
		return models.ContractFreelance
	case strings.Contains(folded, "cdi interimaire"):
		return models.ContractCDIInterim
	case interimWords.MatchString(folded):
		return models.ContractInterim
	case cddWords.MatchString(folded):
		return models.ContractCDD
	case trainingWords.MatchString(folded):
		return models.ContractTraining
	case cdiWords.MatchString(folded):
		return models.ContractCDI
	}
	return models.ContractUnspecified
}

func capitalize(s string) string {
	r := []rune(strings.ToLower(s))
	if len(r) == 0 {
		return ""
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}
