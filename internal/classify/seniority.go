// Package classify infers the seniority level of a canonical posting.
package classify

import (
	"regexp"

	"pathfinder/internal/extract"
	"pathfinder/pkg/models"
)

var (
	seniorTitle = regexp.MustCompile(`\bsenior\b|\bsr\b|\blead\b|\bmanager\b|\bdirector\b|\bdirect(?:eur|rice)\b|\bhead of\b|\bexpert\b|\bprincipal\b|\bvp\b|\bchef\b`)
	juniorTitle = regexp.MustCompile(`\bjunior\b|\bjr\b|\bdebutant(?:e)?\b|\bassistant(?:e)?\b|\bgraduate\b`)
	midTitle    = regexp.MustCompile(`\bconfirme(?:e)?\b`)
)

// Input is what the seniority rules look at
type Input struct {
	Title           string
	City            string
	Department      string
	Contract        models.ContractType
	AnnualSalary    *int
	ExperienceYears *int
}

// Engine applies the seniority rules and the enrichment that feeds them.
// It is safe for concurrent use.
type Engine struct {
	rules *extract.Rules
	tiers Tiers
}

// NewEngine creates a classification engine
func NewEngine(rules *extract.Rules, tiers Tiers) *Engine {
	return &Engine{rules: rules, tiers: tiers}
}

// Level applies the precedence: experience years, training contract, title
// keywords, geography-aware salary, then the no-salary fallbacks.
func (e *Engine) Level(in Input) models.Level {
	if in.ExperienceYears != nil {
		switch years := *in.ExperienceYears; {
		case years > 5:
			return models.LevelSenior
		case years > 2:
			return models.LevelMid
		}
	}

	if in.Contract == models.ContractTraining {
		return models.LevelTraining
	}

	title := extract.Fold(in.Title)
	if seniorTitle.MatchString(title) {
		return models.LevelSenior
	}

	if in.AnnualSalary != nil {
		tier := e.tiers.For(e.region(in))
		switch salary := *in.AnnualSalary; {
		case salary <= tier.JuniorCeiling:
			return models.LevelJunior
		case salary >= tier.SeniorFloor:
			return models.LevelSenior
		default:
			return models.LevelMid
		}
	}

	switch {
	case in.ExperienceYears != nil && *in.ExperienceYears <= 2:
		return models.LevelJunior
	case juniorTitle.MatchString(title):
		return models.LevelJunior
	case midTitle.MatchString(title):
		return models.LevelMid
	}
	return models.LevelUnspecified
}

// Apply fills the derived fields of p: experience years when missing, the
// tech stack and finally the level.
func (e *Engine) Apply(p *models.CanonicalPosting) {
	if p.ExperienceYears == nil {
		if years, ok := extract.ExperienceYears(p.Title + " " + p.Description); ok {
			p.ExperienceYears = &years
		}
	}

	p.TechStack = e.rules.TechStack(p.Title, p.Description)

	p.Level = e.Level(Input{
		Title:           p.Title,
		City:            p.City,
		Department:      p.Department,
		Contract:        p.Contract,
		AnnualSalary:    p.AnnualSalary,
		ExperienceYears: p.ExperienceYears,
	})
}

func (e *Engine) region(in Input) extract.Region {
	loc := e.rules.ParseLocation(in.City)
	if loc.Department == "" {
		loc.Department = in.Department
	}
	return e.rules.RegionOf(loc)
}
