package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pathfinder/internal/extract"
)

// Tier is a (junior ceiling, senior floor) pair in annual euros
type Tier struct {
	JuniorCeiling int `yaml:"junior_ceiling"`
	SeniorFloor   int `yaml:"senior_floor"`
}

// Tiers holds one salary tier per region
type Tiers struct {
	Paris Tier `yaml:"paris"`
	Metro Tier `yaml:"metro"`
	Other Tier `yaml:"other"`
}

// DefaultTiers returns the built-in salary tiers
func DefaultTiers() Tiers {
	return Tiers{
		Paris: Tier{JuniorCeiling: 40000, SeniorFloor: 60000},
		Metro: Tier{JuniorCeiling: 35000, SeniorFloor: 48000},
		Other: Tier{JuniorCeiling: 30000, SeniorFloor: 42000},
	}
}

// For returns the tier of a region
func (t Tiers) For(region extract.Region) Tier {
	switch region {
	case extract.RegionParis:
		return t.Paris
	case extract.RegionMetro:
		return t.Metro
	default:
		return t.Other
	}
}

// Validate checks that every ceiling sits below its floor
func (t Tiers) Validate() error {
	for name, tier := range map[string]Tier{"paris": t.Paris, "metro": t.Metro, "other": t.Other} {
		if tier.JuniorCeiling <= 0 || tier.SeniorFloor <= tier.JuniorCeiling {
			return fmt.Errorf("salary tier %s: junior ceiling %d must be positive and below senior floor %d",
				name, tier.JuniorCeiling, tier.SeniorFloor)
		}
	}
	return nil
}

// LoadTiers reads the salary_tiers section of a heuristics file over the
// defaults. An empty path returns the defaults.
func LoadTiers(path string) (Tiers, error) {
	tiers := DefaultTiers()
	if path == "" {
		return tiers, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tiers{}, fmt.Errorf("failed to read heuristics file: %w", err)
	}

	var file struct {
		SalaryTiers *Tiers `yaml:"salary_tiers"`
	}
	file.SalaryTiers = &tiers
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Tiers{}, fmt.Errorf("failed to parse heuristics file: %w", err)
	}

	if err := tiers.Validate(); err != nil {
		return Tiers{}, err
	}
	return tiers, nil
}
