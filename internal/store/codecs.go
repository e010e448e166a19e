package store

import (
	"strconv"
	"time"

	"pathfinder/internal/extract"
	"pathfinder/pkg/models"
)

// Canonical column names, shared with the dashboard
const (
	ColTitle       = "Titre"
	ColCompany     = "Entreprise"
	ColCity        = "Ville"
	ColDepartment  = "Departement"
	ColSalary      = "Salaire_Annuel"
	ColContract    = "Type_Contrat"
	ColRemote      = "Teletravail"
	ColLevel       = "Niveau"
	ColTechStack   = "Tech_Stack"
	ColExperience  = "Experience_Annees"
	ColPublishedAt = "Date_Publication"
	ColExpiredAt   = "Date_Expiration"
	ColSource      = "Source"
	ColURL         = "URL"
	ColDescription = "Description"
)

// LinkCodec encodes the raw tier
var LinkCodec = Codec[models.Link]{
	Columns: []string{"ID", ColURL, ColSource, "Date_Decouverte"},
	Encode: func(l models.Link) []string {
		return []string{l.ID, l.URL, string(l.Source), l.DiscoveredAt.UTC().Format(time.RFC3339)}
	},
	Decode: func(r Row) models.Link {
		l := models.Link{ID: r.Get("ID"), URL: r.Get(ColURL), Source: models.Source(r.Get(ColSource))}
		if t, err := time.Parse(time.RFC3339, r.Get("Date_Decouverte")); err == nil {
			l.DiscoveredAt = t
		}
		return l
	},
}

// PostingCodec encodes the enriched tier
var PostingCodec = Codec[models.Posting]{
	Columns: []string{
		"ID", ColTitle, ColCompany, ColCity, ColContract, "Salaire", "Tags",
		ColDescription, ColPublishedAt, ColExpiredAt, ColSource, ColURL,
	},
	Encode: func(p models.Posting) []string {
		return []string{
			p.ID, p.Title, p.Company, p.City, p.Contract, p.Salary, p.Tags,
			p.Description, extract.FormatDate(p.PublishedAt), extract.FormatDate(p.ExpiredAt),
			string(p.Source), p.URL,
		}
	},
	Decode: func(r Row) models.Posting {
		return models.Posting{
			ID:          r.Get("ID"),
			Title:       r.Get(ColTitle),
			Company:     r.Get(ColCompany),
			City:        r.Get(ColCity),
			Contract:    r.Get(ColContract),
			Salary:      r.Get("Salaire"),
			Tags:        r.Get("Tags"),
			Description: r.Get(ColDescription),
			PublishedAt: extract.ParseDatePtr(r.Get(ColPublishedAt)),
			ExpiredAt:   extract.ParseDatePtr(r.Get(ColExpiredAt)),
			Source:      models.Source(r.Get(ColSource)),
			URL:         r.Get(ColURL),
		}
	},
}

// CanonicalCodec encodes the clean tiers and the merged table
var CanonicalCodec = Codec[models.CanonicalPosting]{
	Columns: []string{
		ColTitle, ColCompany, ColCity, ColSalary, ColContract, ColRemote, ColLevel,
		ColTechStack, ColExperience, ColPublishedAt, ColExpiredAt, ColSource, ColURL, ColDescription,
		ColDepartment,
	},
	Encode: func(p models.CanonicalPosting) []string {
		return []string{
			p.Title, p.Company, p.City, formatInt(p.AnnualSalary), string(p.Contract),
			string(p.Remote), string(p.Level), p.TechStackString(), formatInt(p.ExperienceYears),
			extract.FormatDate(p.PublishedAt), extract.FormatDate(p.ExpiredAt),
			string(p.Source), p.URL, p.Description, p.Department,
		}
	},
	Decode: func(r Row) models.CanonicalPosting {
		return models.CanonicalPosting{
			Title:           r.Get(ColTitle),
			Company:         r.Get(ColCompany),
			City:            r.Get(ColCity),
			Department:      r.Get(ColDepartment),
			AnnualSalary:    parseInt(r.Get(ColSalary)),
			Contract:        models.ContractType(orUnspecified(r.Get(ColContract))),
			Remote:          models.RemotePolicy(orUnspecified(r.Get(ColRemote))),
			Level:           models.Level(orUnspecified(r.Get(ColLevel))),
			TechStack:       extract.SplitStack(r.Get(ColTechStack)),
			ExperienceYears: parseInt(r.Get(ColExperience)),
			PublishedAt:     extract.ParseDatePtr(r.Get(ColPublishedAt)),
			ExpiredAt:       extract.ParseDatePtr(r.Get(ColExpiredAt)),
			Source:          models.Source(r.Get(ColSource)),
			URL:             r.Get(ColURL),
			Description:     r.Get(ColDescription),
		}
	},
}

func orUnspecified(s string) string {
	return extract.OrUnspecified(s, models.Unspecified)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// parseInt accepts integers written as floats ("45000.0"), which is how a
// nullable integer column often comes back from other tools
func parseInt(s string) *int {
	if s == "" {
		return nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return &v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int(f)
	return &v
}
