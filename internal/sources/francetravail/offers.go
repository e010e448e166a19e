package francetravail

import (
	"strings"

	"pathfinder/internal/extract"
	"pathfinder/pkg/models"
)

const (
	defaultCompany = "Confidentiel"
	defaultSalary  = "Non affiché"
)

type searchResponse struct {
	Results []offer `json:"resultats"`
}

type offer struct {
	ID               string `json:"id"`
	Title            string `json:"intitule"`
	Description      string `json:"description"`
	CreatedAt        string `json:"dateCreation"`
	UpdatedAt        string `json:"dateActualisation"`
	ContractCode     string `json:"typeContrat"`
	ContractLabel    string `json:"typeContratLibelle"`
	ExperienceLabel  string `json:"experienceLibelle"`
	WorkingTimeLabel string `json:"dureeTravailLibelle"`
	Apprenticeship   bool   `json:"alternance"`
	WorkPlace        struct {
		Label string `json:"libelle"`
	} `json:"lieuTravail"`
	Company struct {
		Name string `json:"nom"`
	} `json:"entreprise"`
	Salary struct {
		Label string `json:"libelle"`
	} `json:"salaire"`
	Origin struct {
		URL string `json:"urlOrigine"`
	} `json:"origineOffre"`
}

// tags flattens the labelled attributes into the " | " list the cleaners read
func (o offer) tags() string {
	var items []string
	if o.ExperienceLabel != "" {
		items = append(items, "Expérience : "+o.ExperienceLabel)
	}
	if o.ContractLabel != "" {
		items = append(items, o.ContractLabel)
	}
	if o.WorkingTimeLabel != "" {
		items = append(items, o.WorkingTimeLabel)
	}
	if o.Apprenticeship {
		items = append(items, "Alternance")
	}
	return strings.Join(items, " | ")
}

func (o offer) posting(webURL string) *models.Posting {
	company := o.Company.Name
	if company == "" {
		company = defaultCompany
	}
	salary := o.Salary.Label
	if salary == "" {
		salary = defaultSalary
	}

	return &models.Posting{
		ID:          o.ID,
		URL:         detailURL(webURL, o.ID),
		Title:       o.Title,
		Company:     company,
		City:        o.WorkPlace.Label,
		Contract:    o.ContractCode,
		Salary:      salary,
		Tags:        o.tags(),
		Description: o.Description,
		PublishedAt: extract.ParseDatePtr(o.CreatedAt),
		Source:      models.SourceFranceTravail,
	}
}

func detailURL(webURL, id string) string {
	return strings.TrimRight(webURL, "/") + "/" + id
}

// offerID recovers the identifier from a record, falling back to the segment
// after "detail/" in its URL
func offerID(target models.ProbeTarget) string {
	if target.ID != "" {
		return target.ID
	}
	_, after, ok := strings.Cut(target.URL, "detail/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(after, "/")
	id, _, _ = strings.Cut(id, "?")
	return id
}
