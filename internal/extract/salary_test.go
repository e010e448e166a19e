package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSalary(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   int
		wantOK bool
	}{
		{name: "france travail annual range", input: "Annuel de 40000.0 Euros à 50000.0 Euros sur 12.0 mois", want: 45000, wantOK: true},
		{name: "france travail monthly", input: "Mensuel de 2500.0 Euros sur 12.0 mois", want: 30000, wantOK: true},
		{name: "hourly smic", input: "Horaire de 11.65 Euros sur 12 mois", want: 21203, wantOK: true},
		{name: "daily rate", input: "TJM 400 € / jour", want: 88000, wantOK: true},
		{name: "k range", input: "Salaire : 40K à 50K €", want: 45000, wantOK: true},
		{name: "k range with dash", input: "35 - 45 k€", want: 40000, wantOK: true},
		{name: "k single", input: "A partir de 42 k€ brut", want: 42000, wantOK: true},
		{name: "spaced thousands", input: "entre 38 000 et 42 000 € par an", want: 40000, wantOK: true},
		{name: "guessed annual", input: "52000 €", want: 52000, wantOK: true},
		{name: "guessed monthly", input: "2800 € brut", want: 33600, wantOK: true},
		{name: "year shaped guess rejected", input: "Poste ouvert en 2025", wantOK: false},
		{name: "too low", input: "Mensuel de 500 Euros", wantOK: false},
		{name: "too high", input: "450k€", wantOK: false},
		{name: "k suffix on a year", input: "2025 k€", wantOK: false},
		{name: "k suffix on a large budget", input: "Budget 1150k€", wantOK: false},
		{name: "k range ending in a year", input: "Prime 2025k€ sur objectifs", wantOK: false},
		{name: "hidden", input: "Non affiché", wantOK: false},
		{name: "confidential", input: "Confidentiel", wantOK: false},
		{name: "negotiable", input: "A négocier", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSalary(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseSalaryStaysInBand(t *testing.T) {
	inputs := []string{
		"1999", "2030", "1980 €", "Mensuel de 1990 Euros", "999999 €", "15 k", "201k",
		"Annuel de 14999 Euros", "Horaire de 300 Euros", "8000 €", "12 €",
		"2025 k€", "Budget 1150k€", "Prime 2025k€ sur objectifs", "1.150k€",
	}
	for _, in := range inputs {
		got, ok := ParseSalary(in)
		if !ok {
			continue
		}
		assert.GreaterOrEqual(t, got, MinAnnualSalary, in)
		assert.LessOrEqual(t, got, MaxAnnualSalary, in)
		assert.False(t, got >= 1980 && got <= 2030, in)
	}
}
