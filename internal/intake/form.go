// Package intake turns authoring-surface input (delimited form fields,
// JSON/YAML files, free text) into structured disclosures.
package intake

import (
	"strings"
	"time"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
)

// FormInput is the flat, delimiter-joined shape used by forms and tool
// calls. Inventors are comma separated; every other list is semicolon
// separated.
type FormInput struct {
	Title                 string `json:"title"`
	PatentType            string `json:"patent_type,omitempty"`
	Inventors             string `json:"inventors"`
	ApplicantName         string `json:"applicant_name"`
	ApplicantAddress      string `json:"applicant_address,omitempty"`
	ContactPerson         string `json:"contact_person,omitempty"`
	ContactEmail          string `json:"contact_email,omitempty"`
	ContactPhone          string `json:"contact_phone,omitempty"`
	TechnicalField        string `json:"technical_field"`
	BackgroundDescription string `json:"background_description"`
	TechnicalProblems     string `json:"technical_problems"`
	TechnicalSolution     string `json:"technical_solution"`
	KeySteps              string `json:"key_steps,omitempty"`
	InnovationPoints      string `json:"innovation_points,omitempty"`
	BeneficialEffects     string `json:"beneficial_effects"`
	Embodiments           string `json:"embodiments,omitempty"`
	FigureDescriptions    string `json:"figure_descriptions,omitempty"`
	PriorArtReferences    string `json:"prior_art_references,omitempty"`
	Keywords              string `json:"keywords,omitempty"`
	AdditionalNotes       string `json:"additional_notes,omitempty"`
}

// ParseForm builds a draft disclosure from form input. The technical
// problem text becomes a single problem and the solution text becomes the
// overview. An empty solution leaves the solution absent so the validator
// reports it.
func ParseForm(in FormInput, now time.Time) *disclosure.Disclosure {
	d := &disclosure.Disclosure{
		Title:                 strings.TrimSpace(in.Title),
		PatentType:            disclosure.ParsePatentType(in.PatentType),
		Inventors:             SplitInventors(in.Inventors),
		ApplicantName:         strings.TrimSpace(in.ApplicantName),
		ApplicantAddress:      strings.TrimSpace(in.ApplicantAddress),
		ContactPerson:         strings.TrimSpace(in.ContactPerson),
		ContactEmail:          strings.TrimSpace(in.ContactEmail),
		ContactPhone:          strings.TrimSpace(in.ContactPhone),
		TechnicalField:        strings.TrimSpace(in.TechnicalField),
		BackgroundDescription: strings.TrimSpace(in.BackgroundDescription),
		BeneficialEffects:     SplitList(in.BeneficialEffects),
		Embodiments:           SplitList(in.Embodiments),
		FigureDescriptions:    SplitList(in.FigureDescriptions),
		PriorArtReferences:    SplitList(in.PriorArtReferences),
		Keywords:              SplitList(in.Keywords),
		AdditionalNotes:       strings.TrimSpace(in.AdditionalNotes),
		Status:                disclosure.StatusDraft,
		CreatedAt:             now.UTC(),
		UpdatedAt:             now.UTC(),
	}
	if p := strings.TrimSpace(in.TechnicalProblems); p != "" {
		d.TechnicalProblems = []disclosure.TechnicalProblem{{Description: p}}
	}
	overview := strings.TrimSpace(in.TechnicalSolution)
	steps := SplitList(in.KeySteps)
	points := SplitList(in.InnovationPoints)
	if overview != "" || len(steps) > 0 || len(points) > 0 {
		d.TechnicalSolution = &disclosure.TechnicalSolution{
			Overview:         overview,
			KeySteps:         steps,
			InnovationPoints: points,
		}
	}
	return d
}

// SplitInventors splits on ASCII and full-width commas.
func SplitInventors(s string) []string {
	return splitOn(s, ",，")
}

// SplitList splits on ASCII and full-width semicolons.
func SplitList(s string) []string {
	return splitOn(s, ";；")
}

func splitOn(s, seps string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(seps, r)
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
