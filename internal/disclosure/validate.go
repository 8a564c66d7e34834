package disclosure

import (
	"errors"
	"strings"
	"unicode/utf8"
)

var ErrNilDisclosure = errors.New("disclosure is required")

const (
	MsgTitle               = "title too short or empty"
	MsgInventors           = "at least one inventor is required"
	MsgApplicant           = "applicant name must not be empty"
	MsgTechnicalField      = "technical field too short, at least 10 characters required"
	MsgBackground          = "background description too short, at least 50 characters required"
	MsgTechnicalProblems   = "at least one technical problem to be solved must be described"
	MsgTechnicalSolution   = "technical solution must not be empty"
	MsgSolutionOverview    = "technical solution overview must not be empty"
	MsgBeneficialEffects   = "at least one beneficial effect must be described"
	MsgEmbodiments         = "at least one concrete embodiment is recommended"
	MsgFigures             = "figure descriptions are recommended"
	MsgUtilityModelFigures = "a utility model application must include figure descriptions"
	MsgInnovationPoints    = "list the innovation points of the solution explicitly; they drive the dependent claims"
	MsgPriorArt            = "provide prior art references; they help draft the background section"
	MsgContactEmail        = "provide a contact email for follow-up"
)

// Validate scores a disclosure and reports blocking errors, warnings and
// suggestions. It never fails on an incomplete disclosure; only a nil
// disclosure is an error.
func Validate(d *Disclosure) (ValidationResult, error) {
	if d == nil {
		return ValidationResult{}, ErrNilDisclosure
	}
	c := &checker{score: MaxCompletenessScore}

	if runeLen(d.Title) < MinTitleChars {
		c.fail(MsgTitle, WeightTitle)
	}
	if len(d.Inventors) == 0 {
		c.fail(MsgInventors, WeightInventors)
	}
	if d.ApplicantName == "" {
		c.fail(MsgApplicant, WeightApplicant)
	}
	if runeLen(d.TechnicalField) < MinTechnicalFieldChars {
		c.fail(MsgTechnicalField, WeightTechnicalField)
	}
	if runeLen(d.BackgroundDescription) < MinBackgroundChars {
		c.fail(MsgBackground, WeightBackground)
	}
	if len(d.TechnicalProblems) == 0 {
		c.fail(MsgTechnicalProblems, WeightTechnicalProblems)
	}
	switch {
	case d.TechnicalSolution == nil:
		c.fail(MsgTechnicalSolution, WeightTechnicalSolution)
	case d.TechnicalSolution.Overview == "":
		c.fail(MsgSolutionOverview, WeightSolutionOverview)
	}
	if len(d.BeneficialEffects) == 0 {
		c.fail(MsgBeneficialEffects, WeightBeneficialEffects)
	}

	if len(d.Embodiments) == 0 {
		c.warn(MsgEmbodiments, WeightEmbodiments)
	}
	if len(d.FigureDescriptions) == 0 {
		c.warn(MsgFigures, WeightFigures)
		// Fires on top of the generic warning above.
		if ParsePatentType(string(d.PatentType)) == PatentTypeUtilityModel {
			c.fail(MsgUtilityModelFigures, WeightUtilityModelFigures)
		}
	}

	if len(d.solution().InnovationPoints) == 0 {
		c.suggest(MsgInnovationPoints)
	}
	if len(d.PriorArtReferences) == 0 {
		c.suggest(MsgPriorArt)
	}
	if d.ContactEmail == "" {
		c.suggest(MsgContactEmail)
	}

	return c.result(), nil
}

type checker struct {
	score       float64
	errors      []string
	warnings    []string
	suggestions []string
}

func (c *checker) fail(msg string, weight float64) {
	c.errors = append(c.errors, msg)
	c.score -= weight
}

func (c *checker) warn(msg string, weight float64) {
	c.warnings = append(c.warnings, msg)
	c.score -= weight
}

func (c *checker) suggest(msg string) {
	c.suggestions = append(c.suggestions, msg)
}

func (c *checker) result() ValidationResult {
	return ValidationResult{
		IsValid:           len(c.errors) == 0,
		Errors:            nonNil(c.errors),
		Warnings:          nonNil(c.warnings),
		Suggestions:       nonNil(c.suggestions),
		CompletenessScore: clampScore(c.score),
	}
}

func clampScore(score float64) float64 {
	if score < MinCompletenessScore {
		return MinCompletenessScore
	}
	if score > MaxCompletenessScore {
		return MaxCompletenessScore
	}
	return score
}

func runeLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
