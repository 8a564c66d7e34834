package disclosure

import (
	"strings"
	"time"
)

const Disclaimer = "This is a structurally complete draft synthesized from the inventor's disclosure. " +
	"It does not assess novelty or inventive step and is not ready for filing without review. " +
	"Consult qualified patent counsel before submission."

const (
	MinTitleChars          = 5
	MinTechnicalFieldChars = 10
	MinBackgroundChars     = 50

	MaxDependentFromPoints = 4
	MinDependentClaims     = 3
	FallbackOverviewChars  = 50
	AbstractOverviewChars  = 100
)

// Score weights. These are part of the interchange contract with existing
// reports and must not be tuned.
const (
	WeightTitle               = 15.0
	WeightInventors           = 10.0
	WeightApplicant           = 10.0
	WeightTechnicalField      = 10.0
	WeightBackground          = 10.0
	WeightTechnicalProblems   = 15.0
	WeightTechnicalSolution   = 15.0
	WeightSolutionOverview    = 10.0
	WeightBeneficialEffects   = 10.0
	WeightEmbodiments         = 5.0
	WeightFigures             = 5.0
	WeightUtilityModelFigures = 10.0
	MaxCompletenessScore      = 100.0
	MinCompletenessScore      = 0.0
)

type PatentType string

const (
	PatentTypeInvention    PatentType = "invention"
	PatentTypeUtilityModel PatentType = "utility_model"
	PatentTypeDesign       PatentType = "design"
)

// ParsePatentType never fails; anything unrecognized is an invention.
func ParsePatentType(s string) PatentType {
	switch PatentType(strings.ToLower(strings.TrimSpace(s))) {
	case PatentTypeUtilityModel:
		return PatentTypeUtilityModel
	case PatentTypeDesign:
		return PatentTypeDesign
	default:
		return PatentTypeInvention
	}
}

func (t PatentType) Label() string {
	switch ParsePatentType(string(t)) {
	case PatentTypeUtilityModel:
		return "Utility Model Patent"
	case PatentTypeDesign:
		return "Design Patent"
	default:
		return "Invention Patent"
	}
}

type Status string

const (
	StatusDraft      Status = "draft"
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

type TechnicalProblem struct {
	Description       string `json:"description" yaml:"description"`
	ExistingSolutions string `json:"existing_solutions,omitempty" yaml:"existing_solutions,omitempty"`
	Limitations       string `json:"limitations,omitempty" yaml:"limitations,omitempty"`
}

type TechnicalSolution struct {
	Overview              string   `json:"overview" yaml:"overview"`
	KeySteps              []string `json:"key_steps,omitempty" yaml:"key_steps,omitempty"`
	InnovationPoints      []string `json:"innovation_points,omitempty" yaml:"innovation_points,omitempty"`
	ImplementationDetails string   `json:"implementation_details,omitempty" yaml:"implementation_details,omitempty"`
}

type Attachment struct {
	FileName    string `json:"file_name" yaml:"file_name"`
	FileType    string `json:"file_type" yaml:"file_type"`
	FilePath    string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Disclosure is the inventor's technical submission. A Disclosure may be
// invalid while it is being authored; only Validate decides whether it can
// move forward.
type Disclosure struct {
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	Title      string     `json:"title" yaml:"title"`
	PatentType PatentType `json:"patent_type,omitempty" yaml:"patent_type,omitempty"`

	Inventors        []string `json:"inventors" yaml:"inventors"`
	ApplicantName    string   `json:"applicant_name" yaml:"applicant_name"`
	ApplicantAddress string   `json:"applicant_address,omitempty" yaml:"applicant_address,omitempty"`
	ContactPerson    string   `json:"contact_person,omitempty" yaml:"contact_person,omitempty"`
	ContactPhone     string   `json:"contact_phone,omitempty" yaml:"contact_phone,omitempty"`
	ContactEmail     string   `json:"contact_email,omitempty" yaml:"contact_email,omitempty"`

	TechnicalField        string             `json:"technical_field" yaml:"technical_field"`
	BackgroundDescription string             `json:"background_description" yaml:"background_description"`
	TechnicalProblems     []TechnicalProblem `json:"technical_problems" yaml:"technical_problems"`
	TechnicalSolution     *TechnicalSolution `json:"technical_solution" yaml:"technical_solution"`
	BeneficialEffects     []string           `json:"beneficial_effects" yaml:"beneficial_effects"`

	Embodiments        []string     `json:"embodiments,omitempty" yaml:"embodiments,omitempty"`
	FigureDescriptions []string     `json:"figure_descriptions,omitempty" yaml:"figure_descriptions,omitempty"`
	Attachments        []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`

	PriorArtReferences []string `json:"prior_art_references,omitempty" yaml:"prior_art_references,omitempty"`
	Keywords           []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	AdditionalNotes    string   `json:"additional_notes,omitempty" yaml:"additional_notes,omitempty"`

	Status      Status     `json:"status,omitempty" yaml:"status,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

func (d *Disclosure) solution() TechnicalSolution {
	if d.TechnicalSolution == nil {
		return TechnicalSolution{}
	}
	return *d.TechnicalSolution
}

type ValidationResult struct {
	IsValid           bool     `json:"is_valid"`
	Errors            []string `json:"errors"`
	Warnings          []string `json:"warnings"`
	Suggestions       []string `json:"suggestions"`
	CompletenessScore float64  `json:"completeness_score"`
}

type ClaimKind string

const (
	ClaimIndependent ClaimKind = "independent"
	ClaimDependent   ClaimKind = "dependent"
	ClaimSystem      ClaimKind = "system"
)

type Claim struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Kind      ClaimKind `json:"kind"`
	DependsOn []int     `json:"depends_on,omitempty"`
}

// DraftRequest is the flattened form of a disclosure handed to document
// assembly and to external drafting collaborators.
type DraftRequest struct {
	InventionDescription string     `json:"invention_description"`
	TechnicalField       string     `json:"technical_field"`
	BackgroundInfo       string     `json:"background_info"`
	SpecificProblems     string     `json:"specific_problems"`
	Solution             string     `json:"solution"`
	BeneficialEffects    string     `json:"beneficial_effects"`
	PatentType           PatentType `json:"patent_type"`
	Language             string     `json:"language"`
}

type RenderedApplication struct {
	Title      string           `json:"title"`
	PatentType PatentType       `json:"patent_type"`
	Document   string           `json:"document"`
	Claims     []Claim          `json:"claims"`
	Validation ValidationResult `json:"validation"`
}
