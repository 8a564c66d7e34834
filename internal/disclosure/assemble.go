package disclosure

import (
	"fmt"
	"strings"
)

const (
	fallbackAddress          = "to be filled in"
	fallbackProblemPhrase    = "to overcome the shortcomings of the prior art"
	fallbackEffectPhrase     = "improved efficiency"
	embodimentsLeadIn        = "The invention is further described below with reference to the drawings and embodiments."
	documentBannerWidth      = 60
	sectionBannerWidth       = 50
	briefDescriptionTemplate = "Figure 1 is a schematic flow chart of the %s according to an embodiment of the invention."
)

const (
	SectionPatentType       = "Patent Type"
	SectionTitle            = "Title"
	SectionApplicant        = "Applicant and Inventors"
	SectionTechnicalField   = "Technical Field"
	SectionBackground       = "Background Art"
	SectionInventionContent = "Summary of the Invention"
	SectionDrawings         = "Description of Drawings"
	SectionEmbodiments      = "Detailed Description of Embodiments"
	SectionClaims           = "Claims"
	SectionAbstract         = "Abstract"
)

// SectionOrder is the fixed order of sections in an assembled document.
var SectionOrder = []string{
	SectionPatentType,
	SectionTitle,
	SectionApplicant,
	SectionTechnicalField,
	SectionBackground,
	SectionInventionContent,
	SectionDrawings,
	SectionEmbodiments,
	SectionClaims,
	SectionAbstract,
}

// Validated is proof that a disclosure passed Validate. It can only be
// obtained from Gate, so Assemble cannot be reached with an unchecked
// disclosure.
type Validated struct {
	d      *Disclosure
	result ValidationResult
}

func (v Validated) ok() bool {
	return v.d != nil && v.result.IsValid
}

// Assemble renders the ten fixed sections of the application. Optional
// content that is missing is replaced by fallback text, so no section is
// ever empty. Without claims the set is synthesized from the disclosure.
func Assemble(v Validated, req DraftRequest, claims []Claim) RenderedApplication {
	d := v.d
	if !v.ok() {
		return RenderedApplication{Validation: v.result}
	}
	if len(claims) == 0 {
		// d is non-nil here, so synthesis cannot fail.
		claims, _ = SynthesizeClaims(d)
	}
	sol := d.solution()
	pt := ParsePatentType(string(req.PatentType))

	var b strings.Builder
	banner(&b, "APPLICATION DOCUMENT")

	section(&b, SectionPatentType)
	fmt.Fprintf(&b, "%s\n\n", pt.Label())

	section(&b, SectionTitle)
	fmt.Fprintf(&b, "%s\n\n", d.Title)

	section(&b, SectionApplicant)
	address := d.ApplicantAddress
	if address == "" {
		address = fallbackAddress
	}
	fmt.Fprintf(&b, "[Applicant] %s\n", d.ApplicantName)
	fmt.Fprintf(&b, "[Address] %s\n", address)
	fmt.Fprintf(&b, "[Inventors] %s\n\n", strings.Join(d.Inventors, ", "))

	section(&b, SectionTechnicalField)
	fmt.Fprintf(&b, "%s\n\n", req.TechnicalField)

	section(&b, SectionBackground)
	fmt.Fprintf(&b, "%s\n\n", d.BackgroundDescription)

	section(&b, SectionInventionContent)
	b.WriteString("\n")
	writeInventionContent(&b, d, sol)

	section(&b, SectionDrawings)
	if len(d.FigureDescriptions) > 0 {
		for _, fig := range d.FigureDescriptions {
			fmt.Fprintf(&b, "%s\n", fig)
		}
	} else {
		fmt.Fprintf(&b, "%s\n", briefDescription(d.Title))
	}
	b.WriteString("\n")

	section(&b, SectionEmbodiments)
	fmt.Fprintf(&b, "%s\n\n", embodimentsLeadIn)
	if len(d.Embodiments) > 0 {
		for i, e := range d.Embodiments {
			fmt.Fprintf(&b, "Embodiment %d:\n%s\n\n", i+1, e)
		}
	} else {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(req.InventionDescription))
	}
	if sol.ImplementationDetails != "" {
		fmt.Fprintf(&b, "Implementation details:\n%s\n\n", sol.ImplementationDetails)
	}

	section(&b, SectionClaims)
	b.WriteString("\n")
	for _, c := range claims {
		fmt.Fprintf(&b, "%s\n\n", c.Text)
	}

	section(&b, SectionAbstract)
	fmt.Fprintf(&b, "%s\n\n", abstract(d, sol, req))

	banner(&b, "END OF DOCUMENT")

	return RenderedApplication{
		Title:      d.Title,
		PatentType: pt,
		Document:   b.String(),
		Claims:     append([]Claim(nil), claims...),
		Validation: v.result,
	}
}

func writeInventionContent(b *strings.Builder, d *Disclosure, sol TechnicalSolution) {
	b.WriteString("I. Technical problems to be solved\n")
	for i, p := range d.TechnicalProblems {
		fmt.Fprintf(b, "%d. %s\n", i+1, p.Description)
		if p.Limitations != "" {
			fmt.Fprintf(b, "   Limitations of the prior art: %s\n", p.Limitations)
		}
	}
	b.WriteString("\n")

	b.WriteString("II. Technical solution\n")
	fmt.Fprintf(b, "%s\n\n", sol.Overview)
	if len(sol.KeySteps) > 0 {
		b.WriteString("The solution specifically comprises the following steps:\n")
		for i, step := range sol.KeySteps {
			fmt.Fprintf(b, "Step %d: %s\n", i+1, step)
		}
		b.WriteString("\n")
	}
	if len(sol.InnovationPoints) > 0 {
		b.WriteString("The innovation of the invention lies in:\n")
		for i, point := range sol.InnovationPoints {
			fmt.Fprintf(b, "(%d) %s\n", i+1, point)
		}
		b.WriteString("\n")
	}

	b.WriteString("III. Beneficial effects\n")
	b.WriteString("Compared with the prior art, the invention has the following beneficial effects:\n")
	for i, effect := range d.BeneficialEffects {
		fmt.Fprintf(b, "%d. %s\n", i+1, effect)
	}
	b.WriteString("\n")
}

func abstract(d *Disclosure, sol TechnicalSolution, req DraftRequest) string {
	problem := fallbackProblemPhrase
	if len(d.TechnicalProblems) > 0 {
		problem = d.TechnicalProblems[0].Description
	}
	effect := fallbackEffectPhrase
	if len(d.BeneficialEffects) > 0 {
		effect = d.BeneficialEffects[0]
	}
	return fmt.Sprintf("The invention discloses %s, which belongs to %s. "+
		"The technical problem to be solved by the invention is %s. "+
		"The technical solution of the invention is %s... "+
		"The beneficial effects of the invention include %s.",
		d.Title, req.TechnicalField, problem, truncateRunes(sol.Overview, AbstractOverviewChars), effect)
}

func briefDescription(title string) string {
	return fmt.Sprintf(briefDescriptionTemplate, title)
}

func banner(b *strings.Builder, heading string) {
	line := strings.Repeat("=", documentBannerWidth)
	fmt.Fprintf(b, "%s\n%s\n%s\n\n", line, centered(heading, documentBannerWidth), line)
}

func rule(b *strings.Builder) {
	fmt.Fprintf(b, "%s\n", strings.Repeat("-", sectionBannerWidth))
}

func section(b *strings.Builder, heading string) {
	rule(b)
	fmt.Fprintf(b, "[%s]\n", heading)
}

func centered(s string, width int) string {
	pad := (width - len(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}
