package disclosure

import (
	"fmt"
	"strings"
)

const (
	DraftLanguage          = "en"
	EmbodimentsPlaceholder = "to be supplemented"
)

// Normalize flattens a disclosure into the canonical DraftRequest. Empty
// optional lists produce empty blocks, never an error.
func Normalize(d *Disclosure) (DraftRequest, error) {
	if d == nil {
		return DraftRequest{}, ErrNilDisclosure
	}
	sol := d.solution()
	return DraftRequest{
		InventionDescription: inventionDescription(d, sol),
		TechnicalField:       d.TechnicalField,
		BackgroundInfo:       d.BackgroundDescription,
		SpecificProblems:     problemsBlock(d.TechnicalProblems),
		Solution:             solutionBlock(sol),
		BeneficialEffects:    effectsBlock(d.BeneficialEffects),
		PatentType:           ParsePatentType(string(d.PatentType)),
		Language:             DraftLanguage,
	}, nil
}

func problemsBlock(problems []TechnicalProblem) string {
	var b strings.Builder
	for i, p := range problems {
		fmt.Fprintf(&b, "%d. %s", i+1, p.Description)
		if p.ExistingSolutions != "" {
			fmt.Fprintf(&b, "\n   existing solutions: %s", p.ExistingSolutions)
		}
		if p.Limitations != "" {
			fmt.Fprintf(&b, "\n   limitations: %s", p.Limitations)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func solutionBlock(sol TechnicalSolution) string {
	var b strings.Builder
	b.WriteString(sol.Overview)
	b.WriteString("\n\n")
	if len(sol.KeySteps) > 0 {
		b.WriteString("key steps:\n")
		writeNumbered(&b, sol.KeySteps)
		b.WriteString("\n")
	}
	if len(sol.InnovationPoints) > 0 {
		b.WriteString("innovation points:\n")
		writeNumbered(&b, sol.InnovationPoints)
		b.WriteString("\n")
	}
	if sol.ImplementationDetails != "" {
		fmt.Fprintf(&b, "implementation details:\n%s\n", sol.ImplementationDetails)
	}
	return b.String()
}

func writeNumbered(b *strings.Builder, items []string) {
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
}

func effectsBlock(effects []string) string {
	lines := make([]string, 0, len(effects))
	for _, e := range effects {
		lines = append(lines, "- "+e)
	}
	return strings.Join(lines, "\n")
}

func inventionDescription(d *Disclosure, sol TechnicalSolution) string {
	embodiments := EmbodimentsPlaceholder
	if len(d.Embodiments) > 0 {
		embodiments = strings.Join(d.Embodiments, "\n")
	}
	desc := fmt.Sprintf("%s\n\ntechnical solution:\n%s\n\nembodiments:\n%s", d.Title, sol.Overview, embodiments)
	return strings.TrimSpace(desc)
}
