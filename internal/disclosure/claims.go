package disclosure

import (
	"fmt"
	"strings"
)

var fallbackDependentFeatures = []string{
	"the technical solution further comprises a data preprocessing step",
	"the technical solution further comprises a result verification step",
	"the technical solution is applicable to a plurality of application scenarios",
}

// SynthesizeClaims derives the claim set from the solution's key steps and
// innovation points. Claim 1 is always independent, the last claim is always
// the system claim, and indices are contiguous from 1.
func SynthesizeClaims(d *Disclosure) ([]Claim, error) {
	if d == nil {
		return nil, ErrNilDisclosure
	}
	sol := d.solution()
	claims := []Claim{independentClaim(d.Title, sol)}

	features := dependentFeatures(sol.InnovationPoints)
	for _, feature := range features {
		n := len(claims) + 1
		claims = append(claims, Claim{
			Index:     n,
			Text:      fmt.Sprintf("%d. According to claim 1's %s, characterized in that: %s.", n, d.Title, feature),
			Kind:      ClaimDependent,
			DependsOn: []int{1},
		})
	}

	last := len(claims)
	refs := make([]int, 0, last)
	for i := 1; i <= last; i++ {
		refs = append(refs, i)
	}
	claims = append(claims, Claim{
		Index: last + 1,
		Text: fmt.Sprintf("%d. A system for implementing the method of any one of claims 1 to %d, characterized in that: "+
			"it comprises a processing module, a control module and an output module.", last+1, last),
		Kind:      ClaimSystem,
		DependsOn: refs,
	})
	return claims, nil
}

func independentClaim(title string, sol TechnicalSolution) Claim {
	var b strings.Builder
	fmt.Fprintf(&b, "1. %s, characterized in that:\n", title)
	if len(sol.KeySteps) > 0 {
		for i, step := range sol.KeySteps {
			fmt.Fprintf(&b, "    (%d) %s;\n", i+1, step)
		}
	} else {
		fmt.Fprintf(&b, "    comprising %s.", truncateRunes(sol.Overview, FallbackOverviewChars))
	}
	return Claim{Index: 1, Text: strings.TrimRight(b.String(), "\n"), Kind: ClaimIndependent}
}

// dependentFeatures keeps at most MaxDependentFromPoints innovation points
// and tops the list up with fallback features so there are never fewer than
// MinDependentClaims dependents.
func dependentFeatures(points []string) []string {
	if len(points) > MaxDependentFromPoints {
		points = points[:MaxDependentFromPoints]
	}
	out := make([]string, 0, MaxDependentFromPoints)
	out = append(out, points...)
	for i := 0; len(out) < MinDependentClaims; i++ {
		out = append(out, fallbackDependentFeatures[i])
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
