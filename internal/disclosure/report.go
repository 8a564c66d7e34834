package disclosure

import (
	"fmt"
	"strings"
)

type ResponseEnvelope struct {
	Title            string           `json:"title"`
	PatentType       PatentType       `json:"patent_type"`
	Document         string           `json:"document"`
	DocumentMarkdown string           `json:"document_markdown"`
	Claims           []Claim          `json:"claims"`
	Validation       ValidationResult `json:"validation"`
	Disclaimer       string           `json:"disclaimer"`
}

func BuildResponse(app RenderedApplication) ResponseEnvelope {
	claims := app.Claims
	if claims == nil {
		claims = []Claim{}
	}
	env := ResponseEnvelope{
		Title:      app.Title,
		PatentType: app.PatentType,
		Document:   app.Document,
		Claims:     claims,
		Validation: app.Validation,
		Disclaimer: Disclaimer,
	}
	if app.Document != "" {
		env.DocumentMarkdown = Markdown(app)
	}
	return env
}

// FormatValidationReport renders a validation result as the plain-text
// report shown by the CLI and the MCP tool.
func FormatValidationReport(result ValidationResult) string {
	var b strings.Builder
	line := strings.Repeat("=", sectionBannerWidth)
	fmt.Fprintf(&b, "%s\n%s\n%s\n\n", line, centered("Disclosure Validation Report", sectionBannerWidth), line)

	if result.IsValid {
		b.WriteString("PASSED: the disclosure is complete enough to draft.\n\n")
	} else {
		b.WriteString("FAILED: fix the following problems before drafting.\n\n")
	}
	fmt.Fprintf(&b, "Completeness score: %.1f/100\n\n", result.CompletenessScore)

	writeFindings(&b, "Errors (must fix)", result.Errors)
	writeFindings(&b, "Warnings (should fix)", result.Warnings)
	writeFindings(&b, "Suggestions", result.Suggestions)
	return b.String()
}

func writeFindings(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "   - %s\n", item)
	}
	b.WriteString("\n")
}

// Markdown converts an assembled document into Markdown for HTML and PDF
// rendering. Section headers become level-two headings and the banners are
// replaced by a title block. Only the exact rule and header lines Assemble
// writes, in section order, are treated as structure; everything else is
// disclosure text and is kept.
func Markdown(app RenderedApplication) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sanitizeLine(app.Title))
	fmt.Fprintf(&b, "- Patent type: %s\n", app.PatentType.Label())
	fmt.Fprintf(&b, "- Claims: %d\n\n", len(app.Claims))
	fmt.Fprintf(&b, "> %s\n\n", Disclaimer)

	lines := strings.Split(strings.TrimRight(app.Document, "\n"), "\n")
	lines = trimBanners(lines)
	sectionRule := strings.Repeat("-", sectionBannerWidth)
	next := 0
	for i := 0; i < len(lines); i++ {
		raw := lines[i]
		if next < len(SectionOrder) && raw == sectionRule && i+1 < len(lines) && lines[i+1] == "["+SectionOrder[next]+"]" {
			fmt.Fprintf(&b, "## %s\n\n", SectionOrder[next])
			next++
			i++
			continue
		}
		trimmed := strings.TrimSpace(raw)
		switch {
		case trimmed == "":
			b.WriteString("\n")
		case isRule(trimmed):
			// Escaped so it does not turn the line above into a heading.
			fmt.Fprintf(&b, "\\%s  \n", trimmed)
		default:
			// Hard line break keeps numbered steps and claim limbs on their own lines.
			fmt.Fprintf(&b, "%s  \n", strings.TrimRight(raw, " "))
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// trimBanners drops the opening and closing document banners.
func trimBanners(lines []string) []string {
	isBanner := func(block []string, heading string) bool {
		line := strings.Repeat("=", documentBannerWidth)
		return block[0] == line && strings.TrimSpace(block[1]) == heading && block[2] == line
	}
	if len(lines) >= 3 && isBanner(lines[:3], "APPLICATION DOCUMENT") {
		lines = lines[3:]
	}
	if n := len(lines); n >= 3 && isBanner(lines[n-3:], "END OF DOCUMENT") {
		lines = lines[:n-3]
	}
	return lines
}

func isRule(s string) bool {
	if s == "" {
		return false
	}
	return strings.Trim(s, "=") == "" || strings.Trim(s, "-") == ""
}

func isSection(name string) bool {
	for _, s := range SectionOrder {
		if s == name {
			return true
		}
	}
	return false
}

func sanitizeLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
