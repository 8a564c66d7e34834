package intake

import (
	"regexp"
	"strings"
)

var (
	blankRuns    = regexp.MustCompile(`\n\s*\n\s*\n+`)
	controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x{9f}]`)
)

// CleanText normalizes line endings, collapses runs of blank lines and strips
// control characters from text extracted out of uploaded documents.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	text = controlChars.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

type fieldLabel struct {
	field     string
	aliases   []string
	multiline bool
}

// Labels in the order they are tried. Longer aliases come first where one
// alias is a prefix of another.
var fieldLabels = []fieldLabel{
	{field: "title", aliases: []string{"title of the invention", "title", "发明名称", "名称"}},
	{field: "patent_type", aliases: []string{"patent type", "专利类型"}},
	{field: "inventors", aliases: []string{"inventors", "inventor", "发明人"}},
	{field: "applicant_address", aliases: []string{"applicant address", "申请人地址"}},
	{field: "applicant_name", aliases: []string{"applicant", "申请人"}},
	{field: "contact_email", aliases: []string{"contact email", "email", "联系邮箱"}},
	{field: "technical_field", aliases: []string{"technical field", "field", "技术领域", "所属领域"}, multiline: true},
	{field: "background_description", aliases: []string{"background art", "background", "背景技术"}, multiline: true},
	{field: "technical_problems", aliases: []string{"technical problems to be solved", "technical problems", "technical problem", "problems solved", "要解决的技术问题", "技术问题", "解决的问题"}, multiline: true},
	{field: "key_steps", aliases: []string{"key steps", "关键步骤"}, multiline: true},
	{field: "innovation_points", aliases: []string{"innovation points", "创新点"}, multiline: true},
	{field: "technical_solution", aliases: []string{"technical solution", "solution", "技术方案"}, multiline: true},
	{field: "beneficial_effects", aliases: []string{"beneficial effects", "advantages", "有益效果"}, multiline: true},
	{field: "embodiments", aliases: []string{"embodiments", "embodiment", "具体实施例", "实施例"}, multiline: true},
	{field: "figure_descriptions", aliases: []string{"description of drawings", "figures", "附图说明"}, multiline: true},
}

// ExtractFields is the rule-based fallback for pulling labelled fields out of
// a free-text disclosure. A field starts at a line of the form "Label: value"
// and, for multi-line fields, runs until the next labelled line. Lists inside
// multi-line fields are joined with semicolons so ParseForm splits them.
func ExtractFields(text string) FormInput {
	values := map[string][]string{}
	current := ""
	for _, line := range strings.Split(CleanText(text), "\n") {
		if field, rest, ok := matchLabel(line); ok {
			if _, seen := values[field]; seen {
				current = ""
				continue
			}
			values[field] = nil
			if rest != "" {
				values[field] = append(values[field], rest)
			}
			current = ""
			if isMultiline(field) {
				current = field
			}
			continue
		}
		if current == "" {
			continue
		}
		if item := strings.TrimSpace(stripListMarker(line)); item != "" {
			values[current] = append(values[current], item)
		}
	}

	get := func(field, sep string) string {
		return strings.Join(values[field], sep)
	}
	return FormInput{
		Title:                 get("title", " "),
		PatentType:            get("patent_type", " "),
		Inventors:             get("inventors", ", "),
		ApplicantName:         get("applicant_name", " "),
		ApplicantAddress:      get("applicant_address", " "),
		ContactEmail:          get("contact_email", " "),
		TechnicalField:        get("technical_field", " "),
		BackgroundDescription: get("background_description", "\n"),
		TechnicalProblems:     get("technical_problems", "\n"),
		TechnicalSolution:     get("technical_solution", "\n"),
		KeySteps:              get("key_steps", "; "),
		InnovationPoints:      get("innovation_points", "; "),
		BeneficialEffects:     get("beneficial_effects", "; "),
		Embodiments:           get("embodiments", "; "),
		FigureDescriptions:    get("figure_descriptions", "; "),
	}
}

func matchLabel(line string) (field, rest string, ok bool) {
	trimmed := strings.TrimSpace(stripHeadingNumber(line))
	for _, l := range fieldLabels {
		for _, alias := range l.aliases {
			if len(trimmed) < len(alias) || !strings.EqualFold(trimmed[:len(alias)], alias) {
				continue
			}
			after := strings.TrimSpace(trimmed[len(alias):])
			switch {
			case strings.HasPrefix(after, ":"):
				return l.field, strings.TrimSpace(after[len(":"):]), true
			case strings.HasPrefix(after, "："):
				return l.field, strings.TrimSpace(after[len("："):]), true
			}
		}
	}
	return "", "", false
}

func isMultiline(field string) bool {
	for _, l := range fieldLabels {
		if l.field == field {
			return l.multiline
		}
	}
	return false
}

var (
	headingNumber = regexp.MustCompile(`^\s*(?:\d+(?:\.\d+)*[.、)]?|[一二三四五六七八九十]+[、.])\s*`)
	listMarker    = regexp.MustCompile(`(?i)^\s*(?:[-*•]|\(?\d+[.)、]|step\s*\d+\s*[:：]|步骤\s*\d+\s*[:：])\s*`)
)

func stripHeadingNumber(line string) string {
	return headingNumber.ReplaceAllString(line, "")
}

func stripListMarker(line string) string {
	return listMarker.ReplaceAllString(line, "")
}
