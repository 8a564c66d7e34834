package disclosure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResponseIncludesDisclaimer(t *testing.T) {
	app, err := Process(completeDisclosure())
	require.NoError(t, err)

	env := BuildResponse(app)
	assert.Equal(t, Disclaimer, env.Disclaimer)
	assert.Equal(t, app.Document, env.Document)
	assert.Len(t, env.Claims, 5)
	require.NotEmpty(t, env.DocumentMarkdown)
	assert.True(t, strings.HasPrefix(env.DocumentMarkdown, "# AI图像识别方法\n"))
	for _, name := range SectionOrder {
		assert.Contains(t, env.DocumentMarkdown, "## "+name+"\n")
	}
	assert.NotContains(t, env.DocumentMarkdown, strings.Repeat("=", documentBannerWidth))
	assert.NotContains(t, env.DocumentMarkdown, "END OF DOCUMENT")
}

func TestMarkdownKeepsDisclosureTextThatLooksLikeStructure(t *testing.T) {
	d := completeDisclosure()
	d.Embodiments = []string{"A\n---\nB", "[" + SectionClaims + "]", "END OF DOCUMENT"}
	app, err := Process(d)
	require.NoError(t, err)
	require.Contains(t, app.Document, "A\n---\nB")

	md := Markdown(app)
	for _, name := range SectionOrder {
		assert.Equal(t, 1, strings.Count(md, "## "+name+"\n"), "heading %q", name)
	}
	assert.Contains(t, md, "A  \n\\---  \nB  \n")
	assert.Contains(t, md, "["+SectionClaims+"]  \n")
	assert.Contains(t, md, "END OF DOCUMENT  \n")
	assert.NotContains(t, md, strings.Repeat("-", sectionBannerWidth))
}

func TestBuildResponseForFailedValidation(t *testing.T) {
	app, err := Process(&Disclosure{})
	require.Error(t, err)

	env := BuildResponse(app)
	assert.Empty(t, env.Document)
	assert.Empty(t, env.DocumentMarkdown)
	assert.NotNil(t, env.Claims)
	assert.False(t, env.Validation.IsValid)
}

func TestFormatValidationReport(t *testing.T) {
	res, err := Validate(scenarioDisclosure())
	require.NoError(t, err)

	report := FormatValidationReport(res)
	assert.Contains(t, report, "PASSED")
	assert.Contains(t, report, "Completeness score: 90.0/100")
	assert.Contains(t, report, "Warnings (should fix):\n   - "+MsgEmbodiments)
	assert.NotContains(t, report, "Errors (must fix)")

	res, err = Validate(&Disclosure{})
	require.NoError(t, err)
	report = FormatValidationReport(res)
	assert.Contains(t, report, "FAILED")
	assert.Contains(t, report, "Completeness score: 0.0/100")
	assert.Contains(t, report, "   - "+MsgTitle)
}

func TestTemplateMentionsPatentTypes(t *testing.T) {
	tmpl := Template()
	for _, want := range []string{"Invention patent", "Utility model", "Design patent", "separate multiple inventors with commas"} {
		assert.Contains(t, tmpl, want)
	}
}
