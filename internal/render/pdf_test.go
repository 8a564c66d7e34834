package render

import (
	"strings"
	"testing"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
)

func sampleEnvelope(t *testing.T) disclosure.ResponseEnvelope {
	t.Helper()
	d := &disclosure.Disclosure{
		Title:                 "Adaptive <exposure> recognition",
		Inventors:             []string{"Zhang San"},
		ApplicantName:         "Example Tech Co., Ltd.",
		TechnicalField:        "computer vision",
		BackgroundDescription: strings.Repeat("background ", 6),
		TechnicalProblems:     []disclosure.TechnicalProblem{{Description: "low accuracy at night"}},
		TechnicalSolution:     &disclosure.TechnicalSolution{Overview: "adaptive exposure correction", KeySteps: []string{"acquire", "correct"}},
		BeneficialEffects:     []string{"higher accuracy"},
	}
	app, err := disclosure.Process(d)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	return disclosure.BuildResponse(app)
}

func TestHTMLRendersSectionsAndEscapesTitle(t *testing.T) {
	out, err := HTML(sampleEnvelope(t))
	if err != nil {
		t.Fatalf("html: %v", err)
	}
	if !strings.Contains(out, "<title>Adaptive &lt;exposure&gt; recognition</title>") {
		t.Fatalf("expected escaped title, got: %s", out[:200])
	}
	for _, name := range disclosure.SectionOrder {
		if name == disclosure.SectionClaims {
			continue
		}
		if !strings.Contains(out, "<h2>"+name+"</h2>") {
			t.Fatalf("missing section heading %q", name)
		}
	}
	if !strings.Contains(out, `<h2 data-page-break-before="true">Claims</h2>`) {
		t.Fatal("expected page break before claims")
	}
	if !strings.Contains(out, "5 claims") {
		t.Fatal("expected claim count badge")
	}
}

func TestHTMLPageBreaksOnlyAtClaimsSection(t *testing.T) {
	d := &disclosure.Disclosure{
		Title:                 "Adaptive exposure recognition",
		Inventors:             []string{"Zhang San"},
		ApplicantName:         "Example Tech Co., Ltd.",
		TechnicalField:        "computer vision",
		BackgroundDescription: strings.Repeat("background ", 6),
		TechnicalProblems:     []disclosure.TechnicalProblem{{Description: "low accuracy at night"}},
		TechnicalSolution:     &disclosure.TechnicalSolution{Overview: "adaptive exposure correction", KeySteps: []string{"acquire", "correct"}},
		BeneficialEffects:     []string{"higher accuracy"},
		Embodiments:           []string{"first part\n---\nsecond part", "[" + disclosure.SectionClaims + "]"},
	}
	app, err := disclosure.Process(d)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	out, err := HTML(disclosure.BuildResponse(app))
	if err != nil {
		t.Fatalf("html: %v", err)
	}
	if n := strings.Count(out, "data-page-break-before"); n != 1 {
		t.Fatalf("expected one page break, got %d", n)
	}
	if strings.Contains(out, "<h2>first part</h2>") {
		t.Fatal("disclosure rule turned text into a heading")
	}
	if !strings.Contains(out, "---") {
		t.Fatal("disclosure rule line was dropped")
	}
}

func TestHTMLRequiresDocument(t *testing.T) {
	if _, err := HTML(disclosure.ResponseEnvelope{Title: "empty"}); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestApplyPrintLayoutHooksNoopWithoutClaims(t *testing.T) {
	in := "<h2>Abstract</h2><p>x</p>"
	if out := applyPrintLayoutHooks(in); out != in {
		t.Fatalf("expected no change, got: %s", out)
	}
}

func TestNewChromiumPDFRendererDefaults(t *testing.T) {
	r := NewChromiumPDFRenderer("/opt/chrome", 0)
	if r.chromePath != "/opt/chrome" {
		t.Fatalf("unexpected chrome path %q", r.chromePath)
	}
	if r.timeout != defaultRenderTimeout {
		t.Fatalf("unexpected timeout %s", r.timeout)
	}
}
