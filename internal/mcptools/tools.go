// Package mcptools exposes the disclosure engine as MCP tools for agent
// callers. List arguments arrive as delimited strings: inventors are comma
// separated, every other list is semicolon separated.
package mcptools

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
	"github.com/joelkehle/disclosure-drafter/internal/intake"
)

// Polisher rewrites disclosure prose before drafting.
type Polisher interface {
	PolishDisclosure(ctx context.Context, d *disclosure.Disclosure) (*disclosure.Disclosure, error)
}

func coreFieldOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the invention.")),
		mcp.WithString("inventors", mcp.Required(), mcp.Description("Inventor names, comma separated.")),
		mcp.WithString("applicant_name", mcp.Required(), mcp.Description("Applicant (company or person).")),
		mcp.WithString("technical_field", mcp.Required(), mcp.Description("Technical field of the invention, at least 10 characters.")),
		mcp.WithString("background_description", mcp.Required(), mcp.Description("Background art and its shortcomings, at least 50 characters.")),
		mcp.WithString("technical_problems", mcp.Required(), mcp.Description("The technical problem the invention solves.")),
		mcp.WithString("technical_solution", mcp.Required(), mcp.Description("Overview of the technical solution.")),
		mcp.WithString("beneficial_effects", mcp.Description("Beneficial effects, semicolon separated.")),
		mcp.WithString("patent_type", mcp.Description("invention (default), utility_model or design.")),
	}
}

// formFrom reads the form fields a tool call carries. Absent arguments stay
// empty.
func formFrom(req mcp.CallToolRequest) intake.FormInput {
	return intake.FormInput{
		Title:                 req.GetString("title", ""),
		PatentType:            req.GetString("patent_type", string(disclosure.PatentTypeInvention)),
		Inventors:             req.GetString("inventors", ""),
		ApplicantName:         req.GetString("applicant_name", ""),
		ApplicantAddress:      req.GetString("applicant_address", ""),
		ContactEmail:          req.GetString("contact_email", ""),
		TechnicalField:        req.GetString("technical_field", ""),
		BackgroundDescription: req.GetString("background_description", ""),
		TechnicalProblems:     req.GetString("technical_problems", ""),
		TechnicalSolution:     req.GetString("technical_solution", ""),
		KeySteps:              req.GetString("key_steps", ""),
		InnovationPoints:      req.GetString("innovation_points", ""),
		BeneficialEffects:     req.GetString("beneficial_effects", ""),
		Embodiments:           req.GetString("embodiments", ""),
		FigureDescriptions:    req.GetString("figure_descriptions", ""),
	}
}

// ValidateTool handles validate_disclosure.
type ValidateTool struct {
	now func() time.Time
}

func NewValidateTool() *ValidateTool {
	return &ValidateTool{now: time.Now}
}

func (t *ValidateTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Check a patent disclosure for completeness. Returns a report with " +
			"blocking errors, warnings, suggestions and a completeness score out of 100."),
	}, coreFieldOptions()...)
	return mcp.NewTool("validate_disclosure", opts...)
}

func (t *ValidateTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d := intake.ParseForm(formFrom(req), t.now())
	res, err := disclosure.Validate(d)
	if err != nil {
		return mcp.NewToolResultError("validate disclosure: " + err.Error()), nil
	}
	return mcp.NewToolResultText(disclosure.FormatValidationReport(res)), nil
}

// ProcessTool handles process_disclosure_to_patent.
type ProcessTool struct {
	polisher Polisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewProcessTool accepts a nil polisher; the polish argument is then ignored.
func NewProcessTool(polisher Polisher, logger *zap.Logger) *ProcessTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessTool{polisher: polisher, logger: logger, now: time.Now}
}

func (t *ProcessTool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{
		mcp.WithDescription("Turn a complete patent disclosure into a draft patent application " +
			"document with claims. Validate first: an incomplete disclosure is refused with the " +
			"list of problems to fix."),
	}, coreFieldOptions()...)
	opts = append(opts,
		mcp.WithString("key_steps", mcp.Description("Key steps of the solution, semicolon separated.")),
		mcp.WithString("innovation_points", mcp.Description("Innovation points, semicolon separated. They become dependent claims.")),
		mcp.WithString("embodiments", mcp.Description("Concrete embodiments, semicolon separated.")),
		mcp.WithString("figure_descriptions", mcp.Description("Figure descriptions, semicolon separated. Required for utility models.")),
		mcp.WithString("applicant_address", mcp.Description("Applicant address.")),
		mcp.WithString("contact_email", mcp.Description("Contact email for follow-up.")),
		mcp.WithBoolean("polish", mcp.Description("Rewrite the prose in formal patent register before drafting.")),
	)
	return mcp.NewTool("process_disclosure_to_patent", opts...)
}

func (t *ProcessTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d := intake.ParseForm(formFrom(req), t.now())
	if req.GetBool("polish", false) && t.polisher != nil {
		polished, err := t.polisher.PolishDisclosure(ctx, d)
		if err != nil {
			t.logger.Warn("polish failed, drafting from original text", zap.Error(err))
		} else {
			d = polished
		}
	}
	app, err := disclosure.Process(d)
	var gateErr *disclosure.GateError
	if errors.As(err, &gateErr) {
		return mcp.NewToolResultError(disclosure.FailureReport(gateErr.Result)), nil
	}
	if err != nil {
		return mcp.NewToolResultError("process disclosure: " + err.Error()), nil
	}
	return mcp.NewToolResultText(app.Document), nil
}

// TemplateTool handles get_disclosure_template.
type TemplateTool struct{}

func (TemplateTool) Definition() mcp.Tool {
	return mcp.NewTool("get_disclosure_template",
		mcp.WithDescription("Return the disclosure template inventors fill in, with guidance on each section."),
	)
}

func (TemplateTool) Handle(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(disclosure.Template()), nil
}
