package drafting

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/joelkehle/disclosure-drafter/internal/intake"
)

const (
	maxExtractChars     = 12000
	extractSystemPrompt = "You are a patent agent extracting fields from an inventor's technical disclosure. " +
		"Return strict JSON only with these string fields: title, technical_field, applicant_name, " +
		"inventors (comma separated), background_description, technical_problems, technical_solution, " +
		"key_steps, innovation_points, beneficial_effects, embodiments, figure_descriptions " +
		"(the last five semicolon separated). Use an empty string for anything not present; do not invent content."
)

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// Extractor pulls disclosure fields out of free text. Without a model, or
// when the model answer cannot be used, it falls back to label matching.
type Extractor struct {
	caller LLMCaller
	logger *zap.Logger
}

// NewExtractor accepts a nil caller for rule-based extraction only.
func NewExtractor(caller LLMCaller, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{logger: logger}
	if caller != nil {
		e.caller = newRetryingCaller(caller, logger)
	}
	return e
}

func (e *Extractor) Extract(ctx context.Context, text string) intake.FormInput {
	clean := intake.CleanText(text)
	if e.caller == nil {
		return intake.ExtractFields(clean)
	}
	fields, err := e.extractWithModel(ctx, clean)
	if err != nil {
		e.logger.Warn("model extraction failed, using label matching", zap.Error(err))
		return intake.ExtractFields(clean)
	}
	return fields
}

func (e *Extractor) extractWithModel(ctx context.Context, text string) (intake.FormInput, error) {
	if r := []rune(text); len(r) > maxExtractChars {
		text = string(r[:maxExtractChars]) + "\n...(truncated)"
	}
	raw, err := e.caller.Generate(ctx, extractSystemPrompt, "Disclosure text:\n\n"+text)
	if err != nil {
		return intake.FormInput{}, err
	}
	clean := stripCodeFences(raw)
	if m := jsonObject.FindString(clean); m != "" {
		clean = m
	}
	var fields intake.FormInput
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		return intake.FormInput{}, fmt.Errorf("parse extraction json: %w", err)
	}
	if strings.TrimSpace(fields.Title) == "" && strings.TrimSpace(fields.TechnicalSolution) == "" {
		return intake.FormInput{}, fmt.Errorf("extraction returned no title or solution")
	}
	return fields, nil
}
