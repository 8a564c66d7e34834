package disclosure

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StageValidate  = "validate"
	StageNormalize = "normalize"
	StageClaims    = "claims"
	StageAssemble  = "assemble"
)

// GateError is returned when a disclosure fails validation. The full result
// is carried so callers can report warnings alongside the blocking errors.
type GateError struct {
	Result ValidationResult
}

func (e *GateError) Error() string {
	return fmt.Sprintf("disclosure failed validation: %s", strings.Join(e.Result.Errors, "; "))
}

type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type StageProgressFn func(stage, message string)

// Gate validates d and hands back a Validated token only when there are no
// blocking errors.
func Gate(d *Disclosure) (Validated, error) {
	result, err := Validate(d)
	if err != nil {
		return Validated{}, err
	}
	if !result.IsValid {
		return Validated{}, &GateError{Result: result}
	}
	return Validated{d: d, result: result}, nil
}

func Process(d *Disclosure) (RenderedApplication, error) {
	return ProcessWithProgress(d, nil)
}

// ProcessWithProgress runs validate, normalize, claims and assemble in order.
// A failing disclosure stops at the gate with a *GateError; the returned
// application then holds only the validation result.
func ProcessWithProgress(d *Disclosure, progress StageProgressFn) (RenderedApplication, error) {
	emit(progress, StageValidate, "Validating disclosure...")
	v, err := Gate(d)
	if err != nil {
		var gateErr *GateError
		if errors.As(err, &gateErr) {
			emit(progress, StageValidate, fmt.Sprintf("Validation failed with %d error(s)", len(gateErr.Result.Errors)))
			return RenderedApplication{Validation: gateErr.Result}, err
		}
		return RenderedApplication{}, &StageError{Stage: StageValidate, Err: err}
	}
	emit(progress, StageValidate, fmt.Sprintf("Validation passed, completeness %.1f/100", v.result.CompletenessScore))

	emit(progress, StageNormalize, "Normalizing disclosure into a draft request...")
	req, err := Normalize(d)
	if err != nil {
		return RenderedApplication{Validation: v.result}, &StageError{Stage: StageNormalize, Err: err}
	}

	emit(progress, StageClaims, "Synthesizing claims...")
	claims, err := SynthesizeClaims(d)
	if err != nil {
		return RenderedApplication{Validation: v.result}, &StageError{Stage: StageClaims, Err: err}
	}
	emit(progress, StageClaims, fmt.Sprintf("Synthesized %d claims", len(claims)))

	emit(progress, StageAssemble, "Assembling application document...")
	app := Assemble(v, req, claims)
	emit(progress, StageAssemble, "Application document complete")
	return app, nil
}

// FailureReport lists the errors and warnings of a failed validation in the
// form shown to the author instead of a document.
func FailureReport(result ValidationResult) string {
	var b strings.Builder
	b.WriteString("Disclosure validation failed:\n")
	for _, e := range result.Errors {
		fmt.Fprintf(&b, "[error] %s\n", e)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(&b, "[warning] %s\n", w)
	}
	return b.String()
}

// Submit moves a draft to submitted when it passes validation. The input is
// never modified; on failure the *GateError describes what blocks submission.
func Submit(d *Disclosure, now time.Time) (*Disclosure, error) {
	if _, err := Gate(d); err != nil {
		return nil, err
	}
	out := *d
	ts := now.UTC()
	out.Status = StatusSubmitted
	out.SubmittedAt = &ts
	out.UpdatedAt = ts
	return &out, nil
}

func emit(progress StageProgressFn, stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}
