package drafting

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
)

const polishSystemPrompt = "You are a patent agent editing an inventor's technical disclosure. " +
	"Rewrite the given passage in clear, formal patent-specification prose. " +
	"Keep every technical fact, number and term. Do not add new technical content. " +
	"Return only the rewritten passage."

// Polisher rewrites free-text passages of a disclosure. It never touches
// structured fields such as key steps, innovation points or claims.
type Polisher struct {
	caller LLMCaller
	logger *zap.Logger
}

func NewPolisher(caller LLMCaller, logger *zap.Logger) *Polisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Polisher{caller: newRetryingCaller(caller, logger), logger: logger}
}

// PolishDisclosure returns a copy of d with the background, overview and
// implementation details rewritten. d itself is not modified. An empty
// model answer keeps the original passage.
func (p *Polisher) PolishDisclosure(ctx context.Context, d *disclosure.Disclosure) (*disclosure.Disclosure, error) {
	if d == nil {
		return nil, disclosure.ErrNilDisclosure
	}
	out := *d
	var err error
	if out.BackgroundDescription, err = p.polish(ctx, "background art", d.Title, d.BackgroundDescription); err != nil {
		return nil, err
	}
	if d.TechnicalSolution != nil {
		sol := *d.TechnicalSolution
		if sol.Overview, err = p.polish(ctx, "technical solution overview", d.Title, sol.Overview); err != nil {
			return nil, err
		}
		if sol.ImplementationDetails, err = p.polish(ctx, "implementation details", d.Title, sol.ImplementationDetails); err != nil {
			return nil, err
		}
		out.TechnicalSolution = &sol
	}
	return &out, nil
}

func (p *Polisher) polish(ctx context.Context, section, title, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	prompt := fmt.Sprintf("Invention: %s\nSection: %s\n\nPassage:\n%s", title, section, text)
	raw, err := p.caller.Generate(ctx, polishSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("polish %s: %w", section, err)
	}
	polished := stripCodeFences(raw)
	if polished == "" {
		p.logger.Warn("empty polish result, keeping original", zap.String("section", section))
		return text, nil
	}
	return polished, nil
}
