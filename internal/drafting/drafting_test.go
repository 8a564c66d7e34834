package drafting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/disclosure-drafter/internal/config"
	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
)

type scriptedCaller struct {
	replies []string
	errs    []error
	prompts []string
}

func (s *scriptedCaller) Generate(_ context.Context, _, prompt string) (string, error) {
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func noSleep(r *retryingCaller) *retryingCaller {
	r.after = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	return r
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", stripCodeFences("  plain "))
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(1))
	assert.Equal(t, 2*time.Second, backoffDelay(2))
}

func TestClassifyTransportError(t *testing.T) {
	assert.Equal(t, failureServer, classifyTransportError(assertErr("failed after 5 retries while waiting 4 seconds")))
	assert.Equal(t, failureClient, classifyTransportError(assertErr("status code: 400 bad request")))
	assert.Equal(t, failureRateLimit, classifyTransportError(assertErr("429 Too Many Requests")))
	assert.Equal(t, failureTimeout, classifyTransportError(context.DeadlineExceeded))
}

func TestRetryingCallerRetriesTransientFailures(t *testing.T) {
	inner := &scriptedCaller{
		errs:    []error{assertErr("500 server error"), nil},
		replies: []string{"", "ok"},
	}
	out, err := noSleep(newRetryingCaller(inner, nil)).Generate(context.Background(), "sys", "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Len(t, inner.prompts, 2)
}

func TestRetryingCallerStopsOnClientError(t *testing.T) {
	inner := &scriptedCaller{errs: []error{assertErr("status code: 401 unauthorized")}}
	_, err := noSleep(newRetryingCaller(inner, nil)).Generate(context.Background(), "sys", "p")
	require.Error(t, err)
	assert.Len(t, inner.prompts, 1)
}

func TestRetryingCallerStopsWaitingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inner := &scriptedCaller{errs: []error{assertErr("500 server error"), assertErr("500 server error")}}
	r := newRetryingCaller(inner, nil)
	r.after = func(time.Duration) <-chan time.Time {
		cancel()
		return make(chan time.Time)
	}

	_, err := r.Generate(ctx, "sys", "p")
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, inner.prompts, 1)
}

func TestModelConfigFrom(t *testing.T) {
	cfg := config.Default().Model
	_, err := ModelConfigFrom(cfg)
	require.ErrorIs(t, err, ErrModelDisabled)

	cfg.Enabled = true
	cfg.APIKeyEnv = "DRAFTER_TEST_KEY"
	t.Setenv("DRAFTER_TEST_KEY", "")
	_, err = ModelConfigFrom(cfg)
	require.Error(t, err)

	t.Setenv("DRAFTER_TEST_KEY", "sk-test")
	mc, err := ModelConfigFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", mc.APIKey)
	assert.Equal(t, config.DefaultModelName, mc.Model)
}

type fakeMessager struct {
	params anthropic.MessageNewParams
	reply  string
	err    error
}

func (f *fakeMessager) New(_ context.Context, params anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: f.reply}}}, nil
}

func TestAnthropicCallerSendsConfiguredModel(t *testing.T) {
	fm := &fakeMessager{reply: "polished"}
	caller := newAnthropicCallerWith(fm, ModelConfig{Model: "claude-test", MaxTokens: 512})

	out, err := caller.Generate(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "polished", out)
	assert.Equal(t, anthropic.Model("claude-test"), fm.params.Model)
	assert.Equal(t, int64(512), fm.params.MaxTokens)
	require.Len(t, fm.params.System, 1)
	assert.Equal(t, "system prompt", fm.params.System[0].Text)

	fm.err = errors.New("boom")
	_, err = caller.Generate(context.Background(), "s", "p")
	require.Error(t, err)
}

func TestPolishDisclosureRewritesProseOnly(t *testing.T) {
	d := &disclosure.Disclosure{
		Title:                 "Adaptive exposure recognition",
		BackgroundDescription: "old background",
		TechnicalSolution: &disclosure.TechnicalSolution{
			Overview: "old overview",
			KeySteps: []string{"acquire", "classify"},
		},
	}
	caller := &scriptedCaller{replies: []string{"New background.", "```\nNew overview.\n```"}}
	p := NewPolisher(caller, nil)

	out, err := p.PolishDisclosure(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "New background.", out.BackgroundDescription)
	assert.Equal(t, "New overview.", out.TechnicalSolution.Overview)
	assert.Equal(t, []string{"acquire", "classify"}, out.TechnicalSolution.KeySteps)
	assert.Equal(t, "old overview", d.TechnicalSolution.Overview)
	assert.Len(t, caller.prompts, 2, "empty implementation details are not sent")
	assert.True(t, strings.Contains(caller.prompts[0], "Section: background art"))
}

func TestPolishDisclosureKeepsOriginalOnEmptyReply(t *testing.T) {
	d := &disclosure.Disclosure{Title: "t", BackgroundDescription: "keep me"}
	out, err := NewPolisher(&scriptedCaller{}, nil).PolishDisclosure(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "keep me", out.BackgroundDescription)

	_, err = NewPolisher(&scriptedCaller{}, nil).PolishDisclosure(context.Background(), nil)
	require.ErrorIs(t, err, disclosure.ErrNilDisclosure)
}

func TestExtractorUsesModelJSON(t *testing.T) {
	caller := &scriptedCaller{replies: []string{"Here you go:\n{\"title\":\"Adaptive exposure\",\"inventors\":\"A, B\",\"technical_solution\":\"correct exposure\"}"}}
	fields := NewExtractor(caller, nil).Extract(context.Background(), "some disclosure text")

	assert.Equal(t, "Adaptive exposure", fields.Title)
	assert.Equal(t, "A, B", fields.Inventors)
	assert.Equal(t, "correct exposure", fields.TechnicalSolution)
}

func TestExtractorFallsBackToLabels(t *testing.T) {
	text := "Title: Adaptive exposure\nInventors: A, B"

	fields := NewExtractor(&scriptedCaller{replies: []string{"not json"}}, nil).Extract(context.Background(), text)
	assert.Equal(t, "Adaptive exposure", fields.Title)

	fields = NewExtractor(nil, nil).Extract(context.Background(), text)
	assert.Equal(t, "A, B", fields.Inventors)
}
