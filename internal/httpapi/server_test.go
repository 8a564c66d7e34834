package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
	"github.com/joelkehle/disclosure-drafter/internal/intake"
	"github.com/joelkehle/disclosure-drafter/internal/store"
	"github.com/joelkehle/disclosure-drafter/internal/telemetry"
)

type fakeRenderer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeRenderer) Render(_ context.Context, env disclosure.ResponseEnvelope) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 " + env.Title), nil
}

type upperPolisher struct{}

func (upperPolisher) PolishDisclosure(_ context.Context, d *disclosure.Disclosure) (*disclosure.Disclosure, error) {
	out := *d
	out.BackgroundDescription = strings.ToUpper(d.BackgroundDescription)
	return &out, nil
}

type testServer struct {
	handler  http.Handler
	renderer *fakeRenderer
	metrics  *telemetry.Metrics
}

func newServerForTest(t *testing.T, mutate func(*Deps)) testServer {
	t.Helper()
	seq := 0
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"), store.Config{
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	renderer := &fakeRenderer{}
	metrics := telemetry.NewMetrics()
	deps := Deps{
		Store:    st,
		Renderer: renderer,
		Metrics:  metrics,
		Clock:    func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&deps)
	}
	h, err := NewServer(deps)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return testServer{handler: h, renderer: renderer, metrics: metrics}
}

func validDisclosureBody() map[string]any {
	return map[string]any{
		"title":                  "Adaptive exposure image recognition method",
		"patent_type":            "invention",
		"inventors":              []string{"Zhang San", "Li Si"},
		"applicant_name":         "Example Tech Co., Ltd.",
		"technical_field":        "computer vision",
		"background_description": strings.Repeat("Existing recognizers lose accuracy in low light. ", 2),
		"technical_problems":     []map[string]any{{"description": "low accuracy at night"}},
		"technical_solution": map[string]any{
			"overview":  "adaptive exposure correction before recognition",
			"key_steps": []string{"acquire a frame", "estimate exposure", "correct the frame", "run recognition"},
		},
		"beneficial_effects": []string{"higher accuracy at night"},
	}
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var blob []byte
	switch v := body.(type) {
	case string:
		blob = []byte(v)
	default:
		var err error
		blob, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(blob))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func doRequest(t *testing.T, h http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v body=%s", err, rr.Body.String())
	}
}

type errorPayload struct {
	OK    bool `json:"ok"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Validation *disclosure.ValidationResult `json:"validation"`
}

func TestHealthAndTemplate(t *testing.T) {
	ts := newServerForTest(t, nil)

	rr := doRequest(t, ts.handler, http.MethodGet, "/v1/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, ts.handler, http.MethodGet, "/v1/template", nil)
	var tmpl struct {
		Template string `json:"template"`
	}
	decodeBody(t, rr, &tmpl)
	if !strings.Contains(tmpl.Template, "Invention patent") {
		t.Fatalf("template missing patent type guide: %q", tmpl.Template)
	}

	rr = doRequest(t, ts.handler, http.MethodGet, "/v1/template", map[string]string{"Accept": "text/plain"})
	if got := rr.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("expected text/plain template, got %q", got)
	}
	if rr.Body.String() != disclosure.Template() {
		t.Fatal("plain template differs from Template()")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newServerForTest(t, nil)
	rr := doRequest(t, ts.handler, http.MethodGet, "/v1/disclosures/draft", nil)
	// GET falls through to the {id} route.
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	rr = doRequest(t, ts.handler, http.MethodDelete, "/v1/template", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestValidateEndpoint(t *testing.T) {
	ts := newServerForTest(t, nil)

	rr := postJSON(t, ts.handler, "/v1/disclosures/validate", validDisclosureBody())
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		Validation disclosure.ValidationResult `json:"validation"`
		Report     string                      `json:"report"`
	}
	decodeBody(t, rr, &out)
	if !out.Validation.IsValid {
		t.Fatalf("expected valid disclosure, errors=%v", out.Validation.Errors)
	}
	if !strings.Contains(out.Report, "PASSED") {
		t.Fatalf("unexpected report: %s", out.Report)
	}

	body := validDisclosureBody()
	body["title"] = ""
	rr = postJSON(t, ts.handler, "/v1/disclosures/validate", body)
	decodeBody(t, rr, &out)
	if out.Validation.IsValid || len(out.Validation.Errors) == 0 {
		t.Fatalf("expected invalid result, got %+v", out.Validation)
	}
}

func TestValidateRejectsMalformedInput(t *testing.T) {
	ts := newServerForTest(t, nil)

	rr := postJSON(t, ts.handler, "/v1/disclosures/validate", `{"title": "x", "unexpected": true}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}
	var payload errorPayload
	decodeBody(t, rr, &payload)
	if payload.OK || payload.Error.Code != CodeValidation {
		t.Fatalf("unexpected error payload: %+v", payload)
	}

	rr = postJSON(t, ts.handler, "/v1/disclosures/validate", `{"title": `)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for broken json, got %d", rr.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	ts := newServerForTest(t, func(d *Deps) { d.MaxBodyBytes = 64 })
	rr := postJSON(t, ts.handler, "/v1/disclosures/validate", validDisclosureBody())
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestDraftEndpoint(t *testing.T) {
	ts := newServerForTest(t, nil)

	rr := postJSON(t, ts.handler, "/v1/disclosures/draft", validDisclosureBody())
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var env disclosure.ResponseEnvelope
	decodeBody(t, rr, &env)
	if len(env.Claims) < 5 {
		t.Fatalf("expected at least 5 claims, got %d", len(env.Claims))
	}
	if !strings.Contains(env.Document, "[Claims]") || !strings.Contains(env.DocumentMarkdown, "## Claims") {
		t.Fatal("expected claims section in both document views")
	}
	if env.Disclaimer == "" {
		t.Fatal("expected disclaimer")
	}
}

func TestDraftEndpointGateFailure(t *testing.T) {
	ts := newServerForTest(t, nil)

	body := validDisclosureBody()
	body["inventors"] = []string{}
	rr := postJSON(t, ts.handler, "/v1/disclosures/draft", body)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload errorPayload
	decodeBody(t, rr, &payload)
	if payload.Error.Code != CodeRejected {
		t.Fatalf("expected rejected code, got %q", payload.Error.Code)
	}
	if !strings.HasPrefix(payload.Error.Message, "Disclosure validation failed:") {
		t.Fatalf("expected failure report, got %q", payload.Error.Message)
	}
	if payload.Validation == nil || payload.Validation.IsValid {
		t.Fatalf("expected validation result in payload, got %+v", payload.Validation)
	}
}

func TestDraftEndpointPolishes(t *testing.T) {
	ts := newServerForTest(t, func(d *Deps) { d.Polisher = upperPolisher{} })

	rr := postJSON(t, ts.handler, "/v1/disclosures/draft?polish=true", validDisclosureBody())
	var env disclosure.ResponseEnvelope
	decodeBody(t, rr, &env)
	if !strings.Contains(env.Document, "EXISTING RECOGNIZERS LOSE ACCURACY") {
		t.Fatal("expected polished background in document")
	}

	rr = postJSON(t, ts.handler, "/v1/disclosures/draft", validDisclosureBody())
	decodeBody(t, rr, &env)
	if strings.Contains(env.Document, "EXISTING RECOGNIZERS") {
		t.Fatal("polish must be opt-in")
	}
}

func TestDisclosureLifecycle(t *testing.T) {
	ts := newServerForTest(t, nil)
	h := ts.handler

	rr := postJSON(t, h, "/v1/disclosures", validDisclosureBody())
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created struct {
		Disclosure disclosure.Disclosure       `json:"disclosure"`
		Validation disclosure.ValidationResult `json:"validation"`
	}
	decodeBody(t, rr, &created)
	id := created.Disclosure.ID
	if id == "" || created.Disclosure.Status != disclosure.StatusDraft {
		t.Fatalf("unexpected created disclosure: %+v", created.Disclosure)
	}

	rr = doRequest(t, h, http.MethodGet, "/v1/disclosures/"+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = postJSON(t, h, "/v1/disclosures/"+id+"/submit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit status=%d body=%s", rr.Code, rr.Body.String())
	}
	var submitted struct {
		Disclosure disclosure.Disclosure `json:"disclosure"`
	}
	decodeBody(t, rr, &submitted)
	if submitted.Disclosure.Status != disclosure.StatusSubmitted || submitted.Disclosure.SubmittedAt == nil {
		t.Fatalf("expected submitted disclosure, got %+v", submitted.Disclosure)
	}

	rr = postJSON(t, h, "/v1/disclosures/"+id+"/submit", nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on resubmit, got %d", rr.Code)
	}

	rr = postJSON(t, h, "/v1/disclosures/"+id+"/applications", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("draft stored status=%d body=%s", rr.Code, rr.Body.String())
	}
	var app struct {
		ID           string                      `json:"id"`
		DisclosureID string                      `json:"disclosure_id"`
		Application  disclosure.ResponseEnvelope `json:"application"`
	}
	decodeBody(t, rr, &app)
	if app.ID == "" || app.DisclosureID != id || len(app.Application.Claims) < 5 {
		t.Fatalf("unexpected application: %+v", app)
	}

	rr = doRequest(t, h, http.MethodGet, "/v1/applications/"+app.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get application status=%d", rr.Code)
	}

	rr = doRequest(t, h, http.MethodGet, "/v1/disclosures/"+id+"/applications", nil)
	var list struct {
		Applications []map[string]any `json:"applications"`
	}
	decodeBody(t, rr, &list)
	if len(list.Applications) != 1 {
		t.Fatalf("expected one application, got %d", len(list.Applications))
	}

	rr = doRequest(t, h, http.MethodGet, "/v1/disclosures?status=completed", nil)
	var listed struct {
		Disclosures []store.DisclosureRecord `json:"disclosures"`
	}
	decodeBody(t, rr, &listed)
	if len(listed.Disclosures) != 1 || listed.Disclosures[0].Disclosure.ID != id {
		t.Fatalf("expected completed disclosure in list, got %+v", listed.Disclosures)
	}

	req := httptest.NewRequest(http.MethodPut, "/v1/disclosures/"+id, strings.NewReader(`{"title":"changed"}`))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 editing a completed disclosure, got %d", rr.Code)
	}
}

func TestSubmitInvalidDisclosureKeepsDraft(t *testing.T) {
	ts := newServerForTest(t, nil)
	h := ts.handler

	body := validDisclosureBody()
	body["applicant_name"] = ""
	rr := postJSON(t, h, "/v1/disclosures", body)
	var created struct {
		Disclosure disclosure.Disclosure `json:"disclosure"`
	}
	decodeBody(t, rr, &created)
	id := created.Disclosure.ID

	rr = postJSON(t, h, "/v1/disclosures/"+id+"/submit", nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = doRequest(t, h, http.MethodGet, "/v1/disclosures/"+id, nil)
	var got struct {
		Disclosure disclosure.Disclosure        `json:"disclosure"`
		Validation *disclosure.ValidationResult `json:"validation"`
	}
	decodeBody(t, rr, &got)
	if got.Disclosure.Status != disclosure.StatusDraft {
		t.Fatalf("expected draft status, got %s", got.Disclosure.Status)
	}
	if got.Validation == nil || got.Validation.IsValid {
		t.Fatalf("expected stored failing validation, got %+v", got.Validation)
	}

	fixed := validDisclosureBody()
	blob, _ := json.Marshal(fixed)
	req := httptest.NewRequest(http.MethodPut, "/v1/disclosures/"+id, bytes.NewReader(blob))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = postJSON(t, h, "/v1/disclosures/"+id+"/submit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit after fix status=%d body=%s", rr.Code, rr.Body.String())
	}
}

// pausingStore blocks the first armed GetDisclosure after it has read the
// record, until release is closed.
type pausingStore struct {
	Store
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (p *pausingStore) GetDisclosure(ctx context.Context, id string) (*store.DisclosureRecord, error) {
	rec, err := p.Store.GetDisclosure(ctx, id)
	if p.armed.CompareAndSwap(true, false) {
		close(p.read)
		<-p.release
	}
	return rec, err
}

func TestEditRacingSubmitConflicts(t *testing.T) {
	paused := &pausingStore{read: make(chan struct{}), release: make(chan struct{})}
	ts := newServerForTest(t, func(d *Deps) {
		paused.Store = d.Store
		d.Store = paused
	})
	h := ts.handler

	rr := postJSON(t, h, "/v1/disclosures", validDisclosureBody())
	var created struct {
		Disclosure disclosure.Disclosure `json:"disclosure"`
	}
	decodeBody(t, rr, &created)
	id := created.Disclosure.ID

	edited := validDisclosureBody()
	edited["title"] = "Edited after submission title"
	blob, _ := json.Marshal(edited)
	paused.armed.Store(true)
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodPut, "/v1/disclosures/"+id, bytes.NewReader(blob))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		done <- rec
	}()

	<-paused.read
	rr = postJSON(t, h, "/v1/disclosures/"+id+"/submit", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit status=%d body=%s", rr.Code, rr.Body.String())
	}
	close(paused.release)

	put := <-done
	if put.Code != http.StatusConflict {
		t.Fatalf("expected 409 for the stale edit, got %d body=%s", put.Code, put.Body.String())
	}
	var payload errorPayload
	decodeBody(t, put, &payload)
	if payload.Error.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %q", payload.Error.Code)
	}

	rr = doRequest(t, h, http.MethodGet, "/v1/disclosures/"+id, nil)
	var got struct {
		Disclosure disclosure.Disclosure `json:"disclosure"`
	}
	decodeBody(t, rr, &got)
	if got.Disclosure.Status != disclosure.StatusSubmitted {
		t.Fatalf("expected submitted status, got %s", got.Disclosure.Status)
	}
	if got.Disclosure.Title != created.Disclosure.Title {
		t.Fatalf("stale edit overwrote title: %q", got.Disclosure.Title)
	}
}

func TestNotFound(t *testing.T) {
	ts := newServerForTest(t, nil)
	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/disclosures/missing"},
		{http.MethodPost, "/v1/disclosures/missing/submit"},
		{http.MethodGet, "/v1/disclosures/missing/applications"},
		{http.MethodGet, "/v1/applications/missing"},
		{http.MethodGet, "/v1/applications/missing/pdf"},
	} {
		rr := doRequest(t, ts.handler, tc.method, tc.path, nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, rr.Code)
		}
		var payload errorPayload
		decodeBody(t, rr, &payload)
		if payload.Error.Code != CodeNotFound {
			t.Fatalf("%s %s: expected not_found, got %q", tc.method, tc.path, payload.Error.Code)
		}
	}
}

func TestApplicationPDFIsCached(t *testing.T) {
	ts := newServerForTest(t, nil)
	h := ts.handler

	rr := postJSON(t, h, "/v1/disclosures", validDisclosureBody())
	var created struct {
		Disclosure disclosure.Disclosure `json:"disclosure"`
	}
	decodeBody(t, rr, &created)
	rr = postJSON(t, h, "/v1/disclosures/"+created.Disclosure.ID+"/applications", nil)
	var app struct {
		ID string `json:"id"`
	}
	decodeBody(t, rr, &app)

	for i := 0; i < 2; i++ {
		rr = doRequest(t, h, http.MethodGet, "/v1/applications/"+app.ID+"/pdf", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("pdf status=%d body=%s", rr.Code, rr.Body.String())
		}
		if rr.Header().Get("Content-Type") != "application/pdf" {
			t.Fatalf("unexpected content type %q", rr.Header().Get("Content-Type"))
		}
		if !strings.HasPrefix(rr.Body.String(), "%PDF") {
			t.Fatal("expected pdf bytes")
		}
	}
	if n := ts.renderer.calls.Load(); n != 1 {
		t.Fatalf("expected one render, got %d", n)
	}
}

func TestApplicationPDFRenderFailure(t *testing.T) {
	ts := newServerForTest(t, nil)
	ts.renderer.err = fmt.Errorf("chrome missing")
	h := ts.handler

	rr := postJSON(t, h, "/v1/disclosures", validDisclosureBody())
	var created struct {
		Disclosure disclosure.Disclosure `json:"disclosure"`
	}
	decodeBody(t, rr, &created)
	rr = postJSON(t, h, "/v1/disclosures/"+created.Disclosure.ID+"/applications", nil)
	var app struct {
		ID string `json:"id"`
	}
	decodeBody(t, rr, &app)

	rr = doRequest(t, h, http.MethodGet, "/v1/applications/"+app.ID+"/pdf", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestIntakeForm(t *testing.T) {
	ts := newServerForTest(t, nil)

	rr := postJSON(t, ts.handler, "/v1/intake/form", intake.FormInput{
		Title:                 "Adaptive exposure image recognition method",
		Inventors:             "Zhang San, Li Si",
		ApplicantName:         "Example Tech Co., Ltd.",
		TechnicalField:        "computer vision",
		BackgroundDescription: strings.Repeat("Existing recognizers lose accuracy in low light. ", 2),
		TechnicalProblems:     "low accuracy at night",
		TechnicalSolution:     "adaptive exposure correction before recognition",
		KeySteps:              "acquire; estimate; correct",
		BeneficialEffects:     "higher accuracy at night",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		Disclosure disclosure.Disclosure       `json:"disclosure"`
		Validation disclosure.ValidationResult `json:"validation"`
	}
	decodeBody(t, rr, &out)
	if len(out.Disclosure.Inventors) != 2 {
		t.Fatalf("expected two inventors, got %v", out.Disclosure.Inventors)
	}
	if !out.Validation.IsValid {
		t.Fatalf("expected valid form, errors=%v", out.Validation.Errors)
	}
}

func TestIntakeText(t *testing.T) {
	ts := newServerForTest(t, nil)

	text := "Title: Adaptive exposure image recognition method\n" +
		"Inventors: Zhang San\n" +
		"Technical field: computer vision\n"
	rr := postJSON(t, ts.handler, "/v1/intake/text", map[string]string{"text": text})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var out struct {
		Fields intake.FormInput `json:"fields"`
	}
	decodeBody(t, rr, &out)
	if out.Fields.Title != "Adaptive exposure image recognition method" {
		t.Fatalf("unexpected title %q", out.Fields.Title)
	}

	rr = postJSON(t, ts.handler, "/v1/intake/text", map[string]string{"text": "  "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newServerForTest(t, nil)
	_ = postJSON(t, ts.handler, "/v1/disclosures/draft", validDisclosureBody())

	rr := doRequest(t, ts.handler, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`drafter_drafts_total{outcome="drafted"} 1`,
		`drafter_http_requests_total{code="200",route="POST /v1/disclosures/draft"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}
