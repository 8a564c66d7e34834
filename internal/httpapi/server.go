package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/joelkehle/disclosure-drafter/internal/disclosure"
	"github.com/joelkehle/disclosure-drafter/internal/intake"
	"github.com/joelkehle/disclosure-drafter/internal/render"
	"github.com/joelkehle/disclosure-drafter/internal/store"
	"github.com/joelkehle/disclosure-drafter/internal/telemetry"
)

const (
	defaultMaxBodyBytes = 1 << 20
	defaultPDFCacheSize = 64
)

// Store is the persistence the API needs. *store.SQLiteStore satisfies it.
type Store interface {
	Ping(ctx context.Context) error
	CreateDisclosure(ctx context.Context, d *disclosure.Disclosure) (*disclosure.Disclosure, error)
	UpdateDisclosure(ctx context.Context, d *disclosure.Disclosure, validation *disclosure.ValidationResult, from disclosure.Status) error
	GetDisclosure(ctx context.Context, id string) (*store.DisclosureRecord, error)
	ListDisclosures(ctx context.Context, status disclosure.Status) ([]store.DisclosureRecord, error)
	SaveApplication(ctx context.Context, disclosureID string, app disclosure.RenderedApplication) (*store.Application, error)
	GetApplication(ctx context.Context, id string) (*store.Application, error)
	ListApplications(ctx context.Context, disclosureID string) ([]store.Application, error)
}

type Polisher interface {
	PolishDisclosure(ctx context.Context, d *disclosure.Disclosure) (*disclosure.Disclosure, error)
}

type Extractor interface {
	Extract(ctx context.Context, text string) intake.FormInput
}

type Deps struct {
	Store    Store
	Renderer render.Renderer
	Metrics  *telemetry.Metrics
	Logger   *zap.Logger
	// Polisher and Extractor are optional. Without a polisher ?polish=true is
	// ignored; without an extractor free text goes through label matching.
	Polisher  Polisher
	Extractor Extractor

	MaxBodyBytes int64
	PDFCacheSize int
	Clock        func() time.Time
}

type Server struct {
	store     Store
	renderer  render.Renderer
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	polisher  Polisher
	extractor Extractor
	maxBody   int64
	now       func() time.Time
	pdfs      *lru.Cache[string, []byte]
}

func NewServer(deps Deps) (http.Handler, error) {
	s := &Server{
		store:     deps.Store,
		renderer:  deps.Renderer,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		polisher:  deps.Polisher,
		extractor: deps.Extractor,
		maxBody:   deps.MaxBodyBytes,
		now:       deps.Clock,
	}
	if s.metrics == nil {
		s.metrics = telemetry.NewMetrics()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBodyBytes
	}
	if s.now == nil {
		s.now = time.Now
	}
	size := deps.PDFCacheSize
	if size <= 0 {
		size = defaultPDFCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	s.pdfs = cache

	mux := http.NewServeMux()
	s.handle(mux, "GET /v1/health", s.handleHealth)
	s.handle(mux, "GET /v1/template", s.handleTemplate)
	s.handle(mux, "POST /v1/disclosures/validate", s.handleValidate)
	s.handle(mux, "POST /v1/disclosures/draft", s.handleDraft)
	s.handle(mux, "POST /v1/disclosures", s.handleCreateDisclosure)
	s.handle(mux, "GET /v1/disclosures", s.handleListDisclosures)
	s.handle(mux, "GET /v1/disclosures/{id}", s.handleGetDisclosure)
	s.handle(mux, "PUT /v1/disclosures/{id}", s.handleUpdateDisclosure)
	s.handle(mux, "POST /v1/disclosures/{id}/submit", s.handleSubmit)
	s.handle(mux, "POST /v1/disclosures/{id}/applications", s.handleDraftStored)
	s.handle(mux, "GET /v1/disclosures/{id}/applications", s.handleListApplications)
	s.handle(mux, "GET /v1/applications/{id}", s.handleGetApplication)
	s.handle(mux, "GET /v1/applications/{id}/pdf", s.handleApplicationPDF)
	s.handle(mux, "POST /v1/intake/form", s.handleIntakeForm)
	s.handle(mux, "POST /v1/intake/text", s.handleIntakeText)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// handle wraps h with a span, a request counter and an access log line.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := telemetry.Tracer().Start(r.Context(), pattern)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		if rec.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		s.metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug("request",
			zap.String("route", pattern),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	e := asError(err)
	if e.Status >= 500 {
		s.logger.Error("request failed", zap.Error(err))
	}
	payload := map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
		},
	}
	if e.Validation != nil {
		payload["validation"] = e.Validation
	}
	writeJSON(w, e.Status, payload)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(blob)) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func (s *Server) decodeDisclosure(w http.ResponseWriter, r *http.Request) (*disclosure.Disclosure, error) {
	blob, err := s.readBody(w, r)
	if err != nil {
		return nil, err
	}
	d, err := intake.Decode(bytes.NewReader(blob), intake.FormatJSON)
	if err != nil {
		return nil, newError(CodeValidation, err.Error())
	}
	return d, nil
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	blob, err := s.readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		return newError(CodeValidation, "invalid json: "+err.Error())
	}
	return nil
}

func (s *Server) validate(d *disclosure.Disclosure) (disclosure.ValidationResult, error) {
	res, err := disclosure.Validate(d)
	if err != nil {
		return res, err
	}
	s.metrics.ObserveValidation(res.IsValid, res.CompletenessScore)
	return res, nil
}

// draft polishes d when asked to and runs the pipeline.
func (s *Server) draft(ctx context.Context, d *disclosure.Disclosure, polish bool) (disclosure.RenderedApplication, error) {
	if polish && s.polisher != nil {
		polished, err := s.polisher.PolishDisclosure(ctx, d)
		if err != nil {
			s.logger.Warn("polish failed, drafting from original text", zap.Error(err))
		} else {
			d = polished
		}
	}
	app, err := disclosure.ProcessWithProgress(d, func(stage, message string) {
		s.logger.Debug("pipeline", zap.String("stage", stage), zap.String("message", message))
	})
	s.metrics.ObserveValidation(app.Validation.IsValid, app.Validation.CompletenessScore)
	s.metrics.ObserveDraft(err == nil, len(app.Claims))
	return app, err
}

func wantPolish(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("polish"))
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeError(w, newError(CodeUnavailable, "store: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "time": s.now().UTC()})
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/plain") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, disclosure.Template())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "template": disclosure.Template()})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	d, err := s.decodeDisclosure(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.validate(d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"validation": res,
		"report":     disclosure.FormatValidationReport(res),
	})
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.decodeDisclosure(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	app, err := s.draft(r.Context(), d, wantPolish(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disclosure.BuildResponse(app))
}

func (s *Server) handleCreateDisclosure(w http.ResponseWriter, r *http.Request) {
	d, err := s.decodeDisclosure(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.store.CreateDisclosure(r.Context(), d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.validate(created)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.UpdateDisclosure(r.Context(), created, &res, disclosure.StatusDraft); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "disclosure": created, "validation": res})
}

func (s *Server) handleListDisclosures(w http.ResponseWriter, r *http.Request) {
	status := disclosure.Status(r.URL.Query().Get("status"))
	records, err := s.store.ListDisclosures(r.Context(), status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []store.DisclosureRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "disclosures": records})
}

func (s *Server) handleGetDisclosure(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetDisclosure(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "disclosure": rec.Disclosure, "validation": rec.Validation})
}

// handleUpdateDisclosure replaces the content of a draft. Submitted and
// completed disclosures are frozen.
func (s *Server) handleUpdateDisclosure(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.store.GetDisclosure(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rec.Disclosure.Status != disclosure.StatusDraft {
		s.writeError(w, notDraft(id, rec.Disclosure.Status, "edited"))
		return
	}
	d, err := s.decodeDisclosure(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	d.ID = id
	d.Status = disclosure.StatusDraft
	d.CreatedAt = rec.Disclosure.CreatedAt
	res, err := s.validate(d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.UpdateDisclosure(r.Context(), d, &res, disclosure.StatusDraft); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "disclosure": d, "validation": res})
}

func notDraft(id string, status disclosure.Status, action string) *Error {
	return newError(CodeConflict, "disclosure "+id+" is "+string(status)+" and can no longer be "+action)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.store.GetDisclosure(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rec.Disclosure.Status != disclosure.StatusDraft {
		s.writeError(w, notDraft(id, rec.Disclosure.Status, "submitted"))
		return
	}
	submitted, err := disclosure.Submit(rec.Disclosure, s.now())
	var gateErr *disclosure.GateError
	if errors.As(err, &gateErr) {
		s.metrics.ObserveValidation(false, gateErr.Result.CompletenessScore)
		// Keep the latest findings so the inventor can see what to fix.
		if uerr := s.store.UpdateDisclosure(r.Context(), rec.Disclosure, &gateErr.Result, disclosure.StatusDraft); uerr != nil {
			s.writeError(w, uerr)
			return
		}
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.validate(submitted)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.UpdateDisclosure(r.Context(), submitted, &res, disclosure.StatusDraft); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "disclosure": submitted, "validation": res})
}

// handleDraftStored drafts an application for a stored disclosure and keeps it.
func (s *Server) handleDraftStored(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetDisclosure(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	app, err := s.draft(r.Context(), rec.Disclosure, wantPolish(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	saved, err := s.store.SaveApplication(r.Context(), rec.Disclosure.ID, app)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, applicationPayload(saved))
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.store.GetDisclosure(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	apps, err := s.store.ListApplications(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(apps))
	for i := range apps {
		out = append(out, applicationPayload(&apps[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "applications": out})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := s.store.GetApplication(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, applicationPayload(app))
}

func applicationPayload(app *store.Application) map[string]any {
	return map[string]any{
		"ok":            true,
		"id":            app.ID,
		"disclosure_id": app.DisclosureID,
		"created_at":    app.CreatedAt,
		"application":   disclosure.BuildResponse(app.Rendered),
	}
}

func (s *Server) handleApplicationPDF(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	pdf, ok := s.pdfs.Get(id)
	if ok {
		s.metrics.PDFRenders.WithLabelValues("cached").Inc()
	} else {
		if s.renderer == nil {
			s.writeError(w, newError(CodeUnavailable, "pdf rendering is not configured"))
			return
		}
		app, err := s.store.GetApplication(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		pdf, err = s.renderer.Render(r.Context(), disclosure.BuildResponse(app.Rendered))
		if err != nil {
			s.metrics.PDFRenders.WithLabelValues("failed").Inc()
			s.writeError(w, newError(CodeUnavailable, "render pdf: "+err.Error()))
			return
		}
		s.metrics.PDFRenders.WithLabelValues("rendered").Inc()
		s.pdfs.Add(id, pdf)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="application-`+id+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (s *Server) handleIntakeForm(w http.ResponseWriter, r *http.Request) {
	var in intake.FormInput
	if err := s.decodeJSON(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeIntake(w, in)
}

func (s *Server) handleIntakeText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, newError(CodeValidation, "text is required"))
		return
	}
	var in intake.FormInput
	if s.extractor != nil {
		in = s.extractor.Extract(r.Context(), req.Text)
	} else {
		in = intake.ExtractFields(intake.CleanText(req.Text))
	}
	s.writeIntake(w, in)
}

func (s *Server) writeIntake(w http.ResponseWriter, in intake.FormInput) {
	d := intake.ParseForm(in, s.now())
	res, err := s.validate(d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"fields":     in,
		"disclosure": d,
		"validation": res,
		"report":     disclosure.FormatValidationReport(res),
	})
}
