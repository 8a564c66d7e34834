package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "drafter"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Validations       *prometheus.CounterVec
	Drafts            *prometheus.CounterVec
	CompletenessScore prometheus.Histogram
	ClaimsPerDraft    prometheus.Histogram
	HTTPRequests      *prometheus.CounterVec
	PDFRenders        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Disclosure validations by outcome.",
		}, []string{"outcome"}),
		Drafts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_total",
			Help:      "Application drafting attempts by outcome.",
		}, []string{"outcome"}),
		CompletenessScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completeness_score",
			Help:      "Completeness score of validated disclosures.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		ClaimsPerDraft: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "claims_per_draft",
			Help:      "Number of claims in each drafted application.",
			Buckets:   []float64{5, 6, 7, 8},
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		PDFRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pdf_renders_total",
			Help:      "PDF renders by outcome (rendered, cached, failed).",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		m.Validations,
		m.Drafts,
		m.CompletenessScore,
		m.ClaimsPerDraft,
		m.HTTPRequests,
		m.PDFRenders,
		prometheus.NewGoCollector(),
	)
	return m
}

// ObserveValidation records one validation result.
func (m *Metrics) ObserveValidation(valid bool, score float64) {
	outcome := "invalid"
	if valid {
		outcome = "valid"
	}
	m.Validations.WithLabelValues(outcome).Inc()
	m.CompletenessScore.Observe(score)
}

// ObserveDraft records one drafting attempt. claims is ignored for rejected
// drafts.
func (m *Metrics) ObserveDraft(drafted bool, claims int) {
	if !drafted {
		m.Drafts.WithLabelValues("rejected").Inc()
		return
	}
	m.Drafts.WithLabelValues("drafted").Inc()
	m.ClaimsPerDraft.Observe(float64(claims))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
