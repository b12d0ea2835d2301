package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lamim/testforge/pkg/models"
)

var (
	// Pipeline metrics
	responsesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testforge_responses_total",
			Help: "Model responses processed by shape and validity",
		},
		[]string{"shape", "valid"},
	)

	extractionMethods = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testforge_extraction_total",
			Help: "Extraction outcomes by strategy (\"none\" when nothing was found)",
		},
		[]string{"method"},
	)

	issuesReported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testforge_issues_total",
			Help: "Validation issues by severity and code",
		},
		[]string{"severity", "code"},
	)

	recordsRepaired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testforge_records_total",
			Help: "Records passed through the repairer by shape and outcome",
		},
		[]string{"shape", "outcome"}, // "clean" or "repaired"
	)

	fieldRepairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testforge_field_repairs_total",
			Help: "Field-level repairs by kind",
		},
		[]string{"kind"}, // "missing", "type_error", "converted"
	)

	schemaFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testforge_schema_failures_total",
			Help: "Repaired records that failed the JSON Schema check",
		},
		[]string{"shape"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testforge_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		},
		[]string{"stage"}, // "extract", "validate", "repair", "total"
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "testforge_active_workers",
			Help: "Number of active batch workers",
		},
	)

	// API metrics
	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testforge_api_request_duration_seconds",
			Help:    "API request duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"model", "status"},
	)

	rateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "testforge_rate_limiter_wait_duration_seconds",
			Help:    "Rate limiter wait duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
		[]string{"model"},
	)

	tokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testforge_tokens_total",
			Help: "Tokens reported by the model API",
		},
		[]string{"model", "kind"}, // "prompt", "completion"
	)

	truncatedCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "testforge_truncated_completions_total",
			Help: "Completions that stopped at the token limit",
		},
		[]string{"model"},
	)
)

// Collector provides convenience methods for recording metrics. A nil
// *Collector is valid and records nothing.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		logger: logger.With("component", "metrics"),
	}
}

// Handler exposes the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordResponse counts one processed response
func (c *Collector) RecordResponse(shape models.Shape, valid bool) {
	if c == nil {
		return
	}
	responsesProcessed.WithLabelValues(string(shape), boolLabel(valid)).Inc()
}

// RecordExtraction counts the strategy that produced a payload; an empty
// method means extraction failed
func (c *Collector) RecordExtraction(method models.ExtractionMethod) {
	if c == nil {
		return
	}
	label := string(method)
	if label == "" {
		label = "none"
	}
	extractionMethods.WithLabelValues(label).Inc()
}

// RecordIssues counts issues by severity and code
func (c *Collector) RecordIssues(issues []models.Issue) {
	if c == nil {
		return
	}
	for _, issue := range issues {
		issuesReported.WithLabelValues(string(issue.Severity), issue.Code).Inc()
	}
}

// RecordRepairs counts records and field repairs from a batch of processing logs
func (c *Collector) RecordRepairs(shape models.Shape, logs []models.ProcessingLog) {
	if c == nil {
		return
	}
	for _, log := range logs {
		outcome := "clean"
		if log.Repaired() {
			outcome = "repaired"
		}
		recordsRepaired.WithLabelValues(string(shape), outcome).Inc()
		fieldRepairs.WithLabelValues("missing").Add(float64(len(log.MissingFields)))
		fieldRepairs.WithLabelValues("type_error").Add(float64(len(log.TypeErrors)))
		fieldRepairs.WithLabelValues("converted").Add(float64(len(log.ConvertedFields)))
	}
}

// RecordSchemaFailure counts a repaired record that failed the schema check
func (c *Collector) RecordSchemaFailure(shape models.Shape) {
	if c == nil {
		return
	}
	schemaFailures.WithLabelValues(string(shape)).Inc()
}

// RecordStage records a pipeline stage duration
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	if c == nil {
		return
	}
	stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// AddActiveWorkers adjusts the active worker gauge by delta
func (c *Collector) AddActiveWorkers(delta int) {
	if c == nil {
		return
	}
	activeWorkers.Add(float64(delta))
}

// RecordAPIRequest records an API request duration
func (c *Collector) RecordAPIRequest(model string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	apiRequestDuration.WithLabelValues(model, boolLabel(success)).Observe(duration.Seconds())
}

// RecordRateLimiterWait records rate limiter wait time
func (c *Collector) RecordRateLimiterWait(model string, duration time.Duration) {
	if c == nil {
		return
	}
	rateLimiterWaitDuration.WithLabelValues(model).Observe(duration.Seconds())
	if duration > time.Second {
		c.logger.Debug("Rate limiter wait", "model", model, "duration", duration)
	}
}

// RecordCompletion records token usage and whether the completion hit the token limit
func (c *Collector) RecordCompletion(model string, promptTokens, completionTokens int, truncated bool) {
	if c == nil {
		return
	}
	tokensUsed.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	tokensUsed.WithLabelValues(model, "completion").Add(float64(completionTokens))
	if truncated {
		truncatedCompletions.WithLabelValues(model).Inc()
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
