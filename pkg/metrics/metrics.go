package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Medium responses around 700ms (500ms - 2s) ---
	750, 1000, 1250, 1500, 1750, 2000,

	// --- Slow responses (2s - 15s) ---
	2500, 3000, 4000, 5000, 7500, 10000, 15000,

	// --- Extended range: covers 60000ms+ (15s - 75s) ---
	20000,  // 20s
	30000,  // 30s
	45000,  // 45s
	60000,  // 60s
	75000,  // 75s
	90000,  // 90s
	120000, // 120s
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "gauge_vec":
		metric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "gauge":
		metric = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
			m.Args,
		)
	case "histogram":
		metric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
		)
	case "summary_vec":
		metric = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "summary":
		metric = prometheus.NewSummary(
			prometheus.SummaryOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	}
	return metric
}

// MetricsBusinessProcess measures store and gateway calls, labelled by
// component ("gateway", "cache", "durable") and operation.
var MetricsBusinessProcess = &Metric{
	ID:          "bpDur",
	Name:        "bp_dur",
	Description: "process latency in milliseconds",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype", "result"},
}

var MetricsWebhook = &Metric{
	ID:          "webhookCnt",
	Name:        "webhook_total",
	Description: "Reconciliation outcomes partitioned by reason and trigger source.",
	Type:        "counter_vec",
	Args:        []string{"reason", "source"},
}

var MetricsSessionCreated = &Metric{
	ID:          "sessionCnt",
	Name:        "session_created_total",
	Description: "Payment session creation attempts partitioned by result.",
	Type:        "counter_vec",
	Args:        []string{"result"},
}

// BusinessMetrics are registered next to the standard HTTP metrics.
var BusinessMetrics = []*Metric{
	MetricsBusinessProcess,
	MetricsWebhook,
	MetricsSessionCreated,
}

const (
	RefererKey = "X-Referer"
)

// ObserveBusinessProcess records the latency of one call. It is a no-op until
// the metric has been registered.
func ObserveBusinessProcess(typ, subtype string, start time.Time, err error) {
	h, ok := MetricsBusinessProcess.MetricCollector.(*prometheus.HistogramVec)
	if !ok {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	h.WithLabelValues(typ, subtype, result).Observe(MillisecondsSince(start))
}

func IncWebhook(reason, source string) {
	if c, ok := MetricsWebhook.MetricCollector.(*prometheus.CounterVec); ok {
		c.WithLabelValues(reason, source).Inc()
	}
}

func IncSessionCreated(result string) {
	if c, ok := MetricsSessionCreated.MetricCollector.(*prometheus.CounterVec); ok {
		c.WithLabelValues(result).Inc()
	}
}

func MillisecondsSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

func computeApproximateRequestSize(r *http.Request) int {
	s := 0
	if r.URL != nil {
		s = len(r.URL.Path)
	}
	s += len(r.Method)
	s += len(r.Proto)
	for name, values := range r.Header {
		s += len(name)
		for _, value := range values {
			s += len(value)
		}
	}
	s += len(r.Host)
	if r.ContentLength != -1 {
		s += int(r.ContentLength)
	}
	return s
}
