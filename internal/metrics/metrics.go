package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	PathModel    = "model"
	PathFallback = "fallback"
)

// Metrics holds the counters for one run on a private registry. A batch job
// has nothing to scrape, so the registry is pushed once when the run ends.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesProcessed prometheus.Counter
	ResultsInserted   prometheus.Counter
	Classifications   *prometheus.CounterVec
	MessagesSkipped   prometheus.Counter
	BatchDuration     prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		MessagesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobmail_messages_processed_total",
			Help: "Messages listed and handed to the classifier",
		}),
		ResultsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobmail_results_inserted_total",
			Help: "Classification results newly written to storage",
		}),
		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jobmail_classifications_total",
			Help: "Classifications by the path that produced them",
		}, []string{"path"}),
		MessagesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "jobmail_messages_skipped_total",
			Help: "Messages whose content could not be retrieved",
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobmail_batch_duration_seconds",
			Help:    "Time to fetch, classify and store one page",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
		}),
	}
}

// RecordClassification counts one classification by path.
func (m *Metrics) RecordClassification(fallback bool) {
	path := PathModel
	if fallback {
		path = PathFallback
	}
	m.Classifications.WithLabelValues(path).Inc()
}

func (m *Metrics) RecordBatch(duration time.Duration, inserted int) {
	m.BatchDuration.Observe(duration.Seconds())
	m.ResultsInserted.Add(float64(inserted))
}

// Push sends the registry to a Prometheus Pushgateway.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
