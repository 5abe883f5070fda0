package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PayoutWorkerMetrics records throughput of the payout batch worker.
type PayoutWorkerMetrics struct {
	processed *prometheus.CounterVec
	requeued  prometheus.Counter
	batchSize prometheus.Histogram
	duration  prometheus.Histogram
}

// NewPayoutWorkerMetrics registers the payout worker metrics on the provided registerer.
func NewPayoutWorkerMetrics(reg prometheus.Registerer) *PayoutWorkerMetrics {
	if reg == nil {
		return &PayoutWorkerMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_batches_processed",
		Help: "Payout batches processed by terminal status.",
	}, []string{"status"})
	requeued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payout_items_requeued",
		Help: "Payout items requeued after their visibility timeout lapsed.",
	})
	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payout_batch_item_count",
		Help:    "Number of items grouped into each payout batch.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payout_batch_duration_seconds",
		Help:    "Wall time spent settling a payout batch.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(processed, requeued, batchSize, duration)
	return &PayoutWorkerMetrics{
		processed: processed,
		requeued:  requeued,
		batchSize: batchSize,
		duration:  duration,
	}
}

// IncProcessed increments the processed counter for the given terminal status.
func (p *PayoutWorkerMetrics) IncProcessed(status string) {
	if p == nil || p.processed == nil {
		return
	}
	p.processed.WithLabelValues(normalizeLabel(status)).Inc()
}

// AddRequeued records items returned to the queue by the stalled-job sweep.
func (p *PayoutWorkerMetrics) AddRequeued(count int) {
	if p == nil || p.requeued == nil || count <= 0 {
		return
	}
	p.requeued.Add(float64(count))
}

// ObserveBatchSize records how many items a batch carried.
func (p *PayoutWorkerMetrics) ObserveBatchSize(count int) {
	if p == nil || p.batchSize == nil {
		return
	}
	p.batchSize.Observe(float64(count))
}

// ObserveBatchDuration records the settle duration for a batch.
func (p *PayoutWorkerMetrics) ObserveBatchDuration(d time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.Observe(d.Seconds())
}
