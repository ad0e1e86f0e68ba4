package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "sheetsink_"

type Metrics struct {
	recordsEnqueued     prometheus.Counter
	requestsRequeued    prometheus.Counter
	batchesDispatched   prometheus.Counter
	batchesFailed       prometheus.Counter
	batchSize           prometheus.Histogram
	backpressureWaits   prometheus.Counter
	dimensionExtensions *prometheus.CounterVec
	remoteCalls         *prometheus.CounterVec
	remoteRetries       *prometheus.CounterVec
	queueLength         prometheus.Gauge
	busyWorkers         prometheus.Gauge
}

// Metrics are registered with the default registry, so there must only ever be one instance per process.
var m = NewMetrics(MetricsPrefix)

func Get() *Metrics {
	return m
}

func NewMetrics(prefix string) *Metrics {
	return &Metrics{
		recordsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "records_enqueued",
			Help: "Number of pending write requests placed on the queue",
		}),
		requestsRequeued: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "requests_requeued",
			Help: "Number of pending write requests returned to the queue because no worker was free",
		}),
		batchesDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "batches_dispatched",
			Help: "Number of batches handed to a worker",
		}),
		batchesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "batches_failed",
			Help: "Number of batches whose remote update failed",
		}),
		batchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "batch_size",
			Help:    "Number of pending write requests per dispatched batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		backpressureWaits: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "backpressure_waits",
			Help: "Number of times the producer waited because the queue was over its threshold",
		}),
		dimensionExtensions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "dimension_extensions",
			Help: "Number of sheet dimension extensions grouped by axis",
		}, []string{"dimension"}),
		remoteCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "remote_calls",
			Help: "Number of remote spreadsheet API calls grouped by operation",
		}, []string{"operation"}),
		remoteRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "remote_retries",
			Help: "Number of retried remote spreadsheet API calls grouped by operation",
		}, []string{"operation"}),
		queueLength: promauto.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "queue_length",
			Help: "Number of pending write requests waiting for a batch",
		}),
		busyWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "busy_workers",
			Help: "Number of workers currently flushing a batch",
		}),
	}
}

func (m *Metrics) RecordEnqueued() {
	m.recordsEnqueued.Inc()
}

func (m *Metrics) RecordRequeued(n int) {
	m.requestsRequeued.Add(float64(n))
}

func (m *Metrics) RecordBatchDispatched(size int) {
	m.batchesDispatched.Inc()
	m.batchSize.Observe(float64(size))
}

func (m *Metrics) RecordBatchFailed() {
	m.batchesFailed.Inc()
}

func (m *Metrics) RecordBackpressureWait() {
	m.backpressureWaits.Inc()
}

func (m *Metrics) RecordDimensionExtension(dimension string) {
	m.dimensionExtensions.With(map[string]string{"dimension": dimension}).Inc()
}

func (m *Metrics) RecordRemoteCall(operation string) {
	m.remoteCalls.With(map[string]string{"operation": operation}).Inc()
}

func (m *Metrics) RecordRemoteRetry(operation string) {
	m.remoteRetries.With(map[string]string{"operation": operation}).Inc()
}

func (m *Metrics) SetQueueLength(n int) {
	m.queueLength.Set(float64(n))
}

func (m *Metrics) WorkerStarted() {
	m.busyWorkers.Inc()
}

func (m *Metrics) WorkerFinished() {
	m.busyWorkers.Dec()
}
