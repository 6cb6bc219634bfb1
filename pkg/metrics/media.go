package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upload outcomes.
const (
	UploadOutcomeStored    = "stored"
	UploadOutcomeDuplicate = "duplicate_resolved"
	UploadOutcomeRejected  = "rejected"
	UploadOutcomeFailed    = "failed"
)

// MediaMetrics records upload and backfill activity.
type MediaMetrics struct {
	uploads        *prometheus.CounterVec
	uploadBytes    *prometheus.HistogramVec
	uploadDuration *prometheus.HistogramVec
	backfillItems  *prometheus.CounterVec
	storageRetries prometheus.Counter
}

// NewMediaMetrics registers the media metrics on reg. A nil registerer yields
// a no-op recorder.
func NewMediaMetrics(reg prometheus.Registerer) *MediaMetrics {
	if reg == nil {
		return &MediaMetrics{}
	}
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castingly_media_uploads_total",
		Help: "Upload attempts by category and outcome.",
	}, []string{"category", "outcome"})
	uploadBytes := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "castingly_media_upload_bytes",
		Help:    "Size of accepted uploads.",
		Buckets: prometheus.ExponentialBuckets(64*1024, 4, 9),
	}, []string{"category"})
	uploadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "castingly_media_upload_duration_seconds",
		Help:    "Time spent delegating uploads to storage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"category"})
	backfillItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "castingly_media_backfill_items_total",
		Help: "Backfill items by outcome.",
	}, []string{"outcome"})
	storageRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "castingly_media_storage_rate_limited_total",
		Help: "Storage calls retried after a rate limit response.",
	})
	reg.MustRegister(uploads, uploadBytes, uploadDuration, backfillItems, storageRetries)
	return &MediaMetrics{
		uploads:        uploads,
		uploadBytes:    uploadBytes,
		uploadDuration: uploadDuration,
		backfillItems:  backfillItems,
		storageRetries: storageRetries,
	}
}

// ObserveUpload records one upload attempt.
func (m *MediaMetrics) ObserveUpload(category, outcome string, size int64, elapsed time.Duration) {
	if m == nil || m.uploads == nil {
		return
	}
	category = normalizeLabel(category)
	m.uploads.WithLabelValues(category, normalizeLabel(outcome)).Inc()
	if outcome == UploadOutcomeStored || outcome == UploadOutcomeDuplicate {
		m.uploadBytes.WithLabelValues(category).Observe(float64(size))
		m.uploadDuration.WithLabelValues(category).Observe(elapsed.Seconds())
	}
}

// AddBackfillItems adds n items with the given outcome (updated, skipped, error, planned).
func (m *MediaMetrics) AddBackfillItems(outcome string, n int) {
	if m == nil || m.backfillItems == nil || n <= 0 {
		return
	}
	m.backfillItems.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

// IncRateLimited counts one rate-limited storage call that will be retried.
func (m *MediaMetrics) IncRateLimited() {
	if m == nil || m.storageRetries == nil {
		return
	}
	m.storageRetries.Inc()
}
