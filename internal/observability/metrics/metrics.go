package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "monitor_"

	resultSuccess = "success"
	resultError   = "error"
	resultPartial = "partial"
	resultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	tickTotal       *prometheus.CounterVec
	tickLatency     prometheus.Histogram
	samplesWritten  *prometheus.CounterVec
	rotationTotal   *prometheus.CounterVec
	rotationLatency prometheus.Histogram

	cycleTotal        *prometheus.CounterVec
	cycleLatency      prometheus.Histogram
	notificationsSent *prometheus.CounterVec
	marksCleared      *prometheus.CounterVec
	subjectLevels     *prometheus.GaugeVec
)

// Init registers monitor metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		tickTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "activity_ticks_total",
				Help: "Total activity recording ticks by result",
			},
			[]string{"result"},
		)
		tickLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "activity_tick_latency_seconds",
			Help:    "Activity recording tick latency in seconds",
			Buckets: prometheus.DefBuckets,
		})
		samplesWritten = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "activity_samples_total",
				Help: "Total activity samples by result",
			},
			[]string{"result"},
		)
		rotationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "activity_rotations_total",
				Help: "Total day rotations by result",
			},
			[]string{"result"},
		)
		rotationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "activity_rotation_latency_seconds",
			Help:    "Day rotation latency in seconds",
			Buckets: prometheus.DefBuckets,
		})

		cycleTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_cycles_total",
				Help: "Total notification dispatch cycles by result",
			},
			[]string{"result"},
		)
		cycleLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "notification_cycle_latency_seconds",
			Help:    "Notification dispatch cycle latency in seconds",
			Buckets: prometheus.DefBuckets,
		})
		notificationsSent = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_subjects_sent_total",
				Help: "Total subjects included in sent notifications by kind",
			},
			[]string{"kind"},
		)
		marksCleared = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_marks_cleared_total",
				Help: "Total notification marks cleared by reason",
			},
			[]string{"reason"},
		)
		subjectLevels = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "subjects_by_level",
				Help: "Subjects per alert level from the latest dispatch cycle",
			},
			[]string{"kind", "level"},
		)

		prometheus.MustRegister(
			tickTotal,
			tickLatency,
			samplesWritten,
			rotationTotal,
			rotationLatency,
			cycleTotal,
			cycleLatency,
			notificationsSent,
			marksCleared,
			subjectLevels,
		)

		if db != nil {
			prometheus.MustRegister(
				storedCountGauge(db, logger, "activity_records", "Stored activity buffers",
					"SELECT COUNT(*) FROM activity_records"),
				storedCountGauge(db, logger, "notification_marks_active", "Unexpired notification marks",
					"SELECT COUNT(*) FROM notification_marks WHERE expires_at > now()"),
			)
		}
	})
}

// storedCountGauge reports a row count read at scrape time. Query failures read as zero.
func storedCountGauge(db *sql.DB, logger *log.Logger, name, help, query string) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: metricPrefix + name, Help: help},
		func() float64 {
			var count int64
			if err := db.QueryRow(query).Scan(&count); err != nil {
				if logger != nil {
					logger.Printf("metrics query failed: %s: %v", name, err)
				}
				return 0
			}
			return float64(max(count, 0))
		},
	)
}

// ObserveTick records a recording tick.
func ObserveTick(recorded, failed int, duration time.Duration) {
	result := resultSuccess
	switch {
	case failed > 0 && recorded == 0:
		result = resultError
	case failed > 0:
		result = resultPartial
	}
	if tickTotal != nil {
		tickTotal.WithLabelValues(result).Inc()
	}
	if tickLatency != nil {
		tickLatency.Observe(duration.Seconds())
	}
	if samplesWritten != nil {
		if recorded > 0 {
			samplesWritten.WithLabelValues(resultSuccess).Add(float64(recorded))
		}
		if failed > 0 {
			samplesWritten.WithLabelValues(resultError).Add(float64(failed))
		}
	}
}

// ObserveRotation records a day rotation.
func ObserveRotation(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if rotationTotal != nil {
		rotationTotal.WithLabelValues(result).Inc()
	}
	if rotationLatency != nil {
		rotationLatency.Observe(duration.Seconds())
	}
}

// ObserveCycle records a dispatch cycle.
func ObserveCycle(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if cycleTotal != nil {
		cycleTotal.WithLabelValues(result).Inc()
	}
	if cycleLatency != nil {
		cycleLatency.Observe(duration.Seconds())
	}
}

// AddNotificationsSent counts subjects included in a sent message.
func AddNotificationsSent(kind string, count int) {
	if count <= 0 {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	if notificationsSent != nil {
		notificationsSent.WithLabelValues(kind).Add(float64(count))
	}
}

// AddMarksCleared counts cleared marks.
func AddMarksCleared(reason string, count int) {
	if count <= 0 {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	if marksCleared != nil {
		marksCleared.WithLabelValues(reason).Add(float64(count))
	}
}

// SetSubjectLevels publishes the level distribution for a subject kind.
func SetSubjectLevels(kind string, counts map[string]int) {
	if subjectLevels == nil {
		return
	}
	for level, count := range counts {
		subjectLevels.WithLabelValues(kind, level).Set(float64(count))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultPartial = resultPartial
	ResultSkipped = resultSkipped
)
