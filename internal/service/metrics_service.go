package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the recognition pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	sessionsTotal       *prometheus.CounterVec
	facesDetected       prometheus.Counter
	studentsMatched     prometheus.Counter
	recognitionFailures prometheus.Counter
	emotionFailures     prometheus.Counter

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// Attendance session outcomes recorded on attendance_sessions_total.
const (
	SessionOutcomeOK       = "ok"
	SessionOutcomeDegraded = "degraded"
)

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sessionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_sessions_total",
		Help: "Attendance sessions committed, by outcome",
	}, []string{"outcome"})

	facesDetected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_faces_detected_total",
		Help: "Faces detected across classroom photos",
	})

	studentsMatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_students_matched_total",
		Help: "Students matched to a detected face",
	})

	recognitionFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_recognition_failures_total",
		Help: "Face recognition failures during attendance passes",
	})

	emotionFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_emotion_failures_total",
		Help: "Emotion analysis failures during attendance passes",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_cache_hits_total",
		Help: "Roster cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_cache_misses_total",
		Help: "Roster cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sessionsTotal, facesDetected,
		studentsMatched, recognitionFailures, emotionFailures, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		sessionsTotal:       sessionsTotal,
		facesDetected:       facesDetected,
		studentsMatched:     studentsMatched,
		recognitionFailures: recognitionFailures,
		emotionFailures:     emotionFailures,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveSession records one committed attendance session.
func (m *MetricsService) ObserveSession(outcome string, facesDetected, studentsMatched int) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(outcome).Inc()
	m.facesDetected.Add(float64(facesDetected))
	m.studentsMatched.Add(float64(studentsMatched))
}

// RecordRecognitionFailure counts a failed face recognition pass.
func (m *MetricsService) RecordRecognitionFailure() {
	if m == nil {
		return
	}
	m.recognitionFailures.Inc()
}

// RecordEmotionFailure counts a failed emotion analysis pass.
func (m *MetricsService) RecordEmotionFailure() {
	if m == nil {
		return
	}
	m.emotionFailures.Inc()
}

// RecordCacheOperation records a roster cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
