package observer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/anime-shed/ingrediscan-go/internal/logger"
)

// AnalysisEvent represents a stage transition of one analysis request
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id,omitempty"`
	Stage          string                 `json:"stage,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorType      string                 `json:"error_type,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// AnalysisStarted when a request enters the pipeline
	AnalysisStarted EventType = "analysis_started"
	// ImageDecoded when the payload became a bitmap
	ImageDecoded EventType = "image_decoded"
	// OCRDegraded when text extraction failed and the pipeline continued without it
	OCRDegraded EventType = "ocr_degraded"
	// ModelInvoked when the model returned a reply
	ModelInvoked EventType = "model_invoked"
	// AnalysisCompleted when a canonical result was produced
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when the pipeline ended in a classified failure
	AnalysisFailed EventType = "analysis_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"processing_time": event.ProcessingTime.String(),
		"success":         event.Success,
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.Stage != "" {
		fields["stage"] = event.Stage
	}
	if event.ErrorType != "" {
		fields["error_type"] = event.ErrorType
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Info("Label analysis started")
	case ImageDecoded:
		entry.Debug("Image decoded")
	case OCRDegraded:
		entry.Warn("OCR unavailable, continuing without text")
	case ModelInvoked:
		entry.Debug("Model replied")
	case AnalysisCompleted:
		entry.Info("Label analysis completed")
	case AnalysisFailed:
		entry.Warn("Label analysis failed")
	default:
		entry.Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// latencyWindow is the number of recent durations kept for statistics
const latencyWindow = 1024

// MetricsObserver collects counters and latency statistics
type MetricsObserver struct {
	mu                 sync.RWMutex
	totalAnalyses      int64
	successfulAnalyses int64
	failedAnalyses     int64
	ocrDegraded        int64
	failuresByType     map[string]int64
	durations          []float64
	next               int
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		failuresByType: make(map[string]int64),
		durations:      make([]float64, 0, latencyWindow),
	}
}

// OnEvent handles analysis events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalAnalyses++
	case OCRDegraded:
		o.ocrDegraded++
	case AnalysisCompleted:
		o.successfulAnalyses++
		o.recordDuration(event.ProcessingTime)
	case AnalysisFailed:
		o.failedAnalyses++
		o.failuresByType[event.ErrorType]++
		o.recordDuration(event.ProcessingTime)
	}
}

func (o *MetricsObserver) recordDuration(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	if len(o.durations) < latencyWindow {
		o.durations = append(o.durations, ms)
		return
	}
	o.durations[o.next] = ms
	o.next = (o.next + 1) % latencyWindow
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Metrics is a point-in-time snapshot served on /metrics
type Metrics struct {
	TotalAnalyses      int64            `json:"total_analyses"`
	SuccessfulAnalyses int64            `json:"successful_analyses"`
	FailedAnalyses     int64            `json:"failed_analyses"`
	OCRDegraded        int64            `json:"ocr_degraded"`
	FailuresByType     map[string]int64 `json:"failures_by_type"`
	Latency            LatencyStats     `json:"latency_ms"`
}

// LatencyStats summarises the most recent request durations in milliseconds
type LatencyStats struct {
	Samples int     `json:"samples"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
	P95     float64 `json:"p95"`
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	byType := make(map[string]int64, len(o.failuresByType))
	for k, v := range o.failuresByType {
		byType[k] = v
	}

	m := Metrics{
		TotalAnalyses:      o.totalAnalyses,
		SuccessfulAnalyses: o.successfulAnalyses,
		FailedAnalyses:     o.failedAnalyses,
		OCRDegraded:        o.ocrDegraded,
		FailuresByType:     byType,
		Latency:            LatencyStats{Samples: len(o.durations)},
	}

	switch len(o.durations) {
	case 0:
	case 1:
		m.Latency.Mean = o.durations[0]
		m.Latency.P95 = o.durations[0]
	default:
		m.Latency.Mean, m.Latency.StdDev = stat.MeanStdDev(o.durations, nil)
		sorted := append([]float64(nil), o.durations...)
		sort.Float64s(sorted)
		m.Latency.P95 = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
	return m
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	async     bool
}

// NewEventPublisher creates a publisher that notifies observers concurrently
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
		async:     true,
	}
}

// NewSyncEventPublisher creates a publisher that notifies observers in order
// on the caller's goroutine. The CLI and tests use it.
func NewSyncEventPublisher() *EventPublisher {
	return &EventPublisher{observers: make([]Observer, 0)}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Observers outlive the request; they must not see its cancellation
	ctx = context.WithoutCancel(ctx)

	for _, observer := range observers {
		if p.async {
			go notify(ctx, observer, event)
		} else {
			notify(ctx, observer, event)
		}
	}
}

func notify(ctx context.Context, obs Observer, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logger.WithFields(logrus.Fields{
				"observer": obs.GetObserverName(),
				"panic":    r,
			}).Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
