package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName       = "github.com/yush1006/todo/api"
	tasksSpanName    = "tasks.request"
	tasksMetricsName = "tasks.request.metrics"
)

// requestMetrics records one task request as a structured log entry and a span.
type requestMetrics struct {
	logger        *log.Logger
	route         string
	span          trace.Span
	start         time.Time
	authDuration  time.Duration
	storeDuration time.Duration
	tasks         int
	errorStage    string
	err           error
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, tasksSpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)))
	return &requestMetrics{
		logger: logger,
		route:  route,
		span:   span,
		start:  time.Now(),
		tasks:  -1,
	}, ctx
}

func (m *requestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *requestMetrics) ObserveStore(d time.Duration) {
	if d > 0 {
		m.storeDuration += d
	}
}

func (m *requestMetrics) SetTasks(n int) {
	if n >= 0 {
		m.tasks = n
	}
}

// Fail records the stage at which the request failed.
func (m *requestMetrics) Fail(stage string, err error) {
	m.errorStage = stage
	m.err = err
}

func (m *requestMetrics) Log(status int) {
	if m == nil {
		return
	}
	total := durationToMillis(time.Since(m.start))
	fields := log.Fields{
		"route":    m.route,
		"status":   status,
		"total_ms": total,
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("todo.tasks.total_ms", total),
	}
	if m.authDuration > 0 {
		fields["auth_ms"] = durationToMillis(m.authDuration)
		attrs = append(attrs, attribute.Float64("todo.tasks.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.storeDuration > 0 {
		fields["store_ms"] = durationToMillis(m.storeDuration)
		attrs = append(attrs, attribute.Float64("todo.tasks.store_ms", durationToMillis(m.storeDuration)))
	}
	if m.tasks >= 0 {
		fields["tasks"] = m.tasks
		attrs = append(attrs, attribute.Int("todo.tasks.count", m.tasks))
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
		attrs = append(attrs, attribute.String("todo.tasks.error_stage", m.errorStage))
	}
	if m.err != nil {
		fields["error"] = m.err.Error()
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		if status >= http.StatusInternalServerError || (m.err != nil && status == 0) {
			desc := http.StatusText(status)
			if m.err != nil {
				m.span.RecordError(m.err)
				desc = m.err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger != nil {
		m.logger.WithFields(fields).Log(levelForStatus(status, m.err), tasksMetricsName)
	}
}

func levelForStatus(status int, err error) log.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return log.ErrorLevel
	case status >= http.StatusBadRequest:
		return log.WarnLevel
	case status == 0 && err != nil:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
