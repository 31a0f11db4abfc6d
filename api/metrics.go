package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jevenson76/atl-dashboards/telemetry"
)

const (
	requestEventName = "atl.board.request"
	requestSpanName  = "board.request"
	metricsKey       = "board.metrics"
)

type requestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	route         string
	method        string
	start         time.Time
	authDuration  time.Duration
	loadDuration  time.Duration
	tasksReturned int
	commands      int
	applied       int
	errorStage    string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	ctx, span := telemetry.Start(ctx, requestSpanName, trace.SpanKindServer)
	return &requestMetrics{
		logger:        logger,
		span:          span,
		route:         route,
		method:        method,
		start:         time.Now(),
		tasksReturned: -1,
	}, ctx
}

func (m *requestMetrics) ObserveAuth(duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *requestMetrics) ObserveLoad(duration time.Duration) {
	if m == nil || duration <= 0 {
		return
	}
	m.loadDuration = duration
}

func (m *requestMetrics) SetTasksReturned(count int) {
	if m == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *requestMetrics) SetCommands(total, applied int) {
	if m == nil {
		return
	}
	m.commands = total
	m.applied = applied
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if m == nil || stage == "" {
		return
	}
	m.errorStage = stage
}

// Log emits the request's observability event and ends its span.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.String("http.method", m.method),
		attribute.Float64("atl.board.total_ms", durationToMillis(time.Since(m.start))),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("atl.board.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.loadDuration > 0 {
		attrs = append(attrs, attribute.Float64("atl.board.load_ms", durationToMillis(m.loadDuration)))
	}
	if m.tasksReturned >= 0 {
		attrs = append(attrs, attribute.Int("atl.board.tasks_returned", m.tasksReturned))
	}
	if m.commands > 0 {
		attrs = append(attrs,
			attribute.Int("atl.board.commands", m.commands),
			attribute.Int("atl.board.commands_applied", m.applied),
		)
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("atl.board.error_stage", m.errorStage))
	}
	telemetry.Record(m.span, m.logger, telemetry.Event{
		Name:       requestEventName,
		Status:     status,
		Err:        err,
		Attributes: attrs,
	})
	m.span.End()
}

// RequestMetricsMiddleware records one observability event per request.
func RequestMetricsMiddleware(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			m, ctx := newRequestMetrics(c.Request().Context(), logger, c.Request().Method, route)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(metricsKey, m)

			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			m.Log(status, err)
			return err
		}
	}
}

func metricsFrom(c echo.Context) *requestMetrics {
	m, _ := c.Get(metricsKey).(*requestMetrics)
	return m
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
