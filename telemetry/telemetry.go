// Package telemetry emits structured observability events. Each event is
// written twice: as a logrus entry for log shipping and as an OpenTelemetry
// span event on the span that covers the operation.
package telemetry

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// EventMessage is the log message and span event name of every event.
	EventMessage = "observability.event"
	// Domain is reported as event.domain.
	Domain = "app"

	instrumentationName = "github.com/jevenson76/atl-dashboards"
)

// Event describes the outcome of one observed operation.
type Event struct {
	Name       string
	Status     int
	Err        error
	Attributes []attribute.KeyValue
}

// Start opens a span for an observed operation using the global tracer provider.
func Start(ctx context.Context, spanName string, kind trace.SpanKind) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.Tracer(instrumentationName).Start(ctx, spanName, trace.WithSpanKind(kind))
}

// SeverityForStatus maps an HTTP status and error to an OpenTelemetry
// severity text and number.
func SeverityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

// Record attaches ev to span, sets the span status and logs the same event.
// The span is not ended.
func Record(span trace.Span, logger *log.Logger, ev Event) {
	severityText, severityNumber := SeverityForStatus(ev.Status, ev.Err)

	attrs := make([]attribute.KeyValue, 0, len(ev.Attributes)+2)
	attrs = append(attrs, ev.Attributes...)
	if ev.Status > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", ev.Status))
	}
	if ev.Err != nil {
		attrs = append(attrs, attribute.String("error.message", ev.Err.Error()))
	}

	if span != nil {
		span.SetAttributes(attrs...)
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", ev.Name),
			attribute.String("event.domain", Domain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
		}, attrs...)
		span.AddEvent(EventMessage, trace.WithAttributes(eventAttrs...))
		if severityText == "ERROR" {
			desc := http.StatusText(ev.Status)
			if ev.Err != nil {
				desc = ev.Err.Error()
			}
			if desc == "" {
				desc = "error"
			}
			span.SetStatus(codes.Error, desc)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	if logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      ev.Name,
		"event.domain":    Domain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      AttributesToMap(attrs),
	}
	if span != nil {
		if sc := span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	entry := logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error(EventMessage)
	case "WARN":
		entry.Warn(EventMessage)
	default:
		entry.Info(EventMessage)
	}
}

// AttributesToMap flattens attributes into plain Go values.
func AttributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}
