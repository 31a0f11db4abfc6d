package listapi

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jevenson76/atl-dashboards/telemetry"
)

const (
	requestEventName = "atl.listapi.request"
	requestSpanName  = "listapi.request"

	modeDirect = "direct"
	modeProxy  = "proxy"
)

type requestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time
	method string
	url    string
	mode   string
	list   string
}

func (c *Client) startRequest(ctx context.Context, method, url, mode, list string) (context.Context, *requestMetrics) {
	ctx, span := telemetry.Start(ctx, requestSpanName, trace.SpanKindClient)
	return ctx, &requestMetrics{
		logger: c.logger,
		span:   span,
		start:  time.Now(),
		method: method,
		url:    url,
		mode:   mode,
		list:   list,
	}
}

// finish records the outcome. items < 0 means the count is unknown.
func (m *requestMetrics) finish(status, items int, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", m.method),
		attribute.String("http.url", m.url),
		attribute.String("listapi.mode", m.mode),
		attribute.Float64("listapi.total_ms", float64(time.Since(m.start))/float64(time.Millisecond)),
	}
	if m.list != "" {
		attrs = append(attrs, attribute.String("listapi.list", m.list))
	}
	if err == nil && items >= 0 {
		attrs = append(attrs, attribute.Int("listapi.items_returned", items))
	}
	telemetry.Record(m.span, m.logger, telemetry.Event{
		Name:       requestEventName,
		Status:     status,
		Err:        err,
		Attributes: attrs,
	})
	m.span.End()
}
