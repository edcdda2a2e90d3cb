package middleware

import (
	"net/http"
	"path"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for Blitz clients.
const defaultTracerName = "blitz"

// OTelConfig configures the OpenTelemetry transport middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "blitz").
	TracerName string

	// Filter determines which requests to trace. Return true to trace
	// the request, false to skip. If nil, all requests are traced.
	Filter func(req *http.Request) bool

	// AttributeExtractor extracts custom attributes from the request.
	AttributeExtractor func(req *http.Request) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry transport middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) { c.TracerName = name }
}

// WithRequestFilter sets a filter function for requests.
func WithRequestFilter(filter func(*http.Request) bool) OTelOption {
	return func(c *OTelConfig) { c.Filter = filter }
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(*http.Request) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) { c.AttributeExtractor = extractor }
}

type otelTransport struct {
	inner  http.RoundTripper
	config OTelConfig
}

// OTel wraps inner with a span per request. The tracer comes from the
// global OpenTelemetry tracer provider; configure that in main() before
// building the client. A nil inner uses http.DefaultTransport.
func OTel(inner http.RoundTripper, opts ...OTelOption) http.RoundTripper {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return &otelTransport{inner: inner, config: config}
}

func (o *otelTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := o.inner
	if rt == nil {
		rt = http.DefaultTransport
	}
	if o.config.Filter != nil && !o.config.Filter(req) {
		return rt.RoundTrip(req)
	}

	ctx, span := o.config.tracer.Start(req.Context(), "http."+path.Base(req.URL.Path),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("url.path", req.URL.Path),
	)
	if o.config.AttributeExtractor != nil {
		span.SetAttributes(o.config.AttributeExtractor(req)...)
	}

	res, err := rt.RoundTrip(req.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))
	if res.StatusCode >= 500 {
		span.SetStatus(codes.Error, res.Status)
	}
	return res, nil
}
