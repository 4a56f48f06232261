package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for registry tracing.
const (
	AttrOperation    = "registry.operation"
	AttrIdentifier   = "config.identifier"
	AttrName         = "config.name"
	AttrPreviousName = "config.previous_name"
	AttrFaultKind    = "fault.kind"
	AttrFaultCount   = "fault.count"
	AttrRecordCount  = "record.count"
	AttrErrorKind    = "error.kind"
	AttrHTTPRoute    = "http.route"
	AttrRequestID    = "http.request_id"
)

// SpanPrefixRegistry prefixes every registry operation span, e.g. "registry.create".
const SpanPrefixRegistry = "registry."

// Event names for span events.
const (
	EventDocumentValidated   = "document.validated"
	EventIdentifierAllocated = "identifier.allocated"
	EventFileWritten         = "file.written"
	EventFileRestored        = "file.restored"
	EventCatalogCommitted    = "catalog.committed"
	EventFaultDetected       = "fault.detected"
)

// StartOperation opens an internal span named after a registry operation.
func StartOperation(ctx context.Context, tracer trace.Tracer, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(AttrOperation, op))
	return tracer.Start(ctx, SpanPrefixRegistry+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// Finish records the outcome of an operation on span. kind is the error
// classification and is ignored when err is nil.
func Finish(span trace.Span, err error, kind string) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorKind, kind))
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TraceID returns the hex trace id of the span in ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.TraceID().IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
