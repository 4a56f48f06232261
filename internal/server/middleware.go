package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/tracing"
)

type contextKey string

const contextKeyRequestID contextKey = "requestID"

// RequestID returns the request id stored by requestIDMiddleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// routePattern is the matched chi pattern, or "unmatched" for 404s so the
// metric label set stays bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// requestIDMiddleware extracts or generates request IDs
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tracingMiddleware starts one span per request. Registry operations called
// by the handler become its children.
func (s *Server) tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), "http.request",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String(tracing.AttrRequestID, RequestID(r.Context())),
			),
		)
		defer span.End()

		rw := recordResponse(w)
		next.ServeHTTP(rw, r.WithContext(ctx))

		route := routePattern(r)
		span.SetName(fmt.Sprintf("http %s %s", r.Method, route))
		span.SetAttributes(
			attribute.String(tracing.AttrHTTPRoute, route),
			attribute.Int("http.status_code", rw.Status()),
			attribute.Int64("http.response_size", rw.BytesWritten()),
		)
		if rw.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rw.Status()))
		}
	})
}

// panicRecoveryMiddleware recovers from panics
func (s *Server) panicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				panicRecoveries.Inc()
				log.Error(log.CatHTTP, "panic recovered",
					"error", fmt.Sprintf("%v", rec),
					"requestID", RequestID(r.Context()),
					"path", r.URL.Path,
					"method", r.Method,
				)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := recordResponse(w)

		next.ServeHTTP(rw, r)

		log.Debug(log.CatHTTP, "request completed",
			"requestID", RequestID(r.Context()),
			"traceID", tracing.TraceID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.Status(),
			"bytes", rw.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
