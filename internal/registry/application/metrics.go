package registry

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/tracing"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbconfig_registry_operations_total",
			Help: "Registry operations by outcome",
		},
		[]string{"operation", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cbconfig_registry_operation_duration_seconds",
			Help:    "Registry operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	faultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbconfig_registry_faults_total",
			Help: "Consistency faults detected between the catalog and the directory",
		},
		[]string{"kind"},
	)

	allocatedMax = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cbconfig_registry_allocated_max",
			Help: "Highest configuration identifier ever allocated",
		},
	)
)

// Operation names used for spans, metrics and logs.
const (
	opList   = "list"
	opGet    = "get"
	opCreate = "create"
	opUpdate = "update"
	opRename = "rename"
	opDelete = "delete"
	opCheck  = "check"
)

type operation struct {
	name  string
	span  trace.Span
	start time.Time
}

func (o *operation) event(name string, attrs ...attribute.KeyValue) {
	o.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (o *operation) annotate(attrs ...attribute.KeyValue) {
	o.span.SetAttributes(attrs...)
}

func (o *operation) end(err error) {
	kind := domain.KindOf(err)
	tracing.Finish(o.span, err, string(kind))
	o.span.End()

	result := "ok"
	if err != nil {
		result = strings.ToLower(string(kind))
		log.Debug(log.CatRegistry, "operation failed", "op", o.name, "kind", kind, "error", err)
	}
	operationsTotal.WithLabelValues(o.name, result).Inc()
	operationDuration.WithLabelValues(o.name).Observe(time.Since(o.start).Seconds())
}
