package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.False(t, cfg.Enabled, "tracing should be disabled by default")
	require.Equal(t, ExporterFile, cfg.Exporter)
	require.Equal(t, "localhost:4317", cfg.OTLPEndpoint)
	require.Equal(t, 1.0, cfg.SampleRate)
	require.Equal(t, "cbconfig", cfg.ServiceName)
}

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: false})
	require.NoError(t, err)
	require.False(t, provider.Enabled())

	ctx, span := provider.Tracer().Start(context.Background(), "test-span")
	require.NotNil(t, ctx)
	span.End()
	require.Empty(t, TraceID(ctx), "noop spans carry no trace id")

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_FileExporterRequiresPath(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: ExporterFile})
	require.ErrorContains(t, err, "file_path required")
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, Exporter: "kafka"})
	require.ErrorContains(t, err, "unsupported exporter type: kafka")
}

func TestNewProvider_NoneExporterStillTraces(t *testing.T) {
	provider, err := NewProvider(Config{Enabled: true, Exporter: ExporterNone})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	ctx, span := provider.Tracer().Start(context.Background(), "test-span")
	defer span.End()
	require.Len(t, TraceID(ctx), 32)
}

func TestNewProvider_FileExporterWritesSpans(t *testing.T) {
	tracePath := filepath.Join(t.TempDir(), "traces", "traces.jsonl")

	provider, err := NewProvider(Config{
		Enabled:     true,
		Exporter:    ExporterFile,
		FilePath:    tracePath,
		ServiceName: "cbconfig-test",
	})
	require.NoError(t, err)
	require.True(t, provider.Enabled())

	ctx, span := StartOperation(context.Background(), provider.Tracer(), "create",
		attribute.String(AttrName, "alpha"))
	span.AddEvent(EventFileWritten)
	Finish(span, nil, "")
	span.End()
	require.Len(t, TraceID(ctx), 32)

	require.NoError(t, provider.Shutdown(context.Background()))

	records := readRecords(t, tracePath)
	require.Len(t, records, 1)
	require.Equal(t, "registry.create", records[0].Name)
	require.Equal(t, "OK", records[0].Status)
	require.Equal(t, "alpha", records[0].Attributes[AttrName])
	require.Equal(t, "create", records[0].Attributes[AttrOperation])
	require.Len(t, records[0].Events, 1)
	require.Equal(t, EventFileWritten, records[0].Events[0].Name)
}

func TestFinish_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := StartOperation(context.Background(), provider.Tracer("test"), "update")
	Finish(span, errors.New("disk full"), "IO_FAILURE")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Equal(t, "disk full", ended[0].Status().Description)
	require.Contains(t, ended[0].Attributes(), attribute.String(AttrErrorKind, "IO_FAILURE"))
	require.Len(t, ended[0].Events(), 1, "RecordError adds an exception event")
}

func TestFileExporter_ShutdownTwice(t *testing.T) {
	exporter, err := NewFileExporter(filepath.Join(t.TempDir(), "t.jsonl"))
	require.NoError(t, err)
	require.NoError(t, exporter.ExportSpans(context.Background(), nil))
	require.NoError(t, exporter.Shutdown(context.Background()))
	require.NoError(t, exporter.Shutdown(context.Background()))
}

func readRecords(t *testing.T, path string) []SpanRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var records []SpanRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}
