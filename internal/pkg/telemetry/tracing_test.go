package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracer_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracer(context.Background(), Config{
		ServiceName: "chicrime-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, span := otel.Tracer(TracerName).Start(context.Background(), SpanHotspotDetect)
	span.End()
	shutdown()

	if !strings.Contains(buf.String(), SpanHotspotDetect) {
		t.Errorf("expected exported span %q, got %q", SpanHotspotDetect, buf.String())
	}
}

func TestInitTracer_UnknownExporter(t *testing.T) {
	if _, err := InitTracer(context.Background(), Config{Exporter: "zipkin"}); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}
