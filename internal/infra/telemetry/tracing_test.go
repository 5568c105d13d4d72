package telemetry

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"

	"github.com/lafranceinsoumise/actionpopulaire.fr-sub003/internal/infra/config"
)

func TestSamplerForRootSpans(t *testing.T) {
	params := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		Name:          "login.check_code",
	}

	cases := []struct {
		name string
		rate float64
		want sdktrace.SamplingDecision
	}{
		{"always", 1, sdktrace.RecordAndSample},
		{"above one", 3, sdktrace.RecordAndSample},
		{"never", 0, sdktrace.Drop},
		{"negative", -1, sdktrace.Drop},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := samplerFor(tc.rate).ShouldSample(params).Decision
			if got != tc.want {
				t.Fatalf("expected decision %v, got %v", tc.want, got)
			}
		})
	}
}

func TestSamplerForFollowsSampledParent(t *testing.T) {
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})

	params := sdktrace.SamplingParameters{
		ParentContext: trace.ContextWithSpanContext(context.Background(), parent),
		TraceID:       parent.TraceID(),
		Name:          "tokens.verify",
	}

	if got := samplerFor(0).ShouldSample(params).Decision; got != sdktrace.RecordAndSample {
		t.Fatalf("expected sampled parent to be honored, got %v", got)
	}
}

func TestStartTracingRequiresEndpoint(t *testing.T) {
	_, err := StartTracing(context.Background(), config.TelemetrySettings{ServiceName: "auth"}, "test", zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("expected error without otlp endpoint")
	}
}

func TestNilTracingShutdown(t *testing.T) {
	var tracing *Tracing
	if err := tracing.Shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil tracing shutdown to succeed, got %v", err)
	}
}
