package obs

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if otel.GetTextMapPropagator() == nil {
		t.Fatal("expected propagator to be installed")
	}
}

func TestSetupTracing_RejectsBadRatio(t *testing.T) {
	if _, err := SetupTracing(context.Background(), TracingConfig{Enabled: true, SampleRatio: 2}); err == nil {
		t.Fatal("expected error for sample ratio above 1")
	}
}
