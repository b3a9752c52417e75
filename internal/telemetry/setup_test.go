package telemetry

import (
	"context"
	"os"
	"testing"
)

func TestZeroClient(t *testing.T) {
	client := &Client{}
	if err := client.Flush(context.Background()); err != nil {
		t.Fatalf("flush on empty client: %v", err)
	}
	client.Shutdown(context.Background())
}

func TestSetEnvIfNotSet(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "otlp")
	setEnvIfNotSet("OTEL_TRACES_EXPORTER", "none")
	if got := os.Getenv("OTEL_TRACES_EXPORTER"); got != "otlp" {
		t.Fatalf("existing value overwritten: %q", got)
	}
}
