package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	p, err := Init("testpilot-test", "dev", &buf)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "run", AttrRunID.String("r1"))
	Fail(span, errors.New("navigation timed out"))
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, `"Name":"run"`)
	assert.Contains(t, out, "testpilot.run.id")
	assert.Contains(t, out, "navigation timed out")
}
