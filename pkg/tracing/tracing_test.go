package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "voice-agent-api", "")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func TestTracer_StartsSpanWithoutProvider(t *testing.T) {
	ctx, span := Tracer("test").Start(context.Background(), "op")
	defer span.End()
	require.NotNil(t, ctx)
}
