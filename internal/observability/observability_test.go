package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "comanda")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("", "comanda")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("loud", "comanda")
	assert.Error(t, err)
}

func TestSetupTracingWithoutEndpoint(t *testing.T) {
	tp, shutdown, err := SetupTracing(context.Background(), TracingConfig{ServiceName: "comanda"})
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupTracingWithEndpoint(t *testing.T) {
	tp, shutdown, err := SetupTracing(context.Background(), TracingConfig{
		Endpoint:    "localhost:4318",
		Insecure:    true,
		ServiceName: "comanda",
	})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "recorded")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	// nothing listens on the endpoint; shutdown must still return
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
