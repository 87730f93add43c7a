package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("tila-test")
	require.NotNil(t, logger)

	sub := logger.Component("manager")
	sub.Info().Msg("component logger works")

	ctxLogger := logger.WithContext(context.Background())
	require.NotNil(t, ctxLogger)
}

func TestInitMetrics(t *testing.T) {
	registry, err := InitMetrics()
	require.NoError(t, err)
	require.NotNil(t, registry)

	require.NotNil(t, ReconcileCycles)
	require.NotNil(t, TrackedInstances)

	ReconcileCycles.Add(context.Background(), 1)
	TrackedInstances.Record(context.Background(), 3)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
