package simulated

import (
	"context"
	"testing"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"

	"github.com/stretchr/testify/require"
)

func TestLocateStaysNearBase(t *testing.T) {
	source := NewSeededPositionSource(42)
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	for range 200 {
		position, err := source.Locate(context.Background(), entities.Agent{AgentID: "agent-1"}, at)
		require.NoError(t, err)
		require.Equal(t, "agent-1", position.AgentID)
		require.Equal(t, at, position.RecordedAt)
		require.InDelta(t, DefaultBaseLatitude, position.Latitude, jitterDegrees)
		require.InDelta(t, DefaultBaseLongitude, position.Longitude, jitterDegrees)
		require.GreaterOrEqual(t, position.AccuracyMeters, minAccuracy)
		require.LessOrEqual(t, position.AccuracyMeters, maxAccuracy)
		require.True(t, position.Valid())
	}
}

func TestLocateHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPositionSource().Locate(ctx, entities.Agent{AgentID: "agent-1"}, time.Now())
	require.ErrorIs(t, err, context.Canceled)
}
