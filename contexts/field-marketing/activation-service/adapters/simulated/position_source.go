package simulated

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
)

const (
	DefaultBaseLatitude  = 48.8566
	DefaultBaseLongitude = 2.3522

	jitterDegrees = 0.005
	minAccuracy   = 5.0
	maxAccuracy   = 50.0
)

// PositionSource invents GPS fixes scattered around a base point. It stands in
// for device telemetry in local and demo deployments.
type PositionSource struct {
	BaseLatitude  float64
	BaseLongitude float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPositionSource() *PositionSource {
	return &PositionSource{
		BaseLatitude:  DefaultBaseLatitude,
		BaseLongitude: DefaultBaseLongitude,
		rng:           rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// NewSeededPositionSource is deterministic for a given seed.
func NewSeededPositionSource(seed uint64) *PositionSource {
	source := NewPositionSource()
	source.rng = rand.New(rand.NewPCG(seed, seed))
	return source
}

func (s *PositionSource) Locate(ctx context.Context, agent entities.Agent, at time.Time) (entities.Position, error) {
	if err := ctx.Err(); err != nil {
		return entities.Position{}, err
	}
	s.mu.Lock()
	latJitter := (s.rng.Float64()*2 - 1) * jitterDegrees
	lonJitter := (s.rng.Float64()*2 - 1) * jitterDegrees
	accuracy := minAccuracy + s.rng.Float64()*(maxAccuracy-minAccuracy)
	s.mu.Unlock()

	return entities.Position{
		AgentID:        agent.AgentID,
		Latitude:       s.BaseLatitude + latJitter,
		Longitude:      s.BaseLongitude + lonJitter,
		AccuracyMeters: accuracy,
		RecordedAt:     at.UTC(),
	}, nil
}
