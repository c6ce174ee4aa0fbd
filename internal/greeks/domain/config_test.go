package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
)

func TestNewGreeksConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.ConfigSpec)
		wantErr error
	}{
		{"defaults", func(*domain.ConfigSpec) {}, nil},
		{"zero spot bump", func(s *domain.ConfigSpec) { s.Bumps.SpotRelative = 0 }, domain.ErrInvalidBump},
		{"negative vol bump", func(s *domain.ConfigSpec) { s.Bumps.Vol = -0.01 }, domain.ErrInvalidBump},
		{"zero time bump", func(s *domain.ConfigSpec) { s.Bumps.Time = 0 }, domain.ErrInvalidBump},
		{"negative rate bump", func(s *domain.ConfigSpec) { s.Bumps.Rate = -1 }, domain.ErrInvalidBump},
		{"zero tolerance", func(s *domain.ConfigSpec) { s.Tolerance = 0 }, domain.ErrInvalidTolerance},
		{"negative floor", func(s *domain.ConfigSpec) { s.Floor = -1 }, domain.ErrInvalidFloor},
		{"negative smoothing", func(s *domain.ConfigSpec) { s.SmoothingEpsilon = -0.1 }, domain.ErrInvalidSmoothing},
		{"unknown mode", func(s *domain.ConfigSpec) { s.Mode = domain.Method(9) }, domain.ErrUnknownMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := domain.DefaultConfigSpec()
			tt.mutate(&spec)
			cfg, err := domain.NewGreeksConfig(spec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, spec, cfg.Spec())
		})
	}
}

func TestGreeksConfigCopies(t *testing.T) {
	cfg := domain.DefaultGreeksConfig()
	seeded := cfg.WithSeed(99).WithMode(domain.MethodForward)

	assert.Equal(t, uint64(domain.DefaultSeed), cfg.Seed())
	assert.Equal(t, domain.MethodBump, cfg.Mode())
	assert.Equal(t, uint64(99), seeded.Seed())
	assert.Equal(t, domain.MethodForward, seeded.Mode())
	assert.True(t, cfg.ReverseEnabled())
}

func TestChooseSmoothing(t *testing.T) {
	cfg := domain.DefaultGreeksConfig()
	eps, floored := domain.ChooseSmoothing(cfg, 100)
	assert.False(t, floored)
	assert.InDelta(t, domain.DefaultTolerance*100/0.6931471805599453, eps, 1e-12)

	spec := domain.DefaultConfigSpec()
	spec.Tolerance = 1e-8
	tight, err := domain.NewGreeksConfig(spec)
	require.NoError(t, err)
	eps, floored = domain.ChooseSmoothing(tight, 100)
	assert.True(t, floored)
	assert.Equal(t, domain.MinSmoothingRelative*100, eps)

	spec.SmoothingEpsilon = 0.25
	explicit, err := domain.NewGreeksConfig(spec)
	require.NoError(t, err)
	eps, floored = domain.ChooseSmoothing(explicit, 100)
	assert.False(t, floored)
	assert.Equal(t, 0.25, eps)
}
