package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
)

func sampleResult() *domain.GreeksResult {
	return domain.NewResultBuilder(10.45, 0.02).
		Set(domain.Delta, 0).
		Set(domain.Vega, 37.5).
		Method(domain.MethodBump).
		RequestedMethod(domain.MethodReverse).
		Degraded(true).
		Smoothing(0.144).
		Diagnose(domain.Theta, domain.DiagExpired, "maturity %g is not positive", 0.0).
		Build()
}

func TestResultAbsentIsNotZero(t *testing.T) {
	r := sampleResult()

	v, ok := r.Get(domain.Delta)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)

	_, ok = r.Get(domain.Gamma)
	assert.False(t, ok)
	assert.Equal(t, []domain.Sensitivity{domain.Delta, domain.Vega}, r.Sensitivities().List())
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(sampleResult())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 0.0, raw["delta"])
	assert.NotContains(t, raw, "gamma")
	assert.Equal(t, "bump", raw["method"])
	assert.Equal(t, "reverse", raw["requested_method"])
	assert.Equal(t, true, raw["degraded"])

	var back domain.GreeksResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sampleResult().Wire(), back.Wire())
	assert.True(t, back.HasDiagnostic(domain.Theta, domain.DiagExpired))
}

func TestResultMsgpack(t *testing.T) {
	data, err := msgpack.Marshal(sampleResult())
	require.NoError(t, err)

	var back domain.GreeksResult
	require.NoError(t, msgpack.Unmarshal(data, &back))
	assert.Equal(t, sampleResult().Wire(), back.Wire())
	assert.False(t, back.Has(domain.Gamma))
}

func TestResultIsImmutable(t *testing.T) {
	b := domain.NewResultBuilder(1, 0).Set(domain.Delta, 0.5)
	r := b.Build()
	b.Set(domain.Delta, 0.9).Set(domain.Gamma, 1)

	v, _ := r.Get(domain.Delta)
	assert.Equal(t, 0.5, v)
	assert.False(t, r.Has(domain.Gamma))

	diags := r.Diagnostics()
	diags = append(diags, domain.Diagnostic{Code: "x"})
	assert.Len(t, r.Diagnostics(), 0)
	assert.Len(t, diags, 1)
}
