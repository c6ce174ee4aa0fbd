package domain_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
	"github.com/wyfcoding/greeksengine/internal/greeks/infrastructure/kernel"
)

func randomResults(n int) []*domain.GreeksResult {
	rng := rand.New(rand.NewPCG(1, 2))
	out := make([]*domain.GreeksResult, n)
	for i := range out {
		b := domain.NewResultBuilder(rng.Float64()*1e4, rng.Float64()).Method(domain.MethodBump)
		for _, s := range domain.AllSensitivities {
			// 部分交易缺失部分希腊字母
			if rng.IntN(4) > 0 {
				b.Set(s, (rng.Float64()-0.5)*1e3)
			}
		}
		out[i] = b.Build()
	}
	return out
}

func TestAccumulatorPermutationInvariant(t *testing.T) {
	results := randomResults(200)

	forward := domain.NewAccumulator()
	for _, r := range results {
		forward.Add(r)
	}

	rng := rand.New(rand.NewPCG(3, 4))
	for round := 0; round < 5; round++ {
		shuffled := append([]*domain.GreeksResult(nil), results...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		acc := domain.NewAccumulator()
		for _, r := range shuffled {
			acc.Add(r)
		}
		assert.Equal(t, forward.Result().Wire(), acc.Result().Wire(), "round %d", round)
	}
}

func TestAccumulatorAbsentValues(t *testing.T) {
	acc := domain.NewAccumulator()
	acc.Add(domain.NewResultBuilder(1, 3).Set(domain.Delta, 0.25).Build())
	acc.Add(domain.NewResultBuilder(2, 4).Set(domain.Vega, 10).Method(domain.MethodForward).Build())
	acc.Add(nil)

	total := acc.Result()
	assert.Equal(t, 2, acc.Count())
	assert.Equal(t, 3.0, total.Price())
	assert.Equal(t, 5.0, total.StandardError())
	assert.Equal(t, 0.25, value(t, total, domain.Delta))
	assert.Equal(t, 10.0, value(t, total, domain.Vega))
	assert.False(t, total.Has(domain.Gamma))

	var mixed bool
	for _, d := range total.Diagnostics() {
		mixed = mixed || d.Code == domain.DiagMixedMethods
	}
	assert.True(t, mixed)
}

func TestSummarize(t *testing.T) {
	ok := func(id, set string, delta float64) domain.TradeGreeks {
		return domain.TradeGreeks{
			TradeID:      id,
			NettingSetID: set,
			Status:       domain.TradeCompleted,
			Result:       domain.NewResultBuilder(1, 0).Set(domain.Delta, delta).Build(),
		}
	}
	trades := []domain.TradeGreeks{
		ok("t3", "A", 0.5),
		ok("t1", "A", 0.25),
		ok("t2", "B", -1),
		{TradeID: "t4", NettingSetID: "B", Status: domain.TradeCancelled},
	}

	summary := domain.Summarize("run-1", trades)
	assert.Equal(t, []string{"A", "B"}, summary.NettingSetIDs())
	assert.True(t, summary.Incomplete)
	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, 1, summary.Cancelled)

	a := summary.NettingSets["A"]
	assert.False(t, a.Incomplete)
	assert.Equal(t, "t1", a.Trades[0].TradeID)
	assert.Equal(t, 0.75, value(t, a.Total, domain.Delta))

	b := summary.NettingSets["B"]
	assert.True(t, b.Incomplete)
	require.Len(t, b.Trades, 2)
	assert.Equal(t, domain.TradeCancelled, b.Trades[1].Status)
	assert.Equal(t, -1.0, value(t, b.Total, domain.Delta))

	assert.Equal(t, -0.25, value(t, summary.Total, domain.Delta))
	assert.Equal(t, 3.0, summary.Total.Price())
}

func TestValidateTrades(t *testing.T) {
	call := kernel.BlackScholes{Strike: 100}
	tests := []struct {
		name    string
		trades  []domain.Trade
		wantErr error
	}{
		{"valid", []domain.Trade{{ID: "a", NettingSetID: "n", Call: call}, {ID: "b", NettingSetID: "n", Call: call}}, nil},
		{"duplicate", []domain.Trade{{ID: "a", NettingSetID: "n", Call: call}, {ID: "a", NettingSetID: "m", Call: call}}, domain.ErrDuplicateTrade},
		{"empty id", []domain.Trade{{NettingSetID: "n", Call: call}}, domain.ErrEmptyTradeID},
		{"empty netting set", []domain.Trade{{ID: "a", Call: call}}, domain.ErrEmptyNettingSet},
		{"nil call", []domain.Trade{{ID: "a", NettingSetID: "n"}}, domain.ErrNilPricingCall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateTrades(tt.trades)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
