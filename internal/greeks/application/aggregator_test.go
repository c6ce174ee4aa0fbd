package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
	"github.com/wyfcoding/greeksengine/internal/greeks/infrastructure/kernel"
)

var atm = domain.Params{Spot: 100, Volatility: 0.2, Maturity: 1, Rate: 0.05}

func newTestAggregator(workers int, budget time.Duration) *Aggregator {
	return NewAggregator(domain.NewEngine(nil), workers, budget, nil, nil)
}

func bookOf(n int) []domain.Trade {
	trades := make([]domain.Trade, n)
	for i := range trades {
		p := atm
		p.Spot = 90 + float64(i)
		trades[i] = domain.Trade{
			ID:           fmt.Sprintf("t%02d", i),
			NettingSetID: fmt.Sprintf("ns%d", i%3),
			Call:         kernel.BlackScholes{Strike: 100, Put: i%2 == 1},
			Params:       p,
		}
	}
	return trades
}

func TestAggregatorMatchesIndividualComputations(t *testing.T) {
	cfg := domain.DefaultGreeksConfig()
	trades := bookOf(9)
	engine := domain.NewEngine(nil)

	summary, err := newTestAggregator(4, 0).Run(context.Background(), cfg, "run-1", trades, domain.Delta, domain.Gamma, domain.Vega)
	require.NoError(t, err)
	assert.Equal(t, "run-1", summary.RunID)
	assert.False(t, summary.Incomplete)
	assert.Equal(t, 9, summary.Completed)
	assert.Equal(t, []string{"ns0", "ns1", "ns2"}, summary.NettingSetIDs())

	for _, id := range summary.NettingSetIDs() {
		acc := domain.NewAccumulator()
		for _, tr := range trades {
			if tr.NettingSetID != id {
				continue
			}
			seeded := cfg.WithSeed(domain.DeriveSeed(cfg.Seed(), tr.ID, domain.PurposeGreeks))
			res, err := engine.Compute(context.Background(), seeded, tr.Call, tr.Params, domain.Delta, domain.Gamma, domain.Vega)
			require.NoError(t, err)
			acc.Add(res)
		}
		assert.Equal(t, acc.Result().Wire(), summary.NettingSets[id].Total.Wire(), "netting set %s", id)
	}
}

func TestAggregatorOrderIndependent(t *testing.T) {
	cfg := domain.DefaultGreeksConfig()
	trades := bookOf(12)
	reversed := make([]domain.Trade, len(trades))
	for i, tr := range trades {
		reversed[len(trades)-1-i] = tr
	}

	a, err := newTestAggregator(1, 0).Run(context.Background(), cfg, "a", trades, domain.Delta, domain.Vega)
	require.NoError(t, err)
	b, err := newTestAggregator(8, 0).Run(context.Background(), cfg, "b", reversed, domain.Delta, domain.Vega)
	require.NoError(t, err)

	assert.Equal(t, a.Total.Wire(), b.Total.Wire())
	for _, id := range a.NettingSetIDs() {
		assert.Equal(t, a.NettingSets[id].Total.Wire(), b.NettingSets[id].Total.Wire())
	}
}

func TestAggregatorDerivesSeedsPerTrade(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]uint64{}
	call := func(id string) domain.PricingCall {
		return domain.PricingFunc(func(p domain.Params, seed uint64) (domain.Quote, error) {
			mu.Lock()
			seen[id] = seed
			mu.Unlock()
			return domain.Quote{Value: p.Spot}, nil
		})
	}
	trades := []domain.Trade{
		{ID: "x", NettingSetID: "n", Call: call("x"), Params: atm},
		{ID: "y", NettingSetID: "n", Call: call("y"), Params: atm},
	}
	cfg := domain.DefaultGreeksConfig()

	_, err := newTestAggregator(2, 0).Run(context.Background(), cfg, "", trades, domain.Delta)
	require.NoError(t, err)
	assert.Equal(t, domain.DeriveSeed(cfg.Seed(), "x", domain.PurposeGreeks), seen["x"])
	assert.Equal(t, domain.DeriveSeed(cfg.Seed(), "y", domain.PurposeGreeks), seen["y"])
	assert.NotEqual(t, seen["x"], seen["y"])
}

func TestAggregatorFailedTradeIsListed(t *testing.T) {
	trades := bookOf(3)
	trades[1].Call = domain.PricingFunc(func(domain.Params, uint64) (domain.Quote, error) {
		return domain.Quote{}, errors.New("curve missing")
	})

	summary, err := newTestAggregator(2, 0).Run(context.Background(), domain.DefaultGreeksConfig(), "", trades, domain.Delta)
	require.NoError(t, err)
	assert.NotEmpty(t, summary.RunID)
	assert.True(t, summary.Incomplete)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)

	set := summary.NettingSets[trades[1].NettingSetID]
	assert.True(t, set.Incomplete)
	require.Len(t, set.Trades, 1)
	assert.Equal(t, domain.TradeFailed, set.Trades[0].Status)
	assert.Contains(t, set.Trades[0].Error, "curve missing")
}

func TestAggregatorBudgetExpiry(t *testing.T) {
	slow := domain.PricingFunc(func(p domain.Params, _ uint64) (domain.Quote, error) {
		time.Sleep(20 * time.Millisecond)
		return domain.Quote{Value: p.Spot}, nil
	})
	trades := make([]domain.Trade, 6)
	for i := range trades {
		trades[i] = domain.Trade{ID: fmt.Sprintf("s%d", i), NettingSetID: "n", Call: slow, Params: atm}
	}

	summary, err := newTestAggregator(1, 10*time.Millisecond).Run(context.Background(), domain.DefaultGreeksConfig(), "", trades, domain.Delta)
	require.NoError(t, err)
	assert.True(t, summary.Incomplete)
	assert.Positive(t, summary.Cancelled)
	assert.Equal(t, len(trades), summary.Completed+summary.Failed+summary.Cancelled)
	assert.Len(t, summary.NettingSets["n"].Trades, len(trades), "every trade is listed")
}

func TestAggregatorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newTestAggregator(2, 0).Run(ctx, domain.DefaultGreeksConfig(), "", bookOf(4), domain.Delta)
	require.NoError(t, err)
	assert.True(t, summary.Incomplete)
	assert.Equal(t, 4, summary.Cancelled)
	assert.Equal(t, 0, summary.Completed)
}

func TestAggregatorRejectsInvalidInput(t *testing.T) {
	agg := newTestAggregator(2, 0)
	cfg := domain.DefaultGreeksConfig()

	trades := bookOf(2)
	trades[1].ID = trades[0].ID
	_, err := agg.Run(context.Background(), cfg, "", trades, domain.Delta)
	assert.ErrorIs(t, err, domain.ErrDuplicateTrade)

	_, err = agg.Run(context.Background(), cfg, "", bookOf(2), domain.Gamma)
	assert.ErrorIs(t, err, domain.ErrMissingDependency)
}

func TestAggregatorWithLimits(t *testing.T) {
	base := newTestAggregator(2, time.Second)
	tuned := base.WithLimits(8, 0)
	assert.Equal(t, 8, tuned.workers)
	assert.Equal(t, time.Second, tuned.budget)
	assert.Equal(t, 2, base.workers)
	assert.Equal(t, 3, tuned.poolSize(3))
	assert.Equal(t, 1, newTestAggregator(0, 0).poolSize(1))
}
