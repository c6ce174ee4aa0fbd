package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wyfcoding/greeksengine/internal/greeks/ad"
	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
)

var atm = domain.Params{Spot: 100, Volatility: 0.2, Maturity: 1, Rate: 0.05}

// referenceBS 独立实现的 Black-Scholes 价格与 Delta
func referenceBS(p domain.Params, strike float64, put bool) (price, delta float64) {
	n := distuv.UnitNormal
	sq := p.Volatility * math.Sqrt(p.Maturity)
	d1 := (math.Log(p.Spot/strike) + (p.Rate-p.Dividend+0.5*p.Volatility*p.Volatility)*p.Maturity) / sq
	d2 := d1 - sq
	fq := math.Exp(-p.Dividend * p.Maturity)
	dk := strike * math.Exp(-p.Rate*p.Maturity)
	if put {
		return dk*n.CDF(-d2) - p.Spot*fq*n.CDF(-d1), -fq * n.CDF(-d1)
	}
	return p.Spot*fq*n.CDF(d1) - dk*n.CDF(d2), fq * n.CDF(d1)
}

func TestBlackScholesReferenceValues(t *testing.T) {
	q, err := BlackScholes{Strike: 100}.Price(atm, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10.450583572185565, q.Value, 1e-9)
	assert.Zero(t, q.StdErr)

	put, err := BlackScholes{Strike: 100, Put: true}.Price(atm, 0)
	require.NoError(t, err)
	assert.InDelta(t, 5.573526022256971, put.Value, 1e-9)

	cases := []struct {
		name   string
		p      domain.Params
		strike float64
		put    bool
	}{
		{"otm call", domain.Params{Spot: 90, Volatility: 0.3, Maturity: 0.5, Rate: 0.02}, 100, false},
		{"itm put", domain.Params{Spot: 80, Volatility: 0.25, Maturity: 2, Rate: 0.01}, 100, true},
		{"dividend call", domain.Params{Spot: 100, Volatility: 0.2, Maturity: 1, Rate: 0.05, Dividend: 0.03}, 95, false},
		{"negative rate put", domain.Params{Spot: 100, Volatility: 0.15, Maturity: 1, Rate: -0.01}, 105, true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			want, _ := referenceBS(tt.p, tt.strike, tt.put)
			q, err := BlackScholes{Strike: tt.strike, Put: tt.put}.Price(tt.p, 0)
			require.NoError(t, err)
			assert.InDelta(t, want, q.Value, 1e-9)
		})
	}
}

func TestBlackScholesPutCallParity(t *testing.T) {
	p := domain.Params{Spot: 103, Volatility: 0.35, Maturity: 0.75, Rate: 0.03, Dividend: 0.01}
	call, err := BlackScholes{Strike: 97}.Price(p, 0)
	require.NoError(t, err)
	put, err := BlackScholes{Strike: 97, Put: true}.Price(p, 0)
	require.NoError(t, err)

	forward := p.Spot*math.Exp(-p.Dividend*p.Maturity) - 97*math.Exp(-p.Rate*p.Maturity)
	assert.InDelta(t, forward, call.Value-put.Value, 1e-9)
}

func TestBlackScholesExpiredIsIntrinsic(t *testing.T) {
	p := atm
	p.Spot = 110
	p.Maturity = 0

	call, err := BlackScholes{Strike: 100}.Price(p, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10, call.Value, 0)

	put, err := BlackScholes{Strike: 100, Put: true}.Price(p, 0)
	require.NoError(t, err)
	assert.Zero(t, put.Value)

	_, err = BlackScholes{}.Price(atm, 0)
	assert.ErrorIs(t, err, ErrInvalidContract)
}

func TestBlackScholesDualAndTapeDerivatives(t *testing.T) {
	bs := BlackScholes{Strike: 100}
	wantPrice, wantDelta := referenceBS(atm, 100, false)

	in := domain.Inputs[ad.Dual]{
		Spot:     ad.Seed(atm.Spot, true, true),
		Vol:      ad.Seed(atm.Volatility, false, false),
		Maturity: ad.Seed(atm.Maturity, false, false),
		Rate:     ad.Seed(atm.Rate, false, false),
	}
	d, stderr, err := bs.PriceDual(in, atm, 0)
	require.NoError(t, err)
	assert.Zero(t, stderr)
	assert.InDelta(t, wantPrice, d.V, 1e-12)
	assert.InDelta(t, wantDelta, d.E1, 1e-12)
	assert.InDelta(t, 0.018762017345846895, d.E12, 1e-10)

	tape := ad.NewTape(64)
	vars := domain.Inputs[ad.Var]{
		Spot:     tape.Variable(atm.Spot),
		Vol:      tape.Variable(atm.Volatility),
		Maturity: tape.Variable(atm.Maturity),
		Rate:     tape.Variable(atm.Rate),
	}
	out, _, err := bs.PriceTape(vars, atm, 0)
	require.NoError(t, err)
	grad := tape.Gradient(out)
	assert.InDelta(t, wantPrice, out.Value(), 1e-12)
	assert.InDelta(t, wantDelta, grad.Wrt(vars.Spot), 1e-12)
	assert.InDelta(t, 37.52403469169379, grad.Wrt(vars.Vol), 1e-9)
	assert.InDelta(t, 53.232481545376345, grad.Wrt(vars.Rate), 1e-9)
}

func TestBlackScholesDualValueMatchesPrice(t *testing.T) {
	for _, put := range []bool{false, true} {
		bs := BlackScholes{Strike: 100, Put: put}
		for i := 0; i < 200; i++ {
			p := domain.Params{Spot: 50 + 0.5*float64(i), Volatility: 0.25, Maturity: 0.75, Rate: 0.03, Dividend: 0.01}
			q, err := bs.Price(p, 0)
			require.NoError(t, err)
			d, _, err := bs.PriceDual(domain.Inputs[ad.Dual]{
				Spot:     ad.Seed(p.Spot, true, true),
				Vol:      ad.Seed(p.Volatility, false, false),
				Maturity: ad.Seed(p.Maturity, false, false),
				Rate:     ad.Seed(p.Rate, false, false),
			}, p, 0)
			require.NoError(t, err)
			assert.Equal(t, q.Value, d.V, "spot=%v put=%t", p.Spot, put)
		}
	}
}

func TestMonteCarloReproducible(t *testing.T) {
	mc := MonteCarlo{Strike: 100, Paths: 4000}
	a, err := mc.Price(atm, 42)
	require.NoError(t, err)
	b, err := mc.Price(atm, 42)
	require.NoError(t, err)
	c, err := mc.Price(atm, 43)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Value, c.Value)
	assert.Positive(t, a.StdErr)
}

func TestMonteCarloConvergesToBlackScholes(t *testing.T) {
	for _, put := range []bool{false, true} {
		want, _ := referenceBS(atm, 100, put)
		for _, anti := range []bool{false, true} {
			q, err := MonteCarlo{Strike: 100, Put: put, Antithetic: anti}.Price(atm, 7)
			require.NoError(t, err)
			assert.InDelta(t, want, q.Value, 4*q.StdErr, "put=%t antithetic=%t", put, anti)
		}
	}
}

func TestMonteCarloAntitheticReducesError(t *testing.T) {
	plain, err := MonteCarlo{Strike: 100, Paths: 10000}.Price(atm, 11)
	require.NoError(t, err)
	anti, err := MonteCarlo{Strike: 100, Paths: 10000, Antithetic: true}.Price(atm, 11)
	require.NoError(t, err)
	assert.Less(t, anti.StdErr, plain.StdErr)
	assert.Contains(t, MonteCarlo{Strike: 100, Paths: 1001, Antithetic: true}.Key(), ":n=1002:")
}

func TestMonteCarloBarrierBelowVanilla(t *testing.T) {
	vanilla, _ := referenceBS(atm, 100, false)
	upOut, err := MonteCarlo{Strike: 100, Barrier: 120, BarrierUp: true, Paths: 5000, Steps: 50}.Price(atm, 3)
	require.NoError(t, err)
	assert.Positive(t, upOut.Value)
	assert.Less(t, upOut.Value, 0.5*vanilla)

	downOut, err := MonteCarlo{Strike: 100, Barrier: 70, Paths: 5000, Steps: 50}.Price(atm, 3)
	require.NoError(t, err)
	assert.Less(t, downOut.Value, vanilla+4*downOut.StdErr)
	assert.Greater(t, downOut.Value, upOut.Value)
}

func TestMonteCarloDualMatchesPrice(t *testing.T) {
	p := atm
	p.Smoothing = 0.5
	mc := MonteCarlo{Strike: 100, Barrier: 130, BarrierUp: true, Paths: 500, Steps: 10}
	q, err := mc.Price(p, 5)
	require.NoError(t, err)

	in := domain.Inputs[ad.Dual]{
		Spot:     ad.Seed(p.Spot, true, true),
		Vol:      ad.Seed(p.Volatility, false, false),
		Maturity: ad.Seed(p.Maturity, false, false),
		Rate:     ad.Seed(p.Rate, false, false),
	}
	d, stderr, err := mc.PriceDual(in, p, 5)
	require.NoError(t, err)
	assert.InDelta(t, q.Value, d.V, 1e-9)
	assert.InDelta(t, q.StdErr, stderr, 1e-12)

	tape := ad.NewTape(0)
	vars := domain.Inputs[ad.Var]{
		Spot:     tape.Variable(p.Spot),
		Vol:      tape.Variable(p.Volatility),
		Maturity: tape.Variable(p.Maturity),
		Rate:     tape.Variable(p.Rate),
	}
	out, _, err := mc.PriceTape(vars, p, 5)
	require.NoError(t, err)
	assert.Equal(t, q.Value, out.Value())
	assert.InDelta(t, d.E1, tape.Gradient(out).Wrt(vars.Spot), 1e-9)
}

func TestMonteCarloTapeGradientMatchesDual(t *testing.T) {
	p := atm
	p.Dividend = 0.02
	p.Smoothing = 0.5
	mc := MonteCarlo{Strike: 100, Barrier: 80, Paths: 400, Steps: 25, Antithetic: true}

	tape := ad.NewTape(0)
	vars := domain.Inputs[ad.Var]{
		Spot:     tape.Variable(p.Spot),
		Vol:      tape.Variable(p.Volatility),
		Maturity: tape.Variable(p.Maturity),
		Rate:     tape.Variable(p.Rate),
	}
	out, stderr, err := mc.PriceTape(vars, p, 11)
	require.NoError(t, err)
	// 路径在内部梯度带上求导，调用方的带上只留下自变量与复合节点
	assert.LessOrEqual(t, tape.Len(), 8)

	q, err := mc.Price(p, 11)
	require.NoError(t, err)
	assert.Equal(t, q.Value, out.Value())
	assert.Equal(t, q.StdErr, stderr)

	grad := tape.Gradient(out)
	seeded := func(i int) domain.Inputs[ad.Dual] {
		return domain.Inputs[ad.Dual]{
			Spot:     ad.Seed(p.Spot, i == 0, false),
			Vol:      ad.Seed(p.Volatility, i == 1, false),
			Maturity: ad.Seed(p.Maturity, i == 2, false),
			Rate:     ad.Seed(p.Rate, i == 3, false),
		}
	}
	for i, v := range []ad.Var{vars.Spot, vars.Vol, vars.Maturity, vars.Rate} {
		d, _, err := mc.PriceDual(seeded(i), p, 11)
		require.NoError(t, err)
		assert.InDelta(t, d.E1, grad.Wrt(v), 1e-9*math.Max(1, math.Abs(d.E1)), "input %d", i)
	}
}

func TestMonteCarloTapeExpired(t *testing.T) {
	p := atm
	p.Maturity = 0
	p.Spot = 110
	p.Smoothing = 1e-6
	tape := ad.NewTape(0)
	spot := tape.Variable(p.Spot)
	out, _, err := MonteCarlo{Strike: 100}.PriceTape(domain.Inputs[ad.Var]{
		Spot:     spot,
		Vol:      tape.Variable(p.Volatility),
		Maturity: tape.Variable(p.Maturity),
		Rate:     tape.Variable(p.Rate),
	}, p, 1)
	require.NoError(t, err)
	assert.InDelta(t, 10, out.Value(), 1e-6)
	assert.InDelta(t, 1, tape.Gradient(out).Wrt(spot), 1e-6)
}

func TestSimulationSizeIsBounded(t *testing.T) {
	bad := []Spec{
		{Type: TypeMonteCarlo, Strike: 100, Barrier: 80, Paths: 1_000_000, Steps: 100},
		{Type: TypeMonteCarlo, Strike: 100, Barrier: 80, Paths: 200_000},
		{Type: TypeMonteCarlo, Strike: 100, Paths: MaxPathSteps + 1},
		{Type: TypeMonteCarlo, Strike: 100, Barrier: 80, Paths: 2, Steps: math.MaxInt},
		{Type: TypeAmerican, Strike: 100, Paths: 100_000, Steps: 100},
		{Type: TypeAmerican, Strike: 100, Degree: MaxDegree + 1},
	}
	for _, spec := range bad {
		_, err := New(spec)
		assert.ErrorIs(t, err, ErrInvalidContract, "%+v", spec)
	}

	// 无障碍时只模拟一步，步数不计入规模
	_, err := New(Spec{Type: TypeMonteCarlo, Strike: 100, Paths: 1_000_000, Steps: 1000})
	assert.NoError(t, err)

	_, err = MonteCarlo{Strike: 100, Barrier: 80, Paths: 1_000_000, Steps: 100}.Price(atm, 0)
	assert.ErrorIs(t, err, ErrInvalidContract)
	_, err = LongstaffSchwartz{Strike: 100, Paths: 100_000, Steps: 100}.Price(atm, 0)
	assert.ErrorIs(t, err, ErrInvalidContract)
}

func TestLongstaffSchwartzEarlyExercisePremium(t *testing.T) {
	european, _ := referenceBS(atm, 100, true)
	lsm := LongstaffSchwartz{Strike: 100, Put: true, Paths: 10000, Steps: 50}

	q, err := lsm.Price(atm, 21)
	require.NoError(t, err)
	assert.Greater(t, q.Value, european)
	assert.Positive(t, q.StdErr)

	again, err := lsm.Price(atm, 21)
	require.NoError(t, err)
	assert.Equal(t, q, again)

	deep := atm
	deep.Spot = 60
	q, err = lsm.Price(deep, 21)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, q.Value, 40.0)

	expired := atm
	expired.Spot = 90
	expired.Maturity = 0
	q, err = lsm.Price(expired, 21)
	require.NoError(t, err)
	assert.InDelta(t, 10, q.Value, 0)

	_, err = LongstaffSchwartz{Strike: -1}.Price(atm, 0)
	assert.ErrorIs(t, err, ErrInvalidContract)
}

func TestNew(t *testing.T) {
	tests := []struct {
		spec Spec
		want domain.PricingCall
	}{
		{Spec{Strike: 100}, BlackScholes{Strike: 100}},
		{Spec{Type: "BS", Strike: 90, Put: true}, BlackScholes{Strike: 90, Put: true}},
		{Spec{Type: "mc", Strike: 100, Paths: 10}, MonteCarlo{Strike: 100, Paths: 10}},
		{Spec{Type: "barrier", Strike: 100, Barrier: 120, BarrierUp: true, Steps: 5}, MonteCarlo{Strike: 100, Barrier: 120, BarrierUp: true, Steps: 5}},
		{Spec{Type: " lsm ", Strike: 100, Put: true, Degree: 3}, LongstaffSchwartz{Strike: 100, Put: true, Degree: 3}},
		{Spec{Type: TypeAmerican, Strike: 100}, LongstaffSchwartz{Strike: 100}},
	}
	for _, tt := range tests {
		got, err := New(tt.spec)
		require.NoError(t, err, "%+v", tt.spec)
		assert.Equal(t, tt.want, got)
	}

	bad := []struct {
		spec Spec
		err  error
	}{
		{Spec{Type: TypeBlackScholes}, ErrInvalidContract},
		{Spec{Type: TypeMonteCarlo, Strike: 100, Paths: -1}, ErrInvalidContract},
		{Spec{Type: TypeMonteCarlo, Strike: 100, Barrier: -5}, ErrInvalidContract},
		{Spec{Type: TypeAmerican, Strike: 100, Degree: -1}, ErrInvalidContract},
		{Spec{Type: "heston", Strike: 100}, ErrUnknownKernel},
	}
	for _, tt := range bad {
		_, err := New(tt.spec)
		assert.ErrorIs(t, err, tt.err, "%+v", tt.spec)
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "black_scholes:k=100:put=false", BlackScholes{Strike: 100}.Key())
	assert.Equal(t, "monte_carlo:k=100:put=true:b=0:up=false:n=20000:steps=1:anti=false",
		MonteCarlo{Strike: 100, Put: true, Steps: 30}.Key())
	assert.Equal(t, "american_lsm:k=95:put=true:n=20000:steps=50:deg=2",
		LongstaffSchwartz{Strike: 95, Put: true}.Key())
	assert.NotEqual(t, MonteCarlo{Strike: 100, Barrier: 120}.Key(), MonteCarlo{Strike: 100, Barrier: 120, BarrierUp: true}.Key())
}
