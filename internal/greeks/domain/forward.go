package domain

import (
	"github.com/wyfcoding/greeksengine/internal/greeks/ad"
)

// 可微输入的下标
const (
	inSpot = iota
	inVol
	inMaturity
	inRate
)

// dualRun 一次超对偶求值的通道安排：第一个输入置入 ε1，第二个置入 ε2
type dualRun struct {
	first, second int
}

var (
	runSpotSpot = dualRun{inSpot, inSpot}     // Delta, Gamma
	runVolVol   = dualRun{inVol, inVol}       // Vega, Volga
	runSpotVol  = dualRun{inSpot, inVol}      // Vanna
	runTimeRate = dualRun{inMaturity, inRate} // Theta, Rho
)

// forwarder 前向模式：按需求集合只做必要的超对偶求值，无离散误差
type forwarder struct {
	ev   *evaluation
	dp   DualPricer
	runs map[dualRun]dualResult
}

type dualResult struct {
	out ad.Dual
	err error
}

func newForwarder(ev *evaluation, dp DualPricer) *forwarder {
	return &forwarder{ev: ev, dp: dp, runs: make(map[dualRun]dualResult, 4)}
}

func (f *forwarder) eval(run dualRun) (ad.Dual, error) {
	if res, ok := f.runs[run]; ok {
		return res.out, res.err
	}
	if err := f.ev.ctx.Err(); err != nil {
		return ad.Dual{}, err
	}
	p := f.ev.params
	seed := func(idx int, v float64) ad.Dual {
		return ad.Seed(v, run.first == idx, run.second == idx)
	}
	in := Inputs[ad.Dual]{
		Spot:     seed(inSpot, p.Spot),
		Vol:      seed(inVol, p.Volatility),
		Maturity: seed(inMaturity, p.Maturity),
		Rate:     seed(inRate, p.Rate),
	}
	out, _, err := f.dp.PriceDual(in, p, f.ev.seed)
	f.runs[run] = dualResult{out: out, err: err}
	return out, err
}

func (f *forwarder) run() error {
	for _, s := range f.ev.set.List() {
		if err := f.compute(s); err != nil {
			return err
		}
	}
	return nil
}

func (f *forwarder) compute(s Sensitivity) error {
	ev := f.ev
	var run dualRun
	switch s {
	case Delta, Gamma:
		run = runSpotSpot
	case Vega, Volga:
		run = runVolVol
	case Vanna:
		run = runSpotVol
	case Theta, Rho:
		if s == Theta && ev.params.Maturity <= 0 {
			ev.rb.Diagnose(s, DiagExpired, "maturity %g is not positive", ev.params.Maturity)
			return nil
		}
		run = runTimeRate
	default:
		return nil
	}

	out, err := f.eval(run)
	if err != nil {
		if ctxErr := ev.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		ev.rb.Diagnose(s, DiagPricingFailed, "%v", err)
		return nil
	}

	var value float64
	switch s {
	case Delta, Vega:
		value = out.E1
	case Gamma, Volga, Vanna:
		value = out.E12
	case Theta:
		value = -out.E1
	case Rho:
		value = out.E2
	}
	ev.record(s, value)
	return nil
}
