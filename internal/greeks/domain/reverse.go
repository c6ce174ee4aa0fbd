package domain

import (
	"github.com/wyfcoding/greeksengine/internal/greeks/ad"
)

// gradient 价格对四个可微输入的一阶导数
type gradient struct {
	spot, vol, maturity, rate float64
	err                       error
}

func (g gradient) finite() bool {
	return isFinite(g.spot) && isFinite(g.vol) && isFinite(g.maturity) && isFinite(g.rate)
}

// reverser 反向模式：每次梯度带求值给出全部一阶导数；
// 二阶量由同种子下相邻点梯度的中心差分得到。
type reverser struct {
	ev    *evaluation
	tp    TapePricer
	grads map[stencilKey]gradient
}

func newReverser(ev *evaluation, tp TapePricer) *reverser {
	return &reverser{ev: ev, tp: tp, grads: make(map[stencilKey]gradient, 8)}
}

func (r *reverser) at(key stencilKey) gradient {
	if g, ok := r.grads[key]; ok {
		return g
	}
	if err := r.ev.ctx.Err(); err != nil {
		return gradient{err: err}
	}
	bumps := r.ev.cfg.Bumps()
	p := r.ev.params
	p.Spot += float64(key.ds) * p.Spot * bumps.SpotRelative
	p.Volatility += float64(key.dv) * bumps.Vol

	tape := ad.NewTape(512)
	in := Inputs[ad.Var]{
		Spot:     tape.Variable(p.Spot),
		Vol:      tape.Variable(p.Volatility),
		Maturity: tape.Variable(p.Maturity),
		Rate:     tape.Variable(p.Rate),
	}
	var g gradient
	out, _, err := r.tp.PriceTape(in, p, r.ev.seed)
	if err != nil {
		g.err = err
	} else {
		adj := tape.Gradient(out)
		g = gradient{
			spot:     adj.Wrt(in.Spot),
			vol:      adj.Wrt(in.Vol),
			maturity: adj.Wrt(in.Maturity),
			rate:     adj.Wrt(in.Rate),
		}
	}
	r.grads[key] = g
	return g
}

func (r *reverser) run() error {
	for _, s := range r.ev.set.List() {
		if err := r.compute(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *reverser) compute(s Sensitivity) error {
	ev := r.ev
	bumps := ev.cfg.Bumps()
	h := ev.params.Spot * bumps.SpotRelative
	k := bumps.Vol

	var (
		value float64
		used  []stencilKey
	)
	switch s {
	case Delta, Vega, Rho, Theta:
		if s == Theta && ev.params.Maturity <= 0 {
			ev.rb.Diagnose(s, DiagExpired, "maturity %g is not positive", ev.params.Maturity)
			return nil
		}
		used = []stencilKey{origin}
	case Gamma, Vanna:
		used = []stencilKey{spotUp, spotDown}
	case Volga:
		used = []stencilKey{volUp, volDown}
	default:
		return nil
	}
	if s == Volga && ev.params.Volatility <= k {
		ev.rb.Diagnose(s, DiagBumpExceedsInput, "volatility %g does not exceed vol bump %g", ev.params.Volatility, k)
		return nil
	}

	grads := make([]gradient, len(used))
	for i, key := range used {
		g := r.at(key)
		if g.err != nil {
			if ctxErr := ev.ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			ev.rb.Diagnose(s, DiagPricingFailed, "%v", g.err)
			return nil
		}
		if !g.finite() {
			ev.rb.Diagnose(s, DiagNonFinite, "non-finite gradient")
			return nil
		}
		grads[i] = g
	}

	switch s {
	case Delta:
		value = grads[0].spot
	case Vega:
		value = grads[0].vol
	case Rho:
		value = grads[0].rate
	case Theta:
		// 日历时间前进等于剩余期限减少
		value = -grads[0].maturity
	case Gamma:
		value = (grads[0].spot - grads[1].spot) / (2 * h)
	case Vanna:
		value = (grads[0].vol - grads[1].vol) / (2 * h)
	case Volga:
		value = (grads[0].vol - grads[1].vol) / (2 * k)
	}
	ev.record(s, value)
	return nil
}
