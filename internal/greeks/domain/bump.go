package domain

import (
	"math"
)

// stencilKey 扰动点，各分量为对应步长的倍数
type stencilKey struct {
	ds, dv, dt, dr int8
}

type stencilPoint struct {
	quote Quote
	err   error
}

// bumper 有限差分重估。同一模板内的每个点都复用基础种子，仅改变被扰动的输入，
// 因此模拟噪声在差分中相互抵消。已求值的点按 stencilKey 缓存，Delta 与 Gamma 共享定价调用。
type bumper struct {
	ev     *evaluation
	h      float64 // 现货绝对步长
	k      float64 // 波动率步长
	dt     float64 // 实际时间步长（可能被截断）
	dr     float64 // 利率步长
	points map[stencilKey]stencilPoint
}

func newBumper(ev *evaluation) *bumper {
	bumps := ev.cfg.Bumps()
	b := &bumper{
		ev:     ev,
		h:      ev.params.Spot * bumps.SpotRelative,
		k:      bumps.Vol,
		dt:     math.Min(bumps.Time, ev.params.Maturity),
		dr:     bumps.Rate,
		points: make(map[stencilKey]stencilPoint, 16),
	}
	b.points[stencilKey{}] = stencilPoint{quote: ev.base}
	return b
}

func (b *bumper) at(key stencilKey) (Quote, error) {
	if pt, ok := b.points[key]; ok {
		return pt.quote, pt.err
	}
	if err := b.ev.ctx.Err(); err != nil {
		return Quote{}, err
	}
	p := b.ev.params
	p.Spot += float64(key.ds) * b.h
	p.Volatility += float64(key.dv) * b.k
	p.Maturity += float64(key.dt) * b.dt
	p.Rate += float64(key.dr) * b.dr

	q, err := safePrice(b.ev.call, p, b.ev.seed)
	b.points[key] = stencilPoint{quote: q, err: err}
	return q, err
}

// term 模板中的一项
type term struct {
	key stencilKey
	w   float64
}

// combine 按固定顺序对模板点加权求和，返回分子
func (b *bumper) combine(terms []term) (float64, error) {
	sum := 0.0
	for _, t := range terms {
		q, err := b.at(t.key)
		if err != nil {
			return 0, err
		}
		if !isFinite(q.Value) {
			return math.NaN(), nil
		}
		sum += t.w * q.Value
	}
	return sum, nil
}

var (
	origin = stencilKey{}

	spotUp, spotDown = stencilKey{ds: 1}, stencilKey{ds: -1}
	volUp, volDown   = stencilKey{dv: 1}, stencilKey{dv: -1}
	rateUp, rateDown = stencilKey{dr: 1}, stencilKey{dr: -1}
	timeBack         = stencilKey{dt: -1}
)

func (b *bumper) run() error {
	for _, s := range b.ev.set.List() {
		if err := b.compute(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *bumper) compute(s Sensitivity) error {
	ev := b.ev
	var (
		terms []term
		scale float64
	)
	switch s {
	case Delta:
		terms = []term{{spotUp, 1}, {spotDown, -1}}
		scale = 2 * b.h
	case Gamma:
		terms = []term{{spotUp, 1}, {origin, -2}, {spotDown, 1}}
		scale = b.h * b.h
	case Vega, Volga, Vanna:
		if ev.params.Volatility <= b.k {
			ev.rb.Diagnose(s, DiagBumpExceedsInput, "volatility %g does not exceed vol bump %g", ev.params.Volatility, b.k)
			return nil
		}
		switch s {
		case Vega:
			terms = []term{{volUp, 1}, {volDown, -1}}
			scale = 2 * b.k
		case Volga:
			terms = []term{{volUp, 1}, {origin, -2}, {volDown, 1}}
			scale = b.k * b.k
		default:
			terms = []term{
				{stencilKey{ds: 1, dv: 1}, 1},
				{stencilKey{ds: 1, dv: -1}, -1},
				{stencilKey{ds: -1, dv: 1}, -1},
				{stencilKey{ds: -1, dv: -1}, 1},
			}
			scale = 4 * b.h * b.k
		}
	case Rho:
		terms = []term{{rateUp, 1}, {rateDown, -1}}
		scale = 2 * b.dr
	case Theta:
		if ev.params.Maturity <= 0 {
			ev.rb.Diagnose(s, DiagExpired, "maturity %g is not positive", ev.params.Maturity)
			return nil
		}
		if want := ev.cfg.Bumps().Time; b.dt < want {
			ev.rb.Diagnose(s, DiagThetaClamped, "time bump clamped from %g to remaining maturity %g", want, b.dt)
		}
		// (P(T) − P(T−Δt)) / −Δt
		terms = []term{{origin, -1}, {timeBack, 1}}
		scale = b.dt
	default:
		return nil
	}

	num, err := b.combine(terms)
	if err != nil {
		if ctxErr := ev.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		ev.rb.Diagnose(s, DiagPricingFailed, "%v", err)
		return nil
	}
	ev.record(s, num/scale)
	if se := ev.base.StdErr; se > 0 && isFinite(num) && math.Abs(num) < se {
		ev.rb.Diagnose(s, DiagPrecisionDegraded, "stencil difference %g below standard error %g", num, se)
	}
	return nil
}
