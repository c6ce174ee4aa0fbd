package kernel

import (
	"fmt"

	"github.com/wyfcoding/greeksengine/internal/greeks/ad"
	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
)

// BlackScholes 欧式期权闭式定价（含连续股息率），标准误差恒为 0
type BlackScholes struct {
	Strike float64
	Put    bool
}

var (
	_ domain.PricingCall = BlackScholes{}
	_ domain.DualPricer  = BlackScholes{}
	_ domain.TapePricer  = BlackScholes{}
)

// blackScholes 泛型定价公式，T <= 0 时返回内在价值
func blackScholes[T ad.Real[T]](in domain.Inputs[T], strike, dividend float64, put bool) T {
	s, vol, mat, r := in.Spot, in.Vol, in.Maturity, in.Rate
	if mat.Value() <= 0 {
		intrinsic := s.AddConst(-strike)
		if put {
			intrinsic = intrinsic.Neg()
		}
		if intrinsic.Value() > 0 {
			return intrinsic
		}
		return s.Const(0)
	}

	sqrtT := mat.Sqrt()
	volSqrtT := vol.Mul(sqrtT)
	drift := r.AddConst(-dividend).Add(vol.Mul(vol).MulConst(0.5)).Mul(mat)
	d1 := s.MulConst(1 / strike).Log().Add(drift).Div(volSqrtT)
	d2 := d1.Sub(volSqrtT)

	fwdSpot := s.Mul(mat.MulConst(-dividend).Exp())
	pvStrike := r.Mul(mat).Neg().Exp().MulConst(strike)
	if put {
		return pvStrike.Mul(d2.Neg().NormCDF()).Sub(fwdSpot.Mul(d1.Neg().NormCDF()))
	}
	return fwdSpot.Mul(d1.NormCDF()).Sub(pvStrike.Mul(d2.NormCDF()))
}

func (b BlackScholes) validate() error {
	if !(b.Strike > 0) {
		return fmt.Errorf("%w: strike=%v", ErrInvalidContract, b.Strike)
	}
	return nil
}

func (b BlackScholes) Price(p domain.Params, _ uint64) (domain.Quote, error) {
	if err := b.validate(); err != nil {
		return domain.Quote{}, err
	}
	v := blackScholes(floatInputs(p), b.Strike, p.Dividend, b.Put)
	return domain.Quote{Value: v.Value()}, nil
}

func (b BlackScholes) PriceDual(in domain.Inputs[ad.Dual], p domain.Params, _ uint64) (ad.Dual, float64, error) {
	if err := b.validate(); err != nil {
		return ad.Dual{}, 0, err
	}
	return blackScholes(in, b.Strike, p.Dividend, b.Put), 0, nil
}

func (b BlackScholes) PriceTape(in domain.Inputs[ad.Var], p domain.Params, _ uint64) (ad.Var, float64, error) {
	if err := b.validate(); err != nil {
		return ad.Var{}, 0, err
	}
	return blackScholes(in, b.Strike, p.Dividend, b.Put), 0, nil
}

func (b BlackScholes) Key() string {
	return fmt.Sprintf("%s:k=%g:put=%t", TypeBlackScholes, b.Strike, b.Put)
}

func floatInputs(p domain.Params) domain.Inputs[ad.Float] {
	return domain.Inputs[ad.Float]{
		Spot:     ad.Float(p.Spot),
		Vol:      ad.Float(p.Volatility),
		Maturity: ad.Float(p.Maturity),
		Rate:     ad.Float(p.Rate),
	}
}
