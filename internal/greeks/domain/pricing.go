package domain

import (
	"fmt"
	"math"

	"github.com/wyfcoding/greeksengine/internal/greeks/ad"
)

// Params 定价输入。Smoothing 由引擎写入，调用方无需设置。
type Params struct {
	Spot       float64 `json:"spot" msgpack:"spot"`
	Volatility float64 `json:"volatility" msgpack:"volatility"`
	Maturity   float64 `json:"maturity" msgpack:"maturity"` // 剩余期限（年），<= 0 表示已到期
	Rate       float64 `json:"rate" msgpack:"rate"`
	Dividend   float64 `json:"dividend" msgpack:"dividend"`
	Smoothing  float64 `json:"smoothing,omitempty" msgpack:"smoothing,omitempty"`
}

// Validate 校验定价输入
func (p Params) Validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	switch {
	case !finite(p.Spot) || p.Spot <= 0:
		return fmt.Errorf("%w: spot=%v", ErrInvalidParams, p.Spot)
	case !finite(p.Volatility) || p.Volatility <= 0:
		return fmt.Errorf("%w: volatility=%v", ErrInvalidParams, p.Volatility)
	case !finite(p.Maturity):
		return fmt.Errorf("%w: maturity=%v", ErrInvalidParams, p.Maturity)
	case !finite(p.Rate):
		return fmt.Errorf("%w: rate=%v", ErrInvalidParams, p.Rate)
	case !finite(p.Dividend):
		return fmt.Errorf("%w: dividend=%v", ErrInvalidParams, p.Dividend)
	case !finite(p.Smoothing) || p.Smoothing < 0:
		return fmt.Errorf("%w: smoothing=%v", ErrInvalidParams, p.Smoothing)
	}
	return nil
}

// Quote 定价结果，闭式解的标准误差为 0
type Quote struct {
	Value  float64
	StdErr float64
}

// PricingCall 外部定价契约：对固定种子是纯函数且结果确定
type PricingCall interface {
	Price(p Params, seed uint64) (Quote, error)
}

// PricingFunc 将普通函数适配为 PricingCall
type PricingFunc func(p Params, seed uint64) (Quote, error)

func (f PricingFunc) Price(p Params, seed uint64) (Quote, error) { return f(p, seed) }

// Inputs 可微的市场输入，其余字段取自 Params
type Inputs[T any] struct {
	Spot     T
	Vol      T
	Maturity T
	Rate     T
}

// DualPricer 可在超对偶数上求值的定价调用（前向模式）。
// 返回值的 V 必须与同种子下 Price 的结果一致，第二个返回值为标准误差。
type DualPricer interface {
	PriceDual(in Inputs[ad.Dual], p Params, seed uint64) (ad.Dual, float64, error)
}

// TapePricer 可在梯度带上求值的定价调用（反向模式）
type TapePricer interface {
	PriceTape(in Inputs[ad.Var], p Params, seed uint64) (ad.Var, float64, error)
}

// Keyed 可提供稳定标识的定价调用，用于结果缓存
type Keyed interface {
	Key() string
}

// safePrice 调用定价函数并校验输出
func safePrice(call PricingCall, p Params, seed uint64) (Quote, error) {
	q, err := call.Price(p, seed)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrPricingFailed, err)
	}
	if math.IsNaN(q.StdErr) || q.StdErr < 0 {
		q.StdErr = 0
	}
	return q, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
