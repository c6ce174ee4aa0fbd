// Package smoothing 提供不连续收益特征的光滑近似（指示函数、max/min、绝对值）。
// 每个函数都有 float64 版本和 ad.Real 泛型版本，二者在 ad.Float 上逐位一致。
// eps 为锐度参数（与自变量同单位），eps → 0 时收敛到对应的不光滑函数；eps <= 0 直接取精确值。
package smoothing

import (
	"github.com/wyfcoding/greeksengine/internal/greeks/ad"
)

// IndicatorOf 光滑阶跃 σ(x/eps) ∈ (0,1)，关于 x 单调递增
func IndicatorOf[T ad.Real[T]](x T, eps float64) T {
	if eps <= 0 {
		if x.Value() > 0 {
			return x.Const(1)
		}
		return x.Const(0)
	}
	return x.MulConst(1 / eps).Sigmoid()
}

// PositiveOf 光滑 max(x, 0) = eps·softplus(x/eps)
func PositiveOf[T ad.Real[T]](x T, eps float64) T {
	if eps <= 0 {
		if x.Value() > 0 {
			return x
		}
		return x.Const(0)
	}
	return x.MulConst(1 / eps).Softplus().MulConst(eps)
}

// MaxOf 光滑 max(x, y)
func MaxOf[T ad.Real[T]](x, y T, eps float64) T {
	return y.Add(PositiveOf(x.Sub(y), eps))
}

// MinOf 光滑 min(x, y)
func MinOf[T ad.Real[T]](x, y T, eps float64) T {
	return x.Sub(PositiveOf(x.Sub(y), eps))
}

// AbsOf 光滑 |x| = sqrt(x² + eps²)
func AbsOf[T ad.Real[T]](x T, eps float64) T {
	if eps <= 0 {
		if x.Value() < 0 {
			return x.Neg()
		}
		return x
	}
	return x.Mul(x).AddConst(eps * eps).Sqrt()
}

// Indicator float64 版本的 IndicatorOf
func Indicator(x, eps float64) float64 {
	return IndicatorOf(ad.Float(x), eps).Value()
}

// IndicatorDerivative Indicator 关于 x 的导数，在实轴上积分为 1
func IndicatorDerivative(x, eps float64) float64 {
	if eps <= 0 {
		return 0
	}
	s := ad.Sigmoid(x / eps)
	return s * (1 - s) / eps
}

// Positive float64 版本的 PositiveOf
func Positive(x, eps float64) float64 {
	return PositiveOf(ad.Float(x), eps).Value()
}

// Max float64 版本的 MaxOf
func Max(x, y, eps float64) float64 {
	return MaxOf(ad.Float(x), ad.Float(y), eps).Value()
}

// Min float64 版本的 MinOf
func Min(x, y, eps float64) float64 {
	return MinOf(ad.Float(x), ad.Float(y), eps).Value()
}

// Abs float64 版本的 AbsOf
func Abs(x, eps float64) float64 {
	return AbsOf(ad.Float(x), eps).Value()
}
