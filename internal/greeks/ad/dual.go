package ad

import "math"

// Dual 超对偶数 v + e1·ε1 + e2·ε2 + e12·ε1ε2，其中 ε1² = ε2² = 0。
// 将两个输入分别置入 ε1、ε2 通道后求值，E1/E2 为一阶导数，E12 为混合二阶导数；
// 同一输入同时置入两个通道时 E12 即为该输入的二阶导数。
type Dual struct {
	V   float64
	E1  float64
	E2  float64
	E12 float64
}

// Seed 构造自变量，按需置入两个导数通道
func Seed(v float64, first, second bool) Dual {
	d := Dual{V: v}
	if first {
		d.E1 = 1
	}
	if second {
		d.E2 = 1
	}
	return d
}

// chain 应用一元函数 f，其中 f0=f(v)、f1=f'(v)、f2=f''(v)
func (x Dual) chain(f0, f1, f2 float64) Dual {
	return Dual{
		V:   f0,
		E1:  f1 * x.E1,
		E2:  f1 * x.E2,
		E12: f1*x.E12 + f2*x.E1*x.E2,
	}
}

func (x Dual) Add(y Dual) Dual {
	return Dual{x.V + y.V, x.E1 + y.E1, x.E2 + y.E2, x.E12 + y.E12}
}

func (x Dual) Sub(y Dual) Dual {
	return Dual{x.V - y.V, x.E1 - y.E1, x.E2 - y.E2, x.E12 - y.E12}
}

func (x Dual) Mul(y Dual) Dual {
	return Dual{
		V:   x.V * y.V,
		E1:  x.V*y.E1 + x.E1*y.V,
		E2:  x.V*y.E2 + x.E2*y.V,
		E12: x.V*y.E12 + x.E1*y.E2 + x.E2*y.E1 + x.E12*y.V,
	}
}

func (x Dual) Div(y Dual) Dual {
	inv := 1 / y.V
	out := x.Mul(y.chain(inv, -inv*inv, 2*inv*inv*inv))
	// 值部分与 Float 的除法逐位一致
	out.V = x.V / y.V
	return out
}

func (x Dual) Neg() Dual {
	return Dual{-x.V, -x.E1, -x.E2, -x.E12}
}

func (x Dual) AddConst(c float64) Dual {
	x.V += c
	return x
}

func (x Dual) MulConst(c float64) Dual {
	return Dual{c * x.V, c * x.E1, c * x.E2, c * x.E12}
}

func (x Dual) Exp() Dual {
	e := math.Exp(x.V)
	return x.chain(e, e, e)
}

func (x Dual) Log() Dual {
	inv := 1 / x.V
	return x.chain(math.Log(x.V), inv, -inv*inv)
}

func (x Dual) Sqrt() Dual {
	s := math.Sqrt(x.V)
	return x.chain(s, 0.5/s, -0.25/(s*x.V))
}

func (x Dual) NormCDF() Dual {
	pdf := NormPDF(x.V)
	return x.chain(NormCDF(x.V), pdf, -x.V*pdf)
}

func (x Dual) Softplus() Dual {
	s := Sigmoid(x.V)
	return x.chain(Softplus(x.V), s, s*(1-s))
}

func (x Dual) Sigmoid() Dual {
	s := Sigmoid(x.V)
	d := s * (1 - s)
	return x.chain(s, d, d*(1-2*s))
}

func (x Dual) Const(c float64) Dual { return Dual{V: c} }

func (x Dual) Value() float64 { return x.V }
