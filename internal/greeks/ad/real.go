// Package ad 提供定价内核使用的数值类型：普通浮点、前向超对偶数与反向梯度带。
// 定价内核只需以 Real 约束编写一次泛型实现，即可分别实例化为三种求导方式。
package ad

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Real 定价内核可用的数值运算集合
type Real[T any] interface {
	Add(T) T
	Sub(T) T
	Mul(T) T
	Div(T) T
	Neg() T
	AddConst(float64) T
	MulConst(float64) T
	Exp() T
	Log() T
	Sqrt() T
	NormCDF() T
	Softplus() T
	Sigmoid() T
	// Const 返回与接收者同类型（同一梯度带）的常量
	Const(float64) T
	Value() float64
}

// Float 不携带导数信息的普通数值
type Float float64

func (x Float) Add(y Float) Float { return x + y }
func (x Float) Sub(y Float) Float { return x - y }
func (x Float) Mul(y Float) Float { return x * y }
func (x Float) Div(y Float) Float { return x / y }
func (x Float) Neg() Float { return -x }
func (x Float) AddConst(c float64) Float { return x + Float(c) }
func (x Float) MulConst(c float64) Float { return x * Float(c) }
func (x Float) Exp() Float { return Float(math.Exp(float64(x))) }
func (x Float) Log() Float { return Float(math.Log(float64(x))) }
func (x Float) Sqrt() Float { return Float(math.Sqrt(float64(x))) }
func (x Float) NormCDF() Float { return Float(NormCDF(float64(x))) }
func (x Float) Softplus() Float { return Float(Softplus(float64(x))) }
func (x Float) Sigmoid() Float { return Float(Sigmoid(float64(x))) }
func (x Float) Const(c float64) Float { return Float(c) }
func (x Float) Value() float64 { return float64(x) }

// NormCDF 标准正态分布累积分布函数
func NormCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormPDF 标准正态分布概率密度函数
func NormPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// Softplus 数值稳定的 log(1+e^x)
func Softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}

// Sigmoid 数值稳定的 1/(1+e^-x)
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
