package ad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// f(x, y) = x·exp(y) + log(x)·sqrt(y) / y
func evalF[T Real[T]](x, y T) T {
	return x.Mul(y.Exp()).Add(x.Log().Mul(y.Sqrt()).Div(y))
}

func TestFloatMatchesMath(t *testing.T) {
	x, y := 1.7, 0.4
	got := evalF(Float(x), Float(y)).Value()
	want := x*math.Exp(y) + math.Log(x)*math.Sqrt(y)/y
	assert.Equal(t, want, got)
}

func TestDualDerivatives(t *testing.T) {
	x, y := 1.7, 0.4
	// 解析导数
	dfdx := math.Exp(y) + math.Sqrt(y)/(x*y)
	dfdy := x*math.Exp(y) - 0.5*math.Log(x)*math.Pow(y, -1.5)
	d2fdx2 := -math.Sqrt(y) / (x * x * y)
	d2fdxdy := math.Exp(y) - 0.5*math.Pow(y, -1.5)/x

	xx := evalF(Seed(x, true, true), Seed(y, false, false))
	assert.InDelta(t, dfdx, xx.E1, 1e-12)
	assert.InDelta(t, dfdx, xx.E2, 1e-12)
	assert.InDelta(t, d2fdx2, xx.E12, 1e-12)

	xy := evalF(Seed(x, true, false), Seed(y, false, true))
	assert.InDelta(t, dfdx, xy.E1, 1e-12)
	assert.InDelta(t, dfdy, xy.E2, 1e-12)
	assert.InDelta(t, d2fdxdy, xy.E12, 1e-12)
}

func TestDualSpecialFunctions(t *testing.T) {
	tests := []struct {
		name string
		f    func(Dual) Dual
		d1   func(float64) float64
		d2   func(float64) float64
	}{
		{
			name: "norm cdf",
			f:    Dual.NormCDF,
			d1:   NormPDF,
			d2:   func(v float64) float64 { return -v * NormPDF(v) },
		},
		{
			name: "softplus",
			f:    Dual.Softplus,
			d1:   Sigmoid,
			d2:   func(v float64) float64 { s := Sigmoid(v); return s * (1 - s) },
		},
		{
			name: "sigmoid",
			f:    Dual.Sigmoid,
			d1:   func(v float64) float64 { s := Sigmoid(v); return s * (1 - s) },
			d2:   func(v float64) float64 { s := Sigmoid(v); return s * (1 - s) * (1 - 2*s) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, v := range []float64{-2.5, -0.3, 0, 0.8, 3} {
				out := tt.f(Seed(v, true, true))
				assert.InDelta(t, tt.d1(v), out.E1, 1e-14)
				assert.InDelta(t, tt.d2(v), out.E12, 1e-14)
			}
		})
	}
}

func TestTapeGradientMatchesDual(t *testing.T) {
	x, y := 1.7, 0.4

	tape := NewTape(0)
	vx, vy := tape.Variable(x), tape.Variable(y)
	out := evalF(vx, vy)
	grad := tape.Gradient(out)

	dx := evalF(Seed(x, true, false), Seed(y, false, false))
	dy := evalF(Seed(x, false, false), Seed(y, true, false))

	assert.InDelta(t, evalF(Float(x), Float(y)).Value(), out.Value(), 1e-15)
	assert.InDelta(t, dx.E1, grad.Wrt(vx), 1e-12)
	assert.InDelta(t, dy.E1, grad.Wrt(vy), 1e-12)
}

func TestTapeConstantNodes(t *testing.T) {
	tape := NewTape(4)
	x := tape.Variable(2)
	c := x.Const(3)
	out := x.Mul(c).AddConst(1).MulConst(2)
	grad := tape.Gradient(out)

	assert.Equal(t, 14.0, out.Value())
	assert.Equal(t, 6.0, grad.Wrt(x))
	// 常量节点同样得到伴随值，但不会作为自变量暴露
	assert.Equal(t, 4.0, grad.Wrt(c))
}

func TestSoftplusStableForLargeInputs(t *testing.T) {
	assert.InDelta(t, 800.0, Softplus(800), 1e-9)
	assert.InDelta(t, 0.0, Softplus(-800), 1e-300)
	assert.Equal(t, 1.0, Sigmoid(800))
	assert.Equal(t, 0.0, Sigmoid(-800))
}

func TestDualDivValueMatchesFloat(t *testing.T) {
	for i := 1; i <= 200; i++ {
		x, y := 50+0.37*float64(i), 0.1+0.013*float64(i)
		got := Seed(x, true, true).Div(Seed(y, false, false))
		assert.Equal(t, Float(x).Div(Float(y)).Value(), got.V, "x=%v y=%v", x, y)
	}
}

func TestTapeResetAndComposite(t *testing.T) {
	tape := NewTape(0)
	x := tape.Variable(2)
	y := tape.Variable(3)
	out := Composite(7, []Var{x, y}, []float64{4, 5})
	assert.Equal(t, 7.0, out.Value())

	var buf Adjoints
	buf = tape.GradientInto(out.Mul(out), buf)
	assert.Equal(t, 2*7*4.0, buf.Wrt(x))
	assert.Equal(t, 2*7*5.0, buf.Wrt(y))

	tape.Reset()
	assert.Zero(t, tape.Len())
	z := tape.Variable(1.5)
	buf = tape.GradientInto(z.Exp(), buf)
	assert.InDelta(t, math.Exp(1.5), buf.Wrt(z), 1e-15)
	assert.Len(t, buf, 2)
}
