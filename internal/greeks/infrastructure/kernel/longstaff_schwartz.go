package kernel

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
)

// LSM 回归多项式次数
const (
	DefaultDegree = 2
	MaxDegree     = 8
)

// LongstaffSchwartz 美式期权最小二乘蒙特卡洛定价。
// 提前行权边界不可微，只实现普通定价接口，引擎对其请求 AD 时会降级为 bump。
type LongstaffSchwartz struct {
	Strike float64
	Put    bool
	Paths  int
	Steps  int
	Degree int
}

var _ domain.PricingCall = LongstaffSchwartz{}

func (l LongstaffSchwartz) withDefaults() LongstaffSchwartz {
	if l.Paths <= 0 {
		l.Paths = DefaultPaths
	}
	if l.Steps <= 0 {
		l.Steps = DefaultSteps
	}
	if l.Degree <= 0 {
		l.Degree = DefaultDegree
	}
	return l
}

func (l LongstaffSchwartz) validate() error {
	if !(l.Strike > 0) {
		return fmt.Errorf("%w: strike=%v", ErrInvalidContract, l.Strike)
	}
	if l.Paths < 0 || l.Steps < 0 || l.Degree < 0 || l.Degree > MaxDegree {
		return fmt.Errorf("%w: paths=%d steps=%d degree=%d", ErrInvalidContract, l.Paths, l.Steps, l.Degree)
	}
	d := l.withDefaults()
	return checkSize(d.Paths, d.Steps)
}

func (l LongstaffSchwartz) exercise(s float64) float64 {
	if l.Put {
		return math.Max(0, l.Strike-s)
	}
	return math.Max(0, s-l.Strike)
}

// Price 计算美式期权现值。路径随机数只由 seed 决定，扰动输入时复用同一组随机数。
func (l LongstaffSchwartz) Price(p domain.Params, seed uint64) (domain.Quote, error) {
	if err := l.validate(); err != nil {
		return domain.Quote{}, err
	}
	l = l.withDefaults()
	if p.Maturity <= 0 {
		return domain.Quote{Value: l.exercise(p.Spot)}, nil
	}

	dt := p.Maturity / float64(l.Steps)
	df := math.Exp(-p.Rate * dt)
	drift := (p.Rate - p.Dividend - 0.5*p.Volatility*p.Volatility) * dt
	diffusion := p.Volatility * math.Sqrt(dt)

	// 1. 生成路径
	rng := rand.New(rand.NewPCG(seed, pcgStream))
	paths := make([][]float64, l.Paths)
	for i := range paths {
		paths[i] = make([]float64, l.Steps+1)
		paths[i][0] = p.Spot
		for j := 1; j <= l.Steps; j++ {
			paths[i][j] = paths[i][j-1] * math.Exp(drift+diffusion*rng.NormFloat64())
		}
	}

	// 2. 末端收益
	cashFlows := make([]float64, l.Paths)
	for i := range cashFlows {
		cashFlows[i] = l.exercise(paths[i][l.Steps])
	}

	// 3. 反向回归，比较行权价值与延续价值
	for t := l.Steps - 1; t > 0; t-- {
		var xs, ys []float64
		var itm []int
		for i := range cashFlows {
			cashFlows[i] *= df
			if l.exercise(paths[i][t]) > 0 {
				xs = append(xs, paths[i][t]/l.Strike)
				ys = append(ys, cashFlows[i])
				itm = append(itm, i)
			}
		}
		if len(itm) <= l.Degree+1 {
			continue
		}
		coeffs, err := l.regress(xs, ys)
		if err != nil {
			return domain.Quote{}, fmt.Errorf("regression at step %d: %w", t, err)
		}
		for k, i := range itm {
			if iv := l.exercise(paths[i][t]); iv >= polyval(coeffs, xs[k]) {
				cashFlows[i] = iv
			}
		}
	}

	for i := range cashFlows {
		cashFlows[i] *= df
	}
	mean, std := stat.MeanStdDev(cashFlows, nil)
	// 立即行权的价值构成下界
	value := math.Max(mean, l.exercise(p.Spot))
	return domain.Quote{Value: value, StdErr: std / math.Sqrt(float64(len(cashFlows)))}, nil
}

// regress 以 S/K 的多项式做最小二乘回归（QR 分解）
func (l LongstaffSchwartz) regress(xs, ys []float64) ([]float64, error) {
	cols := l.Degree + 1
	a := mat.NewDense(len(xs), cols, nil)
	for i, x := range xs {
		pow := 1.0
		for j := 0; j < cols; j++ {
			a.Set(i, j, pow)
			pow *= x
		}
	}
	var beta mat.VecDense
	if err := beta.SolveVec(a, mat.NewVecDense(len(ys), ys)); err != nil {
		return nil, err
	}
	return beta.RawVector().Data, nil
}

func polyval(coeffs []float64, x float64) float64 {
	v := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*x + coeffs[i]
	}
	return v
}

func (l LongstaffSchwartz) Key() string {
	l = l.withDefaults()
	return fmt.Sprintf("%s:k=%g:put=%t:n=%d:steps=%d:deg=%d", TypeAmerican, l.Strike, l.Put, l.Paths, l.Steps, l.Degree)
}
