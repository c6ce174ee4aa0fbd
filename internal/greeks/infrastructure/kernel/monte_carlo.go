package kernel

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/wyfcoding/greeksengine/internal/greeks/ad"
	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
	"github.com/wyfcoding/greeksengine/internal/greeks/smoothing"
)

// 默认模拟规模
const (
	DefaultPaths = 20000
	DefaultSteps = 50
)

// MaxPathSteps 单次模拟允许的路径数与步数乘积上限
const MaxPathSteps = 4_000_000

// checkSize 校验生效后的模拟规模
func checkSize(paths, steps int) error {
	if paths <= 0 || steps <= 0 || paths > MaxPathSteps/steps {
		return fmt.Errorf("%w: paths=%d steps=%d exceeds %d path steps", ErrInvalidContract, paths, steps, MaxPathSteps)
	}
	return nil
}

// pcgStream PCG 第二个状态字，区分同一种子下不同用途的随机流
const pcgStream = 0x9e3779b97f4a7c15

// MonteCarlo 几何布朗运动下的蒙特卡洛定价，可选敲出障碍。
// 收益中的 max(·,0) 与障碍穿越均以光滑近似替代，锐度取 Params.Smoothing，
// 因此路径上的每个量都对输入可微，前向与反向模式均可直接使用。
// 对固定种子，三种数值类型下的价格逐位一致。
type MonteCarlo struct {
	Strike     float64
	Put        bool
	Barrier    float64 // 0 表示无障碍
	BarrierUp  bool    // true 为向上敲出，否则向下敲出
	Paths      int
	Steps      int // 仅障碍期权使用，欧式期权只模拟到期一步
	Antithetic bool
}

var (
	_ domain.PricingCall = MonteCarlo{}
	_ domain.DualPricer  = MonteCarlo{}
	_ domain.TapePricer  = MonteCarlo{}
)

func (m MonteCarlo) withDefaults() MonteCarlo {
	if m.Paths <= 0 {
		m.Paths = DefaultPaths
	}
	if m.Steps <= 0 {
		m.Steps = DefaultSteps
	}
	if m.Barrier <= 0 {
		m.Steps = 1
	}
	if m.Antithetic && m.Paths%2 == 1 {
		m.Paths++
	}
	return m
}

func (m MonteCarlo) validate() error {
	if !(m.Strike > 0) {
		return fmt.Errorf("%w: strike=%v", ErrInvalidContract, m.Strike)
	}
	if m.Barrier < 0 || math.IsNaN(m.Barrier) {
		return fmt.Errorf("%w: barrier=%v", ErrInvalidContract, m.Barrier)
	}
	if m.Paths < 0 || m.Steps < 0 {
		return fmt.Errorf("%w: paths=%d steps=%d", ErrInvalidContract, m.Paths, m.Steps)
	}
	d := m.withDefaults()
	return checkSize(d.Paths, d.Steps)
}

// normals 由种子确定的标准正态样本，按 [路径][步] 排列；对偶变量时后半部分为前半部分的相反数
func (m MonteCarlo) normals(seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, pcgStream))
	out := make([][]float64, m.Paths)
	base := m.Paths
	if m.Antithetic {
		base = m.Paths / 2
	}
	for i := 0; i < base; i++ {
		out[i] = make([]float64, m.Steps)
		for j := range out[i] {
			out[i][j] = rng.NormFloat64()
		}
	}
	for i := base; i < m.Paths; i++ {
		src := out[i-base]
		out[i] = make([]float64, m.Steps)
		for j := range src {
			out[i][j] = -src[j]
		}
	}
	return out
}

// payoff 光滑化的到期收益
func payoff[T ad.Real[T]](sT T, strike float64, put bool, eps float64) T {
	moneyness := sT.AddConst(-strike)
	if put {
		moneyness = moneyness.Neg()
	}
	return smoothing.PositiveOf(moneyness, eps)
}

// survival 单个监测点未敲出的光滑概率
func survival[T ad.Real[T]](s T, barrier float64, up bool, eps float64) T {
	dist := s.AddConst(-barrier)
	if up {
		dist = dist.Neg()
	}
	return smoothing.IndicatorOf(dist, eps)
}

// dynamics 返回 log S0、每步对数漂移 (r − q − σ²/2)·dt 与扩散 σ·√dt
func dynamics[T ad.Real[T]](m MonteCarlo, in domain.Inputs[T], p domain.Params) (logS0, driftStep, volStep T) {
	vol, r := in.Vol, in.Rate
	dt := in.Maturity.MulConst(1 / float64(m.Steps))
	driftStep = r.AddConst(-p.Dividend).Sub(vol.Mul(vol).MulConst(0.5)).Mul(dt)
	volStep = vol.Mul(dt.Sqrt())
	return in.Spot.Log(), driftStep, volStep
}

// pathPayoff 单条路径未折现的光滑收益
func pathPayoff[T ad.Real[T]](m MonteCarlo, logS0, driftStep, volStep T, z []float64, eps float64) T {
	logS := logS0
	alive := logS0.Const(1)
	var sT T
	for j := 0; j < m.Steps; j++ {
		logS = logS.Add(driftStep).Add(volStep.MulConst(z[j]))
		if m.Barrier > 0 {
			sT = logS.Exp()
			alive = alive.Mul(survival(sT, m.Barrier, m.BarrierUp, eps))
		}
	}
	if m.Barrier <= 0 {
		sT = logS.Exp()
	}
	v := payoff(sT, m.Strike, m.Put, eps)
	if m.Barrier > 0 {
		v = v.Mul(alive)
	}
	return v
}

// expiredValue 已到期合约的光滑收益
func expiredValue[T ad.Real[T]](m MonteCarlo, s0 T, eps float64) T {
	v := payoff(s0, m.Strike, m.Put, eps)
	if m.Barrier > 0 {
		v = v.Mul(survival(s0, m.Barrier, m.BarrierUp, eps))
	}
	return v
}

// simulate 泛型路径模拟，返回折现后的均值与各样本的浮点值
func simulate[T ad.Real[T]](m MonteCarlo, in domain.Inputs[T], p domain.Params, seed uint64) (T, []float64) {
	eps := p.Smoothing
	if in.Maturity.Value() <= 0 {
		v := expiredValue(m, in.Spot, eps)
		return v, []float64{v.Value()}
	}

	logS0, driftStep, volStep := dynamics(m, in, p)
	discount := in.Rate.Mul(in.Maturity).Neg().Exp()

	z := m.normals(seed)
	samples := make([]float64, m.Paths)
	sum := in.Spot.Const(0)
	for i := 0; i < m.Paths; i++ {
		v := pathPayoff(m, logS0, driftStep, volStep, z[i], eps)
		samples[i] = v.Value()
		sum = sum.Add(v)
	}
	mean := sum.MulConst(1 / float64(m.Paths)).Mul(discount)

	df := discount.Value()
	for i := range samples {
		samples[i] *= df
	}
	return mean, samples
}

// simulateTape 反向模式模拟。每条路径在同一梯度带上重放后立即反向扫描并累加伴随值，
// 带长只与步数有关；结果以单个复合节点接回调用方的梯度带，价格与 simulate 逐位一致。
func simulateTape(m MonteCarlo, in domain.Inputs[ad.Var], p domain.Params, seed uint64) (ad.Var, []float64) {
	eps := p.Smoothing
	if in.Maturity.Value() <= 0 {
		v := expiredValue(m, in.Spot, eps)
		return v, []float64{v.Value()}
	}

	z := m.normals(seed)
	samples := make([]float64, m.Paths)
	tape := ad.NewTape(8*m.Steps + 32)
	var (
		adj  ad.Adjoints
		sum  float64
		grad [4]float64
	)
	for i := 0; i < m.Paths; i++ {
		tape.Reset()
		x := domain.Inputs[ad.Var]{
			Spot:     tape.Variable(in.Spot.Value()),
			Vol:      tape.Variable(in.Vol.Value()),
			Maturity: tape.Variable(in.Maturity.Value()),
			Rate:     tape.Variable(in.Rate.Value()),
		}
		logS0, driftStep, volStep := dynamics(m, x, p)
		v := pathPayoff(m, logS0, driftStep, volStep, z[i], eps)
		adj = tape.GradientInto(v, adj)
		grad[0] += adj.Wrt(x.Spot)
		grad[1] += adj.Wrt(x.Vol)
		grad[2] += adj.Wrt(x.Maturity)
		grad[3] += adj.Wrt(x.Rate)
		samples[i] = v.Value()
		sum += v.Value()
	}

	// V = (Σv/n)·D，D = exp(−r·T)，∂D/∂T = −r·D，∂D/∂r = −T·D
	inv := 1 / float64(m.Paths)
	r, t := in.Rate.Value(), in.Maturity.Value()
	df := math.Exp(-(r * t))
	value := sum * inv * df
	out := ad.Composite(value,
		[]ad.Var{in.Spot, in.Vol, in.Maturity, in.Rate},
		[]float64{
			grad[0] * inv * df,
			grad[1] * inv * df,
			grad[2]*inv*df - r*value,
			grad[3]*inv*df - t*value,
		})

	for i := range samples {
		samples[i] *= df
	}
	return out, samples
}

// standardError 样本均值的标准误差；对偶变量时按样本对计算
func (m MonteCarlo) standardError(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	if m.Antithetic {
		half := len(samples) / 2
		pairs := make([]float64, half)
		for i := range pairs {
			pairs[i] = 0.5 * (samples[i] + samples[i+half])
		}
		samples = pairs
		if len(samples) < 2 {
			return 0
		}
	}
	_, std := stat.MeanStdDev(samples, nil)
	return std / math.Sqrt(float64(len(samples)))
}

func (m MonteCarlo) Price(p domain.Params, seed uint64) (domain.Quote, error) {
	if err := m.validate(); err != nil {
		return domain.Quote{}, err
	}
	m = m.withDefaults()
	v, samples := simulate(m, floatInputs(p), p, seed)
	return domain.Quote{Value: v.Value(), StdErr: m.standardError(samples)}, nil
}

func (m MonteCarlo) PriceDual(in domain.Inputs[ad.Dual], p domain.Params, seed uint64) (ad.Dual, float64, error) {
	if err := m.validate(); err != nil {
		return ad.Dual{}, 0, err
	}
	m = m.withDefaults()
	v, samples := simulate(m, in, p, seed)
	return v, m.standardError(samples), nil
}

func (m MonteCarlo) PriceTape(in domain.Inputs[ad.Var], p domain.Params, seed uint64) (ad.Var, float64, error) {
	if err := m.validate(); err != nil {
		return ad.Var{}, 0, err
	}
	m = m.withDefaults()
	v, samples := simulateTape(m, in, p, seed)
	return v, m.standardError(samples), nil
}

func (m MonteCarlo) Key() string {
	m = m.withDefaults()
	return fmt.Sprintf("%s:k=%g:put=%t:b=%g:up=%t:n=%d:steps=%d:anti=%t",
		TypeMonteCarlo, m.Strike, m.Put, m.Barrier, m.BarrierUp, m.Paths, m.Steps, m.Antithetic)
}
