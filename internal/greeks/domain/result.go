package domain

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// 诊断代码
const (
	DiagPrecisionDegraded = "precision_degraded" // 差分分子小于模拟标准误差
	DiagNonFinite         = "non_finite"         // 出现 NaN/Inf
	DiagThetaClamped      = "theta_clamped"      // 时间扰动被截断到剩余期限
	DiagExpired           = "expired"            // 合约已到期，Theta 无定义
	DiagFallback          = "fallback"           // 求导方式不可用，已降级为 bump
	DiagSmoothingBias     = "smoothing_bias"     // 光滑参数被数值稳定下限抬高，偏差可能超过容差
	DiagPricingFailed     = "pricing_failed"     // 扰动点定价失败
	DiagBumpExceedsInput  = "bump_exceeds_input" // 扰动步长不小于输入本身
)

// Diagnostic 结果诊断信息。Sensitivity 为空表示作用于整个结果。
type Diagnostic struct {
	Sensitivity string `json:"sensitivity,omitempty" msgpack:"sensitivity,omitempty"`
	Code        string `json:"code" msgpack:"code"`
	Message     string `json:"message" msgpack:"message"`
}

// GreeksResult 不可变的计算结果。未请求或无法计算的希腊字母不存在，绝不以 0 代替。
type GreeksResult struct {
	price           float64
	stdErr          float64
	values          [numSensitivities]float64
	present         SensitivitySet
	degraded        bool
	method          Method
	requestedMethod Method
	smoothing       float64
	diagnostics     []Diagnostic
}

func (r *GreeksResult) Price() float64 { return r.price }

// StandardError 定价标准误差，闭式解为 0
func (r *GreeksResult) StandardError() float64 { return r.stdErr }

// Get 返回希腊字母的值及其是否存在
func (r *GreeksResult) Get(s Sensitivity) (float64, bool) {
	if !r.present.Has(s) {
		return 0, false
	}
	return r.values[s], true
}

func (r *GreeksResult) Has(s Sensitivity) bool { return r.present.Has(s) }

// Sensitivities 已存在的希腊字母
func (r *GreeksResult) Sensitivities() SensitivitySet { return r.present }

// Degraded 是否因能力缺失而降级
func (r *GreeksResult) Degraded() bool { return r.degraded }

// Method 实际使用的求导方式
func (r *GreeksResult) Method() Method { return r.method }

// RequestedMethod 配置请求的求导方式
func (r *GreeksResult) RequestedMethod() Method { return r.requestedMethod }

// Smoothing 实际传入定价内核的光滑参数
func (r *GreeksResult) Smoothing() float64 { return r.smoothing }

// Diagnostics 返回诊断信息的副本
func (r *GreeksResult) Diagnostics() []Diagnostic { return slices.Clone(r.diagnostics) }

// HasDiagnostic 是否含有指定代码的诊断
func (r *GreeksResult) HasDiagnostic(s Sensitivity, code string) bool {
	for _, d := range r.diagnostics {
		if d.Code == code && d.Sensitivity == s.String() {
			return true
		}
	}
	return false
}

// ResultBuilder 构造 GreeksResult，Build 之后不再修改
type ResultBuilder struct {
	r GreeksResult
}

// NewResultBuilder 以基础定价创建构造器
func NewResultBuilder(price, stdErr float64) *ResultBuilder {
	return &ResultBuilder{r: GreeksResult{price: price, stdErr: stdErr}}
}

func (b *ResultBuilder) Set(s Sensitivity, v float64) *ResultBuilder {
	if s.Valid() {
		b.r.values[s] = v
		b.r.present = b.r.present.With(s)
	}
	return b
}

func (b *ResultBuilder) Method(m Method) *ResultBuilder {
	b.r.method = m
	return b
}

func (b *ResultBuilder) RequestedMethod(m Method) *ResultBuilder {
	b.r.requestedMethod = m
	return b
}

func (b *ResultBuilder) Degraded(d bool) *ResultBuilder {
	b.r.degraded = d
	return b
}

func (b *ResultBuilder) Smoothing(eps float64) *ResultBuilder {
	b.r.smoothing = eps
	return b
}

// Diagnose 追加针对某个希腊字母的诊断
func (b *ResultBuilder) Diagnose(s Sensitivity, code, format string, args ...any) *ResultBuilder {
	b.r.diagnostics = append(b.r.diagnostics, Diagnostic{
		Sensitivity: s.String(),
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
	})
	return b
}

// Note 追加作用于整个结果的诊断
func (b *ResultBuilder) Note(code, format string, args ...any) *ResultBuilder {
	b.r.diagnostics = append(b.r.diagnostics, Diagnostic{Code: code, Message: fmt.Sprintf(format, args...)})
	return b
}

// Keep 只保留指定集合中的希腊字母（引擎内部计算的依赖项不对外暴露）
func (b *ResultBuilder) Keep(set SensitivitySet) *ResultBuilder {
	b.r.present &= set
	for _, s := range AllSensitivities {
		if !b.r.present.Has(s) {
			b.r.values[s] = 0
		}
	}
	return b
}

func (b *ResultBuilder) Build() *GreeksResult {
	out := b.r
	out.diagnostics = slices.Clone(b.r.diagnostics)
	return &out
}

// ResultWire GreeksResult 的线上格式，每个希腊字母一个可选字段
type ResultWire struct {
	Price            float64      `json:"price" msgpack:"price"`
	StandardError    float64      `json:"standard_error" msgpack:"standard_error"`
	Delta            *float64     `json:"delta,omitempty" msgpack:"delta,omitempty"`
	Gamma            *float64     `json:"gamma,omitempty" msgpack:"gamma,omitempty"`
	Vega             *float64     `json:"vega,omitempty" msgpack:"vega,omitempty"`
	Theta            *float64     `json:"theta,omitempty" msgpack:"theta,omitempty"`
	Rho              *float64     `json:"rho,omitempty" msgpack:"rho,omitempty"`
	Vanna            *float64     `json:"vanna,omitempty" msgpack:"vanna,omitempty"`
	Volga            *float64     `json:"volga,omitempty" msgpack:"volga,omitempty"`
	Degraded         bool         `json:"degraded" msgpack:"degraded"`
	Method           Method       `json:"method" msgpack:"method"`
	RequestedMethod  Method       `json:"requested_method" msgpack:"requested_method"`
	SmoothingEpsilon float64      `json:"smoothing_epsilon,omitempty" msgpack:"smoothing_epsilon,omitempty"`
	Diagnostics      []Diagnostic `json:"diagnostics,omitempty" msgpack:"diagnostics,omitempty"`
}

func (w *ResultWire) field(s Sensitivity) **float64 {
	switch s {
	case Delta:
		return &w.Delta
	case Gamma:
		return &w.Gamma
	case Vega:
		return &w.Vega
	case Theta:
		return &w.Theta
	case Rho:
		return &w.Rho
	case Vanna:
		return &w.Vanna
	default:
		return &w.Volga
	}
}

// Wire 转换为线上格式
func (r *GreeksResult) Wire() ResultWire {
	w := ResultWire{
		Price:            r.price,
		StandardError:    r.stdErr,
		Degraded:         r.degraded,
		Method:           r.method,
		RequestedMethod:  r.requestedMethod,
		SmoothingEpsilon: r.smoothing,
		Diagnostics:      slices.Clone(r.diagnostics),
	}
	for _, s := range r.present.List() {
		v := r.values[s]
		*w.field(s) = &v
	}
	return w
}

// Result 由线上格式还原
func (w ResultWire) Result() *GreeksResult {
	b := NewResultBuilder(w.Price, w.StandardError).
		Method(w.Method).
		RequestedMethod(w.RequestedMethod).
		Degraded(w.Degraded).
		Smoothing(w.SmoothingEpsilon)
	for _, s := range AllSensitivities {
		if v := *w.field(s); v != nil {
			b.Set(s, *v)
		}
	}
	b.r.diagnostics = slices.Clone(w.Diagnostics)
	return b.Build()
}

func (r *GreeksResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Wire())
}

func (r *GreeksResult) UnmarshalJSON(data []byte) error {
	var w ResultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = *w.Result()
	return nil
}

var (
	_ msgpack.CustomEncoder = (*GreeksResult)(nil)
	_ msgpack.CustomDecoder = (*GreeksResult)(nil)
)

func (r *GreeksResult) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(r.Wire())
}

func (r *GreeksResult) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w ResultWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	*r = *w.Result()
	return nil
}
